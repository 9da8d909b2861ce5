package facade

import (
	"context"
	"errors"
	"sync"

	"github.com/kasuganosora/mmocache/store"
)

// table is one cached entity map. Each key has its own lock so
// read-modify-write sequences on different ids never wait for each other.
// Values go through clone on the way in and out of the map.
type table[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V

	lmu   sync.Mutex
	locks map[K]*keyLock

	clone func(V) V
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newTable[K comparable, V any](clone func(V) V) *table[K, V] {
	if clone == nil {
		clone = func(v V) V { return v }
	}
	return &table[K, V]{
		entries: make(map[K]V),
		locks:   make(map[K]*keyLock),
		clone:   clone,
	}
}

// lock acquires the per-key lock and returns its release func. Lock entries
// are removed once no caller holds or waits on them.
func (t *table[K, V]) lock(k K) func() {
	t.lmu.Lock()
	l, ok := t.locks[k]
	if !ok {
		l = &keyLock{}
		t.locks[k] = l
	}
	l.refs++
	t.lmu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.lmu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, k)
		}
		t.lmu.Unlock()
	}
}

func (t *table[K, V]) get(k K) (V, bool) {
	t.mu.RLock()
	v, ok := t.entries[k]
	t.mu.RUnlock()
	if !ok {
		return v, false
	}
	return t.clone(v), true
}

func (t *table[K, V]) has(k K) bool {
	t.mu.RLock()
	_, ok := t.entries[k]
	t.mu.RUnlock()
	return ok
}

func (t *table[K, V]) set(k K, v V) {
	v = t.clone(v)
	t.mu.Lock()
	t.entries[k] = v
	t.mu.Unlock()
}

func (t *table[K, V]) del(k K) {
	t.mu.Lock()
	delete(t.entries, k)
	t.mu.Unlock()
}

// update applies fn to the cached value of k if present.
func (t *table[K, V]) update(k K, fn func(V) V) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[k]
	if !ok {
		return false
	}
	t.entries[k] = fn(v)
	return true
}

func (t *table[K, V]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// fetch is the read-through path. The caller holds lock(k). A store miss is
// reported as ok=false and leaves the table untouched.
func (t *table[K, V]) fetch(ctx context.Context, k K, load func(context.Context) (V, error)) (V, bool, error) {
	if v, ok := t.get(k); ok {
		return v, true, nil
	}
	v, err := load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		var zero V
		return zero, false, nil
	}
	if err != nil {
		var zero V
		return zero, false, err
	}
	t.set(k, v)
	return t.clone(v), true, nil
}

// read is fetch under the key lock.
func (t *table[K, V]) read(ctx context.Context, k K, load func(context.Context) (V, error)) (V, bool, error) {
	unlock := t.lock(k)
	defer unlock()
	return t.fetch(ctx, k, load)
}

// put is the write-through path. The caller holds lock(k). The cache is
// updated first; when write fails the previous entry is restored.
func (t *table[K, V]) put(k K, v V, write func() error) error {
	t.mu.Lock()
	prev, had := t.entries[k]
	t.entries[k] = t.clone(v)
	t.mu.Unlock()

	if err := write(); err != nil {
		t.mu.Lock()
		if had {
			t.entries[k] = prev
		} else {
			delete(t.entries, k)
		}
		t.mu.Unlock()
		return err
	}
	return nil
}

// absent turns store.ErrNotFound into ok=false.
func absent[V any](v V, err error) (V, bool, error) {
	if err != nil {
		var zero V
		if errors.Is(err, store.ErrNotFound) {
			return zero, false, nil
		}
		return zero, false, err
	}
	return v, true, nil
}
