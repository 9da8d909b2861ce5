// Package hook lets a game server veto or observe player storage activity
// on its gateway without touching the cache service.
package hook

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kasuganosora/mmocache/entity"
)

// ErrInterrupt signals that a Hook handler wants to stop further processing.
var ErrInterrupt = errors.New("hook interrupted")

// Fn is a hook handler function.
// Returns (modified data, nil) to continue, or (data, ErrInterrupt) to stop.
type Fn func(ctx context.Context, event string, data interface{}) (interface{}, error)

type entry struct {
	priority int
	fn       Fn
	name     string
}

// Center manages event hook registrations.
type Center struct {
	mu    sync.RWMutex
	hooks map[string][]*entry
}

// NewCenter creates a new Center.
func NewCenter() *Center {
	return &Center{hooks: make(map[string][]*entry)}
}

// Register adds fn for the given event with the given priority (lower runs first).
// name is used for Unregister.
func (hc *Center) Register(event string, priority int, name string, fn Fn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	entries := append(hc.hooks[event], &entry{priority: priority, fn: fn, name: name})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	hc.hooks[event] = entries
}

// Unregister removes all hooks with the given name for the given event.
func (hc *Center) Unregister(event, name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.hooks[event] = without(hc.hooks[event], name)
}

// UnregisterAll removes all hooks registered with the given name across all events.
func (hc *Center) UnregisterAll(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for event, entries := range hc.hooks {
		hc.hooks[event] = without(entries, name)
	}
}

func without(entries []*entry, name string) []*entry {
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	return entries[:n]
}

// Trigger executes all registered hooks for event in priority order.
// Data flows through each handler. If any handler returns ErrInterrupt,
// execution stops; any other error is returned after the remaining hooks ran.
func (hc *Center) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	hc.mu.RLock()
	entries := make([]*entry, len(hc.hooks[event]))
	copy(entries, hc.hooks[event])
	hc.mu.RUnlock()

	var firstErr error
	for _, e := range entries {
		out, err := e.fn(ctx, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		data = out
	}
	return data, firstErr
}

// Interrupted reports whether a hook for event returned ErrInterrupt. A nil
// Center never interrupts.
func (hc *Center) Interrupted(ctx context.Context, event string, data interface{}) bool {
	if hc == nil {
		return false
	}
	_, err := hc.Trigger(ctx, event, data)
	return errors.Is(err, ErrInterrupt)
}

// Events triggered by the player gateway.
const (
	// OnPlayerLogin and OnPlayerLogout carry a PlayerEvent.
	OnPlayerLogin  = "on_player_login"
	OnPlayerLogout = "on_player_logout"
	// BeforeStorageOpen and BeforeStorageMove carry a StorageEvent and may
	// interrupt the request.
	BeforeStorageOpen = "before_storage_open"
	BeforeStorageMove = "before_storage_move"
)

// PlayerEvent identifies a player connection.
type PlayerEvent struct {
	ConnID      int64
	AccountID   string
	CharacterID string
}

// StorageEvent describes a storage request of a player connection.
type StorageEvent struct {
	PlayerEvent
	Storage entity.StorageID
	// Request is the packet type that caused the event.
	Request string
}
