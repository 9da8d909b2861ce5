package building

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kasuganosora/mmocache/cache"
	"github.com/kasuganosora/mmocache/game/item"
)

// LiveBuilding is a building currently loaded by some game server.
type LiveBuilding struct {
	ID               string      `json:"id"`
	EntityID         int         `json:"entity_id"`
	ObjectID         uint32      `json:"object_id"`
	MapName          string      `json:"map_name"`
	CreatorID        string      `json:"creator_id"`
	CanUseByEveryone bool        `json:"can_use_by_everyone"`
	Storage          item.Limits `json:"storage"`
}

// IsCreator reports whether characterID placed the building.
func (b LiveBuilding) IsCreator(characterID string) bool {
	return b.CreatorID != "" && b.CreatorID == characterID
}

// CanAccess reports whether characterID may open the building's storage.
func (b LiveBuilding) CanAccess(characterID string) bool {
	return b.IsCreator(characterID) || b.CanUseByEveryone
}

// Registry tracks live buildings. Get returns ok=false when the building is
// not loaded anywhere.
type Registry interface {
	Get(ctx context.Context, id string) (LiveBuilding, bool, error)
	Register(ctx context.Context, b LiveBuilding) error
	Unregister(ctx context.Context, id string) error
}

// LocalRegistry is a process-local Registry.
type LocalRegistry struct {
	mu        sync.RWMutex
	buildings map[string]LiveBuilding
}

func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{buildings: make(map[string]LiveBuilding)}
}

func (r *LocalRegistry) Get(_ context.Context, id string) (LiveBuilding, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buildings[id]
	return b, ok, nil
}

func (r *LocalRegistry) Register(_ context.Context, b LiveBuilding) error {
	r.mu.Lock()
	r.buildings[b.ID] = b
	r.mu.Unlock()
	return nil
}

func (r *LocalRegistry) Unregister(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.buildings, id)
	r.mu.Unlock()
	return nil
}

// DefaultHashKey is the cache hash holding live buildings.
const DefaultHashKey = "mmocache:live_buildings"

// SharedRegistry keeps live buildings in a cache hash so the facade process
// can resolve building storages registered by game servers.
type SharedRegistry struct {
	c      cache.Cache
	key    string
	logger *zap.Logger
}

// NewSharedRegistry creates a SharedRegistry on hash key (DefaultHashKey
// when empty).
func NewSharedRegistry(c cache.Cache, key string, logger *zap.Logger) *SharedRegistry {
	if key == "" {
		key = DefaultHashKey
	}
	return &SharedRegistry{c: c, key: key, logger: logger}
}

func (r *SharedRegistry) Get(ctx context.Context, id string) (LiveBuilding, bool, error) {
	raw, err := r.c.HGet(ctx, r.key, id)
	if cache.IsNotFound(err) {
		return LiveBuilding{}, false, nil
	}
	if err != nil {
		return LiveBuilding{}, false, fmt.Errorf("building: get %s: %w", id, err)
	}
	var b LiveBuilding
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		r.logger.Warn("corrupt live building entry dropped",
			zap.String("building_id", id), zap.Error(err))
		_ = r.c.HDel(ctx, r.key, id)
		return LiveBuilding{}, false, nil
	}
	return b, true, nil
}

func (r *SharedRegistry) Register(ctx context.Context, b LiveBuilding) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("building: encode %s: %w", b.ID, err)
	}
	if err := r.c.HSet(ctx, r.key, b.ID, string(data)); err != nil {
		return fmt.Errorf("building: register %s: %w", b.ID, err)
	}
	return nil
}

func (r *SharedRegistry) Unregister(ctx context.Context, id string) error {
	if err := r.c.HDel(ctx, r.key, id); err != nil {
		return fmt.Errorf("building: unregister %s: %w", id, err)
	}
	return nil
}

// All returns every registered building.
func (r *SharedRegistry) All(ctx context.Context) ([]LiveBuilding, error) {
	raw, err := r.c.HGetAll(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("building: list: %w", err)
	}
	out := make([]LiveBuilding, 0, len(raw))
	for id, v := range raw {
		var b LiveBuilding
		if err := json.Unmarshal([]byte(v), &b); err != nil {
			r.logger.Warn("corrupt live building entry skipped",
				zap.String("building_id", id), zap.Error(err))
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Reset removes every registered building, e.g. when the cluster restarts.
func (r *SharedRegistry) Reset(ctx context.Context) error {
	return r.c.Del(ctx, r.key)
}
