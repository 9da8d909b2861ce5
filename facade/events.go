package facade

import (
	"context"
	"encoding/json"

	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/item"
	"go.uber.org/zap"
)

// StorageUpdate is published whenever a storage list changes.
type StorageUpdate struct {
	Type    entity.StorageType `json:"type"`
	OwnerID string             `json:"owner_id"`
	Items   item.List          `json:"items"`
}

// ID returns the storage the update belongs to.
func (u StorageUpdate) ID() entity.StorageID {
	return entity.StorageID{Type: u.Type, OwnerID: u.OwnerID}
}

// DecodeStorageUpdate parses a published payload.
func DecodeStorageUpdate(payload string) (StorageUpdate, error) {
	var u StorageUpdate
	err := json.Unmarshal([]byte(payload), &u)
	return u, err
}

func (svc *Service) publish(ctx context.Context, id entity.StorageID, items item.List) {
	if svc.publisher == nil {
		return
	}
	data, err := json.Marshal(StorageUpdate{Type: id.Type, OwnerID: id.OwnerID, Items: items})
	if err != nil {
		svc.logger.Error("encode storage update", zap.Stringer("storage", id), zap.Error(err))
		return
	}
	if err := svc.publisher.Publish(ctx, svc.channel, string(data)); err != nil {
		svc.logger.Warn("publish storage update failed",
			zap.Stringer("storage", id), zap.Error(err))
	}
}

type traceKey struct{}

// WithTraceID attaches a trace id that audit entries will carry.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID returns the trace id attached by WithTraceID.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
