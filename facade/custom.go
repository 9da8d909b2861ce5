package facade

import (
	"context"
	"fmt"
)

// CustomHandler serves a game-specific request type with an opaque payload.
type CustomHandler func(ctx context.Context, payload []byte) ([]byte, error)

// RegisterCustomHandler installs h for type code t, replacing any previous
// handler. A nil h removes it.
func (svc *Service) RegisterCustomHandler(t int32, h CustomHandler) {
	svc.customMu.Lock()
	defer svc.customMu.Unlock()
	if h == nil {
		delete(svc.custom, t)
		return
	}
	svc.custom[t] = h
}

// Custom dispatches payload to the handler registered for t.
func (svc *Service) Custom(ctx context.Context, t int32, payload []byte) ([]byte, error) {
	svc.customMu.RLock()
	h, ok := svc.custom[t]
	svc.customMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: type %d", ErrNoCustomHandler, t)
	}
	return h(ctx, payload)
}
