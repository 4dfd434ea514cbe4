package device

import (
	"context"
	"sync"

	"local-tuya/message"
)

// stateHandler caches the decoded device state for read access.
type stateHandler struct {
	mu    sync.Mutex
	state message.Values
	ready chan struct{} // closed on first update
}

func newStateHandler() *stateHandler {
	return &stateHandler{ready: make(chan struct{})}
}

func (h *stateHandler) updated(state message.Values) {
	h.mu.Lock()
	first := h.state == nil
	h.state = state.Copy()
	h.mu.Unlock()
	if first {
		close(h.ready)
	}
}

// get returns the decoded state, waiting for the first update if necessary.
func (h *stateHandler) get(ctx context.Context) (message.Values, error) {
	h.mu.Lock()
	state := h.state
	h.mu.Unlock()
	if state == nil {
		select {
		case <-h.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		h.mu.Lock()
		state = h.state
		h.mu.Unlock()
	}
	return state.Copy(), nil
}
