package out

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"arrivalwatch/internal/modules/tracking/domain"
	trackingout "arrivalwatch/internal/modules/tracking/port/out"
	apperrors "arrivalwatch/internal/platform/errors"
)

type MemoryTaskRegistry struct {
	mu       sync.RWMutex
	handlers map[string]trackingout.TaskHandler
}

func NewMemoryTaskRegistry() *MemoryTaskRegistry {
	return &MemoryTaskRegistry{handlers: map[string]trackingout.TaskHandler{}}
}

var _ trackingout.TaskRegistry = (*MemoryTaskRegistry)(nil)

func (r *MemoryTaskRegistry) Register(name string, handler trackingout.TaskHandler) error {
	if strings.TrimSpace(name) == "" || handler == nil {
		return fmt.Errorf("register task: %w: name and handler are required", apperrors.ErrInvalidInput)
	}
	r.mu.Lock()
	r.handlers[name] = handler
	r.mu.Unlock()
	return nil
}

func (r *MemoryTaskRegistry) Unregister(name string) {
	r.mu.Lock()
	delete(r.handlers, name)
	r.mu.Unlock()
}

func (r *MemoryTaskRegistry) Registered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Dispatch runs the handler of name on the calling goroutine.
func (r *MemoryTaskRegistry) Dispatch(ctx context.Context, name string, data domain.TaskData) error {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("dispatch task %s: %w", name, apperrors.ErrNotFound)
	}
	return handler(ctx, data)
}
