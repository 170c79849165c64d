package events

import (
	"context"
	"errors"
	"sync"

	"leadrouter_backend/platform/logger"
)

// InMemoryBus is a simple in-process event bus. Handlers registered for an
// event name receive every published event of that name. Publish runs
// handlers in a goroutine; PublishSync runs them inline and collects errors.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously. Handler
// errors are logged, never propagated: event delivery must not block or
// fail the publishing operation.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	registered := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	if len(registered) == 0 {
		return
	}

	go func() {
		// Detach from the request context so in-flight handlers survive
		// the originating request.
		detached := context.WithoutCancel(ctx)
		for _, handler := range registered {
			if err := handler.Handle(detached, event); err != nil {
				b.log.Error("event handler failed",
					"event", event.EventName(),
					"error", err.Error(),
				)
			}
		}
	}()
}

// PublishSync dispatches the event to all handlers inline and returns the
// combined error, if any.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	registered := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	var errs []error
	for _, handler := range registered {
		if err := handler.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compile-time check that InMemoryBus implements Bus.
var _ Bus = (*InMemoryBus)(nil)
