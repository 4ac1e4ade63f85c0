// Package events carries notification events from settlement runs to the
// notification consumer.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
)

// NotificationEvent is the logical event name used for topic routing.
const NotificationEvent = "notification"

// ErrNotStarted is returned when a transport is used before Start.
var ErrNotStarted = errors.New("event transport not started")

// Publisher sends one event to the transport.
type Publisher interface {
	Publish(ctx context.Context, event settlement.NotificationEvent) error
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, event settlement.NotificationEvent) error

// Subscriber registers handlers for delivered events.
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) error
}

// Transport is a publisher and subscriber with a lifecycle.
type Transport interface {
	Publisher
	Subscriber
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Bus is an in-process transport. Publish delivers to every handler in the
// caller's goroutine and returns the joined handler errors.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Name() string { return "events-memory" }

func (b *Bus) Start(context.Context) error { return nil }

func (b *Bus) Stop(context.Context) error { return nil }

func (b *Bus) Subscribe(_ context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("handler required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
	return nil
}

func (b *Bus) Publish(ctx context.Context, event settlement.NotificationEvent) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
