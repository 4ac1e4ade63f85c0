package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

const (
	// DefaultQueueSize is the async publisher's buffer when none is configured.
	DefaultQueueSize = 256

	publishTimeout = 10 * time.Second
)

// Publish outcomes reported to the observer.
const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

var (
	// ErrQueueFull is returned when an event is dropped because the queue is full.
	ErrQueueFull = errors.New("event queue full")
	// ErrClosed is returned after Stop.
	ErrClosed = errors.New("event publisher closed")
)

// OutcomeObserver is told what happened to each event.
type OutcomeObserver func(eventType settlement.EventType, outcome string)

// AsyncPublisher decouples callers from the transport. Publish only enqueues
// and never blocks; a single worker hands events to the transport.
type AsyncPublisher struct {
	next    Publisher
	log     *logger.Logger
	observe OutcomeObserver

	mu      sync.RWMutex
	queue   chan settlement.NotificationEvent
	closed  bool
	started bool
	done    chan struct{}
}

// AsyncOption customises an AsyncPublisher.
type AsyncOption func(*AsyncPublisher)

// WithOutcomeObserver registers an observer for publish outcomes.
func WithOutcomeObserver(o OutcomeObserver) AsyncOption {
	return func(p *AsyncPublisher) { p.observe = o }
}

// NewAsyncPublisher wraps next with a queue of the given size.
func NewAsyncPublisher(next Publisher, size int, log *logger.Logger, opts ...AsyncOption) *AsyncPublisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = logger.NewDefault("events")
	}
	p := &AsyncPublisher{
		next:  next,
		log:   log,
		queue: make(chan settlement.NotificationEvent, size),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AsyncPublisher) Name() string { return "events-publisher" }

// Start launches the worker.
func (p *AsyncPublisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if p.closed {
		return ErrClosed
	}
	p.started = true
	go p.run()
	return nil
}

// Stop refuses new events and waits for the queued ones to be handed over,
// or for ctx to expire.
func (p *AsyncPublisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish enqueues event. It returns ErrQueueFull or ErrClosed when the event
// was dropped; it never waits on the transport.
func (p *AsyncPublisher) Publish(_ context.Context, event settlement.NotificationEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.record(event, OutcomeDropped, ErrClosed)
		return ErrClosed
	}
	select {
	case p.queue <- event:
		return nil
	default:
		p.record(event, OutcomeDropped, ErrQueueFull)
		return ErrQueueFull
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for event := range p.queue {
		p.deliver(event)
	}
}

func (p *AsyncPublisher) deliver(event settlement.NotificationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.New("publisher panicked")
			}
		}()
		return p.next.Publish(ctx, event)
	}()
	if err != nil {
		p.record(event, OutcomeFailed, err)
		return
	}
	p.record(event, OutcomePublished, nil)
}

func (p *AsyncPublisher) record(event settlement.NotificationEvent, outcome string, err error) {
	entry := p.log.WithFields(logrus.Fields{
		"event_type":   event.Type,
		"recipient_id": event.RecipientID,
		"outcome":      outcome,
	})
	if err != nil {
		entry.WithError(err).Warn("notification event not published")
	} else {
		entry.Debug("notification event published")
	}
	if p.observe != nil {
		p.observe(event.Type, outcome)
	}
}
