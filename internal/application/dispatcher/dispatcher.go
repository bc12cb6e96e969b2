// Package dispatcher fans committed case events out to in-process subscribers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/caseflow/internal/domain/event"
)

// Dispatcher routes events to named subscribers
type Dispatcher interface {
	// Subscribe registers a handler for one event type. A second
	// subscription under the same name replaces the first.
	Subscribe(eventType event.Type, name string, handler Handler)

	// SubscribeAll registers a handler that receives every event type
	SubscribeAll(name string, handler Handler)

	// Dispatch runs every matching handler in registration order, typed
	// subscribers before wildcard ones, and joins their failures
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs matching handlers in goroutines; failures are only logged
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Subscribers lists subscriber names for an event type
	Subscribers(eventType event.Type) []string

	// Close rejects further dispatches and waits for async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu     sync.RWMutex
	subs   map[event.Type][]subscription
	logger Logger

	inflight sync.WaitGroup
	closed   atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		subs:   make(map[event.Type][]subscription),
		logger: nopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.subs[eventType]
	for i := range subs {
		if subs[i].name == name {
			subs[i].handler = handler
			d.logger.Info("Subscriber replaced", "event_type", eventType, "subscriber", name)
			return
		}
	}
	d.subs[eventType] = append(subs, subscription{name: name, handler: handler})
	d.logger.Info("Subscriber registered", "event_type", eventType, "subscriber", name)
}

func (d *eventDispatcher) SubscribeAll(name string, handler Handler) {
	d.Subscribe(AllEvents, name, handler)
}

func (d *eventDispatcher) Subscribers(eventType event.Type) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.subs[eventType]))
	for _, s := range d.subs[eventType] {
		names = append(names, s.name)
	}
	return names
}

// matching snapshots the subscribers for a type so handlers run without the lock
func (d *eventDispatcher) matching(eventType event.Type) []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()

	typed := d.subs[eventType]
	wildcard := d.subs[AllEvents]
	out := make([]subscription, 0, len(typed)+len(wildcard))
	out = append(out, typed...)
	if eventType != AllEvents {
		out = append(out, wildcard...)
	}
	return out
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	var errs []error
	for _, s := range d.matching(evt.Type) {
		if err := d.run(ctx, evt, s); err != nil {
			errs = append(errs, &HandlerError{Handler: s.name, EventID: evt.ID, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		d.logger.Error("Dropping event, dispatcher is closed", "event_type", evt.Type, "case_id", evt.CaseID)
		return
	}

	for _, s := range d.matching(evt.Type) {
		d.inflight.Add(1)
		go func(s subscription) {
			defer d.inflight.Done()
			_ = d.run(ctx, evt, s)
		}(s)
	}
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	d.inflight.Wait()
	return nil
}

// run calls one handler, turning a panic into an error
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, s subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			d.logger.Error("Event handler failed",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"case_id", evt.CaseID,
				"correlation_id", evt.CorrelationID,
				"subscriber", s.name,
				"error", err,
			)
		}
	}()
	return s.handler(ctx, evt)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
