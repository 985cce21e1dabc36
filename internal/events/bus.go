package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// EventBus distributes orchestrator events to subscribers with optional
// filtering.
//
// Thread Safety:
//   - All methods are safe for concurrent use
//   - Multiple goroutines can publish and subscribe simultaneously
//   - Non-blocking publish prevents slow subscribers from affecting publishers
//
// Slow Consumer Handling:
//   - Subscribers receive events through buffered channels
//   - If a subscriber's buffer is full, events are dropped for that subscriber
//   - Other subscribers are not affected by slow consumers
//   - Dropped events are reported via the error handler
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	// Returns an error only if the event bus is closed.
	// Never blocks on slow subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe creates a subscription with optional filtering.
	// Returns a channel for receiving events and a cleanup function.
	// The cleanup function must be called to prevent resource leaks.
	//
	// Parameters:
	//   - ctx: Context for subscription lifetime
	//   - filter: Filter criteria (Filter{} = receive all events)
	//   - bufferSize: Size of subscriber's event buffer (0 = use default)
	Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func())

	// Close shuts down the event bus and all subscriptions.
	// After Close returns, Publish will return an error.
	Close() error
}

// DefaultEventBus implements EventBus with buffered channels and
// non-blocking sends.
//
// Architecture:
//   - RWMutex for concurrent subscriber map access
//   - Map of subscriber IDs to subscription structs
//   - Each subscription has its own buffered channel
//   - Non-blocking sends with select/default pattern
type DefaultEventBus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscription
	options     *eventBusOptions
	closed      bool
}

// subscription represents a single subscriber with filtering and lifecycle management.
type subscription struct {
	id       string
	ch       chan Event
	filter   Filter
	ctx      context.Context
	cancel   context.CancelFunc
	created  time.Time
	received atomic.Int64
	dropped  atomic.Int64
}

// eventBusOptions holds configuration for DefaultEventBus.
type eventBusOptions struct {
	defaultBufferSize int
	errorHandler      ErrorHandler
	metricsRecorder   MetricsRecorder
}

// ErrorHandler is called when an error occurs during event bus operations,
// most commonly a dropped event for a slow subscriber.
type ErrorHandler func(err error, context map[string]interface{})

// MetricsRecorder records metrics about event bus operations.
type MetricsRecorder interface {
	// RecordEventPublished is called when an event is successfully published.
	RecordEventPublished(eventType string, subscriberCount int)

	// RecordEventDropped is called when an event is dropped for a slow subscriber.
	RecordEventDropped(eventType string, subscriberID string)

	// RecordSubscriberAdded is called when a new subscriber is created.
	RecordSubscriberAdded(subscriberID string)

	// RecordSubscriberRemoved is called when a subscriber is removed.
	RecordSubscriberRemoved(subscriberID string, duration time.Duration)
}

// Option is a functional option for configuring DefaultEventBus.
type Option func(*eventBusOptions)

// WithDefaultBufferSize sets the default buffer size for subscriber channels.
// This is used when Subscribe is called with bufferSize=0.
// Default: 100 events.
func WithDefaultBufferSize(size int) Option {
	return func(opts *eventBusOptions) {
		if size > 0 {
			opts.defaultBufferSize = size
		}
	}
}

// WithErrorHandler sets the error handler for event bus operations.
// Default: no-op handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(opts *eventBusOptions) {
		if handler != nil {
			opts.errorHandler = handler
		}
	}
}

// WithMetrics sets the metrics recorder for event bus operations.
// Default: no-op recorder.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(opts *eventBusOptions) {
		if recorder != nil {
			opts.metricsRecorder = recorder
		}
	}
}

// NewEventBus creates a new DefaultEventBus with the given options.
//
// Example:
//
//	bus := NewEventBus(
//		WithDefaultBufferSize(500),
//		WithErrorHandler(func(err error, ctx map[string]interface{}) {
//			log.Warn("event bus error", "error", err, "context", ctx)
//		}),
//	)
//	defer bus.Close()
func NewEventBus(opts ...Option) *DefaultEventBus {
	options := &eventBusOptions{
		defaultBufferSize: 100,
		errorHandler:      noopErrorHandler,
		metricsRecorder:   noopMetricsRecorder{},
	}

	for _, opt := range opts {
		opt(options)
	}

	return &DefaultEventBus{
		subscribers: make(map[string]*subscription),
		options:     options,
		closed:      false,
	}
}

// Publish sends an event to all matching subscribers.
//
// The event is sent to subscribers whose filters match the event's
// attributes. If a subscriber's channel is full, the event is dropped for
// that subscriber to prevent blocking the publisher or other subscribers.
func (eb *DefaultEventBus) Publish(ctx context.Context, event Event) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return fmt.Errorf("event bus is closed")
	}

	sent := 0
	dropped := 0

	for _, sub := range eb.subscribers {
		// Skip subscribers whose context is already cancelled; unsubscribe
		// cleans them up.
		select {
		case <-sub.ctx.Done():
			continue
		default:
		}

		if !sub.filter.Matches(event) {
			continue
		}

		select {
		case sub.ch <- event:
			sent++
			sub.received.Add(1)
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Channel is full, drop event for this slow subscriber.
			dropped++
			sub.dropped.Add(1)

			eb.options.metricsRecorder.RecordEventDropped(string(event.Type), sub.id)
			eb.options.errorHandler(
				fmt.Errorf("dropped event for slow subscriber"),
				map[string]interface{}{
					"subscriber_id": sub.id,
					"event_type":    event.Type,
					"run_id":        event.RunID,
					"task_id":       event.TaskID,
				},
			)
		}
	}

	if sent > 0 || dropped > 0 {
		eb.options.metricsRecorder.RecordEventPublished(string(event.Type), sent)
	}

	return nil
}

// Subscribe creates a new subscription with optional filtering.
//
// The returned channel receives events matching the filter criteria. The
// cleanup function must be called to unsubscribe and prevent resource
// leaks.
//
// Example:
//
//	ch, cleanup := bus.Subscribe(ctx, Filter{
//		Types: []EventType{EventTaskFailed, EventTaskRetried},
//	}, 0)
//	defer cleanup()
//
//	for event := range ch {
//		// Process event
//	}
func (eb *DefaultEventBus) Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func()) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if bufferSize <= 0 {
		bufferSize = eb.options.defaultBufferSize
	}

	subscriberID := generateSubscriberID()
	subCtx, cancel := context.WithCancel(ctx)

	sub := &subscription{
		id:      subscriberID,
		ch:      make(chan Event, bufferSize),
		filter:  filter,
		ctx:     subCtx,
		cancel:  cancel,
		created: time.Now(),
	}

	eb.subscribers[subscriberID] = sub
	eb.options.metricsRecorder.RecordSubscriberAdded(subscriberID)

	cleanup := func() {
		eb.unsubscribe(subscriberID)
	}

	return sub.ch, cleanup
}

// unsubscribe removes a subscription and closes its channel.
func (eb *DefaultEventBus) unsubscribe(subscriberID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub, exists := eb.subscribers[subscriberID]
	if !exists {
		return
	}

	duration := time.Since(sub.created)
	sub.cancel()
	close(sub.ch)
	delete(eb.subscribers, subscriberID)

	eb.options.metricsRecorder.RecordSubscriberRemoved(subscriberID, duration)
}

// Close shuts down the event bus and closes all subscriber channels.
// Close is idempotent; multiple calls are safe.
func (eb *DefaultEventBus) Close() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return nil
	}

	eb.closed = true

	for id, sub := range eb.subscribers {
		sub.cancel()
		close(sub.ch)

		duration := time.Since(sub.created)
		eb.options.metricsRecorder.RecordSubscriberRemoved(id, duration)

		delete(eb.subscribers, id)
	}

	return nil
}

// SubscriberCount returns the current number of active subscribers.
// Useful for monitoring and testing.
func (eb *DefaultEventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

var (
	subscriberCounter uint64
	subscriberMutex   sync.Mutex
)

// generateSubscriberID generates a unique subscriber ID from a timestamp
// and a process-wide counter.
func generateSubscriberID() string {
	subscriberMutex.Lock()
	defer subscriberMutex.Unlock()
	subscriberCounter++
	return fmt.Sprintf("sub-%d-%d", time.Now().UnixNano(), subscriberCounter)
}

// noopErrorHandler is the default error handler that does nothing.
func noopErrorHandler(err error, context map[string]interface{}) {}

// noopMetricsRecorder is the default metrics recorder that does nothing.
type noopMetricsRecorder struct{}

func (noopMetricsRecorder) RecordEventPublished(eventType string, subscriberCount int) {}
func (noopMetricsRecorder) RecordEventDropped(eventType string, subscriberID string)   {}
func (noopMetricsRecorder) RecordSubscriberAdded(subscriberID string)                  {}
func (noopMetricsRecorder) RecordSubscriberRemoved(subscriberID string, duration time.Duration) {
}

var _ EventBus = (*DefaultEventBus)(nil)
