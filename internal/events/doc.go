// Package events provides an in-process event bus for run observability.
//
// The orchestrator publishes run, wave and task lifecycle events to the
// bus; subscribers such as CLI progress output or log sinks consume them
// without sitting in the execution path.
//
// # Overview
//
// The EventBus provides:
//   - Thread-safe concurrent publishing and subscribing
//   - Flexible filtering by event type, run id and task id
//   - Non-blocking publish to prevent slow subscribers from affecting publishers
//   - Graceful slow-consumer handling with event dropping
//   - Configurable buffer sizes and error handling
//   - Metrics recording for monitoring
//
// # Slow Consumer Handling
//
// If a subscriber's buffer fills up, the EventBus will:
//  1. Drop the event for that subscriber only
//  2. Call the error handler with context
//  3. Record metrics via the metrics recorder
//  4. Continue delivering to other subscribers
//
// This prevents one slow subscriber from blocking publishers or other
// subscribers.
//
// # Usage Example
//
//	bus := events.NewEventBus(
//		events.WithDefaultBufferSize(500),
//		events.WithErrorHandler(func(err error, ctx map[string]interface{}) {
//			log.Warn("event bus error", "error", err, "context", ctx)
//		}),
//	)
//	defer bus.Close()
//
//	ch, cleanup := bus.Subscribe(ctx, events.Filter{
//		Types: []events.EventType{
//			events.EventTaskFailed,
//			events.EventTaskRetried,
//		},
//		RunID: runID,
//	}, 0) // 0 = use default buffer size
//	defer cleanup()
//
//	go func() {
//		for event := range ch {
//			switch event.Type {
//			case events.EventTaskFailed:
//				// Handle failure
//			case events.EventTaskRetried:
//				// Handle retry
//			}
//		}
//	}()
//
//	err := bus.Publish(ctx, events.Event{
//		Type:      events.EventRunStarted,
//		Timestamp: time.Now(),
//		RunID:     runID,
//		Payload: events.RunStartedPayload{
//			RunID:     runID,
//			GraphName: "nightly-build",
//			TaskCount: 5,
//			WaveCount: 3,
//		},
//	})
//
// # Event Types
//
// Events are organized into categories:
//   - Run lifecycle: run.started, run.progress, run.completed, run.aborted
//   - Waves: wave.started, wave.completed
//   - Tasks: task.started, task.completed, task.failed, task.retried,
//     task.skipped, task.cancelled
//
// Each event type has a corresponding payload type (e.g. RunStartedPayload)
// that defines the structured data for that event.
//
// # Filtering
//
// All filter fields use AND logic (an event must match every specified
// criterion). Empty fields act as wildcards (match all).
package events
