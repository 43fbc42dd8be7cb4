// Package event provides a pub-sub event bus for decoupled inter-component
// communication in the playground.
//
// The editing surface, the runtime registry, the orchestrator and the host UI
// talk to each other through events rather than direct method calls.
// Components can publish events without knowing who will receive them, and
// subscribe to events without knowing who will produce them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Source:
//   - [SourceChangedEvent]: the editor buffer mutated
//   - [SourceLoadedEvent]: a brand-new document replaced the buffer
//
// Validation:
//   - [ValidationRequestedEvent], [ValidationCompletedEvent]
//   - [ValidationAppliedEvent]: a current result reached the editor
//   - [ValidationDiscardedEvent]: a result for a superseded snapshot was dropped
//
// Runtime:
//   - [RuntimeChangedEvent]: the registry's active runtime was (re)assigned
//
// Derived views and actions:
//   - [PreviewRefreshedEvent], [TitleChangedEvent], [CSPHashesEvent]
//   - [FormatCompletedEvent], [TemplateLoadedEvent], [EmailImportedEvent]
//   - [AffordanceChangedEvent], [NotificationEvent], [ActionTriggeredEvent], [LoadingEvent]
//
// # Delivery Semantics
//
// Publish runs every handler registered for the topic synchronously, in the
// caller's goroutine, in registration order. Wildcard handlers run after
// topic handlers. A handler may publish again; the nested publish runs to
// completion before the outer one continues. There is no queue and no
// history: a subscriber registered after a publish never sees it.
//
// A panicking handler is recovered, logged through the bus logger and
// counted in [Stats]; the remaining handlers still run.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//
//	bus.Subscribe(event.TopicRuntimeChanged, func(e event.Event) {
//	    changed := e.(event.RuntimeChangedEvent)
//	    logger.Info("runtime changed", "from", changed.PreviousID, "to", changed.CurrentID)
//	})
//
//	// One handler for several topics
//	bus.SubscribeMany([]string{event.TopicTitleChanged, event.TopicCSPUpdated}, redraw)
//
//	bus.Publish(event.NewTitleChangedEvent("Hello AMP"))
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action", see the Topic constants.
package event
