package platform

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pldm-stack/pldm-go/pkg/log"
	"github.com/pldm-stack/pldm-go/pkg/terminus"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// EventHandlerFunc handles one dispatched platform event. eventID is
// wire.EventIDNone for push-style events.
type EventHandlerFunc func(ctx context.Context, tid terminus.TID, eventID uint16, class wire.EventClass, data []byte) error

// EventManager routes inbound platform events to registered handlers by
// event class. It keeps its own copy of per-terminus availability,
// updated in lockstep with the sensor engine's copy by the Manager.
type EventManager struct {
	mu sync.RWMutex

	registry *terminus.Registry
	logger   log.Logger

	// Registered handlers per event class. Registration is additive:
	// multiple handlers per class fan out in registration order.
	handlers map[wire.EventClass][]EventHandlerFunc

	// This engine's copy of per-terminus availability.
	available map[terminus.TID]bool

	// dispatchFailures counts handler errors that were absorbed by the
	// always-acknowledge contract. Observable via DispatchFailures.
	dispatchFailures atomic.Uint64
}

// NewEventManager creates an event manager over the shared registry. The
// built-in sensor event handler is pre-registered.
func NewEventManager(registry *terminus.Registry, logger log.Logger) *EventManager {
	em := &EventManager{
		registry:  registry,
		logger:    log.OrNoop(logger),
		handlers:  make(map[wire.EventClass][]EventHandlerFunc),
		available: make(map[terminus.TID]bool),
	}
	em.RegisterPolledEventHandler(wire.ClassSensorEvent, em.handleSensorEvent)
	return em
}

// RegisterPolledEventHandler registers handlers for an event class.
// Additive: earlier registrations for the class are kept.
func (em *EventManager) RegisterPolledEventHandler(class wire.EventClass, handlers ...EventHandlerFunc) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.handlers[class] = append(em.handlers[class], handlers...)
}

// HandlePlatformEvent dispatches one inbound event to the handlers
// registered for its class.
//
// Events for a TID not in the registry are not dispatched and report an
// error code. An event class with no registered handlers reports
// unsupported. Handler failures are counted and logged but the dispatch
// still reports success: the protocol acknowledgement must not reflect
// application-level outcome.
func (em *EventManager) HandlePlatformEvent(ctx context.Context, tid terminus.TID, eventID uint16, class wire.EventClass, data []byte) wire.CompletionCode {
	if !em.registry.Contains(tid) {
		em.logDispatch(tid, log.DispatchEvent{
			EventClass:     class,
			EventID:        eventID,
			CompletionCode: wire.CodeError,
		})
		return wire.CodeError
	}

	em.mu.RLock()
	handlers := em.handlers[class]
	em.mu.RUnlock()

	if len(handlers) == 0 {
		em.logDispatch(tid, log.DispatchEvent{
			EventClass:     class,
			EventID:        eventID,
			CompletionCode: wire.CodeUnsupportedCommand,
		})
		return wire.CodeUnsupportedCommand
	}

	failures := 0
	for _, h := range handlers {
		if err := h(ctx, tid, eventID, class, data); err != nil {
			failures++
			em.dispatchFailures.Add(1)
			em.logError(err.Error(), "event handler")
		}
	}

	em.logDispatch(tid, log.DispatchEvent{
		EventClass:     class,
		EventID:        eventID,
		Handlers:       len(handlers),
		Failures:       failures,
		CompletionCode: wire.CodeSuccess,
	})
	return wire.CodeSuccess
}

// handleSensorEvent is the built-in handler for sensor events: it decodes
// the event body and refreshes the affected sensor's state.
func (em *EventManager) handleSensorEvent(ctx context.Context, tid terminus.TID, eventID uint16, class wire.EventClass, data []byte) error {
	ev, err := wire.DecodeSensorEvent(data)
	if err != nil {
		return err
	}

	t, err := em.registry.Get(tid)
	if err != nil {
		return err
	}
	sensor, err := t.Sensor(terminus.SensorID(ev.SensorID))
	if err != nil {
		return err
	}

	switch ev.EventClass {
	case wire.NumericSensorState:
		sensor.UpdateReading(ev.Reading, wire.SensorEnabled)
	case wire.SensorOpState:
		if wire.SensorOperationalState(ev.EventState) != wire.SensorEnabled {
			sensor.MarkUnavailable()
		}
	default:
		// State sensor transitions carry no numeric reading.
	}
	return nil
}

// UpdateAvailableState sets this engine's availability copy for tid.
func (em *EventManager) UpdateAvailableState(tid terminus.TID, available bool) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.available[tid] = available
}

// GetAvailableState returns this engine's availability copy for tid.
// Unknown TIDs report unavailable.
func (em *EventManager) GetAvailableState(tid terminus.TID) bool {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.available[tid]
}

// forgetAvailableState drops the availability entry for a removed TID.
func (em *EventManager) forgetAvailableState(tid terminus.TID) {
	em.mu.Lock()
	defer em.mu.Unlock()
	delete(em.available, tid)
}

// DispatchFailures returns the number of handler errors absorbed so far.
func (em *EventManager) DispatchFailures() uint64 {
	return em.dispatchFailures.Load()
}

// logDispatch emits a dispatch event for tid.
func (em *EventManager) logDispatch(tid terminus.TID, ev log.DispatchEvent) {
	t := uint8(tid)
	em.logger.Log(log.Event{
		Timestamp: timeNow(),
		Direction: log.DirectionIn,
		Layer:     log.LayerPlatform,
		Category:  log.CategoryDispatch,
		TID:       &t,
		Dispatch:  &ev,
	})
}

// logError emits an error event.
func (em *EventManager) logError(msg, context string) {
	em.logger.Log(log.Event{
		Timestamp: timeNow(),
		Direction: log.DirectionLocal,
		Layer:     log.LayerPlatform,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Layer: log.LayerPlatform, Message: msg, Context: context},
	})
}
