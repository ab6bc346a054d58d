package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pldm-stack/pldm-go/pkg/discovery"
	"github.com/pldm-stack/pldm-go/pkg/log"
	"github.com/pldm-stack/pldm-go/pkg/requester"
	"github.com/pldm-stack/pldm-go/pkg/terminus"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// PollHandler is an OEM event polling method. Handlers report whether
// they handled the TID through their completion code.
type PollHandler func(ctx context.Context, tid terminus.TID) (wire.CompletionCode, error)

// Config configures a Manager.
type Config struct {
	// PollInterval is the sensor polling cadence. Zero selects
	// DefaultPollInterval.
	PollInterval time.Duration

	// Initializer populates a terminus model after discovery.
	Initializer Initializer

	// Logger receives monitoring events. Nil disables logging.
	Logger log.Logger
}

// Manager is the single ingress/egress surface of the platform
// monitoring control plane. It composes the terminus, sensor, and event
// engines over one shared registry and forwards transport-level
// callbacks into lifecycle transitions.
type Manager struct {
	registry *terminus.Registry
	logger   log.Logger

	terminusManager *TerminusManager
	sensorManager   *SensorManager
	eventManager    *EventManager

	// availMu makes the two-engine availability propagation one logical
	// update: no reader observes one engine's copy updated while the
	// other's is stale.
	availMu sync.Mutex

	// OEM poll handlers, tried in registration order.
	pollMu       sync.Mutex
	pollHandlers []PollHandler
}

// NewManager creates a manager with its child engines wired together.
func NewManager(registry *terminus.Registry, req requester.Requester, cfg Config) *Manager {
	logger := log.OrNoop(cfg.Logger)

	m := &Manager{
		registry:        registry,
		logger:          logger,
		terminusManager: NewTerminusManager(registry, cfg.Initializer, logger),
		sensorManager:   NewSensorManager(registry, req, cfg.PollInterval, logger),
		eventManager:    NewEventManager(registry, logger),
	}

	m.terminusManager.setHooks(m.BeforeDiscoverTerminus, m.AfterDiscoverTerminus)
	m.terminusManager.setLifecycleCallbacks(m.onTerminusReady, m.onTerminusRemoved)
	return m
}

// Registry returns the shared terminus registry.
func (m *Manager) Registry() *terminus.Registry {
	return m.registry
}

// TerminusManager returns the lifecycle coordinator.
func (m *Manager) TerminusManager() *TerminusManager {
	return m.terminusManager
}

// SensorManager returns the polling engine.
func (m *Manager) SensorManager() *SensorManager {
	return m.sensorManager
}

// EventManager returns the event dispatch engine.
func (m *Manager) EventManager() *EventManager {
	return m.eventManager
}

// BeforeDiscoverTerminus runs immediately before a discovery pass.
func (m *Manager) BeforeDiscoverTerminus(ctx context.Context) wire.CompletionCode {
	return wire.CodeSuccess
}

// AfterDiscoverTerminus runs immediately after a discovery pass.
func (m *Manager) AfterDiscoverTerminus(ctx context.Context) wire.CompletionCode {
	return wire.CodeSuccess
}

// onTerminusReady runs when discovery has populated a terminus: both
// engines learn the terminus is available and its poll timer is armed.
func (m *Manager) onTerminusReady(tid terminus.TID) {
	m.availMu.Lock()
	m.sensorManager.UpdateAvailableState(tid, true)
	m.eventManager.UpdateAvailableState(tid, true)
	m.availMu.Unlock()

	m.sensorManager.StartSensorPollTimer(tid)
	m.logAvailability(tid, true, "discovered")
}

// onTerminusRemoved runs before a terminus leaves the registry: polling
// is stopped and both engines forget the TID.
func (m *Manager) onTerminusRemoved(tid terminus.TID) {
	m.sensorManager.StopPolling(tid)

	m.availMu.Lock()
	m.sensorManager.forgetAvailableState(tid)
	m.eventManager.forgetAvailableState(tid)
	m.availMu.Unlock()

	m.logAvailability(tid, false, "removed")
}

// HandleMctpEndpoints forwards a batch of added endpoints into discovery.
func (m *Manager) HandleMctpEndpoints(ctx context.Context, added []discovery.EndpointInfo) {
	m.terminusManager.DiscoverEndpoints(ctx, added)
}

// HandleRemovedMctpEndpoints forwards a batch of removed endpoints into
// terminus retraction.
func (m *Manager) HandleRemovedMctpEndpoints(ctx context.Context, removed []discovery.EndpointInfo) {
	m.terminusManager.RemoveEndpoints(ctx, removed)
}

// UpdateMctpEndpointAvailability applies an endpoint reachability change.
// For endpoints resolved to a TID: becoming available re-arms the poll
// timer; becoming unavailable NaNs the terminus's sensors and disarms the
// timer; both propagate to the two engines' availability copies.
// Unresolved endpoints are recorded at the endpoint level only.
func (m *Manager) UpdateMctpEndpointAvailability(ctx context.Context, ep discovery.EndpointInfo, available bool) {
	if tid, ok := m.terminusManager.ToTID(ep.Key()); ok {
		if available {
			m.sensorManager.StartSensorPollTimer(tid)
		} else {
			m.sensorManager.DisableTerminusSensors(tid)
			m.sensorManager.StopPollTimer(tid)
		}
		m.UpdateAvailableState(tid, available)
	}
	m.terminusManager.UpdateEndpointAvailability(ep.Key(), available)
}

// UpdateAvailableState propagates availability to both engines as one
// logical update. A no-op for TIDs not in the registry.
func (m *Manager) UpdateAvailableState(tid terminus.TID, available bool) {
	if !m.registry.Contains(tid) {
		return
	}

	m.availMu.Lock()
	m.sensorManager.UpdateAvailableState(tid, available)
	m.eventManager.UpdateAvailableState(tid, available)
	m.availMu.Unlock()

	m.logAvailability(tid, available, "endpoint notification")
}

// StartSensorPolling starts the polling task for tid.
func (m *Manager) StartSensorPolling(tid terminus.TID) {
	m.sensorManager.StartPolling(tid)
}

// StopSensorPolling stops the polling task and timer for tid.
func (m *Manager) StopSensorPolling(tid terminus.TID) {
	m.sensorManager.StopPolling(tid)
}

// HandleSensorEvent ingests a push-style sensor event. payloadLength is
// the declared length of payload; eventDataOffset marks where the
// event-specific body begins. A malformed offset/length combination is
// rejected before any dispatch.
func (m *Manager) HandleSensorEvent(ctx context.Context, payload []byte, payloadLength int, tid terminus.TID, eventDataOffset int) wire.CompletionCode {
	return m.handlePushEvent(ctx, payload, payloadLength, tid, eventDataOffset, wire.ClassSensorEvent)
}

// HandleCperEvent ingests a push-style CPER fault record event.
func (m *Manager) HandleCperEvent(ctx context.Context, payload []byte, payloadLength int, tid terminus.TID, eventDataOffset int) wire.CompletionCode {
	return m.handlePushEvent(ctx, payload, payloadLength, tid, eventDataOffset, wire.ClassCPEREvent)
}

// HandleMessagePollEvent ingests a push-style message poll announcement.
// The registered handler for the message-poll class typically follows up
// with PollForPlatformEvent to retrieve the announced body.
func (m *Manager) HandleMessagePollEvent(ctx context.Context, payload []byte, payloadLength int, tid terminus.TID, eventDataOffset int) wire.CompletionCode {
	return m.handlePushEvent(ctx, payload, payloadLength, tid, eventDataOffset, wire.ClassMessagePollEvent)
}

// handlePushEvent slices the event body out of the raw payload and
// dispatches it. The caller is always acknowledged with success once the
// payload is well-formed; handler outcomes surface through logging and
// the event engine's failure counter only.
func (m *Manager) handlePushEvent(ctx context.Context, payload []byte, payloadLength int, tid terminus.TID, eventDataOffset int, class wire.EventClass) wire.CompletionCode {
	data, err := wire.SliceEventData(payload, payloadLength, eventDataOffset)
	if err != nil {
		m.logError(err.Error(), "push event "+class.String())
		return wire.CodeInvalidLength
	}

	m.eventManager.HandlePlatformEvent(ctx, tid, wire.EventIDNone, class, data)
	return wire.CodeSuccess
}

// HandlePolledCperEvent dispatches a CPER event whose body is already
// materialized (e.g. retrieved by an OEM poll method), with the
// caller-supplied event ID.
func (m *Manager) HandlePolledCperEvent(ctx context.Context, tid terminus.TID, eventID uint16, data []byte) wire.CompletionCode {
	return m.eventManager.HandlePlatformEvent(ctx, tid, eventID, wire.ClassCPEREvent, data)
}

// RegisterPolledEventHandler registers handlers for an event class in the
// event dispatch engine. Additive.
func (m *Manager) RegisterPolledEventHandler(class wire.EventClass, handlers ...EventHandlerFunc) {
	m.eventManager.RegisterPolledEventHandler(class, handlers...)
}

// PollForPlatformEvent retrieves the full body of an event previously
// announced by a message poll event, reassembling multipart transfers,
// verifying the integrity checksum, dispatching the assembled body, and
// acknowledging the event. It suspends until the remote replies or the
// request times out.
func (m *Manager) PollForPlatformEvent(ctx context.Context, tid terminus.TID, pollEventID uint16, transferHandle uint32) (wire.CompletionCode, error) {
	t, err := m.registry.Get(tid)
	if err != nil {
		return wire.CodeError, err
	}
	if !m.eventManager.GetAvailableState(tid) {
		return wire.CodeNotReady, nil
	}
	eid := t.EID()

	var (
		assembled []byte
		eventID   uint16
		class     wire.EventClass
		op        = wire.OpGetFirstPart
		handle    = transferHandle
	)

	for {
		if !m.eventManager.GetAvailableState(tid) {
			return wire.CodeNotReady, nil
		}

		resp, err := m.pollOnce(ctx, eid, wire.PollRequest{
			FormatVersion:      wire.PollFormatVersion,
			Operation:          op,
			DataTransferHandle: handle,
			EventIDToAck:       wire.EventIDNone,
		})
		if err != nil {
			return wire.CodeError, err
		}
		if !resp.CompletionCode.OK() {
			return resp.CompletionCode, &CompletionError{Code: resp.CompletionCode, Op: "PollForPlatformEventMessage"}
		}
		if resp.EventID == wire.EventIDNone {
			// Nothing pending on the terminus side.
			return wire.CodeSuccess, nil
		}

		if op == wire.OpGetFirstPart {
			eventID = resp.EventID
			class = resp.EventClass
			if pollEventID != wire.EventIDNone && eventID != pollEventID {
				m.logError(fmt.Sprintf("poll returned event 0x%04x, announced 0x%04x", eventID, pollEventID), "poll for event")
			}
		}
		assembled = append(assembled, resp.EventData...)

		if resp.TransferFlag.Final() {
			if sum := wire.EventDataChecksum(assembled); sum != resp.Checksum {
				return wire.CodeError, fmt.Errorf("event data checksum mismatch: computed %08x, reported %08x", sum, resp.Checksum)
			}
			break
		}
		op = wire.OpGetNextPart
		handle = resp.NextDataTransferHandle
	}

	m.eventManager.HandlePlatformEvent(ctx, tid, eventID, class, assembled)

	// Acknowledge even if the local handlers failed; the terminus only
	// needs to know the body was received.
	ackResp, err := m.pollOnce(ctx, eid, wire.PollRequest{
		FormatVersion: wire.PollFormatVersion,
		Operation:     wire.OpAcknowledgementOnly,
		EventIDToAck:  eventID,
	})
	if err != nil {
		return wire.CodeError, err
	}
	return ackResp.CompletionCode, nil
}

// pollOnce performs one PollForPlatformEventMessage round trip.
func (m *Manager) pollOnce(ctx context.Context, eid uint8, req wire.PollRequest) (wire.PollResponse, error) {
	respData, err := m.sensorManager.requester.Send(ctx, eid, requester.CmdPollForPlatformEventMessage, wire.EncodePollRequest(req))
	if err != nil {
		return wire.PollResponse{}, err
	}
	return wire.DecodePollResponse(respData)
}

// RegisterOEMPollMethod appends an OEM poll handler to the chain.
func (m *Manager) RegisterOEMPollMethod(handler PollHandler) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()
	m.pollHandlers = append(m.pollHandlers, handler)
}

// OEMPollForPlatformEvent tries each registered OEM poll handler in
// registration order, short-circuiting on the first one that handles the
// TID. Reports unsupported when no handler claims it.
func (m *Manager) OEMPollForPlatformEvent(ctx context.Context, tid terminus.TID) wire.CompletionCode {
	m.pollMu.Lock()
	handlers := make([]PollHandler, len(m.pollHandlers))
	copy(handlers, m.pollHandlers)
	m.pollMu.Unlock()

	for _, h := range handlers {
		cc, err := h(ctx, tid)
		if err != nil {
			m.logError(err.Error(), "OEM poll handler")
			continue
		}
		if cc.OK() {
			return wire.CodeSuccess
		}
	}
	return wire.CodeUnsupportedCommand
}

// GetActiveEidByName resolves a terminus name to the endpoint ID of its
// available terminus. Pure query.
func (m *Manager) GetActiveEidByName(name string) (uint8, bool) {
	return m.terminusManager.GetActiveEIDByName(name)
}

// Stop shuts down all polling activity.
func (m *Manager) Stop() {
	m.sensorManager.Stop()
}

// logAvailability emits an availability event for tid.
func (m *Manager) logAvailability(tid terminus.TID, available bool, reason string) {
	t := uint8(tid)
	m.logger.Log(log.Event{
		Timestamp:    timeNow(),
		Direction:    log.DirectionLocal,
		Layer:        log.LayerPlatform,
		Category:     log.CategoryAvailability,
		TID:          &t,
		Availability: &log.AvailabilityEvent{Available: available, Reason: reason},
	})
}

// logError emits an error event.
func (m *Manager) logError(msg, context string) {
	m.logger.Log(log.Event{
		Timestamp: timeNow(),
		Direction: log.DirectionLocal,
		Layer:     log.LayerPlatform,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Layer: log.LayerPlatform, Message: msg, Context: context},
	})
}
