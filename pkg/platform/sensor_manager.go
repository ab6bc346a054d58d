package platform

import (
	"context"
	"sync"
	"time"

	"github.com/pldm-stack/pldm-go/pkg/log"
	"github.com/pldm-stack/pldm-go/pkg/requester"
	"github.com/pldm-stack/pldm-go/pkg/terminus"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// DefaultPollInterval is the default sensor polling cadence.
const DefaultPollInterval = 10 * time.Second

// pollTimer is the armed recurring timer for one terminus.
type pollTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// pollTask is the running polling task for one terminus. At most one
// exists per TID at any time.
type pollTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// SensorManager drives periodic sensor acquisition: one recurring timer
// and at most one cancellable polling task per terminus, round-robining
// that terminus's sensors.
type SensorManager struct {
	mu sync.Mutex

	registry  *terminus.Registry
	requester requester.Requester
	logger    log.Logger

	// baseCtx parents every timer and task so Stop cancels everything.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	pollInterval time.Duration

	// Armed timers and running tasks, keyed by TID.
	timers map[terminus.TID]*pollTimer
	tasks  map[terminus.TID]*pollTask

	// Completion code of the last finished polling task per TID.
	lastCompletion map[terminus.TID]wire.CompletionCode

	// This engine's copy of per-terminus availability.
	available map[terminus.TID]bool

	// Round-robin cursor per TID, persisted across polling cycles.
	cursor map[terminus.TID]int
}

// NewSensorManager creates a sensor manager over the shared registry and
// requester. A zero pollInterval selects DefaultPollInterval.
func NewSensorManager(registry *terminus.Registry, req requester.Requester, pollInterval time.Duration, logger log.Logger) *SensorManager {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SensorManager{
		registry:       registry,
		requester:      req,
		logger:         log.OrNoop(logger),
		baseCtx:        ctx,
		cancelBase:     cancel,
		pollInterval:   pollInterval,
		timers:         make(map[terminus.TID]*pollTimer),
		tasks:          make(map[terminus.TID]*pollTask),
		lastCompletion: make(map[terminus.TID]wire.CompletionCode),
		available:      make(map[terminus.TID]bool),
		cursor:         make(map[terminus.TID]int),
	}
}

// StartSensorPollTimer arms the recurring poll timer for tid. Idempotent:
// an already armed timer is left untouched.
func (sm *SensorManager) StartSensorPollTimer(tid terminus.TID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, armed := sm.timers[tid]; armed {
		return
	}

	ctx, cancel := context.WithCancel(sm.baseCtx)
	timer := &pollTimer{cancel: cancel, done: make(chan struct{})}
	sm.timers[tid] = timer

	go func() {
		defer close(timer.done)
		ticker := time.NewTicker(sm.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sm.StartPolling(tid)
			}
		}
	}()
}

// TimerArmed reports whether the poll timer for tid is armed.
func (sm *SensorManager) TimerArmed(tid terminus.TID) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	_, armed := sm.timers[tid]
	return armed
}

// StartPolling launches the polling task for tid. A no-op if a task is
// already running, if the terminus is not registered, or if it is not
// available (a task may only start while its terminus is reachable).
func (sm *SensorManager) StartPolling(tid terminus.TID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, running := sm.tasks[tid]; running {
		return
	}
	if !sm.available[tid] || !sm.registry.Contains(tid) {
		return
	}

	ctx, cancel := context.WithCancel(sm.baseCtx)
	task := &pollTask{cancel: cancel, done: make(chan struct{})}
	sm.tasks[tid] = task

	go func() {
		defer close(task.done)
		cc := sm.doSensorPollingTask(ctx, tid)

		sm.mu.Lock()
		delete(sm.tasks, tid)
		sm.lastCompletion[tid] = cc
		sm.mu.Unlock()
	}()
}

// TaskRunning reports whether a polling task is currently running for tid.
func (sm *SensorManager) TaskRunning(tid terminus.TID) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	_, running := sm.tasks[tid]
	return running
}

// LastCompletion returns the completion code of the last finished polling
// task for tid.
func (sm *SensorManager) LastCompletion(tid terminus.TID) (wire.CompletionCode, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	cc, ok := sm.lastCompletion[tid]
	return cc, ok
}

// doSensorPollingTask performs one polling cycle: one full round-robin
// pass over the terminus's sensors, resuming from the persisted cursor.
// Availability is rechecked before every individual sensor request so a
// mid-cycle disconnect halts further requests immediately.
func (sm *SensorManager) doSensorPollingTask(ctx context.Context, tid terminus.TID) wire.CompletionCode {
	t, err := sm.registry.Get(tid)
	if err != nil {
		return wire.CodeError
	}

	// Snapshot the sensor collection for this cycle. Sensors added after
	// the cycle starts become visible on the next pass.
	sensors := t.Sensors()
	n := len(sensors)
	if n == 0 {
		return wire.CodeSuccess
	}

	sm.logPolling(tid, log.PollingEvent{Action: log.PollCycleStart})

	cursor := sm.cursorFor(tid, n)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil || !sm.GetAvailableState(tid) || !sm.registry.Contains(tid) {
			sm.logPolling(tid, log.PollingEvent{Action: log.PollAborted})
			return wire.CodeNotReady
		}

		sensor := sensors[cursor]
		cursor = (cursor + 1) % n
		sm.setCursor(tid, cursor)

		// Individual read failures are absorbed; the cycle continues.
		if err := sm.getSensorReading(ctx, tid, t.EID(), sensor); err != nil {
			id := uint16(sensor.ID())
			sm.logPolling(tid, log.PollingEvent{Action: log.PollReadingFailed, SensorID: &id})
		}
	}

	sm.logPolling(tid, log.PollingEvent{Action: log.PollCycleComplete})
	return wire.CodeSuccess
}

// getSensorReading issues one GetSensorReading round trip and updates the
// sensor on success. On timeout or a malformed reply the sensor keeps its
// last value; a reply reporting the sensor non-operational marks it
// unavailable.
func (sm *SensorManager) getSensorReading(ctx context.Context, tid terminus.TID, eid uint8, sensor *terminus.NumericSensor) error {
	payload := wire.EncodeGetSensorReadingRequest(wire.GetSensorReadingRequest{
		SensorID: uint16(sensor.ID()),
	})

	respData, err := sm.requester.Send(ctx, eid, requester.CmdGetSensorReading, payload)
	if err != nil {
		return err
	}

	resp, err := wire.DecodeGetSensorReadingResponse(respData)
	if err != nil {
		return err
	}
	if !resp.CompletionCode.OK() {
		return &CompletionError{Code: resp.CompletionCode, Op: "GetSensorReading"}
	}

	switch resp.OperationalState {
	case wire.SensorEnabled:
		sensor.UpdateReading(resp.Reading, resp.OperationalState)
		id := uint16(sensor.ID())
		value := sensor.Reading().Value
		sm.logPolling(tid, log.PollingEvent{Action: log.PollReadingUpdated, SensorID: &id, Value: &value})
	case wire.SensorDisabled, wire.SensorUnavailable, wire.SensorFailed:
		sensor.MarkUnavailable()
	default:
		// Initializing/unknown: keep the last reading.
	}
	return nil
}

// DisableTerminusSensors marks every sensor of tid unavailable so stale
// readings are never presented as current.
func (sm *SensorManager) DisableTerminusSensors(tid terminus.TID) {
	t, err := sm.registry.Get(tid)
	if err != nil {
		return
	}
	t.MarkSensorsUnavailable()
}

// StopPollTimer disarms the recurring timer for tid. The running task, if
// any, is left to complete its cycle.
func (sm *SensorManager) StopPollTimer(tid terminus.TID) {
	sm.mu.Lock()
	timer, armed := sm.timers[tid]
	if armed {
		delete(sm.timers, tid)
	}
	sm.mu.Unlock()

	if armed {
		timer.cancel()
		<-timer.done
	}
}

// StopPolling cancels the running polling task for tid (cooperative: the
// task exits at its next availability check) and disarms the timer.
func (sm *SensorManager) StopPolling(tid terminus.TID) {
	sm.StopPollTimer(tid)

	sm.mu.Lock()
	task, running := sm.tasks[tid]
	sm.mu.Unlock()

	if running {
		task.cancel()
		<-task.done
	}

	sm.mu.Lock()
	delete(sm.cursor, tid)
	sm.mu.Unlock()
}

// UpdateAvailableState sets this engine's availability copy for tid.
func (sm *SensorManager) UpdateAvailableState(tid terminus.TID, available bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.available[tid] = available
}

// GetAvailableState returns this engine's availability copy for tid.
// Unknown TIDs report unavailable.
func (sm *SensorManager) GetAvailableState(tid terminus.TID) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.available[tid]
}

// forgetAvailableState drops the availability entry for a removed TID.
func (sm *SensorManager) forgetAvailableState(tid terminus.TID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.available, tid)
}

// Stop cancels every timer and task. The manager is unusable afterwards.
func (sm *SensorManager) Stop() {
	sm.cancelBase()

	sm.mu.Lock()
	timers := make([]*pollTimer, 0, len(sm.timers))
	for _, t := range sm.timers {
		timers = append(timers, t)
	}
	tasks := make([]*pollTask, 0, len(sm.tasks))
	for _, t := range sm.tasks {
		tasks = append(tasks, t)
	}
	sm.timers = make(map[terminus.TID]*pollTimer)
	sm.mu.Unlock()

	for _, t := range timers {
		<-t.done
	}
	for _, t := range tasks {
		<-t.done
	}
}

// cursorFor returns the persisted cursor for tid, clamped to the current
// collection size.
func (sm *SensorManager) cursorFor(tid terminus.TID, n int) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.cursor[tid] % n
}

// setCursor persists the cursor for tid.
func (sm *SensorManager) setCursor(tid terminus.TID, cursor int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cursor[tid] = cursor
}

// logPolling emits a polling event for tid.
func (sm *SensorManager) logPolling(tid terminus.TID, ev log.PollingEvent) {
	t := uint8(tid)
	sm.logger.Log(log.Event{
		Timestamp: timeNow(),
		Direction: log.DirectionLocal,
		Layer:     log.LayerPlatform,
		Category:  log.CategoryPolling,
		TID:       &t,
		Polling:   &ev,
	})
}
