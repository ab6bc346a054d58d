// Package sim provides in-process simulated PLDM termini for tests and
// for running the monitoring daemon without real endpoints.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pldm-stack/pldm-go/pkg/discovery"
	"github.com/pldm-stack/pldm-go/pkg/requester"
	"github.com/pldm-stack/pldm-go/pkg/version"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// Fabric errors.
var (
	ErrUnknownEndpoint = errors.New("sim: no terminus at endpoint")
	ErrOffline         = errors.New("sim: terminus is offline")
)

// Sensor is one simulated numeric sensor.
type Sensor struct {
	// ID identifies the sensor within its terminus.
	ID uint16

	// Name is the human-readable sensor name.
	Name string

	// Unit is the base unit label.
	Unit string

	// Resolution and Offset are the PDR conversion factors.
	Resolution float64
	Offset     float64

	// Reading is the raw value returned for GetSensorReading.
	Reading int32

	// DataSize is the wire width of Reading.
	DataSize wire.SensorDataSize

	// State is the operational state the terminus reports.
	State wire.SensorOperationalState

	// FailWith, when non-zero, makes GetSensorReading return this
	// completion code instead of a reading.
	FailWith wire.CompletionCode
}

// queuedEvent is an event awaiting retrieval through the poll command.
type queuedEvent struct {
	id    uint16
	class wire.EventClass
	data  []byte
}

// Terminus is one simulated terminus reachable at a fixed endpoint.
type Terminus struct {
	mu sync.Mutex

	eid  uint8
	tid  uint8
	name string

	sensors map[uint16]*Sensor

	// Offline makes all requests to this terminus fail, imitating an
	// unreachable endpoint.
	offline bool

	events      []queuedEvent
	nextEventID uint16

	// In-flight multipart transfer state.
	xferData   []byte
	xferOffset int

	// ChunkSize splits poll responses into parts. Zero serves the whole
	// body in one part.
	chunkSize int

	acked []uint16
}

// NewTerminus creates a simulated terminus.
func NewTerminus(eid, tid uint8, name string) *Terminus {
	return &Terminus{
		eid:         eid,
		tid:         tid,
		name:        name,
		sensors:     make(map[uint16]*Sensor),
		nextEventID: 1,
	}
}

// EID returns the terminus's endpoint ID.
func (t *Terminus) EID() uint8 {
	return t.eid
}

// AddSensor registers a simulated sensor.
func (t *Terminus) AddSensor(s *Sensor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sensors[s.ID] = s
}

// SetReading updates a sensor's raw reading and state.
func (t *Terminus) SetReading(sensorID uint16, raw int32, state wire.SensorOperationalState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sensors[sensorID]; ok {
		s.Reading = raw
		s.State = state
	}
}

// FailSensor scripts a completion-code failure for a sensor. CodeSuccess
// clears the failure.
func (t *Terminus) FailSensor(sensorID uint16, cc wire.CompletionCode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sensors[sensorID]; ok {
		s.FailWith = cc
	}
}

// SetOffline toggles reachability of the terminus.
func (t *Terminus) SetOffline(offline bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offline = offline
}

// SetChunkSize splits future poll responses into parts of at most n
// bytes. Zero restores single-part transfers.
func (t *Terminus) SetChunkSize(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunkSize = n
}

// QueueEvent enqueues an event for retrieval through the poll command
// and returns its assigned event ID.
func (t *Terminus) QueueEvent(class wire.EventClass, data []byte) uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextEventID
	t.nextEventID++
	if t.nextEventID == wire.EventIDFake {
		t.nextEventID = 1
	}
	t.events = append(t.events, queuedEvent{id: id, class: class, data: append([]byte(nil), data...)})
	return id
}

// AckedEvents returns the event IDs acknowledged so far, oldest first.
func (t *Terminus) AckedEvents() []uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]uint16, len(t.acked))
	copy(out, t.acked)
	return out
}

// PendingEvents returns the number of unacknowledged queued events.
func (t *Terminus) PendingEvents() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// EndpointInfo describes the terminus as a discovered endpoint, for
// feeding into the monitoring manager.
func (t *Terminus) EndpointInfo() discovery.EndpointInfo {
	return discovery.EndpointInfo{
		EID:            t.eid,
		NetworkID:      0,
		Name:           t.name,
		SupportedTypes: []uint8{0x02},
		Version:        version.Current,
		Commands: []uint8{
			uint8(requester.CmdPlatformEventMessage),
			uint8(requester.CmdPollForPlatformEventMessage),
			uint8(requester.CmdGetSensorReading),
		},
	}
}

// Fabric routes requests to simulated termini by endpoint ID. It
// implements the requester interface directly, bypassing framing.
type Fabric struct {
	mu       sync.RWMutex
	termini  map[uint8]*Terminus
	requests int
}

// NewFabric creates an empty fabric.
func NewFabric() *Fabric {
	return &Fabric{termini: make(map[uint8]*Terminus)}
}

// Add attaches a terminus to the fabric.
func (f *Fabric) Add(t *Terminus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.termini[t.eid] = t
}

// Terminus returns the terminus at eid, if any.
func (f *Fabric) Terminus(eid uint8) (*Terminus, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.termini[eid]
	return t, ok
}

// Requests returns the number of requests routed so far.
func (f *Fabric) Requests() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.requests
}

// Send implements the requester interface.
func (f *Fabric) Send(ctx context.Context, eid uint8, cmd requester.Command, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.requests++
	t, ok := f.termini[eid]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: EID %d", ErrUnknownEndpoint, eid)
	}
	return t.handle(cmd, payload)
}

var _ requester.Requester = (*Fabric)(nil)

// handle dispatches one request to the terminus.
func (t *Terminus) handle(cmd requester.Command, payload []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.offline {
		return nil, fmt.Errorf("%w: EID %d", ErrOffline, t.eid)
	}

	switch cmd {
	case requester.CmdGetSensorReading:
		return t.handleGetSensorReading(payload)
	case requester.CmdPollForPlatformEventMessage:
		return t.handlePoll(payload)
	default:
		return []byte{byte(wire.CodeUnsupportedCommand)}, nil
	}
}

func (t *Terminus) handleGetSensorReading(payload []byte) ([]byte, error) {
	req, err := wire.DecodeGetSensorReadingRequest(payload)
	if err != nil {
		return []byte{byte(wire.CodeInvalidLength)}, nil
	}

	s, ok := t.sensors[req.SensorID]
	if !ok {
		return []byte{byte(wire.CodeInvalidSensorID)}, nil
	}
	if s.FailWith != wire.CodeSuccess {
		return []byte{byte(s.FailWith)}, nil
	}

	return wire.EncodeGetSensorReadingResponse(wire.GetSensorReadingResponse{
		CompletionCode:   wire.CodeSuccess,
		DataSize:         s.DataSize,
		OperationalState: s.State,
		Reading:          s.Reading,
	})
}

func (t *Terminus) handlePoll(payload []byte) ([]byte, error) {
	req, err := wire.DecodePollRequest(payload)
	if err != nil {
		return []byte{byte(wire.CodeInvalidLength)}, nil
	}
	if req.FormatVersion != wire.PollFormatVersion {
		return []byte{byte(wire.CodeUnsupportedEventFormatVersion)}, nil
	}

	switch req.Operation {
	case wire.OpGetFirstPart:
		if len(t.events) == 0 {
			return wire.EncodePollResponse(wire.PollResponse{
				CompletionCode: wire.CodeSuccess,
				TID:            t.tid,
				EventID:        wire.EventIDNone,
				TransferFlag:   wire.FlagStartAndEnd,
			}), nil
		}
		t.xferData = t.events[0].data
		t.xferOffset = 0
		return t.servePart(wire.FlagStart), nil

	case wire.OpGetNextPart:
		if t.xferData == nil {
			return []byte{byte(wire.CodeEventIDNotValid)}, nil
		}
		return t.servePart(wire.FlagMiddle), nil

	case wire.OpAcknowledgementOnly:
		if len(t.events) == 0 || t.events[0].id != req.EventIDToAck {
			return []byte{byte(wire.CodeEventIDNotValid)}, nil
		}
		t.acked = append(t.acked, t.events[0].id)
		t.events = t.events[1:]
		t.xferData = nil
		t.xferOffset = 0
		return wire.EncodePollResponse(wire.PollResponse{
			CompletionCode: wire.CodeSuccess,
			TID:            t.tid,
			EventID:        req.EventIDToAck,
			TransferFlag:   wire.FlagStartAndEnd,
		}), nil

	default:
		return []byte{byte(wire.CodeInvalidData)}, nil
	}
}

// servePart emits the next slice of the in-flight transfer. startFlag is
// used when this is the opening part; it is upgraded to the combined
// start-and-end flag when the whole body fits.
func (t *Terminus) servePart(startFlag wire.TransferFlag) []byte {
	ev := t.events[0]
	remaining := t.xferData[t.xferOffset:]

	chunk := remaining
	if t.chunkSize > 0 && len(remaining) > t.chunkSize {
		chunk = remaining[:t.chunkSize]
	}
	final := t.xferOffset+len(chunk) == len(t.xferData)

	flag := startFlag
	if final {
		if startFlag == wire.FlagStart {
			flag = wire.FlagStartAndEnd
		} else {
			flag = wire.FlagEnd
		}
	}

	resp := wire.PollResponse{
		CompletionCode:         wire.CodeSuccess,
		TID:                    t.tid,
		EventID:                ev.id,
		NextDataTransferHandle: uint32(t.xferOffset + len(chunk)),
		TransferFlag:           flag,
		EventClass:             ev.class,
		EventData:              chunk,
	}
	if final {
		resp.Checksum = wire.EventDataChecksum(t.xferData)
	}

	t.xferOffset += len(chunk)
	return wire.EncodePollResponse(resp)
}
