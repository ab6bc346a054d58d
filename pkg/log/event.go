package log

import (
	"time"

	"github.com/google/uuid"

	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// Event represents a monitoring log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// TraceID correlates events belonging to one logical operation (UUID).
	TraceID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// TID is the terminus the event concerns, if resolved.
	TID *uint8 `cbor:"6,keyasint,omitempty"`

	// EID is the transport endpoint address, if known.
	EID *uint8 `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message      *MessageEvent      `cbor:"8,keyasint,omitempty"`  // Wire exchange
	Polling      *PollingEvent      `cbor:"9,keyasint,omitempty"`  // Polling engine
	Availability *AvailabilityEvent `cbor:"10,keyasint,omitempty"` // Reachability
	Dispatch     *DispatchEvent     `cbor:"11,keyasint,omitempty"` // Event routing
	Error        *ErrorEventData    `cbor:"12,keyasint,omitempty"` // Errors at any layer
}

// NewTraceID returns a fresh trace ID for correlating related events.
func NewTraceID() string {
	return uuid.NewString()
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
	// DirectionLocal indicates a local state transition.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerWire is the command encoding layer.
	LayerWire Layer = 0
	// LayerRequester is the request/response transaction layer.
	LayerRequester Layer = 1
	// LayerPlatform is the orchestration layer.
	LayerPlatform Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerWire:
		return "WIRE"
	case LayerRequester:
		return "REQUESTER"
	case LayerPlatform:
		return "PLATFORM"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a request/response exchange.
	CategoryMessage Category = 0
	// CategoryPolling indicates polling engine activity.
	CategoryPolling Category = 1
	// CategoryAvailability indicates a reachability transition.
	CategoryAvailability Category = 2
	// CategoryDispatch indicates platform event routing.
	CategoryDispatch Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryPolling:
		return "POLLING"
	case CategoryAvailability:
		return "AVAILABILITY"
	case CategoryDispatch:
		return "DISPATCH"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures one wire exchange with a terminus.
type MessageEvent struct {
	// Command is the PLDM command code.
	Command uint8 `cbor:"1,keyasint"`

	// InstanceID correlates the request/response pair.
	InstanceID uint8 `cbor:"2,keyasint"`

	// CompletionCode is the response code (responses only).
	CompletionCode *wire.CompletionCode `cbor:"3,keyasint,omitempty"`

	// RoundTrip is the request-to-response latency (responses only).
	// Stored as nanoseconds.
	RoundTrip *time.Duration `cbor:"4,keyasint,omitempty"`
}

// PollingAction describes polling engine activity.
type PollingAction uint8

const (
	// PollCycleStart marks the start of one round-robin pass.
	PollCycleStart PollingAction = 0
	// PollCycleComplete marks the end of one round-robin pass.
	PollCycleComplete PollingAction = 1
	// PollReadingUpdated marks a successful sensor reading.
	PollReadingUpdated PollingAction = 2
	// PollReadingFailed marks a failed sensor read (cycle continues).
	PollReadingFailed PollingAction = 3
	// PollAborted marks a cycle cut short by availability loss or stop.
	PollAborted PollingAction = 4
)

// String returns the polling action name.
func (a PollingAction) String() string {
	switch a {
	case PollCycleStart:
		return "CYCLE_START"
	case PollCycleComplete:
		return "CYCLE_COMPLETE"
	case PollReadingUpdated:
		return "READING_UPDATED"
	case PollReadingFailed:
		return "READING_FAILED"
	case PollAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// PollingEvent captures polling engine activity for one terminus.
type PollingEvent struct {
	// Action is the polling activity.
	Action PollingAction `cbor:"1,keyasint"`

	// SensorID is the sensor concerned (reading actions only).
	SensorID *uint16 `cbor:"2,keyasint,omitempty"`

	// Value is the converted reading (successful reads only).
	Value *float64 `cbor:"3,keyasint,omitempty"`
}

// AvailabilityEvent captures a terminus reachability transition.
type AvailabilityEvent struct {
	// Available is the new reachability state.
	Available bool `cbor:"1,keyasint"`

	// Reason describes what drove the transition.
	Reason string `cbor:"2,keyasint,omitempty"`
}

// DispatchEvent captures platform event routing.
type DispatchEvent struct {
	// EventClass is the platform event class tag.
	EventClass wire.EventClass `cbor:"1,keyasint"`

	// EventID is the event identifier (EventIDNone for push events).
	EventID uint16 `cbor:"2,keyasint"`

	// Handlers is the number of handlers invoked.
	Handlers int `cbor:"3,keyasint"`

	// Failures is the number of handlers that returned an error.
	Failures int `cbor:"4,keyasint,omitempty"`

	// CompletionCode is the code reported back to the transport.
	CompletionCode wire.CompletionCode `cbor:"5,keyasint"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
