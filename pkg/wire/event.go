package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Event decode errors.
var (
	ErrShortBuffer      = errors.New("event payload too short")
	ErrOffsetOutOfRange = errors.New("event data offset beyond payload length")
)

// EventClass tags the class of a platform event message.
type EventClass uint8

const (
	// ClassSensorEvent carries a sensor state change.
	ClassSensorEvent EventClass = 0x00

	// ClassEffecterEvent carries an effecter state change.
	ClassEffecterEvent EventClass = 0x01

	// ClassRedfishTaskExecutedEvent signals a completed Redfish task.
	ClassRedfishTaskExecutedEvent EventClass = 0x02

	// ClassRedfishMessageEvent carries a Redfish message registry entry.
	ClassRedfishMessageEvent EventClass = 0x03

	// ClassPDRRepositoryChgEvent signals a PDR repository change.
	ClassPDRRepositoryChgEvent EventClass = 0x04

	// ClassMessagePollEvent announces an event body to be pulled with
	// PollForPlatformEventMessage.
	ClassMessagePollEvent EventClass = 0x05

	// ClassHeartbeatElapsedEvent signals a heartbeat timer expiry.
	ClassHeartbeatElapsedEvent EventClass = 0x06

	// ClassCPEREvent carries a CPER fault record.
	ClassCPEREvent EventClass = 0x07

	// ClassOEMEventBase is the start of the OEM event class range.
	ClassOEMEventBase EventClass = 0xF0
)

// String returns the event class name.
func (c EventClass) String() string {
	switch c {
	case ClassSensorEvent:
		return "SENSOR_EVENT"
	case ClassEffecterEvent:
		return "EFFECTER_EVENT"
	case ClassRedfishTaskExecutedEvent:
		return "REDFISH_TASK_EXECUTED_EVENT"
	case ClassRedfishMessageEvent:
		return "REDFISH_MESSAGE_EVENT"
	case ClassPDRRepositoryChgEvent:
		return "PDR_REPOSITORY_CHG_EVENT"
	case ClassMessagePollEvent:
		return "MESSAGE_POLL_EVENT"
	case ClassHeartbeatElapsedEvent:
		return "HEARTBEAT_ELAPSED_EVENT"
	case ClassCPEREvent:
		return "CPER_EVENT"
	default:
		if c >= ClassOEMEventBase {
			return fmt.Sprintf("OEM_EVENT_%02X", uint8(c))
		}
		return "UNKNOWN"
	}
}

// Event IDs.
const (
	// EventIDNone is used for push-style events that carry no poll reference.
	EventIDNone uint16 = 0x0000

	// EventIDFake is reserved and never assigned to a real event.
	EventIDFake uint16 = 0xFFFF
)

// SliceEventData extracts the event-specific body from a raw event
// message payload. payloadLength is the declared length of payload and
// offset is where the body begins. The offset is validated before any
// arithmetic so a malformed combination can never produce a negative or
// out-of-range slice.
func SliceEventData(payload []byte, payloadLength, offset int) ([]byte, error) {
	if payloadLength < 0 || payloadLength > len(payload) {
		return nil, fmt.Errorf("%w: declared length %d, buffer %d", ErrShortBuffer, payloadLength, len(payload))
	}
	if offset < 0 || offset > payloadLength {
		return nil, fmt.Errorf("%w: offset %d, length %d", ErrOffsetOutOfRange, offset, payloadLength)
	}
	return payload[offset:payloadLength], nil
}

// SensorEventClass identifies the sub-class of a sensor event.
type SensorEventClass uint8

const (
	// SensorOpState reports an operational state change.
	SensorOpState SensorEventClass = 0x00

	// StateSensorState reports a state sensor transition.
	StateSensorState SensorEventClass = 0x01

	// NumericSensorState reports a numeric threshold crossing.
	NumericSensorState SensorEventClass = 0x02
)

// String returns the sensor event sub-class name.
func (c SensorEventClass) String() string {
	switch c {
	case SensorOpState:
		return "SENSOR_OP_STATE"
	case StateSensorState:
		return "STATE_SENSOR_STATE"
	case NumericSensorState:
		return "NUMERIC_SENSOR_STATE"
	default:
		return "UNKNOWN"
	}
}

// SensorEvent is a decoded sensor event body.
type SensorEvent struct {
	// SensorID identifies the sensor within the terminus.
	SensorID uint16

	// EventClass is the sensor event sub-class.
	EventClass SensorEventClass

	// EventState is the new event state (threshold band for numeric sensors).
	EventState uint8

	// PreviousEventState is the prior event state.
	PreviousEventState uint8

	// Reading is the present reading carried by numeric state events.
	// Zero for other sub-classes.
	Reading int32

	// DataSize describes the encoded width of Reading.
	DataSize SensorDataSize
}

// sensorEventFixedLen is sensorID(2) + eventClass(1).
const sensorEventFixedLen = 3

// DecodeSensorEvent decodes a sensor event body.
func DecodeSensorEvent(data []byte) (SensorEvent, error) {
	if len(data) < sensorEventFixedLen {
		return SensorEvent{}, fmt.Errorf("%w: sensor event needs %d bytes, have %d",
			ErrShortBuffer, sensorEventFixedLen, len(data))
	}

	ev := SensorEvent{
		SensorID:   binary.LittleEndian.Uint16(data[0:2]),
		EventClass: SensorEventClass(data[2]),
	}
	body := data[sensorEventFixedLen:]

	switch ev.EventClass {
	case SensorOpState:
		if len(body) < 2 {
			return SensorEvent{}, fmt.Errorf("%w: op state body", ErrShortBuffer)
		}
		ev.EventState = body[0]
		ev.PreviousEventState = body[1]

	case StateSensorState:
		if len(body) < 3 {
			return SensorEvent{}, fmt.Errorf("%w: state sensor body", ErrShortBuffer)
		}
		// body[0] is the sensor offset; the state pair follows.
		ev.EventState = body[1]
		ev.PreviousEventState = body[2]

	case NumericSensorState:
		if len(body) < 3 {
			return SensorEvent{}, fmt.Errorf("%w: numeric state body", ErrShortBuffer)
		}
		ev.EventState = body[0]
		ev.PreviousEventState = body[1]
		ev.DataSize = SensorDataSize(body[2])
		reading, err := decodeReading(ev.DataSize, body[3:])
		if err != nil {
			return SensorEvent{}, err
		}
		ev.Reading = reading

	default:
		return SensorEvent{}, fmt.Errorf("unknown sensor event class 0x%02x", uint8(ev.EventClass))
	}

	return ev, nil
}

// MessagePollEvent is the decoded body of a pldmMessagePollEvent, which
// announces an event that must be retrieved with
// PollForPlatformEventMessage.
type MessagePollEvent struct {
	// FormatVersion is the event format version (only 0x01 is defined).
	FormatVersion uint8

	// EventID references the announced event.
	EventID uint16

	// DataTransferHandle seeds the multipart retrieval.
	DataTransferHandle uint32
}

// messagePollEventLen is formatVersion(1) + eventID(2) + handle(4).
const messagePollEventLen = 7

// DecodeMessagePollEvent decodes a message poll event body.
func DecodeMessagePollEvent(data []byte) (MessagePollEvent, error) {
	if len(data) < messagePollEventLen {
		return MessagePollEvent{}, fmt.Errorf("%w: message poll event needs %d bytes, have %d",
			ErrShortBuffer, messagePollEventLen, len(data))
	}
	ev := MessagePollEvent{
		FormatVersion:      data[0],
		EventID:            binary.LittleEndian.Uint16(data[1:3]),
		DataTransferHandle: binary.LittleEndian.Uint32(data[3:7]),
	}
	if ev.EventID == EventIDNone || ev.EventID == EventIDFake {
		return MessagePollEvent{}, fmt.Errorf("reserved event ID 0x%04x in poll event", ev.EventID)
	}
	return ev, nil
}

// EncodeMessagePollEvent encodes a message poll event body. Used by the
// terminus simulator and tests.
func EncodeMessagePollEvent(ev MessagePollEvent) []byte {
	buf := make([]byte, messagePollEventLen)
	buf[0] = ev.FormatVersion
	binary.LittleEndian.PutUint16(buf[1:3], ev.EventID)
	binary.LittleEndian.PutUint32(buf[3:7], ev.DataTransferHandle)
	return buf
}
