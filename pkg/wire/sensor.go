package wire

import (
	"encoding/binary"
	"fmt"
)

// SensorDataSize describes the encoded width of a sensor reading.
type SensorDataSize uint8

const (
	// DataSizeUint8 is an unsigned 8-bit reading.
	DataSizeUint8 SensorDataSize = 0
	// DataSizeSint8 is a signed 8-bit reading.
	DataSizeSint8 SensorDataSize = 1
	// DataSizeUint16 is an unsigned 16-bit reading.
	DataSizeUint16 SensorDataSize = 2
	// DataSizeSint16 is a signed 16-bit reading.
	DataSizeSint16 SensorDataSize = 3
	// DataSizeUint32 is an unsigned 32-bit reading.
	DataSizeUint32 SensorDataSize = 4
	// DataSizeSint32 is a signed 32-bit reading.
	DataSizeSint32 SensorDataSize = 5
)

// width returns the byte width of the data size, or 0 if unknown.
func (s SensorDataSize) width() int {
	switch s {
	case DataSizeUint8, DataSizeSint8:
		return 1
	case DataSizeUint16, DataSizeSint16:
		return 2
	case DataSizeUint32, DataSizeSint32:
		return 4
	default:
		return 0
	}
}

// SensorOperationalState is the operational state reported by a terminus
// for one of its sensors.
type SensorOperationalState uint8

const (
	// SensorEnabled means the sensor is operating and readings are valid.
	SensorEnabled SensorOperationalState = 0
	// SensorDisabled means the sensor is administratively disabled.
	SensorDisabled SensorOperationalState = 1
	// SensorUnavailable means the sensor cannot currently produce readings.
	SensorUnavailable SensorOperationalState = 2
	// SensorStatusUnknown means the terminus cannot determine sensor state.
	SensorStatusUnknown SensorOperationalState = 3
	// SensorFailed means the sensor hardware has failed.
	SensorFailed SensorOperationalState = 4
	// SensorInitializing means the sensor has not produced a reading yet.
	SensorInitializing SensorOperationalState = 5
)

// String returns the operational state name.
func (s SensorOperationalState) String() string {
	switch s {
	case SensorEnabled:
		return "ENABLED"
	case SensorDisabled:
		return "DISABLED"
	case SensorUnavailable:
		return "UNAVAILABLE"
	case SensorStatusUnknown:
		return "STATUS_UNKNOWN"
	case SensorFailed:
		return "FAILED"
	case SensorInitializing:
		return "INITIALIZING"
	default:
		return "UNKNOWN"
	}
}

// GetSensorReadingRequest asks a terminus for the present reading of one
// numeric sensor.
type GetSensorReadingRequest struct {
	// SensorID identifies the sensor within the terminus.
	SensorID uint16

	// RearmEventState requests re-arming of the sensor's event generation.
	RearmEventState bool
}

// getSensorReadingReqLen is sensorID(2) + rearm(1).
const getSensorReadingReqLen = 3

// EncodeGetSensorReadingRequest encodes the request payload.
func EncodeGetSensorReadingRequest(req GetSensorReadingRequest) []byte {
	buf := make([]byte, getSensorReadingReqLen)
	binary.LittleEndian.PutUint16(buf[0:2], req.SensorID)
	if req.RearmEventState {
		buf[2] = 1
	}
	return buf
}

// DecodeGetSensorReadingRequest decodes the request payload. Used by the
// terminus simulator.
func DecodeGetSensorReadingRequest(data []byte) (GetSensorReadingRequest, error) {
	if len(data) < getSensorReadingReqLen {
		return GetSensorReadingRequest{}, fmt.Errorf("%w: GetSensorReading request needs %d bytes, have %d",
			ErrShortBuffer, getSensorReadingReqLen, len(data))
	}
	return GetSensorReadingRequest{
		SensorID:        binary.LittleEndian.Uint16(data[0:2]),
		RearmEventState: data[2] != 0,
	}, nil
}

// GetSensorReadingResponse is the decoded response to GetSensorReading.
type GetSensorReadingResponse struct {
	// CompletionCode is the terminus's completion code.
	CompletionCode CompletionCode

	// DataSize describes the width of Reading on the wire.
	DataSize SensorDataSize

	// OperationalState is the sensor's operational state.
	OperationalState SensorOperationalState

	// EventMessageEnable reports the sensor's event generation setting.
	EventMessageEnable uint8

	// PresentState is the current event state (threshold band).
	PresentState uint8

	// PreviousState is the prior event state.
	PreviousState uint8

	// EventState mirrors PresentState for threshold sensors.
	EventState uint8

	// Reading is the present reading, sign-extended to int32.
	Reading int32
}

// getSensorReadingRespFixedLen is completionCode(1) + dataSize(1) +
// opState(1) + eventMsgEnable(1) + presentState(1) + previousState(1) +
// eventState(1).
const getSensorReadingRespFixedLen = 7

// EncodeGetSensorReadingResponse encodes a response payload. Used by the
// terminus simulator and tests.
func EncodeGetSensorReadingResponse(resp GetSensorReadingResponse) ([]byte, error) {
	width := resp.DataSize.width()
	if width == 0 {
		return nil, fmt.Errorf("invalid sensor data size %d", resp.DataSize)
	}

	buf := make([]byte, getSensorReadingRespFixedLen, getSensorReadingRespFixedLen+width)
	buf[0] = byte(resp.CompletionCode)
	buf[1] = byte(resp.DataSize)
	buf[2] = byte(resp.OperationalState)
	buf[3] = resp.EventMessageEnable
	buf[4] = resp.PresentState
	buf[5] = resp.PreviousState
	buf[6] = resp.EventState

	switch width {
	case 1:
		buf = append(buf, byte(resp.Reading))
	case 2:
		buf = binary.LittleEndian.AppendUint16(buf, uint16(resp.Reading))
	case 4:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(resp.Reading))
	}
	return buf, nil
}

// DecodeGetSensorReadingResponse decodes a response payload.
func DecodeGetSensorReadingResponse(data []byte) (GetSensorReadingResponse, error) {
	if len(data) < 1 {
		return GetSensorReadingResponse{}, fmt.Errorf("%w: empty GetSensorReading response", ErrShortBuffer)
	}

	resp := GetSensorReadingResponse{CompletionCode: CompletionCode(data[0])}
	if !resp.CompletionCode.OK() {
		// Error responses carry only the completion code.
		return resp, nil
	}

	if len(data) < getSensorReadingRespFixedLen {
		return GetSensorReadingResponse{}, fmt.Errorf("%w: GetSensorReading response needs %d bytes, have %d",
			ErrShortBuffer, getSensorReadingRespFixedLen, len(data))
	}
	resp.DataSize = SensorDataSize(data[1])
	resp.OperationalState = SensorOperationalState(data[2])
	resp.EventMessageEnable = data[3]
	resp.PresentState = data[4]
	resp.PreviousState = data[5]
	resp.EventState = data[6]

	reading, err := decodeReading(resp.DataSize, data[getSensorReadingRespFixedLen:])
	if err != nil {
		return GetSensorReadingResponse{}, err
	}
	resp.Reading = reading
	return resp, nil
}

// decodeReading decodes a variable-width reading, sign-extending signed
// widths to int32.
func decodeReading(size SensorDataSize, data []byte) (int32, error) {
	width := size.width()
	if width == 0 {
		return 0, fmt.Errorf("invalid sensor data size %d", size)
	}
	if len(data) < width {
		return 0, fmt.Errorf("%w: reading needs %d bytes, have %d", ErrShortBuffer, width, len(data))
	}

	switch size {
	case DataSizeUint8:
		return int32(data[0]), nil
	case DataSizeSint8:
		return int32(int8(data[0])), nil
	case DataSizeUint16:
		return int32(binary.LittleEndian.Uint16(data[0:2])), nil
	case DataSizeSint16:
		return int32(int16(binary.LittleEndian.Uint16(data[0:2]))), nil
	case DataSizeUint32:
		return int32(binary.LittleEndian.Uint32(data[0:4])), nil
	default: // DataSizeSint32
		return int32(binary.LittleEndian.Uint32(data[0:4])), nil
	}
}
