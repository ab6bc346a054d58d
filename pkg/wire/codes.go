package wire

// CompletionCode is the PLDM completion code returned by every command
// response and by local handlers that mirror the protocol contract.
type CompletionCode uint8

// Base completion codes (DSP0240).
const (
	// CodeSuccess indicates the command completed normally.
	CodeSuccess CompletionCode = 0x00

	// CodeError is the generic failure code.
	CodeError CompletionCode = 0x01

	// CodeInvalidData indicates a payload field held an invalid value.
	CodeInvalidData CompletionCode = 0x02

	// CodeInvalidLength indicates the payload length was inconsistent.
	CodeInvalidLength CompletionCode = 0x03

	// CodeNotReady indicates the responder cannot service the request yet.
	CodeNotReady CompletionCode = 0x04

	// CodeUnsupportedCommand indicates the command is not implemented.
	CodeUnsupportedCommand CompletionCode = 0x05
)

// Platform monitoring specific completion codes (DSP0248).
const (
	// CodeInvalidSensorID indicates the sensor ID is not known to the terminus.
	CodeInvalidSensorID CompletionCode = 0x80

	// CodeRearmUnavailable indicates rearm was requested but unavailable.
	CodeRearmUnavailable CompletionCode = 0x81

	// CodeEventIDNotValid indicates the polled event ID does not exist.
	CodeEventIDNotValid CompletionCode = 0x82

	// CodeUnsupportedEventFormatVersion indicates an unknown event format.
	CodeUnsupportedEventFormatVersion CompletionCode = 0x83
)

// String returns the completion code name.
func (c CompletionCode) String() string {
	switch c {
	case CodeSuccess:
		return "SUCCESS"
	case CodeError:
		return "ERROR"
	case CodeInvalidData:
		return "INVALID_DATA"
	case CodeInvalidLength:
		return "INVALID_LENGTH"
	case CodeNotReady:
		return "NOT_READY"
	case CodeUnsupportedCommand:
		return "UNSUPPORTED_COMMAND"
	case CodeInvalidSensorID:
		return "INVALID_SENSOR_ID"
	case CodeRearmUnavailable:
		return "REARM_UNAVAILABLE"
	case CodeEventIDNotValid:
		return "EVENT_ID_NOT_VALID"
	case CodeUnsupportedEventFormatVersion:
		return "UNSUPPORTED_EVENT_FORMAT_VERSION"
	default:
		return "UNKNOWN"
	}
}

// OK reports whether the code indicates success.
func (c CompletionCode) OK() bool {
	return c == CodeSuccess
}
