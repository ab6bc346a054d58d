package requester

import (
	"errors"
	"fmt"
)

// Command is a PLDM platform monitoring command code.
type Command uint8

// Platform monitoring commands used by this control plane.
const (
	// CmdPlatformEventMessage is the push-style event notification.
	CmdPlatformEventMessage Command = 0x0A

	// CmdPollForPlatformEventMessage pulls an announced event body.
	CmdPollForPlatformEventMessage Command = 0x0D

	// CmdGetSensorReading reads one numeric sensor.
	CmdGetSensorReading Command = 0x11
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdPlatformEventMessage:
		return "PlatformEventMessage"
	case CmdPollForPlatformEventMessage:
		return "PollForPlatformEventMessage"
	case CmdGetSensorReading:
		return "GetSensorReading"
	default:
		return fmt.Sprintf("Command(0x%02X)", uint8(c))
	}
}

// typePlatform is the PLDM type for platform monitoring and control.
const typePlatform uint8 = 0x02

// headerLen is instanceID(1) + type(1) + command(1).
const headerLen = 3

// requestBit marks a message as a request in the instance ID byte.
const requestBit = 0x80

// maxInstanceID is the largest PLDM instance ID (5 bits).
const maxInstanceID = 0x1F

// Message errors.
var (
	ErrShortMessage = errors.New("message shorter than PLDM header")
	ErrNotResponse  = errors.New("message is not a response")
)

// encodeRequest frames a request payload with the PLDM message header.
func encodeRequest(instanceID uint8, cmd Command, payload []byte) []byte {
	buf := make([]byte, 0, headerLen+len(payload))
	buf = append(buf, requestBit|(instanceID&maxInstanceID), typePlatform, byte(cmd))
	return append(buf, payload...)
}

// decodeResponse splits a response message into its correlation fields
// and payload.
func decodeResponse(data []byte) (instanceID uint8, cmd Command, payload []byte, err error) {
	if len(data) < headerLen {
		return 0, 0, nil, ErrShortMessage
	}
	if data[0]&requestBit != 0 {
		return 0, 0, nil, ErrNotResponse
	}
	return data[0] & maxInstanceID, Command(data[2]), data[headerLen:], nil
}
