package wire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// TransferOperation selects the phase of a multipart event retrieval.
type TransferOperation uint8

const (
	// OpGetNextPart requests the part after the given transfer handle.
	OpGetNextPart TransferOperation = 0x00

	// OpGetFirstPart starts a retrieval from the beginning.
	OpGetFirstPart TransferOperation = 0x01

	// OpAcknowledgementOnly acknowledges a fully retrieved event.
	OpAcknowledgementOnly TransferOperation = 0x02
)

// String returns the transfer operation name.
func (o TransferOperation) String() string {
	switch o {
	case OpGetNextPart:
		return "GET_NEXT_PART"
	case OpGetFirstPart:
		return "GET_FIRST_PART"
	case OpAcknowledgementOnly:
		return "ACKNOWLEDGEMENT_ONLY"
	default:
		return "UNKNOWN"
	}
}

// TransferFlag marks the position of a part within a multipart transfer.
type TransferFlag uint8

const (
	// FlagStart marks the first part of a multipart transfer.
	FlagStart TransferFlag = 0x00

	// FlagMiddle marks an interior part.
	FlagMiddle TransferFlag = 0x01

	// FlagEnd marks the final part.
	FlagEnd TransferFlag = 0x04

	// FlagStartAndEnd marks a transfer that fits in a single part.
	FlagStartAndEnd TransferFlag = 0x05
)

// Final reports whether this flag ends the transfer.
func (f TransferFlag) Final() bool {
	return f == FlagEnd || f == FlagStartAndEnd
}

// String returns the transfer flag name.
func (f TransferFlag) String() string {
	switch f {
	case FlagStart:
		return "START"
	case FlagMiddle:
		return "MIDDLE"
	case FlagEnd:
		return "END"
	case FlagStartAndEnd:
		return "START_AND_END"
	default:
		return "UNKNOWN"
	}
}

// PollFormatVersion is the only defined poll request format version.
const PollFormatVersion uint8 = 0x01

// PollRequest is a PollForPlatformEventMessage request.
type PollRequest struct {
	// FormatVersion is the request format version.
	FormatVersion uint8

	// Operation selects first part, next part, or acknowledgement.
	Operation TransferOperation

	// DataTransferHandle continues a transfer (ignored for GetFirstPart).
	DataTransferHandle uint32

	// EventIDToAck acknowledges a retrieved event (AcknowledgementOnly)
	// or names the event being retrieved.
	EventIDToAck uint16
}

// pollReqLen is formatVersion(1) + op(1) + handle(4) + eventID(2).
const pollReqLen = 8

// EncodePollRequest encodes the request payload.
func EncodePollRequest(req PollRequest) []byte {
	buf := make([]byte, pollReqLen)
	buf[0] = req.FormatVersion
	buf[1] = byte(req.Operation)
	binary.LittleEndian.PutUint32(buf[2:6], req.DataTransferHandle)
	binary.LittleEndian.PutUint16(buf[6:8], req.EventIDToAck)
	return buf
}

// DecodePollRequest decodes the request payload. Used by the terminus
// simulator.
func DecodePollRequest(data []byte) (PollRequest, error) {
	if len(data) < pollReqLen {
		return PollRequest{}, fmt.Errorf("%w: poll request needs %d bytes, have %d",
			ErrShortBuffer, pollReqLen, len(data))
	}
	return PollRequest{
		FormatVersion:      data[0],
		Operation:          TransferOperation(data[1]),
		DataTransferHandle: binary.LittleEndian.Uint32(data[2:6]),
		EventIDToAck:       binary.LittleEndian.Uint16(data[6:8]),
	}, nil
}

// PollResponse is one part of a PollForPlatformEventMessage response.
type PollResponse struct {
	// CompletionCode is the terminus's completion code.
	CompletionCode CompletionCode

	// TID is the terminus ID echoed by the responder.
	TID uint8

	// EventID identifies the event being transferred. EventIDNone means
	// no event is pending.
	EventID uint16

	// NextDataTransferHandle continues the transfer on the next request.
	NextDataTransferHandle uint32

	// TransferFlag positions this part within the transfer.
	TransferFlag TransferFlag

	// EventClass tags the event being transferred.
	EventClass EventClass

	// EventData is this part's slice of the event body.
	EventData []byte

	// Checksum is the CRC-32 over the complete reassembled event data.
	// Present only on the final part.
	Checksum uint32
}

// pollRespFixedLen is completionCode(1) + tid(1) + eventID(2) +
// nextHandle(4) + transferFlag(1) + eventClass(1) + dataSize(4).
const pollRespFixedLen = 14

// EncodePollResponse encodes a response part. Used by the terminus
// simulator and tests.
func EncodePollResponse(resp PollResponse) []byte {
	buf := make([]byte, 0, pollRespFixedLen+len(resp.EventData)+4)
	buf = append(buf, byte(resp.CompletionCode), resp.TID)
	buf = binary.LittleEndian.AppendUint16(buf, resp.EventID)
	buf = binary.LittleEndian.AppendUint32(buf, resp.NextDataTransferHandle)
	buf = append(buf, byte(resp.TransferFlag), byte(resp.EventClass))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(resp.EventData)))
	buf = append(buf, resp.EventData...)
	if resp.TransferFlag.Final() {
		buf = binary.LittleEndian.AppendUint32(buf, resp.Checksum)
	}
	return buf
}

// DecodePollResponse decodes a response part.
func DecodePollResponse(data []byte) (PollResponse, error) {
	if len(data) < 1 {
		return PollResponse{}, fmt.Errorf("%w: empty poll response", ErrShortBuffer)
	}

	resp := PollResponse{CompletionCode: CompletionCode(data[0])}
	if !resp.CompletionCode.OK() {
		return resp, nil
	}

	if len(data) < pollRespFixedLen {
		return PollResponse{}, fmt.Errorf("%w: poll response needs %d bytes, have %d",
			ErrShortBuffer, pollRespFixedLen, len(data))
	}
	resp.TID = data[1]
	resp.EventID = binary.LittleEndian.Uint16(data[2:4])
	resp.NextDataTransferHandle = binary.LittleEndian.Uint32(data[4:8])
	resp.TransferFlag = TransferFlag(data[8])
	resp.EventClass = EventClass(data[9])

	dataSize := binary.LittleEndian.Uint32(data[10:14])
	rest := data[pollRespFixedLen:]
	if uint32(len(rest)) < dataSize {
		return PollResponse{}, fmt.Errorf("%w: poll response declares %d data bytes, have %d",
			ErrShortBuffer, dataSize, len(rest))
	}
	resp.EventData = rest[:dataSize]

	if resp.TransferFlag.Final() {
		tail := rest[dataSize:]
		if len(tail) < 4 {
			return PollResponse{}, fmt.Errorf("%w: final poll part missing checksum", ErrShortBuffer)
		}
		resp.Checksum = binary.LittleEndian.Uint32(tail[0:4])
	}
	return resp, nil
}

// EventDataChecksum computes the CRC-32 (IEEE) over a fully reassembled
// event body, matching the checksum on the final transfer part.
func EventDataChecksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
