package wire

import (
	"errors"
	"testing"
)

func TestPollRequestRoundTrip(t *testing.T) {
	req := PollRequest{
		FormatVersion:      PollFormatVersion,
		Operation:          OpGetNextPart,
		DataTransferHandle: 0x11223344,
		EventIDToAck:       0x5566,
	}

	got, err := DecodePollRequest(EncodePollRequest(req))
	if err != nil {
		t.Fatalf("DecodePollRequest: %v", err)
	}
	if got != req {
		t.Errorf("got %+v, want %+v", got, req)
	}

	if _, err := DecodePollRequest([]byte{0x01}); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short request: got %v", err)
	}
}

func TestPollResponseFinalPart(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5}
	want := PollResponse{
		CompletionCode:         CodeSuccess,
		TID:                    7,
		EventID:                0x0042,
		NextDataTransferHandle: 0,
		TransferFlag:           FlagStartAndEnd,
		EventClass:             ClassCPEREvent,
		EventData:              body,
		Checksum:               EventDataChecksum(body),
	}

	got, err := DecodePollResponse(EncodePollResponse(want))
	if err != nil {
		t.Fatalf("DecodePollResponse: %v", err)
	}
	if got.TID != want.TID || got.EventID != want.EventID || got.EventClass != want.EventClass {
		t.Errorf("header mismatch: %+v", got)
	}
	if string(got.EventData) != string(body) {
		t.Errorf("event data = %v", got.EventData)
	}
	if got.Checksum != want.Checksum {
		t.Errorf("checksum = %08x, want %08x", got.Checksum, want.Checksum)
	}
}

func TestPollResponseMiddlePart(t *testing.T) {
	want := PollResponse{
		CompletionCode:         CodeSuccess,
		TID:                    3,
		EventID:                0x0010,
		NextDataTransferHandle: 128,
		TransferFlag:           FlagMiddle,
		EventClass:             ClassCPEREvent,
		EventData:              []byte{9, 9, 9},
	}

	data := EncodePollResponse(want)
	got, err := DecodePollResponse(data)
	if err != nil {
		t.Fatalf("DecodePollResponse: %v", err)
	}
	if got.TransferFlag.Final() {
		t.Error("middle part should not be final")
	}
	if got.NextDataTransferHandle != 128 {
		t.Errorf("next handle = %d", got.NextDataTransferHandle)
	}
	if got.Checksum != 0 {
		t.Errorf("middle part carried checksum %08x", got.Checksum)
	}
}

func TestPollResponseErrorOnlyCode(t *testing.T) {
	got, err := DecodePollResponse([]byte{byte(CodeEventIDNotValid)})
	if err != nil {
		t.Fatalf("DecodePollResponse: %v", err)
	}
	if got.CompletionCode != CodeEventIDNotValid {
		t.Errorf("completion code = %v", got.CompletionCode)
	}
}

func TestPollResponseMalformed(t *testing.T) {
	// Success code but truncated fixed header.
	if _, err := DecodePollResponse([]byte{byte(CodeSuccess), 1, 2}); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short header: got %v", err)
	}

	// Declares more data than present.
	data := EncodePollResponse(PollResponse{
		CompletionCode: CodeSuccess,
		TransferFlag:   FlagMiddle,
		EventData:      []byte{1, 2, 3},
	})
	if _, err := DecodePollResponse(data[:len(data)-2]); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("truncated data: got %v", err)
	}

	// Final part with missing checksum.
	final := EncodePollResponse(PollResponse{
		CompletionCode: CodeSuccess,
		TransferFlag:   FlagStartAndEnd,
		EventData:      []byte{1},
		Checksum:       EventDataChecksum([]byte{1}),
	})
	if _, err := DecodePollResponse(final[:len(final)-4]); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("missing checksum: got %v", err)
	}
}

func TestTransferFlagFinal(t *testing.T) {
	tests := []struct {
		flag  TransferFlag
		final bool
	}{
		{FlagStart, false},
		{FlagMiddle, false},
		{FlagEnd, true},
		{FlagStartAndEnd, true},
	}
	for _, tt := range tests {
		if got := tt.flag.Final(); got != tt.final {
			t.Errorf("%v.Final() = %v, want %v", tt.flag, got, tt.final)
		}
	}
}
