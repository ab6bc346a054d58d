package wire

import (
	"errors"
	"testing"
)

func TestGetSensorReadingRequestRoundTrip(t *testing.T) {
	req := GetSensorReadingRequest{SensorID: 0x0B0A, RearmEventState: true}

	got, err := DecodeGetSensorReadingRequest(EncodeGetSensorReadingRequest(req))
	if err != nil {
		t.Fatalf("DecodeGetSensorReadingRequest: %v", err)
	}
	if got != req {
		t.Errorf("got %+v, want %+v", got, req)
	}

	if _, err := DecodeGetSensorReadingRequest([]byte{0x0A}); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short request: got %v", err)
	}
}

func TestGetSensorReadingResponseRoundTrip(t *testing.T) {
	tests := []GetSensorReadingResponse{
		{CompletionCode: CodeSuccess, DataSize: DataSizeUint8, OperationalState: SensorEnabled, Reading: 200},
		{CompletionCode: CodeSuccess, DataSize: DataSizeSint8, OperationalState: SensorEnabled, Reading: -100},
		{CompletionCode: CodeSuccess, DataSize: DataSizeUint16, OperationalState: SensorDisabled, Reading: 40000},
		{CompletionCode: CodeSuccess, DataSize: DataSizeSint16, OperationalState: SensorEnabled, Reading: -30000},
		{CompletionCode: CodeSuccess, DataSize: DataSizeSint32, OperationalState: SensorFailed, Reading: -2000000000},
	}

	for _, want := range tests {
		data, err := EncodeGetSensorReadingResponse(want)
		if err != nil {
			t.Fatalf("encode %+v: %v", want, err)
		}
		got, err := DecodeGetSensorReadingResponse(data)
		if err != nil {
			t.Fatalf("decode %+v: %v", want, err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	}
}

func TestGetSensorReadingResponseError(t *testing.T) {
	// Error responses carry only the completion code.
	resp, err := DecodeGetSensorReadingResponse([]byte{byte(CodeInvalidSensorID)})
	if err != nil {
		t.Fatalf("DecodeGetSensorReadingResponse: %v", err)
	}
	if resp.CompletionCode != CodeInvalidSensorID {
		t.Errorf("completion code = %v", resp.CompletionCode)
	}
}

func TestGetSensorReadingResponseTruncated(t *testing.T) {
	// Success header but reading bytes missing.
	data := []byte{byte(CodeSuccess), byte(DataSizeUint32), 0, 0, 0, 0, 0, 0x01}
	if _, err := DecodeGetSensorReadingResponse(data); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("truncated reading: got %v", err)
	}

	if _, err := DecodeGetSensorReadingResponse(nil); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("empty response: got %v", err)
	}
}

func TestEncodeInvalidDataSize(t *testing.T) {
	if _, err := EncodeGetSensorReadingResponse(GetSensorReadingResponse{DataSize: 9}); err == nil {
		t.Error("invalid data size: expected error")
	}
}

func TestCompletionCodes(t *testing.T) {
	if !CodeSuccess.OK() {
		t.Error("CodeSuccess should be OK")
	}
	if CodeNotReady.OK() {
		t.Error("CodeNotReady should not be OK")
	}
	if s := CodeInvalidSensorID.String(); s != "INVALID_SENSOR_ID" {
		t.Errorf("String() = %q", s)
	}
}
