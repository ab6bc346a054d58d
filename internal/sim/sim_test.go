package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/pldm-stack/pldm-go/pkg/requester"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

func newTestFabric() (*Fabric, *Terminus) {
	f := NewFabric()
	t := NewTerminus(10, 1, "sim0")
	DefaultSensors(t, 2)
	f.Add(t)
	return f, t
}

func TestGetSensorReading(t *testing.T) {
	f, sim := newTestFabric()
	sim.SetReading(1, 300, wire.SensorEnabled)

	payload := wire.EncodeGetSensorReadingRequest(wire.GetSensorReadingRequest{SensorID: 1})
	respData, err := f.Send(context.Background(), 10, requester.CmdGetSensorReading, payload)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	resp, err := wire.DecodeGetSensorReadingResponse(respData)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.CompletionCode.OK() {
		t.Fatalf("completion code = %v", resp.CompletionCode)
	}
	if resp.Reading != 300 {
		t.Errorf("reading = %d, want 300", resp.Reading)
	}
	if resp.OperationalState != wire.SensorEnabled {
		t.Errorf("state = %v", resp.OperationalState)
	}
}

func TestGetSensorReadingUnknownSensor(t *testing.T) {
	f, _ := newTestFabric()

	payload := wire.EncodeGetSensorReadingRequest(wire.GetSensorReadingRequest{SensorID: 99})
	respData, err := f.Send(context.Background(), 10, requester.CmdGetSensorReading, payload)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if cc := wire.CompletionCode(respData[0]); cc != wire.CodeInvalidSensorID {
		t.Errorf("completion code = %v, want INVALID_SENSOR_ID", cc)
	}
}

func TestScriptedFailure(t *testing.T) {
	f, sim := newTestFabric()
	sim.FailSensor(1, wire.CodeNotReady)

	payload := wire.EncodeGetSensorReadingRequest(wire.GetSensorReadingRequest{SensorID: 1})
	respData, err := f.Send(context.Background(), 10, requester.CmdGetSensorReading, payload)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if cc := wire.CompletionCode(respData[0]); cc != wire.CodeNotReady {
		t.Errorf("completion code = %v, want NOT_READY", cc)
	}

	sim.FailSensor(1, wire.CodeSuccess)
	respData, err = f.Send(context.Background(), 10, requester.CmdGetSensorReading, payload)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if cc := wire.CompletionCode(respData[0]); cc != wire.CodeSuccess {
		t.Errorf("completion code after clear = %v", cc)
	}
}

func TestOffline(t *testing.T) {
	f, sim := newTestFabric()
	sim.SetOffline(true)

	payload := wire.EncodeGetSensorReadingRequest(wire.GetSensorReadingRequest{SensorID: 1})
	if _, err := f.Send(context.Background(), 10, requester.CmdGetSensorReading, payload); !errors.Is(err, ErrOffline) {
		t.Errorf("got %v, want ErrOffline", err)
	}
}

func TestUnknownEndpoint(t *testing.T) {
	f, _ := newTestFabric()
	if _, err := f.Send(context.Background(), 99, requester.CmdGetSensorReading, nil); !errors.Is(err, ErrUnknownEndpoint) {
		t.Errorf("got %v, want ErrUnknownEndpoint", err)
	}
}

func pollOnce(t *testing.T, f *Fabric, req wire.PollRequest) wire.PollResponse {
	t.Helper()
	respData, err := f.Send(context.Background(), 10, requester.CmdPollForPlatformEventMessage, wire.EncodePollRequest(req))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp, err := wire.DecodePollResponse(respData)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestPollNoEvents(t *testing.T) {
	f, _ := newTestFabric()

	resp := pollOnce(t, f, wire.PollRequest{
		FormatVersion: wire.PollFormatVersion,
		Operation:     wire.OpGetFirstPart,
	})
	if !resp.CompletionCode.OK() {
		t.Fatalf("completion code = %v", resp.CompletionCode)
	}
	if resp.EventID != wire.EventIDNone {
		t.Errorf("event ID = %#x, want none", resp.EventID)
	}
}

func TestPollSinglePart(t *testing.T) {
	f, sim := newTestFabric()
	body := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	id := sim.QueueEvent(wire.ClassCPEREvent, body)

	resp := pollOnce(t, f, wire.PollRequest{
		FormatVersion: wire.PollFormatVersion,
		Operation:     wire.OpGetFirstPart,
	})
	if resp.EventID != id {
		t.Fatalf("event ID = %d, want %d", resp.EventID, id)
	}
	if !resp.TransferFlag.Final() {
		t.Fatalf("transfer flag = %v, want final", resp.TransferFlag)
	}
	if string(resp.EventData) != string(body) {
		t.Errorf("event data = %x", resp.EventData)
	}
	if resp.Checksum != wire.EventDataChecksum(body) {
		t.Errorf("checksum = %08x", resp.Checksum)
	}

	// Acknowledge and verify the queue drains.
	ack := pollOnce(t, f, wire.PollRequest{
		FormatVersion: wire.PollFormatVersion,
		Operation:     wire.OpAcknowledgementOnly,
		EventIDToAck:  id,
	})
	if !ack.CompletionCode.OK() {
		t.Fatalf("ack completion code = %v", ack.CompletionCode)
	}
	if sim.PendingEvents() != 0 {
		t.Errorf("pending events = %d after ack", sim.PendingEvents())
	}
	if acked := sim.AckedEvents(); len(acked) != 1 || acked[0] != id {
		t.Errorf("acked = %v", acked)
	}
}

func TestPollMultipart(t *testing.T) {
	f, sim := newTestFabric()
	body := make([]byte, 10)
	for i := range body {
		body[i] = byte(i)
	}
	sim.SetChunkSize(4)
	id := sim.QueueEvent(wire.ClassCPEREvent, body)

	var assembled []byte

	resp := pollOnce(t, f, wire.PollRequest{
		FormatVersion: wire.PollFormatVersion,
		Operation:     wire.OpGetFirstPart,
	})
	if resp.TransferFlag != wire.FlagStart {
		t.Fatalf("first flag = %v", resp.TransferFlag)
	}
	assembled = append(assembled, resp.EventData...)

	for !resp.TransferFlag.Final() {
		resp = pollOnce(t, f, wire.PollRequest{
			FormatVersion:      wire.PollFormatVersion,
			Operation:          wire.OpGetNextPart,
			DataTransferHandle: resp.NextDataTransferHandle,
			EventIDToAck:       id,
		})
		assembled = append(assembled, resp.EventData...)
	}

	if string(assembled) != string(body) {
		t.Errorf("assembled = %x, want %x", assembled, body)
	}
	if resp.Checksum != wire.EventDataChecksum(body) {
		t.Errorf("checksum mismatch")
	}
}

func TestPollBadVersion(t *testing.T) {
	f, _ := newTestFabric()
	respData, err := f.Send(context.Background(), 10, requester.CmdPollForPlatformEventMessage,
		wire.EncodePollRequest(wire.PollRequest{FormatVersion: 0x7F, Operation: wire.OpGetFirstPart}))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if cc := wire.CompletionCode(respData[0]); cc != wire.CodeUnsupportedEventFormatVersion {
		t.Errorf("completion code = %v", cc)
	}
}

func TestUnsupportedCommand(t *testing.T) {
	f, _ := newTestFabric()
	respData, err := f.Send(context.Background(), 10, requester.Command(0x7E), nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if cc := wire.CompletionCode(respData[0]); cc != wire.CodeUnsupportedCommand {
		t.Errorf("completion code = %v", cc)
	}
}
