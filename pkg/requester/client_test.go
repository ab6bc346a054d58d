package requester

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pldm-stack/pldm-go/pkg/log"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// loopbackTransport echoes a scripted response for each sent request.
type loopbackTransport struct {
	mu      sync.Mutex
	client  *Client
	respond func(eid uint8, instanceID uint8, cmd Command, payload []byte) []byte
	sent    [][]byte
}

func (lt *loopbackTransport) Send(eid uint8, data []byte) error {
	lt.mu.Lock()
	lt.sent = append(lt.sent, data)
	respond := lt.respond
	lt.mu.Unlock()

	if respond == nil {
		return nil
	}

	instanceID, cmd, payload, err := decodeRequest(data)
	if err != nil {
		return err
	}
	go func() {
		resp := respond(eid, instanceID, cmd, payload)
		if resp != nil {
			_ = lt.client.HandleResponse(eid, resp)
		}
	}()
	return nil
}

// decodeRequest is the test-side inverse of the client's request framing.
func decodeRequest(data []byte) (uint8, Command, []byte, error) {
	if len(data) < headerLen {
		return 0, 0, nil, ErrShortMessage
	}
	if data[0]&requestBit == 0 {
		return 0, 0, nil, errors.New("not a request")
	}
	return data[0] & maxInstanceID, Command(data[2]), data[headerLen:], nil
}

// encodeResponse frames a response payload for HandleResponse.
func encodeResponse(instanceID uint8, cmd Command, payload []byte) []byte {
	buf := []byte{instanceID & maxInstanceID, typePlatform, byte(cmd)}
	return append(buf, payload...)
}

func newLoopback(respond func(eid, instanceID uint8, cmd Command, payload []byte) []byte) (*Client, *loopbackTransport) {
	lt := &loopbackTransport{respond: respond}
	c := NewClient(lt)
	lt.client = c
	return c, lt
}

func TestSendReceivesResponse(t *testing.T) {
	c, _ := newLoopback(func(eid, instanceID uint8, cmd Command, payload []byte) []byte {
		return encodeResponse(instanceID, cmd, []byte{0x00, 0xAB})
	})
	defer c.Close()

	resp, err := c.Send(context.Background(), 10, CmdGetSensorReading, []byte{0x01, 0x00, 0x00})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(resp) != 2 || resp[0] != 0x00 || resp[1] != 0xAB {
		t.Errorf("response = %v", resp)
	}
}

func TestSendTimeout(t *testing.T) {
	c, _ := newLoopback(nil) // never responds
	defer c.Close()
	c.SetTimeout(20 * time.Millisecond)

	_, err := c.Send(context.Background(), 10, CmdGetSensorReading, nil)
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("got %v, want ErrRequestTimeout", err)
	}
}

func TestSendContextCancel(t *testing.T) {
	c, _ := newLoopback(nil)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Send(ctx, 10, CmdGetSensorReading, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestSendAfterClose(t *testing.T) {
	c, _ := newLoopback(nil)
	_ = c.Close()

	if _, err := c.Send(context.Background(), 10, CmdGetSensorReading, nil); !errors.Is(err, ErrClientClosed) {
		t.Errorf("got %v, want ErrClientClosed", err)
	}
}

func TestInstanceIDsDifferPerRequest(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[uint8]int)

	c, _ := newLoopback(func(eid, instanceID uint8, cmd Command, payload []byte) []byte {
		mu.Lock()
		seen[instanceID]++
		mu.Unlock()
		return encodeResponse(instanceID, cmd, []byte{0x00})
	})
	defer c.Close()

	for i := 0; i < 3; i++ {
		if _, err := c.Send(context.Background(), 10, CmdGetSensorReading, nil); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Errorf("instance IDs reused across sequential requests: %v", seen)
	}
}

func TestHandleResponseUnmatched(t *testing.T) {
	c, _ := newLoopback(nil)
	defer c.Close()

	err := c.HandleResponse(10, encodeResponse(5, CmdGetSensorReading, []byte{0x00}))
	if !errors.Is(err, ErrUnexpectedReply) {
		t.Errorf("got %v, want ErrUnexpectedReply", err)
	}
}

func TestHandleResponseMalformed(t *testing.T) {
	c, _ := newLoopback(nil)
	defer c.Close()

	if err := c.HandleResponse(10, []byte{0x00}); !errors.Is(err, ErrShortMessage) {
		t.Errorf("short message: got %v", err)
	}
	// A request-framed message is not a response.
	if err := c.HandleResponse(10, []byte{requestBit | 1, typePlatform, byte(CmdGetSensorReading)}); !errors.Is(err, ErrNotResponse) {
		t.Errorf("request bit set: got %v", err)
	}
}

func TestConcurrentSends(t *testing.T) {
	c, _ := newLoopback(func(eid, instanceID uint8, cmd Command, payload []byte) []byte {
		return encodeResponse(instanceID, cmd, []byte{0x00, instanceID})
	})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.Send(context.Background(), 10, CmdGetSensorReading, nil)
			if err != nil {
				t.Errorf("Send: %v", err)
				return
			}
			if len(resp) != 2 {
				t.Errorf("response = %v", resp)
			}
		}()
	}
	wg.Wait()
}

// captureLogger records every event it receives.
type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (cl *captureLogger) Log(e log.Event) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.events = append(cl.events, e)
}

func (cl *captureLogger) snapshot() []log.Event {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return append([]log.Event(nil), cl.events...)
}

func TestSendLogsExchange(t *testing.T) {
	c, _ := newLoopback(func(eid, instanceID uint8, cmd Command, payload []byte) []byte {
		return encodeResponse(instanceID, cmd, []byte{0x00, 0x2A})
	})
	defer c.Close()

	cl := &captureLogger{}
	c.SetLogger(cl)

	if _, err := c.Send(context.Background(), 10, CmdGetSensorReading, []byte{0x01, 0x00, 0x00}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	events := cl.snapshot()
	if len(events) != 2 {
		t.Fatalf("got %d events, want request and response", len(events))
	}

	out := events[0]
	if out.Direction != log.DirectionOut || out.Category != log.CategoryMessage || out.Layer != log.LayerRequester {
		t.Errorf("request event: %+v", out)
	}
	if out.EID == nil || *out.EID != 10 {
		t.Errorf("request EID: %v", out.EID)
	}
	if out.Message == nil || out.Message.Command != uint8(CmdGetSensorReading) {
		t.Errorf("request message: %+v", out.Message)
	}

	in := events[1]
	if in.Direction != log.DirectionIn {
		t.Errorf("response direction: %v", in.Direction)
	}
	if in.Message == nil || in.Message.CompletionCode == nil || *in.Message.CompletionCode != wire.CodeSuccess {
		t.Errorf("response message: %+v", in.Message)
	}
	if in.Message.RoundTrip == nil || *in.Message.RoundTrip < 0 {
		t.Errorf("round trip: %v", in.Message.RoundTrip)
	}
	if in.Message.InstanceID != out.Message.InstanceID {
		t.Errorf("instance IDs differ: %d vs %d", in.Message.InstanceID, out.Message.InstanceID)
	}
}

func TestCommandString(t *testing.T) {
	if s := CmdGetSensorReading.String(); s != "GetSensorReading" {
		t.Errorf("String() = %q", s)
	}
	if s := Command(0x7E).String(); s != "Command(0x7E)" {
		t.Errorf("String() = %q", s)
	}
}
