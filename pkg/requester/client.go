package requester

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pldm-stack/pldm-go/pkg/log"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// Client errors.
var (
	ErrRequestTimeout    = errors.New("request timed out")
	ErrClientClosed      = errors.New("client is closed")
	ErrUnexpectedReply   = errors.New("unexpected reply")
	ErrInstanceExhausted = errors.New("no free instance ID for endpoint")
)

// DefaultTimeout bounds one request/response round trip.
const DefaultTimeout = 2 * time.Second

// Requester issues one PLDM request and resolves the decoded reply or a
// timeout error. Implementations must be safe for concurrent use.
type Requester interface {
	// Send sends cmd with payload to the endpoint eid and returns the
	// response payload (completion code onward).
	Send(ctx context.Context, eid uint8, cmd Command, payload []byte) ([]byte, error)
}

// Transport is the point-to-point send path the client writes framed
// requests to. The transport's receive loop must feed response messages
// back through Client.HandleResponse.
type Transport interface {
	// Send transmits one framed PLDM message to the endpoint.
	Send(eid uint8, data []byte) error
}

// pendingKey correlates a response with its in-flight request.
type pendingKey struct {
	eid        uint8
	instanceID uint8
}

// Client is the pending-map Requester implementation over a Transport.
type Client struct {
	mu sync.RWMutex

	transport Transport
	timeout   time.Duration
	logger    log.Logger

	// In-flight requests awaiting responses.
	pending   map[pendingKey]chan []byte
	pendingMu sync.Mutex

	// Next instance ID per endpoint.
	nextInstance map[uint8]uint8

	closed bool
}

// NewClient creates a client over the given transport.
func NewClient(transport Transport) *Client {
	return &Client{
		transport:    transport,
		timeout:      DefaultTimeout,
		logger:       log.NoopLogger{},
		pending:      make(map[pendingKey]chan []byte),
		nextInstance: make(map[uint8]uint8),
	}
}

// SetTimeout sets the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// SetLogger installs an event logger recording one message event per
// wire exchange direction. Nil disables logging.
func (c *Client) SetLogger(logger log.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = log.OrNoop(logger)
}

// Close cancels all pending requests and rejects new ones.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.pendingMu.Lock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = make(map[pendingKey]chan []byte)
	c.pendingMu.Unlock()
	return nil
}

// allocInstance reserves a free instance ID for the endpoint. Instance
// IDs wrap at 32; an ID still pending is skipped.
func (c *Client) allocInstance(eid uint8) (uint8, chan []byte, error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	start := c.nextInstance[eid]
	for i := 0; i <= maxInstanceID; i++ {
		id := (start + uint8(i)) & maxInstanceID
		key := pendingKey{eid: eid, instanceID: id}
		if _, busy := c.pending[key]; busy {
			continue
		}
		ch := make(chan []byte, 1)
		c.pending[key] = ch
		c.nextInstance[eid] = (id + 1) & maxInstanceID
		return id, ch, nil
	}
	return 0, nil, ErrInstanceExhausted
}

// release drops the pending entry for a finished request.
func (c *Client) release(eid, instanceID uint8) {
	c.pendingMu.Lock()
	delete(c.pending, pendingKey{eid: eid, instanceID: instanceID})
	c.pendingMu.Unlock()
}

// Send implements Requester.
func (c *Client) Send(ctx context.Context, eid uint8, cmd Command, payload []byte) ([]byte, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrClientClosed
	}
	timeout := c.timeout
	logger := c.logger
	c.mu.RUnlock()

	instanceID, respCh, err := c.allocInstance(eid)
	if err != nil {
		return nil, err
	}
	defer c.release(eid, instanceID)

	start := time.Now()
	if err := c.transport.Send(eid, encodeRequest(instanceID, cmd, payload)); err != nil {
		return nil, err
	}
	logger.Log(log.Event{
		Timestamp: start,
		Direction: log.DirectionOut,
		Layer:     log.LayerRequester,
		Category:  log.CategoryMessage,
		EID:       &eid,
		Message:   &log.MessageEvent{Command: uint8(cmd), InstanceID: instanceID},
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrRequestTimeout
	case resp, ok := <-respCh:
		if !ok {
			return nil, ErrClientClosed
		}
		rtt := time.Since(start)
		msg := &log.MessageEvent{Command: uint8(cmd), InstanceID: instanceID, RoundTrip: &rtt}
		if len(resp) > 0 {
			cc := wire.CompletionCode(resp[0])
			msg.CompletionCode = &cc
		}
		logger.Log(log.Event{
			Timestamp: time.Now(),
			Direction: log.DirectionIn,
			Layer:     log.LayerRequester,
			Category:  log.CategoryMessage,
			EID:       &eid,
			Message:   msg,
		})
		return resp, nil
	}
}

// HandleResponse routes a received response message to the request
// waiting on it. Called by the transport's receive loop.
func (c *Client) HandleResponse(eid uint8, data []byte) error {
	instanceID, _, payload, err := decodeResponse(data)
	if err != nil {
		return err
	}

	c.pendingMu.Lock()
	ch, exists := c.pending[pendingKey{eid: eid, instanceID: instanceID}]
	c.pendingMu.Unlock()

	if !exists {
		return ErrUnexpectedReply
	}

	select {
	case ch <- payload:
	default:
		// Duplicate response for an already-resolved request.
	}
	return nil
}
