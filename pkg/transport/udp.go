package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pldm-stack/pldm-go/pkg/discovery"
	"github.com/pldm-stack/pldm-go/pkg/log"
	"github.com/pldm-stack/pldm-go/pkg/requester"
)

// Transport errors.
var (
	ErrTransportClosed  = errors.New("transport is closed")
	ErrEndpointUnmapped = errors.New("endpoint has no address mapping")
	ErrNoAddress        = errors.New("endpoint advertises no address")
)

// maxDatagram bounds one inbound PLDM message.
const maxDatagram = 4096

// ResponseHandler receives one inbound message attributed to its
// endpoint. Typically requester.Client.HandleResponse.
type ResponseHandler func(eid uint8, data []byte) error

// UDPTransport sends PLDM requests to endpoints over a single UDP
// socket and routes inbound datagrams back by source address. Safe for
// concurrent use.
type UDPTransport struct {
	mu sync.Mutex

	conn    net.PacketConn
	handler ResponseHandler
	logger  log.Logger

	// Outbound address per EID and its inverse for inbound routing.
	addrs map[uint8]*net.UDPAddr
	eids  map[string]uint8

	closed bool
	done   chan struct{}
}

// NewUDPTransport opens a UDP socket on listenAddr (":0" for an
// ephemeral port) and starts the receive loop. The handler is invoked
// from the receive loop; it must not block.
func NewUDPTransport(listenAddr string, handler ResponseHandler, logger log.Logger) (*UDPTransport, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", listenAddr, err)
	}

	t := &UDPTransport{
		conn:    conn,
		handler: handler,
		logger:  log.OrNoop(logger),
		addrs:   make(map[uint8]*net.UDPAddr),
		eids:    make(map[string]uint8),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// LocalAddr returns the socket's bound address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// AddEndpoint maps an EID to a remote "host:port" address. Replaces any
// previous mapping for the EID.
func (t *UDPTransport) AddEndpoint(eid uint8, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.addrs[eid]; ok {
		delete(t.eids, prev.String())
	}
	t.addrs[eid] = udpAddr
	t.eids[udpAddr.String()] = eid
	return nil
}

// AddDiscoveredEndpoint maps an EID using a discovery result, taking
// the first resolved address and the advertised port (DefaultPort when
// the advertisement carries none).
func (t *UDPTransport) AddDiscoveredEndpoint(ep discovery.EndpointInfo) error {
	if len(ep.Addresses) == 0 {
		return fmt.Errorf("%w: EID %d", ErrNoAddress, ep.EID)
	}
	port := ep.Port
	if port == 0 {
		port = discovery.DefaultPort
	}
	return t.AddEndpoint(ep.EID, net.JoinHostPort(ep.Addresses[0], strconv.Itoa(int(port))))
}

// RemoveEndpoint drops the address mapping for an EID.
func (t *UDPTransport) RemoveEndpoint(eid uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if addr, ok := t.addrs[eid]; ok {
		delete(t.eids, addr.String())
		delete(t.addrs, eid)
	}
}

// Send transmits one PLDM message to the endpoint. Implements the
// requester's transport contract.
func (t *UDPTransport) Send(eid uint8, data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	addr, ok := t.addrs[eid]
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: EID %d", ErrEndpointUnmapped, eid)
	}
	_, err := t.conn.WriteTo(data, addr)
	return err
}

// Close shuts down the socket and stops the receive loop.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	err := t.conn.Close()
	<-t.done
	return err
}

// readLoop receives datagrams and routes them by source address.
// Datagrams from unmapped sources are dropped.
func (t *UDPTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := t.conn.ReadFrom(buf)
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				t.logError(err.Error(), "udp receive")
			}
			return
		}

		t.mu.Lock()
		eid, known := t.eids[from.String()]
		t.mu.Unlock()
		if !known {
			t.logError("datagram from unmapped source "+from.String(), "udp receive")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		if err := t.handler(eid, data); err != nil {
			t.logError(err.Error(), "response handler")
		}
	}
}

// Compile-time interface satisfaction check.
var _ requester.Transport = (*UDPTransport)(nil)

// logError emits an error event.
func (t *UDPTransport) logError(msg, context string) {
	t.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerRequester,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Layer: log.LayerRequester, Message: msg, Context: context},
	})
}
