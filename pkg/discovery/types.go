package discovery

import (
	"errors"
	"time"
)

// Service constants for mDNS.
const (
	// ServiceTypeEndpoint is the service type advertised by network-attached
	// PLDM termini.
	ServiceTypeEndpoint = "_pldm._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default PLDM-over-UDP port.
	DefaultPort = 4950
)

// TXT record key constants.
const (
	// TXTKeyEID is the endpoint ID (0-254, required).
	TXTKeyEID = "eid"

	// TXTKeyNetworkID is the MCTP network ID (required).
	TXTKeyNetworkID = "net"

	// TXTKeyName is the terminus name (optional).
	TXTKeyName = "name"

	// TXTKeyTypes is the comma-separated list of supported PLDM types
	// (optional).
	TXTKeyTypes = "types"

	// TXTKeyVersion is the platform monitoring subsystem version in its
	// ver32 wire encoding, as eight hex digits (optional).
	TXTKeyVersion = "pv"

	// TXTKeyCommands is the comma-separated list of platform monitoring
	// command codes the terminus supports (optional).
	TXTKeyCommands = "cmds"
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for one-shot browse operations.
	BrowseTimeout = 10 * time.Second
)

// Limits.
const (
	// MaxEID is the largest assignable endpoint ID; 0xFF is broadcast.
	MaxEID = 0xFE

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT key")
	ErrInvalidEID          = errors.New("invalid endpoint ID")
	ErrInvalidNetworkID    = errors.New("invalid network ID")
	ErrInvalidVersion      = errors.New("invalid version field")
	ErrIncompatibleVersion = errors.New("incompatible subsystem version")
)

// EndpointInfo describes one discovered transport endpoint.
type EndpointInfo struct {
	// EID is the endpoint ID the transport addresses the terminus by.
	EID uint8

	// NetworkID scopes the EID; EIDs are unique only within a network.
	NetworkID uint32

	// Name is the advertised terminus name, may be empty.
	Name string

	// SupportedTypes lists the PLDM types the terminus claims to support.
	SupportedTypes []uint8

	// Version is the advertised platform monitoring subsystem version,
	// normalized to its dotted form. Empty when not advertised.
	Version string

	// Commands lists the platform monitoring command codes the terminus
	// declares. Empty when not advertised.
	Commands []uint8

	// Host is the advertised hostname.
	Host string

	// Port is the advertised port.
	Port uint16

	// Addresses are the resolved IP addresses.
	Addresses []string
}

// Key returns the (networkID, EID) pair that uniquely identifies the
// endpoint across networks.
func (e EndpointInfo) Key() EndpointKey {
	return EndpointKey{NetworkID: e.NetworkID, EID: e.EID}
}

// EndpointKey uniquely identifies an endpoint across MCTP networks.
type EndpointKey struct {
	NetworkID uint32
	EID       uint8
}
