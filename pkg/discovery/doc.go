// Package discovery finds network-attached PLDM termini via mDNS.
//
// Network-attached management agents advertise a `_pldm._udp` service
// whose TXT record carries the endpoint ID and network ID the transport
// layer needs to address them. The Browser reports endpoints as they
// appear and disappear; the platform manager turns those reports into
// terminus lifecycle transitions.
//
// The mDNS implementation is backed by zeroconf. Tests use the
// channel-based Browser interface with a fake implementation.
package discovery
