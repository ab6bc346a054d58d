// Package transport binds the requester to network-attached PLDM
// termini over UDP datagrams.
//
// One UDP socket carries traffic for every endpoint. Outbound requests
// are addressed through a per-EID address table maintained from
// discovery results; inbound datagrams are mapped back to their EID by
// source address and handed to the response handler (typically
// requester.Client.HandleResponse).
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│     PLDM messages (binary)     │
//	├────────────────────────────────┤
//	│        UDP datagrams           │
//	├────────────────────────────────┤
//	│           IP                   │
//	└────────────────────────────────┘
//
// Each PLDM message fits in one datagram; there is no stream framing.
package transport
