// Package requester implements the PLDM request/response transaction
// layer used by the platform monitoring components.
//
// A Requester encodes a command, sends it to a transport endpoint, and
// waits for the matching reply or a timeout. Correlation uses the PLDM
// instance ID carried in the message header; responses arriving for an
// unknown instance ID are rejected.
//
// The Client implementation is transport-agnostic: it writes framed
// messages through a Transport and expects the transport's receive path
// to feed replies back via HandleResponse.
package requester
