// Package wire defines the binary wire format for PLDM platform
// monitoring commands (DSP0248) as used by the monitoring control plane.
//
// PLDM payloads are little-endian packed structures. This package covers
// only the commands the control plane issues or ingests:
//   - GetSensorReading: periodic sensor acquisition
//   - PollForPlatformEventMessage: pull retrieval of announced events
//   - PlatformEventMessage payload slicing (sensor, CPER, message-poll)
//
// Every decode is bounds-checked against the declared payload length.
// A short or inconsistent buffer is rejected with an error; no decoder
// in this package reads past the end of its input.
package wire
