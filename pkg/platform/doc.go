// Package platform implements the platform monitoring control plane:
// terminus lifecycle, sensor polling, and platform event dispatch.
//
// # Components
//
// The Manager is the single ingress/egress surface. It composes three
// engines sharing one terminus registry:
//
//   - TerminusManager: endpoint discovery bookkeeping. Assigns TIDs,
//     populates the registry through an Initializer, and resolves
//     endpoint addresses to TIDs.
//   - SensorManager: one recurring poll timer and at most one polling
//     task per terminus. Each task round-robins the terminus's sensors,
//     persisting its cursor across cycles, and exits cooperatively when
//     availability drops or polling is stopped.
//   - EventManager: routes inbound platform events (sensor, CPER,
//     message-poll) to registered handlers by event class and tracks its
//     own copy of per-terminus availability.
//
// # Availability
//
// The sensor and event engines each store availability independently but
// are always updated together through Manager.UpdateAvailableState, so
// they converge after every transition. A running polling task rechecks
// availability before every individual sensor request; flipping a
// terminus unavailable halts its polling within one request.
//
// # Failure isolation
//
// A failed sensor read is absorbed at the cycle level: the sensor keeps
// its last value (or is marked unavailable) and the cycle moves on. Push
// event handlers are always acknowledged to the transport; handler
// failures are counted and logged, never propagated into the protocol
// acknowledgement.
package platform
