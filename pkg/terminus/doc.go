// Package terminus models discovered PLDM termini and their sensors.
//
// A Terminus is one remote management agent, keyed by its TID for the
// lifetime of the discovery session. Each terminus exclusively owns its
// numeric sensors; the Registry maps TIDs to termini and is the single
// source of truth for which termini currently exist.
//
// All types are safe for concurrent use. Lifecycle transitions (add,
// remove) are serialized by the platform manager; readers may run at any
// time.
package terminus
