// Package connection provides retry plumbing for long-running network
// sessions, used by the monitor to keep the mDNS browse session alive.
//
// # Retry Strategy
//
// When a session fails, the next attempt is delayed with exponential
// backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful
//  5. Reset to 1s after a successful session
//
// # Jitter
//
// To avoid synchronized retries across monitors:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection
