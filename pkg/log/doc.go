// Package log provides structured protocol logging for the platform
// monitoring control plane.
//
// This package defines the Logger interface and Event types for capturing
// monitoring events at multiple layers (wire traffic, polling, lifecycle).
// It is separate from operational logging (slog) - protocol capture
// provides a complete machine-readable trace for debugging and analysis.
//
// # Basic Usage
//
// Components accept a Logger at construction:
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	logger, _ := log.NewFileLogger("/var/log/pldm/monitor.plog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured per concern:
//   - Message: one request/response exchange with a terminus
//   - Polling: polling cycle and sensor reading activity
//   - Availability: terminus reachability transitions
//   - Dispatch: platform event routing to registered handlers
//   - Error: failures at any layer
//
// # File Format
//
// Log files use CBOR encoding with integer keys and a .plog extension.
package log
