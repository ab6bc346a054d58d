package log

// Logger is the interface applications implement to receive monitoring
// log events. Pass nil or NoopLogger to disable logging.
type Logger interface {
	// Log records a monitoring event. Implementations must be thread-safe.
	// The event should be processed quickly or queued; blocking affects
	// polling cadence.
	Log(event Event)
}

// NoopLogger discards all events. Use when logging is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}

// OrNoop returns l, or a NoopLogger if l is nil. Components call this at
// construction so they never have to nil-check their logger.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}
