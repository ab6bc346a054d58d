package platform

import (
	"fmt"
	"time"

	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// timeNow stamps log events; overridable in tests.
var timeNow = time.Now

// CompletionError reports a remote command that completed with a
// non-success completion code.
type CompletionError struct {
	// Code is the completion code the terminus returned.
	Code wire.CompletionCode

	// Op names the command that failed.
	Op string
}

// Error implements error.
func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s: completion code %s", e.Op, e.Code)
}
