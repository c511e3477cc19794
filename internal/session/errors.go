package session

import (
	"errors"
	"fmt"

	"github.com/tomwolfe/ConvoCue/internal/dispatch"
)

// ErrClosed is returned by controller methods once [Controller.Run] has
// returned.
var ErrClosed = errors.New("session: controller closed")

// RequestError is a provider failure that concerned the current state of the
// conversation. It is surfaced in [Snapshot.LastError]; failures of
// superseded tasks are dropped silently.
type RequestError struct {
	Kind   dispatch.Kind
	TaskID uint64
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("session: %s task %d: %v", e.Kind, e.TaskID, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
