package pairing

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("code not found")
	ErrExpired         = errors.New("code expired")
	ErrAlreadyVerified = errors.New("code already verified")
	ErrTimeout         = errors.New("timed out waiting for browser confirmation")
	ErrCallbackFailed  = errors.New("browser reported a failed login")
	ErrCancelled       = errors.New("pairing cancelled")
	ErrShutdownTimeout = errors.New("callback listener did not shut down in time")
)

// ValidationError reports a malformed code or a missing required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Transport operations, used to tell apart which side of the handshake failed.
const (
	OpRegister = "register"
	OpBind     = "bind"
	OpBrowser  = "browser"
	OpStatus   = "status"
)

// TransportError wraps a network, process-spawn or listener failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	switch e.Op {
	case OpRegister:
		return fmt.Sprintf("could not reach server: %v", e.Err)
	case OpBind:
		return fmt.Sprintf("could not bind local port: %v", e.Err)
	case OpBrowser:
		return fmt.Sprintf("could not open browser: %v", e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ExitCode maps the error returned by Orchestrator.Run to a process exit status.
// Success and user cancellation exit 0; everything else exits 1.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, ErrCancelled) {
		return 0
	}
	return 1
}
