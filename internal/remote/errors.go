package remote

import (
	"fmt"
	"strings"
)

// ExecError is returned when a remote command fails, either because it
// exited non-zero or because the transport gave up.
type ExecError struct {
	Host       string
	Command    string
	ExitStatus int // -1 when the command never produced an exit status
	Output     string
	cause      error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("remote command on %s failed", e.Host)
	if e.ExitStatus >= 0 {
		msg = fmt.Sprintf("%s with status %d", msg, e.ExitStatus)
	}
	msg = fmt.Sprintf("%s: %q", msg, e.Command)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg = fmt.Sprintf("%s: %s", msg, out)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}

	return msg
}

func (e *ExecError) Unwrap() error {
	return e.cause
}
