package command

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when a command exceeds its timeout.
var ErrTimeout = errors.New("command timeout")

const (
	StageStart    = "start"
	StageWait     = "wait"
	StageTimeout  = "timeout"
	StageCanceled = "canceled"
)

// CommandError describes a failed external process invocation.
type CommandError struct {
	Cmd      string
	Stage    string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %s failed at %s", e.Cmd, e.Stage)
	if e.Stage == StageWait {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}
