package settings

import "errors"

var errNoRepository = errors.New("no settings repository configured")

// ReadError means the repository could not produce the persisted overrides.
// It is logged and never returned to callers of Manager.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return "failed to read settings: " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// WriteError is returned when overrides could not be persisted.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return "failed to write settings: " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

