package scanner

import (
	"errors"
	"fmt"
)

var ReadTimeoutErr = errors.New("card read timed out")

// StartupError means the bridge could not get going at all: no server connection or no way to enumerate readers.
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// ReadError is a failed card read. These are expected (card pulled away mid read, reader unplugged) and only reset
// the de-duplication state.
type ReadError struct {
	Reader string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading card on %s: %v", e.Reader, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// EmitError is an identifier that was read fine but could not be handed to the event channel.
type EmitError struct {
	UID string
	Err error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("emitting %s: %v", e.UID, e.Err)
}

func (e *EmitError) Unwrap() error {
	return e.Err
}
