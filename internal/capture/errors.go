package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable is returned by Start when the input device cannot
	// be opened. No sink is created in that case.
	ErrDeviceUnavailable = errors.New("capture: input device unavailable")

	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("capture: recording already in progress")

	// ErrSinkIO matches every *SinkError via errors.Is.
	ErrSinkIO = errors.New("capture: sink i/o failure")
)

// SinkError reports a failure creating or writing the recording file.
type SinkError struct {
	Op   string // create, header, write
	Path string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("capture: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

func (e *SinkError) Is(target error) bool { return target == ErrSinkIO }
