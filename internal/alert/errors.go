package alert

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no pending record has the requested id.
	ErrNotFound = errors.New("alert not found")
	// ErrStorageUnavailable is returned when the alerts directory cannot be
	// created or listed. Operations fail as a whole.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrRecordCorrupt marks a single record that could not be parsed.
	ErrRecordCorrupt = errors.New("record corrupt")
	// ErrInvalid is returned when a candidate alert is missing required fields.
	ErrInvalid = errors.New("invalid alert")
)

// CorruptRecordError describes one unparsable record file.
type CorruptRecordError struct {
	Path string
	Err  error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *CorruptRecordError) Unwrap() []error {
	return []error{ErrRecordCorrupt, e.Err}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
