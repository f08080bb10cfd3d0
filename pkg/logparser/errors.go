package logparser

import (
	"fmt"

	"emperror.dev/errors"
)

// ErrNoData reports a log that does not exist or cannot be opened.
const ErrNoData = errors.Sentinel("no data")

// LineError describes a log line that could not be decoded.
type LineError struct {
	Line   int
	Text   string
	Reason error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Reason)
}

func (e *LineError) Unwrap() error {
	return e.Reason
}

type noDataError struct {
	path string
	err  error
}

func (e *noDataError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrNoData, e.path, e.err)
}

func (e *noDataError) Is(target error) bool {
	return target == ErrNoData
}

func (e *noDataError) Unwrap() error {
	return e.err
}
