package adapter

import (
	"errors"
	"fmt"
)

// ErrNotImplemented marks a backend variant that has no real implementation.
// It surfaces at configuration time, when the registry factory runs, never
// silently at call time.
var ErrNotImplemented = errors.New("backend not implemented")

// RemoteError is a non-success response during a fetch. Fetch-phase errors
// are fatal to the operation that raised them; no partial page set is ever
// returned.
type RemoteError struct {
	Op         string // "fetch", "resolve", "verify"
	Table      string
	StatusCode int
	Detail     string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Op, e.Table, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRemote reports whether err is (or wraps) a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// UnresolvedReference is a failed linked-record lookup: the fetch did not
// succeed or the requested field was absent. It is reported for operator
// visibility; the resolution pass continues with a blank value.
type UnresolvedReference struct {
	RecordID string
	Field    string
	Err      error
}

func (e *UnresolvedReference) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unresolved reference %s.%s: %v", e.RecordID, e.Field, e.Err)
	}
	return fmt.Sprintf("unresolved reference %s.%s: field absent", e.RecordID, e.Field)
}

func (e *UnresolvedReference) Unwrap() error { return e.Err }
