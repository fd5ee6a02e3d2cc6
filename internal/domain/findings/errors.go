package findings

import (
	"errors"
	"fmt"
)

// ErrEmptyExport indicates an export was requested while the materialized
// view was empty. User-visible, non-fatal: nothing is written.
var ErrEmptyExport = errors.New("nothing to export: materialized view is empty")

// ErrStaleResponse marks a page fetch whose session was superseded before the
// result arrived. Internal only; the result is dropped, never surfaced.
var ErrStaleResponse = errors.New("stale response discarded")

// TransportError wraps network/timeout failures from a source adapter.
// The caller retries by reissuing the identical cursor; pages accumulated
// before the failure stay intact.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError reports malformed filter input. Fatal to the session that
// carried it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid filter: %s: %s", e.Field, e.Reason)
}

// IsRetryable reports whether err may be retried with the same cursor.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
