package schemadiff

import (
	"errors"
	"fmt"
)

// ErrHistoryRead is matched by every HistoryReadError.
var ErrHistoryRead = errors.New("failed to read diff history")

// HistoryReadError reports a diff map file that could not be read or
// parsed. Corrupted history is never skipped.
type HistoryReadError struct {
	Path string
	Err  error
}

func (e *HistoryReadError) Error() string {
	return fmt.Sprintf("failed to read diff history %s: %v", e.Path, e.Err)
}

func (e *HistoryReadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrHistoryRead.
func (e *HistoryReadError) Is(target error) bool {
	return target == ErrHistoryRead
}
