package replaceschema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAssertionFailure is matched by every AssertionFailureError.
var ErrAssertionFailure = errors.New("take-finally assertion failure")

// AssertionFailureError reports tables that broke the take-finally policy.
// Advice is meant to be shown to the user as is.
type AssertionFailureError struct {
	Advice string
	Tables []string
}

func (e *AssertionFailureError) Error() string {
	var b strings.Builder
	b.WriteString("Look! Read the message below.\n")
	b.WriteString("/* * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * *\n")
	b.WriteString("The take-finally assertion failed.\n\n")
	b.WriteString("[Advice]\n")
	b.WriteString(e.Advice)
	b.WriteString("\n\n[Empty Tables]\n")
	for _, t := range e.Tables {
		fmt.Fprintln(&b, t)
	}
	b.WriteString("* * * * * * * * * */")
	return b.String()
}

func (e *AssertionFailureError) Is(target error) bool { return target == ErrAssertionFailure }

// RowError reports a data row that could not be loaded.
type RowError struct {
	Table string
	Row   int // 1-based position in the data set
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("failed to load row %d of %s: %v", e.Row, e.Table, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
