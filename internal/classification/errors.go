package classification

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUndefinedClassificationCode is matched by every UndefinedCodeError.
var ErrUndefinedClassificationCode = errors.New("undefined classification code")

// UndefinedCodeError reports a code that the classification does not
// declare.
type UndefinedCodeError struct {
	Classification string
	Code           string
	Table          string // optional
	Column         string // optional
	Known          []string
}

func (e *UndefinedCodeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "undefined classification code %q for %s", e.Code, e.Classification)
	if e.Table != "" {
		fmt.Fprintf(&b, " at %s.%s", e.Table, e.Column)
	}
	if len(e.Known) > 0 {
		fmt.Fprintf(&b, " (known codes: %s)", strings.Join(e.Known, ", "))
	}
	return b.String()
}

// Is reports whether target is ErrUndefinedClassificationCode.
func (e *UndefinedCodeError) Is(target error) bool {
	return target == ErrUndefinedClassificationCode
}
