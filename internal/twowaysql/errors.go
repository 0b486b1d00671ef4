package twowaysql

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateSyntax is matched by every error describing a malformed
	// template.
	ErrTemplateSyntax = errors.New("two-way SQL syntax error")
	// ErrTemplateEvaluation is matched by every error raised while a template
	// is rendered against parameters.
	ErrTemplateEvaluation = errors.New("two-way SQL evaluation error")
)

// Position is a 1-based line and column in the template text.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

func positionOf(sql string, offset int) Position {
	p := Position{Line: 1, Column: 1}
	for i := 0; i < offset && i < len(sql); i++ {
		if sql[i] == '\n' {
			p.Line++
			p.Column = 1
		} else {
			p.Column++
		}
	}
	return p
}

// EndCommentNotFoundError reports a block directive without its END.
type EndCommentNotFoundError struct {
	Position
	Directive string
}

func (e *EndCommentNotFoundError) Error() string {
	return fmt.Sprintf("the END comment for /*%s*/ at %s was not found", e.Directive, e.Position)
}

func (e *EndCommentNotFoundError) Is(target error) bool { return target == ErrTemplateSyntax }

// IllegalEndCommentError reports an END without an open block.
type IllegalEndCommentError struct {
	Position
}

func (e *IllegalEndCommentError) Error() string {
	return fmt.Sprintf("/*END*/ at %s closes no block", e.Position)
}

func (e *IllegalEndCommentError) Is(target error) bool { return target == ErrTemplateSyntax }

// CommentTerminatorNotFoundError reports a block comment that is never closed.
type CommentTerminatorNotFoundError struct {
	Position
}

func (e *CommentTerminatorNotFoundError) Error() string {
	return fmt.Sprintf("the comment opened at %s has no terminator '*/'", e.Position)
}

func (e *CommentTerminatorNotFoundError) Is(target error) bool { return target == ErrTemplateSyntax }

// IfCommentConditionEmptyError reports /*IF */ without a condition.
type IfCommentConditionEmptyError struct {
	Position
}

func (e *IfCommentConditionEmptyError) Error() string {
	return fmt.Sprintf("the IF comment at %s has no condition", e.Position)
}

func (e *IfCommentConditionEmptyError) Is(target error) bool { return target == ErrTemplateSyntax }

// IfCommentUnsupportedExpressionError reports an IF condition using a form
// the dialect deliberately does not support: mixed && and ||, parentheses,
// =, <>, relational operators or double quoted literals.
type IfCommentUnsupportedExpressionError struct {
	Position
	Expression string
	Reason     string
}

func (e *IfCommentUnsupportedExpressionError) Error() string {
	return fmt.Sprintf("unsupported IF expression %q at %s: %s", e.Expression, e.Position, e.Reason)
}

func (e *IfCommentUnsupportedExpressionError) Is(target error) bool {
	return target == ErrTemplateSyntax
}

// IfCommentWrongExpressionError reports an IF condition that does not parse.
type IfCommentWrongExpressionError struct {
	Position
	Expression string
	Err        error
}

func (e *IfCommentWrongExpressionError) Error() string {
	return fmt.Sprintf("wrong IF expression %q at %s: %v", e.Expression, e.Position, e.Err)
}

func (e *IfCommentWrongExpressionError) Unwrap() error { return e.Err }

func (e *IfCommentWrongExpressionError) Is(target error) bool { return target == ErrTemplateSyntax }

// CustomizeEntityMarkInvalidError reports a malformed -- #df:entity# line.
type CustomizeEntityMarkInvalidError struct {
	Line int
	Mark string
}

func (e *CustomizeEntityMarkInvalidError) Error() string {
	return fmt.Sprintf("invalid customize entity mark %q at line %d (expected #df:entity#, #df:cursor#, #df:scalar# or #df:paging#)", e.Mark, e.Line)
}

func (e *CustomizeEntityMarkInvalidError) Is(target error) bool { return target == ErrTemplateSyntax }

// ParameterBeanMarkInvalidError reports a malformed -- !df:pmb! line.
type ParameterBeanMarkInvalidError struct {
	Line int
	Mark string
}

func (e *ParameterBeanMarkInvalidError) Error() string {
	return fmt.Sprintf("invalid parameter bean mark %q at line %d (expected !df:pmb! or !df:pmb extends Name!)", e.Mark, e.Line)
}

func (e *ParameterBeanMarkInvalidError) Is(target error) bool { return target == ErrTemplateSyntax }

// ParameterBeanPropertyInvalidError reports a malformed -- !!Type name!! line.
type ParameterBeanPropertyInvalidError struct {
	Line     int
	Property string
	Reason   string
}

func (e *ParameterBeanPropertyInvalidError) Error() string {
	return fmt.Sprintf("invalid parameter bean property %q at line %d: %s", e.Property, e.Line, e.Reason)
}

func (e *ParameterBeanPropertyInvalidError) Is(target error) bool {
	return target == ErrTemplateSyntax
}

// PropertyNotFoundError reports a variable path that does not resolve.
type PropertyNotFoundError struct {
	Expression string
	Property   string
	Type       string
}

func (e *PropertyNotFoundError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s: no parameter named %q", e.Expression, e.Property)
	}
	return fmt.Sprintf("%s: property %q not found on %s", e.Expression, e.Property, e.Type)
}

func (e *PropertyNotFoundError) Is(target error) bool { return target == ErrTemplateEvaluation }

// IfCommentNotBooleanError reports an IF operand without comparison whose
// value is not a boolean.
type IfCommentNotBooleanError struct {
	Expression string
	Value      any
}

func (e *IfCommentNotBooleanError) Error() string {
	return fmt.Sprintf("IF expression %q is not boolean: %v (%T)", e.Expression, e.Value, e.Value)
}

func (e *IfCommentNotBooleanError) Is(target error) bool { return target == ErrTemplateEvaluation }

// ForCommentNotListError reports a FOR expression that is not a list.
type ForCommentNotListError struct {
	Expression string
	Value      any
}

func (e *ForCommentNotListError) Error() string {
	return fmt.Sprintf("FOR expression %q is not a list: %T", e.Expression, e.Value)
}

func (e *ForCommentNotListError) Is(target error) bool { return target == ErrTemplateEvaluation }

// EmptyInScopeError reports an IN-list bind variable with no element.
type EmptyInScopeError struct {
	Expression string
}

func (e *EmptyInScopeError) Error() string {
	return fmt.Sprintf("the list for %q used in an IN scope is empty", e.Expression)
}

func (e *EmptyInScopeError) Is(target error) bool { return target == ErrTemplateEvaluation }

// EmbeddedValueError reports an embedded variable value that cannot be
// written into the SQL text.
type EmbeddedValueError struct {
	Expression string
	Value      any
	Reason     string
}

func (e *EmbeddedValueError) Error() string {
	return fmt.Sprintf("embedded variable %q with value %v: %s", e.Expression, e.Value, e.Reason)
}

func (e *EmbeddedValueError) Is(target error) bool { return target == ErrTemplateEvaluation }

// VariableExpressionError reports a variable comment whose expression is not
// a property path.
type VariableExpressionError struct {
	Position
	Expression string
	Err        error
}

func (e *VariableExpressionError) Error() string {
	return fmt.Sprintf("wrong variable expression %q at %s: %v", e.Expression, e.Position, e.Err)
}

func (e *VariableExpressionError) Unwrap() error { return e.Err }

func (e *VariableExpressionError) Is(target error) bool { return target == ErrTemplateSyntax }
