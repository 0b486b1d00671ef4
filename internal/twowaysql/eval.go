package twowaysql

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// BoundSQL is a rendered template: executable SQL and its bind values in
// placeholder order.
type BoundSQL struct {
	SQL       string
	Binds     []any
	BindTypes []reflect.Type
}

type renderOptions struct {
	placeholder func(n int) string
}

// RenderOption configures Render.
type RenderOption func(*renderOptions)

// WithPlaceholder sets the function producing the n-th (1-based) bind
// placeholder. The default is "?".
func WithPlaceholder(placeholder func(n int) string) RenderOption {
	return func(o *renderOptions) { o.placeholder = placeholder }
}

// QuestionPlaceholder renders every bind slot as "?".
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder renders bind slots as $1, $2, ...
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// Render parses sql and renders it against args.
func Render(sql string, args map[string]any, opts ...RenderOption) (*BoundSQL, error) {
	t, err := Parse(sql)
	if err != nil {
		return nil, err
	}
	return t.Render(args, opts...)
}

// Render evaluates the template against args. Disabled IF, BEGIN and FOR
// blocks contribute neither text nor binds.
func (t *Template) Render(args map[string]any, opts ...RenderOption) (*BoundSQL, error) {
	o := renderOptions{placeholder: QuestionPlaceholder}
	for _, opt := range opts {
		opt(&o)
	}
	ctx := NewRootContext(args)
	if err := evalNodes(ctx, t.nodes); err != nil {
		return nil, err
	}
	return &BoundSQL{
		SQL:       ctx.render(o.placeholder),
		Binds:     ctx.binds,
		BindTypes: ctx.bindTypes,
	}, nil
}

func evalNodes(ctx *CommandContext, nodes []node) error {
	for _, n := range nodes {
		if err := evalNode(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func evalNode(ctx *CommandContext, n node) error {
	switch n := n.(type) {
	case *textNode:
		ctx.AddSQL(n.text)
		return nil
	case *bindNode:
		if n.embedded {
			return evalEmbedded(ctx, n)
		}
		return evalBind(ctx, n)
	case *ifNode:
		return evalIfNode(ctx, n)
	case *beginNode:
		child := ctx.newChild(true)
		if err := evalNodes(child, n.children); err != nil {
			return err
		}
		if child.Enabled() {
			ctx.merge(child)
		}
		return nil
	case *forNode:
		return evalFor(ctx, n)
	case *loopPartNode:
		loop := ctx.currentLoop()
		if loop == nil {
			return nil
		}
		if (!n.last && loop.index == 0) || (n.last && loop.index == loop.size-1) {
			return evalNodes(ctx, n.children)
		}
		return nil
	case *nextNode:
		if loop := ctx.currentLoop(); loop != nil && loop.index > 0 {
			ctx.AddSQL(n.connector)
		}
		return nil
	}
	return fmt.Errorf("unknown node %T", n)
}

func evalBind(ctx *CommandContext, n *bindNode) error {
	v, typ, err := resolve(ctx, n.path, n.expr)
	if err != nil {
		return err
	}
	if elems, elemType, ok := listOf(v); ok && strings.HasPrefix(n.dummy, "(") {
		if len(elems) == 0 {
			return &EmptyInScopeError{Expression: n.expr}
		}
		ctx.AddSQL("(")
		for i, e := range elems {
			if i > 0 {
				ctx.AddSQL(", ")
			}
			ctx.AddBind(e, concreteType(elemType, e))
		}
		ctx.AddSQL(")")
	} else {
		ctx.AddBind(v, typ)
	}
	if ctx.beginChild && !isEmptyValue(v) {
		ctx.SetEnabled(true)
	}
	return nil
}

func evalEmbedded(ctx *CommandContext, n *bindNode) error {
	v, _, err := resolve(ctx, n.path, n.expr)
	if err != nil {
		return err
	}
	v = deref(v)
	if v == nil {
		return nil
	}
	if _, _, ok := listOf(v); ok {
		return &EmbeddedValueError{Expression: n.expr, Value: v, Reason: "a list cannot be embedded"}
	}
	s := fmt.Sprint(v)
	if strings.Contains(s, "?") {
		return &EmbeddedValueError{Expression: n.expr, Value: v, Reason: "the value contains a bind mark '?'"}
	}
	if strings.HasPrefix(n.dummy, "'") {
		if strings.Contains(s, "'") {
			return &EmbeddedValueError{Expression: n.expr, Value: v, Reason: "a quoted embedded value cannot contain a quote"}
		}
		s = "'" + s + "'"
	}
	ctx.AddSQL(s)
	if ctx.beginChild && s != "" {
		ctx.SetEnabled(true)
	}
	return nil
}

func evalIfNode(ctx *CommandContext, n *ifNode) error {
	ok, err := evalIf(ctx, n.expr, n.cond)
	if err != nil {
		return err
	}
	branch := n.then
	if !ok {
		branch = n.els
	}
	if branch == nil {
		return nil
	}
	child := ctx.newChild(false)
	child.SetEnabled(true)
	if ctx.beginChild && !ctx.alreadySkippedConnector {
		child.stripConnector = true
		ctx.alreadySkippedConnector = true
	}
	if err := evalNodes(child, branch); err != nil {
		return err
	}
	ctx.merge(child)
	if ctx.beginChild {
		ctx.SetEnabled(true)
	}
	return nil
}

func evalFor(ctx *CommandContext, n *forNode) error {
	v, _, err := resolve(ctx, n.path, n.expr)
	if err != nil {
		return err
	}
	if isNil(v) {
		return nil
	}
	elems, elemType, ok := listOf(v)
	if !ok {
		return &ForCommentNotListError{Expression: n.expr, Value: v}
	}
	if len(elems) == 0 {
		return nil
	}
	for i, e := range elems {
		child := ctx.newChild(false)
		child.SetEnabled(true)
		child.loop = &loopState{index: i, size: len(elems)}
		child.AddArg("#current", e, concreteType(elemType, e))
		if err := evalNodes(child, n.children); err != nil {
			return err
		}
		ctx.merge(child)
	}
	if ctx.beginChild {
		ctx.SetEnabled(true)
	}
	return nil
}

// evalIf short-circuits over the terms of expr.
func evalIf(ctx *CommandContext, expr *ifExpr, cond string) (bool, error) {
	disjunction := expr.disjunction()
	for _, t := range expr.terms() {
		b, err := evalTerm(ctx, t, cond)
		if err != nil {
			return false, err
		}
		if disjunction && b {
			return true, nil
		}
		if !disjunction && !b {
			return false, nil
		}
	}
	return !disjunction, nil
}

func evalTerm(ctx *CommandContext, t *ifTerm, cond string) (bool, error) {
	left, err := operandValue(ctx, t.Left, cond)
	if err != nil {
		return false, err
	}
	var result bool
	if t.Op == "" {
		b, ok := deref(left).(bool)
		if !ok {
			return false, &IfCommentNotBooleanError{Expression: cond, Value: left}
		}
		result = b
	} else {
		right, err := operandValue(ctx, t.Right, cond)
		if err != nil {
			return false, err
		}
		result = equal(left, right)
		if t.Op == "!=" {
			result = !result
		}
	}
	if t.Not {
		result = !result
	}
	return result, nil
}

func operandValue(ctx *CommandContext, o *operand, cond string) (any, error) {
	switch {
	case o.Null:
		return nil, nil
	case o.True:
		return true, nil
	case o.False:
		return false, nil
	case o.String != nil:
		return unquote(*o.String), nil
	case o.Number != nil:
		f, err := strconv.ParseFloat(*o.Number, 64)
		if err != nil {
			return nil, err
		}
		return number(f), nil
	}
	v, _, err := resolve(ctx, o.Path, cond)
	return v, err
}

// concreteType prefers the dynamic type of e over an interface element type.
func concreteType(elemType reflect.Type, e any) reflect.Type {
	if elemType.Kind() == reflect.Interface && e != nil {
		return reflect.TypeOf(e)
	}
	return elemType
}
