package twowaysql

import (
	"reflect"
	"regexp"
	"strings"
)

// CommandContext is one scope of a template evaluation. The root holds the
// caller's parameters; IF, BEGIN and FOR blocks evaluate in children linked
// to their parent. A child's output reaches its parent only when the block
// is kept.
type CommandContext struct {
	parent *CommandContext
	args   map[string]any
	types  map[string]reflect.Type

	parts     []sqlPart
	binds     []any
	bindTypes []reflect.Type

	enabled    bool
	beginChild bool
	// alreadySkippedConnector is set on a BEGIN context once an IF inside
	// it emitted text, so later IFs keep their leading and/or.
	alreadySkippedConnector bool
	// stripConnector asks the next text added to drop a leading and/or.
	stripConnector bool

	loop *loopState
}

// sqlPart is either literal SQL or the slot of one bind variable, numbered
// when the final SQL is rendered.
type sqlPart struct {
	text string
	bind bool
}

type loopState struct {
	index int
	size  int
}

// NewRootContext returns an enabled context holding args.
func NewRootContext(args map[string]any) *CommandContext {
	ctx := &CommandContext{args: make(map[string]any, len(args)), types: make(map[string]reflect.Type), enabled: true}
	for name, v := range args {
		ctx.AddArg(name, v, reflect.TypeOf(v))
	}
	return ctx
}

func (c *CommandContext) newChild(beginChild bool) *CommandContext {
	return &CommandContext{
		parent:     c,
		args:       make(map[string]any),
		types:      make(map[string]reflect.Type),
		beginChild: beginChild,
	}
}

// AddArg binds name in this scope.
func (c *CommandContext) AddArg(name string, value any, typ reflect.Type) {
	c.args[name] = value
	c.types[name] = typ
}

// Arg looks name up in this scope and then in every parent. When no scope
// binds it, the root's sole binding is used if there is exactly one.
func (c *CommandContext) Arg(name string) (any, reflect.Type, bool) {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if v, ok := ctx.args[name]; ok {
			return v, ctx.types[name], true
		}
	}
	return c.soleRootBinding()
}

// soleRootBinding keeps single-parameter callers working: with exactly one
// root binding every unknown name resolves to it.
func (c *CommandContext) soleRootBinding() (any, reflect.Type, bool) {
	root := c
	for root.parent != nil {
		root = root.parent
	}
	if len(root.args) != 1 {
		return nil, nil, false
	}
	for name, v := range root.args {
		return v, root.types[name], true
	}
	return nil, nil, false
}

// Enabled reports whether the context's output is kept.
func (c *CommandContext) Enabled() bool { return c.enabled }

// SetEnabled marks the context's output as kept.
func (c *CommandContext) SetEnabled(enabled bool) { c.enabled = enabled }

var leadingConnector = regexp.MustCompile(`(?i)^(\s*)(and|or)\s+`)

// AddSQL appends literal SQL.
func (c *CommandContext) AddSQL(sql string) {
	if c.stripConnector && strings.TrimSpace(sql) != "" {
		sql = leadingConnector.ReplaceAllString(sql, "$1")
		c.stripConnector = false
	}
	c.parts = append(c.parts, sqlPart{text: sql})
}

// AddBind appends one bind variable slot with its value.
func (c *CommandContext) AddBind(value any, typ reflect.Type) {
	c.stripConnector = false
	c.parts = append(c.parts, sqlPart{bind: true})
	c.binds = append(c.binds, value)
	c.bindTypes = append(c.bindTypes, typ)
}

// merge appends the output of child to c.
func (c *CommandContext) merge(child *CommandContext) {
	for _, p := range child.parts {
		if p.bind || strings.TrimSpace(p.text) != "" {
			c.stripConnector = false
			break
		}
	}
	c.parts = append(c.parts, child.parts...)
	c.binds = append(c.binds, child.binds...)
	c.bindTypes = append(c.bindTypes, child.bindTypes...)
}

// currentLoop returns the state of the innermost FOR around c.
func (c *CommandContext) currentLoop() *loopState {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if ctx.loop != nil {
			return ctx.loop
		}
	}
	return nil
}

// render numbers the bind slots with placeholder.
func (c *CommandContext) render(placeholder func(int) string) string {
	var b strings.Builder
	n := 0
	for _, p := range c.parts {
		if p.bind {
			n++
			b.WriteString(placeholder(n))
			continue
		}
		b.WriteString(p.text)
	}
	return b.String()
}
