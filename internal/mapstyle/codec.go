package mapstyle

import (
	"fmt"
	"strings"
)

const indentUnit = "    "

// Marshal renders m in map style, one entry per line.
func Marshal(m *Map) string {
	var b strings.Builder
	writeMap(&b, m, 0)
	b.WriteString("\n")
	return b.String()
}

func writeMap(b *strings.Builder, m *Map, level int) {
	if m == nil || m.Len() == 0 {
		b.WriteString("map:{}")
		return
	}
	b.WriteString(mapPrefix)
	b.WriteString("\n")
	for _, key := range m.keys {
		b.WriteString(strings.Repeat(indentUnit, level+1))
		b.WriteString("; ")
		b.WriteString(Escape(key))
		b.WriteString(" = ")
		writeValue(b, m.values[key], level+1)
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat(indentUnit, level))
	b.WriteString("}")
}

func writeList(b *strings.Builder, l []any, level int) {
	if len(l) == 0 {
		b.WriteString("list:{}")
		return
	}
	b.WriteString(listPrefix)
	b.WriteString("\n")
	for _, v := range l {
		b.WriteString(strings.Repeat(indentUnit, level+1))
		b.WriteString("; ")
		writeValue(b, v, level+1)
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat(indentUnit, level))
	b.WriteString("}")
}

func writeValue(b *strings.Builder, v any, level int) {
	switch tv := v.(type) {
	case *Map:
		writeMap(b, tv, level)
	case []any:
		writeList(b, tv, level)
	case string:
		b.WriteString(Escape(tv))
	default:
		b.WriteString(Escape(fmt.Sprint(tv)))
	}
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`=`, `\=`,
	`{`, `\{`,
	`}`, `\}`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Escape protects the map style delimiters and control characters in s.
// Leading and trailing spaces become "\ " so that the parser, which trims
// the space around scalars, keeps them.
func Escape(s string) string {
	s = escaper.Replace(s)
	body := strings.Trim(s, " ")
	if len(body) == len(s) {
		return s
	}
	lead := len(s) - len(strings.TrimLeft(s, " "))
	trail := 0
	if body != "" {
		trail = len(s) - len(strings.TrimRight(s, " "))
	}
	return strings.Repeat(`\ `, lead) + body + strings.Repeat(`\ `, trail)
}

// Unescape reverses Escape.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// SyntaxError reports malformed map style text.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("mapstyle: line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// Unmarshal parses map style text whose root is a map.
func Unmarshal(text string) (*Map, error) {
	p := &parser{src: text}
	p.skipSpace()
	if !p.consume(mapPrefix) {
		return nil, p.errorf("map style text must start with %q", mapPrefix)
	}
	m, err := p.parseMapBody()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected text after the root map")
	}
	return m, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	line, col := 1, 1
	for i := 0; i < p.pos && i < len(p.src); i++ {
		if p.src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &SyntaxError{Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

func (p *parser) consume(prefix string) bool {
	if strings.HasPrefix(p.src[p.pos:], prefix) {
		p.pos += len(prefix)
		return true
	}
	return false
}

func (p *parser) parseMapBody() (*Map, error) {
	m := NewMap()
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, p.errorf("map is not closed by '}'")
		}
		switch c {
		case '}':
			p.pos++
			return m, nil
		case ';':
			p.pos++
			continue
		}
		key, err := p.scanScalar(true)
		if err != nil {
			return nil, err
		}
		if !p.consume("=") {
			return nil, p.errorf("expected '=' after key %q", key)
		}
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		m.Put(key, value)
		if err := p.expectDelimiter(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseListBody() ([]any, error) {
	var l []any
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, p.errorf("list is not closed by '}'")
		}
		switch c {
		case '}':
			p.pos++
			if l == nil {
				l = []any{}
			}
			return l, nil
		case ';':
			p.pos++
			continue
		}
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		l = append(l, value)
		if err := p.expectDelimiter(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) expectDelimiter() error {
	p.skipSpace()
	c, ok := p.peek()
	if !ok {
		return p.errorf("unexpected end of text")
	}
	if c != ';' && c != '}' {
		return p.errorf("expected ';' or '}' but found %q", c)
	}
	return nil
}

func (p *parser) parseValue() (any, error) {
	p.skipSpace()
	switch {
	case p.consume(mapPrefix):
		return p.parseMapBody()
	case p.consume(listPrefix):
		return p.parseListBody()
	}
	return p.scanScalar(false)
}

// scanScalar reads raw text up to the next unescaped delimiter. Keys end at
// '='; values end at ';' or '}'.
func (p *parser) scanScalar(key bool) (string, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '\\' {
			p.pos += 2
			continue
		}
		if key && c == '=' {
			break
		}
		if c == ';' || c == '}' {
			if key {
				return "", p.errorf("key without '=' before %q", c)
			}
			break
		}
		if c == '{' {
			return "", p.errorf("unescaped '{' in scalar")
		}
		p.pos++
	}
	if p.pos > len(p.src) {
		p.pos = len(p.src)
	}
	if p.pos == len(p.src) && key {
		return "", p.errorf("unexpected end of text in key")
	}
	return Unescape(trimUnescaped(p.src[start:p.pos])), nil
}

// trimUnescaped drops the surrounding whitespace of raw but keeps a trailing
// space escaped by an odd run of backslashes.
func trimUnescaped(raw string) string {
	raw = strings.TrimLeft(raw, " \t\r\n")
	end := len(raw)
	for end > 0 && strings.IndexByte(" \t\r\n", raw[end-1]) >= 0 {
		slashes := 0
		for i := end - 2; i >= 0 && raw[i] == '\\'; i-- {
			slashes++
		}
		if slashes%2 == 1 {
			break
		}
		end--
	}
	return raw[:end]
}
