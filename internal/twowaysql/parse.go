// Package twowaysql renders two-way SQL: SQL text whose comments carry
// directives (/*IF*/, /*BEGIN*/, /*FOR*/, bind and embedded variables) so
// that the template stays executable as plain SQL while the rendered form
// depends on parameters.
package twowaysql

import (
	"github.com/alecthomas/participle/v2"
)

type node interface{}

type textNode struct {
	text string
}

// bindNode is /*expr*/dummy or, when embedded, /*$expr*/dummy.
type bindNode struct {
	expr     string
	path     *path
	dummy    string
	embedded bool
}

type ifNode struct {
	cond string
	expr *ifExpr
	then []node
	els  []node
}

type beginNode struct {
	children []node
}

type forNode struct {
	expr     string
	path     *path
	children []node
}

// loopPartNode is a FIRST or LAST block inside FOR.
type loopPartNode struct {
	last     bool
	children []node
}

type nextNode struct {
	connector string
}

var pathParser = participle.MustBuild[path](
	participle.Lexer(ifLexer),
	participle.Elide("Whitespace"),
)

// Template is a parsed two-way SQL template. It is immutable and may be
// rendered any number of times.
type Template struct {
	sql   string
	nodes []node
}

// Parse builds the node tree of sql. The first structural or expression
// error is returned.
func Parse(sql string) (*Template, error) {
	p := &parser{sql: sql}
	nodes, err := p.parse()
	if err != nil {
		return nil, err
	}
	if len(p.exprErrs) > 0 {
		return nil, p.exprErrs[0]
	}
	return &Template{sql: sql, nodes: nodes}, nil
}

// SQL returns the template text.
func (t *Template) SQL() string { return t.sql }

type parser struct {
	sql  string
	toks []token
	i    int
	// exprErrs collects IF and variable expression errors so that the
	// checker can report all of them.
	exprErrs []error
}

func (p *parser) parse() ([]node, error) {
	toks, err := tokenize(p.sql)
	if err != nil {
		return nil, err
	}
	p.toks = toks
	nodes, _, err := p.parseBlock(nil, false)
	return nodes, err
}

// parseBlock reads nodes until the END of opener, or until ELSE when
// stopAtElse is set. It returns the terminating token kind.
func (p *parser) parseBlock(opener *token, stopAtElse bool) ([]node, tokenKind, error) {
	var nodes []node
	for p.i < len(p.toks) {
		tok := p.toks[p.i]
		p.i++
		switch tok.kind {
		case tokText:
			nodes = append(nodes, &textNode{text: tok.text})

		case tokEnd:
			if opener == nil {
				return nil, tokEnd, &IllegalEndCommentError{Position: positionOf(p.sql, tok.offset)}
			}
			return nodes, tokEnd, nil

		case tokElse:
			if stopAtElse {
				return nodes, tokElse, nil
			}
			nodes = append(nodes, &textNode{text: "-- ELSE"})

		case tokIf:
			n, err := p.parseIf(tok)
			if err != nil {
				return nil, 0, err
			}
			nodes = append(nodes, n)

		case tokBegin:
			children, _, err := p.parseBlock(&tok, false)
			if err != nil {
				return nil, 0, err
			}
			nodes = append(nodes, &beginNode{children: children})

		case tokFor:
			children, _, err := p.parseBlock(&tok, false)
			if err != nil {
				return nil, 0, err
			}
			nodes = append(nodes, &forNode{expr: tok.text, path: p.compilePath(tok), children: children})

		case tokFirst, tokLast:
			children, _, err := p.parseBlock(&tok, false)
			if err != nil {
				return nil, 0, err
			}
			nodes = append(nodes, &loopPartNode{last: tok.kind == tokLast, children: children})

		case tokNext:
			nodes = append(nodes, &nextNode{connector: tok.text})

		case tokBind, tokEmbedded:
			nodes = append(nodes, &bindNode{
				expr:     tok.text,
				path:     p.compilePath(tok),
				dummy:    tok.dummy,
				embedded: tok.kind == tokEmbedded,
			})
		}
	}
	if opener != nil {
		return nil, 0, &EndCommentNotFoundError{Position: positionOf(p.sql, opener.offset), Directive: tokenNames[opener.kind]}
	}
	return nodes, 0, nil
}

func (p *parser) parseIf(tok token) (node, error) {
	n := &ifNode{cond: tok.text}
	expr, err := compileIf(tok.text, positionOf(p.sql, tok.offset))
	if err != nil {
		p.exprErrs = append(p.exprErrs, err)
	}
	n.expr = expr

	var term tokenKind
	n.then, term, err = p.parseBlock(&tok, true)
	if err != nil {
		return nil, err
	}
	if term == tokElse {
		if n.els, _, err = p.parseBlock(&tok, false); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *parser) compilePath(tok token) *path {
	expr, err := pathParser.ParseString("", tok.text)
	if err != nil {
		p.exprErrs = append(p.exprErrs, &VariableExpressionError{
			Position:   positionOf(p.sql, tok.offset),
			Expression: tok.text,
			Err:        err,
		})
		return nil
	}
	return expr
}
