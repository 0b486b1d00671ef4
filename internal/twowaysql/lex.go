package twowaysql

import (
	"strings"
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokIf
	tokElse
	tokBegin
	tokEnd
	tokFor
	tokFirst
	tokLast
	tokNext
	tokBind
	tokEmbedded
)

var tokenNames = map[tokenKind]string{
	tokIf:    "IF",
	tokBegin: "BEGIN",
	tokFor:   "FOR",
	tokFirst: "FIRST",
	tokLast:  "LAST",
}

type token struct {
	kind tokenKind
	// text is the SQL text, the directive argument or the variable
	// expression depending on kind.
	text string
	// dummy is the test value following a variable comment.
	dummy  string
	offset int
}

// tokenize splits sql into plain text and directive comments. Quoted
// literals and comments starting with whitespace, '+' or '*' stay text.
func tokenize(sql string) ([]token, error) {
	var toks []token
	var text strings.Builder
	textStart := 0
	flush := func() {
		if text.Len() > 0 {
			toks = append(toks, token{kind: tokText, text: text.String(), offset: textStart})
			text.Reset()
		}
	}
	appendText := func(s string, at int) {
		if text.Len() == 0 {
			textStart = at
		}
		text.WriteString(s)
	}

	for i := 0; i < len(sql); {
		switch {
		case sql[i] == '\'':
			end := skipQuoted(sql, i)
			appendText(sql[i:end], i)
			i = end

		case strings.HasPrefix(sql[i:], "/*"):
			closing := strings.Index(sql[i+2:], "*/")
			if closing < 0 {
				return nil, &CommentTerminatorNotFoundError{Position: positionOf(sql, i)}
			}
			content := sql[i+2 : i+2+closing]
			end := i + 2 + closing + 2
			if isPlainComment(content) {
				appendText(sql[i:end], i)
				i = end
				continue
			}
			flush()
			tok := classify(content, i)
			if tok.kind == tokBind || tok.kind == tokEmbedded {
				dummyEnd := scanDummy(sql, end)
				tok.dummy = sql[end:dummyEnd]
				end = dummyEnd
			}
			toks = append(toks, tok)
			i = end

		case strings.HasPrefix(sql[i:], "--"):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql)
			} else {
				end += i
			}
			if strings.TrimSpace(sql[i+2:end]) == "ELSE" {
				flush()
				toks = append(toks, token{kind: tokElse, offset: i})
			} else {
				appendText(sql[i:end], i)
			}
			i = end

		default:
			appendText(sql[i:i+1], i)
			i++
		}
	}
	flush()
	return toks, nil
}

func isPlainComment(content string) bool {
	if content == "" {
		return true
	}
	switch content[0] {
	case ' ', '\t', '\r', '\n', '+', '*':
		return true
	}
	return false
}

func classify(content string, offset int) token {
	tok := token{offset: offset}
	keyword, arg, _ := strings.Cut(content, " ")
	switch {
	case content == "IF" || keyword == "IF":
		tok.kind, tok.text = tokIf, strings.TrimSpace(arg)
	case content == "BEGIN":
		tok.kind = tokBegin
	case content == "END":
		tok.kind = tokEnd
	case content == "FIRST":
		tok.kind = tokFirst
	case content == "LAST":
		tok.kind = tokLast
	case keyword == "FOR":
		tok.kind, tok.text = tokFor, strings.TrimSpace(arg)
	case keyword == "NEXT":
		tok.kind, tok.text = tokNext, unquote(strings.TrimSpace(arg))
	case strings.HasPrefix(content, "$"):
		tok.kind, tok.text = tokEmbedded, strings.TrimSpace(content[1:])
	default:
		tok.kind, tok.text = tokBind, strings.TrimSpace(content)
	}
	return tok
}

// skipQuoted returns the offset just after the literal starting at i. A
// doubled quote is an escaped quote. An unterminated literal runs to the end.
func skipQuoted(sql string, i int) int {
	for j := i + 1; j < len(sql); j++ {
		if sql[j] != '\'' {
			continue
		}
		if j+1 < len(sql) && sql[j+1] == '\'' {
			j++
			continue
		}
		return j + 1
	}
	return len(sql)
}

// scanDummy returns the end of the test value starting at i: a quoted
// literal, a parenthesized group or a bare token.
func scanDummy(sql string, i int) int {
	if i >= len(sql) {
		return i
	}
	switch sql[i] {
	case '\'':
		return skipQuoted(sql, i)
	case '(':
		depth := 0
		for j := i; j < len(sql); j++ {
			switch sql[j] {
			case '\'':
				j = skipQuoted(sql, j) - 1
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return j + 1
				}
			}
		}
		return len(sql)
	}
	j := i
	for j < len(sql) {
		if strings.ContainsRune(" \t\r\n,);", rune(sql[j])) ||
			strings.HasPrefix(sql[j:], "/*") || strings.HasPrefix(sql[j:], "--") {
			break
		}
		j++
	}
	return j
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}
