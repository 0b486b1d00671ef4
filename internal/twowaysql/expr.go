package twowaysql

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ifExpr is a chain of terms joined by one kind of connector.
type ifExpr struct {
	First *ifTerm   `@@`
	Rest  []*ifRest `@@*`
}

type ifRest struct {
	Connector string  `@( "&&" | "||" )`
	Term      *ifTerm `@@`
}

type ifTerm struct {
	Not   bool     `@"!"?`
	Left  *operand `@@`
	Op    string   `( @( "==" | "!=" )`
	Right *operand `  @@ )?`
}

type operand struct {
	Null   bool    `  @"null"`
	True   bool    `| @"true"`
	False  bool    `| @"false"`
	String *string `| @String`
	Number *string `| @Number`
	Path   *path   `| @@`
}

// path is a variable reference such as pmb.member.memberName or
// pmb.getMemberName().
type path struct {
	Head     string     `@Ident`
	HeadCall bool       `@( "(" ")" )?`
	Rest     []*segment `( "." @@ )*`
}

type segment struct {
	Name string `@Ident`
	Call bool   `@( "(" ")" )?`
}

var ifLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `#?[A-Za-z_$][A-Za-z0-9_$]*`},
	{Name: "Operator", Pattern: `==|!=|&&|\|\||[!().]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var ifParser = participle.MustBuild[ifExpr](
	participle.Lexer(ifLexer),
	participle.Elide("Whitespace"),
)

// compileIf parses an IF condition. Shapes the dialect refuses are reported
// as unsupported before the grammar is tried, so they never surface as
// plain syntax errors.
func compileIf(cond string, pos Position) (*ifExpr, error) {
	if strings.TrimSpace(cond) == "" {
		return nil, &IfCommentConditionEmptyError{Position: pos}
	}
	if reason := unsupportedReason(cond); reason != "" {
		return nil, &IfCommentUnsupportedExpressionError{Position: pos, Expression: cond, Reason: reason}
	}
	expr, err := ifParser.ParseString("", cond)
	if err != nil {
		return nil, &IfCommentWrongExpressionError{Position: pos, Expression: cond, Err: err}
	}
	return expr, nil
}

// unsupportedReason inspects cond with its quoted literals blanked out.
func unsupportedReason(cond string) string {
	var masked strings.Builder
	for i := 0; i < len(cond); {
		if cond[i] == '\'' {
			end := skipQuoted(cond, i)
			masked.WriteString("''")
			i = end
			continue
		}
		masked.WriteByte(cond[i])
		i++
	}
	s := masked.String()

	switch {
	case strings.Contains(s, `"`):
		return "double quoted literals are not supported, use single quotes"
	case strings.Contains(s, "&&") && strings.Contains(s, "||"):
		return "&& and || cannot be mixed in one condition"
	case strings.Contains(s, "<>"):
		return "<> is not supported, use !="
	case strings.ContainsAny(s, "<>"):
		return "relational operators are not supported"
	}
	if strings.ContainsAny(strings.ReplaceAll(s, "()", ""), "()") {
		return "parentheses are not supported"
	}
	rest := strings.NewReplacer("==", "", "!=", "").Replace(s)
	if strings.Contains(rest, "=") {
		return "= is not supported, use =="
	}
	return ""
}

func (e *ifExpr) terms() []*ifTerm {
	terms := []*ifTerm{e.First}
	for _, r := range e.Rest {
		terms = append(terms, r.Term)
	}
	return terms
}

// disjunction reports whether the terms are joined by ||.
func (e *ifExpr) disjunction() bool {
	return len(e.Rest) > 0 && e.Rest[0].Connector == "||"
}

func (p *path) String() string {
	var b strings.Builder
	b.WriteString(p.Head)
	if p.HeadCall {
		b.WriteString("()")
	}
	for _, s := range p.Rest {
		b.WriteString(".")
		b.WriteString(s.Name)
		if s.Call {
			b.WriteString("()")
		}
	}
	return b.String()
}

func (p *path) names() []string {
	names := []string{p.Head}
	for _, s := range p.Rest {
		names = append(names, s.Name)
	}
	return names
}
