// Package generate renders Go source from classification definitions and
// the columns they are deployed on.
package generate

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"schemaflow/internal/classification"
	"schemaflow/internal/schema"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
)

const header = "Code generated by schemaflow. DO NOT EDIT."

// Classifications renders one Go file of package pkg holding a string type
// per classification with a constant per element, and the table/column to
// classification map of snap. snap may be nil.
func Classifications(defs *classification.Definitions, snap *schema.Snapshot, pkg string) ([]byte, error) {
	f := jen.NewFile(pkg)
	f.HeaderComment(header)

	for _, top := range defs.All() {
		if err := genClassification(f, top); err != nil {
			return nil, err
		}
	}
	genColumnMap(f, snap)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render classifications: %w", err)
	}
	return buf.Bytes(), nil
}

type constant struct {
	id      string
	element classification.Element
}

func genClassification(f *jen.File, top *classification.Top) error {
	typeName := GoName(top.Name)
	if typeName == "" {
		return fmt.Errorf("classification %q has no usable Go name", top.Name)
	}

	var consts []constant
	used := make(map[string]bool)
	for _, e := range top.AllElements() {
		id := typeName + camelize(e.Name)
		if e.Name == "" || used[id] {
			id = typeName + camelize(e.Code)
		}
		if used[id] {
			return fmt.Errorf("classification %s: element %q collides with another element", top.Name, e.Code)
		}
		used[id] = true
		consts = append(consts, constant{id: id, element: e})
	}

	f.Commentf("%s is the classification %s.", typeName, top.Name)
	if top.Comment != "" {
		f.Comment(top.Comment)
	}
	f.Type().Id(typeName).String()

	if len(consts) > 0 {
		f.Const().DefsFunc(func(g *jen.Group) {
			for _, c := range consts {
				if c.element.Comment != "" {
					g.Comment(c.element.Comment)
				}
				g.Id(c.id).Id(typeName).Op("=").Lit(c.element.Code)
			}
		})
	}

	f.Commentf("%sValues lists the elements in declaration order.", typeName)
	f.Func().Id(typeName + "Values").Params().Index().Id(typeName).Block(
		jen.Return(jen.Index().Id(typeName).ValuesFunc(func(g *jen.Group) {
			for _, c := range consts {
				g.Id(c.id)
			}
		})),
	)

	genLookup(f, typeName, "Name", "the element name", consts, func(e classification.Element) string { return e.Name })
	genLookup(f, typeName, "Alias", "the display name, the element name when no alias is set", consts, func(e classification.Element) string {
		if e.Alias != "" {
			return e.Alias
		}
		return e.Name
	})

	f.Commentf("Of%s finds the element with the given code.", typeName)
	f.Func().Id("Of"+typeName).Params(jen.Id("code").String()).Params(jen.Id(typeName), jen.Bool()).Block(
		jen.For(jen.List(jen.Id("_"), jen.Id("v")).Op(":=").Range().Id(typeName+"Values").Call()).Block(
			jen.If(jen.String().Call(jen.Id("v")).Op("==").Id("code")).Block(
				jen.Return(jen.Id("v"), jen.True()),
			),
		),
		jen.Return(jen.Lit(""), jen.False()),
	)
	return nil
}

func genLookup(f *jen.File, typeName, method, doc string, consts []constant, value func(classification.Element) string) {
	f.Commentf("%s returns %s.", method, doc)
	f.Func().Params(jen.Id("c").Id(typeName)).Id(method).Params().String().Block(
		jen.Switch(jen.Id("c")).BlockFunc(func(g *jen.Group) {
			for _, c := range consts {
				g.Case(jen.Id(c.id)).Block(jen.Return(jen.Lit(value(c.element))))
			}
		}),
		jen.Return(jen.Lit("")),
	)
}

func genColumnMap(f *jen.File, snap *schema.Snapshot) {
	dict := jen.Dict{}
	if snap != nil {
		for _, t := range snap.Tables {
			for _, c := range t.Columns {
				if c.ClassificationName != "" {
					dict[jen.Lit(t.DBName+"."+c.Name)] = jen.Lit(c.ClassificationName)
				}
			}
		}
	}
	f.Comment("ColumnClassifications maps TABLE.COLUMN to the classification deployed on it.")
	f.Var().Id("ColumnClassifications").Op("=").Map(jen.String()).String().Values(dict)
}

// GoName turns a classification or element name into an exported Go
// identifier: MEMBER_STATUS and member status both become MemberStatus.
func GoName(s string) string {
	name := camelize(s)
	if name != "" && unicode.IsDigit([]rune(name)[0]) {
		name = "N" + name
	}
	return name
}

func camelize(s string) string {
	if strings.IndexFunc(s, unicode.IsLower) < 0 {
		s = strings.ToLower(s)
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return -1
	}, inflect.Camelize(s))
}
