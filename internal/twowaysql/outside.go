package twowaysql

import (
	"errors"
	"regexp"
	"strings"
)

// EntityKind is the result shape declared by a customize entity mark.
type EntityKind string

const (
	EntityKindNone   EntityKind = ""
	EntityKindEntity EntityKind = "entity"
	EntityKindCursor EntityKind = "cursor"
	EntityKindScalar EntityKind = "scalar"
	EntityKindPaging EntityKind = "paging"
)

// PmbProperty is one -- !!Type name!! declaration. Option is the text after
// a colon, such as like or likePrefix.
type PmbProperty struct {
	Type   string
	Name   string
	Option string
	Line   int
}

// OutsideSQLMeta is what the marker comments of an outside SQL file declare.
type OutsideSQLMeta struct {
	EntityKind    EntityKind
	ParameterBean bool
	Extends       string
	AutoDetect    bool
	Properties    []PmbProperty
}

var (
	entityMark = regexp.MustCompile(`^#df:(entity|cursor|scalar|paging)#$`)
	pmbMark    = regexp.MustCompile(`^!df:pmb(?:\s+extends\s+([A-Za-z_][A-Za-z0-9_]*))?!$`)
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ParseOutsideSQLMeta reads the -- line markers of sql. All malformed markers
// are reported together.
func ParseOutsideSQLMeta(sql string) (*OutsideSQLMeta, error) {
	meta, errs := parseOutside(sql)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return meta, nil
}

func parseOutside(sql string) (*OutsideSQLMeta, []error) {
	meta := &OutsideSQLMeta{}
	var errs []error
	seen := make(map[string]bool)
	for i, line := range strings.Split(sql, "\n") {
		lineNo := i + 1
		body, ok := strings.CutPrefix(strings.TrimSpace(line), "--")
		if !ok {
			continue
		}
		mark := strings.TrimSpace(body)
		switch {
		case strings.HasPrefix(mark, "#df:"):
			m := entityMark.FindStringSubmatch(mark)
			if m == nil {
				errs = append(errs, &CustomizeEntityMarkInvalidError{Line: lineNo, Mark: mark})
				continue
			}
			meta.EntityKind = EntityKind(m[1])

		case strings.HasPrefix(mark, "!df:"):
			m := pmbMark.FindStringSubmatch(mark)
			if m == nil {
				errs = append(errs, &ParameterBeanMarkInvalidError{Line: lineNo, Mark: mark})
				continue
			}
			meta.ParameterBean = true
			meta.Extends = m[1]

		case strings.HasPrefix(mark, "!!"):
			prop, err := parsePmbProperty(mark, lineNo)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if prop == nil {
				meta.AutoDetect = true
				continue
			}
			if seen[strings.ToLower(prop.Name)] {
				errs = append(errs, &ParameterBeanPropertyInvalidError{Line: lineNo, Property: mark, Reason: "duplicate property " + prop.Name})
				continue
			}
			seen[strings.ToLower(prop.Name)] = true
			meta.Properties = append(meta.Properties, *prop)
		}
	}
	if !meta.ParameterBean && (len(meta.Properties) > 0 || meta.AutoDetect) {
		line := 0
		if len(meta.Properties) > 0 {
			line = meta.Properties[0].Line
		}
		errs = append(errs, &ParameterBeanPropertyInvalidError{Line: line, Property: "", Reason: "properties are declared without a -- !df:pmb! mark"})
	}
	return meta, errs
}

// parsePmbProperty reads !!Type name!! or !!Type name:option!!. It returns a
// nil property for !!AutoDetect!!.
func parsePmbProperty(mark string, line int) (*PmbProperty, error) {
	inner, ok := strings.CutSuffix(mark[2:], "!!")
	if !ok {
		return nil, &ParameterBeanPropertyInvalidError{Line: line, Property: mark, Reason: "missing closing !!"}
	}
	inner = strings.TrimSpace(inner)
	if inner == "AutoDetect" {
		return nil, nil
	}
	sep := strings.LastIndexAny(inner, " \t")
	if sep < 0 {
		return nil, &ParameterBeanPropertyInvalidError{Line: line, Property: mark, Reason: "expected a type and a name"}
	}
	typ, name := strings.TrimSpace(inner[:sep]), inner[sep+1:]
	name, option, _ := strings.Cut(name, ":")
	if !identifier.MatchString(name) {
		return nil, &ParameterBeanPropertyInvalidError{Line: line, Property: mark, Reason: "invalid property name " + name}
	}
	return &PmbProperty{Type: typ, Name: name, Option: option, Line: line}, nil
}
