// Package classification resolves which enumerated code set (a
// classification) belongs to which column, and validates codes against it.
package classification

import (
	"fmt"

	"schemaflow/internal/flexmap"
)

// Element is one code of a classification.
type Element struct {
	Code    string `mapstructure:"code" yaml:"code"`
	Name    string `mapstructure:"name" yaml:"name"`
	Alias   string `mapstructure:"alias" yaml:"alias,omitempty"`
	Comment string `mapstructure:"comment" yaml:"comment,omitempty"`
}

// Top is a classification definition.
type Top struct {
	Name              string    `mapstructure:"name" yaml:"name"`
	Comment           string    `mapstructure:"comment" yaml:"comment,omitempty"`
	RelatedColumnHint string    `mapstructure:"relatedColumnHint" yaml:"relatedColumnHint,omitempty"`
	Elements          []Element `mapstructure:"elements" yaml:"elements"`
	// RefCls names another classification whose codes this one reuses.
	RefCls string `mapstructure:"refCls" yaml:"refCls,omitempty"`
	// RefClsElements are the referenced elements, filled by NewDefinitions.
	RefClsElements []Element `mapstructure:"-" yaml:"-"`
}

// Element returns the element with the given code.
func (t *Top) Element(code string) (Element, bool) {
	for _, e := range t.AllElements() {
		if e.Code == code {
			return e, true
		}
	}
	return Element{}, false
}

// AllElements returns the own elements, or the referenced ones when the
// classification declares none itself.
func (t *Top) AllElements() []Element {
	if len(t.Elements) == 0 {
		return t.RefClsElements
	}
	return t.Elements
}

// Codes lists the codes in declaration order.
func (t *Top) Codes() []string {
	elements := t.AllElements()
	codes := make([]string, len(elements))
	for i, e := range elements {
		codes[i] = e.Code
	}
	return codes
}

// Definitions is the ordered set of classifications, looked up by flexible
// name.
type Definitions struct {
	tops *flexmap.Map[*Top]
}

// NewDefinitions registers tops in order and resolves their references.
// A reference to an unknown classification, or an own code missing from the
// referenced classification, is an error.
func NewDefinitions(tops ...*Top) (*Definitions, error) {
	d := &Definitions{tops: flexmap.NewFlexible[*Top]()}
	for _, t := range tops {
		if t.Name == "" {
			return nil, fmt.Errorf("classification without name")
		}
		if !d.tops.PutIfAbsent(t.Name, t) {
			return nil, fmt.Errorf("duplicate classification %q", t.Name)
		}
	}
	if err := d.resolve(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Definitions) resolve() error {
	for name, t := range d.tops.All() {
		if t.RefCls == "" {
			continue
		}
		ref, ok := d.tops.Get(t.RefCls)
		if !ok {
			return fmt.Errorf("classification %q refers to unknown classification %q", name, t.RefCls)
		}
		if ref.RefCls != "" {
			return fmt.Errorf("classification %q refers to %q which is itself a reference", name, t.RefCls)
		}
		if len(t.Elements) == 0 {
			t.RefClsElements = append([]Element(nil), ref.Elements...)
			continue
		}
		t.RefClsElements = nil
		for _, own := range t.Elements {
			e, found := ref.Element(own.Code)
			if !found {
				return fmt.Errorf("classification %q has code %q not found in %q", name, own.Code, t.RefCls)
			}
			t.RefClsElements = append(t.RefClsElements, e)
		}
	}
	return nil
}

// Get returns a classification by name.
func (d *Definitions) Get(name string) (*Top, bool) {
	return d.tops.Get(name)
}

// Names lists classification names in declaration order.
func (d *Definitions) Names() []string {
	return d.tops.Keys()
}

// All lists the classifications in declaration order.
func (d *Definitions) All() []*Top {
	return d.tops.Values()
}
