package twowaysql

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// resolve evaluates a variable path against ctx. A nil value in the middle
// of the path makes the whole path nil.
func resolve(ctx *CommandContext, p *path, expr string) (any, reflect.Type, error) {
	v, typ, ok := ctx.Arg(p.Head)
	if !ok {
		return nil, nil, &PropertyNotFoundError{Expression: expr, Property: p.Head}
	}
	for _, seg := range p.Rest {
		if isNil(v) {
			return nil, typ, nil
		}
		var err error
		v, typ, err = property(v, seg.Name, expr)
		if err != nil {
			return nil, nil, err
		}
	}
	return v, typ, nil
}

// property reads name from a map, a struct field or a niladic method. Names
// compare case-insensitively; getX and isX resolve to the X property too.
func property(v any, name, expr string) (any, reflect.Type, error) {
	rv := reflect.ValueOf(v)

	if m := findMethod(rv, name); m.IsValid() {
		out := m.Call(nil)
		return out[0].Interface(), out[0].Type(), nil
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		for _, key := range []string{name, propertyName(name)} {
			if mv := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key())); mv.IsValid() {
				return mv.Interface(), mapValueType(rv, mv), nil
			}
		}
		iter := rv.MapRange()
		for iter.Next() {
			if strings.EqualFold(iter.Key().String(), propertyName(name)) {
				return iter.Value().Interface(), mapValueType(rv, iter.Value()), nil
			}
		}
		// an absent key reads as null, the way an unset bean property does
		return nil, nil, nil
	case reflect.Struct:
		target := propertyName(name)
		f := rv.FieldByNameFunc(func(field string) bool { return strings.EqualFold(field, target) })
		if f.IsValid() && f.CanInterface() {
			return f.Interface(), f.Type(), nil
		}
	}
	return nil, nil, &PropertyNotFoundError{Expression: expr, Property: name, Type: reflect.TypeOf(v).String()}
}

func mapValueType(m, v reflect.Value) reflect.Type {
	if v.Kind() == reflect.Interface && !v.IsNil() {
		return v.Elem().Type()
	}
	if v.Kind() == reflect.Interface {
		return nil
	}
	return m.Type().Elem()
}

// findMethod looks for an exported niladic method named after the property,
// with or without a Get prefix.
func findMethod(rv reflect.Value, name string) reflect.Value {
	if !rv.IsValid() {
		return reflect.Value{}
	}
	exported := upperFirst(name)
	candidates := []string{exported}
	if !strings.HasPrefix(name, "get") && !strings.HasPrefix(name, "is") {
		candidates = append(candidates, "Get"+exported)
	}
	for _, c := range candidates {
		m := rv.MethodByName(c)
		if m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() >= 1 {
			return m
		}
	}
	return reflect.Value{}
}

// propertyName strips a getter prefix: getMemberName and isPaging become
// MemberName and Paging.
func propertyName(name string) string {
	for _, prefix := range []string{"get", "is"} {
		rest, ok := strings.CutPrefix(name, prefix)
		if ok && rest != "" {
			if r, _ := utf8.DecodeRuneInString(rest); unicode.IsUpper(r) {
				return rest
			}
		}
	}
	return name
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

// listOf returns the elements of a slice or array other than []byte.
func listOf(v any) ([]any, reflect.Type, bool) {
	rv := reflect.ValueOf(deref(v))
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, nil, false
	}
	elems := make([]any, rv.Len())
	for i := range elems {
		elems[i] = rv.Index(i).Interface()
	}
	return elems, rv.Type().Elem(), true
}

// isEmptyValue is the test of BEGIN enablement: nil, "" and empty lists
// do not count.
func isEmptyValue(v any) bool {
	v = deref(v)
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	if elems, _, ok := listOf(v); ok {
		return len(elems) == 0
	}
	return false
}

// number is a numeric literal of an IF condition.
type number float64

// equal compares an IF operand with a literal or another operand. Numbers
// compare by value, strings by their text.
func equal(a, b any) bool {
	a, b = deref(a), deref(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, ok := a.(number); ok {
		fb, ok := toFloat(b)
		return ok && float64(na) == fb
	}
	if nb, ok := b.(number); ok {
		fa, ok := toFloat(a)
		return ok && fa == float64(nb)
	}
	_, sa := a.(string)
	_, sb := b.(string)
	if sa || sb {
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		f, err := strconv.ParseFloat(rv.String(), 64)
		return f, err == nil
	}
	return 0, false
}
