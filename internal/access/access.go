// Package access resolves field values off arbitrary parent values when no
// resolver is bound: map lookups, exported struct fields and simple methods.
// Per-type getter tables are built once and cached, so the reflective scan
// happens at most once per (Go type, field name) pair.
package access

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Typenamer lets a value declare its concrete GraphQL type name explicitly,
// taking precedence over the Go type name during abstract-type
// discrimination.
type Typenamer interface {
	Typename() string
}

type getter func(v reflect.Value) (any, bool)

type typeKey struct {
	t     reflect.Type
	field string
}

var getterCache sync.Map // typeKey -> getter

// Get fetches a named field from source. Sources may be map[string]any,
// structs, pointers to structs, or values with a matching zero-argument
// method. The second return is false when the field is not present.
func Get(source any, field string) (any, bool) {
	if source == nil {
		return nil, false
	}
	if m, ok := source.(map[string]any); ok {
		v, ok := m[field]
		return v, ok
	}
	rv := reflect.ValueOf(source)
	g := lookupGetter(rv.Type(), field)
	if g == nil {
		return nil, false
	}
	return g(rv)
}

// Resolve fetches a field like Get, but additionally invokes callable
// members: methods and func-valued fields taking no arguments or a single
// args map, optionally returning a trailing error.
func Resolve(source any, field string, args map[string]any) (any, error) {
	v, ok := Get(source, field)
	if !ok {
		return nil, nil
	}
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func {
		return v, nil
	}
	return call(rv, args)
}

// TypeName returns the concrete type tag for a runtime value: an explicit
// Typename method or __typename map entry when present, else the Go type
// name with any pointer indirection stripped.
func TypeName(value any) string {
	if tn, ok := value.(Typenamer); ok {
		return tn.Typename()
	}
	if m, ok := value.(map[string]any); ok {
		if tn, ok := m["__typename"].(string); ok {
			return tn
		}
	}
	t := reflect.TypeOf(value)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

func lookupGetter(t reflect.Type, field string) getter {
	key := typeKey{t: t, field: field}
	if g, ok := getterCache.Load(key); ok {
		return g.(getter)
	}
	g := buildGetter(t, field)
	getterCache.Store(key, g)
	return g
}

func buildGetter(t reflect.Type, field string) getter {
	// Methods first: value receiver then pointer receiver.
	if m, ok := findMethod(t, field); ok {
		idx := m.Index
		return func(v reflect.Value) (any, bool) {
			return v.Method(idx).Interface(), true
		}
	}

	elem := t
	indirect := false
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
		indirect = true
	}
	if elem.Kind() != reflect.Struct {
		return nil
	}
	if sf, ok := findField(elem, field); ok {
		idx := sf.Index
		return func(v reflect.Value) (any, bool) {
			if indirect {
				if v.IsNil() {
					return nil, false
				}
				v = v.Elem()
			}
			return v.FieldByIndex(idx).Interface(), true
		}
	}
	return nil
}

func findMethod(t reflect.Type, field string) (reflect.Method, bool) {
	want := strings.ToLower(field)
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if strings.ToLower(m.Name) == want {
			return m, true
		}
	}
	return reflect.Method{}, false
}

func findField(t reflect.Type, field string) (reflect.StructField, bool) {
	want := strings.ToLower(field)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if tag, ok := sf.Tag.Lookup("json"); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name == field {
				return sf, true
			}
		}
		if strings.ToLower(sf.Name) == want {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}

func call(fn reflect.Value, args map[string]any) (any, error) {
	t := fn.Type()
	var in []reflect.Value
	switch t.NumIn() {
	case 0:
	case 1:
		if t.In(0) != reflect.TypeOf(map[string]any(nil)) {
			return nil, fmt.Errorf("access: unsupported callable signature %s", t)
		}
		if args == nil {
			args = map[string]any{}
		}
		in = []reflect.Value{reflect.ValueOf(args)}
	default:
		return nil, fmt.Errorf("access: unsupported callable signature %s", t)
	}
	out := fn.Call(in)
	switch len(out) {
	case 1:
		return out[0].Interface(), nil
	case 2:
		if err, ok := out[1].Interface().(error); ok && err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		return nil, fmt.Errorf("access: unsupported callable return arity %d", len(out))
	}
}
