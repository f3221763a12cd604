// Package introspection resolves the __schema and __type meta fields over
// the schema model. Both execution paths share it: the tree-walking
// executor calls ResolveField while walking a meta selection, and the JIT
// compiler bakes the same calls into its generated closures.
package introspection

import (
	"fmt"
	"sort"
	"strconv"

	schema "github.com/hanpama/graphjit/internal/schema"
)

// ResolveField resolves a single meta field against an introspection value:
// the schema itself, a type, a type reference, a field, an input value, an
// enum value or a directive. The second return is false when the field does
// not exist on the given parent.
func ResolveField(sch *schema.Schema, parent any, fieldName string, args map[string]any) (any, bool) {
	switch p := parent.(type) {
	case *schema.Schema:
		return resolveSchemaField(p, fieldName)
	case *schema.Type:
		return resolveTypeField(sch, p, fieldName, args)
	case *schema.TypeRef:
		return resolveTypeRefField(sch, p, fieldName, args)
	case *schema.Field:
		return resolveFieldField(p, fieldName, args)
	case *schema.InputValue:
		return resolveInputValueField(p, fieldName)
	case *schema.EnumValue:
		return resolveEnumValueField(p, fieldName)
	case *schema.Directive:
		return resolveDirectiveField(p, fieldName, args)
	}
	return nil, false
}

// NextMetaType returns the meta type produced by fieldName on metaType, or
// "" when the field yields a leaf value.
func NextMetaType(metaType, fieldName string) string {
	switch metaType {
	case "__Schema":
		switch fieldName {
		case "types", "queryType", "mutationType", "subscriptionType":
			return "__Type"
		case "directives":
			return "__Directive"
		}
	case "__Type":
		switch fieldName {
		case "fields":
			return "__Field"
		case "interfaces", "possibleTypes", "ofType":
			return "__Type"
		case "enumValues":
			return "__EnumValue"
		case "inputFields":
			return "__InputValue"
		}
	case "__Field":
		switch fieldName {
		case "args":
			return "__InputValue"
		case "type":
			return "__Type"
		}
	case "__InputValue":
		if fieldName == "type" {
			return "__Type"
		}
	case "__Directive":
		if fieldName == "args" {
			return "__InputValue"
		}
	}
	return ""
}

func resolveSchemaField(s *schema.Schema, fieldName string) (any, bool) {
	switch fieldName {
	case "description":
		return nullableString(s.Description), true
	case "types":
		names := make([]string, 0, len(s.Types))
		for name := range s.Types {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]any, len(names))
		for i, name := range names {
			out[i] = s.Types[name]
		}
		return out, true
	case "queryType":
		return typeOrNil(s.GetQueryType()), true
	case "mutationType":
		return typeOrNil(s.GetMutationType()), true
	case "subscriptionType":
		return typeOrNil(s.GetSubscriptionType()), true
	case "directives":
		names := make([]string, 0, len(s.Directives))
		for name := range s.Directives {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]any, len(names))
		for i, name := range names {
			out[i] = s.Directives[name]
		}
		return out, true
	}
	return nil, false
}

func resolveTypeField(sch *schema.Schema, t *schema.Type, fieldName string, args map[string]any) (any, bool) {
	switch fieldName {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return nullableString(t.Description), true
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		includeDeprecated, _ := args["includeDeprecated"].(bool)
		out := make([]any, 0, len(t.Fields))
		for _, f := range t.GetOrderedFields() {
			if f.IsDeprecated && !includeDeprecated {
				continue
			}
			out = append(out, f)
		}
		return out, true
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		out := make([]any, len(t.Interfaces))
		for i, name := range t.Interfaces {
			out[i] = sch.Types[name]
		}
		return out, true
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil, true
		}
		out := make([]any, len(t.PossibleTypes))
		for i, name := range t.PossibleTypes {
			out[i] = sch.Types[name]
		}
		return out, true
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, true
		}
		includeDeprecated, _ := args["includeDeprecated"].(bool)
		out := make([]any, 0, len(t.EnumValues))
		for _, ev := range t.EnumValues {
			if ev.IsDeprecated && !includeDeprecated {
				continue
			}
			out = append(out, ev)
		}
		return out, true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		includeDeprecated, _ := args["includeDeprecated"].(bool)
		out := make([]any, 0, len(t.InputFields))
		for _, iv := range t.GetOrderedInputFields() {
			if iv.IsDeprecated && !includeDeprecated {
				continue
			}
			out = append(out, iv)
		}
		return out, true
	case "ofType":
		return nil, true
	case "specifiedByURL":
		if t.SpecifiedByURL == nil {
			return nil, true
		}
		return *t.SpecifiedByURL, true
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return t.OneOf, true
	}
	return nil, false
}

// resolveTypeRefField resolves __Type fields on a wrapped type reference.
// Named references delegate to the named type; list and non-null wrappers
// answer kind/ofType themselves and null out everything else.
func resolveTypeRefField(sch *schema.Schema, ref *schema.TypeRef, fieldName string, args map[string]any) (any, bool) {
	if ref.Kind == schema.TypeRefKindNamed {
		t := sch.Types[ref.Named]
		if t == nil {
			return nil, false
		}
		return resolveTypeField(sch, t, fieldName, args)
	}
	switch fieldName {
	case "kind":
		if ref.Kind == schema.TypeRefKindNonNull {
			return "NON_NULL", true
		}
		return "LIST", true
	case "ofType":
		return ref.OfType, true
	case "name", "description", "fields", "interfaces", "possibleTypes",
		"enumValues", "inputFields", "specifiedByURL", "isOneOf":
		return nil, true
	}
	return nil, false
}

func resolveFieldField(f *schema.Field, fieldName string, args map[string]any) (any, bool) {
	switch fieldName {
	case "name":
		return f.Name, true
	case "description":
		return nullableString(f.Description), true
	case "args":
		includeDeprecated, _ := args["includeDeprecated"].(bool)
		out := make([]any, 0, len(f.Arguments))
		for _, a := range f.GetOrderedArguments() {
			if a.IsDeprecated && !includeDeprecated {
				continue
			}
			out = append(out, a)
		}
		return out, true
	case "type":
		return f.Type, true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return nullableString(f.DeprecationReason), true
	}
	return nil, false
}

func resolveInputValueField(v *schema.InputValue, fieldName string) (any, bool) {
	switch fieldName {
	case "name":
		return v.Name, true
	case "description":
		return nullableString(v.Description), true
	case "type":
		return v.Type, true
	case "defaultValue":
		if !v.HasDefault {
			return nil, true
		}
		return renderValue(v.DefaultValue), true
	case "isDeprecated":
		return v.IsDeprecated, true
	case "deprecationReason":
		return nullableString(v.DeprecationReason), true
	}
	return nil, false
}

func resolveEnumValueField(v *schema.EnumValue, fieldName string) (any, bool) {
	switch fieldName {
	case "name":
		return v.Name, true
	case "description":
		return nullableString(v.Description), true
	case "isDeprecated":
		return v.IsDeprecated, true
	case "deprecationReason":
		return nullableString(v.DeprecationReason), true
	}
	return nil, false
}

func resolveDirectiveField(d *schema.Directive, fieldName string, args map[string]any) (any, bool) {
	switch fieldName {
	case "name":
		return d.Name, true
	case "description":
		return nullableString(d.Description), true
	case "locations":
		out := make([]any, len(d.Locations))
		for i, loc := range d.Locations {
			out[i] = loc
		}
		return out, true
	case "args":
		includeDeprecated, _ := args["includeDeprecated"].(bool)
		out := make([]any, 0, len(d.Arguments))
		for _, a := range d.Arguments {
			if a.IsDeprecated && !includeDeprecated {
				continue
			}
			out = append(out, a)
		}
		return out, true
	case "isRepeatable":
		return d.IsRepeatable, true
	}
	return nil, false
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func typeOrNil(t *schema.Type) any {
	if t == nil {
		return nil
	}
	return t
}

// renderValue renders a default value as a GraphQL literal string.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []any:
		out := "["
		for i, item := range val {
			if i > 0 {
				out += ", "
			}
			out += renderValue(item)
		}
		return out + "]"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ", "
			}
			out += k + ": " + renderValue(val[k])
		}
		return out + "}"
	default:
		return fmt.Sprintf("%v", val)
	}
}
