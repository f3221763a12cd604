package schema

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/graphjit/internal/language"
)

// BuildFromSDL parses and validates SDL into a Schema. Resolvers, scalar
// hooks and enum values are bound afterwards through the Bind/Register
// methods; until then every field resolves by attribute access.
func BuildFromSDL(sdl string) (*Schema, error) {
	astSchema, err := language.LoadSchema("schema.graphql", sdl)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return buildFromAST(astSchema)
}

func buildFromAST(src *ast.Schema) (*Schema, error) {
	s := NewSchema(src.Description)
	s.AST = src
	if src.Query != nil {
		s.SetQueryType(src.Query.Name)
	}
	if src.Mutation != nil {
		s.SetMutationType(src.Mutation.Name)
	}
	if src.Subscription != nil {
		s.SetSubscriptionType(src.Subscription.Name)
	}
	addBuiltins(s)

	names := make([]string, 0, len(src.Types))
	for name := range src.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := src.Types[name]
		if def.BuiltIn || isMetaType(name) {
			continue
		}
		t, err := buildDefinition(def)
		if err != nil {
			return nil, err
		}
		s.AddType(t)
	}

	// Interface implementers are not listed on the interface definition;
	// scan the full type map for them.
	for _, t := range s.Types {
		if t.Kind != TypeKindInterface {
			continue
		}
		var possible []string
		for _, candidate := range s.Types {
			if candidate.Kind != TypeKindObject {
				continue
			}
			for _, iface := range candidate.Interfaces {
				if iface == t.Name {
					possible = append(possible, candidate.Name)
				}
			}
		}
		sort.Strings(possible)
		t.PossibleTypes = possible
	}

	for name, def := range src.Directives {
		switch name {
		case "skip", "include", "deprecated", "specifiedBy", "oneOf", "defer":
			continue
		}
		s.AddDirective(buildDirectiveDef(def))
	}
	return s, nil
}

func isMetaType(name string) bool {
	return len(name) >= 2 && name[0] == '_' && name[1] == '_'
}

func buildDefinition(def *ast.Definition) (*Type, error) {
	switch def.Kind {
	case ast.Object, ast.Interface:
		kind := TypeKindObject
		if def.Kind == ast.Interface {
			kind = TypeKindInterface
		}
		t := NewType(def.Name, kind, def.Description)
		for _, iface := range def.Interfaces {
			t.AddInterface(iface)
		}
		for _, fd := range def.Fields {
			if isMetaType(fd.Name) {
				continue
			}
			t.AddField(buildFieldDef(fd))
		}
		return t, nil
	case ast.Union:
		t := NewType(def.Name, TypeKindUnion, def.Description)
		for _, member := range def.Types {
			t.AddPossibleType(member)
		}
		return t, nil
	case ast.Enum:
		t := NewType(def.Name, TypeKindEnum, def.Description)
		for _, ev := range def.EnumValues {
			value := NewEnumValue(ev.Name, ev.Description)
			if reason, ok := deprecation(ev.Directives); ok {
				value.Deprecate(reason)
			}
			t.AddEnumValue(value)
		}
		t.Serialize = enumSerializer(t)
		return t, nil
	case ast.Scalar:
		return NewType(def.Name, TypeKindScalar, def.Description), nil
	case ast.InputObject:
		t := NewType(def.Name, TypeKindInputObject, def.Description)
		for _, fd := range def.Fields {
			iv := NewInputValue(fd.Name, fd.Description, buildTypeRef(fd.Type))
			if fd.DefaultValue != nil {
				iv.SetDefault(valueToGo(fd.DefaultValue))
			}
			t.AddInputField(iv)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("schema: unsupported definition kind %s for %q", def.Kind, def.Name)
	}
}

func buildFieldDef(fd *ast.FieldDefinition) *Field {
	f := NewField(fd.Name, fd.Description, buildTypeRef(fd.Type))
	for _, ad := range fd.Arguments {
		iv := NewInputValue(ad.Name, ad.Description, buildTypeRef(ad.Type))
		if ad.DefaultValue != nil {
			iv.SetDefault(valueToGo(ad.DefaultValue))
		}
		f.AddArgument(iv)
	}
	if reason, ok := deprecation(fd.Directives); ok {
		f.Deprecate(reason)
	}
	return f
}

func buildDirectiveDef(def *ast.DirectiveDefinition) *Directive {
	d := NewDirective(def.Name, def.Description).SetRepeatable(def.IsRepeatable)
	for _, loc := range def.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, ad := range def.Arguments {
		iv := NewInputValue(ad.Name, ad.Description, buildTypeRef(ad.Type))
		if ad.DefaultValue != nil {
			iv.SetDefault(valueToGo(ad.DefaultValue))
		}
		d.AddArgument(iv)
	}
	return d
}

func buildTypeRef(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		inner := *t
		inner.NonNull = false
		return NonNullType(buildTypeRef(&inner))
	}
	if t.NamedType != "" {
		return NamedType(t.NamedType)
	}
	return ListType(buildTypeRef(t.Elem))
}

// enumSerializer maps underlying enum values back to their literal names.
// Values already in literal form pass through unchanged.
func enumSerializer(t *Type) SerializeFunc {
	return func(value any) (any, error) {
		for _, ev := range t.EnumValues {
			if ev.Value == value || ev.Name == value {
				return ev.Name, nil
			}
		}
		return nil, fmt.Errorf("enum %q cannot represent value %v", t.Name, value)
	}
}

func deprecation(directives ast.DirectiveList) (string, bool) {
	d := directives.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return "No longer supported", true
}

// valueToGo converts a constant AST value (no variables) to a Go value.
func valueToGo(v *ast.Value) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case ast.IntValue:
		iv, _ := strconv.Atoi(v.Raw)
		return iv
	case ast.FloatValue:
		fv, _ := strconv.ParseFloat(v.Raw, 64)
		return fv
	case ast.StringValue, ast.BlockValue:
		return v.Raw
	case ast.BooleanValue:
		return v.Raw == "true"
	case ast.NullValue:
		return nil
	case ast.EnumValue:
		return v.Raw
	case ast.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i] = valueToGo(c.Value)
		}
		return out
	case ast.ObjectValue:
		m := make(map[string]any)
		for _, c := range v.Children {
			m[c.Name] = valueToGo(c.Value)
		}
		return m
	default:
		return nil
	}
}
