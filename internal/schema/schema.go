package schema

import (
	"context"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// Schema is the complete GraphQL type graph consumed by the executors. It is
// built once (from SDL or programmatically) and then read-only.
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type // all named types keyed by name
	Directives       map[string]*Directive
	Description      string

	// AST is the gqlparser schema the SDL builder produced. Query validation
	// runs against it; nil for hand-assembled schemas.
	AST *ast.Schema
}

// GetQueryType returns the root query type (may be nil if absent)
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// GetMutationType returns the root mutation type (may be nil if absent)
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// GetSubscriptionType returns the root subscription type (may be nil if absent)
func (s *Schema) GetSubscriptionType() *Type { return s.Types[s.SubscriptionType] }

// ResolveInfo carries per-execution context into resolvers. FieldName is the
// only member that varies per field; executors hand each resolver its own
// copy, so resolvers must not retain the pointer across calls.
type ResolveInfo struct {
	Schema         *Schema
	RootValue      any
	Context        any
	VariableValues map[string]any
	FieldName      string
}

// Resolver produces a field value from its parent value and coerced
// arguments. Fields without a bound Resolver fall back to attribute access
// on the source value.
type Resolver func(ctx context.Context, source any, info *ResolveInfo, args map[string]any) (any, error)

// SerializeFunc converts an internal leaf value to its response form.
type SerializeFunc func(value any) (any, error)

// ParseFunc converts an external input value (variable or literal) to its
// internal form.
type ParseFunc func(value any) (any, error)

// IsTypeOfFunc reports whether a runtime value belongs to an object type.
type IsTypeOfFunc func(value any) bool

// Type is a named GraphQL type (object, interface, union, scalar, enum, input)
type Type struct {
	Name          string
	Kind          TypeKind
	Description   string
	Fields        []*Field      // for OBJECT and INTERFACE
	Interfaces    []string      // for OBJECT and INTERFACE (implemented)
	PossibleTypes []string      // for INTERFACE and UNION
	EnumValues    []*EnumValue  // for ENUM
	InputFields   []*InputValue // for INPUT_OBJECT

	// Scalar hooks; for enums Serialize is synthesized from the value table.
	Serialize    SerializeFunc
	ParseValue   ParseFunc
	ParseLiteral ParseFunc

	// IsTypeOf discriminates runtime values for OBJECT types reached through
	// an abstract type. Optional; type-tag matching is used when absent.
	IsTypeOf IsTypeOfFunc

	SpecifiedByURL *string
	OneOf          bool
}

// Field represents a field on an object or interface.
//
// Async is a compile-time annotation, never derived from inspecting the
// resolver: it tells the JIT compiler which fields may suspend so it can
// pick an execution strategy before any resolver runs.
type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Arguments         []*InputValue
	Async             bool
	Resolver          Resolver
	IsDeprecated      bool
	DeprecationReason string
}

// GetField returns the field definition with the given name, or nil.
func (t *Type) GetField(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// GetOrderedFields returns fields in declaration order.
func (t *Type) GetOrderedFields() []*Field { return t.Fields }

// GetOrderedInputFields returns input fields in declaration order.
func (t *Type) GetOrderedInputFields() []*InputValue { return t.InputFields }

// GetEnumValue returns the enum value definition with the given name, or nil.
func (t *Type) GetEnumValue(name string) *EnumValue {
	for _, ev := range t.EnumValues {
		if ev.Name == name {
			return ev
		}
	}
	return nil
}

// GetOrderedArguments returns argument definitions in declaration order.
func (f *Field) GetOrderedArguments() []*InputValue { return f.Arguments }

// GetArgument returns the argument definition with the given name, or nil.
func (f *Field) GetArgument(name string) *InputValue {
	for _, a := range f.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// TypeKind represents the kind of GraphQL type
type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// TypeRef represents a reference to a type (can be wrapped)
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // for List and NonNull
	Named  string   // for named types
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

func (t *TypeRef) IsList() bool {
	if t == nil {
		return false
	}
	if t.Kind == TypeRefKindList {
		return true
	}
	if t.Kind == TypeRefKindNonNull && t.OfType != nil {
		return t.OfType.Kind == TypeRefKindList
	}
	return false
}

func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

func (t *TypeRef) GetNamedType() string {
	current := t
	for current != nil {
		if current.Named != "" {
			return current.Named
		}
		current = current.OfType
	}
	return ""
}

// String renders the reference in SDL notation, e.g. "[Post!]!".
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	default:
		return t.Named
	}
}

// EnumValue maps a GraphQL enum literal name onto its underlying value.
// Value defaults to the name itself unless rebound.
type EnumValue struct {
	Name              string
	Description       string
	Value             any
	IsDeprecated      bool
	DeprecationReason string
}

type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      any
	HasDefault        bool
	IsDeprecated      bool
	DeprecationReason string
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }

// IsNonNull reports whether the type is wrapped with Non-Null.
func IsNonNull(t *TypeRef) bool { return t != nil && t.IsNonNull() }

// IsList reports whether the type is (or is wrapped by) a list type.
func IsList(t *TypeRef) bool { return t != nil && t.IsList() }

// Unwrap removes one layer of Non-Null or List wrapping and returns the inner type.
func Unwrap(t *TypeRef) *TypeRef { return t.Unwrap() }

// GetNamedType returns the innermost named type for the given reference.
func GetNamedType(t *TypeRef) string { return t.GetNamedType() }

// --- construction ---

func NewSchema(description string) *Schema {
	return &Schema{
		Types:       make(map[string]*Type),
		Directives:  make(map[string]*Directive),
		Description: description,
	}
}

func (s *Schema) SetQueryType(name string) *Schema        { s.QueryType = name; return s }
func (s *Schema) SetMutationType(name string) *Schema     { s.MutationType = name; return s }
func (s *Schema) SetSubscriptionType(name string) *Schema { s.SubscriptionType = name; return s }

func (s *Schema) AddType(t *Type) *Schema {
	s.Types[t.Name] = t
	return s
}

func (s *Schema) AddDirective(d *Directive) *Schema {
	s.Directives[d.Name] = d
	return s
}

func NewType(name string, kind TypeKind, description string) *Type {
	return &Type{Name: name, Kind: kind, Description: description}
}

func (t *Type) AddField(f *Field) *Type             { t.Fields = append(t.Fields, f); return t }
func (t *Type) AddInterface(name string) *Type      { t.Interfaces = append(t.Interfaces, name); return t }
func (t *Type) AddPossibleType(name string) *Type   { t.PossibleTypes = append(t.PossibleTypes, name); return t }
func (t *Type) AddEnumValue(v *EnumValue) *Type     { t.EnumValues = append(t.EnumValues, v); return t }
func (t *Type) AddInputField(v *InputValue) *Type   { t.InputFields = append(t.InputFields, v); return t }
func (t *Type) SetOneOf(oneOf bool) *Type           { t.OneOf = oneOf; return t }
func (t *Type) SetIsTypeOf(fn IsTypeOfFunc) *Type   { t.IsTypeOf = fn; return t }
func (t *Type) SetSerialize(fn SerializeFunc) *Type { t.Serialize = fn; return t }

func NewField(name, description string, typ *TypeRef) *Field {
	return &Field{Name: name, Description: description, Type: typ}
}

func (f *Field) SetAsync(async bool) *Field      { f.Async = async; return f }
func (f *Field) SetResolver(r Resolver) *Field   { f.Resolver = r; return f }
func (f *Field) AddArgument(a *InputValue) *Field { f.Arguments = append(f.Arguments, a); return f }
func (f *Field) Deprecate(reason string) *Field {
	f.IsDeprecated = true
	f.DeprecationReason = reason
	return f
}

func NewEnumValue(name, description string) *EnumValue {
	return &EnumValue{Name: name, Description: description, Value: name}
}

func (v *EnumValue) SetValue(value any) *EnumValue { v.Value = value; return v }
func (v *EnumValue) Deprecate(reason string) *EnumValue {
	v.IsDeprecated = true
	v.DeprecationReason = reason
	return v
}

func NewInputValue(name, description string, typ *TypeRef) *InputValue {
	return &InputValue{Name: name, Description: description, Type: typ}
}

func (v *InputValue) SetDefault(value any) *InputValue {
	v.DefaultValue = value
	v.HasDefault = true
	return v
}

func (v *InputValue) Deprecate(reason string) *InputValue {
	v.IsDeprecated = true
	v.DeprecationReason = reason
	return v
}

func NewDirective(name, description string) *Directive {
	return &Directive{Name: name, Description: description}
}

func (d *Directive) SetRepeatable(r bool) *Directive     { d.IsRepeatable = r; return d }
func (d *Directive) AddArgument(a *InputValue) *Directive { d.Arguments = append(d.Arguments, a); return d }

// --- binding ---

// BindResolver attaches a synchronous resolver to typeName.fieldName.
func (s *Schema) BindResolver(typeName, fieldName string, r Resolver) error {
	return s.bind(typeName, fieldName, r, false)
}

// BindAsyncResolver attaches a resolver whose field may suspend. The JIT
// compiler consults this flag ahead of code generation; it never inspects
// the resolver itself.
func (s *Schema) BindAsyncResolver(typeName, fieldName string, r Resolver) error {
	return s.bind(typeName, fieldName, r, true)
}

func (s *Schema) bind(typeName, fieldName string, r Resolver, async bool) error {
	t := s.Types[typeName]
	if t == nil {
		return fmt.Errorf("schema: unknown type %q", typeName)
	}
	f := t.GetField(fieldName)
	if f == nil {
		return fmt.Errorf("schema: unknown field %q on type %q", fieldName, typeName)
	}
	f.Resolver = r
	f.Async = async
	return nil
}

// RegisterScalar attaches serialize/parse hooks to a custom scalar type.
// Any of the hooks may be nil.
func (s *Schema) RegisterScalar(name string, serialize SerializeFunc, parseValue, parseLiteral ParseFunc) error {
	t := s.Types[name]
	if t == nil || t.Kind != TypeKindScalar {
		return fmt.Errorf("schema: %q is not a scalar type", name)
	}
	t.Serialize = serialize
	t.ParseValue = parseValue
	t.ParseLiteral = parseLiteral
	return nil
}

// RegisterEnumValue rebinds the underlying value of an enum literal.
func (s *Schema) RegisterEnumValue(typeName, valueName string, value any) error {
	t := s.Types[typeName]
	if t == nil || t.Kind != TypeKindEnum {
		return fmt.Errorf("schema: %q is not an enum type", typeName)
	}
	ev := t.GetEnumValue(valueName)
	if ev == nil {
		return fmt.Errorf("schema: enum %q has no value %q", typeName, valueName)
	}
	ev.Value = value
	return nil
}

// RegisterIsTypeOf attaches a runtime discrimination predicate to an object type.
func (s *Schema) RegisterIsTypeOf(typeName string, fn IsTypeOfFunc) error {
	t := s.Types[typeName]
	if t == nil || t.Kind != TypeKindObject {
		return fmt.Errorf("schema: %q is not an object type", typeName)
	}
	t.IsTypeOf = fn
	return nil
}
