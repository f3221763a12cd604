package jit

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	access "github.com/hanpama/graphjit/internal/access"
	executor "github.com/hanpama/graphjit/internal/executor"
	language "github.com/hanpama/graphjit/internal/language"
	schema "github.com/hanpama/graphjit/internal/schema"
)

// execNode is one compiled plan node. It resolves its selections against
// parent and writes response entries into result. A returned error means a
// non-null field failed and the caller must null its own slot.
type execNode func(st *execState, parent any, result map[string]any, path executor.Path) error

// valueFn produces one materialized argument or directive value per call.
type valueFn func(st *execState) (any, error)

// execState is the per-invocation state of a compiled plan. A fresh one is
// built for every Execute call, so a compiled plan is safe to invoke
// concurrently.
type execState struct {
	ctx       context.Context
	schema    *schema.Schema
	info      schema.ResolveInfo
	resolvers map[string]schema.Resolver

	mu     sync.Mutex
	errors []executor.GraphQLError
}

// addError appends a structured error entry unless one with the identical
// message is already recorded. The message-text match is what keeps a
// non-null failure from producing one entry per enclosing ancestor as it
// bubbles up.
func (st *execState) addError(message string, path executor.Path, ext map[string]any) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, e := range st.errors {
		if e.Message == message {
			return
		}
	}
	st.errors = append(st.errors, executor.GraphQLError{
		Message:    message,
		Path:       path,
		Locations:  []executor.Location{},
		Extensions: ext,
	})
}

// planner accumulates the state of one compilation: dispatch counters, the
// resolver binding map, fragments, strategy flags and the plan listing.
// It is built fresh per Compile call and never shared across compilations.
type planner struct {
	schema    *schema.Schema
	fragments map[string]*language.FragmentDefinition

	fieldCounter  int
	nestedCounter int
	itemCounter   int

	resolvers        map[string]schema.Resolver
	asyncResolverIDs map[string]struct{}

	hasAsyncResolvers      bool
	enableParallel         bool
	inlineTrivialResolvers bool
	parallelDepth          int
	maxParallelDepth       int

	fragmentStack map[string]bool

	indent int
	steps  []string
}

func newPlanner(sch *schema.Schema, fragments map[string]*language.FragmentDefinition) *planner {
	return &planner{
		schema:           sch,
		fragments:        fragments,
		resolvers:        make(map[string]schema.Resolver),
		asyncResolverIDs: make(map[string]struct{}),
		fragmentStack:    make(map[string]bool),
	}
}

func (p *planner) emit(format string, args ...any) {
	p.steps = append(p.steps, strings.Repeat("  ", p.indent)+fmt.Sprintf(format, args...))
}

func (p *planner) nextResolverID() string {
	id := "resolver_" + strconv.Itoa(p.fieldCounter)
	p.fieldCounter++
	return id
}

// planSelection compiles one selection set against a concrete parent type.
// With sequential set, every field runs in document order with no batching:
// mutation roots, nested non-list objects and levels past the parallel
// depth ceiling all take that path.
func (p *planner) planSelection(selSet language.SelectionSet, parentType *schema.Type, sequential bool) (execNode, error) {
	type fieldEntry struct {
		node  execNode
		async bool
	}

	asyncCount := 0
	for _, sel := range selSet {
		if f, ok := sel.(*language.Field); ok {
			if def := parentType.GetField(f.Name); def != nil && def.Async {
				asyncCount++
			}
		}
	}
	batching := !sequential &&
		p.enableParallel &&
		p.hasAsyncResolvers &&
		asyncCount > 1 &&
		p.parallelDepth < p.maxParallelDepth

	mode := "sequential"
	if batching {
		mode = "parallel"
	}
	p.emit("%s %s", parentType.Name, mode)
	p.indent++
	if batching {
		p.parallelDepth++
		defer func() { p.parallelDepth-- }()
	}
	defer func() { p.indent-- }()

	var fields []fieldEntry
	var fragmentNodes []execNode

	for _, sel := range selSet {
		switch s := sel.(type) {
		case *language.Field:
			node, async, err := p.planField(s, parentType)
			if err != nil {
				return nil, err
			}
			if node == nil {
				continue
			}
			fields = append(fields, fieldEntry{node: node, async: async})
		case *language.InlineFragment:
			node, err := p.planFragment(s.SelectionSet, s.TypeCondition, s.Directives, parentType)
			if err != nil {
				return nil, err
			}
			if node != nil {
				fragmentNodes = append(fragmentNodes, node)
			}
		case *language.FragmentSpread:
			frag := p.fragments[s.Name]
			if frag == nil {
				return nil, fmt.Errorf("jit: unknown fragment %q", s.Name)
			}
			if p.fragmentStack[s.Name] {
				return nil, fmt.Errorf("jit: fragment cycle through %q", s.Name)
			}
			p.fragmentStack[s.Name] = true
			node, err := p.planFragment(frag.SelectionSet, frag.TypeCondition, s.Directives, parentType)
			delete(p.fragmentStack, s.Name)
			if err != nil {
				return nil, err
			}
			if node != nil {
				fragmentNodes = append(fragmentNodes, node)
			}
		}
	}

	if !batching {
		return func(st *execState, parent any, result map[string]any, path executor.Path) error {
			for _, f := range fields {
				if err := f.node(st, parent, result, path); err != nil {
					return err
				}
			}
			for _, frag := range fragmentNodes {
				if err := frag(st, parent, result, path); err != nil {
					return err
				}
			}
			return nil
		}, nil
	}

	var asyncNodes []execNode
	for _, f := range fields {
		if f.async {
			asyncNodes = append(asyncNodes, f.node)
		}
	}

	return func(st *execState, parent any, result map[string]any, path executor.Path) error {
		// Sync fields first, directly into the shared result.
		for _, f := range fields {
			if f.async {
				continue
			}
			if err := f.node(st, parent, result, path); err != nil {
				return err
			}
		}

		// Every async field gets its own scratch map; the whole batch joins
		// as one point and a failing task never cancels its siblings.
		scratches := make([]map[string]any, len(asyncNodes))
		var g errgroup.Group
		for i, node := range asyncNodes {
			scratches[i] = make(map[string]any)
			g.Go(func() error {
				return node(st, parent, scratches[i], path)
			})
		}
		waitErr := g.Wait()
		for _, scratch := range scratches {
			for k, v := range scratch {
				result[k] = v
			}
		}
		if waitErr != nil {
			return waitErr
		}

		for _, frag := range fragmentNodes {
			if err := frag(st, parent, result, path); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// planField compiles one selected field into a plan node. A nil node with
// a nil error means the field contributes nothing (inapplicable meta field
// or a definition absent after validation).
func (p *planner) planField(field *language.Field, parentType *schema.Type) (execNode, bool, error) {
	if _, err := SanitizeIdentifier(field.Name); err != nil {
		return nil, false, err
	}
	alias := field.Alias
	if alias == "" {
		alias = field.Name
	}
	if _, err := SanitizeIdentifier(alias); err != nil {
		return nil, false, err
	}

	switch field.Name {
	case "__typename":
		include, err := p.planSkipInclude(field.Directives)
		if err != nil {
			return nil, false, err
		}
		typeName := parentType.Name
		p.emit("%s: __typename = %s", alias, SerializeLiteral(typeName))
		return func(st *execState, parent any, result map[string]any, path executor.Path) error {
			if include != nil {
				ok, err := include(st)
				if err != nil || !ok {
					return nil
				}
			}
			result[alias] = typeName
			return nil
		}, false, nil
	case "__schema":
		if parentType.Name != p.schema.QueryType {
			return nil, false, nil
		}
		return p.planSchemaField(field, alias)
	case "__type":
		if parentType.Name != p.schema.QueryType {
			return nil, false, nil
		}
		return p.planTypeField(field, alias)
	}

	fieldDef := parentType.GetField(field.Name)
	if fieldDef == nil {
		return nil, false, nil
	}
	if _, err := SanitizeIdentifier(fieldDef.Type.GetNamedType()); err != nil {
		return nil, false, err
	}

	include, err := p.planSkipInclude(field.Directives)
	if err != nil {
		return nil, false, err
	}
	argsFn, err := p.buildArguments(fieldDef, field.Arguments)
	if err != nil {
		return nil, false, err
	}

	fieldName := field.Name
	async := fieldDef.Async
	nullable := !fieldDef.Type.IsNonNull()
	ext := map[string]any{
		"fieldName": fieldName,
		"fieldType": fieldDef.Type.String(),
		"alias":     alias,
	}

	var dispatch func(st *execState, parent any) (any, error)
	switch {
	case fieldDef.Resolver != nil:
		id := p.nextResolverID()
		p.resolvers[id] = fieldDef.Resolver
		if async {
			p.asyncResolverIDs[id] = struct{}{}
		}
		p.emit("%s: %s %s async=%v", alias, fieldDef.Type.String(), id, async)
		dispatch = func(st *execState, parent any) (any, error) {
			resolver := st.resolvers[id]
			if resolver == nil {
				return nil, fmt.Errorf("jit: unbound dispatch id %s", id)
			}
			var args map[string]any
			if argsFn != nil {
				var err error
				args, err = argsFn(st)
				if err != nil {
					return nil, err
				}
			}
			info := st.info
			info.FieldName = fieldName
			return resolver(st.ctx, parent, &info, args)
		}
	case p.inlineTrivialResolvers && argsFn == nil:
		p.emit("%s: %s attribute", alias, fieldDef.Type.String())
		dispatch = func(st *execState, parent any) (any, error) {
			value, _ := access.Get(parent, fieldName)
			return value, nil
		}
	default:
		p.emit("%s: %s attribute-or-call", alias, fieldDef.Type.String())
		dispatch = func(st *execState, parent any) (any, error) {
			var args map[string]any
			if argsFn != nil {
				var err error
				args, err = argsFn(st)
				if err != nil {
					return nil, err
				}
			}
			return access.Resolve(parent, fieldName, args)
		}
	}

	complete, err := p.planCompletion(field, fieldDef, alias)
	if err != nil {
		return nil, false, err
	}

	node := func(st *execState, parent any, result map[string]any, path executor.Path) error {
		if include != nil {
			ok, err := include(st)
			if err != nil {
				fieldPath := appendPath(path, alias)
				st.addError(err.Error(), fieldPath, ext)
				if nullable {
					result[alias] = nil
					return nil
				}
				return err
			}
			if !ok {
				return nil
			}
		}

		fieldPath := appendPath(path, alias)
		value, err := dispatch(st, parent)
		if err == nil {
			err = complete(st, value, result, fieldPath)
		}
		if err != nil {
			st.addError(err.Error(), fieldPath, ext)
			if nullable {
				result[alias] = nil
				return nil
			}
			return err
		}
		return nil
	}
	return node, async, nil
}

// planCompletion compiles the value-completion step for a field: nested
// selection expansion for object and abstract types, element-wise handling
// for lists, serializer application for custom scalar and enum leaves.
// The returned closure writes result[alias] or reports a propagating error.
func (p *planner) planCompletion(field *language.Field, fieldDef *schema.Field, alias string) (func(st *execState, value any, result map[string]any, fieldPath executor.Path) error, error) {
	named := p.schema.Types[fieldDef.Type.GetNamedType()]
	nullable := !fieldDef.Type.IsNonNull()
	isList := fieldDef.Type.IsList()

	hasSelection := len(field.SelectionSet) > 0 && named != nil &&
		(named.Kind == schema.TypeKindObject ||
			named.Kind == schema.TypeKindInterface ||
			named.Kind == schema.TypeKindUnion)

	if !hasSelection {
		return p.planLeafCompletion(fieldDef, named, alias)
	}

	var child execNode
	var err error
	if named.Kind == schema.TypeKindObject {
		// Nested non-list objects stay sequential; list items may batch.
		child, err = p.planSelection(field.SelectionSet, named, !isList)
	} else {
		child, err = p.planAbstractSelection(field.SelectionSet, named)
	}
	if err != nil {
		return nil, err
	}

	if !isList {
		p.emit("into nested_%d", p.nestedCounter)
		p.nestedCounter++
		return func(st *execState, value any, result map[string]any, fieldPath executor.Path) error {
			if isNullish(value) {
				if !nullable {
					return fmt.Errorf("cannot return null for non-nullable field %s", pathString(fieldPath))
				}
				result[alias] = nil
				return nil
			}
			scratch := make(map[string]any)
			if err := child(st, value, scratch, fieldPath); err != nil {
				return err
			}
			result[alias] = scratch
			return nil
		}, nil
	}

	itemType := listItemType(fieldDef.Type)
	itemNullable := !itemType.IsNonNull()
	p.emit("each item_%d into nested_%d", p.itemCounter, p.nestedCounter)
	p.itemCounter++
	p.nestedCounter++
	return func(st *execState, value any, result map[string]any, fieldPath executor.Path) error {
		if isNullish(value) {
			if !nullable {
				return fmt.Errorf("cannot return null for non-nullable field %s", pathString(fieldPath))
			}
			result[alias] = nil
			return nil
		}
		items, ok := asSlice(value)
		if !ok {
			return fmt.Errorf("expected list value for field %s, got %T", pathString(fieldPath), value)
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			itemPath := appendPath(fieldPath, i)
			if isNullish(item) {
				if !itemNullable {
					return fmt.Errorf("cannot return null for non-nullable list item %s", pathString(itemPath))
				}
				out = append(out, nil)
				continue
			}
			scratch := make(map[string]any)
			if err := child(st, item, scratch, itemPath); err != nil {
				if itemNullable {
					// The failing field recorded its own entry; only this
					// item nulls out.
					out = append(out, nil)
					continue
				}
				return err
			}
			out = append(out, scratch)
		}
		result[alias] = out
		return nil
	}, nil
}

// planLeafCompletion handles fields with no nested selection. Custom scalar
// and enum serializers apply element-wise for lists with nil substituted
// through; built-in scalars pass raw values straight into the result.
func (p *planner) planLeafCompletion(fieldDef *schema.Field, named *schema.Type, alias string) (func(st *execState, value any, result map[string]any, fieldPath executor.Path) error, error) {
	nullable := !fieldDef.Type.IsNonNull()
	isList := fieldDef.Type.IsList()

	var serialize schema.SerializeFunc
	if named != nil && named.Serialize != nil && !schema.IsBuiltinScalar(named.Name) {
		serialize = named.Serialize
	}

	return func(st *execState, value any, result map[string]any, fieldPath executor.Path) error {
		if isNullish(value) {
			if !nullable {
				return fmt.Errorf("cannot return null for non-nullable field %s", pathString(fieldPath))
			}
			result[alias] = nil
			return nil
		}
		if serialize == nil {
			result[alias] = value
			return nil
		}
		if isList {
			items, ok := asSlice(value)
			if !ok {
				return fmt.Errorf("expected list value for field %s, got %T", pathString(fieldPath), value)
			}
			out := make([]any, len(items))
			for i, item := range items {
				if isNullish(item) {
					out[i] = nil
					continue
				}
				serialized, err := serialize(item)
				if err != nil {
					return err
				}
				out[i] = serialized
			}
			result[alias] = out
			return nil
		}
		serialized, err := serialize(value)
		if err != nil {
			return err
		}
		result[alias] = serialized
		return nil
	}, nil
}

// planFragment expands a spread or inline fragment at the parent's level.
// A type condition that cannot match the statically-known parent plans to
// nothing; an applicable one expands inline, resolved against the parent.
func (p *planner) planFragment(selSet language.SelectionSet, condition string, directives language.DirectiveList, parentType *schema.Type) (execNode, error) {
	if condition != "" && condition != parentType.Name && !p.conditionApplies(parentType, condition) {
		return nil, nil
	}
	include, err := p.planSkipInclude(directives)
	if err != nil {
		return nil, err
	}
	inner, err := p.planSelection(selSet, parentType, false)
	if err != nil {
		return nil, err
	}
	if include == nil {
		return inner, nil
	}
	return func(st *execState, parent any, result map[string]any, path executor.Path) error {
		ok, err := include(st)
		if err != nil || !ok {
			return nil
		}
		return inner(st, parent, result, path)
	}, nil
}

// conditionApplies reports whether a fragment type condition can match a
// value of the given concrete type.
func (p *planner) conditionApplies(concrete *schema.Type, condition string) bool {
	condType := p.schema.Types[condition]
	if condType == nil {
		return false
	}
	if condType.Kind == schema.TypeKindInterface || condType.Kind == schema.TypeKindUnion {
		for _, name := range condType.PossibleTypes {
			if name == concrete.Name {
				return true
			}
		}
	}
	return false
}

// buildArguments compiles the argument materialization of one field:
// schema-declared defaults first, then each query argument's builder on
// top. A nil function means the field takes no arguments at all.
func (p *planner) buildArguments(fieldDef *schema.Field, args language.ArgumentList) (func(st *execState) (map[string]any, error), error) {
	defaults := make(map[string]any)
	for _, argDef := range fieldDef.Arguments {
		if argDef.HasDefault {
			defaults[argDef.Name] = argDef.DefaultValue
		}
	}

	type argBuilder struct {
		name string
		fn   valueFn
	}
	var builders []argBuilder
	for _, arg := range args {
		argDef := fieldDef.GetArgument(arg.Name)
		if argDef == nil {
			continue
		}
		fn, err := p.buildValue(arg.Value, argDef.Type)
		if err != nil {
			return nil, err
		}
		builders = append(builders, argBuilder{name: arg.Name, fn: fn})
	}

	if len(defaults) == 0 && len(builders) == 0 {
		return nil, nil
	}
	return func(st *execState) (map[string]any, error) {
		out := make(map[string]any, len(defaults)+len(builders))
		for k, v := range defaults {
			out[k] = v
		}
		for _, b := range builders {
			v, err := b.fn(st)
			if err != nil {
				return nil, err
			}
			out[b.name] = v
		}
		return out, nil
	}, nil
}

// buildValue compiles one AST value with its declared type threaded
// through. Literals become constants at plan time (custom scalar
// ParseLiteral applied to string literals here); variables read the coerced
// variable map per call; enum literals resolve against the live schema's
// value table at run time, never at plan time.
func (p *planner) buildValue(value *language.Value, targetType *schema.TypeRef) (valueFn, error) {
	if value == nil {
		return constValueFn(nil), nil
	}
	switch value.Kind {
	case language.Variable:
		name := value.Raw
		return func(st *execState) (any, error) {
			return st.info.VariableValues[name], nil
		}, nil
	case language.IntValue:
		iv, err := strconv.Atoi(value.Raw)
		if err != nil {
			return nil, fmt.Errorf("jit: bad int literal %q: %w", value.Raw, err)
		}
		return constValueFn(iv), nil
	case language.FloatValue:
		fv, err := strconv.ParseFloat(value.Raw, 64)
		if err != nil {
			return nil, fmt.Errorf("jit: bad float literal %q: %w", value.Raw, err)
		}
		return constValueFn(fv), nil
	case language.StringValue, language.BlockValue:
		raw := value.Raw
		if named := p.schema.Types[targetType.GetNamedType()]; named != nil &&
			named.Kind == schema.TypeKindScalar &&
			!schema.IsBuiltinScalar(named.Name) &&
			named.ParseLiteral != nil {
			parsed, err := named.ParseLiteral(raw)
			if err != nil {
				return nil, fmt.Errorf("jit: cannot parse %s literal %s: %w", named.Name, SerializeLiteral(raw), err)
			}
			return constValueFn(parsed), nil
		}
		return constValueFn(raw), nil
	case language.BooleanValue:
		return constValueFn(value.Raw == "true"), nil
	case language.NullValue:
		return constValueFn(nil), nil
	case language.EnumValue:
		enumName := targetType.GetNamedType()
		literal := value.Raw
		return func(st *execState) (any, error) {
			enumType := st.schema.Types[enumName]
			if enumType != nil {
				if ev := enumType.GetEnumValue(literal); ev != nil {
					return ev.Value, nil
				}
			}
			return nil, fmt.Errorf("unknown value %q for enum %s", literal, enumName)
		}, nil
	case language.ListValue:
		itemType := listItemType(targetType)
		if itemType == nil {
			itemType = schema.NamedType(targetType.GetNamedType())
		}
		fns := make([]valueFn, len(value.Children))
		for i, child := range value.Children {
			fn, err := p.buildValue(child.Value, itemType)
			if err != nil {
				return nil, err
			}
			fns[i] = fn
		}
		return func(st *execState) (any, error) {
			out := make([]any, len(fns))
			for i, fn := range fns {
				v, err := fn(st)
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return out, nil
		}, nil
	case language.ObjectValue:
		inputType := p.schema.Types[targetType.GetNamedType()]
		type fieldBuilder struct {
			name string
			fn   valueFn
		}
		var fns []fieldBuilder
		for _, child := range value.Children {
			fieldType := schema.NamedType("String")
			if inputType != nil {
				for _, inputField := range inputType.InputFields {
					if inputField.Name == child.Name {
						fieldType = inputField.Type
						break
					}
				}
			}
			fn, err := p.buildValue(child.Value, fieldType)
			if err != nil {
				return nil, err
			}
			fns = append(fns, fieldBuilder{name: child.Name, fn: fn})
		}
		return func(st *execState) (any, error) {
			out := make(map[string]any, len(fns))
			for _, b := range fns {
				v, err := b.fn(st)
				if err != nil {
					return nil, err
				}
				out[b.name] = v
			}
			return out, nil
		}, nil
	}
	return nil, fmt.Errorf("jit: unsupported value kind %d", value.Kind)
}

func constValueFn(v any) valueFn {
	return func(*execState) (any, error) { return v, nil }
}

// listItemType returns the declared element type of a list reference,
// looking through an outer non-null wrapper.
func listItemType(t *schema.TypeRef) *schema.TypeRef {
	if t.IsNonNull() {
		t = t.Unwrap()
	}
	if t == nil || t.Kind != schema.TypeRefKindList {
		return nil
	}
	return t.OfType
}

func appendPath(path executor.Path, elem any) executor.Path {
	next := make(executor.Path, len(path)+1)
	copy(next, path)
	next[len(path)] = elem
	return next
}

func pathString(path executor.Path) string {
	parts := make([]string, len(path))
	for i, elem := range path {
		parts[i] = fmt.Sprintf("%v", elem)
	}
	return strings.Join(parts, ".")
}

func isNullish(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return rv.IsNil()
	}
	return false
}

func asSlice(value any) ([]any, bool) {
	if direct, ok := value.([]any); ok {
		return direct, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
