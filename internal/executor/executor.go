package executor

import (
	"context"
	"fmt"
	"reflect"

	access "github.com/hanpama/graphjit/internal/access"
	introspection "github.com/hanpama/graphjit/internal/introspection"
	language "github.com/hanpama/graphjit/internal/language"
	schema "github.com/hanpama/graphjit/internal/schema"
)

// executionState holds the state during one query execution
type executionState struct {
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	context        context.Context
	info           schema.ResolveInfo
	errors         []GraphQLError
}

type Executor struct {
	schema *schema.Schema
}

func NewExecutor(sch *schema.Schema) *Executor {
	return &Executor{schema: sch}
}

// ExecuteRequest resolves document against the schema. Variables are coerced
// first; coercion failure short-circuits to a data:null response.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	rootValue any,
	contextValue any,
) *ExecutionResult {
	operation := getOperation(document, operationName)
	if operation == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: "operation not found"}}}
	}

	coerced, err := CoerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	case language.Subscription:
		rootType = e.schema.GetSubscriptionType()
	default:
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("unsupported operation type: %s", operation.Operation)}}}
	}
	if rootType == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("root type not found for %s operation", operation.Operation)}}}
	}

	state := &executionState{
		schema:         e.schema,
		document:       document,
		variableValues: coerced,
		context:        ctx,
		info: schema.ResolveInfo{
			Schema:         e.schema,
			RootValue:      rootValue,
			Context:        contextValue,
			VariableValues: coerced,
		},
		errors: []GraphQLError{},
	}

	data := executeSelectionSet(state, rootType, operation.SelectionSet, rootValue, Path{})
	result := &ExecutionResult{Data: data}
	if len(state.errors) > 0 {
		result.Errors = state.errors
	}
	return result
}

// executeSelectionSet resolves one level of fields in document order.
// Mutation serial ordering falls out of the sequential loop.
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path) map[string]any {
	groupedFields := collectFields(state, objectType, selectionSet)
	resultMap := make(map[string]any)

	for _, collected := range groupedFields.orderedFields() {
		responseName := collected.ResponseName
		fields := collected.Fields
		fieldPath := appendPath(path, responseName)

		fieldResult := executeFieldGroup(state, objectType, objectValue, fields, fieldPath)

		if isMetaFieldName(fields[0].Name) {
			resultMap[responseName] = fieldResult
			continue
		}

		fieldDef := objectType.GetField(fields[0].Name)
		if fieldDef == nil {
			// Validation upstream makes this unreachable; skip defensively.
			continue
		}

		if schema.IsNonNull(fieldDef.Type) && isNullish(fieldResult) {
			if len(path) > 0 {
				// Null the enclosing object; the error was recorded at the
				// deepest failing field.
				return nil
			}
			resultMap[responseName] = nil
			continue
		}

		if isNullish(fieldResult) {
			resultMap[responseName] = nil
		} else {
			resultMap[responseName] = fieldResult
		}
	}

	return resultMap
}

func isMetaFieldName(name string) bool {
	return name == "__typename" || name == "__schema" || name == "__type"
}

func executeFieldGroup(state *executionState, objectType *schema.Type, objectValue any, fields []*language.Field, path Path) any {
	field := fields[0]
	fieldName := field.Name

	switch fieldName {
	case "__typename":
		return objectType.Name
	case "__schema":
		if objectType.Name != state.schema.QueryType {
			return nil
		}
		return executeMetaSelection(state, "__Schema", state.schema, mergeSelectionSets(fields), path)
	case "__type":
		if objectType.Name != state.schema.QueryType {
			return nil
		}
		args := collectMetaArguments(state, field)
		name, _ := args["name"].(string)
		requested := state.schema.Types[name]
		if requested == nil {
			return nil
		}
		return executeMetaSelection(state, "__Type", requested, mergeSelectionSets(fields), path)
	}

	fieldDef := objectType.GetField(fieldName)
	if fieldDef == nil {
		state.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", fieldName, objectType.Name), path)
		return nil
	}

	argumentValues := coerceArgumentValues(fieldDef, field.Arguments, state.variableValues, state, path)
	resolved := resolveFieldValue(state, fieldDef, objectValue, argumentValues, path)
	return completeValue(state, fieldDef.Type, fields, resolved, path)
}

// resolveFieldValue dispatches to the bound resolver or attribute access.
func resolveFieldValue(state *executionState, fieldDef *schema.Field, source any, args map[string]any, path Path) any {
	if fieldDef.Resolver != nil {
		info := state.info
		info.FieldName = fieldDef.Name
		value, err := fieldDef.Resolver(state.context, source, &info, args)
		if err != nil {
			state.addError(err.Error(), path)
			return nil
		}
		return value
	}
	value, err := access.Resolve(source, fieldDef.Name, args)
	if err != nil {
		state.addError(err.Error(), path)
		return nil
	}
	return value
}

// completeValue completes a value per the GraphQL spec.
func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAtPath(path) {
				state.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", pathToString(path)), path)
			}
			return nil
		}
		completed := completeValue(state, schema.Unwrap(fieldType), fields, result, path)
		if isNullish(completed) {
			// Error already recorded at the original path; propagate only.
			return nil
		}
		return completed
	}

	if isNullish(result) {
		return nil
	}

	if schema.IsList(fieldType) {
		return completeListValue(state, fieldType, fields, result, path)
	}

	namedType := schema.GetNamedType(fieldType)
	typeObj := state.schema.Types[namedType]
	if typeObj == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", namedType), path)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		if typeObj.Serialize == nil {
			return result
		}
		serialized, err := typeObj.Serialize(result)
		if err != nil {
			state.addError(err.Error(), path)
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		return completeObjectValue(state, typeObj, fields, result, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return completeAbstractValue(state, typeObj, fields, result, path)
	default:
		state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), path)
		return nil
	}
}

func completeListValue(state *executionState, listType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	items, ok := asSlice(result)
	if !ok {
		state.addError(fmt.Sprintf("Expected list value, got %T", result), path)
		return nil
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		p := appendPath(path, i)
		v := completeValue(state, inner, fields, item, p)
		if schema.IsNonNull(inner) && isNullish(v) {
			// Null propagates to the list field; error recorded by inner completion.
			return nil
		}
		completed[i] = v
	}
	return completed
}

func asSlice(result any) ([]any, bool) {
	if direct, ok := result.([]any); ok {
		return direct, true
	}
	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func completeObjectValue(state *executionState, objectType *schema.Type, fields []*language.Field, result any, path Path) any {
	sub := mergeSelectionSets(fields)
	return executeSelectionSet(state, objectType, sub, result, path)
}

func completeAbstractValue(state *executionState, abstractType *schema.Type, fields []*language.Field, result any, path Path) any {
	concrete := resolveConcreteType(state, abstractType, result)
	if concrete == nil {
		state.addError(fmt.Sprintf("Abstract type %s could not discriminate value of type %T", abstractType.Name, result), path)
		return nil
	}
	return completeObjectValue(state, concrete, fields, result, path)
}

// resolveConcreteType picks the concrete object type for an abstract value:
// IsTypeOf predicates win, then the runtime type tag.
func resolveConcreteType(state *executionState, abstractType *schema.Type, value any) *schema.Type {
	for _, name := range abstractType.PossibleTypes {
		t := state.schema.Types[name]
		if t != nil && t.IsTypeOf != nil && t.IsTypeOf(value) {
			return t
		}
	}
	tag := access.TypeName(value)
	for _, name := range abstractType.PossibleTypes {
		if name == tag {
			return state.schema.Types[name]
		}
	}
	return nil
}

// executeMetaSelection walks an introspection selection against a meta value
// (schema, type, field, ...) using the introspection resolvers.
func executeMetaSelection(state *executionState, metaType string, parent any, selectionSet language.SelectionSet, path Path) any {
	out := make(map[string]any)
	for _, sel := range selectionSet {
		switch s := sel.(type) {
		case *language.Field:
			if !shouldIncludeNode(state, s.Directives) {
				continue
			}
			alias := s.Alias
			if alias == "" {
				alias = s.Name
			}
			if s.Name == "__typename" {
				out[alias] = metaType
				continue
			}
			args := collectMetaArguments(state, s)
			value, ok := introspection.ResolveField(state.schema, parent, s.Name, args)
			if !ok {
				continue
			}
			out[alias] = completeMetaValue(state, metaType, s, value, appendPath(path, alias))
		case *language.FragmentSpread:
			if !shouldIncludeNode(state, s.Directives) {
				continue
			}
			if def := getFragmentDefinition(state.document, s.Name); def != nil && def.TypeCondition == metaType {
				if sub, ok := executeMetaSelection(state, metaType, parent, def.SelectionSet, path).(map[string]any); ok {
					for k, v := range sub {
						out[k] = v
					}
				}
			}
		case *language.InlineFragment:
			if !shouldIncludeNode(state, s.Directives) {
				continue
			}
			if s.TypeCondition == "" || s.TypeCondition == metaType {
				if sub, ok := executeMetaSelection(state, metaType, parent, s.SelectionSet, path).(map[string]any); ok {
					for k, v := range sub {
						out[k] = v
					}
				}
			}
		}
	}
	return out
}

func completeMetaValue(state *executionState, metaType string, field *language.Field, value any, path Path) any {
	if isNullish(value) {
		return nil
	}
	next := introspection.NextMetaType(metaType, field.Name)
	if next == "" || len(field.SelectionSet) == 0 {
		return value
	}
	if items, ok := asSlice(value); ok {
		completed := make([]any, len(items))
		for i, item := range items {
			completed[i] = executeMetaSelection(state, next, item, field.SelectionSet, appendPath(path, i))
		}
		return completed
	}
	return executeMetaSelection(state, next, value, field.SelectionSet, path)
}

func collectMetaArguments(state *executionState, field *language.Field) map[string]any {
	args := make(map[string]any)
	for _, arg := range field.Arguments {
		args[arg.Name] = valueFromAST(state, arg.Value)
	}
	return args
}

func pathToString(path Path) string {
	result := ""
	for i, elem := range path {
		if i > 0 {
			result += "."
		}
		switch v := elem.(type) {
		case string:
			result += v
		case int:
			result += fmt.Sprintf("[%d]", v)
		}
	}
	return result
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

// getOperation retrieves the operation from the document
func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" && len(document.Operations) == 1 {
		for _, op := range document.Operations {
			return op
		}
	}
	for _, op := range document.Operations {
		if op.Name == operationName {
			return op
		}
	}
	return nil
}

func (state *executionState) addError(message string, path Path) {
	state.errors = append(state.errors, GraphQLError{Message: message, Path: path, Locations: []Location{}})
}

// hasErrorAtPath reports whether an error with the given path already exists.
func (state *executionState) hasErrorAtPath(path Path) bool {
	for _, err := range state.errors {
		if reflect.DeepEqual(err.Path, path) {
			return true
		}
	}
	return false
}

// mergeSelectionSets merges selection sets from multiple fields
func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
