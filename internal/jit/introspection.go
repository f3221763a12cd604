package jit

import (
	executor "github.com/hanpama/graphjit/internal/executor"
	introspection "github.com/hanpama/graphjit/internal/introspection"
	language "github.com/hanpama/graphjit/internal/language"
	schema "github.com/hanpama/graphjit/internal/schema"
)

// metaNode resolves one introspection selection level against a schema
// object (the schema itself, a type, a field, ...) and returns the
// completed response value.
type metaNode func(st *execState, value any, path executor.Path) (any, error)

// planSchemaField compiles a __schema selection at the query root.
func (p *planner) planSchemaField(field *language.Field, alias string) (execNode, bool, error) {
	include, err := p.planSkipInclude(field.Directives)
	if err != nil {
		return nil, false, err
	}
	p.emit("%s: __schema", alias)
	meta, err := p.planMetaSelection("__Schema", field.SelectionSet)
	if err != nil {
		return nil, false, err
	}
	return func(st *execState, parent any, result map[string]any, path executor.Path) error {
		if include != nil {
			ok, err := include(st)
			if err != nil || !ok {
				return nil
			}
		}
		fieldPath := appendPath(path, alias)
		value, err := meta(st, st.schema, fieldPath)
		if err != nil {
			st.addError(err.Error(), fieldPath, nil)
			result[alias] = nil
			return nil
		}
		result[alias] = value
		return nil
	}, false, nil
}

// planTypeField compiles a __type(name:) selection at the query root. The
// name argument may be a variable, so the type lookup happens per call.
func (p *planner) planTypeField(field *language.Field, alias string) (execNode, bool, error) {
	include, err := p.planSkipInclude(field.Directives)
	if err != nil {
		return nil, false, err
	}
	var nameFn valueFn
	if arg := field.Arguments.ForName("name"); arg != nil {
		nameFn, err = p.buildValue(arg.Value, schema.NonNullType(schema.NamedType("String")))
		if err != nil {
			return nil, false, err
		}
	}
	p.emit("%s: __type", alias)
	meta, err := p.planMetaSelection("__Type", field.SelectionSet)
	if err != nil {
		return nil, false, err
	}
	return func(st *execState, parent any, result map[string]any, path executor.Path) error {
		if include != nil {
			ok, err := include(st)
			if err != nil || !ok {
				return nil
			}
		}
		fieldPath := appendPath(path, alias)
		if nameFn == nil {
			result[alias] = nil
			return nil
		}
		nameValue, err := nameFn(st)
		if err != nil {
			st.addError(err.Error(), fieldPath, nil)
			result[alias] = nil
			return nil
		}
		name, _ := nameValue.(string)
		requested := st.schema.Types[name]
		if requested == nil {
			result[alias] = nil
			return nil
		}
		value, err := meta(st, requested, fieldPath)
		if err != nil {
			st.addError(err.Error(), fieldPath, nil)
			result[alias] = nil
			return nil
		}
		result[alias] = value
		return nil
	}, false, nil
}

// planMetaSelection compiles one selection level on an introspection meta
// type. Each field maps to a schema-object accessor evaluated per call via
// the introspection package; nested selections recurse with the next meta
// type appropriate to the field.
func (p *planner) planMetaSelection(metaType string, selSet language.SelectionSet) (metaNode, error) {
	type metaEntry struct {
		alias   string
		name    string
		include func(st *execState) (bool, error)
		args    func(st *execState) (map[string]any, error)
		child   metaNode
	}
	var entries []metaEntry

	var collect func(selSet language.SelectionSet) error
	collect = func(selSet language.SelectionSet) error {
		for _, sel := range selSet {
			switch s := sel.(type) {
			case *language.Field:
				if _, err := SanitizeIdentifier(s.Name); err != nil {
					return err
				}
				alias := s.Alias
				if alias == "" {
					alias = s.Name
				}
				include, err := p.planSkipInclude(s.Directives)
				if err != nil {
					return err
				}
				args, err := p.buildMetaArguments(s.Arguments)
				if err != nil {
					return err
				}
				var child metaNode
				if next := introspection.NextMetaType(metaType, s.Name); next != "" && len(s.SelectionSet) > 0 {
					child, err = p.planMetaSelection(next, s.SelectionSet)
					if err != nil {
						return err
					}
				}
				entries = append(entries, metaEntry{
					alias:   alias,
					name:    s.Name,
					include: include,
					args:    args,
					child:   child,
				})
			case *language.InlineFragment:
				if s.TypeCondition == "" || s.TypeCondition == metaType {
					if err := collect(s.SelectionSet); err != nil {
						return err
					}
				}
			case *language.FragmentSpread:
				frag := p.fragments[s.Name]
				if frag == nil {
					continue
				}
				if frag.TypeCondition == metaType {
					if err := collect(frag.SelectionSet); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if err := collect(selSet); err != nil {
		return nil, err
	}

	return func(st *execState, value any, path executor.Path) (any, error) {
		out := make(map[string]any, len(entries))
		for _, e := range entries {
			if e.include != nil {
				ok, err := e.include(st)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			if e.name == "__typename" {
				out[e.alias] = metaType
				continue
			}
			var args map[string]any
			if e.args != nil {
				var err error
				args, err = e.args(st)
				if err != nil {
					return nil, err
				}
			}
			resolved, ok := introspection.ResolveField(st.schema, value, e.name, args)
			if !ok {
				continue
			}
			completed, err := completeMetaValue(st, e.child, resolved, appendPath(path, e.alias))
			if err != nil {
				return nil, err
			}
			out[e.alias] = completed
		}
		return out, nil
	}, nil
}

func completeMetaValue(st *execState, child metaNode, value any, path executor.Path) (any, error) {
	if isNullish(value) {
		return nil, nil
	}
	if child == nil {
		return value, nil
	}
	if items, ok := asSlice(value); ok {
		out := make([]any, len(items))
		for i, item := range items {
			if isNullish(item) {
				out[i] = nil
				continue
			}
			completed, err := child(st, item, appendPath(path, i))
			if err != nil {
				return nil, err
			}
			out[i] = completed
		}
		return out, nil
	}
	return child(st, value, path)
}

// buildMetaArguments compiles introspection field arguments
// (includeDeprecated, name). Meta fields have no schema definitions, so
// literal kinds drive the conversion directly.
func (p *planner) buildMetaArguments(args language.ArgumentList) (func(st *execState) (map[string]any, error), error) {
	if len(args) == 0 {
		return nil, nil
	}
	type argBuilder struct {
		name string
		fn   valueFn
	}
	builders := make([]argBuilder, 0, len(args))
	for _, arg := range args {
		fn, err := p.buildValue(arg.Value, schema.NamedType("String"))
		if err != nil {
			return nil, err
		}
		builders = append(builders, argBuilder{name: arg.Name, fn: fn})
	}
	return func(st *execState) (map[string]any, error) {
		out := make(map[string]any, len(builders))
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
