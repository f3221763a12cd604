package jit

import (
	access "github.com/hanpama/graphjit/internal/access"
	executor "github.com/hanpama/graphjit/internal/executor"
	language "github.com/hanpama/graphjit/internal/language"
	schema "github.com/hanpama/graphjit/internal/schema"
)

// planSkipInclude compiles @skip/@include directives into one inclusion
// predicate: skip contributes its negated condition, include contributes
// it as-is, and multiple conditions conjoin with AND. Returns nil when no
// condition could be extracted, meaning the selection is unconditional.
func (p *planner) planSkipInclude(directives language.DirectiveList) (func(st *execState) (bool, error), error) {
	var conditions []func(st *execState) (bool, error)
	for _, d := range directives {
		if d.Name != "skip" && d.Name != "include" {
			continue
		}
		arg := d.Arguments.ForName("if")
		if arg == nil {
			continue
		}
		fn, err := p.buildValue(arg.Value, schema.NonNullType(schema.NamedType("Boolean")))
		if err != nil {
			return nil, err
		}
		negate := d.Name == "skip"
		conditions = append(conditions, func(st *execState) (bool, error) {
			v, err := fn(st)
			if err != nil {
				return false, err
			}
			b, _ := v.(bool)
			if negate {
				return !b, nil
			}
			return b, nil
		})
	}
	if len(conditions) == 0 {
		return nil, nil
	}
	return func(st *execState) (bool, error) {
		for _, cond := range conditions {
			ok, err := cond(st)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}, nil
}

// planAbstractSelection compiles a selection on a union or interface type
// into a runtime type-tag discrimination: one branch per possible concrete
// type, plus a fallback that resolves only the condition-less common
// selections by plain attribute access for values whose tag matches no
// known member.
func (p *planner) planAbstractSelection(selSet language.SelectionSet, abstractType *schema.Type) (execNode, error) {
	p.emit("%s discriminate", abstractType.Name)
	p.indent++
	defer func() { p.indent-- }()

	branches := make(map[string]execNode, len(abstractType.PossibleTypes))
	for _, name := range abstractType.PossibleTypes {
		concrete := p.schema.Types[name]
		if concrete == nil {
			continue
		}
		node, err := p.planSelection(selSet, concrete, false)
		if err != nil {
			return nil, err
		}
		branches[name] = node
	}

	common, err := p.planCommonSelection(selSet)
	if err != nil {
		return nil, err
	}

	return func(st *execState, parent any, result map[string]any, path executor.Path) error {
		tag := access.TypeName(parent)
		if branch, ok := branches[tag]; ok {
			return branch(st, parent, result, path)
		}
		if common != nil {
			return common(st, parent, result, path)
		}
		return nil
	}, nil
}

// planCommonSelection compiles only the selections with no type condition,
// resolved through attribute access without field definitions. This is the
// fallback branch of abstract discrimination for unrecognized tags.
func (p *planner) planCommonSelection(selSet language.SelectionSet) (execNode, error) {
	type commonEntry struct {
		alias   string
		name    string
		include func(st *execState) (bool, error)
	}
	var entries []commonEntry

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
				entries = append(entries, commonEntry{alias: alias, name: s.Name, include: include})
			case *language.InlineFragment:
				if s.TypeCondition == "" {
					if err := collect(s.SelectionSet); err != nil {
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
	if len(entries) == 0 {
		return nil, nil
	}

	return func(st *execState, parent any, result map[string]any, path executor.Path) error {
		for _, e := range entries {
			if e.include != nil {
				ok, err := e.include(st)
				if err != nil || !ok {
					continue
				}
			}
			if e.name == "__typename" {
				result[e.alias] = access.TypeName(parent)
				continue
			}
			value, err := access.Resolve(parent, e.name, nil)
			if err != nil {
				st.addError(err.Error(), appendPath(path, e.alias), nil)
				result[e.alias] = nil
				continue
			}
			result[e.alias] = value
		}
		return nil
	}, nil
}
