package jit

import (
	language "github.com/hanpama/graphjit/internal/language"
	schema "github.com/hanpama/graphjit/internal/schema"
)

// detectAsyncResolvers reports whether any field reachable from selSet
// carries the compile-time Async flag. The flag comes from field metadata
// only; resolvers are never inspected. The answer is computed once per
// compile and decides whether the plan uses parallel batching at all.
func detectAsyncResolvers(
	selSet language.SelectionSet,
	parentType *schema.Type,
	fragments map[string]*language.FragmentDefinition,
	sch *schema.Schema,
) bool {
	for _, sel := range selSet {
		switch s := sel.(type) {
		case *language.Field:
			if s.Name == "__typename" {
				continue
			}
			if parentType == nil {
				continue
			}
			fieldDef := parentType.GetField(s.Name)
			if fieldDef == nil {
				continue
			}
			if fieldDef.Async {
				return true
			}
			if len(s.SelectionSet) == 0 {
				continue
			}
			named := sch.Types[fieldDef.Type.GetNamedType()]
			if named == nil {
				continue
			}
			switch named.Kind {
			case schema.TypeKindObject, schema.TypeKindInterface, schema.TypeKindUnion:
				if detectAsyncResolvers(s.SelectionSet, named, fragments, sch) {
					return true
				}
				// Abstract parents carry only the shared fields; check the
				// concrete members too so typed fragments are covered.
				for _, name := range named.PossibleTypes {
					if detectAsyncResolvers(s.SelectionSet, sch.Types[name], fragments, sch) {
						return true
					}
				}
			}
		case *language.InlineFragment:
			next := parentType
			if s.TypeCondition != "" {
				next = sch.Types[s.TypeCondition]
			}
			if detectAsyncResolvers(s.SelectionSet, next, fragments, sch) {
				return true
			}
		case *language.FragmentSpread:
			frag := fragments[s.Name]
			if frag == nil {
				continue
			}
			if detectAsyncResolvers(frag.SelectionSet, sch.Types[frag.TypeCondition], fragments, sch) {
				return true
			}
		}
	}
	return false
}
