package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	language "github.com/hanpama/graphjit/internal/language"
	schema "github.com/hanpama/graphjit/internal/schema"
)

func mustParseQuery(t *testing.T, query string) *language.QueryDocument {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return doc
}

func buildSchema(t *testing.T, sdl string) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(sdl)
	require.NoError(t, err)
	return sch
}

func mustBind(t *testing.T, sch *schema.Schema, typeName, fieldName string, r schema.Resolver) {
	t.Helper()
	require.NoError(t, sch.BindResolver(typeName, fieldName, r))
}

func staticResolver(v any) schema.Resolver {
	return func(ctx context.Context, source any, info *schema.ResolveInfo, args map[string]any) (any, error) {
		return v, nil
	}
}

func execute(t *testing.T, sch *schema.Schema, query string, variables map[string]any) *ExecutionResult {
	t.Helper()
	doc := mustParseQuery(t, query)
	return NewExecutor(sch).ExecuteRequest(context.Background(), doc, "", variables, nil, nil)
}
