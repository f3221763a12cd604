package jit

import (
	"context"
	"fmt"
	"testing"

	schema "github.com/hanpama/graphjit/internal/schema"
)

// buildSchema builds a schema from SDL and fails the test on error.
func buildSchema(t *testing.T, sdl string) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(sdl)
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return sch
}

// mustBind attaches a resolver and fails the test on unknown type/field.
func mustBind(t *testing.T, sch *schema.Schema, typeName, fieldName string, r schema.Resolver) {
	t.Helper()
	if err := sch.BindResolver(typeName, fieldName, r); err != nil {
		t.Fatalf("bind %s.%s: %v", typeName, fieldName, err)
	}
}

// mustBindAsync attaches a resolver with the async flag set.
func mustBindAsync(t *testing.T, sch *schema.Schema, typeName, fieldName string, r schema.Resolver) {
	t.Helper()
	if err := sch.BindAsyncResolver(typeName, fieldName, r); err != nil {
		t.Fatalf("bind async %s.%s: %v", typeName, fieldName, err)
	}
}

func valueResolver(v any) schema.Resolver {
	return func(context.Context, any, *schema.ResolveInfo, map[string]any) (any, error) {
		return v, nil
	}
}

func errorResolver(msg string) schema.Resolver {
	return func(context.Context, any, *schema.ResolveInfo, map[string]any) (any, error) {
		return nil, fmt.Errorf("%s", msg)
	}
}

func newTestCompiler(t *testing.T, sch *schema.Schema, opts ...Option) *Compiler {
	t.Helper()
	c, err := NewCompiler(sch, opts...)
	if err != nil {
		t.Fatalf("new compiler: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func mustCompile(t *testing.T, c *Compiler, query string) *Executable {
	t.Helper()
	exe, err := c.Compile(context.Background(), query)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return exe
}
