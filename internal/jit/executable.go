package jit

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	executor "github.com/hanpama/graphjit/internal/executor"
	language "github.com/hanpama/graphjit/internal/language"
	schema "github.com/hanpama/graphjit/internal/schema"
)

// Executable is a compiled query plan. It owns its resolver bindings and
// schema reference independently of the Compiler that produced it, and is
// safe to invoke repeatedly and concurrently: every Execute call gets its
// own result map, error list and info record.
type Executable struct {
	schema    *schema.Schema
	operation *language.OperationDefinition
	root      execNode
	resolvers map[string]schema.Resolver
	async     bool
	listing   []string
	warnings  []string
	tracer    trace.Tracer

	// fallback delegates every call to the standard executor when the
	// query uses incremental delivery.
	fallback *executor.Executor
	document *language.QueryDocument
}

// IsAsync reports whether any field reachable in the compiled query
// carries the async flag.
func (e *Executable) IsAsync() bool { return e.async }

// IsFallback reports whether this executable delegates to the standard
// executor instead of a compiled plan.
func (e *Executable) IsFallback() bool { return e.fallback != nil }

// Warnings returns the non-fatal notices produced at compile time.
func (e *Executable) Warnings() []string { return e.warnings }

// Describe returns the plan listing, one step per line. Useful for
// inspecting what the compiler produced for a query.
func (e *Executable) Describe() string {
	if e.fallback != nil {
		return "fallback: standard executor"
	}
	return strings.Join(e.listing, "\n")
}

// Execute runs the compiled plan against root. Variable coercion failures
// short-circuit to a data:null response before any field resolves; a
// propagating failure at the query root nulls the entire data value.
func (e *Executable) Execute(ctx context.Context, root any, contextValue any, variables map[string]any) *executor.ExecutionResult {
	ctx, span := e.tracer.Start(ctx, "jit.Execute",
		trace.WithAttributes(attribute.Bool("jit.fallback", e.fallback != nil)))
	defer span.End()

	if e.fallback != nil {
		return e.fallback.ExecuteRequest(ctx, e.document, "", variables, root, contextValue)
	}

	coerced, err := executor.CoerceVariableValues(e.schema, e.operation, variables)
	if err != nil {
		return &executor.ExecutionResult{
			Data: nil,
			Errors: []executor.GraphQLError{{
				Message:   err.Error(),
				Locations: []executor.Location{},
			}},
		}
	}

	st := &execState{
		ctx:       ctx,
		schema:    e.schema,
		resolvers: e.resolvers,
		info: schema.ResolveInfo{
			Schema:         e.schema,
			RootValue:      root,
			Context:        contextValue,
			VariableValues: coerced,
		},
	}

	result := make(map[string]any)
	execErr := e.root(st, root, result, executor.Path{})

	out := &executor.ExecutionResult{Data: result}
	if execErr != nil {
		// The failing field already recorded its entry; the root only
		// absorbs the propagation by nulling data.
		out.Data = nil
	}
	if len(st.errors) > 0 {
		out.Errors = st.errors
		span.SetAttributes(attribute.Int("jit.errors", len(st.errors)))
	}
	return out
}
