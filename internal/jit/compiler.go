// Package jit compiles a validated GraphQL query into a reusable execution
// plan: a tree of closures built once per query shape, each capturing its
// static configuration (dispatch id, nullability, argument builders, child
// nodes), so that executing the query is invoking the root closure.
// Queries using incremental delivery directives fall back to the standard
// tree-walking executor.
package jit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	executor "github.com/hanpama/graphjit/internal/executor"
	language "github.com/hanpama/graphjit/internal/language"
	schema "github.com/hanpama/graphjit/internal/schema"
)

const defaultMaxParallelDepth = 3

// fallbackWarning is surfaced on the Executable when incremental delivery
// directives force delegation to the standard executor.
const fallbackWarning = "incremental delivery directives (@defer/@stream) are not supported by the compiled path; falling back to the standard executor"

// Compiler builds Executables for one schema. A Compiler may be shared
// across goroutines; each Compile call plans with its own private state.
type Compiler struct {
	schema   *schema.Schema
	fallback *executor.Executor
	tracer   trace.Tracer

	enableParallel         bool
	inlineTrivialResolvers bool
	maxParallelDepth       int

	cache *Cache
}

// Option configures a Compiler.
type Option func(*compilerConfig)

type compilerConfig struct {
	enableParallel         bool
	inlineTrivialResolvers bool
	maxParallelDepth       int
	cacheEntries           int64
	cacheTTL               time.Duration
}

// WithCache enables the compiled-plan cache, keyed by query text, holding
// up to maxEntries plans.
func WithCache(maxEntries int64) Option {
	return func(c *compilerConfig) { c.cacheEntries = maxEntries }
}

// WithCacheTTL bounds the lifetime of cached plans. Zero means no expiry.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *compilerConfig) { c.cacheTTL = ttl }
}

// WithMaxParallelDepth sets how many nested selection-set levels may use
// parallel batching before planning falls back to sequential resolution.
func WithMaxParallelDepth(depth int) Option {
	return func(c *compilerConfig) { c.maxParallelDepth = depth }
}

// WithoutParallel disables parallel batching entirely; async fields are
// awaited one after another in document order.
func WithoutParallel() Option {
	return func(c *compilerConfig) { c.enableParallel = false }
}

// WithoutInlineResolvers disables the plain-attribute fast path for fields
// with no declared resolver and no arguments.
func WithoutInlineResolvers() Option {
	return func(c *compilerConfig) { c.inlineTrivialResolvers = false }
}

// NewCompiler builds a Compiler for sch.
func NewCompiler(sch *schema.Schema, opts ...Option) (*Compiler, error) {
	cfg := compilerConfig{
		enableParallel:         true,
		inlineTrivialResolvers: true,
		maxParallelDepth:       defaultMaxParallelDepth,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Compiler{
		schema:                 sch,
		fallback:               executor.NewExecutor(sch),
		tracer:                 otel.Tracer("graphjit/jit"),
		enableParallel:         cfg.enableParallel,
		inlineTrivialResolvers: cfg.inlineTrivialResolvers,
		maxParallelDepth:       cfg.maxParallelDepth,
	}
	if cfg.cacheEntries > 0 {
		cache, err := newCache(cfg.cacheEntries, cfg.cacheTTL)
		if err != nil {
			return nil, fmt.Errorf("jit: cache setup: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// CacheStats reports plan cache hits and misses; zeros without a cache.
func (c *Compiler) CacheStats() (hits, misses uint64) {
	if c.cache == nil {
		return 0, 0
	}
	return c.cache.Stats()
}

// Close releases the plan cache, if any.
func (c *Compiler) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// Compile parses, validates and plans query into an Executable. Validation
// failures, documents without an operation and undeterminable root types
// abort compilation with an error; incremental delivery directives instead
// produce a fallback Executable carrying a warning.
func (c *Compiler) Compile(ctx context.Context, query string) (*Executable, error) {
	ctx, span := c.tracer.Start(ctx, "jit.Compile")
	defer span.End()

	if c.cache != nil {
		if cached, ok := c.cache.Get(query); ok {
			span.SetAttributes(attribute.Bool("jit.cache_hit", true))
			return cached, nil
		}
	}

	doc, err := language.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("jit: parse: %w", err)
	}

	// The incremental-delivery scan runs before validation: schemas without
	// @defer/@stream definitions would otherwise reject such queries
	// outright instead of falling back.
	if hasIncrementalDirectives(doc) {
		span.AddEvent("jit.fallback", trace.WithAttributes(attribute.String("reason", "incremental delivery")))
		exe := &Executable{
			schema:   c.schema,
			fallback: c.fallback,
			document: doc,
			warnings: []string{fallbackWarning},
			tracer:   c.tracer,
		}
		c.store(query, exe)
		return exe, nil
	}

	if c.schema.AST != nil {
		if errs := language.Validate(c.schema.AST, doc); len(errs) > 0 {
			return nil, fmt.Errorf("jit: validation: %w", errs)
		}
	}

	if len(doc.Operations) == 0 {
		return nil, errors.New("jit: no operation found")
	}
	operation := doc.Operations[0]

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = c.schema.GetQueryType()
	case language.Mutation:
		rootType = c.schema.GetMutationType()
	case language.Subscription:
		rootType = c.schema.GetSubscriptionType()
	}
	if rootType == nil {
		return nil, fmt.Errorf("jit: could not determine root type for %s operation", operation.Operation)
	}

	fragments := make(map[string]*language.FragmentDefinition, len(doc.Fragments))
	for _, frag := range doc.Fragments {
		fragments[frag.Name] = frag
	}

	p := newPlanner(c.schema, fragments)
	p.enableParallel = c.enableParallel
	p.inlineTrivialResolvers = c.inlineTrivialResolvers
	p.maxParallelDepth = c.maxParallelDepth
	p.hasAsyncResolvers = detectAsyncResolvers(operation.SelectionSet, rootType, fragments, c.schema)

	p.emit("operation %s on %s", operation.Operation, rootType.Name)
	// Mutation roots resolve strictly in document order, never batched.
	root, err := p.planSelection(operation.SelectionSet, rootType, operation.Operation == language.Mutation)
	if err != nil {
		return nil, err
	}

	for id := range p.asyncResolverIDs {
		if _, bound := p.resolvers[id]; !bound {
			return nil, fmt.Errorf("jit: async dispatch id %s has no resolver binding", id)
		}
	}

	span.SetAttributes(
		attribute.Bool("jit.async", p.hasAsyncResolvers),
		attribute.Int("jit.resolver_bindings", len(p.resolvers)),
	)

	exe := &Executable{
		schema:    c.schema,
		operation: operation,
		root:      root,
		resolvers: p.resolvers,
		async:     p.hasAsyncResolvers,
		listing:   p.steps,
		tracer:    c.tracer,
	}
	c.store(query, exe)
	return exe, nil
}

func (c *Compiler) store(query string, exe *Executable) {
	if c.cache != nil {
		c.cache.Set(query, exe)
	}
}

// hasIncrementalDirectives reports whether @defer or @stream appears
// anywhere in the document: on operations, fields, fragment spreads,
// inline fragments or fragment definitions.
func hasIncrementalDirectives(doc *language.QueryDocument) bool {
	for _, op := range doc.Operations {
		if directivesHaveIncremental(op.Directives) || selectionsHaveIncremental(op.SelectionSet) {
			return true
		}
	}
	for _, frag := range doc.Fragments {
		if directivesHaveIncremental(frag.Directives) || selectionsHaveIncremental(frag.SelectionSet) {
			return true
		}
	}
	return false
}

func selectionsHaveIncremental(selSet language.SelectionSet) bool {
	for _, sel := range selSet {
		switch s := sel.(type) {
		case *language.Field:
			if directivesHaveIncremental(s.Directives) || selectionsHaveIncremental(s.SelectionSet) {
				return true
			}
		case *language.InlineFragment:
			if directivesHaveIncremental(s.Directives) || selectionsHaveIncremental(s.SelectionSet) {
				return true
			}
		case *language.FragmentSpread:
			if directivesHaveIncremental(s.Directives) {
				return true
			}
		}
	}
	return false
}

func directivesHaveIncremental(directives language.DirectiveList) bool {
	for _, d := range directives {
		if d.Name == "defer" || d.Name == "stream" {
			return true
		}
	}
	return false
}
