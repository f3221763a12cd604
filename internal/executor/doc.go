// Package executor implements the standard tree-walking GraphQL executor:
// field collection with @skip/@include and fragment handling, depth-first
// value completion per the GraphQL specification (lists, leafs, objects,
// abstract types), Non-Null null propagation, and located errors with
// partial success.
//
// It resolves fields directly against the schema model: a bound
// schema.Resolver when present, attribute access on the source value
// otherwise. Compared to the JIT path it performs all of this work per
// request; the JIT compiler front-loads it into a reusable plan and falls
// back to this executor only for queries using incremental delivery
// directives (@defer/@stream).
//
// Mutation root fields execute strictly in document order. Variable
// coercion runs before any field resolution and short-circuits the request
// on failure. Errors accumulate in one flat list; a Non-Null violation
// nulls the nearest nullable ancestor.
package executor
