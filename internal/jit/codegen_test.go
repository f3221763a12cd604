package jit

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	executor "github.com/hanpama/graphjit/internal/executor"
	schema "github.com/hanpama/graphjit/internal/schema"
)

// Pattern: Result comparison
func TestNullPropagation_NearestNullableAncestor(t *testing.T) {
	sch := buildSchema(t, `
		type Query { obj: Obj }
		type Obj { nonNullChild: String! }
	`)
	mustBind(t, sch, "Query", "obj", valueResolver(map[string]any{}))
	mustBind(t, sch, "Obj", "nonNullChild", errorResolver("boom"))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ obj { nonNullChild } }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)

	wantRes := &executor.ExecutionResult{
		Data: map[string]any{"obj": nil},
		Errors: []executor.GraphQLError{{
			Message:   "boom",
			Path:      executor.Path{"obj", "nonNullChild"},
			Locations: []executor.Location{},
			Extensions: map[string]any{
				"fieldName": "nonNullChild",
				"fieldType": "String!",
				"alias":     "nonNullChild",
			},
		}},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestNullPropagation_DeepNonNullChain(t *testing.T) {
	// outer is nullable, both inner levels are non-null: the failure at the
	// deepest field must null outer, with exactly one error entry.
	sch := buildSchema(t, `
		type Query { outer: Mid }
		type Mid { inner: Leaf! }
		type Leaf { value: String! }
	`)
	mustBind(t, sch, "Query", "outer", valueResolver(map[string]any{}))
	mustBind(t, sch, "Mid", "inner", valueResolver(map[string]any{}))
	mustBind(t, sch, "Leaf", "value", errorResolver("boom"))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ outer { inner { value } } }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)

	if diff := cmp.Diff(map[string]any{"outer": nil}, gotRes.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if len(gotRes.Errors) != 1 {
		t.Fatalf("want exactly 1 error, got %d: %v", len(gotRes.Errors), gotRes.Errors)
	}
	wantPath := executor.Path{"outer", "inner", "value"}
	if diff := cmp.Diff(wantPath, gotRes.Errors[0].Path); diff != "" {
		t.Fatalf("error path mismatch (-want +got):\n%s", diff)
	}
}

func TestNullPropagation_RootNonNullNullsData(t *testing.T) {
	sch := buildSchema(t, `type Query { required: String! }`)
	mustBind(t, sch, "Query", "required", errorResolver("boom"))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ required }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)

	if gotRes.Data != nil {
		t.Fatalf("want nil data, got %v", gotRes.Data)
	}
	if len(gotRes.Errors) != 1 {
		t.Fatalf("want exactly 1 error, got %d", len(gotRes.Errors))
	}
}

func TestMutationOrdering_DocumentOrder(t *testing.T) {
	sch := buildSchema(t, `
		type Query { q: String }
		type Mutation { first: String second: String third: String }
	`)
	var mu sync.Mutex
	var log []string
	record := func(name string) schema.Resolver {
		return func(context.Context, any, *schema.ResolveInfo, map[string]any) (any, error) {
			mu.Lock()
			log = append(log, name)
			mu.Unlock()
			return name, nil
		}
	}
	mustBind(t, sch, "Mutation", "first", record("first"))
	mustBindAsync(t, sch, "Mutation", "second", record("second"))
	mustBindAsync(t, sch, "Mutation", "third", record("third"))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "mutation { first second third }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)

	if len(gotRes.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", gotRes.Errors)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, log); diff != "" {
		t.Fatalf("invocation order mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchIndependence_OneFailingAsyncField(t *testing.T) {
	sch := buildSchema(t, `type Query { a: String b: String c: String }`)
	mustBindAsync(t, sch, "Query", "a", valueResolver("A"))
	mustBindAsync(t, sch, "Query", "b", errorResolver("b failed"))
	mustBindAsync(t, sch, "Query", "c", valueResolver("C"))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ a b c }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)

	wantData := map[string]any{"a": "A", "b": nil, "c": "C"}
	if diff := cmp.Diff(wantData, gotRes.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if len(gotRes.Errors) != 1 {
		t.Fatalf("want exactly 1 error, got %d: %v", len(gotRes.Errors), gotRes.Errors)
	}
	if diff := cmp.Diff(executor.Path{"b"}, gotRes.Errors[0].Path); diff != "" {
		t.Fatalf("error path mismatch (-want +got):\n%s", diff)
	}
}

func TestBatch_FieldsRunConcurrently(t *testing.T) {
	sch := buildSchema(t, `type Query { a: String b: String c: String }`)
	// Every resolver blocks until all three have started; sequential
	// execution would never release the barrier.
	var barrier sync.WaitGroup
	barrier.Add(3)
	rendezvous := func(v string) schema.Resolver {
		return func(context.Context, any, *schema.ResolveInfo, map[string]any) (any, error) {
			barrier.Done()
			barrier.Wait()
			return v, nil
		}
	}
	mustBindAsync(t, sch, "Query", "a", rendezvous("A"))
	mustBindAsync(t, sch, "Query", "b", rendezvous("B"))
	mustBindAsync(t, sch, "Query", "c", rendezvous("C"))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ a b c }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)

	wantData := map[string]any{"a": "A", "b": "B", "c": "C"}
	if diff := cmp.Diff(wantData, gotRes.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestSkipInclude(t *testing.T) {
	sch := buildSchema(t, `type Query { a: String b: String }`)
	mustBind(t, sch, "Query", "a", valueResolver("A"))
	mustBind(t, sch, "Query", "b", valueResolver("B"))
	c := newTestCompiler(t, sch)

	t.Run("skip true omits the key entirely", func(t *testing.T) {
		exe := mustCompile(t, c, "{ a @skip(if: true) b }")
		gotRes := exe.Execute(context.Background(), nil, nil, nil)
		data := gotRes.Data.(map[string]any)
		if _, present := data["a"]; present {
			t.Fatalf("skipped field must not appear, got %v", data)
		}
		if data["b"] != "B" {
			t.Fatalf("want b=B, got %v", data["b"])
		}
	})

	t.Run("skip false resolves", func(t *testing.T) {
		exe := mustCompile(t, c, "{ a @skip(if: false) }")
		gotRes := exe.Execute(context.Background(), nil, nil, nil)
		if diff := cmp.Diff(map[string]any{"a": "A"}, gotRes.Data); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("include with variable", func(t *testing.T) {
		exe := mustCompile(t, c, "query($yes: Boolean!) { a @include(if: $yes) }")
		gotRes := exe.Execute(context.Background(), nil, nil, map[string]any{"yes": false})
		data := gotRes.Data.(map[string]any)
		if _, present := data["a"]; present {
			t.Fatalf("excluded field must not appear, got %v", data)
		}
	})

	t.Run("skip and include conjoin", func(t *testing.T) {
		exe := mustCompile(t, c, "{ a @skip(if: false) @include(if: true) }")
		gotRes := exe.Execute(context.Background(), nil, nil, nil)
		if diff := cmp.Diff(map[string]any{"a": "A"}, gotRes.Data); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestListNullability_NullableItemsPassThrough(t *testing.T) {
	sch := buildSchema(t, `
		type Query { items: [Obj] }
		type Obj { name: String }
	`)
	mustBind(t, sch, "Query", "items", valueResolver([]any{
		map[string]any{"name": "a"},
		nil,
		map[string]any{"name": "b"},
	}))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ items { name } }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)

	wantRes := &executor.ExecutionResult{
		Data: map[string]any{"items": []any{
			map[string]any{"name": "a"},
			nil,
			map[string]any{"name": "b"},
		}},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestListNullability_NonNullItemFailureNullsList(t *testing.T) {
	sch := buildSchema(t, `
		type Query { items: [Obj!] }
		type Obj { name: String! }
	`)
	mustBind(t, sch, "Query", "items", valueResolver([]any{
		map[string]any{"name": "a"},
		map[string]any{},
	}))
	mustBind(t, sch, "Obj", "name", func(_ context.Context, src any, _ *schema.ResolveInfo, _ map[string]any) (any, error) {
		m := src.(map[string]any)
		if m["name"] == nil {
			return nil, fmt.Errorf("missing name")
		}
		return m["name"], nil
	})

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ items { name } }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)

	if diff := cmp.Diff(map[string]any{"items": nil}, gotRes.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if len(gotRes.Errors) != 1 {
		t.Fatalf("want exactly 1 error, got %d", len(gotRes.Errors))
	}
}

func TestArguments(t *testing.T) {
	sch := buildSchema(t, `
		type Query {
			greet(name: String = "world", loud: Boolean): String
		}
	`)
	mustBind(t, sch, "Query", "greet", func(_ context.Context, _ any, _ *schema.ResolveInfo, args map[string]any) (any, error) {
		out := fmt.Sprintf("hello %v", args["name"])
		if loud, _ := args["loud"].(bool); loud {
			out += "!"
		}
		return out, nil
	})
	c := newTestCompiler(t, sch)

	t.Run("declared default applies", func(t *testing.T) {
		exe := mustCompile(t, c, "{ greet }")
		gotRes := exe.Execute(context.Background(), nil, nil, nil)
		if diff := cmp.Diff(map[string]any{"greet": "hello world"}, gotRes.Data); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("literal overrides default", func(t *testing.T) {
		exe := mustCompile(t, c, `{ greet(name: "go", loud: true) }`)
		gotRes := exe.Execute(context.Background(), nil, nil, nil)
		if diff := cmp.Diff(map[string]any{"greet": "hello go!"}, gotRes.Data); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("variable value", func(t *testing.T) {
		exe := mustCompile(t, c, `query($n: String) { greet(name: $n) }`)
		gotRes := exe.Execute(context.Background(), nil, nil, map[string]any{"n": "there"})
		if diff := cmp.Diff(map[string]any{"greet": "hello there"}, gotRes.Data); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestArguments_EnumLookupAtRuntime(t *testing.T) {
	sch := buildSchema(t, `
		enum Color { RED GREEN }
		type Query { paint(color: Color): Int }
	`)
	if err := sch.RegisterEnumValue("Color", "GREEN", 2); err != nil {
		t.Fatal(err)
	}
	mustBind(t, sch, "Query", "paint", func(_ context.Context, _ any, _ *schema.ResolveInfo, args map[string]any) (any, error) {
		return args["color"], nil
	})

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ paint(color: GREEN) }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)
	if diff := cmp.Diff(map[string]any{"paint": 2}, gotRes.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestArguments_InputObjectWithNestedEnum(t *testing.T) {
	sch := buildSchema(t, `
		enum Size { S L }
		input Order { size: Size qty: Int }
		type Query { place(order: Order): String }
	`)
	if err := sch.RegisterEnumValue("Size", "L", "large"); err != nil {
		t.Fatal(err)
	}
	mustBind(t, sch, "Query", "place", func(_ context.Context, _ any, _ *schema.ResolveInfo, args map[string]any) (any, error) {
		order := args["order"].(map[string]any)
		return fmt.Sprintf("%v x%v", order["size"], order["qty"]), nil
	})

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ place(order: {size: L, qty: 3}) }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)
	if diff := cmp.Diff(map[string]any{"place": "large x3"}, gotRes.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestVariableCoercion_ShortCircuitsBeforeResolution(t *testing.T) {
	sch := buildSchema(t, `type Query { echo(n: Int!): Int }`)
	called := false
	mustBind(t, sch, "Query", "echo", func(_ context.Context, _ any, _ *schema.ResolveInfo, args map[string]any) (any, error) {
		called = true
		return args["n"], nil
	})

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "query($n: Int!) { echo(n: $n) }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)

	if gotRes.Data != nil {
		t.Fatalf("want nil data, got %v", gotRes.Data)
	}
	if len(gotRes.Errors) != 1 {
		t.Fatalf("want 1 error, got %v", gotRes.Errors)
	}
	if called {
		t.Fatal("resolver must not run when variable coercion fails")
	}
}

func TestAbstractType_UnionDiscrimination(t *testing.T) {
	sch := buildSchema(t, `
		type Dog { bark: String }
		type Cat { meow: String }
		union Pet = Dog | Cat
		type Query { pet: Pet }
	`)
	mustBind(t, sch, "Query", "pet", valueResolver(map[string]any{"__typename": "Dog", "bark": "woof"}))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ pet { __typename ... on Dog { bark } ... on Cat { meow } } }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)

	wantData := map[string]any{"pet": map[string]any{"__typename": "Dog", "bark": "woof"}}
	if diff := cmp.Diff(wantData, gotRes.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

type strayPet struct {
	Nick string
}

func TestAbstractType_UnknownTagFallsBackToCommonSelections(t *testing.T) {
	sch := buildSchema(t, `
		type Dog { bark: String }
		type Cat { meow: String }
		union Pet = Dog | Cat
		type Query { pet: Pet }
	`)
	mustBind(t, sch, "Query", "pet", valueResolver(strayPet{Nick: "x"}))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ pet { __typename ... on Dog { bark } } }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)

	wantData := map[string]any{"pet": map[string]any{"__typename": "strayPet"}}
	if diff := cmp.Diff(wantData, gotRes.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestFragments(t *testing.T) {
	sch := buildSchema(t, `
		interface Node { id: ID! }
		type User implements Node { id: ID! name: String }
		type Query { node: Node me: User }
	`)
	mustBind(t, sch, "Query", "node", valueResolver(map[string]any{"__typename": "User", "id": "u1", "name": "kim"}))
	mustBind(t, sch, "Query", "me", valueResolver(map[string]any{"id": "u1", "name": "kim"}))
	c := newTestCompiler(t, sch)

	t.Run("spread on same type expands inline", func(t *testing.T) {
		exe := mustCompile(t, c, `
			{ me { ...userFields } }
			fragment userFields on User { id name }
		`)
		gotRes := exe.Execute(context.Background(), nil, nil, nil)
		wantData := map[string]any{"me": map[string]any{"id": "u1", "name": "kim"}}
		if diff := cmp.Diff(wantData, gotRes.Data); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("typed fragment on interface value", func(t *testing.T) {
		exe := mustCompile(t, c, "{ node { id ... on User { name } } }")
		gotRes := exe.Execute(context.Background(), nil, nil, nil)
		wantData := map[string]any{"node": map[string]any{"id": "u1", "name": "kim"}}
		if diff := cmp.Diff(wantData, gotRes.Data); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("fragment with skip directive", func(t *testing.T) {
		exe := mustCompile(t, c, `
			{ me { id ...extra @skip(if: true) } }
			fragment extra on User { name }
		`)
		gotRes := exe.Execute(context.Background(), nil, nil, nil)
		data := gotRes.Data.(map[string]any)["me"].(map[string]any)
		if _, present := data["name"]; present {
			t.Fatalf("skipped fragment field must not appear, got %v", data)
		}
	})
}

func TestParallelOptions(t *testing.T) {
	sdl := `type Query { a: String b: String }`

	t.Run("WithoutParallel still resolves async fields", func(t *testing.T) {
		sch := buildSchema(t, sdl)
		mustBindAsync(t, sch, "Query", "a", valueResolver("A"))
		mustBindAsync(t, sch, "Query", "b", valueResolver("B"))
		c := newTestCompiler(t, sch, WithoutParallel())
		exe := mustCompile(t, c, "{ a b }")
		gotRes := exe.Execute(context.Background(), nil, nil, nil)
		if diff := cmp.Diff(map[string]any{"a": "A", "b": "B"}, gotRes.Data); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("depth ceiling of zero forces sequential", func(t *testing.T) {
		sch := buildSchema(t, sdl)
		mustBindAsync(t, sch, "Query", "a", valueResolver("A"))
		mustBindAsync(t, sch, "Query", "b", valueResolver("B"))
		c := newTestCompiler(t, sch, WithMaxParallelDepth(0))
		exe := mustCompile(t, c, "{ a b }")
		gotRes := exe.Execute(context.Background(), nil, nil, nil)
		if diff := cmp.Diff(map[string]any{"a": "A", "b": "B"}, gotRes.Data); diff != "" {
			t.Fatalf("data mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestAlias(t *testing.T) {
	sch := buildSchema(t, `type Query { word: String }`)
	mustBind(t, sch, "Query", "word", valueResolver("w"))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ first: word second: word }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)
	if diff := cmp.Diff(map[string]any{"first": "w", "second": "w"}, gotRes.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomScalarSerialization(t *testing.T) {
	sch := buildSchema(t, `
		scalar Upper
		type Query { shout: Upper shouts: [Upper] }
	`)
	err := sch.RegisterScalar("Upper", func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("Upper cannot represent %T", v)
		}
		return s + "!", nil
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	mustBind(t, sch, "Query", "shout", valueResolver("hey"))
	mustBind(t, sch, "Query", "shouts", valueResolver([]any{"a", nil, "b"}))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ shout shouts }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)
	wantData := map[string]any{"shout": "hey!", "shouts": []any{"a!", nil, "b!"}}
	if diff := cmp.Diff(wantData, gotRes.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestAttributeAccessWithoutResolver(t *testing.T) {
	sch := buildSchema(t, `
		type Query { me: User }
		type User { name: String age: Int }
	`)
	mustBind(t, sch, "Query", "me", valueResolver(map[string]any{"name": "kim", "age": 3}))

	c := newTestCompiler(t, sch)
	exe := mustCompile(t, c, "{ me { name age } }")

	gotRes := exe.Execute(context.Background(), nil, nil, nil)
	wantData := map[string]any{"me": map[string]any{"name": "kim", "age": 3}}
	if diff := cmp.Diff(wantData, gotRes.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}
