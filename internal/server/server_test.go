package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	schema "github.com/hanpama/graphjit/internal/schema"
)

func testHandler(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	sch, err := schema.BuildFromSDL(`
		type Query { hello: String echo(s: String!): String }
	`)
	require.NoError(t, err)
	require.NoError(t, sch.BindResolver("Query", "hello", func(ctx context.Context, source any, info *schema.ResolveInfo, args map[string]any) (any, error) {
		return "world", nil
	}))
	require.NoError(t, sch.BindResolver("Query", "echo", func(ctx context.Context, source any, info *schema.ResolveInfo, args map[string]any) (any, error) {
		return args["s"], nil
	}))

	h, err := New(sch, opts...)
	require.NoError(t, err)
	return h
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_PostQuery(t *testing.T) {
	h := testHandler(t)

	rec := postJSON(t, h, `{"query": "{ hello }"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	require.Equal(t, map[string]any{"hello": "world"}, body["data"])
	require.NotContains(t, body, "errors")
}

func TestServer_PostWithVariables(t *testing.T) {
	h := testHandler(t)

	rec := postJSON(t, h, `{
		"query": "query($s: String!) { echo(s: $s) }",
		"variables": {"s": "ping"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"echo": "ping"}, decodeBody(t, rec)["data"])
}

func TestServer_GetQuery(t *testing.T) {
	h := testHandler(t)

	target := "/graphql?query=" + url.QueryEscape("{ hello }")
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"hello": "world"}, decodeBody(t, rec)["data"])
}

func TestServer_Batch(t *testing.T) {
	h := testHandler(t)

	rec := postJSON(t, h, `[{"query": "{ hello }"}, {"query": "{ a: hello }"}]`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	require.Equal(t, map[string]any{"hello": "world"}, out[0]["data"])
	require.Equal(t, map[string]any{"a": "world"}, out[1]["data"])
}

func TestServer_NamedOperationSelection(t *testing.T) {
	h := testHandler(t)

	rec := postJSON(t, h, `{
		"query": "query A { hello } query B { b: hello }",
		"operationName": "B"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"b": "world"}, decodeBody(t, rec)["data"])
}

func TestServer_BadRequests(t *testing.T) {
	h := testHandler(t)

	t.Run("invalid JSON", func(t *testing.T) {
		rec := postJSON(t, h, `{"query": `)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("missing query", func(t *testing.T) {
		rec := postJSON(t, h, `{}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("unsupported content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("query { hello }"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/graphql", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServer_BodyTooLarge(t *testing.T) {
	h := testHandler(t, WithMaxBodyBytes(16))

	rec := postJSON(t, h, `{"query": "{ hello hello hello }"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_CompileErrorReturnedInBody(t *testing.T) {
	h := testHandler(t)

	rec := postJSON(t, h, `{"query": "{ nope }"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Nil(t, body["data"])
	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, errs)
}

func TestServer_CORSPreflight(t *testing.T) {
	h := testHandler(t, WithCORS("https://app.example"))

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
