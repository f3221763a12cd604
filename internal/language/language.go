package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// Error is the located error type produced by the parser and validator.
type Error = gqlerror.Error

// ErrorList is a list of located errors.
type ErrorList = gqlerror.List

// ParseQuery parses a GraphQL executable document.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseSchema parses an SDL document without validating it.
func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL into an executable ast.Schema. The
// standard prelude (builtin scalars, @skip/@include and the introspection
// types) is included, so queries against __schema and __type validate.
func LoadSchema(name, source string) (*ast.Schema, error) {
	return validator.LoadSchema(validator.Prelude, &ast.Source{Name: name, Input: source})
}

// Validate runs the standard validation rules for doc against sch.
// The returned list is empty when the document is valid.
func Validate(sch *ast.Schema, doc *QueryDocument) ErrorList {
	return validator.Validate(sch, doc)
}
