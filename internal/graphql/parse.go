package graphql

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ValidateQuery reports whether query is a syntactically valid executable
// document with at least one operation.
func ValidateQuery(query string) error {
	doc, err := parser.ParseQuery(&ast.Source{Name: "probe", Input: query})
	if err != nil {
		return fmt.Errorf("parse query: %w", err)
	}
	if len(doc.Operations) == 0 {
		return fmt.Errorf("parse query: no operation in %q", query)
	}
	return nil
}

// CountSDLDefinitions parses a federation SDL document and returns the number
// of type definitions and extensions it contains.
func CountSDLDefinitions(sdl string) (int, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: "_service.sdl", Input: sdl})
	if err != nil {
		return 0, fmt.Errorf("parse sdl: %w", err)
	}
	return len(doc.Definitions) + len(doc.Extensions), nil
}
