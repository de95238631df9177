package language

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ParseValue parses a single GraphQL input value literal such as
// `{id: 1, tags: ["a"]}`. The literal is wrapped in an anonymous query as a
// field argument, which is the only place gqlparser accepts a bare value.
func ParseValue(source string) (*Value, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "literal", Input: "{ v(v: " + source + ") }"})
	if err != nil {
		return nil, err
	}
	if len(doc.Operations) != 1 || len(doc.Fragments) != 0 {
		return nil, fmt.Errorf("language: %q is not a single value literal", source)
	}
	sel := doc.Operations[0].SelectionSet
	if len(sel) != 1 {
		return nil, fmt.Errorf("language: %q is not a single value literal", source)
	}
	f, ok := sel[0].(*ast.Field)
	if !ok || len(f.Arguments) != 1 || len(f.Directives) != 0 || len(f.SelectionSet) != 0 {
		return nil, fmt.Errorf("language: %q is not a single value literal", source)
	}
	return f.Arguments[0].Value, nil
}
