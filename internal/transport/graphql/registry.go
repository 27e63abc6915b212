package graphql

import (
	"fmt"
	"slices"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/kailas-cloud/listingpage/internal/domain"
	"github.com/kailas-cloud/listingpage/internal/domain/query"
)

// Document is a parsed query document with its declared variables.
type Document struct {
	ID   query.ID
	Text string
	// Variables maps each declared variable to whether it is required.
	Variables map[string]bool
}

// CheckVariables rejects variables the operation does not declare and
// reports required ones that are missing.
func (d Document) CheckVariables(vars map[string]any) error {
	for name := range vars {
		if _, ok := d.Variables[name]; !ok {
			return fmt.Errorf("%w: %s does not declare $%s", domain.ErrUndeclaredVariable, d.ID, name)
		}
	}
	for name, required := range d.Variables {
		if _, ok := vars[name]; required && !ok {
			return fmt.Errorf("%w: %s requires $%s", domain.ErrMissingVariable, d.ID, name)
		}
	}
	return nil
}

// Registry holds the query documents the executor may send.
type Registry struct {
	docs map[query.ID]Document
}

// NewRegistry parses every source. Each must hold exactly one query
// operation named after its id; fragments are allowed.
func NewRegistry(sources map[query.ID]string) (*Registry, error) {
	r := &Registry{docs: make(map[query.ID]Document, len(sources))}
	for id, src := range sources {
		doc, err := parseDocument(id, src)
		if err != nil {
			return nil, err
		}
		r.docs[id] = doc
	}
	return r, nil
}

// DefaultRegistry parses the built-in documents.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(Documents)
}

// Lookup returns the document for id.
func (r *Registry) Lookup(id query.ID) (Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", domain.ErrUnknownQuery, id)
	}
	return doc, nil
}

// IDs returns registered query ids in stable order.
func (r *Registry) IDs() []query.ID {
	ids := make([]query.ID, 0, len(r.docs))
	for id := range r.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func parseDocument(id query.ID, src string) (Document, error) {
	parsed, err := parser.ParseQuery(&ast.Source{Name: string(id), Input: src})
	if err != nil {
		return Document{}, fmt.Errorf("parse %s: %w", id, err)
	}
	if len(parsed.Operations) != 1 {
		return Document{}, fmt.Errorf("%s: expected one operation, got %d", id, len(parsed.Operations))
	}
	op := parsed.Operations[0]
	if op.Operation != ast.Query {
		return Document{}, fmt.Errorf("%s: expected a query, got %s", id, op.Operation)
	}
	if op.Name != string(id) {
		return Document{}, fmt.Errorf("%s: operation is named %q", id, op.Name)
	}

	vars := make(map[string]bool, len(op.VariableDefinitions))
	for _, v := range op.VariableDefinitions {
		vars[v.Variable] = v.Type != nil && v.Type.NonNull && v.DefaultValue == nil
	}
	return Document{ID: id, Text: src, Variables: vars}, nil
}
