package graphql

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/listingpage/internal/domain"
	"github.com/kailas-cloud/listingpage/internal/domain/query"
	"github.com/kailas-cloud/listingpage/internal/domain/refinement"
)

func TestDefaultRegistry_ParsesBuiltins(t *testing.T) {
	r, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	want := []query.ID{
		query.CategoryNavigation, query.CategoryPage, query.ProductFacets,
		query.ProductListing, query.ProductSearch,
	}
	got := r.IDs()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDefaultRegistry_AcceptsBuilderVariables(t *testing.T) {
	r, err := DefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	st := refinement.State{
		Phrase:  "case",
		Filters: map[string]refinement.Value{"color": refinement.Eq("red")},
		Sort:    &refinement.Sort{Attribute: "price", Direction: refinement.Ascending},
	}
	vars := []query.Variables{
		query.NewUnified("phones", st, 24),
		query.NewConsolidated("phones", st, 24),
		query.NewListing("phones", st, 24),
		query.NewFacets("phones", st),
		query.Navigation{Category: "phones"},
	}
	for _, v := range vars {
		doc, err := r.Lookup(v.Query())
		if err != nil {
			t.Fatalf("Lookup(%s): %v", v.Query(), err)
		}
		if err := doc.CheckVariables(v.Map()); err != nil {
			t.Errorf("%s: %v", v.Query(), err)
		}
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r, err := NewRegistry(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Lookup("Nope"); !errors.Is(err, domain.ErrUnknownQuery) {
		t.Errorf("expected ErrUnknownQuery, got %v", err)
	}
}

func TestNewRegistry_RejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `query Broken {`},
		{"two operations", `query A { a } query B { b }`},
		{"mutation", `mutation A { a }`},
		{"name mismatch", `query Other { a }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(map[query.ID]string{"A": tt.src}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDocument_CheckVariables(t *testing.T) {
	r, err := NewRegistry(map[query.ID]string{
		"Q": `query Q($a: String!, $b: Int, $c: Int! = 3) { x }`,
	})
	if err != nil {
		t.Fatal(err)
	}
	doc, _ := r.Lookup("Q")

	if err := doc.CheckVariables(map[string]any{"a": "v"}); err != nil {
		t.Errorf("valid vars rejected: %v", err)
	}
	if err := doc.CheckVariables(map[string]any{}); !errors.Is(err, domain.ErrMissingVariable) {
		t.Errorf("expected ErrMissingVariable, got %v", err)
	}
	if err := doc.CheckVariables(map[string]any{"a": "v", "z": 1}); !errors.Is(err, domain.ErrUndeclaredVariable) {
		t.Errorf("expected ErrUndeclaredVariable, got %v", err)
	}
}
