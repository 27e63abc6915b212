package refinement

import (
	"fmt"
	"maps"
	"slices"

	"github.com/kailas-cloud/listingpage/internal/domain"
)

// MaxFilters is the maximum number of attribute filters in one snapshot.
const MaxFilters = 32

// Direction is the sort direction.
type Direction string

// Sort direction constants.
const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// Sort orders the listing by one attribute.
type Sort struct {
	Attribute string
	Direction Direction
}

// Range is an inclusive textual range, e.g. a price bracket.
type Range struct {
	From string
	To   string
}

// Value is a selected filter value: one or more options, or a range.
type Value struct {
	in  []string
	rng *Range
}

// Eq selects a single option.
func Eq(v string) Value { return Value{in: []string{v}} }

// In selects several options. Order is irrelevant for equality.
func In(vs ...string) Value {
	in := slices.Clone(vs)
	slices.Sort(in)
	return Value{in: slices.Compact(in)}
}

// Between selects a range.
func Between(from, to string) Value { return Value{rng: &Range{From: from, To: to}} }

// Options returns the selected options.
func (v Value) Options() []string { return v.in }

// Range returns the selected range, or nil.
func (v Value) Range() *Range { return v.rng }

// IsRange reports whether this is a range selection.
func (v Value) IsRange() bool { return v.rng != nil }

// IsZero reports whether nothing is selected.
func (v Value) IsZero() bool { return len(v.in) == 0 && v.rng == nil }

// Equal compares two values by content.
func (v Value) Equal(o Value) bool {
	if (v.rng == nil) != (o.rng == nil) {
		return false
	}
	if v.rng != nil && *v.rng != *o.rng {
		return false
	}
	return slices.Equal(v.in, o.in)
}

// Variable renders the value the way query variables carry it:
// a string for one option, a list for several, {from, to} for a range.
func (v Value) Variable() any {
	switch {
	case v.rng != nil:
		return map[string]string{"from": v.rng.From, "to": v.rng.To}
	case len(v.in) == 1:
		return v.in[0]
	default:
		return slices.Clone(v.in)
	}
}

// State is one snapshot of the user's refinements. It is owned upstream;
// the orchestrator only reads snapshots and compares them by value.
type State struct {
	Phrase  string
	Filters map[string]Value
	Sort    *Sort
	Page    int
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{Phrase: s.Phrase, Page: s.Page}
	if s.Filters != nil {
		out.Filters = make(map[string]Value, len(s.Filters))
		for k, v := range s.Filters {
			out.Filters[k] = Value{in: slices.Clone(v.in), rng: cloneRange(v.rng)}
		}
	}
	if s.Sort != nil {
		sort := *s.Sort
		out.Sort = &sort
	}
	return out
}

func cloneRange(r *Range) *Range {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// SameRefinement compares phrase, filters and sort. The page index is ignored:
// paging is not a refinement.
func (s State) SameRefinement(o State) bool {
	if s.Phrase != o.Phrase {
		return false
	}
	if !sameSort(s.Sort, o.Sort) {
		return false
	}
	return maps.EqualFunc(s.Filters, o.Filters, Value.Equal)
}

// Equal compares the full snapshot including the page.
func (s State) Equal(o State) bool {
	return s.SameRefinement(o) && s.CurrentPage() == o.CurrentPage()
}

func sameSort(a, b *Sort) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// HasActiveRefinement reports whether a phrase or any filter is applied.
func (s State) HasActiveRefinement() bool {
	return s.Phrase != "" || len(s.Filters) > 0
}

// CurrentPage returns the 1-based page index.
func (s State) CurrentPage() int {
	if s.Page < 1 {
		return 1
	}
	return s.Page
}

// FilterKeys returns filter attribute names in stable order.
func (s State) FilterKeys() []string {
	return slices.Sorted(maps.Keys(s.Filters))
}

// Validate checks the snapshot for malformed entries.
func (s State) Validate() error {
	if len(s.Filters) > MaxFilters {
		return fmt.Errorf("%w: too many filters (max %d)", domain.ErrInvalidRefinement, MaxFilters)
	}
	for k, v := range s.Filters {
		if k == "" {
			return fmt.Errorf("%w: filter key is required", domain.ErrInvalidRefinement)
		}
		if v.IsZero() {
			return fmt.Errorf("%w: filter %q has no value", domain.ErrInvalidRefinement, k)
		}
	}
	if s.Sort != nil {
		if s.Sort.Attribute == "" {
			return fmt.Errorf("%w: sort attribute is required", domain.ErrInvalidRefinement)
		}
		if s.Sort.Direction != Ascending && s.Sort.Direction != Descending {
			return fmt.Errorf("%w: sort direction must be ASC or DESC, got %q",
				domain.ErrInvalidRefinement, s.Sort.Direction)
		}
	}
	if s.Page < 0 {
		return fmt.Errorf("%w: page must be positive, got %d", domain.ErrInvalidRefinement, s.Page)
	}
	return nil
}
