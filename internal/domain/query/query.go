// Package query defines the named backend queries and the variables each fetch strategy sends.
package query

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/kailas-cloud/listingpage/internal/domain/refinement"
)

// ID names a query document known to the backend.
type ID string

// Query identities.
const (
	CategoryPage       ID = "CategoryPage"
	ProductSearch      ID = "ProductSearch"
	ProductListing     ID = "ProductListing"
	ProductFacets      ID = "ProductFacets"
	CategoryNavigation ID = "CategoryNavigation"
)

// CategoryFilterKey is the filter attribute that scopes search queries to a category.
const CategoryFilterKey = "category"

// Variables is the request shape of one query.
type Variables interface {
	Query() ID
	Map() map[string]any
}

// Key identifies a request by query identity and full variable set.
// Two different filter combinations never share a key.
func Key(v Variables) string {
	data, err := json.Marshal(v.Map())
	if err != nil {
		return fmt.Sprintf("%s:%v", v.Query(), v.Map())
	}
	return string(v.Query()) + ":" + string(data)
}

// Unified is the first-render request: navigation, listing, facets and breadcrumbs.
type Unified struct {
	Category string
	Phrase   string
	Filter   map[string]refinement.Value
	Sort     *refinement.Sort
	PageSize int
	Page     int
}

// NewUnified builds unified variables from the frozen initial snapshot.
func NewUnified(category string, frozen refinement.State, pageSize int) Unified {
	st := frozen.Clone()
	return Unified{
		Category: category,
		Phrase:   st.Phrase,
		Filter:   st.Filters,
		Sort:     st.Sort,
		PageSize: pageSize,
		Page:     st.CurrentPage(),
	}
}

func (Unified) Query() ID { return CategoryPage }

func (u Unified) Map() map[string]any {
	m := map[string]any{
		"category": u.Category,
		"filter":   filterVariable(u.Filter, ""),
		"pageSize": u.PageSize,
		"page":     u.Page,
	}
	setRefinement(m, u.Phrase, u.Sort)
	return m
}

// Consolidated is the listing+facets request used after the first refinement.
type Consolidated struct {
	Category string
	Phrase   string
	Filter   map[string]refinement.Value
	Sort     *refinement.Sort
	Limit    int
}

// NewConsolidated builds consolidated variables from the live snapshot.
func NewConsolidated(category string, st refinement.State, limit int) Consolidated {
	st = st.Clone()
	return Consolidated{Category: category, Phrase: st.Phrase, Filter: st.Filters, Sort: st.Sort, Limit: limit}
}

func (Consolidated) Query() ID { return ProductSearch }

func (c Consolidated) Map() map[string]any {
	m := map[string]any{
		"filter": filterVariable(c.Filter, c.Category),
		"limit":  c.Limit,
	}
	setRefinement(m, c.Phrase, c.Sort)
	return m
}

// Listing is one page of the split listing request.
type Listing struct {
	Category      string
	Phrase        string
	Filter        map[string]refinement.Value
	Sort          *refinement.Sort
	PageSize      int
	Page          int
	IncludeFacets bool
}

// NewListing builds first-page listing variables. Facets are requested only
// while a phrase or filter is active.
func NewListing(category string, st refinement.State, pageSize int) Listing {
	st = st.Clone()
	return Listing{
		Category:      category,
		Phrase:        st.Phrase,
		Filter:        st.Filters,
		Sort:          st.Sort,
		PageSize:      pageSize,
		Page:          1,
		IncludeFacets: st.HasActiveRefinement(),
	}
}

// WithPage returns a copy targeting another page.
func (l Listing) WithPage(page int) Listing {
	l.Page = page
	l.Filter = maps.Clone(l.Filter)
	return l
}

func (Listing) Query() ID { return ProductListing }

func (l Listing) Map() map[string]any {
	m := map[string]any{
		"filter":        filterVariable(l.Filter, l.Category),
		"pageSize":      l.PageSize,
		"page":          l.Page,
		"includeFacets": l.IncludeFacets,
	}
	setRefinement(m, l.Phrase, l.Sort)
	return m
}

// Facets is the split facet request. It deliberately carries no active
// filters so the sidebar always lists every selectable option.
type Facets struct {
	Category string
	Phrase   string
}

// NewFacets builds facet variables from the live snapshot.
func NewFacets(category string, st refinement.State) Facets {
	return Facets{Category: category, Phrase: st.Phrase}
}

func (Facets) Query() ID { return ProductFacets }

func (f Facets) Map() map[string]any {
	m := map[string]any{"category": f.Category}
	if f.Phrase != "" {
		m["phrase"] = f.Phrase
	}
	return m
}

// Navigation is the category header and breadcrumb request.
type Navigation struct {
	Category string
}

func (Navigation) Query() ID { return CategoryNavigation }

func (n Navigation) Map() map[string]any {
	return map[string]any{"category": n.Category}
}

func filterVariable(filters map[string]refinement.Value, category string) map[string]any {
	out := make(map[string]any, len(filters)+1)
	for k, v := range filters {
		out[k] = v.Variable()
	}
	if category != "" {
		out[CategoryFilterKey] = category
	}
	return out
}

func setRefinement(m map[string]any, phrase string, sort *refinement.Sort) {
	if phrase != "" {
		m["phrase"] = phrase
	}
	if sort != nil {
		m["sort"] = map[string]any{
			"attribute": sort.Attribute,
			"direction": string(sort.Direction),
		}
	}
}
