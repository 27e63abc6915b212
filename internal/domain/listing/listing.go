package listing

// Money is a price with its currency.
type Money struct {
	Value    float64
	Currency string
}

// Product is one listing tile.
type Product struct {
	UID      string
	SKU      string
	Name     string
	URLKey   string
	ImageURL string
	Price    Money
}

// Result is one page of listing items.
type Result struct {
	Items      []Product
	TotalCount int
	HasMore    bool
}

// Append concatenates the next page. Count and has-more come from the newer page.
func (r Result) Append(next Result) Result {
	items := make([]Product, 0, len(r.Items)+len(next.Items))
	items = append(items, r.Items...)
	items = append(items, next.Items...)
	return Result{Items: items, TotalCount: next.TotalCount, HasMore: next.HasMore}
}

// Category identifies a node of the category tree.
type Category struct {
	Key     string
	Name    string
	URLPath string
}

// Navigation is the category header with its child links.
type Navigation struct {
	Category Category
	Children []Category
}

// IsZero reports whether no navigation was resolved.
func (n Navigation) IsZero() bool {
	return n.Category == (Category{}) && len(n.Children) == 0
}

// Breadcrumb is one step of the category trail.
type Breadcrumb struct {
	Name    string
	URLPath string
}
