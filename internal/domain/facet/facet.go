package facet

import "slices"

// Option is one selectable value of a facet with its hit count.
type Option struct {
	ID    string
	Name  string
	Count int
}

// Facet is a filterable attribute shown in the sidebar.
type Facet struct {
	Key     string
	Title   string
	Type    string
	Options []Option
}

// Set is the ordered facet list of one response.
type Set []Facet

// IsEmpty reports whether the set holds no facets.
func (s Set) IsEmpty() bool { return len(s) == 0 }

// Clone returns a deep copy.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for i, f := range s {
		f.Options = slices.Clone(f.Options)
		out[i] = f
	}
	return out
}

// Find returns the facet with the given key.
func (s Set) Find(key string) (Facet, bool) {
	for _, f := range s {
		if f.Key == key {
			return f, true
		}
	}
	return Facet{}, false
}

// Keys returns facet keys in response order.
func (s Set) Keys() []string {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = f.Key
	}
	return keys
}
