// Package urlstate maps refinement snapshots to and from URL query strings.
//
//	q=iphone&f=manufacturer:Apple||Samsung&f=price:10..100&sort=price:DESC&page=2
package urlstate

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/schema"

	"github.com/kailas-cloud/listingpage/internal/domain"
	"github.com/kailas-cloud/listingpage/internal/domain/refinement"
)

const (
	optionSep = "||"
	rangeSep  = ".."
)

type params struct {
	Phrase  string   `schema:"q"`
	Filters []string `schema:"f"`
	Sort    string   `schema:"sort"`
	Page    int      `schema:"page"`
}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// Decode parses a query string into a validated refinement snapshot.
func Decode(values url.Values) (refinement.State, error) {
	var p params
	if err := decoder.Decode(&p, values); err != nil {
		return refinement.State{}, fmt.Errorf("%w: %w", domain.ErrInvalidRefinement, err)
	}

	st := refinement.State{Phrase: strings.TrimSpace(p.Phrase), Page: p.Page}
	for _, raw := range p.Filters {
		key, val, err := parseFilter(raw)
		if err != nil {
			return refinement.State{}, err
		}
		if st.Filters == nil {
			st.Filters = make(map[string]refinement.Value)
		}
		st.Filters[key] = val
	}
	if p.Sort != "" {
		sort, err := parseSort(p.Sort)
		if err != nil {
			return refinement.State{}, err
		}
		st.Sort = sort
	}
	if err := st.Validate(); err != nil {
		return refinement.State{}, err
	}
	return st, nil
}

// DecodeString parses a raw query string such as "q=tv&f=brand:LG".
func DecodeString(raw string) (refinement.State, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return refinement.State{}, fmt.Errorf("%w: %w", domain.ErrInvalidRefinement, err)
	}
	return Decode(values)
}

func parseFilter(raw string) (string, refinement.Value, error) {
	key, val, ok := strings.Cut(raw, ":")
	if !ok || key == "" || val == "" {
		return "", refinement.Value{}, fmt.Errorf("%w: filter %q must be key:value", domain.ErrInvalidRefinement, raw)
	}
	if from, to, isRange := strings.Cut(val, rangeSep); isRange {
		return key, refinement.Between(from, to), nil
	}
	opts := strings.Split(val, optionSep)
	if len(opts) == 1 {
		return key, refinement.Eq(opts[0]), nil
	}
	return key, refinement.In(opts...), nil
}

func parseSort(raw string) (*refinement.Sort, error) {
	attr, dir, ok := strings.Cut(raw, ":")
	if !ok {
		dir = string(refinement.Ascending)
	}
	return &refinement.Sort{
		Attribute: attr,
		Direction: refinement.Direction(strings.ToUpper(dir)),
	}, nil
}

// Encode renders st as query values. Filters are emitted in key order.
func Encode(st refinement.State) url.Values {
	v := url.Values{}
	if st.Phrase != "" {
		v.Set("q", st.Phrase)
	}
	for _, key := range st.FilterKeys() {
		v.Add("f", key+":"+formatValue(st.Filters[key]))
	}
	if st.Sort != nil {
		v.Set("sort", st.Sort.Attribute+":"+string(st.Sort.Direction))
	}
	if st.Page > 1 {
		v.Set("page", strconv.Itoa(st.Page))
	}
	return v
}

func formatValue(val refinement.Value) string {
	if r := val.Range(); r != nil {
		return r.From + rangeSep + r.To
	}
	return strings.Join(val.Options(), optionSep)
}
