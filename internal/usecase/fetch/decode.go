package fetch

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/listingpage/internal/domain"
	"github.com/kailas-cloud/listingpage/internal/domain/facet"
	"github.com/kailas-cloud/listingpage/internal/domain/listing"
)

// UnifiedData is the decoded first-render response.
type UnifiedData struct {
	Navigation  listing.Navigation
	Breadcrumbs []listing.Breadcrumb
	Listing     listing.Result
	Facets      facet.Set
}

// SearchData is a decoded listing response with optional facets.
type SearchData struct {
	Listing listing.Result
	Facets  facet.Set
}

// NavigationData is the decoded category header response.
type NavigationData struct {
	Navigation  listing.Navigation
	Breadcrumbs []listing.Breadcrumb
}

type wireMoney struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

type wireProduct struct {
	UID      string    `json:"uid"`
	SKU      string    `json:"sku"`
	Name     string    `json:"name"`
	URLKey   string    `json:"url_key"`
	ImageURL string    `json:"image_url"`
	Price    wireMoney `json:"price"`
}

type wirePageInfo struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

type wireProducts struct {
	Items      []wireProduct `json:"items"`
	TotalCount int           `json:"total_count"`
	PageInfo   *wirePageInfo `json:"page_info"`
}

type wireBucket struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Count int    `json:"count"`
}

type wireFacet struct {
	Attribute string       `json:"attribute"`
	Title     string       `json:"title"`
	Type      string       `json:"type"`
	Buckets   []wireBucket `json:"buckets"`
}

type wireCategory struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	URLPath string `json:"url_path"`
}

type wireNavigation struct {
	Category wireCategory   `json:"category"`
	Children []wireCategory `json:"children"`
}

type wireBreadcrumb struct {
	Name    string `json:"name"`
	URLPath string `json:"url_path"`
}

type wireData struct {
	Products    *wireProducts    `json:"products"`
	Facets      *[]wireFacet     `json:"facets"`
	Navigation  *wireNavigation  `json:"navigation"`
	Breadcrumbs []wireBreadcrumb `json:"breadcrumbs"`
}

func parseData(raw []byte) (wireData, error) {
	var d wireData
	if len(raw) == 0 {
		return d, fmt.Errorf("%w: empty response", domain.ErrDecode)
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	return d, nil
}

// DecodeUnified decodes the CategoryPage response. products is required.
func DecodeUnified(raw []byte) (UnifiedData, error) {
	d, err := parseData(raw)
	if err != nil {
		return UnifiedData{}, err
	}
	res, err := toResult(d.Products)
	if err != nil {
		return UnifiedData{}, err
	}
	out := UnifiedData{
		Listing:     res,
		Breadcrumbs: toBreadcrumbs(d.Breadcrumbs),
	}
	if d.Navigation != nil {
		out.Navigation = toNavigation(*d.Navigation)
	}
	if d.Facets != nil {
		out.Facets = toFacets(*d.Facets)
	}
	return out, nil
}

// DecodeSearch decodes ProductSearch and ProductListing responses.
func DecodeSearch(raw []byte) (SearchData, error) {
	d, err := parseData(raw)
	if err != nil {
		return SearchData{}, err
	}
	res, err := toResult(d.Products)
	if err != nil {
		return SearchData{}, err
	}
	out := SearchData{Listing: res}
	if d.Facets != nil {
		out.Facets = toFacets(*d.Facets)
	}
	return out, nil
}

// DecodeFacets decodes the ProductFacets response.
func DecodeFacets(raw []byte) (facet.Set, error) {
	d, err := parseData(raw)
	if err != nil {
		return nil, err
	}
	if d.Facets == nil {
		return nil, fmt.Errorf("%w: facets missing", domain.ErrDecode)
	}
	return toFacets(*d.Facets), nil
}

// DecodeNavigation decodes the CategoryNavigation response.
func DecodeNavigation(raw []byte) (NavigationData, error) {
	d, err := parseData(raw)
	if err != nil {
		return NavigationData{}, err
	}
	if d.Navigation == nil {
		return NavigationData{}, fmt.Errorf("%w: navigation missing", domain.ErrDecode)
	}
	return NavigationData{
		Navigation:  toNavigation(*d.Navigation),
		Breadcrumbs: toBreadcrumbs(d.Breadcrumbs),
	}, nil
}

func toResult(p *wireProducts) (listing.Result, error) {
	if p == nil {
		return listing.Result{}, fmt.Errorf("%w: products missing", domain.ErrDecode)
	}
	items := make([]listing.Product, 0, len(p.Items))
	for _, it := range p.Items {
		if it.UID == "" {
			return listing.Result{}, fmt.Errorf("%w: product without uid", domain.ErrDecode)
		}
		items = append(items, listing.Product{
			UID:      it.UID,
			SKU:      it.SKU,
			Name:     it.Name,
			URLKey:   it.URLKey,
			ImageURL: it.ImageURL,
			Price:    listing.Money{Value: it.Price.Value, Currency: it.Price.Currency},
		})
	}
	res := listing.Result{Items: items, TotalCount: p.TotalCount}
	if p.PageInfo != nil {
		res.HasMore = p.PageInfo.CurrentPage < p.PageInfo.TotalPages
	}
	return res, nil
}

func toFacets(in []wireFacet) facet.Set {
	out := make(facet.Set, 0, len(in))
	for _, f := range in {
		opts := make([]facet.Option, 0, len(f.Buckets))
		for _, b := range f.Buckets {
			opts = append(opts, facet.Option{ID: b.ID, Name: b.Title, Count: b.Count})
		}
		out = append(out, facet.Facet{Key: f.Attribute, Title: f.Title, Type: f.Type, Options: opts})
	}
	return out
}

func toNavigation(n wireNavigation) listing.Navigation {
	out := listing.Navigation{Category: toCategory(n.Category)}
	for _, c := range n.Children {
		out.Children = append(out.Children, toCategory(c))
	}
	return out
}

func toCategory(c wireCategory) listing.Category {
	return listing.Category{Key: c.Key, Name: c.Name, URLPath: c.URLPath}
}

func toBreadcrumbs(in []wireBreadcrumb) []listing.Breadcrumb {
	if len(in) == 0 {
		return nil
	}
	out := make([]listing.Breadcrumb, len(in))
	for i, b := range in {
		out[i] = listing.Breadcrumb{Name: b.Name, URLPath: b.URLPath}
	}
	return out
}
