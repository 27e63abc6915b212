package fetchtest

import (
	"encoding/json"
	"fmt"
)

// Products renders a products block of n items named prefix-1..n.
func Products(prefix string, n, page, totalPages int) map[string]any {
	items := make([]map[string]any, n)
	for i := range n {
		uid := fmt.Sprintf("%s-%d", prefix, (page-1)*n+i+1)
		items[i] = map[string]any{
			"uid":       uid,
			"sku":       "SKU-" + uid,
			"name":      uid,
			"url_key":   uid,
			"image_url": "https://img.example/" + uid + ".jpg",
			"price":     map[string]any{"value": 9.99, "currency": "EUR"},
		}
	}
	return map[string]any{
		"items":       items,
		"total_count": n * totalPages,
		"page_info":   map[string]any{"current_page": page, "total_pages": totalPages},
	}
}

// Facets renders a facet list with one bucket per key.
func Facets(keys ...string) []map[string]any {
	out := make([]map[string]any, len(keys))
	for i, k := range keys {
		out[i] = map[string]any{
			"attribute": k,
			"title":     k,
			"type":      "select",
			"buckets":   []map[string]any{{"id": k + "-1", "title": k + " 1", "count": 3}},
		}
	}
	return out
}

// Navigation renders a navigation block with breadcrumbs.
func Navigation(category string) map[string]any {
	return map[string]any{
		"navigation": map[string]any{
			"category": map[string]any{"key": category, "name": category, "url_path": "/" + category},
			"children": []map[string]any{{"key": category + "-sub", "name": "Sub", "url_path": "/" + category + "/sub"}},
		},
		"breadcrumbs": []map[string]any{{"name": "Home", "url_path": "/"}, {"name": category, "url_path": "/" + category}},
	}
}

// JSON marshals a data document, merging the given members.
func JSON(members ...map[string]any) string {
	doc := map[string]any{}
	for _, m := range members {
		for k, v := range m {
			doc[k] = v
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(data)
}
