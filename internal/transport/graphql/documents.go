package graphql

import "github.com/kailas-cloud/listingpage/internal/domain/query"

const productFields = `
fragment ProductsBlock on Products {
  items {
    uid
    sku
    name
    url_key
    image_url
    price { value currency }
  }
  total_count
  page_info { current_page total_pages }
}
`

const facetFields = `
fragment FacetFields on Facet {
  attribute
  title
  type
  buckets { id title count }
}
`

const navigationFields = `
fragment NavigationFields on CategoryNavigation {
  category { key name url_path }
  children { key name url_path }
}
`

// Documents are the built-in query documents, one named operation each.
var Documents = map[query.ID]string{
	query.CategoryPage: `
query CategoryPage(
  $category: String!
  $phrase: String
  $filter: ProductFilterInput!
  $sort: ProductSortInput
  $pageSize: Int!
  $page: Int!
) {
  products(category: $category, search: $phrase, filter: $filter, sort: $sort, pageSize: $pageSize, currentPage: $page) {
    ...ProductsBlock
  }
  facets(category: $category, search: $phrase, filter: $filter) { ...FacetFields }
  navigation(category: $category) { ...NavigationFields }
  breadcrumbs(category: $category) { name url_path }
}
` + productFields + facetFields + navigationFields,

	query.ProductSearch: `
query ProductSearch(
  $phrase: String
  $filter: ProductFilterInput!
  $sort: ProductSortInput
  $limit: Int!
) {
  products(search: $phrase, filter: $filter, sort: $sort, pageSize: $limit, currentPage: 1) {
    ...ProductsBlock
  }
  facets(search: $phrase, filter: $filter) { ...FacetFields }
}
` + productFields + facetFields,

	query.ProductListing: `
query ProductListing(
  $phrase: String
  $filter: ProductFilterInput!
  $sort: ProductSortInput
  $pageSize: Int!
  $page: Int!
  $includeFacets: Boolean!
) {
  products(search: $phrase, filter: $filter, sort: $sort, pageSize: $pageSize, currentPage: $page) {
    ...ProductsBlock
  }
  facets(search: $phrase, filter: $filter) @include(if: $includeFacets) { ...FacetFields }
}
` + productFields + facetFields,

	query.ProductFacets: `
query ProductFacets($category: String!, $phrase: String) {
  facets(category: $category, search: $phrase) { ...FacetFields }
}
` + facetFields,

	query.CategoryNavigation: `
query CategoryNavigation($category: String!) {
  navigation(category: $category) { ...NavigationFields }
  breadcrumbs(category: $category) { name url_path }
}
` + navigationFields,
}
