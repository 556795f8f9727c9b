// pagination.go: RFC 8288 pagination links.
//
// Response bodies implementing Pager get first/prev/next/last Link headers
// from the transformer in links.go.
package humastar

import "fmt"

// DefaultPageLimit is used when a request asks for no limit.
const DefaultPageLimit = 20

// Pager is implemented by response bodies that carry pagination metadata.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageBody is a generic paginated response envelope.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// NewPage builds a page envelope, never with a nil data slice.
func NewPage[T any](data []T, total, offset, limit int) PageBody[T] {
	if data == nil {
		data = []T{}
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return PageBody[T]{Total: total, Offset: offset, Limit: limit, Data: data}
}

// PaginationLinks returns Link header values for the first, prev, next and
// last pages.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="%s"`, basePath, offset, limit, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-limit, 0), "prev"))
	}
	if p.Offset+limit < p.Total {
		links = append(links, link(p.Offset+limit, "next"))
	}
	last := 0
	if p.Total > 0 {
		last = ((p.Total - 1) / limit) * limit
	}
	return append(links, link(last, "last"))
}
