package humastar

import (
	"fmt"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// EntryPoint is the path every collection links up to.
const EntryPoint = "/health"

// LinkSet holds the RFC 8288 Link headers derived from an API's OpenAPI
// document, keyed by operation path.
type LinkSet struct {
	links map[string][]string
}

// NewLinkSet returns an empty link set. Its Transformer can be installed in
// the Huma config before the routes exist; Build fills it in afterwards.
func NewLinkSet() *LinkSet {
	return &LinkSet{links: map[string][]string{}}
}

// AutoLinks builds a link set for an API whose routes are registered.
func AutoLinks(api huma.API, skipTags ...string) *LinkSet {
	ls := NewLinkSet()
	ls.Build(api, skipTags...)
	return ls
}

// Build walks the OpenAPI document and derives hypermedia links between
// collections, items and the entry point. Operations tagged with one of
// skipTags (SSE endpoints, pages) are left out. Call after every route is
// registered and before serving.
func (ls *LinkSet) Build(api huma.API, skipTags ...string) {
	oapi := api.OpenAPI()
	ls.links = map[string][]string{}

	var collections, items []string
	tags := map[string][]string{}
	for p, pi := range oapi.Paths {
		t := primaryTags(pi)
		if anyTag(t, skipTags) {
			continue
		}
		tags[p] = t
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	_, hasQuery := oapi.Paths["/api/v1/query"]

	for _, item := range items {
		// Nested items such as /layers/{id}/visibility point at their item.
		parent := path.Dir(item)
		if _, ok := tags[parent]; ok {
			rel := "collection"
			if strings.Contains(parent, "{") {
				rel = "item"
			}
			ls.add(item, parent, rel)
			ls.add(item, parent, "up")
		}
		if pi := oapi.Paths[item]; pi.Put != nil || pi.Patch != nil {
			ls.add(item, item, "edit")
		}
	}

	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item) == coll {
				ls.add(coll, item, "item")
			}
		}
		if coll != EntryPoint {
			ls.add(coll, EntryPoint, "up")
			ls.add(EntryPoint, coll, lastSegment(coll))
		}
		if hasQuery && coll != "/api/v1/query" {
			ls.add(coll, "/api/v1/query", "search")
		}
		for _, other := range collections {
			if other != coll && sharedTag(tags[coll], tags[other]) != "" {
				ls.add(coll, other, lastSegment(other))
			}
		}
	}

	ls.add(EntryPoint, "/openapi.json", "service-desc")
	ls.add(EntryPoint, "/docs", "service-doc")

	for p := range tags {
		if ref := responseSchemaRef(oapi.Paths[p]); ref != "" {
			ls.add(p, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}

	for p, headers := range ls.links {
		pi, ok := oapi.Paths[p]
		if !ok {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}
}

// For returns the Link headers of an operation path.
func (ls *LinkSet) For(opPath string) []string {
	if ls == nil {
		return nil
	}
	return ls.links[opPath]
}

// Transformer returns a Huma transformer that writes the derived links,
// a self link for item paths, pagination links from a [Pager] body and
// action links from an [Actor] body.
func (ls *LinkSet) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range ls.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func (ls *LinkSet) add(from, to, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	for _, existing := range ls.links[from] {
		if existing == val {
			return
		}
	}
	ls.links[from] = append(ls.links[from], val)
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func anyTag(tags, wanted []string) bool {
	for _, w := range wanted {
		if hasTag(tags, w) {
			return true
		}
	}
	return false
}

func sharedTag(a, b []string) string {
	for _, at := range a {
		if hasTag(b, at) {
			return at
		}
	}
	return ""
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks documents the links as OpenAPI Link objects on the
// operation's success response.
func injectResponseLinks(op *huma.Operation, headers []string) {
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func responseSchemaRef(pi *huma.PathItem) string {
	if pi == nil || pi.Get == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				return mt.Schema.Ref[strings.LastIndex(mt.Schema.Ref, "/")+1:]
			}
		}
	}
	return ""
}

func parseLinkHeader(h string) (rel, href string) {
	parts := strings.SplitN(h, ";", 2)
	if len(parts) < 2 {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(parts[0]), "<>")
	relPart := strings.TrimSpace(parts[1])
	if strings.HasPrefix(relPart, `rel="`) {
		rel = strings.Trim(relPart[4:], `"`)
	}
	return rel, href
}
