package api

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-camino/internal/db"
)

// readOnlyPrefixes are the statements /api/v1/query accepts.
var readOnlyPrefixes = []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "SUMMARIZE", "EXPLAIN"}

// ReadOnly reports whether q is a single read-only statement. EXPLAIN
// ANALYZE executes its statement, so it is refused.
func ReadOnly(q string) bool {
	q = strings.TrimSpace(q)
	q = strings.TrimRight(q, "; \t\n")
	if q == "" || strings.Contains(q, ";") {
		return false
	}
	upper := strings.ToUpper(q)
	head := strings.Fields(upper)[0]
	if head == "EXPLAIN" && strings.Contains(upper, "ANALYZE") {
		return false
	}
	for _, p := range readOnlyPrefixes {
		if head == p {
			return true
		}
	}
	return false
}

// RegisterDB registers the DuckDB inspection routes.
func (h *APIHandler) RegisterDB(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("db"))
}

type TablesBody struct {
	Tables []string `json:"tables" doc:"List of table names"`
}

func (h *APIHandler) ListTables(ctx context.Context, input *struct{}) (*struct{ Body TablesBody }, error) {
	if h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	tables, err := db.Tables(ctx, h.svc.DB)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	if tables == nil {
		tables = []string{}
	}
	return &struct{ Body TablesBody }{Body: TablesBody{Tables: tables}}, nil
}

type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" doc:"Read-only SQL statement" example:"SELECT grp, sum(length_km) FROM routes GROUP BY grp"`
	}
}

type QueryBody struct {
	Columns []string         `json:"columns" doc:"Column names"`
	Rows    []map[string]any `json:"rows" doc:"Query results"`
	Count   int              `json:"count" doc:"Number of rows returned"`
}

// Query runs one read-only statement against the route table. Anything it
// writes is rolled back.
func (h *APIHandler) Query(ctx context.Context, input *QueryInput) (*struct{ Body QueryBody }, error) {
	if h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if !ReadOnly(input.Body.Query) {
		return nil, huma.Error400BadRequest("Only single read-only statements are allowed")
	}

	res, err := db.Query(ctx, h.svc.DB, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	return &struct{ Body QueryBody }{Body: QueryBody{Columns: res.Columns, Rows: res.Rows, Count: len(res.Rows)}}, nil
}
