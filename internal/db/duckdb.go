// Package db keeps the loaded routes in DuckDB for ad-hoc analytics.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-camino/internal/route"
	"github.com/joeblew999/plat-camino/internal/style"
)

// RoutesTable is the table the geometry source is loaded into.
const RoutesTable = "routes"

// Config holds database configuration. An empty DataDir keeps the database
// in memory.
type Config struct {
	DataDir string
	DBName  string
}

// Open opens a new DuckDB connection.
func Open(cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		dsn = filepath.Join(duckdbDir, cfg.DBName+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	// The spatial extension may be unavailable offline; WKT columns still
	// work without it.
	if _, err := conn.Exec("INSTALL spatial; LOAD spatial;"); err != nil {
		log.Debug().Err(err).Msg("DuckDB spatial extension not loaded")
	}
	return conn, nil
}

// LoadRoutes replaces the routes table with the given collection.
func LoadRoutes(ctx context.Context, conn *sql.DB, routes *route.Collection, resolver *style.Resolver) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("loading routes: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		"DROP TABLE IF EXISTS " + RoutesTable,
		`CREATE TABLE ` + RoutesTable + ` (
			id        VARCHAR PRIMARY KEY,
			name      VARCHAR,
			grp       VARCHAR,
			length_km DOUBLE,
			country   VARCHAR,
			info_url  VARCHAR,
			color     VARCHAR,
			wkt       VARCHAR
		)`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("creating routes table: %w", err)
		}
	}

	insert, err := tx.PrepareContext(ctx,
		"INSERT INTO "+RoutesTable+" VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("loading routes: %w", err)
	}
	defer insert.Close()

	for _, f := range routes.Features {
		var geom string
		if f.Geometry != nil {
			geom = wkt.MarshalString(f.Geometry)
		}
		color := resolver.ResolveFeature(f).Stroke.Color
		if _, err := insert.ExecContext(ctx, f.ID, f.Name, f.Group, f.LengthKm, f.Country, f.InfoURL, color, geom); err != nil {
			return fmt.Errorf("inserting route %q: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("loading routes: %w", err)
	}
	log.Debug().Int("routes", routes.Len()).Msg("Routes loaded into DuckDB")
	return nil
}

// Lock turns off access to files and the network outside the database and
// freezes the configuration, so ad-hoc queries cannot read server files or
// re-enable access. Call it once the routes are loaded.
func Lock(ctx context.Context, conn *sql.DB) error {
	for _, q := range []string{
		"SET enable_external_access = false",
		"SET lock_configuration = true",
	} {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("locking duckdb: %w", err)
		}
	}
	return nil
}

// Result is the outcome of an ad-hoc query.
type Result struct {
	Columns []string
	Rows    []map[string]any
}

// Query runs q inside a transaction that is always rolled back, so a
// statement that writes leaves the database unchanged.
func Query(ctx context.Context, conn *sql.DB, q string) (Result, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("starting query: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	res := Result{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}

// GroupTotal is one row of the per-group summary.
type GroupTotal struct {
	Group   string
	Color   string
	Routes  int
	TotalKm float64
}

// GroupTotals summarises routes per group, ordered by group name.
func GroupTotals(ctx context.Context, conn *sql.DB) ([]GroupTotal, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT grp, any_value(color), count(*), coalesce(sum(length_km), 0)
		FROM `+RoutesTable+`
		GROUP BY grp
		ORDER BY grp`)
	if err != nil {
		return nil, fmt.Errorf("querying group totals: %w", err)
	}
	defer rows.Close()

	var out []GroupTotal
	for rows.Next() {
		var g GroupTotal
		if err := rows.Scan(&g.Group, &g.Color, &g.Routes, &g.TotalKm); err != nil {
			return nil, fmt.Errorf("scanning group totals: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Tables lists the tables in the database.
func Tables(ctx context.Context, conn *sql.DB) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}
	return tables, rows.Err()
}
