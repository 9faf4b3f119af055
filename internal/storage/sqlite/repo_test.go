package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"countryetl/internal/schema"
	"countryetl/internal/storage"
)

func openTestRepo(t *testing.T) (storage.Repository, string) {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "countries.db")
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo, dsn
}

func TestRepo_RoundTrip(t *testing.T) {
	repo, dsn := openTestRepo(t)
	ctx := context.Background()

	spec := storage.SpecFor("countries",
		[]string{"country_name", "population", "area"},
		map[string]string{
			"country_name": schema.TypeText,
			"population":   schema.TypeInteger,
			"area":         schema.TypeReal,
		})

	if err := repo.EnsureTable(ctx, spec); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// Idempotent: creating again must not error.
	if err := repo.EnsureTable(ctx, spec); err != nil {
		t.Fatalf("EnsureTable (second): %v", err)
	}

	rows := [][]any{
		{"Testland", int64(1000), 12.5},
		{"Otherland", int64(42), 7.0},
	}
	n, err := repo.InsertRows(ctx, "countries", []string{"country_name", "population", "area"}, rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows written, got %d", n)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open for verify: %v", err)
	}
	defer db.Close()

	var name string
	var pop int64
	var area float64
	err = db.QueryRowContext(ctx,
		`SELECT country_name, population, area FROM countries WHERE country_name = ?`,
		"Testland").Scan(&name, &pop, &area)
	if err != nil {
		t.Fatalf("query back: %v", err)
	}
	if name != "Testland" || pop != 1000 || area != 12.5 {
		t.Fatalf("round-trip mismatch: %s %d %f", name, pop, area)
	}
}

func TestRepo_InsertBatchesPastBindParamLimit(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	columns := []string{"country_name", "population", "area"}
	spec := storage.SpecFor("countries", columns, map[string]string{
		"country_name": schema.TypeText,
		"population":   schema.TypeInteger,
		"area":         schema.TypeReal,
	})
	if err := repo.EnsureTable(ctx, spec); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	// 400 rows x 3 columns = 1200 bind params, past the 999 ceiling.
	rows := make([][]any, 400)
	for i := range rows {
		rows[i] = []any{"Bulkland", int64(i), float64(i)}
	}
	n, err := repo.InsertRows(ctx, "countries", columns, rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 400 {
		t.Fatalf("expected 400 rows written, got %d", n)
	}
}

func TestRepo_EmptyInsertIsNoop(t *testing.T) {
	repo, _ := openTestRepo(t)

	n, err := repo.InsertRows(context.Background(), "countries", []string{"country_name"}, nil)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 rows, got %d", n)
	}
}
