package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/repository"
	"product-content-ai/internal/infra/source"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
    slug              TEXT PRIMARY KEY,
    model_name        TEXT    NOT NULL,
    brand             TEXT    NOT NULL DEFAULT '',
    season            TEXT    NOT NULL,
    vehicle_types     TEXT    NOT NULL DEFAULT '[]',
    label_ratings     TEXT    NOT NULL DEFAULT '{}',
    notes             TEXT    NOT NULL DEFAULT '',
    description_html  TEXT    NOT NULL DEFAULT '',
    generate_faq      INTEGER NOT NULL DEFAULT 0,
    active            INTEGER NOT NULL DEFAULT 1
);`

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open opens the database file and makes sure the products table exists.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

var _ repository.ItemSource = (*ProductSource)(nil)

// ProductSource reads active rows; list columns are stored as JSON text.
type ProductSource struct {
	db    *sql.DB
	table string
}

func NewProductSource(db *sql.DB, table string) (*ProductSource, error) {
	if table == "" {
		table = "products"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("sqlite table %q: %w", table, domain.ErrConfig)
	}
	return &ProductSource{db: db, table: `"` + table + `"`}, nil
}

func (s *ProductSource) Get(ctx context.Context, slug string) (*model.Product, error) {
	q := fmt.Sprintf(`SELECT slug, model_name, brand, season, vehicle_types, label_ratings, notes, description_html, generate_faq
FROM %s WHERE slug = ? AND active = 1`, s.table)
	var (
		p               model.Product
		types, ratings string
	)
	err := s.db.QueryRowContext(ctx, q, slug).Scan(
		&p.Slug, &p.ModelName, &p.Brand, &p.Season, &types, &ratings, &p.Notes, &p.DescriptionHTML, &p.GenerateFAQ,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %q: %w", slug, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %q: %v: %w", slug, err, domain.ErrSource)
	}
	if err := json.Unmarshal([]byte(types), &p.VehicleTypes); err != nil {
		return nil, fmt.Errorf("product %q vehicle_types: %v: %w", slug, err, domain.ErrSource)
	}
	if err := json.Unmarshal([]byte(ratings), &p.LabelRatings); err != nil {
		return nil, fmt.Errorf("product %q label_ratings: %v: %w", slug, err, domain.ErrSource)
	}
	if err := source.Normalize(&p); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrSource)
	}
	return &p, nil
}

func (s *ProductSource) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT slug FROM %s WHERE active = 1 ORDER BY slug`, s.table))
	if err != nil {
		return nil, fmt.Errorf("list products: %v: %w", err, domain.ErrSource)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("list products: %v: %w", err, domain.ErrSource)
		}
		out = append(out, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %v: %w", err, domain.ErrSource)
	}
	return out, nil
}
