package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/repository"
	"product-content-ai/internal/infra/source"
)

var _ repository.ItemSource = (*PostgresProductSource)(nil)

// PostgresProductSource reads active rows of the products table.
type PostgresProductSource struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresProductSource(pool *pgxpool.Pool, table string) *PostgresProductSource {
	if table == "" {
		table = "products"
	}
	return &PostgresProductSource{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

func (r *PostgresProductSource) Get(ctx context.Context, slug string) (*model.Product, error) {
	sql := fmt.Sprintf(`
SELECT slug, model_name, brand, season, vehicle_types, label_ratings, notes, description_html, generate_faq
  FROM %s
 WHERE slug = $1 AND active;
`, r.table)
	var (
		p       model.Product
		ratings []byte
	)
	err := r.pool.QueryRow(ctx, sql, slug).Scan(
		&p.Slug, &p.ModelName, &p.Brand, &p.Season, &p.VehicleTypes, &ratings, &p.Notes, &p.DescriptionHTML, &p.GenerateFAQ,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %q: %w", slug, domain.ErrNotFound)
		}
		return nil, classify("Get product", err)
	}
	if len(ratings) > 0 {
		if err := json.Unmarshal(ratings, &p.LabelRatings); err != nil {
			return nil, fmt.Errorf("product %q label_ratings: %v: %w", slug, err, domain.ErrSource)
		}
	}
	if err := source.Normalize(&p); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrSource)
	}
	return &p, nil
}

func (r *PostgresProductSource) List(ctx context.Context) ([]string, error) {
	sql := fmt.Sprintf(`SELECT slug FROM %s WHERE active ORDER BY slug;`, r.table)
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, classify("List products", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, classify("List products scan", err)
		}
		out = append(out, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("List products rows", err)
	}
	return out, nil
}

// classify maps schema problems to a config error; everything else is a source failure.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01", "42703": // undefined_table, undefined_column
			return fmt.Errorf("%s: %s: %w", op, pgErr.Message, domain.ErrConfig)
		}
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrSource)
}
