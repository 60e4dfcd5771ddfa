package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/trinislearning/hit339/internal/domain"
)

const productColumns = `id, name, category, price, stock, image_url, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var imageURL, description sql.NullString
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&p.Price,
		&p.Stock,
		&imageURL,
		&description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ImageURL = imageURL.String
	p.Description = description.String
	return p, nil
}

func queryProducts(ctx context.Context, q querier, query string, args ...any) ([]*domain.Product, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

// ListProducts filters by exact category and case-insensitive name substring, ordered
// by name ignoring case. SQLite's LOWER only folds ASCII, so on SQLite the name match
// and ordering happen in Go.
func (r *Repository) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	var (
		conds []string
		args  []any
	)
	if c := strings.TrimSpace(filter.Category); c != "" {
		args = append(args, c)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	q := strings.TrimSpace(filter.Query)
	if q != "" && r.driver == DriverPostgres {
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
		conds = append(conds, fmt.Sprintf(`LOWER(name) LIKE $%d ESCAPE '\'`, len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY LOWER(name), name, id`

	products, err := queryProducts(ctx, r.db, query, args...)
	if err != nil || r.driver == DriverPostgres {
		return products, err
	}
	return matchAndSortByName(products, q), nil
}

func matchAndSortByName(products []*domain.Product, query string) []*domain.Product {
	needle := strings.ToLower(query)
	matched := products[:0]
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			matched = append(matched, p)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := strings.ToLower(matched[i].Name), strings.ToLower(matched[j].Name)
		if a != b {
			return a < b
		}
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return p, nil
}

// GetProducts returns the products that exist among ids. Missing ids are skipped.
func (r *Repository) GetProducts(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + strings.Join(placeholders, ", ") + `) ORDER BY id`
	return queryProducts(ctx, r.db, query, args...)
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	query := `INSERT INTO products (name, category, price, stock, image_url, description, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		p.Name,
		p.Category,
		p.Price,
		p.Stock,
		nullString(p.ImageURL),
		nullString(p.Description),
		now,
		now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	query := `UPDATE products
	          SET name = $1, category = $2, price = $3, stock = $4, image_url = $5, description = $6, updated_at = $7
	          WHERE id = $8`

	res, err := r.db.ExecContext(ctx, query,
		p.Name,
		p.Category,
		p.Price,
		p.Stock,
		nullString(p.ImageURL),
		nullString(p.Description),
		now,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if err := expectAffected(res, ErrProductNotFound); err != nil {
		return err
	}

	p.UpdatedAt = now
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectAffected(res, ErrProductNotFound)
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
