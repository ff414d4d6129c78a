package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-eshop-orders/internal/postgres"
)

type Catalog struct{ DB *pgxpool.Pool }

func (c *Catalog) ListProducts(ctx context.Context, q ListQuery) (Page, error) {
	if err := q.Paging.Validate(); err != nil {
		return Page{}, err
	}
	if _, ok := sortColumns[q.OrderBy]; q.OrderBy != "" && !ok {
		return Page{}, ErrUnknownOrderBy
	}

	pattern := ""
	if q.NameQuery != "" {
		pattern = "%" + escapeLike(q.NameQuery) + "%"
	}

	page := Page{Paging: q.Paging, Products: []Product{}}
	if err := c.DB.QueryRow(ctx, `
		SELECT count(*) FROM products
		WHERE ($1::text = '' OR name ILIKE $1::text)`, pattern).Scan(&page.Total); err != nil {
		return Page{}, fmt.Errorf("count products: %w", err)
	}

	rows, err := c.DB.Query(ctx, `
		SELECT id, name, price, stock, units_sold
		FROM products
		WHERE ($1::text = '' OR name ILIKE $1::text)
		ORDER BY `+q.orderClause()+`
		LIMIT $2 OFFSET $3`, pattern, q.Paging.Limit, q.Paging.Offset())
	if err != nil {
		return Page{}, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.UnitsSold); err != nil {
			return Page{}, fmt.Errorf("rows.Scan: %w", err)
		}
		page.Products = append(page.Products, p)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("rows.Err: %w", err)
	}

	return page, nil
}

func (c *Catalog) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	err := c.DB.QueryRow(ctx, `
		SELECT id, name, price, stock, units_sold
		FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.UnitsSold)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrProductNotFound)
	}
	if err != nil {
		return Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

// Seed inserts products in one transaction and returns them with their assigned ids.
// A zero ID is replaced with a fresh one.
func (c *Catalog) Seed(ctx context.Context, products []Product) ([]Product, error) {
	return postgres.WithTx(ctx, c.DB, func(tx pgx.Tx) ([]Product, error) {
		out := make([]Product, 0, len(products))
		for _, p := range products {
			if p.ID == uuid.Nil {
				p.ID = uuid.New()
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO products (id, name, price, stock, units_sold)
				VALUES ($1, $2, $3, $4, $5)`,
				p.ID, p.Name, p.Price.String(), p.Stock, p.UnitsSold); err != nil {
				return nil, fmt.Errorf("insert product %q: %w", p.Name, err)
			}
			out = append(out, p)
		}
		return out, nil
	})
}
