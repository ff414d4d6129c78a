package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Reserve locks the product row, verifies stock and moves qty units from stock to units_sold.
// It must run inside the caller's transaction; a failed check leaves the row untouched.
func Reserve(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int) (Product, error) {
	if qty <= 0 {
		return Product{}, ErrInvalidQuantity
	}

	var p Product
	err := tx.QueryRow(ctx, `
		SELECT id, name, price, stock, units_sold
		FROM products WHERE id = $1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.UnitsSold)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
	}
	if err != nil {
		return Product{}, fmt.Errorf("select product: %w", err)
	}

	if p.Stock < qty {
		return Product{}, fmt.Errorf("product %s has %d, need %d: %w", productID, p.Stock, qty, ErrInsufficientStock)
	}

	ct, err := tx.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2, units_sold = units_sold + $2
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return Product{}, fmt.Errorf("product %s: %w", productID, ErrInsufficientStock)
	}

	p.Stock -= qty
	p.UnitsSold += qty
	return p, nil
}

// Release is the inverse of Reserve, used when an order is cancelled.
func Release(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	ct, err := tx.Exec(ctx, `
		UPDATE products
		SET stock = stock + $2, units_sold = units_sold - $2
		WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() != 1 {
		// products are never deleted, so this means the catalog and the order disagree
		return fmt.Errorf("release product %s: no such row", productID)
	}
	return nil
}
