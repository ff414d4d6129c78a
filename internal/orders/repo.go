package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-eshop-orders/internal/apperr"
	"github.com/ariefcatur/go-eshop-orders/internal/inventory"
	"github.com/ariefcatur/go-eshop-orders/internal/postgres"
)

type Repo struct {
	DB  *pgxpool.Pool
	Now func() time.Time
}

func (r *Repo) now() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	// postgres keeps microseconds
	return now().UTC().Truncate(time.Microsecond)
}

// CreateOrderTx reserves stock for every item in submitted order and stores the order,
// all in one transaction. Nothing is written when any item fails.
func (r *Repo) CreateOrderTx(ctx context.Context, in CreateOrderInput) (Order, error) {
	if err := in.Validate(); err != nil {
		return Order{}, err
	}

	order, err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) (Order, error) {
		items := make([]LineItem, 0, len(in.Items))
		for _, it := range in.Items {
			p, err := inventory.Reserve(ctx, tx, it.ProductID, it.Quantity)
			if err != nil {
				return Order{}, fmt.Errorf("inventory.Reserve: %w", err)
			}
			items = append(items, LineItem{
				ProductID: p.ID,
				Name:      p.Name,
				Price:     p.Price,
				Quantity:  it.Quantity,
			})
		}

		o := Order{
			ID:         uuid.New(),
			Email:      in.Email,
			Status:     StatusUnpaid,
			Items:      items,
			TotalPrice: TotalPrice(items),
			CreatedAt:  r.now(),
		}
		if err := insertOrder(ctx, tx, o); err != nil {
			return Order{}, err
		}
		return o, nil
	})
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o Order) error {
	doc, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("json.Marshal items: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, email, status, products, total_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.Email, string(o.Status), doc, o.TotalPrice.String(), o.CreatedAt)
	if constraint, ok := postgres.ConstraintViolation(err); ok {
		if constraint == "orders_email_check" {
			return apperr.ConstraintViolation(ErrWrongEmail.Message, err)
		}
		return apperr.ConstraintViolation("Order data rejected by the store.", err)
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// CancelOrderTx returns every reserved unit to stock and marks the order cancelled.
// The order row stays locked until commit so concurrent cancels restock only once.
func (r *Repo) CancelOrderTx(ctx context.Context, id uuid.UUID) (Order, error) {
	order, err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) (Order, error) {
		o, err := scanOrder(tx.QueryRow(ctx, selectOrder+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return Order{}, err
		}

		if !CanTransition(o.Status, StatusCancelled) {
			return Order{}, cancelError(o.Status)
		}

		for _, it := range o.Items {
			if err := inventory.Release(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return Order{}, fmt.Errorf("inventory.Release: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(StatusCancelled)); err != nil {
			return Order{}, fmt.Errorf("update order: %w", err)
		}

		o.Status = StatusCancelled
		return o, nil
	})
	if err != nil {
		return Order{}, fmt.Errorf("cancel order %s: %w", id, err)
	}

	return order, nil
}

func (r *Repo) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, selectOrder+` WHERE id = $1`, id))
	if err != nil {
		return Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// ListOrders returns orders newest first. The email filter compares under the Slovak
// primary-strength collation, so case and diacritics are ignored.
func (r *Repo) ListOrders(ctx context.Context, q ListQuery) (Page, error) {
	if err := q.Paging.Validate(); err != nil {
		return Page{}, err
	}
	if q.Status != "" {
		if _, err := ParseStatus(string(q.Status)); err != nil {
			return Page{}, ErrUnknownStatusFilter
		}
	}

	const where = `
		WHERE ($1::text = '' OR email = $1::text COLLATE ` + postgres.SortCollation + `)
		AND ($2::text = '' OR status = $2::text)`

	page := Page{Paging: q.Paging, Orders: []Order{}}
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM orders`+where, q.Email, string(q.Status)).
		Scan(&page.Total); err != nil {
		return Page{}, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.DB.Query(ctx, selectOrder+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`, q.Email, string(q.Status), q.Paging.Limit, q.Paging.Offset())
	if err != nil {
		return Page{}, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return Page{}, err
		}
		page.Orders = append(page.Orders, o)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("rows.Err: %w", err)
	}

	return page, nil
}

const selectOrder = `
	SELECT id, email, status, products, total_price, created_at
	FROM orders`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
		doc    []byte
	)
	err := row.Scan(&o.ID, &o.Email, &status, &doc, &o.TotalPrice, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("scan order: %w", err)
	}

	if o.Status, err = ParseStatus(status); err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(doc, &o.Items); err != nil {
		return Order{}, fmt.Errorf("decode order %s items: %w", o.ID, err)
	}
	o.CreatedAt = o.CreatedAt.UTC()

	return o, nil
}
