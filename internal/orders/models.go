package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-eshop-orders/internal/apperr"
	"github.com/ariefcatur/go-eshop-orders/internal/paging"
)

// LineItem is a snapshot of a product taken when the order was placed. The json tags are the
// shape of the embedded products document stored with the order.
type LineItem struct {
	ProductID uuid.UUID       `json:"_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type Order struct {
	ID         uuid.UUID
	Email      string
	Status     Status
	Items      []LineItem
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
}

func TotalPrice(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

var (
	ErrOrderNotFound    = apperr.NotFound("Order with given id not found")
	ErrAlreadyCancelled = apperr.StateConflict("Order is already cancelled.")
	ErrCannotCancel     = apperr.StateConflict("Can not cancel order in this state.")
	ErrInvalidOrderID   = apperr.InvalidInput("Invalid order ID")
)

type ListQuery struct {
	Paging paging.Params
	Email  string
	Status Status
}

type Page struct {
	Paging paging.Params
	Total  int
	Orders []Order
}

func (p Page) TotalPages() int { return p.Paging.TotalPages(p.Total) }
