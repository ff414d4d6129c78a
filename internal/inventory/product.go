package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-eshop-orders/internal/apperr"
)

type Product struct {
	ID        uuid.UUID
	Name      string
	Price     decimal.Decimal
	Stock     int
	UnitsSold int
}

var (
	ErrProductNotFound   = apperr.InvalidInput("product with given id does not exist")
	ErrInsufficientStock = apperr.InvalidInput("required number of products is currently not in stock")
	ErrInvalidQuantity   = apperr.InvalidInput("product's quantity must be positive number")
)

// DemoProducts is the catalog loaded by the seed command.
func DemoProducts() []Product {
	return []Product{
		{Name: "Nohavice", Price: decimal.RequireFromString("22.51"), Stock: 7, UnitsSold: 1},
		{Name: "Tričko", Price: decimal.RequireFromString("4.32"), Stock: 10, UnitsSold: 9},
		{Name: "Mikina", Price: decimal.RequireFromString("16.69"), Stock: 3, UnitsSold: 2},
		{Name: "Čiapka", Price: decimal.RequireFromString("5.02"), Stock: 5, UnitsSold: 1},
	}
}
