package httpx

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-eshop-orders/internal/inventory"
	"github.com/ariefcatur/go-eshop-orders/internal/orders"
)

type lineItemResponse struct {
	ID       string      `json:"_id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
}

type orderResponse struct {
	ID         string             `json:"_id"`
	Email      string             `json:"email"`
	Status     orders.Status      `json:"status"`
	Products   []lineItemResponse `json:"products"`
	TotalPrice json.Number        `json:"total_price"`
	CreatedAt  string             `json:"created_at"`
}

type ordersPageResponse struct {
	Page        int             `json:"page"`
	Limit       int             `json:"limit"`
	TotalOrders int             `json:"total_orders"`
	TotalPages  int             `json:"total_pages"`
	Orders      []orderResponse `json:"orders"`
}

type productResponse struct {
	ID    string      `json:"_id"`
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
	Stock int         `json:"stock"`
}

type productsPageResponse struct {
	Page          int               `json:"page"`
	Limit         int               `json:"limit"`
	TotalProducts int               `json:"total_products"`
	TotalPages    int               `json:"total_pages"`
	Products      []productResponse `json:"products"`
}

// money renders a decimal as a JSON number without going through float64.
func money(d decimal.Decimal) json.Number { return json.Number(d.String()) }

func toOrderResponse(o orders.Order) orderResponse {
	return orderResponse{
		ID:     o.ID.String(),
		Email:  o.Email,
		Status: o.Status,
		Products: lo.Map(o.Items, func(it orders.LineItem, _ int) lineItemResponse {
			return lineItemResponse{
				ID:       it.ProductID.String(),
				Name:     it.Name,
				Price:    money(it.Price),
				Quantity: it.Quantity,
			}
		}),
		TotalPrice: money(o.TotalPrice),
		CreatedAt:  o.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toOrdersPageResponse(p orders.Page) ordersPageResponse {
	return ordersPageResponse{
		Page:        p.Paging.Page,
		Limit:       p.Paging.Limit,
		TotalOrders: p.Total,
		TotalPages:  p.TotalPages(),
		Orders:      lo.Map(p.Orders, func(o orders.Order, _ int) orderResponse { return toOrderResponse(o) }),
	}
}

func toProductsPageResponse(p inventory.Page) productsPageResponse {
	return productsPageResponse{
		Page:          p.Paging.Page,
		Limit:         p.Paging.Limit,
		TotalProducts: p.Total,
		TotalPages:    p.TotalPages(),
		Products: lo.Map(p.Products, func(pr inventory.Product, _ int) productResponse {
			return productResponse{
				ID:    pr.ID.String(),
				Name:  pr.Name,
				Price: money(pr.Price),
				Stock: pr.Stock,
			}
		}),
	}
}
