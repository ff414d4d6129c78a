package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-eshop-orders/internal/inventory"
	"github.com/ariefcatur/go-eshop-orders/internal/paging"
)

type ProductLister interface {
	ListProducts(ctx context.Context, q inventory.ListQuery) (inventory.Page, error)
}

type ProductsHandler struct {
	Catalog ProductLister
	Log     log.FieldLogger
	Timeout time.Duration
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	p, err := paging.Parse(q)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	orderBy, err := inventory.ParseSortField(q.Get("order_by"))
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	order, err := inventory.ParseSortDirection(q.Get("order"))
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	page, err := h.Catalog.ListProducts(ctx, inventory.ListQuery{
		Paging:    p,
		NameQuery: strings.TrimSpace(q.Get("name_query")),
		OrderBy:   orderBy,
		Order:     order,
	})
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, dataBody{Data: toProductsPageResponse(page)})
}
