package httpx

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	kafkax "github.com/ariefcatur/go-eshop-orders/internal/kafka"
	"github.com/ariefcatur/go-eshop-orders/internal/orders"
	"github.com/ariefcatur/go-eshop-orders/internal/paging"
	"github.com/ariefcatur/go-eshop-orders/internal/redisx"
)

const (
	maxBodyBytes = 1 << 20

	headerIdempotencyKey    = "Idempotency-Key"
	headerIdempotencyReplay = "Idempotent-Replay"
)

type OrderStore interface {
	CreateOrderTx(ctx context.Context, in orders.CreateOrderInput) (orders.Order, error)
	CancelOrderTx(ctx context.Context, id uuid.UUID) (orders.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (orders.Order, error)
	ListOrders(ctx context.Context, q orders.ListQuery) (orders.Page, error)
}

type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type IdempotencyStore interface {
	Claim(ctx context.Context, key string) (bool, error)
	Lookup(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

// OrdersHandler serves /orders. Created, Cancelled and Idem are optional.
type OrdersHandler struct {
	Orders    OrderStore
	Created   EventPublisher
	Cancelled EventPublisher
	Idem      IdempotencyStore
	Service   string
	Log       log.FieldLogger
	Timeout   time.Duration
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Delete("/orders/{id}", h.cancelOrder)
}

func (h *OrdersHandler) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return 5 * time.Second
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeAppError(w, r, h.Log, orders.ErrInvalidBody)
		return
	}
	in, err := orders.ParseCreateOrderRequest(body)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	logger := h.Log.WithField("request_id", middleware.GetReqID(ctx))

	// Redis is a fast path only; when it misbehaves the order is still created
	idemKey := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	claimed := false
	if idemKey != "" && h.Idem != nil {
		ok, err := h.Idem.Claim(ctx, idemKey)
		switch {
		case err != nil:
			logger.WithError(err).Warn("idempotency claim failed, continuing without it")
		case !ok:
			h.replay(ctx, w, logger, idemKey)
			return
		default:
			claimed = true
		}
	}

	order, err := h.Orders.CreateOrderTx(ctx, in)
	if err != nil {
		if claimed {
			if err := h.Idem.Release(context.WithoutCancel(ctx), idemKey); err != nil {
				logger.WithError(err).Warn("idempotency release failed")
			}
		}
		writeAppError(w, r, h.Log, err)
		return
	}

	if claimed {
		if err := h.Idem.Complete(context.WithoutCancel(ctx), idemKey, order.ID.String()); err != nil {
			logger.WithError(err).Warn("idempotency complete failed")
		}
	}

	h.publishCreated(r, logger, order)

	logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"total_price": order.TotalPrice.String(),
		"items":       len(order.Items),
	}).Info("order created")
	w.WriteHeader(http.StatusCreated)
}

func (h *OrdersHandler) replay(ctx context.Context, w http.ResponseWriter, logger log.FieldLogger, key string) {
	v, err := h.Idem.Lookup(ctx, key)
	if err != nil {
		logger.WithError(err).Warn("idempotency lookup failed")
	}
	if err != nil || v == "" || v == redisx.PendingValue {
		writeError(w, http.StatusConflict, "Request with this Idempotency-Key is already being processed.")
		return
	}
	logger.WithField("order_id", v).Info("idempotent replay")
	w.Header().Set(headerIdempotencyReplay, "true")
	w.WriteHeader(http.StatusCreated)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	p, err := paging.Parse(q)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	status, err := orders.ParseStatusFilter(q.Get("filter_status"))
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	page, err := h.Orders.ListOrders(ctx, orders.ListQuery{
		Paging: p,
		Email:  strings.TrimSpace(q.Get("filter_email")),
		Status: status,
	})
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, dataBody{Data: toOrdersPageResponse(page)})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, h.Log, orders.ErrInvalidOrderID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	order, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, dataBody{Data: toOrderResponse(order)})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, h.Log, orders.ErrInvalidOrderID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	order, err := h.Orders.CancelOrderTx(ctx, id)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}

	logger := h.Log.WithField("request_id", middleware.GetReqID(ctx))
	h.publishCancelled(r, logger, order)
	logger.WithField("order_id", order.ID).Info("order cancelled")
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) publishCreated(r *http.Request, logger log.FieldLogger, o orders.Order) {
	if h.Created == nil {
		return
	}
	ev, err := orders.NewOrderCreatedEvent(o, h.Service, middleware.GetReqID(r.Context()))
	if err != nil {
		logger.WithError(err).Error("build OrderCreated event")
		return
	}
	publish(h.Created, o, ev)
}

func (h *OrdersHandler) publishCancelled(r *http.Request, logger log.FieldLogger, o orders.Order) {
	if h.Cancelled == nil {
		return
	}
	ev, err := orders.NewOrderCancelledEvent(o, h.Service, middleware.GetReqID(r.Context()))
	if err != nil {
		logger.WithError(err).Error("build OrderCancelled event")
		return
	}
	publish(h.Cancelled, o, ev)
}

func publish(p EventPublisher, o orders.Order, ev orders.Envelope) {
	p.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(ev.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(ev.EventVersion))},
	)
}
