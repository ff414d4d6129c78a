package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCancelled = "OrderCancelled"

	EventVersion = 1
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID    string        `json:"order_id"`
	Email      string        `json:"email"`
	Items      []ItemPayload `json:"items"`
	TotalPrice string        `json:"total_price"`
	CreatedAt  time.Time     `json:"created_at"`
}

type OrderCancelledPayload struct {
	OrderID string        `json:"order_id"`
	Items   []ItemPayload `json:"items"` // units returned to stock
}

func itemPayloads(items []LineItem) []ItemPayload {
	return lo.Map(items, func(it LineItem, _ int) ItemPayload {
		return ItemPayload{
			ProductID: it.ProductID.String(),
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price.String(),
		}
	})
}

func NewOrderCreatedEvent(o Order, producer, traceID string) (Envelope, error) {
	return newEnvelope(EventOrderCreated, o.ID, producer, traceID, OrderCreatedPayload{
		OrderID:    o.ID.String(),
		Email:      o.Email,
		Items:      itemPayloads(o.Items),
		TotalPrice: o.TotalPrice.String(),
		CreatedAt:  o.CreatedAt,
	})
}

func NewOrderCancelledEvent(o Order, producer, traceID string) (Envelope, error) {
	return newEnvelope(EventOrderCancelled, o.ID, producer, traceID, OrderCancelledPayload{
		OrderID: o.ID.String(),
		Items:   itemPayloads(o.Items),
	})
}

func newEnvelope(eventType string, orderID uuid.UUID, producer, traceID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID.String(),
		Payload:       b,
	}, nil
}
