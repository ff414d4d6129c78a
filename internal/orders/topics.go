package orders

import "github.com/google/uuid"

const (
	TopicOrderCreated   = "eshop.order.created"
	TopicOrderCancelled = "eshop.order.cancelled"
)

// Partition key = order id, so all events of one order keep their order.
func PartitionKey(orderID uuid.UUID) []byte { return []byte(orderID.String()) }
