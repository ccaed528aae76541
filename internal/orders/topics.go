package orders

import "strconv"

const (
	TopicOrderCreated     = "market.order.created"
	TopicOrderFulfillment = "market.order.fulfillment"
	TopicOrderCompleted   = "market.order.completed"
	TopicOrderCancelled   = "market.order.cancelled"
	TopicOrderDisputed    = "market.order.disputed"
	TopicEscrowSettled    = "market.escrow.settled"
)

// Partition key = order id, so all events of one order keep their order.
func PartitionKey(orderID int64) []byte {
	return []byte(strconv.FormatInt(orderID, 10))
}
