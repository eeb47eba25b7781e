package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order event types written to the outbox.
const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
	EventOrderCanceled  = "order.canceled"
)

// OrderEventsTopic is the topic every order event is published to.
const OrderEventsTopic = "shop.orders"

// OrderEvent is the payload of an order lifecycle event.
type OrderEvent struct {
	EventID    uuid.UUID       `json:"eventId"`
	Type       string          `json:"type"`
	OrderID    int64           `json:"orderId"`
	UserID     int64           `json:"userId"`
	Status     OrderStatus     `json:"status"`
	TotalCost  decimal.Decimal `json:"totalCost"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// NewOrderEvent builds an event describing the order's current state.
func NewOrderEvent(eventType string, order *Order, reason string) OrderEvent {
	return OrderEvent{
		EventID:    uuid.New(),
		Type:       eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		TotalCost:  order.TotalCost,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// OutboxRecord is a stored event awaiting publication.
type OutboxRecord struct {
	ID        int64           `db:"id"`
	EventID   uuid.UUID       `db:"event_id"`
	Topic     string          `db:"topic"`
	Key       string          `db:"key"`
	Payload   json.RawMessage `db:"payload"`
	CreatedAt time.Time       `db:"created_at"`
	SentAt    *time.Time      `db:"sent_at"`
}
