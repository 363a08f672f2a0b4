package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys of order lifecycle events.
const (
	EventOrderCheckedOut = "order.checked_out"
	EventOrderCancelled  = "order.cancelled"
	EventOrderDelivered  = "order.delivered"
)

// OrderEvent is the payload published when an order changes status.
type OrderEvent struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Status     OrderStatus     `json:"status"`
	Total      decimal.Decimal `json:"total"`
	Address    string          `json:"address,omitempty"`
	Phone      string          `json:"phone,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewOrderEvent snapshots order into an event of the given type.
func NewOrderEvent(eventType string, order *Order) OrderEvent {
	return OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Total:      order.Total,
		Address:    order.Address,
		Phone:      order.Phone,
		OccurredAt: time.Now().UTC(),
	}
}
