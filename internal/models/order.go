package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the delivery lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// Order is a user's cart while pending and a delivery afterwards.
// At most one pending order per user exists (partial unique index idx_orders_one_pending_per_user).
type Order struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string          `json:"user_id" gorm:"type:varchar(36);not null;index"`
	User        *User           `json:"user,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Address     string          `json:"address" gorm:"type:varchar(100);not null;default:''"`
	Phone       string          `json:"phone" gorm:"type:varchar(15);not null;default:''"`
	Status      OrderStatus     `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Total       decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null;default:0"`
	Items       []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	DateCreated time.Time       `json:"date_created" gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	return nil
}

// IsPending reports whether the order is still a mutable cart.
func (o *Order) IsPending() bool {
	return o != nil && o.Status == OrderStatusPending
}

// OrderItem represents a single line within an order.
type OrderItem struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID         string          `json:"order_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_order_items_order_food"`
	FoodID          string          `json:"food_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_order_items_order_food"`
	Food            *Food           `json:"food,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Quantity        int             `json:"quantity" gorm:"not null;default:1"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase" gorm:"type:numeric(10,2);not null"` // captured at first add
	Subtotal        decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null;default:0"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// ComputeSubtotal returns quantity × price_at_purchase.
func (i *OrderItem) ComputeSubtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SumSubtotals returns the exact sum of the items' subtotals.
func SumSubtotals(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
	}
	return total
}
