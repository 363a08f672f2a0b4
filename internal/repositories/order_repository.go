package repositories

import (
	"github.com/shopspring/decimal"

	"fooddelivery/internal/models"
	"fooddelivery/pkg/dbctx"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(dbc dbctx.Context, order *models.Order) error
	// GetByID loads the order with its user and items (food and category preloaded).
	GetByID(dbc dbctx.Context, id string) (*models.Order, error)
	// LockByID loads the bare order row and holds a row lock until the transaction ends.
	LockByID(dbc dbctx.Context, id string) (*models.Order, error)
	GetPendingByUser(dbc dbctx.Context, userID string) (*models.Order, error)
	LockPendingByUser(dbc dbctx.Context, userID string) (*models.Order, error)
	ListByUser(dbc dbctx.Context, userID string) ([]models.Order, error)
	UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error
	UpdateTotal(dbc dbctx.Context, id string, total decimal.Decimal) error
	// UpdateStatus moves the order to "to" only if its status is currently one of "from".
	// It reports false when no row matched.
	UpdateStatus(dbc dbctx.Context, id string, from []models.OrderStatus, to models.OrderStatus) (bool, error)
}

// OrderItemRepository defines the interface for order line data access.
type OrderItemRepository interface {
	ListByOrder(dbc dbctx.Context, orderID string) ([]models.OrderItem, error)
	GetByID(dbc dbctx.Context, orderID, itemID string) (*models.OrderItem, error)
	GetByOrderAndFood(dbc dbctx.Context, orderID, foodID string) (*models.OrderItem, error)
	Create(dbc dbctx.Context, item *models.OrderItem) error
	UpdateQuantity(dbc dbctx.Context, item *models.OrderItem) error
	Delete(dbc dbctx.Context, orderID, itemID string) error
}
