package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fooddelivery/internal/models"
	"fooddelivery/pkg/dbctx"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

func withOrderDetails(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("User").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_items.created_at ASC, order_items.id ASC")
		}).
		Preload("Items.Food.Category")
}

// Create creates a new order in the database.
func (r *GORMOrderRepository) Create(dbc dbctx.Context, order *models.Order) error {
	if err := dbc.DB(r.db).Omit(clause.Associations).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves a single order by its ID from the database.
func (r *GORMOrderRepository) GetByID(dbc dbctx.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := withOrderDetails(dbc.DB(r.db)).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

func (r *GORMOrderRepository) LockByID(dbc dbctx.Context, id string) (*models.Order, error) {
	var order models.Order
	err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s not found for update: %w", id, err)
		}
		return nil, fmt.Errorf("failed to lock order %s: %w", id, err)
	}
	return &order, nil
}

// GetPendingByUser retrieves the user's cart with its details.
func (r *GORMOrderRepository) GetPendingByUser(dbc dbctx.Context, userID string) (*models.Order, error) {
	var order models.Order
	err := withOrderDetails(dbc.DB(r.db)).
		Where("user_id = ? AND status = ?", userID, models.OrderStatusPending).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("pending order for user %s not found: %w", userID, err)
		}
		return nil, fmt.Errorf("failed to get pending order for user %s: %w", userID, err)
	}
	return &order, nil
}

func (r *GORMOrderRepository) LockPendingByUser(dbc dbctx.Context, userID string) (*models.Order, error) {
	var order models.Order
	err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status = ?", userID, models.OrderStatusPending).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("pending order for user %s not found for update: %w", userID, err)
		}
		return nil, fmt.Errorf("failed to lock pending order for user %s: %w", userID, err)
	}
	return &order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *GORMOrderRepository) ListByUser(dbc dbctx.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := withOrderDetails(dbc.DB(r.db)).
		Where("user_id = ?", userID).
		Order("date_created DESC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for user %s: %w", userID, err)
	}
	return orders, nil
}

func (r *GORMOrderRepository) UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	res := dbc.DB(r.db).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s not found for update: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// UpdateTotal writes only the total column.
func (r *GORMOrderRepository) UpdateTotal(dbc dbctx.Context, id string, total decimal.Decimal) error {
	res := dbc.DB(r.db).Model(&models.Order{}).Where("id = ?", id).UpdateColumn("total", total)
	if res.Error != nil {
		return fmt.Errorf("failed to update total of order %s: %w", id, res.Error)
	}
	return nil
}

func (r *GORMOrderRepository) UpdateStatus(dbc dbctx.Context, id string, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	res := dbc.DB(r.db).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to move order %s to %s: %w", id, to, res.Error)
	}
	return res.RowsAffected > 0, nil
}
