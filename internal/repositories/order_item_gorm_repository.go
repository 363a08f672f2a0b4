package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"fooddelivery/internal/models"
	"fooddelivery/pkg/dbctx"
)

// GORMOrderItemRepository is a GORM implementation of OrderItemRepository.
type GORMOrderItemRepository struct {
	db *gorm.DB
}

// NewGORMOrderItemRepository creates a new instance of GORMOrderItemRepository.
func NewGORMOrderItemRepository(db *gorm.DB) *GORMOrderItemRepository {
	return &GORMOrderItemRepository{
		db: db,
	}
}

func (r *GORMOrderItemRepository) ListByOrder(dbc dbctx.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := dbc.DB(r.db).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list items of order %s: %w", orderID, err)
	}
	return items, nil
}

// GetByID retrieves an item only if it belongs to the given order.
func (r *GORMOrderItemRepository) GetByID(dbc dbctx.Context, orderID, itemID string) (*models.OrderItem, error) {
	var item models.OrderItem
	err := dbc.DB(r.db).Where("id = ? AND order_id = ?", itemID, orderID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("item %s not found in order %s: %w", itemID, orderID, err)
		}
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	return &item, nil
}

func (r *GORMOrderItemRepository) GetByOrderAndFood(dbc dbctx.Context, orderID, foodID string) (*models.OrderItem, error) {
	var item models.OrderItem
	err := dbc.DB(r.db).Where("order_id = ? AND food_id = ?", orderID, foodID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no item for food %s in order %s: %w", foodID, orderID, err)
		}
		return nil, fmt.Errorf("failed to get item for food %s: %w", foodID, err)
	}
	return &item, nil
}

func (r *GORMOrderItemRepository) Create(dbc dbctx.Context, item *models.OrderItem) error {
	if err := dbc.DB(r.db).Omit("Food").Create(item).Error; err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

// UpdateQuantity persists quantity and subtotal. price_at_purchase is never rewritten.
func (r *GORMOrderItemRepository) UpdateQuantity(dbc dbctx.Context, item *models.OrderItem) error {
	res := dbc.DB(r.db).
		Model(&models.OrderItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"quantity": item.Quantity,
			"subtotal": item.Subtotal,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update order item %s: %w", item.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order item %s not found for update: %w", item.ID, gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *GORMOrderItemRepository) Delete(dbc dbctx.Context, orderID, itemID string) error {
	res := dbc.DB(r.db).Where("id = ? AND order_id = ?", itemID, orderID).Delete(&models.OrderItem{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete order item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order item %s not found for deletion: %w", itemID, gorm.ErrRecordNotFound)
	}
	return nil
}
