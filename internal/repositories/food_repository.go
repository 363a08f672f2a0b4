package repositories

import (
	"fooddelivery/internal/models"
	"fooddelivery/pkg/dbctx"
)

// FoodRepository defines the interface for menu data access.
type FoodRepository interface {
	ListAvailable(dbc dbctx.Context) ([]models.Food, error)
	GetByID(dbc dbctx.Context, id string) (*models.Food, error)
	GetAvailableByID(dbc dbctx.Context, id string) (*models.Food, error)
	Create(dbc dbctx.Context, food *models.Food) error
	Count(dbc dbctx.Context) (int64, error)
	GetOrCreateCategory(dbc dbctx.Context, name string) (*models.Category, error)
}
