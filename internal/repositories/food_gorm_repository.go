package repositories

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"fooddelivery/internal/models"
	"fooddelivery/pkg/dbctx"
)

// GORMFoodRepository is a GORM implementation of FoodRepository.
type GORMFoodRepository struct {
	db *gorm.DB
}

// NewGORMFoodRepository creates a new instance of GORMFoodRepository.
func NewGORMFoodRepository(db *gorm.DB) *GORMFoodRepository {
	return &GORMFoodRepository{
		db: db,
	}
}

// ListAvailable retrieves every available food with its category, ordered by name.
func (r *GORMFoodRepository) ListAvailable(dbc dbctx.Context) ([]models.Food, error) {
	var foods []models.Food
	err := dbc.DB(r.db).
		Preload("Category").
		Where("available = ?", true).
		Order("name ASC").
		Find(&foods).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list available foods: %w", err)
	}
	return foods, nil
}

// GetByID retrieves a single food by its ID regardless of availability.
func (r *GORMFoodRepository) GetByID(dbc dbctx.Context, id string) (*models.Food, error) {
	var food models.Food
	if err := dbc.DB(r.db).Preload("Category").First(&food, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("food with ID %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("failed to get food by ID %s: %w", id, err)
	}
	return &food, nil
}

// GetAvailableByID retrieves a food only when it is on sale.
func (r *GORMFoodRepository) GetAvailableByID(dbc dbctx.Context, id string) (*models.Food, error) {
	var food models.Food
	err := dbc.DB(r.db).
		Preload("Category").
		Where("id = ? AND available = ?", id, true).
		First(&food).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("available food with ID %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("failed to get available food by ID %s: %w", id, err)
	}
	return &food, nil
}

// Create creates a new food in the database.
func (r *GORMFoodRepository) Create(dbc dbctx.Context, food *models.Food) error {
	if err := dbc.DB(r.db).Create(food).Error; err != nil {
		return fmt.Errorf("failed to create food: %w", err)
	}
	return nil
}

func (r *GORMFoodRepository) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&models.Food{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count foods: %w", err)
	}
	return n, nil
}

// GetOrCreateCategory returns the category whose slug matches name, creating it when missing.
func (r *GORMFoodRepository) GetOrCreateCategory(dbc dbctx.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name is required")
	}
	category := models.Category{Name: name, Slug: models.Slugify(name)}
	err := dbc.DB(r.db).
		Where(models.Category{Slug: category.Slug}).
		Attrs(models.Category{Name: name}).
		FirstOrCreate(&category).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create category %q: %w", name, err)
	}
	return &category, nil
}
