package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"fooddelivery/internal/models"
	"fooddelivery/internal/repositories"
	"fooddelivery/pkg/apperr"
	"fooddelivery/pkg/dbctx"
	"fooddelivery/pkg/logger"
)

// FoodService handles business logic related to the menu.
type FoodService struct {
	runner repositories.TxRunner
	repo   repositories.FoodRepository
	log    *logger.Logger
}

// NewFoodService creates a new FoodService.
func NewFoodService(runner repositories.TxRunner, repo repositories.FoodRepository, log *logger.Logger) *FoodService {
	if log == nil {
		log = logger.NewNop()
	}
	return &FoodService{
		runner: runner,
		repo:   repo,
		log:    log.With("service", "FoodService"),
	}
}

// ListAvailable retrieves every food currently on sale.
func (s *FoodService) ListAvailable(ctx context.Context) ([]models.Food, error) {
	foods, err := s.repo.ListAvailable(dbctx.New(ctx))
	if err != nil {
		return nil, apperr.MapError("FoodService.ListAvailable", err)
	}
	return foods, nil
}

// GetAvailable retrieves a single food on sale.
func (s *FoodService) GetAvailable(ctx context.Context, id string) (*models.Food, error) {
	const op = "FoodService.GetAvailable"
	food, err := s.repo.GetAvailableByID(dbctx.New(ctx), id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound(op, "Food not found")
		}
		return nil, apperr.MapError(op, err)
	}
	return food, nil
}

// Create adds a food to the menu, attaching it to categoryName (created on demand) when given.
func (s *FoodService) Create(ctx context.Context, food *models.Food, categoryName string) error {
	const op = "FoodService.Create"

	food.Name = strings.TrimSpace(food.Name)
	fields := map[string]string{}
	if err := validate.Struct(food); err != nil {
		fields = fieldErrors(err)
	}
	if food.Price.IsNegative() {
		fields["price"] = "must not be negative"
	}
	if len(fields) > 0 {
		return apperr.Validation(op, "Invalid food", fields)
	}
	food.Price = food.Price.Round(2)

	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if strings.TrimSpace(categoryName) != "" {
			category, err := s.repo.GetOrCreateCategory(dbc, categoryName)
			if err != nil {
				return err
			}
			food.CategoryID = &category.ID
			food.Category = category
		}
		return s.repo.Create(dbc, food)
	})
	if err != nil {
		return apperr.MapError(op, err)
	}
	return nil
}

// MenuSeed describes one food of the starter menu.
type MenuSeed struct {
	Category     string
	Name         string
	Descriptions string
	Price        string
	ImageURL     string
}

// DefaultMenu is the starter menu loaded into an empty database.
func DefaultMenu() []MenuSeed {
	return []MenuSeed{
		{Category: "Main Course", Name: "Nasi Goreng", Descriptions: "Fried rice with egg and chicken", Price: "25.00", ImageURL: "/media/foods/nasi-goreng.jpg"},
		{Category: "Main Course", Name: "Mie Ayam", Descriptions: "Chicken noodles with broth", Price: "20.00", ImageURL: "/media/foods/mie-ayam.jpg"},
		{Category: "Snacks", Name: "Pisang Goreng", Descriptions: "Fried banana fritters", Price: "10.00"},
		{Category: "Drinks", Name: "Es Teh", Descriptions: "Iced sweet tea", Price: "5.50"},
	}
}

// SeedMenu creates the given foods only when the menu is empty. It returns how many were created.
func (s *FoodService) SeedMenu(ctx context.Context, menu []MenuSeed) (int, error) {
	const op = "FoodService.SeedMenu"

	n, err := s.repo.Count(dbctx.New(ctx))
	if err != nil {
		return 0, apperr.MapError(op, err)
	}
	if n > 0 {
		s.log.Debug("Menu already populated, skipping seed", "foods", n)
		return 0, nil
	}

	created := 0
	for _, seed := range menu {
		price, err := decimal.NewFromString(seed.Price)
		if err != nil {
			return created, apperr.Validation(op, "Invalid seed price", map[string]string{seed.Name: err.Error()})
		}
		food := &models.Food{
			Name:         seed.Name,
			Descriptions: seed.Descriptions,
			Price:        price,
			Available:    true,
		}
		if seed.ImageURL != "" {
			url := seed.ImageURL
			food.ImageURL = &url
		}
		if err := s.Create(ctx, food, seed.Category); err != nil {
			return created, err
		}
		created++
	}
	s.log.Info("Seeded menu", "foods", created)
	return created, nil
}
