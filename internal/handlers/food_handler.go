package handlers

import (
	"github.com/gofiber/fiber/v2"

	"fooddelivery/internal/services"
	"fooddelivery/pkg/logger"
)

// FoodHandler handles HTTP requests for the menu.
type FoodHandler struct {
	service *services.FoodService
	log     *logger.Logger
}

// NewFoodHandler creates a new FoodHandler.
func NewFoodHandler(service *services.FoodService, log *logger.Logger) *FoodHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &FoodHandler{
		service: service,
		log:     log.With("handler", "FoodHandler"),
	}
}

// RegisterRoutes registers the menu routes. They are public.
func (h *FoodHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/foods", h.HandleListFoods)
	router.Get("/foods/:id", h.HandleGetFood)
}

// HandleListFoods lists the foods currently on sale.
func (h *FoodHandler) HandleListFoods(c *fiber.Ctx) error {
	foods, err := h.service.ListAvailable(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(newFoodResponses(c, foods))
}

func (h *FoodHandler) HandleGetFood(c *fiber.Ctx) error {
	food, err := h.service.GetAvailable(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(newFoodResponse(c, food))
}
