package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"fooddelivery/internal/middleware"
	"fooddelivery/internal/services"
	"fooddelivery/pkg/logger"
)

// OrderHandler handles HTTP requests for the cart and orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
	log      *logger.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, log *logger.Logger) *OrderHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &OrderHandler{
		service:  service,
		validate: NewValidator(),
		log:      log.With("handler", "OrderHandler"),
	}
}

// RegisterRoutes registers the cart routes. router must already require authentication.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/my-orders", h.HandleListOrders)
	router.Post("/add_to_cart", h.HandleAddToCart)
	router.Post("/remove", h.HandleRemoveFromCart)
	router.Delete("/cancel", h.HandleCancel)
	router.Patch("/order/details", h.HandleUpdateDetails)
	router.Post("/checkout", h.HandleCheckout)

	admin := router.Group("/admin", middleware.StaffRequired())
	admin.Post("/orders/:id/deliver", h.HandleMarkDelivered)
}

// AddToCartRequest is the body of POST /add_to_cart. Quantity defaults to 1.
type AddToCartRequest struct {
	Food     string `json:"food" validate:"required"`
	Quantity *int   `json:"quantity" validate:"omitempty,min=1,max=2147483647"`
}

// RemoveFromCartRequest is the body of POST /remove.
type RemoveFromCartRequest struct {
	ItemID string `json:"item_id"`
	Action string `json:"action"`
}

// UpdateDetailsRequest is the body of PATCH /order/details. Omitted fields are left unchanged.
type UpdateDetailsRequest struct {
	Address *string `json:"address" validate:"omitempty,max=100"`
	Phone   *string `json:"phone" validate:"omitempty,number,max=15"`
}

var detailsMessages = fieldMessages{
	"address.max":  "Address must be at most 100 characters",
	"phone.number": "Phone number must contain digits only",
	"phone.max":    "Phone number must be at most 15 digits",
}

// HandleListOrders returns the caller's orders, newest first.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(newOrderResponses(c, orders))
}

// HandleAddToCart adds a food to the caller's cart.
func (h *OrderHandler) HandleAddToCart(c *fiber.Ctx) error {
	var req AddToCartRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	order, err := h.service.AddToCart(c.UserContext(), currentUserID(c), req.Food, quantity)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newOrderResponse(c, order))
}

// HandleRemoveFromCart decreases or deletes a line of the caller's cart.
func (h *OrderHandler) HandleRemoveFromCart(c *fiber.Ctx) error {
	var req RemoveFromCartRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	order, err := h.service.RemoveFromCart(c.UserContext(), currentUserID(c), req.ItemID, services.RemoveAction(req.Action))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(newOrderResponse(c, order))
}

func (h *OrderHandler) HandleCancel(c *fiber.Ctx) error {
	if _, err := h.service.Cancel(c.UserContext(), currentUserID(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Cart cancelled successfully"})
}

func (h *OrderHandler) HandleUpdateDetails(c *fiber.Ctx) error {
	var req UpdateDetailsRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err, detailsMessages)
	}
	if _, err := h.service.UpdateDeliveryDetails(c.UserContext(), currentUserID(c), req.Address, req.Phone); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Order details updated"})
}

// HandleCheckout submits the caller's cart and returns a summary.
func (h *OrderHandler) HandleCheckout(c *fiber.Ctx) error {
	order, err := h.service.Checkout(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	username, _ := c.Locals("username").(string)
	if order.User != nil {
		username = order.User.Username
	}
	return c.JSON(fiber.Map{
		"message": "Order checked out successfully",
		"user":    username,
		"address": order.Address,
		"phone":   order.Phone,
		"status":  order.Status,
		"total":   money(order.Total),
	})
}

// HandleMarkDelivered lets staff record a delivery by hand.
func (h *OrderHandler) HandleMarkDelivered(c *fiber.Ctx) error {
	order, err := h.service.MarkDelivered(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(newOrderResponse(c, order))
}
