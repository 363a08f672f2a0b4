package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fooddelivery/internal/models"
	"fooddelivery/internal/repositories"
	"fooddelivery/pkg/apperr"
	"fooddelivery/pkg/dbctx"
	"fooddelivery/pkg/logger"
)

// RemoveAction selects how RemoveItem treats a line.
type RemoveAction string

const (
	RemoveActionDecrease RemoveAction = "decrease"
	RemoveActionDelete   RemoveAction = "delete"
)

const (
	maxAddressLength = 100
	maxPhoneLength   = 15
)

// OrderService owns the order aggregate: cart lines, totals and status transitions.
// Every mutation runs in a single transaction that starts by locking the order row.
type OrderService struct {
	runner    repositories.TxRunner
	orders    repositories.OrderRepository
	items     repositories.OrderItemRepository
	foods     repositories.FoodRepository
	users     repositories.UserRepository
	publisher EventPublisher
	log       *logger.Logger
}

// NewOrderService creates a new OrderService. publisher may be nil.
func NewOrderService(
	runner repositories.TxRunner,
	orders repositories.OrderRepository,
	items repositories.OrderItemRepository,
	foods repositories.FoodRepository,
	users repositories.UserRepository,
	publisher EventPublisher,
	log *logger.Logger,
) *OrderService {
	if log == nil {
		log = logger.NewNop()
	}
	return &OrderService{
		runner:    runner,
		orders:    orders,
		items:     items,
		foods:     foods,
		users:     users,
		publisher: publisher,
		log:       log.With("service", "OrderService"),
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// GetOrCreatePendingOrder returns the user's cart, creating it if none exists.
// A concurrent creator winning the unique index race is resolved by reading its row.
func (s *OrderService) GetOrCreatePendingOrder(ctx context.Context, userID string) (*models.Order, error) {
	const op = "OrderService.GetOrCreatePendingOrder"

	var order *models.Order
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		existing, err := s.orders.GetPendingByUser(dbc, userID)
		if err == nil {
			order = existing
			return nil
		}
		if !isNotFound(err) {
			return err
		}

		user, err := s.users.GetByID(dbc, userID)
		if err != nil {
			if isNotFound(err) {
				return apperr.NotFound(op, "User not found")
			}
			return err
		}

		created := &models.Order{
			UserID: userID,
			Status: models.OrderStatusPending,
			Phone:  user.Phone,
			Total:  decimal.Zero,
		}
		if err := s.orders.Create(dbc, created); err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		if !apperr.IsUniqueViolation(err) {
			return nil, apperr.MapError(op, err)
		}
		s.log.Debug("Pending order created concurrently, reading winner", "user_id", userID)
		winner, rerr := s.orders.GetPendingByUser(dbctx.New(ctx), userID)
		if rerr != nil {
			return nil, apperr.MapError(op, rerr)
		}
		return winner, nil
	}
	return order, nil
}

// AddItem adds quantity units of a food to a pending order. The first add of a food
// captures its current price; later adds only change the quantity.
func (s *OrderService) AddItem(ctx context.Context, orderID, foodID string, quantity int) (*models.Order, error) {
	const op = "OrderService.AddItem"
	if err := checkQuantity(op, quantity); err != nil {
		return nil, err
	}

	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.lockPending(dbc, op, orderID); err != nil {
			return err
		}

		food, err := s.foods.GetAvailableByID(dbc, foodID)
		if err != nil {
			if isNotFound(err) {
				return apperr.NotFound(op, "Food not found")
			}
			return err
		}

		item, err := s.items.GetByOrderAndFood(dbc, orderID, foodID)
		switch {
		case err == nil:
			if item.Quantity > MaxItemQuantity-quantity {
				return quantityTooLarge(op)
			}
			item.Quantity += quantity
			item.Subtotal = item.ComputeSubtotal()
			if err := s.items.UpdateQuantity(dbc, item); err != nil {
				return err
			}
		case isNotFound(err):
			item = &models.OrderItem{
				OrderID:         orderID,
				FoodID:          foodID,
				Quantity:        quantity,
				PriceAtPurchase: food.Price,
			}
			item.Subtotal = item.ComputeSubtotal()
			if err := s.items.Create(dbc, item); err != nil {
				return err
			}
		default:
			return err
		}

		_, err = s.recomputeTotal(dbc, orderID)
		return err
	})
	if err != nil {
		return nil, apperr.MapError(op, err)
	}
	return s.load(ctx, op, orderID)
}

// RemoveItem decreases a line by one unit (deleting it at zero) or deletes it outright.
func (s *OrderService) RemoveItem(ctx context.Context, orderID, itemID string, action RemoveAction) (*models.Order, error) {
	const op = "OrderService.RemoveItem"
	if action != RemoveActionDecrease && action != RemoveActionDelete {
		return nil, apperr.Validation(op, "Invalid action", map[string]string{"action": "must be one of decrease, delete"})
	}

	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.lockPending(dbc, op, orderID); err != nil {
			return err
		}

		item, err := s.items.GetByID(dbc, orderID, itemID)
		if err != nil {
			if isNotFound(err) {
				return apperr.NotFound(op, "Item not found in cart")
			}
			return err
		}

		if action == RemoveActionDecrease && item.Quantity > 1 {
			item.Quantity--
			item.Subtotal = item.ComputeSubtotal()
			if err := s.items.UpdateQuantity(dbc, item); err != nil {
				return err
			}
		} else if err := s.items.Delete(dbc, orderID, itemID); err != nil {
			return err
		}

		_, err = s.recomputeTotal(dbc, orderID)
		return err
	})
	if err != nil {
		return nil, apperr.MapError(op, err)
	}
	return s.load(ctx, op, orderID)
}

// UpdateTotal recomputes and persists the order total from its lines.
func (s *OrderService) UpdateTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	const op = "OrderService.UpdateTotal"

	var total decimal.Decimal
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.orders.LockByID(dbc, orderID); err != nil {
			if isNotFound(err) {
				return apperr.NotFound(op, "Order not found")
			}
			return err
		}
		var err error
		total, err = s.recomputeTotal(dbc, orderID)
		return err
	})
	if err != nil {
		return decimal.Zero, apperr.MapError(op, err)
	}
	return total, nil
}

// Checkout submits the user's cart for delivery.
func (s *OrderService) Checkout(ctx context.Context, userID string) (*models.Order, error) {
	const op = "OrderService.Checkout"

	var orderID string
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		order, err := s.orders.LockPendingByUser(dbc, userID)
		if err != nil {
			if isNotFound(err) {
				return apperr.NotFound(op, "No pending order to checkout")
			}
			return err
		}

		fields := map[string]string{}
		if strings.TrimSpace(order.Address) == "" {
			fields["address"] = "is required"
		}
		if strings.TrimSpace(order.Phone) == "" {
			fields["phone"] = "is required"
		}
		if len(fields) > 0 {
			return apperr.Validation(op, "Address and phone number are required", fields)
		}

		moved, err := s.orders.UpdateStatus(dbc, order.ID, []models.OrderStatus{models.OrderStatusPending}, models.OrderStatusOutForDelivery)
		if err != nil {
			return err
		}
		if !moved {
			return apperr.NotFound(op, "No pending order to checkout")
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, apperr.MapError(op, err)
	}

	order, err := s.load(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	s.log.Info("Order checked out", "order_id", order.ID, "user_id", userID, "total", order.Total.StringFixed(2))
	s.publish(ctx, models.EventOrderCheckedOut, order)
	return order, nil
}

// Cancel abandons the user's cart.
func (s *OrderService) Cancel(ctx context.Context, userID string) (*models.Order, error) {
	const op = "OrderService.Cancel"

	var orderID string
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		order, err := s.orders.LockPendingByUser(dbc, userID)
		if err != nil {
			if isNotFound(err) {
				return apperr.NotFound(op, "No pending order to cancel")
			}
			return err
		}
		moved, err := s.orders.UpdateStatus(dbc, order.ID, []models.OrderStatus{models.OrderStatusPending}, models.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !moved {
			return apperr.NotFound(op, "No pending order to cancel")
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, apperr.MapError(op, err)
	}

	order, err := s.load(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	s.log.Info("Order cancelled", "order_id", order.ID, "user_id", userID)
	s.publish(ctx, models.EventOrderCancelled, order)
	return order, nil
}

// MarkDelivered records the external fulfillment of an order that is out for delivery.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID string) (*models.Order, error) {
	const op = "OrderService.MarkDelivered"

	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		order, err := s.orders.LockByID(dbc, orderID)
		if err != nil {
			if isNotFound(err) {
				return apperr.NotFound(op, "Order not found")
			}
			return err
		}
		if order.Status != models.OrderStatusOutForDelivery {
			return apperr.Conflict(op, "Order is not out for delivery")
		}
		moved, err := s.orders.UpdateStatus(dbc, orderID, []models.OrderStatus{models.OrderStatusOutForDelivery}, models.OrderStatusDelivered)
		if err != nil {
			return err
		}
		if !moved {
			return apperr.Conflict(op, "Order is not out for delivery")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.MapError(op, err)
	}

	order, err := s.load(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	s.log.Info("Order delivered", "order_id", order.ID)
	s.publish(ctx, models.EventOrderDelivered, order)
	return order, nil
}

// AddToCart puts a food into the user's cart, creating the cart on first use.
func (s *OrderService) AddToCart(ctx context.Context, userID, foodID string, quantity int) (*models.Order, error) {
	const op = "OrderService.AddToCart"
	if err := checkQuantity(op, quantity); err != nil {
		return nil, err
	}
	if _, err := s.foods.GetAvailableByID(dbctx.New(ctx), foodID); err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound(op, "Food not found")
		}
		return nil, apperr.MapError(op, err)
	}

	order, err := s.GetOrCreatePendingOrder(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.AddItem(ctx, order.ID, foodID, quantity)
}

// RemoveFromCart applies RemoveItem to the user's cart.
func (s *OrderService) RemoveFromCart(ctx context.Context, userID, itemID string, action RemoveAction) (*models.Order, error) {
	const op = "OrderService.RemoveFromCart"

	order, err := s.orders.GetPendingByUser(dbctx.New(ctx), userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound(op, "Cart is empty")
		}
		return nil, apperr.MapError(op, err)
	}
	return s.RemoveItem(ctx, order.ID, itemID, action)
}

// UpdateDeliveryDetails sets the address and/or phone of the user's cart. Nil leaves a field unchanged.
func (s *OrderService) UpdateDeliveryDetails(ctx context.Context, userID string, address, phone *string) (*models.Order, error) {
	const op = "OrderService.UpdateDeliveryDetails"

	updates := map[string]interface{}{}
	fields := map[string]string{}
	if address != nil {
		a := strings.TrimSpace(*address)
		if len(a) > maxAddressLength {
			fields["address"] = "must be at most 100 characters"
		}
		updates["address"] = a
	}
	if phone != nil {
		p := strings.TrimSpace(*phone)
		switch {
		case !isPhoneNumber(p):
			fields["phone"] = "Phone number must contain digits only"
		case len(p) > maxPhoneLength:
			fields["phone"] = "must be at most 15 digits"
		}
		updates["phone"] = p
	}

	var orderID string
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		order, err := s.orders.LockPendingByUser(dbc, userID)
		if err != nil {
			if isNotFound(err) {
				return apperr.NotFound(op, "No pending order")
			}
			return err
		}
		if len(fields) > 0 {
			msg := "Invalid delivery details"
			if m, ok := fields["phone"]; ok && len(fields) == 1 {
				msg = m
			}
			return apperr.Validation(op, msg, fields)
		}
		orderID = order.ID
		return s.orders.UpdateFields(dbc, order.ID, updates)
	})
	if err != nil {
		return nil, apperr.MapError(op, err)
	}
	return s.load(ctx, op, orderID)
}

// ListOrders returns every order of the user, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.orders.ListByUser(dbctx.New(ctx), userID)
	if err != nil {
		return nil, apperr.MapError("OrderService.ListOrders", err)
	}
	return orders, nil
}

// GetOrder returns a single order with its lines.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.load(ctx, "OrderService.GetOrder", orderID)
}

func (s *OrderService) lockPending(dbc dbctx.Context, op, orderID string) (*models.Order, error) {
	order, err := s.orders.LockByID(dbc, orderID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound(op, "Order not found")
		}
		return nil, err
	}
	if !order.IsPending() {
		return nil, apperr.Conflict(op, "Order is no longer pending")
	}
	return order, nil
}

// recomputeTotal must run inside the caller's transaction after the order row is locked.
func (s *OrderService) recomputeTotal(dbc dbctx.Context, orderID string) (decimal.Decimal, error) {
	items, err := s.items.ListByOrder(dbc, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	total := models.SumSubtotals(items)
	if err := s.orders.UpdateTotal(dbc, orderID, total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *OrderService) load(ctx context.Context, op, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(dbctx.New(ctx), orderID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound(op, "Order not found")
		}
		return nil, apperr.MapError(op, err)
	}
	return order, nil
}

// publish never fails the caller: the state change is already committed.
func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, models.NewOrderEvent(eventType, order)); err != nil {
		s.log.Warn("Failed to publish order event", "event", eventType, "order_id", order.ID, "error", err)
		return
	}
	s.log.Debug("Published order event", "event", eventType, "order_id", order.ID)
}

func checkQuantity(op string, quantity int) error {
	if quantity < 1 {
		return apperr.Validation(op, "Quantity must be at least 1", map[string]string{"quantity": "must be at least 1"})
	}
	if quantity > MaxItemQuantity {
		return quantityTooLarge(op)
	}
	return nil
}

func quantityTooLarge(op string) error {
	return apperr.Validation(op, "Quantity is too large", map[string]string{
		"quantity": fmt.Sprintf("line quantity must not exceed %d", MaxItemQuantity),
	})
}
