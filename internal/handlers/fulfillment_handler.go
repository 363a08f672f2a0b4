package handlers

import (
	"context"

	"fooddelivery/internal/services"
	"fooddelivery/pkg/apperr"
	"fooddelivery/pkg/logger"
	"fooddelivery/pkg/rabbitmq"
)

// FulfillmentHandler applies delivery confirmations coming from the message broker.
type FulfillmentHandler struct {
	service *services.OrderService
	log     *logger.Logger
}

func NewFulfillmentHandler(service *services.OrderService, log *logger.Logger) *FulfillmentHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &FulfillmentHandler{
		service: service,
		log:     log.With("handler", "FulfillmentHandler"),
	}
}

// Handle marks the order delivered. Unknown orders and orders in the wrong state are dropped.
func (h *FulfillmentHandler) Handle(ctx context.Context, msg rabbitmq.FulfillmentMessage) error {
	order, err := h.service.MarkDelivered(ctx, msg.OrderID)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) || apperr.IsCode(err, apperr.CodeConflict) {
			return rabbitmq.Permanent(err)
		}
		return err
	}
	h.log.Debug("Fulfillment applied", "order_id", order.ID, "status", order.Status)
	return nil
}
