package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"fooddelivery/internal/models"
)

// money renders a decimal as a JSON number with exactly two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type FoodResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Price        json.Number `json:"price"`
	Descriptions string      `json:"descriptions"`
	ImageURL     *string     `json:"image_url"`
	Category     *string     `json:"category"`
}

type OrderItemResponse struct {
	ID              string        `json:"id"`
	Food            *FoodResponse `json:"food"`
	Quantity        int           `json:"quantity"`
	PriceAtPurchase json.Number   `json:"price_at_purchase"`
	Subtotal        json.Number   `json:"subtotal"`
}

type OrderResponse struct {
	ID          string              `json:"id"`
	User        string              `json:"user"`
	Address     string              `json:"address"`
	Phone       string              `json:"phone"`
	Total       json.Number         `json:"total"`
	Status      models.OrderStatus  `json:"status"`
	DateCreated time.Time           `json:"date_created"`
	Items       []OrderItemResponse `json:"items"`
}

// absoluteURL resolves stored relative image paths against the request's base URL.
func absoluteURL(c *fiber.Ctx, raw *string) *string {
	if raw == nil || *raw == "" {
		return nil
	}
	u := *raw
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return &u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	u = c.BaseURL() + u
	return &u
}

func newFoodResponse(c *fiber.Ctx, f *models.Food) *FoodResponse {
	if f == nil {
		return nil
	}
	resp := &FoodResponse{
		ID:           f.ID,
		Name:         f.Name,
		Price:        money(f.Price),
		Descriptions: f.Descriptions,
		ImageURL:     absoluteURL(c, f.ImageURL),
	}
	if f.Category != nil {
		name := f.Category.Name
		resp.Category = &name
	}
	return resp
}

func newFoodResponses(c *fiber.Ctx, foods []models.Food) []FoodResponse {
	out := make([]FoodResponse, 0, len(foods))
	for i := range foods {
		out = append(out, *newFoodResponse(c, &foods[i]))
	}
	return out
}

func newOrderResponse(c *fiber.Ctx, o *models.Order) OrderResponse {
	resp := OrderResponse{
		ID:          o.ID,
		Address:     o.Address,
		Phone:       o.Phone,
		Total:       money(o.Total),
		Status:      o.Status,
		DateCreated: o.DateCreated,
		Items:       make([]OrderItemResponse, 0, len(o.Items)),
	}
	if o.User != nil {
		resp.User = o.User.Username
	}
	for i := range o.Items {
		item := &o.Items[i]
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:              item.ID,
			Food:            newFoodResponse(c, item.Food),
			Quantity:        item.Quantity,
			PriceAtPurchase: money(item.PriceAtPurchase),
			Subtotal:        money(item.Subtotal),
		})
	}
	return resp
}

func newOrderResponses(c *fiber.Ctx, orders []models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResponse(c, &orders[i]))
	}
	return out
}
