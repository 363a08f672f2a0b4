package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fooddelivery/internal/config"
	"fooddelivery/internal/database/dbtest"
	"fooddelivery/internal/handlers"
	"fooddelivery/internal/middleware"
	"fooddelivery/internal/models"
	"fooddelivery/internal/repositories"
	"fooddelivery/internal/services"
	"fooddelivery/pkg/rabbitmq"
)

type testApp struct {
	app         *fiber.App
	db          *gorm.DB
	auth        *services.AuthService
	orders      *services.OrderService
	fulfillment *handlers.FulfillmentHandler
	food        *models.Food
}

// setupApp wires real repositories and services over an in-memory SQLite database.
func setupApp(t *testing.T) testApp {
	t.Helper()
	db := dbtest.New(t)

	runner := repositories.NewGormTxRunner(db)
	userRepo := repositories.NewGORMUserRepository(db)
	foodRepo := repositories.NewGORMFoodRepository(db)

	authService := services.NewAuthService(userRepo, repositories.NewMemoryRevocationStore(), config.JWTConfig{Secret: "test_jwt_secret"}, nil)
	foodService := services.NewFoodService(runner, foodRepo, nil)
	orderService := services.NewOrderService(
		runner,
		repositories.NewGORMOrderRepository(db),
		repositories.NewGORMOrderItemRepository(db),
		foodRepo,
		userRepo,
		nil,
		nil,
	)

	image := "media/foods/nasi-goreng.jpg"
	food := &models.Food{Name: "Nasi Goreng", Price: decimal.RequireFromString("10.00"), ImageURL: &image}
	require.NoError(t, foodService.Create(context.Background(), food, "Rice"))

	app := fiber.New()
	handlers.NewFoodHandler(foodService, nil).RegisterRoutes(app)
	handlers.NewAuthHandler(authService, handlers.CookieConfig{Debug: true}, nil).RegisterRoutes(app)
	protected := app.Group("", middleware.AuthRequired(authService))
	handlers.NewOrderHandler(orderService, nil).RegisterRoutes(protected)

	return testApp{
		app:         app,
		db:          db,
		auth:        authService,
		orders:      orderService,
		fulfillment: handlers.NewFulfillmentHandler(orderService, nil),
		food:        food,
	}
}

func (ta testApp) do(t *testing.T, method, path string, body any, token string, cookies ...*http.Cookie) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// registerAndLogin returns an access token for a freshly registered user.
func (ta testApp) registerAndLogin(t *testing.T, username, phone string) string {
	t.Helper()
	resp, data := ta.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"phone":    phone,
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = ta.do(t, http.MethodPost, "/auth/login", map[string]string{
		"username": username,
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	token, _ := decode(t, data)["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAuthRegisterAndLogin(t *testing.T) {
	ta := setupApp(t)

	resp, data := ta.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "testuser",
		"email":    "Test@Example.com",
		"phone":    "081234567890",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	body := decode(t, data)
	assert.Equal(t, "Account created successfully. Please log in to continue", body["message"])
	assert.Equal(t, "test@example.com", body["email"])
	assert.NotContains(t, body, "password")

	// Duplicate username and email are reported per field.
	resp, data = ta.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "testuser",
		"email":    "TEST@example.com",
		"phone":    "081234567891",
		"password": "password123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errs, _ := decode(t, data)["errors"].(map[string]any)
	assert.Equal(t, "A user with that username already exists.", errs["username"])
	assert.Equal(t, "Email already exists.", errs["email"])

	resp, _ = ta.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "testuser", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, data = ta.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "testuser", "password": "password123"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Login successful", decode(t, data)["message"])
	access := cookieNamed(resp, middleware.AccessTokenCookie)
	refresh := cookieNamed(resp, handlers.RefreshTokenCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)

	claims, err := ta.auth.ValidateToken(access.Value)
	require.NoError(t, err)
	assert.Equal(t, "testuser", claims["username"])

	// The access cookie alone authenticates.
	resp, data = ta.do(t, http.MethodGet, "/auth/profile", nil, "", access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"username": "testuser", "email": "test@example.com"}, decode(t, data))
}

func TestAuthRegisterRejectsBadPhone(t *testing.T) {
	ta := setupApp(t)

	resp, data := ta.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "shortphone",
		"email":    "short@example.com",
		"phone":    "0812",
		"password": "password123",
	}, "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errs, _ := decode(t, data)["errors"].(map[string]any)
	assert.Equal(t, "Phone number too short.", errs["phone"])

	resp, data = ta.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "letters",
		"email":    "letters@example.com",
		"phone":    "08123abc9012",
		"password": "password123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errs, _ = decode(t, data)["errors"].(map[string]any)
	assert.Equal(t, "Phone must contain digits only.", errs["phone"])
}

func TestAuthRefreshAndLogout(t *testing.T) {
	ta := setupApp(t)
	ta.registerAndLogin(t, "refresher", "081111111111")

	resp, _ := ta.do(t, http.MethodPost, "/auth/refresh", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ta.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "refresher", "password": "password123"}, "")
	refresh := cookieNamed(resp, handlers.RefreshTokenCookie)
	require.NotNil(t, refresh)

	resp, data := ta.do(t, http.MethodPost, "/auth/refresh", nil, "", refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.NotNil(t, cookieNamed(resp, middleware.AccessTokenCookie))

	resp, data = ta.do(t, http.MethodPost, "/auth/logout", nil, "", refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logout successful", decode(t, data)["message"])
	assert.Equal(t, "no-store, must-revalidate", resp.Header.Get(fiber.HeaderCacheControl))
	cleared := cookieNamed(resp, handlers.RefreshTokenCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	// The revoked refresh token no longer works.
	resp, _ = ta.do(t, http.MethodPost, "/auth/refresh", nil, "", refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFoodsArePublic(t *testing.T) {
	ta := setupApp(t)

	resp, data := ta.do(t, http.MethodGet, "/foods", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var foods []map[string]any
	require.NoError(t, json.Unmarshal(data, &foods))
	require.Len(t, foods, 1)
	assert.Equal(t, "Nasi Goreng", foods[0]["name"])
	assert.Equal(t, "Rice", foods[0]["category"])
	assert.Equal(t, "http://example.com/media/foods/nasi-goreng.jpg", foods[0]["image_url"])
	assert.Contains(t, string(data), `"price":10.00`)

	resp, data = ta.do(t, http.MethodGet, "/foods/", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "trailing slash is routed like /foods")
	require.NoError(t, json.Unmarshal(data, &foods))
	assert.Len(t, foods, 1)

	resp, _ = ta.do(t, http.MethodGet, "/foods/"+ta.food.ID, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, ta.db.Model(ta.food).Update("available", false).Error)
	resp, data = ta.do(t, http.MethodGet, "/foods/"+ta.food.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Food not found", decode(t, data)["error"])
}

func TestOrderRoutesRequireAuth(t *testing.T) {
	ta := setupApp(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/my-orders"},
		{http.MethodPost, "/add_to_cart"},
		{http.MethodPost, "/checkout"},
		{http.MethodDelete, "/cancel"},
	} {
		resp, _ := ta.do(t, tc.method, tc.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, tc.path)
	}

	resp, _ := ta.do(t, http.MethodGet, "/my-orders", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCartFlow(t *testing.T) {
	ta := setupApp(t)
	token := ta.registerAndLogin(t, "hungry", "081222333444")

	resp, data := ta.do(t, http.MethodPost, "/add_to_cart", map[string]any{"food": ta.food.ID, "quantity": 2}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	assert.Contains(t, string(data), `"total":20.00`)
	assert.Contains(t, string(data), `"subtotal":20.00`)
	order := decode(t, data)
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, "hungry", order["user"])
	items, _ := order["items"].([]any)
	require.Len(t, items, 1)
	itemID, _ := items[0].(map[string]any)["id"].(string)

	// Quantity defaults to one.
	resp, data = ta.do(t, http.MethodPost, "/add_to_cart/", map[string]any{"food": ta.food.ID}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, string(data), `"total":30.00`)

	resp, data = ta.do(t, http.MethodPost, "/add_to_cart", map[string]any{"food": ta.food.ID, "quantity": 0}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Validation failed", decode(t, data)["error"])

	resp, data = ta.do(t, http.MethodPost, "/add_to_cart", map[string]any{"food": ta.food.ID, "quantity": int64(1) << 32}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Validation failed", decode(t, data)["error"])

	resp, data = ta.do(t, http.MethodPost, "/add_to_cart", map[string]any{"food": ta.food.ID, "quantity": services.MaxItemQuantity}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "line would exceed the cap")
	errs, _ := decode(t, data)["errors"].(map[string]any)
	assert.Contains(t, errs, "quantity")

	resp, data = ta.do(t, http.MethodPost, "/remove", map[string]any{"item_id": itemID, "action": "explode"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid action", decode(t, data)["error"])

	resp, data = ta.do(t, http.MethodPost, "/remove", map[string]any{"item_id": itemID, "action": "decrease"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"total":20.00`)

	resp, data = ta.do(t, http.MethodPost, "/checkout", nil, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Address and phone number are required", decode(t, data)["error"])

	resp, data = ta.do(t, http.MethodPatch, "/order/details", map[string]any{"phone": "08-12"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errs, _ = decode(t, data)["errors"].(map[string]any)
	assert.Equal(t, "Phone number must contain digits only", errs["phone"])

	resp, data = ta.do(t, http.MethodPatch, "/order/details", map[string]any{"address": "Jl. Sudirman 10"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Order details updated", decode(t, data)["message"])

	resp, data = ta.do(t, http.MethodPost, "/checkout/", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	summary := decode(t, data)
	assert.Equal(t, "Order checked out successfully", summary["message"])
	assert.Equal(t, "hungry", summary["user"])
	assert.Equal(t, "Jl. Sudirman 10", summary["address"])
	assert.Equal(t, "081222333444", summary["phone"])
	assert.Equal(t, "out_for_delivery", summary["status"])
	assert.Contains(t, string(data), `"total":20.00`)

	resp, data = ta.do(t, http.MethodPost, "/checkout", nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No pending order to checkout", decode(t, data)["error"])

	resp, data = ta.do(t, http.MethodGet, "/my-orders", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []map[string]any
	require.NoError(t, json.Unmarshal(data, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "out_for_delivery", orders[0]["status"])
}

func TestCancelCart(t *testing.T) {
	ta := setupApp(t)
	token := ta.registerAndLogin(t, "fickle", "081999888777")

	resp, data := ta.do(t, http.MethodDelete, "/cancel", nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No pending order to cancel", decode(t, data)["error"])

	resp, _ = ta.do(t, http.MethodPost, "/add_to_cart", map[string]any{"food": ta.food.ID}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, data = ta.do(t, http.MethodDelete, "/cancel", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Cart cancelled successfully", decode(t, data)["message"])

	resp, data = ta.do(t, http.MethodPost, "/remove", map[string]any{"item_id": "x", "action": "delete"}, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Cart is empty", decode(t, data)["error"])
}

func TestDeliverRequiresStaff(t *testing.T) {
	ta := setupApp(t)
	customer := ta.registerAndLogin(t, "customer", "081000000001")

	_, err := ta.auth.EnsureSuperuser(context.Background(), config.AdminConfig{Username: "admin", Email: "admin@example.com", Password: "adminpass"})
	require.NoError(t, err)
	resp, data := ta.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "adminpass"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	staff, _ := decode(t, data)["access_token"].(string)

	ta.do(t, http.MethodPost, "/add_to_cart", map[string]any{"food": ta.food.ID}, customer)
	ta.do(t, http.MethodPatch, "/order/details", map[string]any{"address": "Jl. Thamrin 1"}, customer)
	resp, _ = ta.do(t, http.MethodPost, "/checkout", nil, customer)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, data = ta.do(t, http.MethodGet, "/my-orders", nil, customer)
	var orders []map[string]any
	require.NoError(t, json.Unmarshal(data, &orders))
	require.Len(t, orders, 1)
	orderID, _ := orders[0]["id"].(string)

	resp, _ = ta.do(t, http.MethodPost, "/admin/orders/"+orderID+"/deliver", nil, customer)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, data = ta.do(t, http.MethodPost, "/admin/orders/"+orderID+"/deliver", nil, staff)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "delivered", decode(t, data)["status"])

	resp, _ = ta.do(t, http.MethodPost, "/admin/orders/"+orderID+"/deliver", nil, staff)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestFulfillmentHandler(t *testing.T) {
	ta := setupApp(t)
	token := ta.registerAndLogin(t, "courier_client", "081000000002")
	ctx := context.Background()

	err := ta.fulfillment.Handle(ctx, rabbitmq.FulfillmentMessage{OrderID: "missing", Status: "delivered"})
	assert.True(t, rabbitmq.IsPermanent(err), "unknown orders are dropped")

	ta.do(t, http.MethodPost, "/add_to_cart", map[string]any{"food": ta.food.ID}, token)
	ta.do(t, http.MethodPatch, "/order/details", map[string]any{"address": "Jl. Gatot Subroto 5"}, token)
	_, data := ta.do(t, http.MethodPost, "/checkout", nil, token)
	require.Equal(t, "out_for_delivery", decode(t, data)["status"])

	var order models.Order
	require.NoError(t, ta.db.First(&order, "status = ?", models.OrderStatusOutForDelivery).Error)

	require.NoError(t, ta.fulfillment.Handle(ctx, rabbitmq.FulfillmentMessage{OrderID: order.ID, Status: "delivered"}))
	err = ta.fulfillment.Handle(ctx, rabbitmq.FulfillmentMessage{OrderID: order.ID, Status: "delivered"})
	assert.True(t, rabbitmq.IsPermanent(err), "redelivery of a delivered order is dropped")
}

func TestValidatorNumberTag(t *testing.T) {
	v := handlers.NewValidator()

	req := handlers.RegisterRequest{Username: "bob", Email: "bob@example.com", Phone: "081234567890", Password: "secret"}
	assert.NoError(t, v.Struct(req))

	for _, phone := range []string{"0812-3456-789", "+6281234567", "-81234567890", "0812345678.5", "08123456789a"} {
		req.Phone = phone
		err := v.Struct(req)
		require.Error(t, err, phone)
		assert.Contains(t, err.Error(), "'number' tag", phone)
	}
	req.Phone = "0812345678901234"
	assert.Contains(t, v.Struct(req).Error(), "'max' tag")

	details := handlers.UpdateDetailsRequest{}
	assert.NoError(t, v.Struct(details), "omitted fields are not checked")
	phone := "08-12"
	details.Phone = &phone
	assert.Error(t, v.Struct(details))
	phone = "081234567890"
	address := strings.Repeat("a", 101)
	details.Address = &address
	assert.Contains(t, v.Struct(details).Error(), "'max' tag")
}
