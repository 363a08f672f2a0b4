package services_test

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"fooddelivery/internal/models"
	"fooddelivery/pkg/dbctx"
)

// passThroughRunner runs the callback without a transaction.
type passThroughRunner struct{}

func (passThroughRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return fn(dbctx.New(ctx))
}

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(dbc dbctx.Context, user *models.User) error {
	args := m.Called(dbc, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByUsername(dbc dbctx.Context, username string) (*models.User, error) {
	return m.user(m.Called(dbc, username))
}

func (m *MockUserRepository) GetByEmail(dbc dbctx.Context, email string) (*models.User, error) {
	return m.user(m.Called(dbc, email))
}

func (m *MockUserRepository) GetByPhone(dbc dbctx.Context, phone string) (*models.User, error) {
	return m.user(m.Called(dbc, phone))
}

func (m *MockUserRepository) GetByID(dbc dbctx.Context, id string) (*models.User, error) {
	return m.user(m.Called(dbc, id))
}

func (m *MockUserRepository) user(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockOrderRepository is a mock implementation of repositories.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) order(args mock.Arguments) (*models.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) Create(dbc dbctx.Context, order *models.Order) error {
	return m.Called(dbc, order).Error(0)
}

func (m *MockOrderRepository) GetByID(dbc dbctx.Context, id string) (*models.Order, error) {
	return m.order(m.Called(dbc, id))
}

func (m *MockOrderRepository) LockByID(dbc dbctx.Context, id string) (*models.Order, error) {
	return m.order(m.Called(dbc, id))
}

func (m *MockOrderRepository) GetPendingByUser(dbc dbctx.Context, userID string) (*models.Order, error) {
	return m.order(m.Called(dbc, userID))
}

func (m *MockOrderRepository) LockPendingByUser(dbc dbctx.Context, userID string) (*models.Order, error) {
	return m.order(m.Called(dbc, userID))
}

func (m *MockOrderRepository) ListByUser(dbc dbctx.Context, userID string) ([]models.Order, error) {
	args := m.Called(dbc, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error {
	return m.Called(dbc, id, updates).Error(0)
}

func (m *MockOrderRepository) UpdateTotal(dbc dbctx.Context, id string, total decimal.Decimal) error {
	return m.Called(dbc, id, total).Error(0)
}

func (m *MockOrderRepository) UpdateStatus(dbc dbctx.Context, id string, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	args := m.Called(dbc, id, from, to)
	return args.Bool(0), args.Error(1)
}

// MockOrderItemRepository is a mock implementation of repositories.OrderItemRepository
type MockOrderItemRepository struct {
	mock.Mock
}

func (m *MockOrderItemRepository) item(args mock.Arguments) (*models.OrderItem, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderItem), args.Error(1)
}

func (m *MockOrderItemRepository) ListByOrder(dbc dbctx.Context, orderID string) ([]models.OrderItem, error) {
	args := m.Called(dbc, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderItem), args.Error(1)
}

func (m *MockOrderItemRepository) GetByID(dbc dbctx.Context, orderID, itemID string) (*models.OrderItem, error) {
	return m.item(m.Called(dbc, orderID, itemID))
}

func (m *MockOrderItemRepository) GetByOrderAndFood(dbc dbctx.Context, orderID, foodID string) (*models.OrderItem, error) {
	return m.item(m.Called(dbc, orderID, foodID))
}

func (m *MockOrderItemRepository) Create(dbc dbctx.Context, item *models.OrderItem) error {
	return m.Called(dbc, item).Error(0)
}

func (m *MockOrderItemRepository) UpdateQuantity(dbc dbctx.Context, item *models.OrderItem) error {
	return m.Called(dbc, item).Error(0)
}

func (m *MockOrderItemRepository) Delete(dbc dbctx.Context, orderID, itemID string) error {
	return m.Called(dbc, orderID, itemID).Error(0)
}

// MockFoodRepository is a mock implementation of repositories.FoodRepository
type MockFoodRepository struct {
	mock.Mock
}

func (m *MockFoodRepository) food(args mock.Arguments) (*models.Food, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Food), args.Error(1)
}

func (m *MockFoodRepository) ListAvailable(dbc dbctx.Context) ([]models.Food, error) {
	args := m.Called(dbc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Food), args.Error(1)
}

func (m *MockFoodRepository) GetByID(dbc dbctx.Context, id string) (*models.Food, error) {
	return m.food(m.Called(dbc, id))
}

func (m *MockFoodRepository) GetAvailableByID(dbc dbctx.Context, id string) (*models.Food, error) {
	return m.food(m.Called(dbc, id))
}

func (m *MockFoodRepository) Create(dbc dbctx.Context, food *models.Food) error {
	return m.Called(dbc, food).Error(0)
}

func (m *MockFoodRepository) Count(dbc dbctx.Context) (int64, error) {
	args := m.Called(dbc)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFoodRepository) GetOrCreateCategory(dbc dbctx.Context, name string) (*models.Category, error) {
	args := m.Called(dbc, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

// MockPublisher records published events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	return m.Called(ctx, event).Error(0)
}

// MockRevocationStore is a mock implementation of repositories.RevocationStore
type MockRevocationStore struct {
	mock.Mock
}

func (m *MockRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return m.Called(ctx, tokenID, ttl).Error(0)
}

func (m *MockRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}
