package handler

import (
	"context"
	"net/http"

	"online-shop/internal/auth"
	"online-shop/internal/idempotency"
	"online-shop/internal/model"

	"github.com/stretchr/testify/mock"
)

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

// MockBasketService is a mock implementation of BasketService.
type MockBasketService struct {
	mock.Mock
}

func (m *MockBasketService) GetBasket(ctx context.Context, userID int64) ([]model.BasketLine, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BasketLine), args.Error(1)
}

func (m *MockBasketService) AddItem(ctx context.Context, userID, productID int64, count int) ([]model.BasketLine, error) {
	args := m.Called(ctx, userID, productID, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BasketLine), args.Error(1)
}

func (m *MockBasketService) RemoveItem(ctx context.Context, userID, productID int64, count int) ([]model.BasketLine, error) {
	args := m.Called(ctx, userID, productID, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BasketLine), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, userID int64, req *model.CreateOrderRequest) (*model.CreateOrderResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreateOrderResponse), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) ConfirmOrder(ctx context.Context, userID, orderID int64, req *model.ConfirmOrderRequest) (*model.Confirmation, error) {
	args := m.Called(ctx, userID, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Confirmation), args.Error(1)
}

// MockSettingsService is a mock implementation of DeliverySettingsService.
type MockSettingsService struct {
	mock.Mock
}

func (m *MockSettingsService) Get(ctx context.Context) (model.DeliverySettings, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.DeliverySettings), args.Error(1)
}

func (m *MockSettingsService) Update(ctx context.Context, s model.DeliverySettings) (model.DeliverySettings, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(model.DeliverySettings), args.Error(1)
}

func (m *MockSettingsService) Invalidate() {
	m.Called()
}

// MockIdempotencyStore is a mock implementation of idempotency.Store.
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Begin(ctx context.Context, userID int64, key string) (*idempotency.Response, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idempotency.Response), args.Error(1)
}

func (m *MockIdempotencyStore) Complete(ctx context.Context, userID int64, key string, resp idempotency.Response) error {
	return m.Called(ctx, userID, key, resp).Error(0)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, userID int64, key string) error {
	return m.Called(ctx, userID, key).Error(0)
}

// asUser attaches a customer id to the request the way the session middleware does.
func asUser(r *http.Request, userID int64) *http.Request {
	return r.WithContext(auth.WithUserID(r.Context(), userID))
}
