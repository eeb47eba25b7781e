package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"online-shop/internal/model"
	"online-shop/internal/payment"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	orders   *MockOrderRepository
	products *MockProductRepository
	baskets  *MockBasketRepository
	users    *MockUserRepository
	outbox   *MockOutboxRepository
	settings *MockSettingsService
	gateway  *MockGateway
	tx       *MockTx
	svc      OrderService
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		orders:   new(MockOrderRepository),
		products: new(MockProductRepository),
		baskets:  new(MockBasketRepository),
		users:    new(MockUserRepository),
		outbox:   new(MockOutboxRepository),
		settings: new(MockSettingsService),
		gateway:  new(MockGateway),
		tx:       new(MockTx),
	}
	f.svc = NewOrderService(OrderDeps{
		Orders:   f.orders,
		Products: f.products,
		Baskets:  f.baskets,
		Users:    f.users,
		Outbox:   f.outbox,
		Settings: f.settings,
		Gateway:  f.gateway,
		Currency: "RUB",
	}, zerolog.Nop())
	f.settings.On("Get", mock.Anything).Return(model.DefaultDeliverySettings(), nil)
	return f
}

func (f *orderFixture) assertAll(t *testing.T) {
	t.Helper()
	f.orders.AssertExpectations(t)
	f.products.AssertExpectations(t)
	f.baskets.AssertExpectations(t)
	f.outbox.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.tx.AssertExpectations(t)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func eventOfType(eventType string) any {
	return mock.MatchedBy(func(e model.OrderEvent) bool { return e.Type == eventType })
}

func TestOrderService_CreateOrder_FromBasketFreeDelivery(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.users.On("GetByID", ctx, int64(7)).Return(&model.User{ID: 7, FullName: "Ivan", Email: "ivan@example.com", Phone: "+7"}, nil)
	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.baskets.On("LockEntries", ctx, f.tx, int64(7)).Return([]model.BasketEntry{{UserID: 7, ProductID: 1, Count: 3}}, nil)
	f.products.On("GetByIDs", ctx, []int64{1}).Return([]model.Product{{ID: 1, Price: dec("1000")}}, nil)
	f.orders.On("CreateOrder", ctx, f.tx, mock.MatchedBy(func(o *model.Order) bool {
		return o.TotalCost.Equal(dec("3000")) &&
			o.DeliveryCost.IsZero() &&
			o.Status == model.StatusAccepted &&
			o.FullName == "Ivan" &&
			o.Email == "ivan@example.com"
	})).Run(func(args mock.Arguments) {
		args.Get(2).(*model.Order).ID = 10
	}).Return(nil)
	f.orders.On("CreateOrderItems", ctx, f.tx, mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 1 && items[0].OrderID == 10 && items[0].Count == 3 && items[0].Price.Equal(dec("1000"))
	})).Return(nil)
	f.baskets.On("DeleteProducts", ctx, f.tx, int64(7), []int64{1}, (*time.Time)(nil)).Return(int64(1), nil)
	f.outbox.On("Insert", ctx, f.tx, mock.Anything, model.OrderEventsTopic, "10", eventOfType(model.EventOrderCreated)).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	resp, err := f.svc.CreateOrder(ctx, 7, &model.CreateOrderRequest{DeliveryType: "regular"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), resp.OrderID)
	assert.False(t, f.tx.rolledBack)
	f.assertAll(t)
}

func TestOrderService_CreateOrder_LegacyArrayExpress(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.users.On("GetByID", ctx, int64(7)).Return(nil, nil)
	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.products.On("GetByIDs", ctx, []int64{5}).Return([]model.Product{{ID: 5, Price: dec("100")}}, nil)
	f.orders.On("CreateOrder", ctx, f.tx, mock.MatchedBy(func(o *model.Order) bool {
		return o.TotalCost.Equal(dec("600")) && o.DeliveryCost.Equal(dec("500")) && o.FullName == ""
	})).Run(func(args mock.Arguments) {
		args.Get(2).(*model.Order).ID = 11
	}).Return(nil)
	f.orders.On("CreateOrderItems", ctx, f.tx, mock.AnythingOfType("[]model.OrderItem")).Return(nil)
	f.outbox.On("Insert", ctx, f.tx, mock.Anything, model.OrderEventsTopic, "11", eventOfType(model.EventOrderCreated)).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	req := &model.CreateOrderRequest{
		DeliveryType: model.DeliveryTypeExpress,
		Items:        []model.OrderItemRequest{{ID: 5}},
	}
	resp, err := f.svc.CreateOrder(ctx, 7, req)
	require.NoError(t, err)
	assert.Equal(t, int64(11), resp.OrderID)

	f.baskets.AssertNotCalled(t, "LockEntries", mock.Anything, mock.Anything, mock.Anything)
	f.baskets.AssertNotCalled(t, "DeleteProducts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestOrderService_CreateOrder_EmptyBasketIsFree(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.users.On("GetByID", ctx, int64(7)).Return(&model.User{ID: 7}, nil)
	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.baskets.On("LockEntries", ctx, f.tx, int64(7)).Return([]model.BasketEntry{}, nil)
	f.orders.On("CreateOrder", ctx, f.tx, mock.MatchedBy(func(o *model.Order) bool {
		return o.TotalCost.IsZero() && o.DeliveryCost.IsZero()
	})).Return(nil)
	f.orders.On("CreateOrderItems", ctx, f.tx, []model.OrderItem{}).Return(nil)
	f.outbox.On("Insert", ctx, f.tx, mock.Anything, model.OrderEventsTopic, mock.Anything, mock.Anything).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	_, err := f.svc.CreateOrder(ctx, 7, &model.CreateOrderRequest{DeliveryType: "express"})
	require.NoError(t, err)

	f.products.AssertNotCalled(t, "GetByIDs", mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestOrderService_CreateOrder_InitialStatus(t *testing.T) {
	tests := []struct {
		requested string
		want      model.OrderStatus
	}{
		{requested: "", want: model.StatusAccepted},
		{requested: "processing", want: "processing"},
		{requested: "confirmed", want: model.StatusAccepted},
		{requested: "paid", want: model.StatusAccepted},
		{requested: "canceled", want: model.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run("status "+tt.requested, func(t *testing.T) {
			ctx := context.Background()
			f := newOrderFixture()

			f.users.On("GetByID", ctx, int64(7)).Return(nil, nil)
			f.orders.On("BeginTx", ctx).Return(f.tx, nil)
			f.baskets.On("LockEntries", ctx, f.tx, int64(7)).Return([]model.BasketEntry{}, nil)
			f.orders.On("CreateOrder", ctx, f.tx, mock.MatchedBy(func(o *model.Order) bool {
				return o.Status == tt.want
			})).Return(nil)
			f.orders.On("CreateOrderItems", ctx, f.tx, mock.Anything).Return(nil)
			f.outbox.On("Insert", ctx, f.tx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
			f.tx.On("Commit", ctx).Return(nil)

			_, err := f.svc.CreateOrder(ctx, 7, &model.CreateOrderRequest{Status: tt.requested})
			require.NoError(t, err)
			f.assertAll(t)
		})
	}
}

func TestOrderService_CreateOrder_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.users.On("GetByID", ctx, int64(7)).Return(nil, nil)
	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.baskets.On("LockEntries", ctx, f.tx, int64(7)).Return([]model.BasketEntry{{ProductID: 1, Count: 1}}, nil)
	f.products.On("GetByIDs", ctx, []int64{1}).Return([]model.Product{{ID: 1, Price: dec("10")}}, nil)
	f.orders.On("CreateOrder", ctx, f.tx, mock.Anything).Return(errors.New("insert failed"))
	f.tx.On("Rollback", ctx).Return(nil)

	_, err := f.svc.CreateOrder(ctx, 7, &model.CreateOrderRequest{})
	require.Error(t, err)
	assert.True(t, f.tx.rolledBack)
	assert.False(t, f.tx.committed)
	f.baskets.AssertNotCalled(t, "DeleteProducts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_CreateOrder_Anonymous(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.CreateOrder(context.Background(), 0, &model.CreateOrderRequest{})
	assert.ErrorIs(t, err, model.ErrNoBasket)
	f.orders.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestOrderService_GetOrder(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	own := &model.Order{ID: 1, UserID: 7, Items: []model.OrderItem{}}
	foreign := &model.Order{ID: 2, UserID: 8, Items: []model.OrderItem{}}
	f.orders.On("GetByID", ctx, int64(1)).Return(own, nil)
	f.orders.On("GetByID", ctx, int64(2)).Return(foreign, nil)
	f.orders.On("GetByID", ctx, int64(3)).Return(nil, nil)

	got, err := f.svc.GetOrder(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, own, got)

	_, err = f.svc.GetOrder(ctx, 7, 2)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	_, err = f.svc.GetOrder(ctx, 7, 3)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestOrderService_ListOrders(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orders := []model.Order{{ID: 2, UserID: 7}, {ID: 1, UserID: 7}}
	f.orders.On("ListByUser", ctx, int64(7)).Return(orders, nil)

	got, err := f.svc.ListOrders(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, orders, got)
}

func acceptedOrder(createdAt time.Time) *model.Order {
	return &model.Order{
		ID:           10,
		UserID:       7,
		CreatedAt:    createdAt,
		DeliveryType: "regular",
		DeliveryCost: dec("200"),
		TotalCost:    dec("400"),
		Status:       model.StatusAccepted,
		Items: []model.OrderItem{
			{OrderID: 10, ProductID: 1, Count: 2, Price: dec("100"), Title: "Lamp"},
		},
	}
}

func TestOrderService_ConfirmOrder_Success(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.orders.On("GetForUpdate", ctx, f.tx, int64(10)).Return(acceptedOrder(createdAt), nil)
	f.products.On("LockByIDs", ctx, f.tx, []int64{1}).Return(map[int64]model.Product{1: {ID: 1, Title: "Lamp", Stock: 5}}, nil)
	f.gateway.On("CreatePayment", mock.Anything, mock.MatchedBy(func(r payment.PaymentRequest) bool {
		// express re-pricing: 200 subtotal + 500 delivery
		return r.OrderID == 10 && r.UserID == 7 && r.Amount.Equal(dec("700")) && r.Currency == "RUB"
	})).Return(&payment.PaymentResult{PaymentID: "pay_10", ConfirmationURL: "https://pay.example.com/10"}, nil)
	f.products.On("DecrementStock", ctx, f.tx, int64(1), 2).Return(3, nil)
	f.baskets.On("DeleteProducts", ctx, f.tx, int64(7), []int64{1}, &createdAt).Return(int64(0), nil)
	f.orders.On("Update", ctx, f.tx, mock.MatchedBy(func(o *model.Order) bool {
		return o.Status == model.StatusConfirmed &&
			o.PaymentID == "pay_10" &&
			o.DeliveryType == model.DeliveryTypeExpress &&
			o.City == "Kazan" &&
			o.TotalCost.Equal(dec("700"))
	})).Return(nil)
	f.outbox.On("Insert", ctx, f.tx, mock.Anything, model.OrderEventsTopic, "10", eventOfType(model.EventOrderConfirmed)).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	express := model.DeliveryTypeExpress
	city := "Kazan"
	got, err := f.svc.ConfirmOrder(ctx, 7, 10, &model.ConfirmOrderRequest{DeliveryType: &express, City: &city})
	require.NoError(t, err)
	assert.Equal(t, &model.Confirmation{OrderID: 10, ConfirmationURL: "https://pay.example.com/10"}, got)
	assert.False(t, f.tx.rolledBack)
	f.assertAll(t)
}

func TestOrderService_ConfirmOrder_InsufficientStockCancels(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.orders.On("GetForUpdate", ctx, f.tx, int64(10)).Return(acceptedOrder(time.Now()), nil)
	f.products.On("LockByIDs", ctx, f.tx, []int64{1}).Return(map[int64]model.Product{1: {ID: 1, Title: "Lamp", Stock: 1}}, nil)
	f.orders.On("Update", ctx, f.tx, mock.MatchedBy(func(o *model.Order) bool {
		return o.Status == model.StatusCanceled
	})).Return(nil)
	f.outbox.On("Insert", ctx, f.tx, mock.Anything, model.OrderEventsTopic, "10", eventOfType(model.EventOrderCanceled)).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	_, err := f.svc.ConfirmOrder(ctx, 7, 10, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInsufficientStock)
	assert.Contains(t, err.Error(), `"Lamp"`)

	f.gateway.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
	f.products.AssertNotCalled(t, "DecrementStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestOrderService_ConfirmOrder_PaymentFailureCancels(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.orders.On("GetForUpdate", ctx, f.tx, int64(10)).Return(acceptedOrder(time.Now()), nil)
	f.products.On("LockByIDs", ctx, f.tx, []int64{1}).Return(map[int64]model.Product{1: {ID: 1, Stock: 5}}, nil)
	f.gateway.On("CreatePayment", mock.Anything, mock.Anything).
		Return(nil, errors.New("payment gateway unavailable: unexpected status 503"))
	f.orders.On("Update", ctx, f.tx, mock.MatchedBy(func(o *model.Order) bool {
		return o.Status == model.StatusCanceled && o.PaymentID == ""
	})).Return(nil)
	f.outbox.On("Insert", ctx, f.tx, mock.Anything, model.OrderEventsTopic, "10", eventOfType(model.EventOrderCanceled)).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	_, err := f.svc.ConfirmOrder(ctx, 7, 10, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPaymentUnavailable)
	assert.NotContains(t, err.Error(), "503")

	f.products.AssertNotCalled(t, "DecrementStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.baskets.AssertNotCalled(t, "DeleteProducts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestOrderService_ConfirmOrder_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		stored  *model.Order
		wantErr error
	}{
		{name: "Missing order", stored: nil, wantErr: model.ErrOrderNotFound},
		{name: "Foreign order", stored: &model.Order{ID: 10, UserID: 8, Status: model.StatusAccepted}, wantErr: model.ErrOrderNotFound},
		{name: "Already confirmed", stored: &model.Order{ID: 10, UserID: 7, Status: model.StatusConfirmed}, wantErr: model.ErrOrderConflict},
		{name: "Already canceled", stored: &model.Order{ID: 10, UserID: 7, Status: model.StatusCanceled}, wantErr: model.ErrOrderConflict},
		{name: "Paid", stored: &model.Order{ID: 10, UserID: 7, Status: model.StatusPaid}, wantErr: model.ErrOrderConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newOrderFixture()

			f.orders.On("BeginTx", ctx).Return(f.tx, nil)
			if tt.stored == nil {
				f.orders.On("GetForUpdate", ctx, f.tx, int64(10)).Return(nil, nil)
			} else {
				f.orders.On("GetForUpdate", ctx, f.tx, int64(10)).Return(tt.stored, nil)
			}
			f.tx.On("Rollback", ctx).Return(nil)

			_, err := f.svc.ConfirmOrder(ctx, 7, 10, nil)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, f.tx.rolledBack)
			assert.False(t, f.tx.committed)
			f.products.AssertNotCalled(t, "LockByIDs", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOrderService_ConfirmOrder_KeepsPriceWithoutDeliveryChange(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	stored := acceptedOrder(time.Now())
	// A settings change after creation must not reprice the order.
	f.settings.ExpectedCalls = nil
	f.settings.On("Get", mock.Anything).Return(model.DeliverySettings{
		ExpressCost: dec("1"), RegularCost: dec("1"), FreeFrom: dec("1"),
	}, nil)

	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.orders.On("GetForUpdate", ctx, f.tx, int64(10)).Return(stored, nil)
	f.products.On("LockByIDs", ctx, f.tx, []int64{1}).Return(map[int64]model.Product{1: {ID: 1, Stock: 2}}, nil)
	f.gateway.On("CreatePayment", mock.Anything, mock.MatchedBy(func(r payment.PaymentRequest) bool {
		return r.Amount.Equal(dec("400"))
	})).Return(&payment.PaymentResult{PaymentID: "p", ConfirmationURL: "u"}, nil)
	f.products.On("DecrementStock", ctx, f.tx, int64(1), 2).Return(0, nil)
	f.baskets.On("DeleteProducts", ctx, f.tx, int64(7), []int64{1}, mock.Anything).Return(int64(0), nil)
	f.orders.On("Update", ctx, f.tx, mock.Anything).Return(nil)
	f.outbox.On("Insert", ctx, f.tx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	regular := "regular"
	_, err := f.svc.ConfirmOrder(ctx, 7, 10, &model.ConfirmOrderRequest{DeliveryType: &regular})
	require.NoError(t, err)
	f.assertAll(t)
}

func TestOrderService_WithoutOutbox(t *testing.T) {
	ctx := context.Background()
	orders := new(MockOrderRepository)
	baskets := new(MockBasketRepository)
	users := new(MockUserRepository)
	settings := new(MockSettingsService)
	tx := new(MockTx)

	svc := NewOrderService(OrderDeps{
		Orders:   orders,
		Products: new(MockProductRepository),
		Baskets:  baskets,
		Users:    users,
		Settings: settings,
		Gateway:  new(MockGateway),
	}, zerolog.Nop())

	settings.On("Get", mock.Anything).Return(model.DefaultDeliverySettings(), nil)
	users.On("GetByID", ctx, int64(7)).Return(nil, nil)
	orders.On("BeginTx", ctx).Return(tx, nil)
	baskets.On("LockEntries", ctx, tx, int64(7)).Return([]model.BasketEntry{}, nil)
	orders.On("CreateOrder", ctx, tx, mock.Anything).Return(nil)
	orders.On("CreateOrderItems", ctx, tx, mock.Anything).Return(nil)
	tx.On("Commit", ctx).Return(nil)

	_, err := svc.CreateOrder(ctx, 7, nil)
	require.NoError(t, err)
	tx.AssertExpectations(t)
}
