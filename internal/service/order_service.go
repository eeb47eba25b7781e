package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"online-shop/internal/metrics"
	"online-shop/internal/model"
	"online-shop/internal/payment"
	"online-shop/internal/pricing"
	"online-shop/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OrderDeps are the collaborators of the order service. Outbox and Metrics
// are optional.
type OrderDeps struct {
	Orders         repository.OrderRepository
	Products       repository.ProductRepository
	Baskets        repository.BasketRepository
	Users          repository.UserRepository
	Outbox         repository.OutboxRepository
	Settings       DeliverySettingsService
	Gateway        payment.Gateway
	Currency       string
	PaymentTimeout time.Duration
	Metrics        *metrics.Metrics
}

// orderService implements OrderService.
type orderService struct {
	orderRepo      repository.OrderRepository
	productRepo    repository.ProductRepository
	basketRepo     repository.BasketRepository
	userRepo       repository.UserRepository
	outboxRepo     repository.OutboxRepository
	settings       DeliverySettingsService
	gateway        payment.Gateway
	currency       string
	paymentTimeout time.Duration
	metrics        *metrics.Metrics
	logger         zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(deps OrderDeps, logger zerolog.Logger) OrderService {
	return &orderService{
		orderRepo:      deps.Orders,
		productRepo:    deps.Products,
		basketRepo:     deps.Baskets,
		userRepo:       deps.Users,
		outboxRepo:     deps.Outbox,
		settings:       deps.Settings,
		gateway:        deps.Gateway,
		currency:       deps.Currency,
		paymentTimeout: deps.PaymentTimeout,
		metrics:        deps.Metrics,
		logger:         logger.With().Str("service", "order").Logger(),
	}
}

// CreateOrder prices the basket (or the legacy item list) and stores the order.
// Basket entries are locked for the duration of the transaction and exactly
// those entries are consumed.
func (s *orderService) CreateOrder(ctx context.Context, userID int64, req *model.CreateOrderRequest) (*model.CreateOrderResponse, error) {
	if userID == 0 {
		return nil, model.ErrNoBasket
	}
	if req == nil {
		req = &model.CreateOrderRequest{}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	profile, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to load user profile")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if profile == nil {
		profile = &model.User{ID: userID}
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			rollback(ctx, tx, s.logger)
		}
	}()

	var lines []pricing.Line
	var consumed []int64
	if req.FromBasket() {
		entries, err := s.basketRepo.LockEntries(ctx, tx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		for _, e := range entries {
			lines = append(lines, pricing.Line{ProductID: e.ProductID, Count: e.Count})
			consumed = append(consumed, e.ProductID)
		}
	} else {
		for _, item := range req.Items {
			lines = append(lines, pricing.Line{ProductID: item.ID, Count: item.Quantity()})
		}
	}

	prices, err := s.priceLookup(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	quote := pricing.QuoteOrder(lines, prices, req.DeliveryType, settings)
	if len(quote.Skipped) > 0 {
		s.logger.Debug().
			Int64("user_id", userID).
			Interface("product_ids", quote.Skipped).
			Msg("skipping unknown products")
	}

	status := model.OrderStatus(req.Status)
	if status == "" || status.IsTerminal() {
		status = model.StatusAccepted
	}

	order := &model.Order{
		UserID:       userID,
		FullName:     profile.FullName,
		Email:        profile.Email,
		Phone:        profile.Phone,
		DeliveryType: req.DeliveryType,
		PaymentType:  req.PaymentType,
		DeliveryCost: quote.DeliveryCost,
		TotalCost:    quote.Total,
		Status:       status,
		City:         req.City,
		Address:      req.Address,
	}

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for i := range quote.Items {
		quote.Items[i].OrderID = order.ID
	}
	if err := s.orderRepo.CreateOrderItems(ctx, tx, quote.Items); err != nil {
		return nil, fmt.Errorf("failed to create order items: %w", err)
	}
	order.Items = quote.Items

	if len(consumed) > 0 {
		if _, err := s.basketRepo.DeleteProducts(ctx, tx, userID, consumed, nil); err != nil {
			return nil, fmt.Errorf("failed to clear basket: %w", err)
		}
	}

	if err := s.emit(ctx, tx, model.EventOrderCreated, order, ""); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Int64("order_id", order.ID).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	committed = true
	s.metrics.OrderCreated()

	s.logger.Info().
		Int64("order_id", order.ID).
		Int64("user_id", userID).
		Int("item_count", len(order.Items)).
		Str("total_cost", order.TotalCost.String()).
		Bool("from_basket", req.FromBasket()).
		Msg("order created successfully")

	return &model.CreateOrderResponse{OrderID: order.ID}, nil
}

// priceLookup resolves the current effective price of every product referenced by lines.
func (s *orderService) priceLookup(ctx context.Context, lines []pricing.Line) (map[int64]decimal.Decimal, error) {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}

	prices := make(map[int64]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to load product prices")
		return nil, err
	}
	for i := range products {
		prices[products[i].ID] = products[i].EffectivePrice()
	}
	return prices, nil
}

// ListOrders returns the user's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns the order when it exists and belongs to the user.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order == nil || order.UserID != userID {
		s.logger.Debug().Int64("order_id", orderID).Int64("user_id", userID).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}

	return order, nil
}

// ConfirmOrder moves an accepted order to confirmed. The order row and the
// product rows stay locked until commit, so two confirmations never deduct
// the same stock. Out of stock and payment failures cancel the order.
func (s *orderService) ConfirmOrder(ctx context.Context, userID, orderID int64, req *model.ConfirmOrderRequest) (*model.Confirmation, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			rollback(ctx, tx, s.logger)
		}
	}()

	order, err := s.orderRepo.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, model.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(model.StatusConfirmed) {
		s.logger.Info().
			Int64("order_id", orderID).
			Str("status", string(order.Status)).
			Msg("order cannot be confirmed")
		return nil, model.ErrOrderConflict
	}

	ids := productIDs(order.Items)
	products, err := s.productRepo.LockByIDs(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	for _, item := range order.Items {
		product, ok := products[item.ProductID]
		if ok && product.Stock >= item.Count {
			continue
		}
		title := item.Title
		if ok {
			title = product.Title
		}

		s.logger.Info().
			Int64("order_id", orderID).
			Int64("product_id", item.ProductID).
			Int("requested", item.Count).
			Int("stock", product.Stock).
			Msg("insufficient stock, canceling order")

		if err := s.cancel(ctx, tx, order, "insufficient stock"); err != nil {
			return nil, err
		}
		committed = true
		s.metrics.ConfirmResult("out_of_stock")
		return nil, model.NewInsufficientStockError(title)
	}

	previousDelivery := order.DeliveryType
	req.Apply(order)
	if order.DeliveryType != previousDelivery {
		pricing.Reprice(order, settings)
	}

	result, err := s.createPayment(ctx, order)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("order_id", order.ID).
			Int64("user_id", userID).
			Str("total_cost", order.TotalCost.String()).
			Msg("payment creation failed, canceling order")

		if err := s.cancel(ctx, tx, order, "payment failed"); err != nil {
			return nil, err
		}
		committed = true
		s.metrics.ConfirmResult("payment_failed")
		return nil, model.ErrPaymentUnavailable
	}

	for _, item := range order.Items {
		if _, err := s.productRepo.DecrementStock(ctx, tx, item.ProductID, item.Count); err != nil {
			return nil, fmt.Errorf("failed to deduct stock: %w", err)
		}
	}

	createdAt := order.CreatedAt
	if _, err := s.basketRepo.DeleteProducts(ctx, tx, userID, ids, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to clear basket: %w", err)
	}

	order.Status = model.StatusConfirmed
	order.PaymentID = result.PaymentID
	order.ConfirmationURL = result.ConfirmationURL
	if err := s.orderRepo.Update(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	if err := s.emit(ctx, tx, model.EventOrderConfirmed, order, ""); err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().
			Err(err).
			Int64("order_id", order.ID).
			Str("payment_id", result.PaymentID).
			Msg("payment created but order confirmation was not committed")
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}
	committed = true
	s.metrics.ConfirmResult("confirmed")

	s.logger.Info().
		Int64("order_id", order.ID).
		Int64("user_id", userID).
		Str("payment_id", result.PaymentID).
		Str("total_cost", order.TotalCost.String()).
		Msg("order confirmed")

	return &model.Confirmation{
		OrderID:         order.ID,
		ConfirmationURL: result.ConfirmationURL,
	}, nil
}

func (s *orderService) createPayment(ctx context.Context, order *model.Order) (*payment.PaymentResult, error) {
	if s.paymentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.paymentTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.gateway.CreatePayment(ctx, payment.PaymentRequest{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Amount:      order.TotalCost,
		Currency:    s.currency,
		Description: "Order " + strconv.FormatInt(order.ID, 10),
	})
	s.metrics.ObservePayment(time.Since(start))
	return result, err
}

// cancel marks the order canceled and commits tx.
func (s *orderService) cancel(ctx context.Context, tx pgx.Tx, order *model.Order, reason string) error {
	order.Status = model.StatusCanceled
	if err := s.orderRepo.Update(ctx, tx, order); err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if err := s.emit(ctx, tx, model.EventOrderCanceled, order, reason); err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Int64("order_id", order.ID).Msg("failed to commit cancellation")
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	s.logger.Info().
		Int64("order_id", order.ID).
		Str("reason", reason).
		Msg("order canceled")
	return nil
}

// emit records an order event in the outbox within tx.
func (s *orderService) emit(ctx context.Context, tx pgx.Tx, eventType string, order *model.Order, reason string) error {
	if s.outboxRepo == nil {
		return nil
	}
	event := model.NewOrderEvent(eventType, order, reason)
	return s.outboxRepo.Insert(ctx, tx, event.EventID, model.OrderEventsTopic, strconv.FormatInt(order.ID, 10), event)
}

// productIDs returns the distinct product ids of items in ascending order.
func productIDs(items []model.OrderItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
