package service

import (
	"context"
	"errors"

	"online-shop/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ProductService defines read access to the catalogue.
type ProductService interface {
	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id int64) (*model.Product, error)
}

// BasketService manages the pending basket of an authenticated user.
// A zero userID means the caller is anonymous.
type BasketService interface {
	// GetBasket returns the pending lines ordered by product id.
	GetBasket(ctx context.Context, userID int64) ([]model.BasketLine, error)

	// AddItem adds count units of a product and returns the updated basket.
	AddItem(ctx context.Context, userID, productID int64, count int) ([]model.BasketLine, error)

	// RemoveItem removes count units of a product and returns the updated basket.
	RemoveItem(ctx context.Context, userID, productID int64, count int) ([]model.BasketLine, error)
}

// OrderService drives the order lifecycle.
type OrderService interface {
	// CreateOrder prices and persists an order from the basket or from the
	// items carried by the request.
	CreateOrder(ctx context.Context, userID int64, req *model.CreateOrderRequest) (*model.CreateOrderResponse, error)

	// ListOrders returns the user's orders, newest first.
	ListOrders(ctx context.Context, userID int64) ([]model.Order, error)

	// GetOrder returns one of the user's orders.
	GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error)

	// ConfirmOrder checks stock, takes payment and deducts inventory.
	ConfirmOrder(ctx context.Context, userID, orderID int64, req *model.ConfirmOrderRequest) (*model.Confirmation, error)
}

// DeliverySettingsService provides the current delivery tiers.
type DeliverySettingsService interface {
	// Get returns the settings, creating the stored row from defaults on first use.
	Get(ctx context.Context) (model.DeliverySettings, error)

	// Update replaces the stored settings.
	Update(ctx context.Context, settings model.DeliverySettings) (model.DeliverySettings, error)

	// Invalidate drops the cached copy.
	Invalidate()
}

// rollback aborts tx, ignoring the error of an already finished transaction.
func rollback(ctx context.Context, tx pgx.Tx, logger zerolog.Logger) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.Error().Err(err).Msg("failed to rollback transaction")
	}
}
