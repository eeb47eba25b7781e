package repository

import (
	"context"
	"time"

	"online-shop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Transactor starts transactions for services that write in several statements.
type Transactor interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// ProductRepository is the catalogue accessor: prices, stock and stock deduction.
type ProductRepository interface {
	// GetByID retrieves a single product. Returns nil when it does not exist.
	GetByID(ctx context.Context, id int64) (*model.Product, error)

	// GetByIDs retrieves the products that exist among ids.
	GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error)

	// GetForShare reads a product and holds a share lock on it until tx ends.
	GetForShare(ctx context.Context, tx pgx.Tx, id int64) (*model.Product, error)

	// LockByIDs locks the product rows for update in ascending id order.
	LockByIDs(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]model.Product, error)

	// DecrementStock subtracts count from the stock, flooring at zero, and
	// returns the remaining stock.
	DecrementStock(ctx context.Context, tx pgx.Tx, id int64, count int) (int, error)
}

// BasketRepository stores pending basket entries.
type BasketRepository interface {
	Transactor

	// List returns the user's basket rendered with current product data.
	List(ctx context.Context, userID int64) ([]model.BasketLine, error)

	// LockEntries returns and locks every basket entry of the user.
	LockEntries(ctx context.Context, tx pgx.Tx, userID int64) ([]model.BasketEntry, error)

	// LockEntry returns and locks one entry. Returns nil when it does not exist.
	LockEntry(ctx context.Context, tx pgx.Tx, userID, productID int64) (*model.BasketEntry, error)

	// Increment adds count to the entry, creating it when missing, and returns the new quantity.
	Increment(ctx context.Context, tx pgx.Tx, userID, productID int64, count int) (int, error)

	// SetCount overwrites the quantity of an existing entry.
	SetCount(ctx context.Context, tx pgx.Tx, userID, productID int64, count int) error

	// Delete removes one entry.
	Delete(ctx context.Context, tx pgx.Tx, userID, productID int64) error

	// DeleteProducts removes the user's entries for the given products. When
	// addedBefore is set only entries added at or before it are removed.
	DeleteProducts(ctx context.Context, tx pgx.Tx, userID int64, productIDs []int64, addedBefore *time.Time) (int64, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	Transactor

	// CreateOrder inserts a new order and fills in its ID and timestamps.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts the order's line items and fills in their IDs.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// GetByID retrieves an order with its items. Returns nil when it does not exist.
	GetByID(ctx context.Context, id int64) (*model.Order, error)

	// ListByUser returns the user's orders, newest first, with their items.
	ListByUser(ctx context.Context, userID int64) ([]model.Order, error)

	// GetForUpdate locks the order row and returns it with its items.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*model.Order, error)

	// Update persists the mutable fields and status of an order.
	Update(ctx context.Context, tx pgx.Tx, order *model.Order) error
}

// UserRepository reads customer profiles.
type UserRepository interface {
	// GetByID returns the profile or nil when the user has none.
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// SettingsRepository stores the singleton delivery settings row.
type SettingsRepository interface {
	// Get returns the stored settings or nil when the row does not exist yet.
	Get(ctx context.Context) (*model.DeliverySettings, error)

	// EnsureDefaults creates the row from defaults unless it exists and returns the stored row.
	EnsureDefaults(ctx context.Context, defaults model.DeliverySettings) (*model.DeliverySettings, error)

	// Save replaces the stored settings.
	Save(ctx context.Context, settings model.DeliverySettings) (*model.DeliverySettings, error)
}

// OutboxRepository stores events for asynchronous publication.
type OutboxRepository interface {
	// Insert records an event inside the caller's transaction.
	Insert(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, topic, key string, payload any) error

	// FetchPending returns unsent events in insertion order.
	FetchPending(ctx context.Context, limit int) ([]model.OutboxRecord, error)

	// MarkSent flags an event as published.
	MarkSent(ctx context.Context, id int64) error
}
