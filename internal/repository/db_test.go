package repository

import (
	"context"
	"testing"
	"time"

	"online-shop/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL testcontainer, applies the migrations and
// returns a connection pool.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, database.Migrate(ctx, pool, zerolog.Nop()))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func seedUser(t *testing.T, pool *pgxpool.Pool, email, fullName, phone string) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email, full_name, phone) VALUES ($1, $2, $3) RETURNING id`,
		email, fullName, phone,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, title string, price string, salePrice *string, stock int) int64 {
	t.Helper()

	var sale any
	if salePrice != nil {
		sale = decimal.RequireFromString(*salePrice)
	}

	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO products (title, price, sale_price, stock) VALUES ($1, $2, $3, $4) RETURNING id`,
		title, decimal.RequireFromString(price), sale, stock,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func stockOf(t *testing.T, pool *pgxpool.Pool, productID int64) int {
	t.Helper()

	var stock int
	err := pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	require.NoError(t, err)
	return stock
}

func TestMigrate_IsIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	// Running again applies nothing and does not fail.
	require.NoError(t, database.Migrate(context.Background(), pool, zerolog.Nop()))

	var tables int
	err := pool.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name IN ('users', 'products', 'basket_items', 'orders', 'order_items', 'delivery_settings', 'outbox')
	`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 7, tables)
}

func TestTransactor_RollbackDiscardsWrites(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewBasketRepository(pool, zerolog.Nop())
	userID := seedUser(t, pool, "rollback@example.com", "", "")
	productID := seedProduct(t, pool, "Lamp", "10.00", nil, 5)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	_, err = repo.Increment(ctx, tx, userID, productID, 2)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	lines, err := repo.List(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
