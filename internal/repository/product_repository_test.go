package repository

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepository_GetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProductRepository(pool, zerolog.Nop())
	ctx := context.Background()

	sale := "80.00"
	onSale := seedProduct(t, pool, "Kettle", "100.00", &sale, 3)
	regular := seedProduct(t, pool, "Toaster", "55.50", nil, 7)

	tests := []struct {
		name      string
		id        int64
		wantFound bool
		wantPrice string
		wantStock int
	}{
		{name: "Sale price wins", id: onSale, wantFound: true, wantPrice: "80", wantStock: 3},
		{name: "Standard price", id: regular, wantFound: true, wantPrice: "55.5", wantStock: 7},
		{name: "Unknown product", id: 999999, wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := repo.GetByID(ctx, tt.id)
			require.NoError(t, err)

			if !tt.wantFound {
				assert.Nil(t, p)
				return
			}

			require.NotNil(t, p)
			assert.Equal(t, tt.id, p.ID)
			assert.True(t, decimal.RequireFromString(tt.wantPrice).Equal(p.EffectivePrice()), "got %s", p.EffectivePrice())
			assert.Equal(t, tt.wantStock, p.Stock)
		})
	}
}

func TestProductRepository_GetByIDs(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProductRepository(pool, zerolog.Nop())
	ctx := context.Background()

	a := seedProduct(t, pool, "A", "1.00", nil, 1)
	b := seedProduct(t, pool, "B", "2.00", nil, 1)

	products, err := repo.GetByIDs(ctx, []int64{b, 424242, a})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, a, products[0].ID)
	assert.Equal(t, b, products[1].ID)

	empty, err := repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProductRepository_LockAndDecrement(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProductRepository(pool, zerolog.Nop())
	orders := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	id := seedProduct(t, pool, "Chair", "30.00", nil, 3)

	tx, err := orders.BeginTx(ctx)
	require.NoError(t, err)

	locked, err := repo.LockByIDs(ctx, tx, []int64{id})
	require.NoError(t, err)
	require.Contains(t, locked, id)
	assert.Equal(t, 3, locked[id].Stock)

	remaining, err := repo.DecrementStock(ctx, tx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	// Stock never goes below zero.
	remaining, err = repo.DecrementStock(ctx, tx, id, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, 0, stockOf(t, pool, id))
}

func TestProductRepository_DecrementUnknownProduct(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProductRepository(pool, zerolog.Nop())
	orders := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	tx, err := orders.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = repo.DecrementStock(ctx, tx, 123456, 1)
	require.Error(t, err)
}
