package repository

import (
	"context"
	"errors"
	"fmt"

	"online-shop/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const productColumns = `
	p.id, COALESCE(c.title, ''), p.title, p.description, p.price, p.sale_price,
	p.stock, p.free_delivery, p.rating, p.created_at
`

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

func scanProduct(row scanner) (model.Product, error) {
	var p model.Product
	var sale decimal.NullDecimal
	err := row.Scan(
		&p.ID,
		&p.Category,
		&p.Title,
		&p.Description,
		&p.Price,
		&sale,
		&p.Stock,
		&p.FreeDelivery,
		&p.Rating,
		&p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if sale.Valid {
		p.SalePrice = &sale.Decimal
	}
	return p, nil
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`

	return r.getOne(ctx, r.pool, query, id)
}

// GetForShare reads a product under a share lock so its stock cannot change
// until the transaction ends.
func (r *productRepository) GetForShare(ctx context.Context, tx pgx.Tx, id int64) (*model.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
		FOR SHARE OF p
	`

	return r.getOne(ctx, tx, query, id)
}

func (r *productRepository) getOne(ctx context.Context, q querier, query string, id int64) (*model.Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Int64("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return &p, nil
}

// GetByIDs retrieves multiple products by their IDs.
func (r *productRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1)
		ORDER BY p.id
	`

	return r.list(ctx, r.pool, query, ids)
}

// LockByIDs locks the product rows in ascending id order, so concurrent
// confirmations touching the same products always queue instead of deadlocking.
func (r *productRepository) LockByIDs(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]model.Product, error) {
	result := make(map[int64]model.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1)
		ORDER BY p.id
		FOR UPDATE OF p
	`

	products, err := r.list(ctx, tx, query, ids)
	if err != nil {
		return nil, err
	}

	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

func (r *productRepository) list(ctx context.Context, q querier, query string, ids []int64) ([]model.Product, error) {
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query products by IDs")
		return nil, fmt.Errorf("failed to query products by IDs: %w", err)
	}
	defer rows.Close()

	products := make([]model.Product, 0, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// DecrementStock subtracts count from the product's stock, never going below zero.
func (r *productRepository) DecrementStock(ctx context.Context, tx pgx.Tx, id int64, count int) (int, error) {
	query := `
		UPDATE products
		SET stock = GREATEST(stock - $2, 0)
		WHERE id = $1
		RETURNING stock
	`

	var remaining int
	err := tx.QueryRow(ctx, query, id, count).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrProductNotFound
		}
		r.logger.Error().
			Err(err).
			Int64("product_id", id).
			Int("count", count).
			Msg("failed to decrement stock")
		return 0, fmt.Errorf("failed to decrement stock: %w", err)
	}

	r.logger.Debug().
		Int64("product_id", id).
		Int("remaining", remaining).
		Msg("stock decremented")

	return remaining, nil
}
