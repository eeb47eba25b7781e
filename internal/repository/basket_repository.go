package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"online-shop/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// basketRepository implements the BasketRepository interface using PostgreSQL.
type basketRepository struct {
	transactor
}

// NewBasketRepository creates a new PostgreSQL-backed basket repository.
func NewBasketRepository(pool *pgxpool.Pool, logger zerolog.Logger) BasketRepository {
	return &basketRepository{
		transactor: transactor{
			pool:   pool,
			logger: logger.With().Str("repository", "basket").Logger(),
		},
	}
}

// List returns the user's basket with each product's current effective price.
func (r *basketRepository) List(ctx context.Context, userID int64) ([]model.BasketLine, error) {
	query := `
		SELECT p.id, COALESCE(c.title, ''), p.title, p.description,
		       COALESCE(p.sale_price, p.price), b.count, p.free_delivery, p.rating, p.created_at
		FROM basket_items b
		JOIN products p ON p.id = b.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE b.user_id = $1
		ORDER BY p.id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to query basket")
		return nil, fmt.Errorf("failed to query basket: %w", err)
	}
	defer rows.Close()

	lines := []model.BasketLine{}
	for rows.Next() {
		var l model.BasketLine
		err := rows.Scan(
			&l.ID,
			&l.Category,
			&l.Title,
			&l.Description,
			&l.Price,
			&l.Count,
			&l.FreeDelivery,
			&l.Rating,
			&l.Date,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan basket row")
			return nil, fmt.Errorf("failed to scan basket line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating basket rows")
		return nil, fmt.Errorf("error iterating basket: %w", err)
	}

	return lines, nil
}

// LockEntries returns and locks every entry of the user's basket.
func (r *basketRepository) LockEntries(ctx context.Context, tx pgx.Tx, userID int64) ([]model.BasketEntry, error) {
	query := `
		SELECT user_id, product_id, count, added_at
		FROM basket_items
		WHERE user_id = $1
		ORDER BY product_id
		FOR UPDATE
	`

	rows, err := tx.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to lock basket")
		return nil, fmt.Errorf("failed to lock basket: %w", err)
	}
	defer rows.Close()

	var entries []model.BasketEntry
	for rows.Next() {
		var e model.BasketEntry
		if err := rows.Scan(&e.UserID, &e.ProductID, &e.Count, &e.AddedAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan basket entry")
			return nil, fmt.Errorf("failed to scan basket entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating basket entries: %w", err)
	}

	return entries, nil
}

// LockEntry returns and locks a single entry.
func (r *basketRepository) LockEntry(ctx context.Context, tx pgx.Tx, userID, productID int64) (*model.BasketEntry, error) {
	query := `
		SELECT user_id, product_id, count, added_at
		FROM basket_items
		WHERE user_id = $1 AND product_id = $2
		FOR UPDATE
	`

	var e model.BasketEntry
	err := tx.QueryRow(ctx, query, userID, productID).Scan(&e.UserID, &e.ProductID, &e.Count, &e.AddedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Int64("product_id", productID).
			Msg("failed to lock basket entry")
		return nil, fmt.Errorf("failed to lock basket entry: %w", err)
	}

	return &e, nil
}

// Increment adds count to the entry in one statement, so concurrent adds for
// the same product never lose an update.
func (r *basketRepository) Increment(ctx context.Context, tx pgx.Tx, userID, productID int64, count int) (int, error) {
	query := `
		INSERT INTO basket_items (user_id, product_id, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET count = basket_items.count + EXCLUDED.count
		RETURNING count
	`

	var total int
	if err := tx.QueryRow(ctx, query, userID, productID, count).Scan(&total); err != nil {
		r.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Int64("product_id", productID).
			Msg("failed to add to basket")
		return 0, fmt.Errorf("failed to add to basket: %w", err)
	}

	return total, nil
}

// SetCount overwrites the quantity of an existing entry.
func (r *basketRepository) SetCount(ctx context.Context, tx pgx.Tx, userID, productID int64, count int) error {
	query := `UPDATE basket_items SET count = $3 WHERE user_id = $1 AND product_id = $2`

	if _, err := tx.Exec(ctx, query, userID, productID, count); err != nil {
		r.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Int64("product_id", productID).
			Msg("failed to update basket entry")
		return fmt.Errorf("failed to update basket entry: %w", err)
	}
	return nil
}

// Delete removes one entry.
func (r *basketRepository) Delete(ctx context.Context, tx pgx.Tx, userID, productID int64) error {
	query := `DELETE FROM basket_items WHERE user_id = $1 AND product_id = $2`

	if _, err := tx.Exec(ctx, query, userID, productID); err != nil {
		r.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Int64("product_id", productID).
			Msg("failed to delete basket entry")
		return fmt.Errorf("failed to delete basket entry: %w", err)
	}
	return nil
}

// DeleteProducts removes the user's entries for productIDs, optionally only
// those added at or before addedBefore.
func (r *basketRepository) DeleteProducts(ctx context.Context, tx pgx.Tx, userID int64, productIDs []int64, addedBefore *time.Time) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}

	query := `
		DELETE FROM basket_items
		WHERE user_id = $1
		  AND product_id = ANY($2)
		  AND ($3::timestamptz IS NULL OR added_at <= $3)
	`

	tag, err := tx.Exec(ctx, query, userID, productIDs, addedBefore)
	if err != nil {
		r.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Int("products", len(productIDs)).
			Msg("failed to clear basket entries")
		return 0, fmt.Errorf("failed to clear basket entries: %w", err)
	}

	r.logger.Debug().
		Int64("user_id", userID).
		Int64("deleted", tag.RowsAffected()).
		Msg("basket entries cleared")

	return tag.RowsAffected(), nil
}
