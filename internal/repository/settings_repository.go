package repository

import (
	"context"
	"errors"
	"fmt"

	"online-shop/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type settingsRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewSettingsRepository creates a repository for the delivery settings row.
func NewSettingsRepository(pool *pgxpool.Pool, logger zerolog.Logger) SettingsRepository {
	return &settingsRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "settings").Logger(),
	}
}

func (r *settingsRepository) Get(ctx context.Context) (*model.DeliverySettings, error) {
	query := `
		SELECT express_cost, regular_cost, free_from, updated_at
		FROM delivery_settings
		WHERE id = 1
	`

	var s model.DeliverySettings
	err := r.pool.QueryRow(ctx, query).Scan(&s.ExpressCost, &s.RegularCost, &s.FreeFrom, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("failed to query delivery settings")
		return nil, fmt.Errorf("failed to query delivery settings: %w", err)
	}

	return &s, nil
}

// EnsureDefaults inserts the singleton row when it is missing. The primary
// key makes concurrent callers converge on one row.
func (r *settingsRepository) EnsureDefaults(ctx context.Context, defaults model.DeliverySettings) (*model.DeliverySettings, error) {
	query := `
		INSERT INTO delivery_settings (id, express_cost, regular_cost, free_from)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, defaults.ExpressCost, defaults.RegularCost, defaults.FreeFrom)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to create delivery settings")
		return nil, fmt.Errorf("failed to create delivery settings: %w", err)
	}

	if tag.RowsAffected() > 0 {
		r.logger.Info().
			Str("express_cost", defaults.ExpressCost.String()).
			Str("regular_cost", defaults.RegularCost.String()).
			Str("free_from", defaults.FreeFrom.String()).
			Msg("delivery settings created from defaults")
	}

	return r.Get(ctx)
}

func (r *settingsRepository) Save(ctx context.Context, settings model.DeliverySettings) (*model.DeliverySettings, error) {
	query := `
		INSERT INTO delivery_settings (id, express_cost, regular_cost, free_from)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET express_cost = EXCLUDED.express_cost,
		    regular_cost = EXCLUDED.regular_cost,
		    free_from = EXCLUDED.free_from,
		    updated_at = NOW()
		RETURNING express_cost, regular_cost, free_from, updated_at
	`

	var s model.DeliverySettings
	err := r.pool.QueryRow(ctx, query, settings.ExpressCost, settings.RegularCost, settings.FreeFrom).
		Scan(&s.ExpressCost, &s.RegularCost, &s.FreeFrom, &s.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to save delivery settings")
		return nil, fmt.Errorf("failed to save delivery settings: %w", err)
	}

	return &s, nil
}
