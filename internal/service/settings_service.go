package service

import (
	"context"
	"fmt"
	"sync"

	"online-shop/internal/model"
	"online-shop/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// settingsService implements DeliverySettingsService with a process-wide cache.
type settingsService struct {
	repo     repository.SettingsRepository
	defaults model.DeliverySettings
	logger   zerolog.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	cached *model.DeliverySettings
}

// NewDeliverySettingsService creates the settings provider. defaults seed the
// stored row only when it does not exist yet.
func NewDeliverySettingsService(
	repo repository.SettingsRepository,
	defaults model.DeliverySettings,
	logger zerolog.Logger,
) DeliverySettingsService {
	return &settingsService{
		repo:     repo,
		defaults: defaults,
		logger:   logger.With().Str("service", "delivery_settings").Logger(),
	}
}

// Get returns the cached settings, loading them once on first use.
func (s *settingsService) Get(ctx context.Context) (model.DeliverySettings, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	v, err, _ := s.group.Do("delivery_settings", func() (any, error) {
		s.mu.RLock()
		cached := s.cached
		s.mu.RUnlock()
		if cached != nil {
			return *cached, nil
		}

		// Shared by every waiting caller; detached from this caller's cancellation.
		stored, err := s.repo.EnsureDefaults(context.WithoutCancel(ctx), s.defaults)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, fmt.Errorf("delivery settings row missing after initialisation")
		}

		s.mu.Lock()
		s.cached = stored
		s.mu.Unlock()

		s.logger.Info().
			Str("express_cost", stored.ExpressCost.String()).
			Str("regular_cost", stored.RegularCost.String()).
			Str("free_from", stored.FreeFrom.String()).
			Msg("delivery settings loaded")
		return *stored, nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load delivery settings")
		return model.DeliverySettings{}, fmt.Errorf("failed to load delivery settings: %w", err)
	}

	return v.(model.DeliverySettings), nil
}

// Update writes the settings through to storage and refreshes the cache.
func (s *settingsService) Update(ctx context.Context, settings model.DeliverySettings) (model.DeliverySettings, error) {
	if settings.ExpressCost.IsNegative() || settings.RegularCost.IsNegative() || settings.FreeFrom.IsNegative() {
		return model.DeliverySettings{}, model.NewValidationError("delivery costs must not be negative")
	}

	saved, err := s.repo.Save(ctx, settings)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to save delivery settings")
		return model.DeliverySettings{}, fmt.Errorf("failed to save delivery settings: %w", err)
	}

	s.mu.Lock()
	s.cached = saved
	s.mu.Unlock()

	s.logger.Info().
		Str("express_cost", saved.ExpressCost.String()).
		Str("regular_cost", saved.RegularCost.String()).
		Str("free_from", saved.FreeFrom.String()).
		Msg("delivery settings updated")

	return *saved, nil
}

// Invalidate drops the cached settings; the next Get reloads them.
func (s *settingsService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
