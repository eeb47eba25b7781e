package events

import (
	"context"
	"fmt"
	"time"

	"online-shop/internal/metrics"
	"online-shop/internal/model"

	"github.com/rs/zerolog"
)

// Store is the part of the outbox the relay reads and acknowledges.
type Store interface {
	FetchPending(ctx context.Context, limit int) ([]model.OutboxRecord, error)
	MarkSent(ctx context.Context, id int64) error
}

// RelayConfig controls the polling loop.
type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
	// Topic overrides the topic stored with each record when set.
	Topic string
}

// Relay publishes outbox records in insertion order. A record is marked sent
// only after the broker accepted it, so delivery is at least once.
type Relay struct {
	store     Store
	publisher Publisher
	cfg       RelayConfig
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewRelay creates a relay. metrics may be nil.
func NewRelay(store Store, publisher Publisher, cfg RelayConfig, m *metrics.Metrics, logger zerolog.Logger) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With().Str("component", "outbox_relay").Logger(),
	}
}

// Run polls the outbox until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("interval", r.cfg.Interval).
		Int("batch_size", r.cfg.BatchSize).
		Msg("outbox relay started")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		for {
			sent, err := r.RelayOnce(ctx)
			if err != nil || sent < r.cfg.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many records were sent. It
// stops at the first failure so later events never overtake earlier ones.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	records, err := r.store.FetchPending(ctx, r.cfg.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("failed to fetch pending events")
		}
		return 0, fmt.Errorf("failed to fetch pending events: %w", err)
	}

	sent := 0
	for _, rec := range records {
		topic := rec.Topic
		if r.cfg.Topic != "" {
			topic = r.cfg.Topic
		}

		if err := r.publisher.Publish(ctx, topic, rec.Key, rec.Payload); err != nil {
			r.metrics.EventRelayed("failed")
			r.logger.Warn().
				Err(err).
				Int64("outbox_id", rec.ID).
				Str("event_id", rec.EventID.String()).
				Msg("event not published, will retry")
			return sent, err
		}

		if err := r.store.MarkSent(ctx, rec.ID); err != nil {
			r.logger.Error().Err(err).Int64("outbox_id", rec.ID).Msg("failed to mark event sent")
			return sent, fmt.Errorf("failed to mark event sent: %w", err)
		}
		r.metrics.EventRelayed("sent")
		sent++
	}

	if sent > 0 {
		r.logger.Debug().Int("count", sent).Msg("events relayed")
	}
	return sent, nil
}
