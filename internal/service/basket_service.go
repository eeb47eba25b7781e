package service

import (
	"context"
	"fmt"

	"online-shop/internal/model"
	"online-shop/internal/repository"

	"github.com/rs/zerolog"
)

// basketService implements BasketService.
type basketService struct {
	basketRepo  repository.BasketRepository
	productRepo repository.ProductRepository
	logger      zerolog.Logger
}

// NewBasketService creates a new basket service.
func NewBasketService(
	basketRepo repository.BasketRepository,
	productRepo repository.ProductRepository,
	logger zerolog.Logger,
) BasketService {
	return &basketService{
		basketRepo:  basketRepo,
		productRepo: productRepo,
		logger:      logger.With().Str("service", "basket").Logger(),
	}
}

// GetBasket returns the user's pending lines.
func (s *basketService) GetBasket(ctx context.Context, userID int64) ([]model.BasketLine, error) {
	if userID == 0 {
		return nil, model.ErrNoBasket
	}

	lines, err := s.basketRepo.List(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to list basket")
		return nil, fmt.Errorf("failed to get basket: %w", err)
	}
	return lines, nil
}

// AddItem increments the entry for productID. The product row is share
// locked so the stock check and the increment see the same stock level.
func (s *basketService) AddItem(ctx context.Context, userID, productID int64, count int) ([]model.BasketLine, error) {
	if userID == 0 {
		return nil, model.ErrNoBasket
	}
	if count <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	tx, err := s.basketRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to add basket item: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			rollback(ctx, tx, s.logger)
		}
	}()

	product, err := s.productRepo.GetForShare(ctx, tx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to add basket item: %w", err)
	}
	if product == nil {
		s.logger.Debug().Int64("product_id", productID).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	total, err := s.basketRepo.Increment(ctx, tx, userID, productID, count)
	if err != nil {
		return nil, fmt.Errorf("failed to add basket item: %w", err)
	}

	if total > product.Stock {
		s.logger.Info().
			Int64("user_id", userID).
			Int64("product_id", productID).
			Int("requested", total).
			Int("stock", product.Stock).
			Msg("basket quantity exceeds stock")
		return nil, model.NewInsufficientStockError(product.Title)
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to add basket item: %w", err)
	}
	committed = true

	s.logger.Debug().
		Int64("user_id", userID).
		Int64("product_id", productID).
		Int("count", total).
		Msg("basket item added")

	return s.GetBasket(ctx, userID)
}

// RemoveItem decrements the entry, deleting it when count covers the whole quantity.
func (s *basketService) RemoveItem(ctx context.Context, userID, productID int64, count int) ([]model.BasketLine, error) {
	if userID == 0 {
		return nil, model.ErrNoBasket
	}
	if count <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	tx, err := s.basketRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to remove basket item: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			rollback(ctx, tx, s.logger)
		}
	}()

	entry, err := s.basketRepo.LockEntry(ctx, tx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove basket item: %w", err)
	}
	if entry == nil {
		return nil, model.ErrBasketItemNotFound
	}

	if count >= entry.Count {
		err = s.basketRepo.Delete(ctx, tx, userID, productID)
	} else {
		err = s.basketRepo.SetCount(ctx, tx, userID, productID, entry.Count-count)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove basket item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to remove basket item: %w", err)
	}
	committed = true

	return s.GetBasket(ctx, userID)
}
