package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BasketEntry is a pending (user, product, quantity) row.
type BasketEntry struct {
	UserID    int64     `json:"-" db:"user_id"`
	ProductID int64     `json:"id" db:"product_id"`
	Count     int       `json:"count" db:"count"`
	AddedAt   time.Time `json:"-" db:"added_at"`
}

// BasketLine is a basket entry rendered with its product. Count is the
// basket quantity, not the stock level.
type BasketLine struct {
	ID           int64           `json:"id"`
	Category     string          `json:"category"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Count        int             `json:"count"`
	FreeDelivery bool            `json:"freeDelivery"`
	Rating       int             `json:"rating"`
	Date         time.Time       `json:"date"`
}

// BasketItemRequest is the body of POST and DELETE /api/basket.
// Count defaults to 1 when omitted.
type BasketItemRequest struct {
	ID    int64 `json:"id" validate:"required,gt=0"`
	Count *int  `json:"count,omitempty" validate:"omitempty,gt=0"`
}

// Quantity returns the requested count with its default applied.
func (r *BasketItemRequest) Quantity() int {
	if r.Count == nil {
		return 1
	}
	return *r.Count
}
