package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents an item in the catalogue.
type Product struct {
	ID           int64            `json:"id" db:"id"`
	Category     string           `json:"category" db:"category"`
	Title        string           `json:"title" db:"title"`
	Description  string           `json:"description" db:"description"`
	Price        decimal.Decimal  `json:"price" db:"price"`
	SalePrice    *decimal.Decimal `json:"salePrice,omitempty" db:"sale_price"`
	Stock        int              `json:"count" db:"stock"`
	FreeDelivery bool             `json:"freeDelivery" db:"free_delivery"`
	Rating       int              `json:"rating" db:"rating"`
	CreatedAt    time.Time        `json:"date" db:"created_at"`
}

// EffectivePrice is the sale price when one is set, otherwise the standard price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}
