package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryTypeExpress is the only delivery type priced separately; every
// other value is charged as regular delivery.
const DeliveryTypeExpress = "express"

// DeliverySettings holds the shipping cost tiers and the free-delivery threshold.
type DeliverySettings struct {
	ExpressCost decimal.Decimal `json:"expressCost" db:"express_cost"`
	RegularCost decimal.Decimal `json:"regularCost" db:"regular_cost"`
	FreeFrom    decimal.Decimal `json:"freeFrom" db:"free_from"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// DefaultDeliverySettings returns the tiers used when nothing else is configured.
func DefaultDeliverySettings() DeliverySettings {
	return DeliverySettings{
		ExpressCost: decimal.NewFromInt(500),
		RegularCost: decimal.NewFromInt(200),
		FreeFrom:    decimal.NewFromInt(2000),
	}
}

// DeliverySettingsRequest is the admin payload for replacing the settings.
type DeliverySettingsRequest struct {
	ExpressCost string `json:"expressCost" validate:"required,numeric"`
	RegularCost string `json:"regularCost" validate:"required,numeric"`
	FreeFrom    string `json:"freeFrom" validate:"required,numeric"`
}
