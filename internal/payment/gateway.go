// Package payment creates payments at an external provider and returns the
// handle the customer follows to pay.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrGatewayUnavailable is returned for every failed payment creation:
// transport errors, timeouts, non-2xx responses and malformed replies.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// PaymentRequest describes the amount to collect for an order.
type PaymentRequest struct {
	OrderID     int64
	UserID      int64
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// PaymentResult identifies the created payment.
type PaymentResult struct {
	PaymentID       string
	ConfirmationURL string
}

// Gateway creates payments.
type Gateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
}
