package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// checkoutSessions is the part of the Stripe client used by StripeGateway.
type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeGateway creates Stripe Checkout Sessions. The session URL is the
// confirmation handle.
type StripeGateway struct {
	sessions   checkoutSessions
	successURL string
	cancelURL  string
	logger     zerolog.Logger
}

// NewStripeGateway creates a gateway using the given secret key.
func NewStripeGateway(secretKey, successURL, cancelURL string, logger zerolog.Logger) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return newStripeGateway(sc.CheckoutSessions, successURL, cancelURL, logger)
}

func newStripeGateway(sessions checkoutSessions, successURL, cancelURL string, logger zerolog.Logger) *StripeGateway {
	return &StripeGateway{
		sessions:   sessions,
		successURL: successURL,
		cancelURL:  cancelURL,
		logger:     logger.With().Str("component", "stripe-gateway").Logger(),
	}
}

// CreatePayment opens a one-line checkout session for the order total.
func (g *StripeGateway) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	orderID := strconv.FormatInt(req.OrderID, 10)
	description := req.Description
	if description == "" {
		description = "Order " + orderID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
					UnitAmount: stripe.Int64(req.Amount.Shift(2).Round(0).IntPart()),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"order_id": orderID,
			"user_id":  strconv.FormatInt(req.UserID, 10),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("order-" + orderID)

	session, err := g.sessions.New(params)
	if err != nil {
		g.logger.Warn().Err(err).Int64("order_id", req.OrderID).Msg("failed to create checkout session")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if session.URL == "" {
		return nil, fmt.Errorf("%w: checkout session has no url", ErrGatewayUnavailable)
	}

	return &PaymentResult{
		PaymentID:       session.ID,
		ConfirmationURL: session.URL,
	}, nil
}
