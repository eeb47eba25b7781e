package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const maxResponseBytes = 1 << 20

// HTTPGateway talks to a JSON payment API.
type HTTPGateway struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPGateway creates a gateway that POSTs payment requests to url. Each
// call is bounded by timeout.
func NewHTTPGateway(url string, timeout time.Duration, logger zerolog.Logger) *HTTPGateway {
	return &HTTPGateway{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "payment-gateway").Logger(),
	}
}

type paymentAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type createPaymentBody struct {
	Amount      paymentAmount `json:"amount"`
	OrderID     int64         `json:"order_id"`
	UserID      int64         `json:"user_id"`
	Description string        `json:"description,omitempty"`
}

type createPaymentReply struct {
	ID              string `json:"id"`
	ConfirmationURL string `json:"confirmation_url"`
	Confirmation    *struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// CreatePayment registers the payment. Any failure is reported as
// ErrGatewayUnavailable wrapping the cause.
func (g *HTTPGateway) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	body, err := json.Marshal(createPaymentBody{
		Amount: paymentAmount{
			Value:    req.Amount.StringFixed(2),
			Currency: req.Currency,
		},
		OrderID:     req.OrderID,
		UserID:      req.UserID,
		Description: req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %v", ErrGatewayUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", ErrGatewayUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", "order-"+strconv.FormatInt(req.OrderID, 10))

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.Warn().
			Err(err).
			Int64("order_id", req.OrderID).
			Dur("elapsed", time.Since(start)).
			Msg("payment request failed")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn().
			Int64("order_id", req.OrderID).
			Int("status", resp.StatusCode).
			Msg("payment gateway rejected request")
		return nil, fmt.Errorf("%w: unexpected status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var reply createPaymentReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrGatewayUnavailable, err)
	}

	confirmationURL := reply.ConfirmationURL
	if reply.Confirmation != nil && reply.Confirmation.ConfirmationURL != "" {
		confirmationURL = reply.Confirmation.ConfirmationURL
	}
	if confirmationURL == "" {
		return nil, fmt.Errorf("%w: response has no confirmation url", ErrGatewayUnavailable)
	}

	g.logger.Debug().
		Int64("order_id", req.OrderID).
		Str("payment_id", reply.ID).
		Dur("elapsed", time.Since(start)).
		Msg("payment created")

	return &PaymentResult{
		PaymentID:       reply.ID,
		ConfirmationURL: confirmationURL,
	}, nil
}

// Close releases idle connections.
func (g *HTTPGateway) Close() {
	g.client.CloseIdleConnections()
}
