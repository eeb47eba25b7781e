package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"online-shop/internal/auth"
	"online-shop/internal/idempotency"
	"online-shop/internal/model"
	"online-shop/internal/service"

	"github.com/rs/zerolog"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxIdempotencyKey = 255
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service     service.OrderService
	idempotency idempotency.Store
	logger      zerolog.Logger
}

// NewOrderHandler creates a new order handler. store may be nil, in which
// case the Idempotency-Key header is ignored.
func NewOrderHandler(service service.OrderService, store idempotency.Store, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service:     service,
		idempotency: store,
		logger:      logger.With().Str("handler", "order").Logger(),
	}
}

// List handles GET /api/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), auth.UserIDFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// Create handles POST /api/orders. The body is either an order object or a
// bare array of {id, count} items.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserIDFrom(ctx)

	var req model.CreateOrderRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	key := r.Header.Get(idempotencyHeader)
	if len(key) > maxIdempotencyKey {
		writeError(w, http.StatusBadRequest, "Idempotency-Key is too long", h.logger)
		return
	}

	claimed := false
	if key != "" && h.idempotency != nil {
		stored, err := h.idempotency.Begin(ctx, userID, key)
		switch {
		case errors.Is(err, idempotency.ErrInProgress):
			writeError(w, http.StatusConflict, "a request with this Idempotency-Key is in progress", h.logger)
			return
		case err != nil:
			h.logger.Warn().Err(err).Int64("user_id", userID).Msg("idempotency store unavailable, processing without it")
		case stored != nil:
			w.Header().Set("Idempotent-Replayed", "true")
			writeRaw(w, stored.Status, stored.Body)
			return
		default:
			claimed = true
		}
	}

	resp, err := h.service.CreateOrder(ctx, userID, &req)
	if err != nil {
		if claimed {
			if err := h.idempotency.Release(ctx, userID, key); err != nil {
				h.logger.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
			}
		}
		writeServiceError(w, err, h.logger)
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if claimed {
		if err := h.idempotency.Complete(ctx, userID, key, idempotency.Response{Status: http.StatusOK, Body: body}); err != nil {
			h.logger.Warn().Err(err).Int64("order_id", resp.OrderID).Msg("failed to store idempotent response")
		}
	}
	writeRaw(w, http.StatusOK, body)
}

// Get handles GET /api/order/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, model.ErrOrderNotFound.Message, h.logger)
		return
	}

	order, err := h.service.GetOrder(r.Context(), auth.UserIDFrom(r.Context()), orderID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Confirm handles POST /api/order/{id}: applies the overrides, reserves stock
// and hands the order to the payment gateway.
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, model.ErrOrderNotFound.Message, h.logger)
		return
	}

	var req model.ConfirmOrderRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	confirmation, err := h.service.ConfirmOrder(r.Context(), auth.UserIDFrom(r.Context()), orderID, &req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, confirmation)
}
