package handler

import (
	"net/http"

	"online-shop/internal/auth"
	"online-shop/internal/model"
	"online-shop/internal/service"

	"github.com/rs/zerolog"
)

// BasketHandler serves the current customer's basket.
type BasketHandler struct {
	service service.BasketService
	logger  zerolog.Logger
}

// NewBasketHandler creates a new basket handler.
func NewBasketHandler(service service.BasketService, logger zerolog.Logger) *BasketHandler {
	return &BasketHandler{
		service: service,
		logger:  logger.With().Str("handler", "basket").Logger(),
	}
}

// Get handles GET /api/basket.
func (h *BasketHandler) Get(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.GetBasket(r.Context(), auth.UserIDFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// Add handles POST /api/basket.
func (h *BasketHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFrom(r.Context())
	if userID == 0 {
		writeServiceError(w, model.ErrNoBasket, h.logger)
		return
	}

	var req model.BasketItemRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	lines, err := h.service.AddItem(r.Context(), userID, req.ID, req.Quantity())
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// Remove handles DELETE /api/basket.
func (h *BasketHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFrom(r.Context())
	if userID == 0 {
		writeServiceError(w, model.ErrNoBasket, h.logger)
		return
	}

	var req model.BasketItemRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	lines, err := h.service.RemoveItem(r.Context(), userID, req.ID, req.Quantity())
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}
