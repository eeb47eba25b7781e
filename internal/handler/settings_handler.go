package handler

import (
	"net/http"

	"online-shop/internal/model"
	"online-shop/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettingsHandler exposes the delivery settings to administrators.
type SettingsHandler struct {
	service service.DeliverySettingsService
	logger  zerolog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(service service.DeliverySettingsService, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger.With().Str("handler", "settings").Logger(),
	}
}

// Get handles GET /api/admin/delivery-settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Get(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Update handles PUT /api/admin/delivery-settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.DeliverySettingsRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	settings, err := parseSettings(req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	saved, err := h.service.Update(r.Context(), settings)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	h.logger.Info().
		Str("express_cost", saved.ExpressCost.String()).
		Str("regular_cost", saved.RegularCost.String()).
		Str("free_from", saved.FreeFrom.String()).
		Msg("delivery settings updated")
	writeJSON(w, http.StatusOK, saved)
}

func parseSettings(req model.DeliverySettingsRequest) (model.DeliverySettings, error) {
	var s model.DeliverySettings
	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"expressCost", req.ExpressCost, &s.ExpressCost},
		{"regularCost", req.RegularCost, &s.RegularCost},
		{"freeFrom", req.FreeFrom, &s.FreeFrom},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return s, model.NewValidationError(f.name + " must be a number")
		}
		*f.dst = d
	}
	return s, nil
}
