package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cafe-pos/api/internal/currency"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
)

// SettingsStore defines the database methods needed by settings handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SettingsStore interface {
	ListSystemSettings(ctx context.Context) ([]database.SystemSetting, error)
}

// SettingsServicer defines the service methods needed by settings handlers.
// Satisfied by *service.SettingsService.
type SettingsServicer interface {
	Converter(ctx context.Context) (currency.Converter, error)
	UpdateExchangeRate(ctx context.Context, req service.UpdateExchangeRateRequest) (currency.Converter, error)
}

// SettingsHandler exposes the system settings and the currency settings used
// for new orders.
type SettingsHandler struct {
	store SettingsStore
	svc   SettingsServicer
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store SettingsStore, svc SettingsServicer) *SettingsHandler {
	return &SettingsHandler{store: store, svc: svc}
}

// RegisterRoutes registers the read endpoints. Expected to be mounted at /settings.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/exchange-rate", h.GetExchangeRate)
}

// RegisterManagerRoutes registers the write endpoints.
func (h *SettingsHandler) RegisterManagerRoutes(r chi.Router) {
	r.Put("/exchange-rate", h.UpdateExchangeRate)
}

// --- Request / Response types ---

type settingResponse struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description *string   `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type exchangeRateRequest struct {
	ExchangeRate   string `json:"usd_to_lbp_exchange_rate" validate:"required,numeric"`
	RoundingFactor *int64 `json:"lbp_rounding_factor" validate:"omitempty,gte=0"`
}

type exchangeRateResponse struct {
	ExchangeRate   string `json:"usd_to_lbp_exchange_rate"`
	RoundingFactor int64  `json:"lbp_rounding_factor"`
}

// --- Handlers ---

// List handles GET /settings.
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.ListSystemSettings(r.Context())
	if err != nil {
		writeInternalError(w, "list settings", err)
		return
	}

	resp := make([]settingResponse, len(settings))
	for i, s := range settings {
		resp[i] = settingResponse{
			Key:         s.Key,
			Value:       s.Value,
			Description: textPtr(s.Description),
			UpdatedAt:   s.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetExchangeRate handles GET /settings/exchange-rate. Missing rows report the
// configured defaults.
func (h *SettingsHandler) GetExchangeRate(w http.ResponseWriter, r *http.Request) {
	conv, err := h.svc.Converter(r.Context())
	if err != nil {
		writeServiceError(w, "get exchange rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toExchangeRateResponse(conv))
}

// UpdateExchangeRate handles PUT /settings/exchange-rate. Orders already
// placed keep their captured rate.
func (h *SettingsHandler) UpdateExchangeRate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req exchangeRateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	factor := int64(0)
	if req.RoundingFactor != nil {
		factor = *req.RoundingFactor
	} else {
		current, err := h.svc.Converter(r.Context())
		if err != nil {
			writeServiceError(w, "get exchange rate", err)
			return
		}
		factor = current.Granularity
	}

	conv, err := h.svc.UpdateExchangeRate(r.Context(), service.UpdateExchangeRateRequest{
		ExchangeRate:   req.ExchangeRate,
		RoundingFactor: factor,
		Actor:          actor,
	})
	if err != nil {
		writeServiceError(w, "update exchange rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toExchangeRateResponse(conv))
}

// --- Helpers ---

func toExchangeRateResponse(c currency.Converter) exchangeRateResponse {
	return exchangeRateResponse{
		ExchangeRate:   c.Rate.String(),
		RoundingFactor: c.Granularity,
	}
}
