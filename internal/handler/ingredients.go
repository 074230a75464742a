package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cafe-pos/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// IngredientStore defines the database methods needed by ingredient handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type IngredientStore interface {
	ListIngredients(ctx context.Context, isActive pgtype.Bool) ([]database.Ingredient, error)
	ListLowStockIngredients(ctx context.Context) ([]database.Ingredient, error)
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	CreateIngredient(ctx context.Context, arg database.CreateIngredientParams) (database.Ingredient, error)
	UpdateIngredient(ctx context.Context, arg database.UpdateIngredientParams) (database.Ingredient, error)
	SoftDeleteIngredient(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// IngredientHandler handles ingredient endpoints. Stock levels only change
// through orders and the stock adjustment endpoint.
type IngredientHandler struct {
	store IngredientStore
}

// NewIngredientHandler creates a new IngredientHandler.
func NewIngredientHandler(store IngredientStore) *IngredientHandler {
	return &IngredientHandler{store: store}
}

// RegisterRoutes registers the read endpoints. Expected to be mounted at /ingredients.
func (h *IngredientHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/low-stock", h.LowStock)
	r.Get("/{id}", h.Get)
}

// RegisterManagerRoutes registers the write endpoints.
func (h *IngredientHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createIngredientRequest struct {
	Name           string  `json:"name" validate:"required,max=100"`
	Unit           string  `json:"unit" validate:"required,max=20"`
	CurrentStock   string  `json:"current_stock" validate:"omitempty,numeric"`
	ReorderLevel   string  `json:"reorder_level" validate:"omitempty,numeric"`
	CostPerUnitUsd *string `json:"cost_per_unit_usd" validate:"omitempty,numeric"`
}

type updateIngredientRequest struct {
	Name           string  `json:"name" validate:"required,max=100"`
	Unit           string  `json:"unit" validate:"required,max=20"`
	ReorderLevel   string  `json:"reorder_level" validate:"omitempty,numeric"`
	CostPerUnitUsd *string `json:"cost_per_unit_usd" validate:"omitempty,numeric"`
	IsActive       *bool   `json:"is_active"`
}

type ingredientResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Unit           string    `json:"unit"`
	CurrentStock   string    `json:"current_stock"`
	ReorderLevel   string    `json:"reorder_level"`
	CostPerUnitUsd *string   `json:"cost_per_unit_usd"`
	IsActive       bool      `json:"is_active"`
	IsLowStock     bool      `json:"is_low_stock"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// --- Handlers ---

// List handles GET /ingredients?active=.
func (h *IngredientHandler) List(w http.ResponseWriter, r *http.Request) {
	var active pgtype.Bool
	if s := r.URL.Query().Get("active"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "active must be true or false"})
			return
		}
		active = pgtype.Bool{Bool: b, Valid: true}
	}

	ingredients, err := h.store.ListIngredients(r.Context(), active)
	if err != nil {
		writeInternalError(w, "list ingredients", err)
		return
	}
	writeJSON(w, http.StatusOK, toIngredientResponses(ingredients))
}

// LowStock handles GET /ingredients/low-stock.
func (h *IngredientHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.store.ListLowStockIngredients(r.Context())
	if err != nil {
		writeInternalError(w, "list low stock ingredients", err)
		return
	}
	writeJSON(w, http.StatusOK, toIngredientResponses(ingredients))
}

// Get handles GET /ingredients/{id}.
func (h *IngredientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "ingredient")
	if !ok {
		return
	}

	ing, err := h.store.GetIngredient(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		writeInternalError(w, "get ingredient", err)
		return
	}
	writeJSON(w, http.StatusOK, toIngredientResponse(ing))
}

// Create handles POST /ingredients.
func (h *IngredientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createIngredientRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	stock, err := nonNegativeQuantity("current_stock", req.CurrentStock)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	reorder, err := nonNegativeQuantity("reorder_level", req.ReorderLevel)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	cost, err := optionalMoney("cost_per_unit_usd", req.CostPerUnitUsd)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ing, err := h.store.CreateIngredient(r.Context(), database.CreateIngredientParams{
		Name:           strings.TrimSpace(req.Name),
		Unit:           strings.TrimSpace(req.Unit),
		CurrentStock:   stock,
		ReorderLevel:   reorder,
		CostPerUnitUsd: cost,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "ingredient name already exists"})
			return
		}
		writeInternalError(w, "create ingredient", err)
		return
	}

	writeJSON(w, http.StatusCreated, toIngredientResponse(ing))
}

// Update handles PUT /ingredients/{id}. current_stock is not writable here.
func (h *IngredientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "ingredient")
	if !ok {
		return
	}

	var req updateIngredientRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	reorder, err := nonNegativeQuantity("reorder_level", req.ReorderLevel)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	cost, err := optionalMoney("cost_per_unit_usd", req.CostPerUnitUsd)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ing, err := h.store.UpdateIngredient(r.Context(), database.UpdateIngredientParams{
		ID:             id,
		Name:           strings.TrimSpace(req.Name),
		Unit:           strings.TrimSpace(req.Unit),
		ReorderLevel:   reorder,
		CostPerUnitUsd: cost,
		IsActive:       active,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "ingredient name already exists"})
			return
		}
		writeInternalError(w, "update ingredient", err)
		return
	}

	writeJSON(w, http.StatusOK, toIngredientResponse(ing))
}

// Delete handles DELETE /ingredients/{id} as a soft delete.
func (h *IngredientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "ingredient")
	if !ok {
		return
	}

	if _, err := h.store.SoftDeleteIngredient(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		writeInternalError(w, "delete ingredient", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func nonNegativeQuantity(field, s string) (pgtype.Numeric, error) {
	if s == "" {
		return toNumeric("0"), nil
	}
	d, err := parseQuantity(field, s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, errors.New(field + " must be >= 0")
	}
	return toNumeric(d.String()), nil
}

func optionalMoney(field string, s *string) (pgtype.Numeric, error) {
	if s == nil || *s == "" {
		return pgtype.Numeric{}, nil
	}
	return parseMoney(field, *s)
}

func toIngredientResponse(i database.Ingredient) ingredientResponse {
	return ingredientResponse{
		ID:             i.ID,
		Name:           i.Name,
		Unit:           i.Unit,
		CurrentStock:   quantityToString(i.CurrentStock),
		ReorderLevel:   quantityToString(i.ReorderLevel),
		CostPerUnitUsd: nullableNumericToString(i.CostPerUnitUsd),
		IsActive:       i.IsActive,
		IsLowStock:     numericToDecimal(i.CurrentStock).LessThanOrEqual(numericToDecimal(i.ReorderLevel)),
		UpdatedAt:      i.UpdatedAt,
	}
}

func toIngredientResponses(ingredients []database.Ingredient) []ingredientResponse {
	resp := make([]ingredientResponse, len(ingredients))
	for i, ing := range ingredients {
		resp[i] = toIngredientResponse(ing)
	}
	return resp
}
