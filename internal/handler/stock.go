package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultHistoryDays = 30
	maxHistoryRows     = 500
)

// StockServicer defines the service methods needed by stock handlers.
// Satisfied by *service.StockService; narrow interface for testability.
type StockServicer interface {
	AdjustStock(ctx context.Context, req service.AdjustStockRequest) (database.Ingredient, error)
}

// StockHistoryStore defines the database methods needed to read the ledger.
// Satisfied by *database.Queries; narrow interface for testability.
type StockHistoryStore interface {
	ListStockAdjustments(ctx context.Context, arg database.ListStockAdjustmentsParams) ([]database.ListStockAdjustmentsRow, error)
}

// StockHandler handles manual adjustments and the adjustment history.
type StockHandler struct {
	svc   StockServicer
	store StockHistoryStore
	now   func() time.Time
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(svc StockServicer, store StockHistoryStore) *StockHandler {
	return &StockHandler{svc: svc, store: store, now: time.Now}
}

// RegisterRoutes registers stock endpoints. Expected to be mounted at /stock
// behind RequireRole(manager).
func (h *StockHandler) RegisterRoutes(r chi.Router) {
	r.Post("/adjust", h.Adjust)
	r.Get("/adjustments", h.History)
}

// --- Request / Response types ---

type adjustStockRequest struct {
	IngredientID   string `json:"ingredient_id" validate:"required,uuid"`
	QuantityChange string `json:"quantity_change" validate:"required,numeric"`
	Reason         string `json:"reason" validate:"required"`
}

type adjustStockResponse struct {
	IngredientID   uuid.UUID `json:"ingredient_id"`
	Name           string    `json:"name"`
	Unit           string    `json:"unit"`
	QuantityChange string    `json:"quantity_change"`
	CurrentStock   string    `json:"current_stock"`
	ReorderLevel   string    `json:"reorder_level"`
	IsLowStock     bool      `json:"is_low_stock"`
}

type stockAdjustmentResponse struct {
	ID                 uuid.UUID `json:"id"`
	IngredientID       uuid.UUID `json:"ingredient_id"`
	IngredientName     string    `json:"ingredient_name"`
	Unit               string    `json:"unit"`
	AdjustmentType     string    `json:"adjustment_type"`
	QuantityChange     string    `json:"quantity_change"`
	Reason             string    `json:"reason"`
	OrderID            *string   `json:"order_id"`
	AdjustedBy         uuid.UUID `json:"adjusted_by"`
	AdjustedByUsername string    `json:"adjusted_by_username"`
	CreatedAt          time.Time `json:"created_at"`
}

// --- Handlers ---

// Adjust handles POST /stock/adjust.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req adjustStockRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	change, err := parseQuantity("quantity_change", req.QuantityChange)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ing, err := h.svc.AdjustStock(r.Context(), service.AdjustStockRequest{
		IngredientID:   uuid.MustParse(req.IngredientID),
		QuantityChange: change,
		Reason:         req.Reason,
		Actor:          actor,
	})
	if err != nil {
		writeServiceError(w, "adjust stock", err)
		return
	}

	writeJSON(w, http.StatusOK, adjustStockResponse{
		IngredientID:   ing.ID,
		Name:           ing.Name,
		Unit:           ing.Unit,
		QuantityChange: change.String(),
		CurrentStock:   quantityToString(ing.CurrentStock),
		ReorderLevel:   quantityToString(ing.ReorderLevel),
		IsLowStock:     numericToDecimal(ing.CurrentStock).LessThanOrEqual(numericToDecimal(ing.ReorderLevel)),
	})
}

// History handles GET /stock/adjustments?ingredient_id=&days=30, newest first.
func (h *StockHandler) History(w http.ResponseWriter, r *http.Request) {
	ingredientID, err := optionalUUID(r.URL.Query().Get("ingredient_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient_id"})
		return
	}

	days := defaultHistoryDays
	if s := r.URL.Query().Get("days"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be a positive integer"})
			return
		}
		days = v
	}

	rows, err := h.store.ListStockAdjustments(r.Context(), database.ListStockAdjustmentsParams{
		IngredientID: ingredientID,
		Since:        h.now().AddDate(0, 0, -days),
		Limit:        maxHistoryRows,
	})
	if err != nil {
		writeInternalError(w, "list stock adjustments", err)
		return
	}

	resp := make([]stockAdjustmentResponse, len(rows))
	for i, row := range rows {
		resp[i] = stockAdjustmentResponse{
			ID:                 row.ID,
			IngredientID:       row.IngredientID,
			IngredientName:     row.IngredientName,
			Unit:               row.Unit,
			AdjustmentType:     adjustmentType(row),
			QuantityChange:     quantityToString(row.QuantityChange),
			Reason:             row.Reason,
			OrderID:            uuidPtr(row.OrderID),
			AdjustedBy:         row.AdjustedBy,
			AdjustedByUsername: row.AdjustedByUsername,
			CreatedAt:          row.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// adjustmentType labels a ledger row: order-linked rows first, then by the
// words used in the reason.
func adjustmentType(row database.ListStockAdjustmentsRow) string {
	if row.OrderID.Valid {
		return enum.AdjustmentTypeOrder
	}
	reason := strings.ToLower(row.Reason)
	switch {
	case strings.Contains(reason, "restock"):
		return enum.AdjustmentTypeRestock
	case strings.Contains(reason, "waste"), strings.Contains(reason, "loss"):
		return enum.AdjustmentTypeWaste
	}
	return enum.AdjustmentTypeManual
}
