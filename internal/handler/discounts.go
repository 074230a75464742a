package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DiscountServicer defines the service methods needed to apply discounts.
// Satisfied by *service.DiscountService; narrow interface for testability.
type DiscountServicer interface {
	ApplyToOrder(ctx context.Context, req service.ApplyDiscountRequest) (*service.ApplyDiscountResult, error)
	ApplyToItem(ctx context.Context, req service.ApplyDiscountRequest) (*service.ApplyDiscountResult, error)
}

// DiscountStore defines the database methods needed by discount CRUD handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type DiscountStore interface {
	ListDiscounts(ctx context.Context, isActive pgtype.Bool) ([]database.Discount, error)
	GetDiscount(ctx context.Context, id uuid.UUID) (database.Discount, error)
	CreateDiscount(ctx context.Context, arg database.CreateDiscountParams) (database.Discount, error)
	UpdateDiscount(ctx context.Context, arg database.UpdateDiscountParams) (database.Discount, error)
	SoftDeleteDiscount(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// DiscountHandler handles discount definitions and their application.
type DiscountHandler struct {
	svc   DiscountServicer
	store DiscountStore
}

// NewDiscountHandler creates a new DiscountHandler.
func NewDiscountHandler(svc DiscountServicer, store DiscountStore) *DiscountHandler {
	return &DiscountHandler{svc: svc, store: store}
}

// RegisterRoutes registers the read endpoints. Expected to be mounted at /discounts.
func (h *DiscountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterApplyRoutes registers the endpoints that apply a discount.
func (h *DiscountHandler) RegisterApplyRoutes(r chi.Router) {
	r.Post("/apply-order", h.ApplyToOrder)
	r.Post("/apply-item", h.ApplyToItem)
}

// RegisterManagerRoutes registers the write endpoints.
func (h *DiscountHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type discountRequest struct {
	Name         string  `json:"name" validate:"required,max=100"`
	Description  *string `json:"description"`
	DiscountType string  `json:"discount_type" validate:"required,oneof=percentage fixed_amount"`
	Value        string  `json:"value" validate:"required,numeric"`
	AppliesTo    string  `json:"applies_to" validate:"required,oneof=order item"`
	StartDate    string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	IsActive     *bool   `json:"is_active"`
}

type applyOrderDiscountRequest struct {
	OrderID    string `json:"order_id" validate:"required,uuid"`
	DiscountID string `json:"discount_id" validate:"required,uuid"`
}

type applyItemDiscountRequest struct {
	OrderItemID string `json:"order_item_id" validate:"required,uuid"`
	DiscountID  string `json:"discount_id" validate:"required,uuid"`
}

type discountResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	DiscountType string    `json:"discount_type"`
	Value        string    `json:"value"`
	AppliesTo    string    `json:"applies_to"`
	IsActive     bool      `json:"is_active"`
	StartDate    *string   `json:"start_date"`
	EndDate      *string   `json:"end_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// applyDiscountResponse carries the amount just applied plus the order's
// new totals.
type applyDiscountResponse struct {
	AppliedAmountUsd   string `json:"applied_amount_usd"`
	AppliedAmountLocal int64  `json:"applied_amount_local"`
	orderResponse
}

// --- Handlers ---

// List handles GET /discounts?active=.
func (h *DiscountHandler) List(w http.ResponseWriter, r *http.Request) {
	var active pgtype.Bool
	if s := r.URL.Query().Get("active"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "active must be true or false"})
			return
		}
		active = pgtype.Bool{Bool: b, Valid: true}
	}

	discounts, err := h.store.ListDiscounts(r.Context(), active)
	if err != nil {
		writeInternalError(w, "list discounts", err)
		return
	}

	resp := make([]discountResponse, len(discounts))
	for i, d := range discounts {
		resp[i] = toDiscountResponse(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /discounts/{id}.
func (h *DiscountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "discount")
	if !ok {
		return
	}

	d, err := h.store.GetDiscount(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "discount not found"})
			return
		}
		writeInternalError(w, "get discount", err)
		return
	}
	writeJSON(w, http.StatusOK, toDiscountResponse(d))
}

// Create handles POST /discounts.
func (h *DiscountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	value, start, end, err := parseDiscountFields(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	d, err := h.store.CreateDiscount(r.Context(), database.CreateDiscountParams{
		Name:         strings.TrimSpace(req.Name),
		Description:  optionalText(req.Description),
		DiscountType: req.DiscountType,
		Value:        value,
		AppliesTo:    req.AppliesTo,
		StartDate:    start,
		EndDate:      end,
	})
	if err != nil {
		writeInternalError(w, "create discount", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDiscountResponse(d))
}

// Update handles PUT /discounts/{id}. Amounts already applied to orders
// are not recalculated.
func (h *DiscountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "discount")
	if !ok {
		return
	}

	var req discountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	value, start, end, err := parseDiscountFields(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	d, err := h.store.UpdateDiscount(r.Context(), database.UpdateDiscountParams{
		ID:           id,
		Name:         strings.TrimSpace(req.Name),
		Description:  optionalText(req.Description),
		DiscountType: req.DiscountType,
		Value:        value,
		AppliesTo:    req.AppliesTo,
		IsActive:     active,
		StartDate:    start,
		EndDate:      end,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "discount not found"})
			return
		}
		writeInternalError(w, "update discount", err)
		return
	}

	writeJSON(w, http.StatusOK, toDiscountResponse(d))
}

// Delete handles DELETE /discounts/{id} as a soft delete.
func (h *DiscountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "discount")
	if !ok {
		return
	}

	if _, err := h.store.SoftDeleteDiscount(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "discount not found"})
			return
		}
		writeInternalError(w, "delete discount", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ApplyToOrder handles POST /discounts/apply-order.
func (h *DiscountHandler) ApplyToOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req applyOrderDiscountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.ApplyToOrder(r.Context(), service.ApplyDiscountRequest{
		TargetID:   uuid.MustParse(req.OrderID),
		DiscountID: uuid.MustParse(req.DiscountID),
		Actor:      actor,
	})
	if err != nil {
		writeServiceError(w, "apply order discount", err)
		return
	}

	writeJSON(w, http.StatusOK, toApplyDiscountResponse(result))
}

// ApplyToItem handles POST /discounts/apply-item.
func (h *DiscountHandler) ApplyToItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req applyItemDiscountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.ApplyToItem(r.Context(), service.ApplyDiscountRequest{
		TargetID:   uuid.MustParse(req.OrderItemID),
		DiscountID: uuid.MustParse(req.DiscountID),
		Actor:      actor,
	})
	if err != nil {
		writeServiceError(w, "apply item discount", err)
		return
	}

	writeJSON(w, http.StatusOK, toApplyDiscountResponse(result))
}

// --- Helpers ---

func parseDiscountFields(req discountRequest) (pgtype.Numeric, pgtype.Date, pgtype.Date, error) {
	value, err := decimal.NewFromString(req.Value)
	if err != nil || !value.IsPositive() {
		return pgtype.Numeric{}, pgtype.Date{}, pgtype.Date{}, errors.New("value must be > 0")
	}
	if req.DiscountType == enum.DiscountTypePercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return pgtype.Numeric{}, pgtype.Date{}, pgtype.Date{}, errors.New("percentage value must be <= 100")
	}

	start, err := optionalDate(req.StartDate)
	if err != nil {
		return pgtype.Numeric{}, pgtype.Date{}, pgtype.Date{}, err
	}
	end, err := optionalDate(req.EndDate)
	if err != nil {
		return pgtype.Numeric{}, pgtype.Date{}, pgtype.Date{}, err
	}
	if start.Valid && end.Valid && end.Time.Before(start.Time) {
		return pgtype.Numeric{}, pgtype.Date{}, pgtype.Date{}, errors.New("end_date must not be before start_date")
	}

	return toNumeric(value.StringFixed(2)), start, end, nil
}

func optionalDate(s string) (pgtype.Date, error) {
	if s == "" {
		return pgtype.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return pgtype.Date{}, errors.New("dates must use YYYY-MM-DD")
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

func datePtr(d pgtype.Date) *string {
	if !d.Valid {
		return nil
	}
	s := d.Time.Format("2006-01-02")
	return &s
}

func toDiscountResponse(d database.Discount) discountResponse {
	return discountResponse{
		ID:           d.ID,
		Name:         d.Name,
		Description:  textPtr(d.Description),
		DiscountType: d.DiscountType,
		Value:        numericToString(d.Value),
		AppliesTo:    d.AppliesTo,
		IsActive:     d.IsActive,
		StartDate:    datePtr(d.StartDate),
		EndDate:      datePtr(d.EndDate),
		CreatedAt:    d.CreatedAt,
	}
}

func toApplyDiscountResponse(result *service.ApplyDiscountResult) applyDiscountResponse {
	return applyDiscountResponse{
		AppliedAmountUsd:   result.AmountUsd.StringFixed(2),
		AppliedAmountLocal: result.AmountLocal,
		orderResponse:      toOrderResponse(result.Order),
	}
}
