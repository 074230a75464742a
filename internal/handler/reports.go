package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cafe-pos/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	GetItemSales(ctx context.Context, arg database.GetItemSalesParams) ([]database.GetItemSalesRow, error)
	GetDiscountUsage(ctx context.Context, arg database.GetDiscountUsageParams) ([]database.GetDiscountUsageRow, error)
}

// ReportsHandler handles report endpoints. Only completed orders are counted.
type ReportsHandler struct {
	store ReportsStore
	loc   *time.Location
	now   func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. Dates in query params are
// business days in loc.
func NewReportsHandler(store ReportsStore, loc *time.Location) *ReportsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportsHandler{store: store, loc: loc, now: time.Now}
}

// RegisterRoutes registers report endpoints. Expected to be mounted at /reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily-sales", h.DailySales)
	r.Get("/item-sales", h.ItemSales)
	r.Get("/discount-usage", h.DiscountUsage)
}

// --- Response types ---

type dailySalesResponse struct {
	Date        string `json:"date"`
	OrderCount  int64  `json:"order_count"`
	SubtotalUsd string `json:"subtotal_usd"`
	DiscountUsd string `json:"discount_usd"`
	NetUsd      string `json:"net_usd"`
	NetLocal    int64  `json:"net_local"`
}

type itemSalesResponse struct {
	MenuItemID   uuid.UUID `json:"menu_item_id"`
	MenuItemName string    `json:"menu_item_name"`
	QuantitySold int64     `json:"quantity_sold"`
	RevenueUsd   string    `json:"revenue_usd"`
	RevenueLocal int64     `json:"revenue_local"`
}

type discountUsageResponse struct {
	DiscountID   uuid.UUID `json:"discount_id"`
	DiscountName string    `json:"discount_name"`
	TimesApplied int64     `json:"times_applied"`
	TotalUsd     string    `json:"total_usd"`
	TotalLocal   int64     `json:"total_local"`
}

// --- Handlers ---

// DailySales returns per-day sales totals for a given date range.
func (h *ReportsHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		writeInternalError(w, "get daily sales", err)
		return
	}

	resp := make([]dailySalesResponse, len(rows))
	for i, row := range rows {
		date := "N/A"
		if row.SaleDate.Valid {
			date = row.SaleDate.Time.Format("2006-01-02")
		}
		resp[i] = dailySalesResponse{
			Date:        date,
			OrderCount:  row.OrderCount,
			SubtotalUsd: numericToString(row.SubtotalUsd),
			DiscountUsd: numericToString(row.DiscountUsd),
			NetUsd:      numericToString(row.NetUsd),
			NetLocal:    row.NetLocal,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ItemSales returns quantity and revenue per menu item, best sellers first.
func (h *ReportsHandler) ItemSales(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetItemSales(r.Context(), database.GetItemSalesParams{
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		writeInternalError(w, "get item sales", err)
		return
	}

	resp := make([]itemSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = itemSalesResponse{
			MenuItemID:   row.MenuItemID,
			MenuItemName: row.MenuItemName,
			QuantitySold: row.QuantitySold,
			RevenueUsd:   numericToString(row.RevenueUsd),
			RevenueLocal: row.RevenueLocal,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// DiscountUsage returns how often each discount was applied and its total value.
func (h *ReportsHandler) DiscountUsage(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDiscountUsage(r.Context(), database.GetDiscountUsageParams{
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		writeInternalError(w, "get discount usage", err)
		return
	}

	resp := make([]discountUsageResponse, len(rows))
	for i, row := range rows {
		resp[i] = discountUsageResponse{
			DiscountID:   row.DiscountID,
			DiscountName: row.DiscountName,
			TimesApplied: row.TimesApplied,
			TotalUsd:     numericToString(row.TotalUsd),
			TotalLocal:   row.TotalLocal,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseDateRange parses start_date and end_date query params as days in h.loc.
// Defaults to the last 30 days. The returned end is exclusive (next day midnight).
func (h *ReportsHandler) parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	now := h.now().In(h.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	startDate := today.AddDate(0, 0, -30)
	endDate := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return startDate, endDate, nil
}
