package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	TransitionStatus(ctx context.Context, req service.TransitionRequest) (database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrdersByStatuses(ctx context.Context, statuses []string) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderDiscounts(ctx context.Context, orderID uuid.UUID) ([]database.OrderDiscount, error)
	ListOrderItemDiscountsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemDiscount, error)
}

// Statuses shown on the shop floor, oldest first.
var (
	activeStatuses = []string{
		enum.OrderStatusPendingPayment,
		enum.OrderStatusPaidWaitingPreparation,
		enum.OrderStatusPreparing,
		enum.OrderStatusReadyForPickup,
	}
	baristaQueueStatuses = []string{
		enum.OrderStatusPaidWaitingPreparation,
		enum.OrderStatusPreparing,
	}
)

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	loc   *time.Location
}

// NewOrderHandler creates a new OrderHandler. loc is the business-day
// timezone used to read date filters.
func NewOrderHandler(svc OrderServicer, store OrderStore, loc *time.Location) *OrderHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderHandler{svc: svc, store: store, loc: loc}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders. Order creation is registered separately
// so the router can restrict it by role.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/active", h.Active)
	r.Get("/barista-queue", h.BaristaQueue)
	r.Get("/by-number/{number}", h.GetByNumber)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/status", h.UpdateStatus)
}

// RegisterCreateRoutes registers POST /orders.
func (h *OrderHandler) RegisterCreateRoutes(r chi.Router) {
	r.Post("/", h.Create)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Notes string                   `json:"notes" validate:"max=500"`
	Items []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createOrderItemRequest struct {
	MenuItemID           string `json:"menu_item_id" validate:"required,uuid"`
	Quantity             int32  `json:"quantity" validate:"gt=0"`
	ChosenOptionChoiceID string `json:"chosen_option_choice_id" validate:"omitempty,uuid"`
}

type updateStatusRequest struct {
	Status        string `json:"status" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=cash card mobile"`
}

type orderResponse struct {
	ID                 uuid.UUID `json:"id"`
	OrderNumber        string    `json:"order_number"`
	CustomerNumber     string    `json:"customer_number"`
	Status             string    `json:"status"`
	PaymentStatus      string    `json:"payment_status"`
	PaymentMethod      *string   `json:"payment_method"`
	SubtotalUsd        string    `json:"subtotal_usd"`
	SubtotalLocal      int64     `json:"subtotal_local"`
	DiscountTotalUsd   string    `json:"discount_total_usd"`
	DiscountTotalLocal int64     `json:"discount_total_local"`
	FinalTotalUsd      string    `json:"final_total_usd"`
	FinalTotalLocal    int64     `json:"final_total_local"`
	ExchangeRate       string    `json:"exchange_rate"`
	RoundingFactor     int64     `json:"rounding_factor"`
	Notes              *string   `json:"notes"`
	CreatedBy          uuid.UUID `json:"created_by"`
	CashierID          *string   `json:"cashier_id"`
	BaristaID          *string   `json:"barista_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	Items     []orderItemResponse     `json:"items,omitempty"`
	Discounts []orderDiscountResponse `json:"discounts,omitempty"`
}

// createOrderResponse adds order_id for clients that only read the receipt
// fields.
type createOrderResponse struct {
	OrderID uuid.UUID `json:"order_id"`
	orderResponse
}

type orderItemResponse struct {
	ID                  uuid.UUID `json:"id"`
	MenuItemID          uuid.UUID `json:"menu_item_id"`
	MenuItemName        string    `json:"menu_item_name"`
	OptionChoiceID      *string   `json:"option_choice_id"`
	OptionChoiceName    *string   `json:"option_choice_name"`
	Quantity            int32     `json:"quantity"`
	UnitPriceUsd        string    `json:"unit_price_usd"`
	UnitPriceLocal      int64     `json:"unit_price_local"`
	LineTotalUsd        string    `json:"line_total_usd"`
	LineTotalLocal      int64     `json:"line_total_local"`
	DiscountAmountUsd   string    `json:"discount_amount_usd"`
	DiscountAmountLocal int64     `json:"discount_amount_local"`
}

type orderDiscountResponse struct {
	ID           uuid.UUID `json:"id"`
	DiscountID   uuid.UUID `json:"discount_id"`
	DiscountName string    `json:"discount_name"`
	OrderItemID  *string   `json:"order_item_id"`
	AmountUsd    string    `json:"amount_usd"`
	AmountLocal  int64     `json:"amount_local"`
	AppliedBy    uuid.UUID `json:"applied_by"`
	CreatedAt    time.Time `json:"created_at"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	items := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CreateOrderItemRequest{
			MenuItemID:     item.MenuItemID,
			Quantity:       item.Quantity,
			OptionChoiceID: item.ChosenOptionChoiceID,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		Actor: actor,
		Notes: req.Notes,
		Items: items,
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}

	resp := toOrderResponse(result.Order)
	resp.Items = toOrderItemResponses(result.Items)
	writeJSON(w, http.StatusCreated, createOrderResponse{OrderID: result.Order.ID, orderResponse: resp})
}

// List handles GET /orders?status=&start_date=&end_date=&limit=&offset=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		if !service.IsValidOrderStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, h.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, h.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		// Inclusive of the whole end day.
		params.EndDate = pgtype.Timestamptz{Time: t.AddDate(0, 0, 1), Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		writeInternalError(w, "list orders", err)
		return
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: toOrderResponses(orders),
		Limit:  limit,
		Offset: offset,
	})
}

// Active handles GET /orders/active: every non-terminal order, oldest first.
func (h *OrderHandler) Active(w http.ResponseWriter, r *http.Request) {
	h.listByStatuses(w, r, "list active orders", activeStatuses)
}

// BaristaQueue handles GET /orders/barista-queue.
func (h *OrderHandler) BaristaQueue(w http.ResponseWriter, r *http.Request) {
	h.listByStatuses(w, r, "list barista queue", baristaQueueStatuses)
}

func (h *OrderHandler) listByStatuses(w http.ResponseWriter, r *http.Request, op string, statuses []string) {
	orders, err := h.store.ListOrdersByStatuses(r.Context(), statuses)
	if err != nil {
		writeInternalError(w, op, err)
		return
	}

	resp := toOrderResponses(orders)
	for i := range resp {
		items, err := h.store.ListOrderItemsByOrder(r.Context(), resp[i].ID)
		if err != nil {
			writeInternalError(w, "list order items", err)
			return
		}
		resp[i].Items = toOrderItemResponses(items)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "order")
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		writeInternalError(w, "get order", err)
		return
	}

	h.writeOrderDetail(w, r, order)
}

// GetByNumber handles GET /orders/by-number/{number}.
func (h *OrderHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.GetOrderByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		writeInternalError(w, "get order by number", err)
		return
	}

	h.writeOrderDetail(w, r, order)
}

// UpdateStatus handles PUT /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(w, r, "id", "order")
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	order, err := h.svc.TransitionStatus(r.Context(), service.TransitionRequest{
		OrderID:       id,
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
		Actor:         actor,
	})
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// --- Helpers ---

func (h *OrderHandler) writeOrderDetail(w http.ResponseWriter, r *http.Request, order database.Order) {
	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		writeInternalError(w, "list order items", err)
		return
	}
	orderDiscounts, err := h.store.ListOrderDiscounts(r.Context(), order.ID)
	if err != nil {
		writeInternalError(w, "list order discounts", err)
		return
	}
	itemDiscounts, err := h.store.ListOrderItemDiscountsByOrder(r.Context(), order.ID)
	if err != nil {
		writeInternalError(w, "list item discounts", err)
		return
	}

	resp := toOrderResponse(order)
	resp.Items = toOrderItemResponses(items)
	resp.Discounts = make([]orderDiscountResponse, 0, len(orderDiscounts)+len(itemDiscounts))
	for _, d := range orderDiscounts {
		resp.Discounts = append(resp.Discounts, orderDiscountResponse{
			ID:           d.ID,
			DiscountID:   d.DiscountID,
			DiscountName: d.DiscountName,
			AmountUsd:    numericToString(d.AmountUsd),
			AmountLocal:  d.AmountLocal,
			AppliedBy:    d.AppliedBy,
			CreatedAt:    d.CreatedAt,
		})
	}
	for _, d := range itemDiscounts {
		itemID := d.OrderItemID.String()
		resp.Discounts = append(resp.Discounts, orderDiscountResponse{
			ID:           d.ID,
			DiscountID:   d.DiscountID,
			DiscountName: d.DiscountName,
			OrderItemID:  &itemID,
			AmountUsd:    numericToString(d.AmountUsd),
			AmountLocal:  d.AmountLocal,
			AppliedBy:    d.AppliedBy,
			CreatedAt:    d.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		CustomerNumber:     o.CustomerNumber,
		Status:             o.Status,
		PaymentStatus:      o.PaymentStatus,
		PaymentMethod:      textPtr(o.PaymentMethod),
		SubtotalUsd:        numericToString(o.SubtotalUsd),
		SubtotalLocal:      o.SubtotalLocal,
		DiscountTotalUsd:   numericToString(o.DiscountTotalUsd),
		DiscountTotalLocal: o.DiscountTotalLocal,
		FinalTotalUsd:      numericToString(o.FinalTotalUsd),
		FinalTotalLocal:    o.FinalTotalLocal,
		ExchangeRate:       quantityToString(o.ExchangeRate),
		RoundingFactor:     o.RoundingFactor,
		Notes:              textPtr(o.Notes),
		CreatedBy:          o.CreatedBy,
		CashierID:          uuidPtr(o.CashierID),
		BaristaID:          uuidPtr(o.BaristaID),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func toOrderResponses(orders []database.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return resp
}

func toOrderItemResponses(items []database.OrderItem) []orderItemResponse {
	resp := make([]orderItemResponse, len(items))
	for i, item := range items {
		resp[i] = orderItemResponse{
			ID:                  item.ID,
			MenuItemID:          item.MenuItemID,
			MenuItemName:        item.MenuItemName,
			OptionChoiceID:      uuidPtr(item.OptionChoiceID),
			OptionChoiceName:    textPtr(item.OptionChoiceName),
			Quantity:            item.Quantity,
			UnitPriceUsd:        numericToString(item.UnitPriceUsd),
			UnitPriceLocal:      item.UnitPriceLocal,
			LineTotalUsd:        numericToString(item.LineTotalUsd),
			LineTotalLocal:      item.LineTotalLocal,
			DiscountAmountUsd:   numericToString(item.DiscountAmountUsd),
			DiscountAmountLocal: item.DiscountAmountLocal,
		}
	}
	return resp
}
