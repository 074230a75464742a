package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/handler"
	"github.com/cafe-pos/api/internal/middleware"
	"github.com/cafe-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Mock OrderServicer ---

type mockOrderService struct {
	createFn     func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	transitionFn func(ctx context.Context, req service.TransitionRequest) (database.Order, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
	return m.createFn(ctx, req)
}

func (m *mockOrderService) TransitionStatus(ctx context.Context, req service.TransitionRequest) (database.Order, error) {
	return m.transitionFn(ctx, req)
}

// --- Mock OrderStore ---

type mockOrderStore struct {
	orders        map[uuid.UUID]database.Order
	items         map[uuid.UUID][]database.OrderItem
	discounts     map[uuid.UUID][]database.OrderDiscount
	itemDiscounts map[uuid.UUID][]database.OrderItemDiscount

	listOrdersFn   func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listStatusesFn func(ctx context.Context, statuses []string) ([]database.Order, error)
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{
		orders:        map[uuid.UUID]database.Order{},
		items:         map[uuid.UUID][]database.OrderItem{},
		discounts:     map[uuid.UUID][]database.OrderDiscount{},
		itemDiscounts: map[uuid.UUID][]database.OrderItemDiscount{},
	}
}

func (m *mockOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockOrderStore) GetOrderByNumber(ctx context.Context, orderNumber string) (database.Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListOrdersByStatuses(ctx context.Context, statuses []string) ([]database.Order, error) {
	if m.listStatusesFn != nil {
		return m.listStatusesFn(ctx, statuses)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.items[orderID], nil
}

func (m *mockOrderStore) ListOrderDiscounts(ctx context.Context, orderID uuid.UUID) ([]database.OrderDiscount, error) {
	return m.discounts[orderID], nil
}

func (m *mockOrderStore) ListOrderItemDiscountsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemDiscount, error) {
	return m.itemDiscounts[orderID], nil
}

// --- Test helpers ---

func setupOrderRouter(svc *mockOrderService, store *mockOrderStore) *chi.Mux {
	h := handler.NewOrderHandler(svc, store, time.UTC)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/orders", func(r chi.Router) {
		h.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enum.UserRoleCourier, enum.UserRoleCashier, enum.UserRoleManager))
			h.RegisterCreateRoutes(r)
		})
	})
	return r
}

func testOrder(status string) database.Order {
	return database.Order{
		ID:                 uuid.New(),
		OrderNumber:        "ORD-20261019-0001",
		CustomerNumber:     "0001",
		Status:             status,
		PaymentStatus:      enum.PaymentStatusPending,
		SubtotalUsd:        testNumeric("7.50"),
		SubtotalLocal:      671000,
		DiscountTotalUsd:   testNumeric("0"),
		FinalTotalUsd:      testNumeric("7.50"),
		FinalTotalLocal:    671000,
		ExchangeRate:       testNumeric("89500"),
		RoundingFactor:     1000,
		CreatedBy:          uuid.New(),
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
		DiscountTotalLocal: 0,
	}
}

func testOrderItem(orderID uuid.UUID) database.OrderItem {
	return database.OrderItem{
		ID:                uuid.New(),
		OrderID:           orderID,
		MenuItemID:        uuid.New(),
		MenuItemName:      "Latte",
		OptionChoiceName:  testText("Large"),
		OptionChoiceID:    testUUID(uuid.New()),
		Quantity:          2,
		UnitPriceUsd:      testNumeric("3.75"),
		UnitPriceLocal:    335500,
		LineTotalUsd:      testNumeric("7.50"),
		LineTotalLocal:    671000,
		DiscountAmountUsd: testNumeric("0"),
	}
}

// --- Create ---

func TestCreateOrder_Success(t *testing.T) {
	courier := newTestUser(enum.UserRoleCourier)
	order := testOrder(enum.OrderStatusPendingPayment)
	item := testOrderItem(order.ID)
	menuItemID := uuid.New()

	var got service.CreateOrderRequest
	svc := &mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			got = req
			return &service.CreateOrderResult{Order: order, Items: []database.OrderItem{item}}, nil
		},
	}
	router := setupOrderRouter(svc, newMockOrderStore())

	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"notes": "no sugar",
		"items": []map[string]interface{}{
			{"menu_item_id": menuItemID.String(), "quantity": 2},
		},
	}, courier)
	assertStatus(t, rr, http.StatusCreated)

	if got.Actor.UserID != courier.ID || got.Actor.Role != enum.UserRoleCourier {
		t.Errorf("actor = %+v, want courier %s", got.Actor, courier.ID)
	}
	if len(got.Items) != 1 || got.Items[0].MenuItemID != menuItemID.String() || got.Items[0].Quantity != 2 {
		t.Errorf("items passed to service = %+v", got.Items)
	}
	if got.Notes != "no sugar" {
		t.Errorf("notes = %q", got.Notes)
	}

	resp := decodeMap(t, rr)
	if resp["order_id"] != order.ID.String() {
		t.Errorf("order_id = %v, want %s", resp["order_id"], order.ID)
	}
	if resp["final_total_usd"] != "7.50" {
		t.Errorf("final_total_usd = %v, want 7.50", resp["final_total_usd"])
	}
	if resp["final_total_local"] != float64(671000) {
		t.Errorf("final_total_local = %v, want 671000", resp["final_total_local"])
	}
	if resp["exchange_rate"] != "89500" {
		t.Errorf("exchange_rate = %v, want 89500", resp["exchange_rate"])
	}
	items, ok := resp["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("items = %v, want 1 item", resp["items"])
	}
	line := items[0].(map[string]interface{})
	if line["option_choice_name"] != "Large" || line["line_total_usd"] != "7.50" {
		t.Errorf("item = %v", line)
	}
}

func TestCreateOrder_BaristaForbidden(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	router := setupOrderRouter(svc, newMockOrderStore())

	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"menu_item_id": uuid.New().String(), "quantity": 1}},
	}, newTestUser(enum.UserRoleBarista))
	assertStatus(t, rr, http.StatusForbidden)
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, newMockOrderStore())
	rr := doRequest(t, router, "POST", "/orders", nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	router := setupOrderRouter(svc, newMockOrderStore())
	cashier := newTestUser(enum.UserRoleCashier)

	tests := []struct {
		name  string
		body  interface{}
		field string
		msg   string
	}{
		{
			name:  "empty items",
			body:  map[string]interface{}{"items": []interface{}{}},
			field: "items",
			msg:   "must contain at least 1 entries",
		},
		{
			name:  "missing items",
			body:  map[string]interface{}{"notes": "x"},
			field: "items",
			msg:   "is required",
		},
		{
			name: "zero quantity",
			body: map[string]interface{}{"items": []map[string]interface{}{
				{"menu_item_id": uuid.New().String(), "quantity": 0},
			}},
			field: "items[0].quantity",
			msg:   "must be greater than 0",
		},
		{
			name: "bad menu item id",
			body: map[string]interface{}{"items": []map[string]interface{}{
				{"menu_item_id": "latte", "quantity": 1},
			}},
			field: "items[0].menu_item_id",
			msg:   "must be a valid UUID",
		},
		{
			name: "bad choice id",
			body: map[string]interface{}{"items": []map[string]interface{}{
				{"menu_item_id": uuid.New().String(), "quantity": 1, "chosen_option_choice_id": "large"},
			}},
			field: "items[0].chosen_option_choice_id",
			msg:   "must be a valid UUID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doAuthRequest(t, router, "POST", "/orders", tt.body, cashier)
			assertStatus(t, rr, http.StatusBadRequest)

			resp := decodeMap(t, rr)
			assertError(t, resp, "validation failed")
			fields, ok := resp["fields"].(map[string]interface{})
			if !ok {
				t.Fatalf("fields = %v", resp["fields"])
			}
			if fields[tt.field] != tt.msg {
				t.Errorf("fields[%s] = %v, want %q", tt.field, fields[tt.field], tt.msg)
			}
		})
	}
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, newMockOrderStore())
	rr := doAuthRequest(t, router, "POST", "/orders", "{not json", newTestUser(enum.UserRoleManager))
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, decodeMap(t, rr), "invalid request body")
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	milkID := uuid.New()
	svc := &mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			return nil, &service.InsufficientStockError{Shortages: []service.Shortage{{
				IngredientID: milkID,
				Name:         "Milk",
				Required:     decimal.RequireFromString("0.6"),
				Available:    decimal.RequireFromString("0.4"),
				Unit:         "L",
			}}}
		},
	}
	router := setupOrderRouter(svc, newMockOrderStore())

	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"menu_item_id": uuid.New().String(), "quantity": 2}},
	}, newTestUser(enum.UserRoleCashier))
	assertStatus(t, rr, http.StatusBadRequest)

	resp := decodeMap(t, rr)
	assertError(t, resp, "insufficient stock")
	shortages, ok := resp["shortages"].([]interface{})
	if !ok || len(shortages) != 1 {
		t.Fatalf("shortages = %v", resp["shortages"])
	}
	s := shortages[0].(map[string]interface{})
	if s["ingredient_id"] != milkID.String() || s["name"] != "Milk" || s["required"] != "0.6" || s["available"] != "0.4" {
		t.Errorf("shortage = %v", s)
	}
}

func TestCreateOrder_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"menu item missing", fmt.Errorf("items[0]: %w", service.ErrMenuItemNotFound), http.StatusNotFound, "items[0]: menu item not found or inactive"},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{
				createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
					return nil, tt.err
				},
			}
			router := setupOrderRouter(svc, newMockOrderStore())
			rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
				"items": []map[string]interface{}{{"menu_item_id": uuid.New().String(), "quantity": 1}},
			}, newTestUser(enum.UserRoleCashier))
			assertStatus(t, rr, tt.wantStatus)
			assertError(t, decodeMap(t, rr), tt.wantError)
		})
	}
}

// --- Status ---

func TestUpdateStatus_Success(t *testing.T) {
	cashier := newTestUser(enum.UserRoleCashier)
	order := testOrder(enum.OrderStatusPaidWaitingPreparation)
	order.PaymentStatus = enum.PaymentStatusPaid
	order.PaymentMethod = testText(enum.PaymentMethodCash)

	var got service.TransitionRequest
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, req service.TransitionRequest) (database.Order, error) {
			got = req
			return order, nil
		},
	}
	router := setupOrderRouter(svc, newMockOrderStore())

	rr := doAuthRequest(t, router, "PUT", "/orders/"+order.ID.String()+"/status", map[string]string{
		"status":         enum.OrderStatusPaidWaitingPreparation,
		"payment_method": enum.PaymentMethodCash,
	}, cashier)
	assertStatus(t, rr, http.StatusOK)

	if got.OrderID != order.ID || got.Status != enum.OrderStatusPaidWaitingPreparation || got.PaymentMethod != "cash" {
		t.Errorf("transition request = %+v", got)
	}
	if got.Actor.Role != enum.UserRoleCashier {
		t.Errorf("actor role = %q", got.Actor.Role)
	}

	resp := decodeMap(t, rr)
	if resp["payment_status"] != enum.PaymentStatusPaid || resp["payment_method"] != "cash" {
		t.Errorf("response = %v", resp)
	}
}

func TestUpdateStatus_TransitionRejected(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, req service.TransitionRequest) (database.Order, error) {
			return database.Order{}, &service.TransitionError{
				From: enum.OrderStatusPendingPayment,
				To:   enum.OrderStatusPreparing,
				Role: req.Actor.Role,
			}
		},
	}
	router := setupOrderRouter(svc, newMockOrderStore())

	rr := doAuthRequest(t, router, "PUT", "/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": enum.OrderStatusPreparing}, newTestUser(enum.UserRoleBarista))
	assertStatus(t, rr, http.StatusForbidden)
	assertError(t, decodeMap(t, rr), "status transition not permitted: pending_payment -> preparing not allowed for role barista")
}

func TestUpdateStatus_ConcurrentUpdate(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, req service.TransitionRequest) (database.Order, error) {
			return database.Order{}, service.ErrConcurrentUpdate
		},
	}
	router := setupOrderRouter(svc, newMockOrderStore())

	rr := doAuthRequest(t, router, "PUT", "/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": enum.OrderStatusCompleted}, newTestUser(enum.UserRoleCourier))
	assertStatus(t, rr, http.StatusConflict)
}

func TestUpdateStatus_BadInput(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, newMockOrderStore())
	u := newTestUser(enum.UserRoleManager)

	rr := doAuthRequest(t, router, "PUT", "/orders/not-a-uuid/status", map[string]string{"status": "completed"}, u)
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, decodeMap(t, rr), "invalid order ID")

	rr = doAuthRequest(t, router, "PUT", "/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": "paid_waiting_preparation", "payment_method": "cheque"}, u)
	assertStatus(t, rr, http.StatusBadRequest)
	fields := decodeMap(t, rr)["fields"].(map[string]interface{})
	if fields["payment_method"] != "must be one of: cash, card, mobile" {
		t.Errorf("payment_method error = %v", fields["payment_method"])
	}
}

// --- Reads ---

func TestGetOrder_WithItemsAndDiscounts(t *testing.T) {
	store := newMockOrderStore()
	order := testOrder(enum.OrderStatusPaidWaitingPreparation)
	item := testOrderItem(order.ID)
	store.orders[order.ID] = order
	store.items[order.ID] = []database.OrderItem{item}
	store.discounts[order.ID] = []database.OrderDiscount{{
		ID: uuid.New(), OrderID: order.ID, DiscountID: uuid.New(), DiscountName: "Happy hour",
		AmountUsd: testNumeric("0.75"), AmountLocal: 67000, AppliedBy: uuid.New(),
	}}
	store.itemDiscounts[order.ID] = []database.OrderItemDiscount{{
		ID: uuid.New(), OrderItemID: item.ID, DiscountID: uuid.New(), DiscountName: "Staff",
		AmountUsd: testNumeric("1"), AmountLocal: 90000, AppliedBy: uuid.New(),
	}}
	router := setupOrderRouter(&mockOrderService{}, store)

	rr := doAuthRequest(t, router, "GET", "/orders/"+order.ID.String(), nil, newTestUser(enum.UserRoleBarista))
	assertStatus(t, rr, http.StatusOK)

	resp := decodeMap(t, rr)
	if len(resp["items"].([]interface{})) != 1 {
		t.Errorf("items = %v", resp["items"])
	}
	discounts := resp["discounts"].([]interface{})
	if len(discounts) != 2 {
		t.Fatalf("discounts = %v, want 2", discounts)
	}
	orderLevel := discounts[0].(map[string]interface{})
	if orderLevel["order_item_id"] != nil || orderLevel["amount_usd"] != "0.75" {
		t.Errorf("order discount = %v", orderLevel)
	}
	itemLevel := discounts[1].(map[string]interface{})
	if itemLevel["order_item_id"] != item.ID.String() || itemLevel["amount_local"] != float64(90000) {
		t.Errorf("item discount = %v", itemLevel)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, newMockOrderStore())
	rr := doAuthRequest(t, router, "GET", "/orders/"+uuid.New().String(), nil, newTestUser(enum.UserRoleCashier))
	assertStatus(t, rr, http.StatusNotFound)
	assertError(t, decodeMap(t, rr), "order not found")
}

func TestGetOrderByNumber(t *testing.T) {
	store := newMockOrderStore()
	order := testOrder(enum.OrderStatusReadyForPickup)
	store.orders[order.ID] = order
	router := setupOrderRouter(&mockOrderService{}, store)

	rr := doAuthRequest(t, router, "GET", "/orders/by-number/"+order.OrderNumber, nil, newTestUser(enum.UserRoleCourier))
	assertStatus(t, rr, http.StatusOK)
	if resp := decodeMap(t, rr); resp["id"] != order.ID.String() {
		t.Errorf("id = %v, want %s", resp["id"], order.ID)
	}

	rr = doAuthRequest(t, router, "GET", "/orders/by-number/ORD-00000000-9999", nil, newTestUser(enum.UserRoleCourier))
	assertStatus(t, rr, http.StatusNotFound)
}

func TestListOrders_Filters(t *testing.T) {
	store := newMockOrderStore()
	var got database.ListOrdersParams
	store.listOrdersFn = func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
		got = arg
		return []database.Order{testOrder(enum.OrderStatusCompleted)}, nil
	}
	router := setupOrderRouter(&mockOrderService{}, store)

	rr := doAuthRequest(t, router, "GET", "/orders?status=completed&start_date=2026-10-01&end_date=2026-10-18&limit=500&offset=40",
		nil, newTestUser(enum.UserRoleManager))
	assertStatus(t, rr, http.StatusOK)

	if !got.Status.Valid || got.Status.String != enum.OrderStatusCompleted {
		t.Errorf("status filter = %+v", got.Status)
	}
	if got.Limit != 100 || got.Offset != 40 {
		t.Errorf("limit/offset = %d/%d, want 100/40", got.Limit, got.Offset)
	}
	wantEnd := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	if !got.EndDate.Valid || !got.EndDate.Time.Equal(wantEnd) {
		t.Errorf("end date = %v, want %v", got.EndDate.Time, wantEnd)
	}

	resp := decodeMap(t, rr)
	if len(resp["orders"].([]interface{})) != 1 || resp["limit"] != float64(100) {
		t.Errorf("response = %v", resp)
	}
}

func TestListOrders_InvalidStatus(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, newMockOrderStore())
	rr := doAuthRequest(t, router, "GET", "/orders?status=lost", nil, newTestUser(enum.UserRoleManager))
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, decodeMap(t, rr), "invalid status")
}

func TestBaristaQueue_IncludesItems(t *testing.T) {
	store := newMockOrderStore()
	order := testOrder(enum.OrderStatusPreparing)
	store.items[order.ID] = []database.OrderItem{testOrderItem(order.ID)}

	var statuses []string
	store.listStatusesFn = func(ctx context.Context, s []string) ([]database.Order, error) {
		statuses = s
		return []database.Order{order}, nil
	}
	router := setupOrderRouter(&mockOrderService{}, store)

	rr := doAuthRequest(t, router, "GET", "/orders/barista-queue", nil, newTestUser(enum.UserRoleBarista))
	assertStatus(t, rr, http.StatusOK)

	want := []string{enum.OrderStatusPaidWaitingPreparation, enum.OrderStatusPreparing}
	if fmt.Sprint(statuses) != fmt.Sprint(want) {
		t.Errorf("statuses = %v, want %v", statuses, want)
	}
	resp := decodeList(t, rr)
	if len(resp) != 1 || len(resp[0]["items"].([]interface{})) != 1 {
		t.Errorf("queue = %v", resp)
	}
}

func TestActiveOrders_ExcludesTerminal(t *testing.T) {
	store := newMockOrderStore()
	var statuses []string
	store.listStatusesFn = func(ctx context.Context, s []string) ([]database.Order, error) {
		statuses = s
		return []database.Order{}, nil
	}
	router := setupOrderRouter(&mockOrderService{}, store)

	rr := doAuthRequest(t, router, "GET", "/orders/active", nil, newTestUser(enum.UserRoleCourier))
	assertStatus(t, rr, http.StatusOK)

	for _, s := range statuses {
		if s == enum.OrderStatusCompleted || s == enum.OrderStatusCancelled {
			t.Errorf("active statuses include terminal %q", s)
		}
	}
	if len(statuses) != 4 {
		t.Errorf("statuses = %v, want 4 non-terminal statuses", statuses)
	}
	if body := rr.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}
