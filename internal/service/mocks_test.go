package service

import (
	"context"
	"sync"

	"github.com/cafe-pos/api/internal/currency"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr == nil {
		m.committed = true
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockStore implements OrderStore, DiscountStore and SettingsStore with
// configurable behavior. Unset functions panic when called.
type mockStore struct {
	lockIngredientsFn           func(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error)
	getIngredientFn             func(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	getIngredientForUpdateFn    func(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	updateIngredientStockFn     func(ctx context.Context, arg database.UpdateIngredientStockParams) (database.Ingredient, error)
	createStockAdjustmentFn     func(ctx context.Context, arg database.CreateStockAdjustmentParams) (database.StockAdjustment, error)
	getMenuItemForOrderFn       func(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error)
	listRecipesForMenuItemsFn   func(ctx context.Context, ids []uuid.UUID) ([]database.Recipe, error)
	getSystemSettingFn          func(ctx context.Context, key string) (database.SystemSetting, error)
	upsertSystemSettingFn       func(ctx context.Context, arg database.UpsertSystemSettingParams) (database.SystemSetting, error)
	getChoiceForOrderFn         func(ctx context.Context, id uuid.UUID) (database.GetChoiceForOrderRow, error)
	nextCustomerSequenceFn      func(ctx context.Context, day pgtype.Date) (int32, error)
	createOrderFn               func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn           func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getOrderForUpdateFn         func(ctx context.Context, id uuid.UUID) (database.Order, error)
	updateOrderStatusFn         func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	listOrderStockAdjustmentsFn func(ctx context.Context, orderID pgtype.UUID) ([]database.StockAdjustment, error)
	getDiscountFn               func(ctx context.Context, id uuid.UUID) (database.Discount, error)
	getOrderItemFn              func(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	orderDiscountExistsFn       func(ctx context.Context, arg database.OrderDiscountExistsParams) (bool, error)
	orderItemDiscountExistsFn   func(ctx context.Context, arg database.OrderItemDiscountExistsParams) (bool, error)
	createOrderDiscountFn       func(ctx context.Context, arg database.CreateOrderDiscountParams) (database.OrderDiscount, error)
	createOrderItemDiscountFn   func(ctx context.Context, arg database.CreateOrderItemDiscountParams) (database.OrderItemDiscount, error)
	addOrderItemDiscountFn      func(ctx context.Context, arg database.AddOrderItemDiscountParams) (database.OrderItem, error)
	updateOrderDiscountTotalsFn func(ctx context.Context, arg database.UpdateOrderDiscountTotalsParams) (database.Order, error)
}

func (m *mockStore) LockIngredients(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error) {
	return m.lockIngredientsFn(ctx, ids)
}
func (m *mockStore) GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
	return m.getIngredientFn(ctx, id)
}
func (m *mockStore) GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
	return m.getIngredientForUpdateFn(ctx, id)
}
func (m *mockStore) UpdateIngredientStock(ctx context.Context, arg database.UpdateIngredientStockParams) (database.Ingredient, error) {
	return m.updateIngredientStockFn(ctx, arg)
}
func (m *mockStore) CreateStockAdjustment(ctx context.Context, arg database.CreateStockAdjustmentParams) (database.StockAdjustment, error) {
	return m.createStockAdjustmentFn(ctx, arg)
}
func (m *mockStore) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error) {
	return m.getMenuItemForOrderFn(ctx, id)
}
func (m *mockStore) ListRecipesForMenuItems(ctx context.Context, ids []uuid.UUID) ([]database.Recipe, error) {
	return m.listRecipesForMenuItemsFn(ctx, ids)
}
func (m *mockStore) GetSystemSetting(ctx context.Context, key string) (database.SystemSetting, error) {
	return m.getSystemSettingFn(ctx, key)
}
func (m *mockStore) UpsertSystemSetting(ctx context.Context, arg database.UpsertSystemSettingParams) (database.SystemSetting, error) {
	return m.upsertSystemSettingFn(ctx, arg)
}
func (m *mockStore) GetChoiceForOrder(ctx context.Context, id uuid.UUID) (database.GetChoiceForOrderRow, error) {
	return m.getChoiceForOrderFn(ctx, id)
}
func (m *mockStore) NextCustomerSequence(ctx context.Context, day pgtype.Date) (int32, error) {
	return m.nextCustomerSequenceFn(ctx, day)
}
func (m *mockStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderForUpdateFn(ctx, id)
}
func (m *mockStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	return m.updateOrderStatusFn(ctx, arg)
}
func (m *mockStore) ListOrderStockAdjustments(ctx context.Context, orderID pgtype.UUID) ([]database.StockAdjustment, error) {
	return m.listOrderStockAdjustmentsFn(ctx, orderID)
}
func (m *mockStore) GetDiscount(ctx context.Context, id uuid.UUID) (database.Discount, error) {
	return m.getDiscountFn(ctx, id)
}
func (m *mockStore) GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error) {
	return m.getOrderItemFn(ctx, id)
}
func (m *mockStore) OrderDiscountExists(ctx context.Context, arg database.OrderDiscountExistsParams) (bool, error) {
	return m.orderDiscountExistsFn(ctx, arg)
}
func (m *mockStore) OrderItemDiscountExists(ctx context.Context, arg database.OrderItemDiscountExistsParams) (bool, error) {
	return m.orderItemDiscountExistsFn(ctx, arg)
}
func (m *mockStore) CreateOrderDiscount(ctx context.Context, arg database.CreateOrderDiscountParams) (database.OrderDiscount, error) {
	return m.createOrderDiscountFn(ctx, arg)
}
func (m *mockStore) CreateOrderItemDiscount(ctx context.Context, arg database.CreateOrderItemDiscountParams) (database.OrderItemDiscount, error) {
	return m.createOrderItemDiscountFn(ctx, arg)
}
func (m *mockStore) AddOrderItemDiscount(ctx context.Context, arg database.AddOrderItemDiscountParams) (database.OrderItem, error) {
	return m.addOrderItemDiscountFn(ctx, arg)
}
func (m *mockStore) UpdateOrderDiscountTotals(ctx context.Context, arg database.UpdateOrderDiscountTotalsParams) (database.Order, error) {
	return m.updateOrderDiscountTotalsFn(ctx, arg)
}

// recordingNotifier keeps every published event.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (r *recordingNotifier) Publish(ctx context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var (
	testConverter = currency.Converter{Rate: decimal.NewFromInt(90000), Granularity: 5000}
	managerActor  = Actor{UserID: uuid.New(), Role: "manager"}
	cashierActor  = Actor{UserID: uuid.New(), Role: "cashier"}
	courierActor  = Actor{UserID: uuid.New(), Role: "courier"}
	baristaActor  = Actor{UserID: uuid.New(), Role: "barista"}
)

// inventory is an in-memory stock table behind the mock store's ledger
// functions, so tests can assert on resulting stock levels.
type inventory struct {
	ingredients map[uuid.UUID]database.Ingredient
	adjustments []database.CreateStockAdjustmentParams
	lockCalls   [][]uuid.UUID
}

func newInventory(ings ...database.Ingredient) *inventory {
	inv := &inventory{ingredients: make(map[uuid.UUID]database.Ingredient)}
	for _, ing := range ings {
		inv.ingredients[ing.ID] = ing
	}
	return inv
}

func (inv *inventory) stock(id uuid.UUID) decimal.Decimal {
	return numericToDecimal(inv.ingredients[id].CurrentStock)
}

// wire installs the inventory's ledger functions on m.
func (inv *inventory) wire(m *mockStore) {
	m.lockIngredientsFn = func(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error) {
		inv.lockCalls = append(inv.lockCalls, ids)
		out := make([]database.Ingredient, 0, len(ids))
		for _, id := range ids {
			if ing, ok := inv.ingredients[id]; ok {
				out = append(out, ing)
			}
		}
		return out, nil
	}
	get := func(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
		ing, ok := inv.ingredients[id]
		if !ok {
			return database.Ingredient{}, pgx.ErrNoRows
		}
		return ing, nil
	}
	m.getIngredientFn = get
	m.getIngredientForUpdateFn = get
	m.updateIngredientStockFn = func(ctx context.Context, arg database.UpdateIngredientStockParams) (database.Ingredient, error) {
		ing := inv.ingredients[arg.ID]
		next := numericToDecimal(ing.CurrentStock).Add(numericToDecimal(arg.QuantityChange))
		ing.CurrentStock = makeNumeric(next.String())
		inv.ingredients[arg.ID] = ing
		return ing, nil
	}
	m.createStockAdjustmentFn = func(ctx context.Context, arg database.CreateStockAdjustmentParams) (database.StockAdjustment, error) {
		inv.adjustments = append(inv.adjustments, arg)
		return database.StockAdjustment{
			ID:             uuid.New(),
			IngredientID:   arg.IngredientID,
			QuantityChange: arg.QuantityChange,
			Reason:         arg.Reason,
			OrderID:        arg.OrderID,
			AdjustedBy:     arg.AdjustedBy,
		}, nil
	}
	m.listOrderStockAdjustmentsFn = func(ctx context.Context, orderID pgtype.UUID) ([]database.StockAdjustment, error) {
		var out []database.StockAdjustment
		for _, a := range inv.adjustments {
			if a.OrderID == orderID {
				out = append(out, database.StockAdjustment{
					IngredientID:   a.IngredientID,
					QuantityChange: a.QuantityChange,
					Reason:         a.Reason,
					OrderID:        a.OrderID,
				})
			}
		}
		return out, nil
	}
}

func newIngredient(name, unit, stock, reorder string) database.Ingredient {
	return database.Ingredient{
		ID:           uuid.New(),
		Name:         name,
		Unit:         unit,
		CurrentStock: makeNumeric(stock),
		ReorderLevel: makeNumeric(reorder),
		IsActive:     true,
	}
}

func newRecipe(menuItemID, ingredientID uuid.UUID, qty string) database.Recipe {
	return database.Recipe{ID: uuid.New(), MenuItemID: menuItemID, IngredientID: ingredientID, Quantity: makeNumeric(qty)}
}
