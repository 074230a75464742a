package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Reasons written to the adjustment log by automatic stock movements.
const (
	ReasonOrderPlacement    = "Order placement - automatic deduction"
	ReasonOrderCancellation = "Order cancellation - stock restored"
)

// Errors returned by the stock ledger.
var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrReasonRequired     = errors.New("reason is required")
	ErrZeroAdjustment     = errors.New("quantity_change must not be zero")
	ErrNegativeStock      = errors.New("adjustment would make stock negative")
)

// StockStore defines the DB methods the stock ledger needs.
// Satisfied by *database.Queries (and its WithTx variant).
type StockStore interface {
	LockIngredients(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error)
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	UpdateIngredientStock(ctx context.Context, arg database.UpdateIngredientStockParams) (database.Ingredient, error)
	CreateStockAdjustment(ctx context.Context, arg database.CreateStockAdjustmentParams) (database.StockAdjustment, error)
	GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error)
	ListRecipesForMenuItems(ctx context.Context, menuItemIds []uuid.UUID) ([]database.Recipe, error)
}

// NewStockStore creates a StockStore from a DBTX (pool or tx).
type NewStockStore func(db database.DBTX) StockStore

// Requirements maps ingredient IDs to the quantity an order consumes.
type Requirements map[uuid.UUID]decimal.Decimal

// RequirementLine is one order line as seen by the ledger.
type RequirementLine struct {
	MenuItemID uuid.UUID
	Quantity   int32
}

// BuildRequirements sums recipe quantity times line quantity per ingredient
// across all lines. Menu items without recipe rows need nothing.
func BuildRequirements(lines []RequirementLine, recipes []database.Recipe) Requirements {
	byMenuItem := make(map[uuid.UUID][]database.Recipe)
	for _, r := range recipes {
		byMenuItem[r.MenuItemID] = append(byMenuItem[r.MenuItemID], r)
	}

	req := make(Requirements)
	for _, line := range lines {
		qty := decimal.NewFromInt32(line.Quantity)
		for _, r := range byMenuItem[line.MenuItemID] {
			req[r.IngredientID] = req[r.IngredientID].Add(numericToDecimal(r.Quantity).Mul(qty))
		}
	}
	return req
}

// ids returns the ingredient IDs with a positive requirement, sorted so that
// row locks are always taken in the same order.
func (r Requirements) ids() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r))
	for id, qty := range r {
		if qty.IsPositive() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return strings.Compare(ids[i].String(), ids[j].String()) < 0
	})
	return ids
}

// checkAndDeduct locks every required ingredient, collects all shortages and
// fails with *InsufficientStockError if there are any. Otherwise it deducts
// each requirement and logs one adjustment per ingredient. It must run inside
// the caller's transaction. The returned ingredients are those that dropped
// to or below their reorder level because of this deduction.
func checkAndDeduct(ctx context.Context, store StockStore, req Requirements, actor Actor, reason string, orderID pgtype.UUID) ([]database.Ingredient, error) {
	ids := req.ids()
	if len(ids) == 0 {
		return nil, nil
	}

	locked, err := store.LockIngredients(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lock ingredients: %w", err)
	}
	byID := make(map[uuid.UUID]database.Ingredient, len(locked))
	for _, ing := range locked {
		byID[ing.ID] = ing
	}

	var shortages []Shortage
	var deduct []database.Ingredient
	for _, id := range ids {
		ing, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrIngredientNotFound, id)
		}
		if !ing.IsActive {
			continue
		}
		required := req[id]
		available := numericToDecimal(ing.CurrentStock)
		if available.LessThan(required) {
			shortages = append(shortages, Shortage{
				IngredientID: ing.ID,
				Name:         ing.Name,
				Required:     required,
				Available:    available,
				Unit:         ing.Unit,
			})
			continue
		}
		deduct = append(deduct, ing)
	}

	if len(shortages) > 0 {
		sort.Slice(shortages, func(i, j int) bool { return shortages[i].Name < shortages[j].Name })
		return nil, &InsufficientStockError{Shortages: shortages}
	}

	var lowStock []database.Ingredient
	for _, ing := range deduct {
		delta := req[ing.ID].Neg()
		updated, err := store.UpdateIngredientStock(ctx, database.UpdateIngredientStockParams{
			ID:             ing.ID,
			QuantityChange: exactNumeric(delta),
		})
		if err != nil {
			return nil, fmt.Errorf("deduct %s: %w", ing.Name, err)
		}
		if _, err := store.CreateStockAdjustment(ctx, database.CreateStockAdjustmentParams{
			IngredientID:   ing.ID,
			QuantityChange: exactNumeric(delta),
			Reason:         reason,
			OrderID:        orderID,
			AdjustedBy:     actor.UserID,
		}); err != nil {
			return nil, fmt.Errorf("log adjustment for %s: %w", ing.Name, err)
		}
		if crossedReorderLevel(ing, updated) {
			lowStock = append(lowStock, updated)
		}
	}
	return lowStock, nil
}

func crossedReorderLevel(before, after database.Ingredient) bool {
	level := numericToDecimal(after.ReorderLevel)
	return numericToDecimal(before.CurrentStock).GreaterThan(level) &&
		numericToDecimal(after.CurrentStock).LessThanOrEqual(level)
}

// publishLowStock sends one stock.low event per ingredient. Failures are
// logged and never reach the caller.
func publishLowStock(ctx context.Context, n notify.Notifier, ingredients []database.Ingredient) {
	for _, ing := range ingredients {
		e, err := notify.NewEvent(notify.TopicStock, notify.EventStockLow, notify.StockLowPayload{
			IngredientID: ing.ID.String(),
			Name:         ing.Name,
			CurrentStock: numericToDecimal(ing.CurrentStock).String(),
			ReorderLevel: numericToDecimal(ing.ReorderLevel).String(),
			Unit:         ing.Unit,
		})
		if err != nil {
			log.Printf("ERROR: build stock.low event: %v", err)
			continue
		}
		if err := n.Publish(ctx, e); err != nil {
			log.Printf("ERROR: publish stock.low for %s: %v", ing.Name, err)
		}
	}
}

// AdjustStockRequest is a manual restock, waste or correction entry.
type AdjustStockRequest struct {
	IngredientID   uuid.UUID
	QuantityChange decimal.Decimal
	Reason         string
	Actor          Actor
}

// AvailabilityResult reports whether quantity units of a menu item could be
// made from current stock.
type AvailabilityResult struct {
	MenuItemID uuid.UUID  `json:"menu_item_id"`
	Quantity   int32      `json:"quantity"`
	Available  bool       `json:"available"`
	Shortages  []Shortage `json:"shortages"`
}

// StockService exposes the stock ledger.
type StockService struct {
	pool     TxBeginner
	newStore NewStockStore
	notifier notify.Notifier
}

// NewStockService creates a new StockService.
func NewStockService(pool TxBeginner, newStore NewStockStore, notifier notify.Notifier) *StockService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &StockService{pool: pool, newStore: newStore, notifier: notifier}
}

// CheckAndDeduct runs the ledger's check-and-deduct in its own transaction.
// Order placement uses the same routine inside the order transaction.
func (s *StockService) CheckAndDeduct(ctx context.Context, req Requirements, actor Actor, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	lowStock, err := checkAndDeduct(ctx, s.newStore(tx), req, actor, reason, pgtype.UUID{})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	publishLowStock(ctx, s.notifier, lowStock)
	return nil
}

// AdjustStock applies a signed manual delta and logs it in one transaction.
func (s *StockService) AdjustStock(ctx context.Context, req AdjustStockRequest) (database.Ingredient, error) {
	if err := authorize(req.Actor, enum.UserRoleManager); err != nil {
		return database.Ingredient{}, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return database.Ingredient{}, ErrReasonRequired
	}
	if req.QuantityChange.IsZero() {
		return database.Ingredient{}, ErrZeroAdjustment
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Ingredient{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetIngredientForUpdate(ctx, req.IngredientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Ingredient{}, ErrIngredientNotFound
		}
		return database.Ingredient{}, fmt.Errorf("get ingredient: %w", err)
	}

	next := numericToDecimal(current.CurrentStock).Add(req.QuantityChange)
	if next.IsNegative() {
		return database.Ingredient{}, fmt.Errorf("%w: %s has %s %s, change is %s",
			ErrNegativeStock, current.Name, numericToDecimal(current.CurrentStock).String(), current.Unit, req.QuantityChange.String())
	}

	updated, err := store.UpdateIngredientStock(ctx, database.UpdateIngredientStockParams{
		ID:             current.ID,
		QuantityChange: exactNumeric(req.QuantityChange),
	})
	if err != nil {
		return database.Ingredient{}, fmt.Errorf("update stock: %w", err)
	}

	if _, err := store.CreateStockAdjustment(ctx, database.CreateStockAdjustmentParams{
		IngredientID:   current.ID,
		QuantityChange: exactNumeric(req.QuantityChange),
		Reason:         reason,
		AdjustedBy:     req.Actor.UserID,
	}); err != nil {
		return database.Ingredient{}, fmt.Errorf("log adjustment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Ingredient{}, fmt.Errorf("commit tx: %w", err)
	}

	if crossedReorderLevel(current, updated) {
		publishLowStock(ctx, s.notifier, []database.Ingredient{updated})
	}
	return updated, nil
}

// CheckAvailability reports the shortages an order of quantity units of one
// menu item would hit, without locking or changing anything.
func (s *StockService) CheckAvailability(ctx context.Context, menuItemID uuid.UUID, quantity int32) (*AvailabilityResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetMenuItemForOrder(ctx, menuItemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrMenuItemNotFound, menuItemID)
		}
		return nil, fmt.Errorf("get menu item: %w", err)
	}

	recipes, err := store.ListRecipesForMenuItems(ctx, []uuid.UUID{menuItemID})
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}

	req := BuildRequirements([]RequirementLine{{MenuItemID: menuItemID, Quantity: quantity}}, recipes)

	result := &AvailabilityResult{MenuItemID: menuItemID, Quantity: quantity, Shortages: []Shortage{}}
	for _, id := range req.ids() {
		ing, err := store.GetIngredient(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get ingredient %s: %w", id, err)
		}
		if !ing.IsActive {
			continue
		}
		available := numericToDecimal(ing.CurrentStock)
		if available.LessThan(req[id]) {
			result.Shortages = append(result.Shortages, Shortage{
				IngredientID: ing.ID,
				Name:         ing.Name,
				Required:     req[id],
				Available:    available,
				Unit:         ing.Unit,
			})
		}
	}
	sort.Slice(result.Shortages, func(i, j int) bool { return result.Shortages[i].Name < result.Shortages[j].Name })
	result.Available = len(result.Shortages) == 0
	return result, nil
}
