package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/cafe-pos/api/internal/currency"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID = errors.New("invalid menu_item_id")
	ErrInvalidChoiceID   = errors.New("invalid option_choice_id")
	ErrMenuItemNotFound  = errors.New("menu item not found or inactive")
	ErrChoiceNotFound    = errors.New("option choice not found")
	ErrChoiceMismatch    = errors.New("option choice does not belong to menu item")
	ErrOrderNotFound     = errors.New("order not found")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to place orders and move them
// through their lifecycle. Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	StockStore
	GetSystemSetting(ctx context.Context, key string) (database.SystemSetting, error)
	GetChoiceForOrder(ctx context.Context, id uuid.UUID) (database.GetChoiceForOrderRow, error)
	NextCustomerSequence(ctx context.Context, day pgtype.Date) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	ListOrderStockAdjustments(ctx context.Context, orderID pgtype.UUID) ([]database.StockAdjustment, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the input for placing an order.
type CreateOrderRequest struct {
	Actor Actor
	Notes string
	Items []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line in the order.
type CreateOrderItemRequest struct {
	MenuItemID     string
	Quantity       int32
	OptionChoiceID string
}

// CreateOrderResult is the persisted order with its lines.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderConfig carries the process-wide defaults of the order service.
type OrderConfig struct {
	// Used when system_settings has no exchange rate rows.
	Fallback currency.Converter
	// Business-day boundary for customer numbers.
	Location *time.Location
}

// OrderService handles order placement and status transitions.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	notifier notify.Notifier
	fallback currency.Converter
	loc      *time.Location

	now        func() time.Time
	randSuffix func() int
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, notifier notify.Notifier, cfg OrderConfig) *OrderService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &OrderService{
		pool:       pool,
		newStore:   newStore,
		notifier:   notifier,
		fallback:   cfg.Fallback,
		loc:        loc,
		now:        time.Now,
		randSuffix: func() int { return 1000 + rand.Intn(9000) },
	}
}

// parsedLine is a request line whose IDs have been parsed.
type parsedLine struct {
	menuItemID uuid.UUID
	choiceID   uuid.UUID
	hasChoice  bool
	quantity   int32
}

// CreateOrder validates, prices, checks stock and persists an order
// atomically. Retries up to maxOrderNumberRetries times when the random
// order number collides with an existing one.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := authorize(req.Actor, enum.UserRoleCourier, enum.UserRoleCashier, enum.UserRoleManager); err != nil {
		return nil, err
	}

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Every line is validated before the first query runs.
	lines := make([]parsedLine, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}
		lines[i] = parsedLine{menuItemID: menuItemID, quantity: item.Quantity}
		if item.OptionChoiceID != "" {
			choiceID, err := uuid.Parse(item.OptionChoiceID)
			if err != nil {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidChoiceID)
			}
			lines[i].choiceID = choiceID
			lines[i].hasChoice = true
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, lowStock, err := s.createOrderTx(ctx, req, lines)
		if err == nil {
			s.publishOrderCreated(ctx, result.Order)
			publishLowStock(ctx, s.notifier, lowStock)
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, lines []parsedLine) (*CreateOrderResult, []database.Ingredient, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	conv, err := currentConverter(ctx, store, s.fallback)
	if err != nil {
		return nil, nil, err
	}

	// --- Resolve and price each line ---
	subtotalUsd := decimal.Zero
	itemParams := make([]database.CreateOrderItemParams, len(lines))
	reqLines := make([]RequirementLine, len(lines))
	menuItemIDs := make([]uuid.UUID, 0, len(lines))
	seen := make(map[uuid.UUID]bool)

	for i, line := range lines {
		menuItem, err := store.GetMenuItemForOrder(ctx, line.menuItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, fmt.Errorf("item[%d]: %w: %s", i, ErrMenuItemNotFound, line.menuItemID)
			}
			return nil, nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}

		unitPrice := numericToDecimal(menuItem.BasePriceUsd)
		choiceID := pgtype.UUID{}
		choiceName := pgtype.Text{}
		if line.hasChoice {
			choice, err := store.GetChoiceForOrder(ctx, line.choiceID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, nil, fmt.Errorf("item[%d]: %w: %s", i, ErrChoiceNotFound, line.choiceID)
				}
				return nil, nil, fmt.Errorf("item[%d]: get option choice: %w", i, err)
			}
			if choice.MenuItemID != menuItem.ID {
				return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrChoiceMismatch)
			}
			unitPrice = choiceUnitPrice(unitPrice, choice)
			choiceID = pgtype.UUID{Bytes: choice.ID, Valid: true}
			choiceName = pgtype.Text{String: choice.OptionName + ": " + choice.Name, Valid: true}
		}

		// Local line totals multiply the already-rounded unit price.
		unitLocal := conv.Convert(unitPrice)
		qty := decimal.NewFromInt32(line.quantity)
		lineUsd := unitPrice.Mul(qty)
		subtotalUsd = subtotalUsd.Add(lineUsd)

		itemParams[i] = database.CreateOrderItemParams{
			MenuItemID:       menuItem.ID,
			MenuItemName:     menuItem.Name,
			OptionChoiceID:   choiceID,
			OptionChoiceName: choiceName,
			Quantity:         line.quantity,
			UnitPriceUsd:     decimalToNumeric(unitPrice),
			UnitPriceLocal:   unitLocal,
			LineTotalUsd:     decimalToNumeric(lineUsd),
			LineTotalLocal:   unitLocal * int64(line.quantity),
		}
		reqLines[i] = RequirementLine{MenuItemID: menuItem.ID, Quantity: line.quantity}
		if !seen[menuItem.ID] {
			seen[menuItem.ID] = true
			menuItemIDs = append(menuItemIDs, menuItem.ID)
		}
	}

	// The order subtotal is converted once from the USD aggregate.
	subtotalLocal := conv.Convert(subtotalUsd)

	// --- Stock gate ---
	recipes, err := store.ListRecipesForMenuItems(ctx, menuItemIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("list recipes: %w", err)
	}

	orderID := uuid.New()
	lowStock, err := checkAndDeduct(ctx, store, BuildRequirements(reqLines, recipes), req.Actor,
		ReasonOrderPlacement, pgtype.UUID{Bytes: orderID, Valid: true})
	if err != nil {
		return nil, nil, err
	}

	// --- Identifiers ---
	now := s.now().In(s.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	seq, err := store.NextCustomerSequence(ctx, pgtype.Date{Time: day, Valid: true})
	if err != nil {
		return nil, nil, fmt.Errorf("next customer number: %w", err)
	}
	customerNumber := fmt.Sprintf("%s-%03d", now.Format("20060102"), seq)
	orderNumber := fmt.Sprintf("ORD-%s-%04d", now.Format("20060102150405"), s.randSuffix())

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		ID:              orderID,
		OrderNumber:     orderNumber,
		CustomerNumber:  customerNumber,
		Status:          enum.OrderStatusPendingPayment,
		PaymentStatus:   enum.PaymentStatusPending,
		SubtotalUsd:     decimalToNumeric(subtotalUsd),
		SubtotalLocal:   subtotalLocal,
		FinalTotalUsd:   decimalToNumeric(subtotalUsd),
		FinalTotalLocal: subtotalLocal,
		ExchangeRate:    exactNumeric(conv.Rate),
		RoundingFactor:  conv.Granularity,
		Notes:           notes,
		CreatedBy:       req.Actor.UserID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items ---
	items := make([]database.OrderItem, 0, len(itemParams))
	for _, p := range itemParams {
		p.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, p)
		if err != nil {
			return nil, nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: items}, lowStock, nil
}

func (s *OrderService) publishOrderCreated(ctx context.Context, o database.Order) {
	e, err := notify.NewEvent(notify.TopicOrders, notify.EventOrderCreated, notify.OrderCreatedPayload{
		OrderID:         o.ID.String(),
		OrderNumber:     o.OrderNumber,
		CustomerNumber:  o.CustomerNumber,
		Status:          o.Status,
		FinalTotalUsd:   numericToDecimal(o.FinalTotalUsd).StringFixed(2),
		FinalTotalLocal: o.FinalTotalLocal,
	})
	if err != nil {
		log.Printf("ERROR: build order.created event: %v", err)
		return
	}
	if err := s.notifier.Publish(ctx, e); err != nil {
		log.Printf("ERROR: publish order.created for %s: %v", o.OrderNumber, err)
	}
}

// --- Helpers ---

// choiceUnitPrice applies a choice to the base price: override replaces it,
// delta adds to it. The result never goes below zero.
func choiceUnitPrice(base decimal.Decimal, choice database.GetChoiceForOrderRow) decimal.Decimal {
	price := numericToDecimal(choice.PriceUsd)
	if choice.PriceMode == enum.PriceModeDelta {
		price = base.Add(price)
	}
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}
