package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cafe-pos/api/internal/currency"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Errors returned by the discount applier.
var (
	ErrDiscountNotFound       = errors.New("discount not found")
	ErrDiscountInactive       = errors.New("discount is not active")
	ErrDiscountNotInEffect    = errors.New("discount is outside its validity period")
	ErrDiscountTargetMismatch = errors.New("discount does not apply to this target")
	ErrDiscountAlreadyApplied = errors.New("discount already applied")
	ErrOrderItemNotFound      = errors.New("order item not found")
	ErrOrderClosed            = errors.New("order is completed or cancelled")
)

// DiscountStore defines the DB methods needed to apply discounts.
// Satisfied by *database.Queries (and its WithTx variant).
type DiscountStore interface {
	GetDiscount(ctx context.Context, id uuid.UUID) (database.Discount, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	OrderDiscountExists(ctx context.Context, arg database.OrderDiscountExistsParams) (bool, error)
	OrderItemDiscountExists(ctx context.Context, arg database.OrderItemDiscountExistsParams) (bool, error)
	CreateOrderDiscount(ctx context.Context, arg database.CreateOrderDiscountParams) (database.OrderDiscount, error)
	CreateOrderItemDiscount(ctx context.Context, arg database.CreateOrderItemDiscountParams) (database.OrderItemDiscount, error)
	AddOrderItemDiscount(ctx context.Context, arg database.AddOrderItemDiscountParams) (database.OrderItem, error)
	UpdateOrderDiscountTotals(ctx context.Context, arg database.UpdateOrderDiscountTotalsParams) (database.Order, error)
}

// NewDiscountStore creates a DiscountStore from a DBTX (pool or tx).
type NewDiscountStore func(db database.DBTX) DiscountStore

// ApplyDiscountRequest targets an order (ApplyToOrder) or an order item
// (ApplyToItem) by TargetID.
type ApplyDiscountRequest struct {
	TargetID   uuid.UUID
	DiscountID uuid.UUID
	Actor      Actor
}

// ApplyDiscountResult is the recorded amount and the order's new totals.
type ApplyDiscountResult struct {
	Order       database.Order
	AmountUsd   decimal.Decimal
	AmountLocal int64
}

// DiscountService applies manager-defined discounts to placed orders.
type DiscountService struct {
	pool     TxBeginner
	newStore NewDiscountStore
	notifier notify.Notifier
	// Business timezone; validity dates are calendar days there.
	loc *time.Location
	now func() time.Time
}

// NewDiscountService creates a new DiscountService. A nil loc means UTC.
func NewDiscountService(pool TxBeginner, newStore NewDiscountStore, notifier notify.Notifier, loc *time.Location) *DiscountService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DiscountService{pool: pool, newStore: newStore, notifier: notifier, loc: loc, now: time.Now}
}

// ApplyToOrder applies an order-level discount against the order subtotal.
func (s *DiscountService) ApplyToOrder(ctx context.Context, req ApplyDiscountRequest) (*ApplyDiscountResult, error) {
	if err := authorize(req.Actor, enum.UserRoleCashier, enum.UserRoleManager); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	discount, err := s.usableDiscount(ctx, store, req.DiscountID, enum.DiscountAppliesToOrder)
	if err != nil {
		return nil, err
	}

	order, err := lockOpenOrder(ctx, store, req.TargetID)
	if err != nil {
		return nil, err
	}

	exists, err := store.OrderDiscountExists(ctx, database.OrderDiscountExistsParams{OrderID: order.ID, DiscountID: discount.ID})
	if err != nil {
		return nil, fmt.Errorf("check order discount: %w", err)
	}
	if exists {
		return nil, ErrDiscountAlreadyApplied
	}

	amountUsd, amountLocal := discountAmounts(discount, numericToDecimal(order.SubtotalUsd), order)

	if _, err := store.CreateOrderDiscount(ctx, database.CreateOrderDiscountParams{
		OrderID:      order.ID,
		DiscountID:   discount.ID,
		DiscountName: discount.Name,
		AmountUsd:    decimalToNumeric(amountUsd),
		AmountLocal:  amountLocal,
		AppliedBy:    req.Actor.UserID,
	}); err != nil {
		if isDiscountConflict(err) {
			return nil, ErrDiscountAlreadyApplied
		}
		return nil, fmt.Errorf("create order discount: %w", err)
	}

	updated, err := addToOrderTotals(ctx, store, order, amountUsd, amountLocal)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.publishApplied(ctx, updated, discount.ID)
	return &ApplyDiscountResult{Order: updated, AmountUsd: amountUsd, AmountLocal: amountLocal}, nil
}

// ApplyToItem applies an item-level discount against one line total.
func (s *DiscountService) ApplyToItem(ctx context.Context, req ApplyDiscountRequest) (*ApplyDiscountResult, error) {
	if err := authorize(req.Actor, enum.UserRoleCashier, enum.UserRoleManager); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	discount, err := s.usableDiscount(ctx, store, req.DiscountID, enum.DiscountAppliesToItem)
	if err != nil {
		return nil, err
	}

	item, err := store.GetOrderItem(ctx, req.TargetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderItemNotFound
		}
		return nil, fmt.Errorf("get order item: %w", err)
	}

	order, err := lockOpenOrder(ctx, store, item.OrderID)
	if err != nil {
		return nil, err
	}

	exists, err := store.OrderItemDiscountExists(ctx, database.OrderItemDiscountExistsParams{OrderItemID: item.ID, DiscountID: discount.ID})
	if err != nil {
		return nil, fmt.Errorf("check item discount: %w", err)
	}
	if exists {
		return nil, ErrDiscountAlreadyApplied
	}

	// The line cannot be discounted below zero either.
	remainingLine := numericToDecimal(item.LineTotalUsd).Sub(numericToDecimal(item.DiscountAmountUsd))
	amountUsd, amountLocal := discountAmounts(discount, numericToDecimal(item.LineTotalUsd), order)
	amountUsd = decimal.Min(amountUsd, decimal.Max(remainingLine, decimal.Zero))
	if remainingLocal := item.LineTotalLocal - item.DiscountAmountLocal; amountLocal > remainingLocal {
		amountLocal = max(remainingLocal, 0)
	}

	if _, err := store.CreateOrderItemDiscount(ctx, database.CreateOrderItemDiscountParams{
		OrderItemID:  item.ID,
		DiscountID:   discount.ID,
		DiscountName: discount.Name,
		AmountUsd:    decimalToNumeric(amountUsd),
		AmountLocal:  amountLocal,
		AppliedBy:    req.Actor.UserID,
	}); err != nil {
		if isDiscountConflict(err) {
			return nil, ErrDiscountAlreadyApplied
		}
		return nil, fmt.Errorf("create order item discount: %w", err)
	}

	if _, err := store.AddOrderItemDiscount(ctx, database.AddOrderItemDiscountParams{
		ID:          item.ID,
		AmountUsd:   decimalToNumeric(amountUsd),
		AmountLocal: amountLocal,
	}); err != nil {
		return nil, fmt.Errorf("update order item discount: %w", err)
	}

	updated, err := addToOrderTotals(ctx, store, order, amountUsd, amountLocal)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.publishApplied(ctx, updated, discount.ID)
	return &ApplyDiscountResult{Order: updated, AmountUsd: amountUsd, AmountLocal: amountLocal}, nil
}

func (s *DiscountService) usableDiscount(ctx context.Context, store DiscountStore, id uuid.UUID, appliesTo string) (database.Discount, error) {
	discount, err := store.GetDiscount(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Discount{}, ErrDiscountNotFound
		}
		return database.Discount{}, fmt.Errorf("get discount: %w", err)
	}
	if !discount.IsActive {
		return database.Discount{}, ErrDiscountInactive
	}

	today := s.now().In(s.loc)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if discount.StartDate.Valid && today.Before(dateOnly(discount.StartDate.Time)) {
		return database.Discount{}, ErrDiscountNotInEffect
	}
	if discount.EndDate.Valid && today.After(dateOnly(discount.EndDate.Time)) {
		return database.Discount{}, ErrDiscountNotInEffect
	}

	if discount.AppliesTo != appliesTo {
		return database.Discount{}, fmt.Errorf("%w: discount applies to %s", ErrDiscountTargetMismatch, discount.AppliesTo)
	}
	return discount, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func lockOpenOrder(ctx context.Context, store DiscountStore, id uuid.UUID) (database.Order, error) {
	order, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.OrderStatusCompleted || order.Status == enum.OrderStatusCancelled {
		return database.Order{}, ErrOrderClosed
	}
	return order, nil
}

// discountAmounts computes the USD amount against target, capped at what is
// left of the order's final total, and its local equivalent at the rate
// captured on the order, capped the same way in local currency.
func discountAmounts(d database.Discount, target decimal.Decimal, order database.Order) (decimal.Decimal, int64) {
	amountUsd := ComputeDiscount(d.DiscountType, numericToDecimal(d.Value), target)
	amountUsd = decimal.Min(amountUsd, decimal.Max(numericToDecimal(order.FinalTotalUsd), decimal.Zero))

	conv := currency.Converter{Rate: numericToDecimal(order.ExchangeRate), Granularity: order.RoundingFactor}
	amountLocal := conv.Convert(amountUsd)
	if amountLocal > order.FinalTotalLocal {
		amountLocal = max(order.FinalTotalLocal, 0)
	}
	return amountUsd, amountLocal
}

// ComputeDiscount returns the discount on target: percentage of the target
// rounded half-up to cents, or the fixed value but never more than target.
func ComputeDiscount(discountType string, value, target decimal.Decimal) decimal.Decimal {
	if target.Sign() <= 0 {
		return decimal.Zero
	}
	switch discountType {
	case enum.DiscountTypePercentage:
		return target.Mul(value).Div(decimal.NewFromInt(100)).Round(2)
	case enum.DiscountTypeFixed:
		return decimal.Min(value, target)
	}
	return decimal.Zero
}

// addToOrderTotals accumulates the discount and recomputes final totals,
// each currency from its own subtotal and discount total.
func addToOrderTotals(ctx context.Context, store DiscountStore, order database.Order, amountUsd decimal.Decimal, amountLocal int64) (database.Order, error) {
	discountUsd := numericToDecimal(order.DiscountTotalUsd).Add(amountUsd)
	discountLocal := order.DiscountTotalLocal + amountLocal

	updated, err := store.UpdateOrderDiscountTotals(ctx, database.UpdateOrderDiscountTotalsParams{
		ID:                 order.ID,
		DiscountTotalUsd:   decimalToNumeric(discountUsd),
		DiscountTotalLocal: discountLocal,
		FinalTotalUsd:      decimalToNumeric(numericToDecimal(order.SubtotalUsd).Sub(discountUsd)),
		FinalTotalLocal:    order.SubtotalLocal - discountLocal,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update order totals: %w", err)
	}
	return updated, nil
}

// isDiscountConflict reports a unique violation on either discount
// association table.
func isDiscountConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" &&
			(pgErr.ConstraintName == "order_discounts_order_id_discount_id_key" ||
				pgErr.ConstraintName == "order_item_discounts_order_item_id_discount_id_key")
	}
	return false
}

func (s *DiscountService) publishApplied(ctx context.Context, o database.Order, discountID uuid.UUID) {
	e, err := notify.NewEvent(notify.TopicOrders, notify.EventOrderDiscountApplied, notify.OrderDiscountAppliedPayload{
		OrderID:         o.ID.String(),
		DiscountID:      discountID.String(),
		FinalTotalUsd:   numericToDecimal(o.FinalTotalUsd).StringFixed(2),
		FinalTotalLocal: o.FinalTotalLocal,
	})
	if err != nil {
		log.Printf("ERROR: build order.discount_applied event: %v", err)
		return
	}
	if err := s.notifier.Publish(ctx, e); err != nil {
		log.Printf("ERROR: publish order.discount_applied for %s: %v", o.OrderNumber, err)
	}
}
