package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Errors returned by status transitions.
var (
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrInvalidTransition    = errors.New("status transition not permitted")
	ErrConcurrentUpdate     = errors.New("order changed concurrently, please retry")
)

type transition struct {
	from string
	to   string
}

// transitionRoles is the complete whitelist. Anything absent is rejected.
var transitionRoles = map[transition][]string{
	{enum.OrderStatusPendingPayment, enum.OrderStatusPaidWaitingPreparation}: {enum.UserRoleCashier, enum.UserRoleManager},
	{enum.OrderStatusPaidWaitingPreparation, enum.OrderStatusPreparing}:      {enum.UserRoleBarista, enum.UserRoleManager},
	{enum.OrderStatusPreparing, enum.OrderStatusReadyForPickup}:              {enum.UserRoleBarista, enum.UserRoleManager},
	{enum.OrderStatusReadyForPickup, enum.OrderStatusCompleted}:              {enum.UserRoleCashier, enum.UserRoleCourier, enum.UserRoleManager},

	{enum.OrderStatusPendingPayment, enum.OrderStatusCancelled}:         {enum.UserRoleCashier, enum.UserRoleManager},
	{enum.OrderStatusPaidWaitingPreparation, enum.OrderStatusCancelled}: {enum.UserRoleManager},
	{enum.OrderStatusPreparing, enum.OrderStatusCancelled}:              {enum.UserRoleManager},
	{enum.OrderStatusReadyForPickup, enum.OrderStatusCancelled}:         {enum.UserRoleManager},
}

// Cancelling from these states puts the placement deduction back on the shelf.
var restockOnCancel = map[string]bool{
	enum.OrderStatusPendingPayment:         true,
	enum.OrderStatusPaidWaitingPreparation: true,
}

// CanTransition reports whether role may move an order from one status to another.
func CanTransition(from, to, role string) bool {
	for _, r := range transitionRoles[transition{from, to}] {
		if r == role {
			return true
		}
	}
	return false
}

// IsValidOrderStatus checks if the given status is a known order status.
func IsValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPendingPayment,
		enum.OrderStatusPaidWaitingPreparation,
		enum.OrderStatusPreparing,
		enum.OrderStatusReadyForPickup,
		enum.OrderStatusCompleted,
		enum.OrderStatusCancelled:
		return true
	}
	return false
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodMobile:
		return true
	}
	return false
}

// TransitionRequest moves an order to a new status.
type TransitionRequest struct {
	OrderID       uuid.UUID
	Status        string
	PaymentMethod string
	Actor         Actor
}

// TransitionStatus applies one whitelisted status change under a row lock.
// Rejected transitions return *TransitionError and leave the order untouched.
func (s *OrderService) TransitionStatus(ctx context.Context, req TransitionRequest) (database.Order, error) {
	if !IsValidOrderStatus(req.Status) {
		return database.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}
	if req.PaymentMethod != "" && !isValidPaymentMethod(req.PaymentMethod) {
		return database.Order{}, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrderForUpdate(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if !CanTransition(current.Status, req.Status, req.Actor.Role) {
		return database.Order{}, &TransitionError{From: current.Status, To: req.Status, Role: req.Actor.Role}
	}

	params := database.UpdateOrderStatusParams{
		ID:         current.ID,
		Status:     req.Status,
		FromStatus: current.Status,
	}
	actorID := pgtype.UUID{Bytes: req.Actor.UserID, Valid: true}

	switch req.Status {
	case enum.OrderStatusPaidWaitingPreparation:
		method := req.PaymentMethod
		if method == "" {
			method = enum.PaymentMethodCash
		}
		params.PaymentMethod = pgtype.Text{String: method, Valid: true}
		params.PaymentStatus = pgtype.Text{String: enum.PaymentStatusPaid, Valid: true}
		if req.Actor.Role == enum.UserRoleCashier {
			params.CashierID = actorID
		}
	case enum.OrderStatusPreparing:
		if req.Actor.Role == enum.UserRoleBarista {
			params.BaristaID = actorID
		}
	case enum.OrderStatusCancelled:
		if current.PaymentStatus == enum.PaymentStatusPaid {
			params.PaymentStatus = pgtype.Text{String: enum.PaymentStatusRefunded, Valid: true}
		}
	}

	updated, err := store.UpdateOrderStatus(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrConcurrentUpdate
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if req.Status == enum.OrderStatusCancelled && restockOnCancel[current.Status] {
		if err := restoreOrderStock(ctx, store, current.ID, req.Actor); err != nil {
			return database.Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.publishStatusChanged(ctx, updated, current.Status, req.Actor.Role)
	return updated, nil
}

// restoreOrderStock mirrors every placement deduction of an order with a
// positive adjustment.
func restoreOrderStock(ctx context.Context, store OrderStore, orderID uuid.UUID, actor Actor) error {
	link := pgtype.UUID{Bytes: orderID, Valid: true}
	adjustments, err := store.ListOrderStockAdjustments(ctx, link)
	if err != nil {
		return fmt.Errorf("list order stock adjustments: %w", err)
	}

	restore := make(Requirements)
	for _, a := range adjustments {
		if a.Reason != ReasonOrderPlacement {
			continue
		}
		delta := numericToDecimal(a.QuantityChange)
		if delta.IsNegative() {
			restore[a.IngredientID] = restore[a.IngredientID].Add(delta.Neg())
		}
	}

	ids := restore.ids()
	if len(ids) == 0 {
		return nil
	}
	if _, err := store.LockIngredients(ctx, ids); err != nil {
		return fmt.Errorf("lock ingredients: %w", err)
	}

	for _, id := range ids {
		qty := restore[id]
		if _, err := store.UpdateIngredientStock(ctx, database.UpdateIngredientStockParams{
			ID:             id,
			QuantityChange: exactNumeric(qty),
		}); err != nil {
			return fmt.Errorf("restore stock %s: %w", id, err)
		}
		if _, err := store.CreateStockAdjustment(ctx, database.CreateStockAdjustmentParams{
			IngredientID:   id,
			QuantityChange: exactNumeric(qty),
			Reason:         ReasonOrderCancellation,
			OrderID:        link,
			AdjustedBy:     actor.UserID,
		}); err != nil {
			return fmt.Errorf("log restore for %s: %w", id, err)
		}
	}
	return nil
}

func (s *OrderService) publishStatusChanged(ctx context.Context, o database.Order, from, role string) {
	e, err := notify.NewEvent(notify.TopicOrders, notify.EventOrderStatusChanged, notify.OrderStatusChangedPayload{
		OrderID:        o.ID.String(),
		OrderNumber:    o.OrderNumber,
		CustomerNumber: o.CustomerNumber,
		From:           from,
		To:             o.Status,
		ActorRole:      role,
	})
	if err != nil {
		log.Printf("ERROR: build order.status_changed event: %v", err)
		return
	}
	if err := s.notifier.Publish(ctx, e); err != nil {
		log.Printf("ERROR: publish order.status_changed for %s: %v", o.OrderNumber, err)
	}
}
