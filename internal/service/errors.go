package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind classifies a service error so transports can map it to a status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	}
	return "internal"
}

// ErrForbidden is returned when the actor's role may not run a use case.
var ErrForbidden = errors.New("role not permitted")

var validationErrors = []error{
	ErrEmptyItems,
	ErrInvalidQuantity,
	ErrInvalidMenuItemID,
	ErrInvalidChoiceID,
	ErrChoiceMismatch,
	ErrInvalidStatus,
	ErrInvalidPaymentMethod,
	ErrReasonRequired,
	ErrZeroAdjustment,
	ErrInvalidExchangeRate,
	ErrInvalidRoundingFactor,
	ErrExchangeRateRange,
}

var notFoundErrors = []error{
	ErrMenuItemNotFound,
	ErrChoiceNotFound,
	ErrOrderNotFound,
	ErrOrderItemNotFound,
	ErrIngredientNotFound,
	ErrDiscountNotFound,
}

var conflictErrors = []error{
	ErrInsufficientStock,
	ErrNegativeStock,
	ErrInvalidTransition,
	ErrConcurrentUpdate,
	ErrDiscountInactive,
	ErrDiscountNotInEffect,
	ErrDiscountTargetMismatch,
	ErrDiscountAlreadyApplied,
	ErrOrderClosed,
}

// KindOf reports the kind of err. Unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if errors.Is(err, ErrForbidden) {
		return KindForbidden
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return KindValidation
		}
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return KindNotFound
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return KindConflict
		}
	}
	return KindInternal
}

// Shortage describes one ingredient that cannot cover an order.
type Shortage struct {
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Name         string          `json:"name"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
	Unit         string          `json:"unit"`
}

// InsufficientStockError lists every shortage found for an order, sorted by
// ingredient name.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		parts[i] = fmt.Sprintf("%s (need %s %s, have %s)", s.Name, s.Required.String(), s.Unit, s.Available.String())
	}
	return fmt.Sprintf("%s: %s", ErrInsufficientStock, strings.Join(parts, ", "))
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// TransitionError is returned for a status change the table does not allow.
type TransitionError struct {
	From string
	To   string
	Role string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s not allowed for role %s", ErrInvalidTransition, e.From, e.To, e.Role)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
