package handler

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// numericToString formats a USD amount with two decimals.
func numericToString(n pgtype.Numeric) string {
	return numericToDecimal(n).StringFixed(2)
}

// quantityToString formats a stock quantity without trailing zeros.
func quantityToString(n pgtype.Numeric) string {
	return numericToDecimal(n).String()
}

func nullableNumericToString(n pgtype.Numeric) *string {
	if !n.Valid {
		return nil
	}
	s := numericToString(n)
	return &s
}

// parseMoney parses a non-negative USD amount, rounded to cents.
func parseMoney(field, s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, fmt.Errorf("%s must be a decimal number", field)
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, fmt.Errorf("%s must be >= 0", field)
	}
	return toNumeric(d.StringFixed(2)), nil
}

// quantityScale matches the NUMERIC(12,3) stock and recipe columns.
const quantityScale = 3

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal number", field)
	}
	return d, nil
}

// parseQuantity parses a stock quantity as an exact decimal with at most
// three decimal places.
func parseQuantity(field, s string) (decimal.Decimal, error) {
	d, err := parseDecimal(field, s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.Equal(d.Round(quantityScale)) {
		return decimal.Zero, fmt.Errorf("%s must have at most %d decimal places", field, quantityScale)
	}
	return d, nil
}

func toNumeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(s)
	return n
}

func optionalText(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func uuidPtr(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := uuid.UUID(u.Bytes).String()
	return &s
}

func optionalUUID(s string) (pgtype.UUID, error) {
	if s == "" {
		return pgtype.UUID{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: id, Valid: true}, nil
}
