package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createStockAdjustment = `-- name: CreateStockAdjustment :one
INSERT INTO stock_adjustments (ingredient_id, quantity_change, reason, order_id, adjusted_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, ingredient_id, quantity_change, reason, order_id, adjusted_by, created_at
`

type CreateStockAdjustmentParams struct {
	IngredientID   uuid.UUID      `json:"ingredient_id"`
	QuantityChange pgtype.Numeric `json:"quantity_change"`
	Reason         string         `json:"reason"`
	OrderID        pgtype.UUID    `json:"order_id"`
	AdjustedBy     uuid.UUID      `json:"adjusted_by"`
}

func (q *Queries) CreateStockAdjustment(ctx context.Context, arg CreateStockAdjustmentParams) (StockAdjustment, error) {
	row := q.db.QueryRow(ctx, createStockAdjustment,
		arg.IngredientID,
		arg.QuantityChange,
		arg.Reason,
		arg.OrderID,
		arg.AdjustedBy,
	)
	var i StockAdjustment
	err := row.Scan(
		&i.ID,
		&i.IngredientID,
		&i.QuantityChange,
		&i.Reason,
		&i.OrderID,
		&i.AdjustedBy,
		&i.CreatedAt,
	)
	return i, err
}

const listOrderStockAdjustments = `-- name: ListOrderStockAdjustments :many
SELECT id, ingredient_id, quantity_change, reason, order_id, adjusted_by, created_at
FROM stock_adjustments
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderStockAdjustments(ctx context.Context, orderID pgtype.UUID) ([]StockAdjustment, error) {
	rows, err := q.db.Query(ctx, listOrderStockAdjustments, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StockAdjustment{}
	for rows.Next() {
		var i StockAdjustment
		if err := rows.Scan(
			&i.ID,
			&i.IngredientID,
			&i.QuantityChange,
			&i.Reason,
			&i.OrderID,
			&i.AdjustedBy,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listStockAdjustments = `-- name: ListStockAdjustments :many
SELECT a.id, a.ingredient_id, a.quantity_change, a.reason, a.order_id, a.adjusted_by, a.created_at,
       i.name AS ingredient_name, i.unit, u.username AS adjusted_by_username
FROM stock_adjustments a
JOIN ingredients i ON i.id = a.ingredient_id
JOIN users u ON u.id = a.adjusted_by
WHERE ($1::uuid IS NULL OR a.ingredient_id = $1)
  AND a.created_at >= $2
ORDER BY a.created_at DESC
LIMIT $3
`

type ListStockAdjustmentsParams struct {
	IngredientID pgtype.UUID `json:"ingredient_id"`
	Since        time.Time   `json:"since"`
	Limit        int32       `json:"limit"`
}

type ListStockAdjustmentsRow struct {
	ID                 uuid.UUID      `json:"id"`
	IngredientID       uuid.UUID      `json:"ingredient_id"`
	QuantityChange     pgtype.Numeric `json:"quantity_change"`
	Reason             string         `json:"reason"`
	OrderID            pgtype.UUID    `json:"order_id"`
	AdjustedBy         uuid.UUID      `json:"adjusted_by"`
	CreatedAt          time.Time      `json:"created_at"`
	IngredientName     string         `json:"ingredient_name"`
	Unit               string         `json:"unit"`
	AdjustedByUsername string         `json:"adjusted_by_username"`
}

func (q *Queries) ListStockAdjustments(ctx context.Context, arg ListStockAdjustmentsParams) ([]ListStockAdjustmentsRow, error) {
	rows, err := q.db.Query(ctx, listStockAdjustments, arg.IngredientID, arg.Since, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListStockAdjustmentsRow{}
	for rows.Next() {
		var i ListStockAdjustmentsRow
		if err := rows.Scan(
			&i.ID,
			&i.IngredientID,
			&i.QuantityChange,
			&i.Reason,
			&i.OrderID,
			&i.AdjustedBy,
			&i.CreatedAt,
			&i.IngredientName,
			&i.Unit,
			&i.AdjustedByUsername,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
