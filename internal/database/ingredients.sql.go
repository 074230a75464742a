package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const ingredientColumns = `id, name, unit, current_stock, reorder_level, cost_per_unit_usd, is_active, created_at, updated_at`

func scanIngredient(row interface{ Scan(...interface{}) error }) (Ingredient, error) {
	var i Ingredient
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Unit,
		&i.CurrentStock,
		&i.ReorderLevel,
		&i.CostPerUnitUsd,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectIngredients(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}) ([]Ingredient, error) {
	defer rows.Close()
	items := []Ingredient{}
	for rows.Next() {
		i, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listIngredients = `-- name: ListIngredients :many
SELECT ` + ingredientColumns + ` FROM ingredients
WHERE ($1::boolean IS NULL OR is_active = $1)
ORDER BY name
`

func (q *Queries) ListIngredients(ctx context.Context, isActive pgtype.Bool) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, listIngredients, isActive)
	if err != nil {
		return nil, err
	}
	return collectIngredients(rows)
}

const listLowStockIngredients = `-- name: ListLowStockIngredients :many
SELECT ` + ingredientColumns + ` FROM ingredients
WHERE is_active = true AND current_stock <= reorder_level
ORDER BY name
`

func (q *Queries) ListLowStockIngredients(ctx context.Context) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, listLowStockIngredients)
	if err != nil {
		return nil, err
	}
	return collectIngredients(rows)
}

const getIngredient = `-- name: GetIngredient :one
SELECT ` + ingredientColumns + ` FROM ingredients
WHERE id = $1
`

func (q *Queries) GetIngredient(ctx context.Context, id uuid.UUID) (Ingredient, error) {
	return scanIngredient(q.db.QueryRow(ctx, getIngredient, id))
}

const getIngredientForUpdate = `-- name: GetIngredientForUpdate :one
SELECT ` + ingredientColumns + ` FROM ingredients
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (Ingredient, error) {
	return scanIngredient(q.db.QueryRow(ctx, getIngredientForUpdate, id))
}

// Rows are locked in id order so concurrent orders touching overlapping
// ingredients always acquire locks in the same sequence.
const lockIngredients = `-- name: LockIngredients :many
SELECT ` + ingredientColumns + ` FROM ingredients
WHERE id = ANY($1::uuid[])
ORDER BY id
FOR UPDATE
`

func (q *Queries) LockIngredients(ctx context.Context, ids []uuid.UUID) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, lockIngredients, ids)
	if err != nil {
		return nil, err
	}
	return collectIngredients(rows)
}

const updateIngredientStock = `-- name: UpdateIngredientStock :one
UPDATE ingredients
SET current_stock = current_stock + $2, updated_at = now()
WHERE id = $1
RETURNING ` + ingredientColumns

type UpdateIngredientStockParams struct {
	ID             uuid.UUID      `json:"id"`
	QuantityChange pgtype.Numeric `json:"quantity_change"`
}

func (q *Queries) UpdateIngredientStock(ctx context.Context, arg UpdateIngredientStockParams) (Ingredient, error) {
	return scanIngredient(q.db.QueryRow(ctx, updateIngredientStock, arg.ID, arg.QuantityChange))
}

const createIngredient = `-- name: CreateIngredient :one
INSERT INTO ingredients (name, unit, current_stock, reorder_level, cost_per_unit_usd)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + ingredientColumns

type CreateIngredientParams struct {
	Name           string         `json:"name"`
	Unit           string         `json:"unit"`
	CurrentStock   pgtype.Numeric `json:"current_stock"`
	ReorderLevel   pgtype.Numeric `json:"reorder_level"`
	CostPerUnitUsd pgtype.Numeric `json:"cost_per_unit_usd"`
}

func (q *Queries) CreateIngredient(ctx context.Context, arg CreateIngredientParams) (Ingredient, error) {
	return scanIngredient(q.db.QueryRow(ctx, createIngredient,
		arg.Name,
		arg.Unit,
		arg.CurrentStock,
		arg.ReorderLevel,
		arg.CostPerUnitUsd,
	))
}

// current_stock is deliberately absent: stock only moves through adjustments.
const updateIngredient = `-- name: UpdateIngredient :one
UPDATE ingredients
SET name = $2, unit = $3, reorder_level = $4, cost_per_unit_usd = $5, is_active = $6, updated_at = now()
WHERE id = $1
RETURNING ` + ingredientColumns

type UpdateIngredientParams struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Unit           string         `json:"unit"`
	ReorderLevel   pgtype.Numeric `json:"reorder_level"`
	CostPerUnitUsd pgtype.Numeric `json:"cost_per_unit_usd"`
	IsActive       bool           `json:"is_active"`
}

func (q *Queries) UpdateIngredient(ctx context.Context, arg UpdateIngredientParams) (Ingredient, error) {
	return scanIngredient(q.db.QueryRow(ctx, updateIngredient,
		arg.ID,
		arg.Name,
		arg.Unit,
		arg.ReorderLevel,
		arg.CostPerUnitUsd,
		arg.IsActive,
	))
}

const softDeleteIngredient = `-- name: SoftDeleteIngredient :one
UPDATE ingredients SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING id
`

func (q *Queries) SoftDeleteIngredient(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteIngredient, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}
