package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const discountColumns = `id, name, description, discount_type, value, applies_to, is_active, start_date, end_date, created_at, updated_at`

func scanDiscount(row interface{ Scan(...interface{}) error }) (Discount, error) {
	var i Discount
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.DiscountType,
		&i.Value,
		&i.AppliesTo,
		&i.IsActive,
		&i.StartDate,
		&i.EndDate,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listDiscounts = `-- name: ListDiscounts :many
SELECT ` + discountColumns + ` FROM discounts
WHERE ($1::boolean IS NULL OR is_active = $1)
ORDER BY name
`

func (q *Queries) ListDiscounts(ctx context.Context, isActive pgtype.Bool) ([]Discount, error) {
	rows, err := q.db.Query(ctx, listDiscounts, isActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Discount{}
	for rows.Next() {
		i, err := scanDiscount(rows)
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

const getDiscount = `-- name: GetDiscount :one
SELECT ` + discountColumns + ` FROM discounts
WHERE id = $1
`

func (q *Queries) GetDiscount(ctx context.Context, id uuid.UUID) (Discount, error) {
	return scanDiscount(q.db.QueryRow(ctx, getDiscount, id))
}

const createDiscount = `-- name: CreateDiscount :one
INSERT INTO discounts (name, description, discount_type, value, applies_to, start_date, end_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + discountColumns

type CreateDiscountParams struct {
	Name         string         `json:"name"`
	Description  pgtype.Text    `json:"description"`
	DiscountType string         `json:"discount_type"`
	Value        pgtype.Numeric `json:"value"`
	AppliesTo    string         `json:"applies_to"`
	StartDate    pgtype.Date    `json:"start_date"`
	EndDate      pgtype.Date    `json:"end_date"`
}

func (q *Queries) CreateDiscount(ctx context.Context, arg CreateDiscountParams) (Discount, error) {
	return scanDiscount(q.db.QueryRow(ctx, createDiscount,
		arg.Name,
		arg.Description,
		arg.DiscountType,
		arg.Value,
		arg.AppliesTo,
		arg.StartDate,
		arg.EndDate,
	))
}

const updateDiscount = `-- name: UpdateDiscount :one
UPDATE discounts
SET name = $2, description = $3, discount_type = $4, value = $5, applies_to = $6,
    is_active = $7, start_date = $8, end_date = $9, updated_at = now()
WHERE id = $1
RETURNING ` + discountColumns

type UpdateDiscountParams struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Description  pgtype.Text    `json:"description"`
	DiscountType string         `json:"discount_type"`
	Value        pgtype.Numeric `json:"value"`
	AppliesTo    string         `json:"applies_to"`
	IsActive     bool           `json:"is_active"`
	StartDate    pgtype.Date    `json:"start_date"`
	EndDate      pgtype.Date    `json:"end_date"`
}

func (q *Queries) UpdateDiscount(ctx context.Context, arg UpdateDiscountParams) (Discount, error) {
	return scanDiscount(q.db.QueryRow(ctx, updateDiscount,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.DiscountType,
		arg.Value,
		arg.AppliesTo,
		arg.IsActive,
		arg.StartDate,
		arg.EndDate,
	))
}

const softDeleteDiscount = `-- name: SoftDeleteDiscount :one
UPDATE discounts SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING id
`

func (q *Queries) SoftDeleteDiscount(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteDiscount, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}

const orderDiscountExists = `-- name: OrderDiscountExists :one
SELECT EXISTS (
    SELECT 1 FROM order_discounts WHERE order_id = $1 AND discount_id = $2
)
`

type OrderDiscountExistsParams struct {
	OrderID    uuid.UUID `json:"order_id"`
	DiscountID uuid.UUID `json:"discount_id"`
}

func (q *Queries) OrderDiscountExists(ctx context.Context, arg OrderDiscountExistsParams) (bool, error) {
	row := q.db.QueryRow(ctx, orderDiscountExists, arg.OrderID, arg.DiscountID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const orderItemDiscountExists = `-- name: OrderItemDiscountExists :one
SELECT EXISTS (
    SELECT 1 FROM order_item_discounts WHERE order_item_id = $1 AND discount_id = $2
)
`

type OrderItemDiscountExistsParams struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
	DiscountID  uuid.UUID `json:"discount_id"`
}

func (q *Queries) OrderItemDiscountExists(ctx context.Context, arg OrderItemDiscountExistsParams) (bool, error) {
	row := q.db.QueryRow(ctx, orderItemDiscountExists, arg.OrderItemID, arg.DiscountID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const createOrderDiscount = `-- name: CreateOrderDiscount :one
INSERT INTO order_discounts (order_id, discount_id, discount_name, amount_usd, amount_local, applied_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, discount_id, discount_name, amount_usd, amount_local, applied_by, created_at
`

type CreateOrderDiscountParams struct {
	OrderID      uuid.UUID      `json:"order_id"`
	DiscountID   uuid.UUID      `json:"discount_id"`
	DiscountName string         `json:"discount_name"`
	AmountUsd    pgtype.Numeric `json:"amount_usd"`
	AmountLocal  int64          `json:"amount_local"`
	AppliedBy    uuid.UUID      `json:"applied_by"`
}

func (q *Queries) CreateOrderDiscount(ctx context.Context, arg CreateOrderDiscountParams) (OrderDiscount, error) {
	row := q.db.QueryRow(ctx, createOrderDiscount,
		arg.OrderID,
		arg.DiscountID,
		arg.DiscountName,
		arg.AmountUsd,
		arg.AmountLocal,
		arg.AppliedBy,
	)
	var i OrderDiscount
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.DiscountID,
		&i.DiscountName,
		&i.AmountUsd,
		&i.AmountLocal,
		&i.AppliedBy,
		&i.CreatedAt,
	)
	return i, err
}

const createOrderItemDiscount = `-- name: CreateOrderItemDiscount :one
INSERT INTO order_item_discounts (order_item_id, discount_id, discount_name, amount_usd, amount_local, applied_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_item_id, discount_id, discount_name, amount_usd, amount_local, applied_by, created_at
`

type CreateOrderItemDiscountParams struct {
	OrderItemID  uuid.UUID      `json:"order_item_id"`
	DiscountID   uuid.UUID      `json:"discount_id"`
	DiscountName string         `json:"discount_name"`
	AmountUsd    pgtype.Numeric `json:"amount_usd"`
	AmountLocal  int64          `json:"amount_local"`
	AppliedBy    uuid.UUID      `json:"applied_by"`
}

func (q *Queries) CreateOrderItemDiscount(ctx context.Context, arg CreateOrderItemDiscountParams) (OrderItemDiscount, error) {
	row := q.db.QueryRow(ctx, createOrderItemDiscount,
		arg.OrderItemID,
		arg.DiscountID,
		arg.DiscountName,
		arg.AmountUsd,
		arg.AmountLocal,
		arg.AppliedBy,
	)
	var i OrderItemDiscount
	err := row.Scan(
		&i.ID,
		&i.OrderItemID,
		&i.DiscountID,
		&i.DiscountName,
		&i.AmountUsd,
		&i.AmountLocal,
		&i.AppliedBy,
		&i.CreatedAt,
	)
	return i, err
}

const listOrderDiscounts = `-- name: ListOrderDiscounts :many
SELECT id, order_id, discount_id, discount_name, amount_usd, amount_local, applied_by, created_at
FROM order_discounts
WHERE order_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrderDiscounts(ctx context.Context, orderID uuid.UUID) ([]OrderDiscount, error) {
	rows, err := q.db.Query(ctx, listOrderDiscounts, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderDiscount{}
	for rows.Next() {
		var i OrderDiscount
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.DiscountID,
			&i.DiscountName,
			&i.AmountUsd,
			&i.AmountLocal,
			&i.AppliedBy,
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

const listOrderItemDiscountsByOrder = `-- name: ListOrderItemDiscountsByOrder :many
SELECT d.id, d.order_item_id, d.discount_id, d.discount_name, d.amount_usd, d.amount_local, d.applied_by, d.created_at
FROM order_item_discounts d
JOIN order_items oi ON oi.id = d.order_item_id
WHERE oi.order_id = $1
ORDER BY d.created_at
`

func (q *Queries) ListOrderItemDiscountsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItemDiscount, error) {
	rows, err := q.db.Query(ctx, listOrderItemDiscountsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItemDiscount{}
	for rows.Next() {
		var i OrderItemDiscount
		if err := rows.Scan(
			&i.ID,
			&i.OrderItemID,
			&i.DiscountID,
			&i.DiscountName,
			&i.AmountUsd,
			&i.AmountLocal,
			&i.AppliedBy,
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
