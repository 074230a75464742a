package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, customer_number, status, payment_status, payment_method,
    subtotal_usd, subtotal_local, discount_total_usd, discount_total_local,
    final_total_usd, final_total_local, exchange_rate, rounding_factor, notes,
    created_by, cashier_id, barista_id, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.CustomerNumber,
		&i.Status,
		&i.PaymentStatus,
		&i.PaymentMethod,
		&i.SubtotalUsd,
		&i.SubtotalLocal,
		&i.DiscountTotalUsd,
		&i.DiscountTotalLocal,
		&i.FinalTotalUsd,
		&i.FinalTotalLocal,
		&i.ExchangeRate,
		&i.RoundingFactor,
		&i.Notes,
		&i.CreatedBy,
		&i.CashierID,
		&i.BaristaID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrders(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}) ([]Order, error) {
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
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

// The upsert row stays locked until the surrounding transaction ends, so
// concurrent orders on the same day receive consecutive values.
const nextCustomerSequence = `-- name: NextCustomerSequence :one
INSERT INTO daily_counters (day, last_value)
VALUES ($1, 1)
ON CONFLICT (day) DO UPDATE SET last_value = daily_counters.last_value + 1
RETURNING last_value
`

func (q *Queries) NextCustomerSequence(ctx context.Context, day pgtype.Date) (int32, error) {
	row := q.db.QueryRow(ctx, nextCustomerSequence, day)
	var lastValue int32
	err := row.Scan(&lastValue)
	return lastValue, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    id, order_number, customer_number, status, payment_status,
    subtotal_usd, subtotal_local, discount_total_usd, discount_total_local,
    final_total_usd, final_total_local, exchange_rate, rounding_factor, notes, created_by
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, 0, 0, $8, $9, $10, $11, $12, $13
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	ID              uuid.UUID      `json:"id"`
	OrderNumber     string         `json:"order_number"`
	CustomerNumber  string         `json:"customer_number"`
	Status          string         `json:"status"`
	PaymentStatus   string         `json:"payment_status"`
	SubtotalUsd     pgtype.Numeric `json:"subtotal_usd"`
	SubtotalLocal   int64          `json:"subtotal_local"`
	FinalTotalUsd   pgtype.Numeric `json:"final_total_usd"`
	FinalTotalLocal int64          `json:"final_total_local"`
	ExchangeRate    pgtype.Numeric `json:"exchange_rate"`
	RoundingFactor  int64          `json:"rounding_factor"`
	Notes           pgtype.Text    `json:"notes"`
	CreatedBy       uuid.UUID      `json:"created_by"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.ID,
		arg.OrderNumber,
		arg.CustomerNumber,
		arg.Status,
		arg.PaymentStatus,
		arg.SubtotalUsd,
		arg.SubtotalLocal,
		arg.FinalTotalUsd,
		arg.FinalTotalLocal,
		arg.ExchangeRate,
		arg.RoundingFactor,
		arg.Notes,
		arg.CreatedBy,
	))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderByNumber = `-- name: GetOrderByNumber :one
SELECT ` + orderColumns + ` FROM orders
WHERE order_number = $1
`

func (q *Queries) GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByNumber, orderNumber))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1
FOR NO KEY UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListOrdersParams struct {
	Status    pgtype.Text        `json:"status"`
	StartDate pgtype.Timestamptz `json:"start_date"`
	EndDate   pgtype.Timestamptz `json:"end_date"`
	Limit     int32              `json:"limit"`
	Offset    int32              `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.Status,
		arg.StartDate,
		arg.EndDate,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const listOrdersByStatuses = `-- name: ListOrdersByStatuses :many
SELECT ` + orderColumns + ` FROM orders
WHERE status = ANY($1::text[])
ORDER BY created_at ASC
`

func (q *Queries) ListOrdersByStatuses(ctx context.Context, statuses []string) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByStatuses, statuses)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2,
    payment_status = COALESCE($4, payment_status),
    payment_method = COALESCE($5, payment_method),
    cashier_id = COALESCE($6, cashier_id),
    barista_id = COALESCE($7, barista_id),
    updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID            uuid.UUID   `json:"id"`
	Status        string      `json:"status"`
	FromStatus    string      `json:"from_status"`
	PaymentStatus pgtype.Text `json:"payment_status"`
	PaymentMethod pgtype.Text `json:"payment_method"`
	CashierID     pgtype.UUID `json:"cashier_id"`
	BaristaID     pgtype.UUID `json:"barista_id"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID,
		arg.Status,
		arg.FromStatus,
		arg.PaymentStatus,
		arg.PaymentMethod,
		arg.CashierID,
		arg.BaristaID,
	))
}

const updateOrderDiscountTotals = `-- name: UpdateOrderDiscountTotals :one
UPDATE orders
SET discount_total_usd = $2,
    discount_total_local = $3,
    final_total_usd = $4,
    final_total_local = $5,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderDiscountTotalsParams struct {
	ID                 uuid.UUID      `json:"id"`
	DiscountTotalUsd   pgtype.Numeric `json:"discount_total_usd"`
	DiscountTotalLocal int64          `json:"discount_total_local"`
	FinalTotalUsd      pgtype.Numeric `json:"final_total_usd"`
	FinalTotalLocal    int64          `json:"final_total_local"`
}

func (q *Queries) UpdateOrderDiscountTotals(ctx context.Context, arg UpdateOrderDiscountTotalsParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderDiscountTotals,
		arg.ID,
		arg.DiscountTotalUsd,
		arg.DiscountTotalLocal,
		arg.FinalTotalUsd,
		arg.FinalTotalLocal,
	))
}

const orderItemColumns = `id, order_id, menu_item_id, menu_item_name, option_choice_id, option_choice_name,
    quantity, unit_price_usd, unit_price_local, line_total_usd, line_total_local,
    discount_amount_usd, discount_amount_local, created_at`

func scanOrderItem(row interface{ Scan(...interface{}) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.MenuItemName,
		&i.OptionChoiceID,
		&i.OptionChoiceName,
		&i.Quantity,
		&i.UnitPriceUsd,
		&i.UnitPriceLocal,
		&i.LineTotalUsd,
		&i.LineTotalLocal,
		&i.DiscountAmountUsd,
		&i.DiscountAmountLocal,
		&i.CreatedAt,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (
    order_id, menu_item_id, menu_item_name, option_choice_id, option_choice_name,
    quantity, unit_price_usd, unit_price_local, line_total_usd, line_total_local
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID          uuid.UUID      `json:"order_id"`
	MenuItemID       uuid.UUID      `json:"menu_item_id"`
	MenuItemName     string         `json:"menu_item_name"`
	OptionChoiceID   pgtype.UUID    `json:"option_choice_id"`
	OptionChoiceName pgtype.Text    `json:"option_choice_name"`
	Quantity         int32          `json:"quantity"`
	UnitPriceUsd     pgtype.Numeric `json:"unit_price_usd"`
	UnitPriceLocal   int64          `json:"unit_price_local"`
	LineTotalUsd     pgtype.Numeric `json:"line_total_usd"`
	LineTotalLocal   int64          `json:"line_total_local"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.MenuItemID,
		arg.MenuItemName,
		arg.OptionChoiceID,
		arg.OptionChoiceName,
		arg.Quantity,
		arg.UnitPriceUsd,
		arg.UnitPriceLocal,
		arg.LineTotalUsd,
		arg.LineTotalLocal,
	))
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT ` + orderItemColumns + ` FROM order_items
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
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

const getOrderItem = `-- name: GetOrderItem :one
SELECT ` + orderItemColumns + ` FROM order_items
WHERE id = $1
`

func (q *Queries) GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, getOrderItem, id))
}

const addOrderItemDiscount = `-- name: AddOrderItemDiscount :one
UPDATE order_items
SET discount_amount_usd = discount_amount_usd + $2,
    discount_amount_local = discount_amount_local + $3
WHERE id = $1
RETURNING ` + orderItemColumns

type AddOrderItemDiscountParams struct {
	ID          uuid.UUID      `json:"id"`
	AmountUsd   pgtype.Numeric `json:"amount_usd"`
	AmountLocal int64          `json:"amount_local"`
}

func (q *Queries) AddOrderItemDiscount(ctx context.Context, arg AddOrderItemDiscountParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, addOrderItemDiscount, arg.ID, arg.AmountUsd, arg.AmountLocal))
}
