package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getDailySales = `-- name: GetDailySales :many
SELECT created_at::date AS sale_date,
       COUNT(*) AS order_count,
       COALESCE(SUM(subtotal_usd), 0)::numeric AS subtotal_usd,
       COALESCE(SUM(discount_total_usd), 0)::numeric AS discount_usd,
       COALESCE(SUM(final_total_usd), 0)::numeric AS net_usd,
       COALESCE(SUM(final_total_local), 0)::bigint AS net_local
FROM orders
WHERE status = 'completed'
  AND created_at >= $1 AND created_at < $2
GROUP BY created_at::date
ORDER BY sale_date
`

type GetDailySalesParams struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type GetDailySalesRow struct {
	SaleDate    pgtype.Date    `json:"sale_date"`
	OrderCount  int64          `json:"order_count"`
	SubtotalUsd pgtype.Numeric `json:"subtotal_usd"`
	DiscountUsd pgtype.Numeric `json:"discount_usd"`
	NetUsd      pgtype.Numeric `json:"net_usd"`
	NetLocal    int64          `json:"net_local"`
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, getDailySales, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetDailySalesRow{}
	for rows.Next() {
		var i GetDailySalesRow
		if err := rows.Scan(
			&i.SaleDate,
			&i.OrderCount,
			&i.SubtotalUsd,
			&i.DiscountUsd,
			&i.NetUsd,
			&i.NetLocal,
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

const getItemSales = `-- name: GetItemSales :many
SELECT oi.menu_item_id,
       oi.menu_item_name,
       COALESCE(SUM(oi.quantity), 0)::bigint AS quantity_sold,
       COALESCE(SUM(oi.line_total_usd - oi.discount_amount_usd), 0)::numeric AS revenue_usd,
       COALESCE(SUM(oi.line_total_local - oi.discount_amount_local), 0)::bigint AS revenue_local
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.status = 'completed'
  AND o.created_at >= $1 AND o.created_at < $2
GROUP BY oi.menu_item_id, oi.menu_item_name
ORDER BY quantity_sold DESC, oi.menu_item_name
`

type GetItemSalesParams struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type GetItemSalesRow struct {
	MenuItemID   uuid.UUID      `json:"menu_item_id"`
	MenuItemName string         `json:"menu_item_name"`
	QuantitySold int64          `json:"quantity_sold"`
	RevenueUsd   pgtype.Numeric `json:"revenue_usd"`
	RevenueLocal int64          `json:"revenue_local"`
}

func (q *Queries) GetItemSales(ctx context.Context, arg GetItemSalesParams) ([]GetItemSalesRow, error) {
	rows, err := q.db.Query(ctx, getItemSales, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetItemSalesRow{}
	for rows.Next() {
		var i GetItemSalesRow
		if err := rows.Scan(
			&i.MenuItemID,
			&i.MenuItemName,
			&i.QuantitySold,
			&i.RevenueUsd,
			&i.RevenueLocal,
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

const getDiscountUsage = `-- name: GetDiscountUsage :many
SELECT discount_id, discount_name,
       COUNT(*) AS times_applied,
       COALESCE(SUM(amount_usd), 0)::numeric AS total_usd,
       COALESCE(SUM(amount_local), 0)::bigint AS total_local
FROM (
    SELECT discount_id, discount_name, amount_usd, amount_local, created_at FROM order_discounts
    UNION ALL
    SELECT discount_id, discount_name, amount_usd, amount_local, created_at FROM order_item_discounts
) applied
WHERE created_at >= $1 AND created_at < $2
GROUP BY discount_id, discount_name
ORDER BY times_applied DESC, discount_name
`

type GetDiscountUsageParams struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type GetDiscountUsageRow struct {
	DiscountID   uuid.UUID      `json:"discount_id"`
	DiscountName string         `json:"discount_name"`
	TimesApplied int64          `json:"times_applied"`
	TotalUsd     pgtype.Numeric `json:"total_usd"`
	TotalLocal   int64          `json:"total_local"`
}

func (q *Queries) GetDiscountUsage(ctx context.Context, arg GetDiscountUsageParams) ([]GetDiscountUsageRow, error) {
	rows, err := q.db.Query(ctx, getDiscountUsage, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetDiscountUsageRow{}
	for rows.Next() {
		var i GetDiscountUsageRow
		if err := rows.Scan(
			&i.DiscountID,
			&i.DiscountName,
			&i.TimesApplied,
			&i.TotalUsd,
			&i.TotalLocal,
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
