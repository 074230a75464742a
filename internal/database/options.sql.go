package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listOptionsByMenuItem = `-- name: ListOptionsByMenuItem :many
SELECT id, menu_item_id, name, is_required, sort_order, created_at
FROM menu_item_options
WHERE menu_item_id = $1
ORDER BY sort_order, name
`

func (q *Queries) ListOptionsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]MenuItemOption, error) {
	rows, err := q.db.Query(ctx, listOptionsByMenuItem, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItemOption{}
	for rows.Next() {
		var i MenuItemOption
		if err := rows.Scan(
			&i.ID,
			&i.MenuItemID,
			&i.Name,
			&i.IsRequired,
			&i.SortOrder,
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

const getMenuItemOption = `-- name: GetMenuItemOption :one
SELECT id, menu_item_id, name, is_required, sort_order, created_at
FROM menu_item_options
WHERE id = $1 AND menu_item_id = $2
`

type GetMenuItemOptionParams struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
}

func (q *Queries) GetMenuItemOption(ctx context.Context, arg GetMenuItemOptionParams) (MenuItemOption, error) {
	row := q.db.QueryRow(ctx, getMenuItemOption, arg.ID, arg.MenuItemID)
	var i MenuItemOption
	err := row.Scan(
		&i.ID,
		&i.MenuItemID,
		&i.Name,
		&i.IsRequired,
		&i.SortOrder,
		&i.CreatedAt,
	)
	return i, err
}

const createMenuItemOption = `-- name: CreateMenuItemOption :one
INSERT INTO menu_item_options (menu_item_id, name, is_required, sort_order)
VALUES ($1, $2, $3, $4)
RETURNING id, menu_item_id, name, is_required, sort_order, created_at
`

type CreateMenuItemOptionParams struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	IsRequired bool      `json:"is_required"`
	SortOrder  int32     `json:"sort_order"`
}

func (q *Queries) CreateMenuItemOption(ctx context.Context, arg CreateMenuItemOptionParams) (MenuItemOption, error) {
	row := q.db.QueryRow(ctx, createMenuItemOption,
		arg.MenuItemID,
		arg.Name,
		arg.IsRequired,
		arg.SortOrder,
	)
	var i MenuItemOption
	err := row.Scan(
		&i.ID,
		&i.MenuItemID,
		&i.Name,
		&i.IsRequired,
		&i.SortOrder,
		&i.CreatedAt,
	)
	return i, err
}

const deleteMenuItemOption = `-- name: DeleteMenuItemOption :one
DELETE FROM menu_item_options
WHERE id = $1 AND menu_item_id = $2
RETURNING id
`

type DeleteMenuItemOptionParams struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
}

func (q *Queries) DeleteMenuItemOption(ctx context.Context, arg DeleteMenuItemOptionParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteMenuItemOption, arg.ID, arg.MenuItemID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}

const choiceColumns = `c.id, c.option_id, c.name, c.price_mode, c.price_usd, c.is_default, c.sort_order, c.created_at`

func scanChoice(row interface{ Scan(...interface{}) error }) (MenuItemOptionChoice, error) {
	var i MenuItemOptionChoice
	err := row.Scan(
		&i.ID,
		&i.OptionID,
		&i.Name,
		&i.PriceMode,
		&i.PriceUsd,
		&i.IsDefault,
		&i.SortOrder,
		&i.CreatedAt,
	)
	return i, err
}

const listChoicesByMenuItem = `-- name: ListChoicesByMenuItem :many
SELECT ` + choiceColumns + `
FROM menu_item_option_choices c
JOIN menu_item_options o ON o.id = c.option_id
WHERE o.menu_item_id = $1
ORDER BY c.option_id, c.sort_order, c.name
`

func (q *Queries) ListChoicesByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]MenuItemOptionChoice, error) {
	rows, err := q.db.Query(ctx, listChoicesByMenuItem, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItemOptionChoice{}
	for rows.Next() {
		i, err := scanChoice(rows)
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

const getChoiceForOrder = `-- name: GetChoiceForOrder :one
SELECT c.id, c.name, c.price_mode, c.price_usd, o.menu_item_id, o.name AS option_name
FROM menu_item_option_choices c
JOIN menu_item_options o ON o.id = c.option_id
WHERE c.id = $1
`

type GetChoiceForOrderRow struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	PriceMode  string         `json:"price_mode"`
	PriceUsd   pgtype.Numeric `json:"price_usd"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	OptionName string         `json:"option_name"`
}

func (q *Queries) GetChoiceForOrder(ctx context.Context, id uuid.UUID) (GetChoiceForOrderRow, error) {
	row := q.db.QueryRow(ctx, getChoiceForOrder, id)
	var i GetChoiceForOrderRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.PriceMode,
		&i.PriceUsd,
		&i.MenuItemID,
		&i.OptionName,
	)
	return i, err
}

const clearDefaultChoice = `-- name: ClearDefaultChoice :exec
UPDATE menu_item_option_choices
SET is_default = false
WHERE option_id = $1 AND id <> $2 AND is_default
`

type ClearDefaultChoiceParams struct {
	OptionID uuid.UUID `json:"option_id"`
	ExceptID uuid.UUID `json:"except_id"`
}

func (q *Queries) ClearDefaultChoice(ctx context.Context, arg ClearDefaultChoiceParams) error {
	_, err := q.db.Exec(ctx, clearDefaultChoice, arg.OptionID, arg.ExceptID)
	return err
}

const createOptionChoice = `-- name: CreateOptionChoice :one
INSERT INTO menu_item_option_choices AS c (option_id, name, price_mode, price_usd, is_default, sort_order)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + choiceColumns

type CreateOptionChoiceParams struct {
	OptionID  uuid.UUID      `json:"option_id"`
	Name      string         `json:"name"`
	PriceMode string         `json:"price_mode"`
	PriceUsd  pgtype.Numeric `json:"price_usd"`
	IsDefault bool           `json:"is_default"`
	SortOrder int32          `json:"sort_order"`
}

func (q *Queries) CreateOptionChoice(ctx context.Context, arg CreateOptionChoiceParams) (MenuItemOptionChoice, error) {
	return scanChoice(q.db.QueryRow(ctx, createOptionChoice,
		arg.OptionID,
		arg.Name,
		arg.PriceMode,
		arg.PriceUsd,
		arg.IsDefault,
		arg.SortOrder,
	))
}

const updateOptionChoice = `-- name: UpdateOptionChoice :one
UPDATE menu_item_option_choices AS c
SET name = $3, price_mode = $4, price_usd = $5, is_default = $6, sort_order = $7
WHERE c.id = $1 AND c.option_id = $2
RETURNING ` + choiceColumns

type UpdateOptionChoiceParams struct {
	ID        uuid.UUID      `json:"id"`
	OptionID  uuid.UUID      `json:"option_id"`
	Name      string         `json:"name"`
	PriceMode string         `json:"price_mode"`
	PriceUsd  pgtype.Numeric `json:"price_usd"`
	IsDefault bool           `json:"is_default"`
	SortOrder int32          `json:"sort_order"`
}

func (q *Queries) UpdateOptionChoice(ctx context.Context, arg UpdateOptionChoiceParams) (MenuItemOptionChoice, error) {
	return scanChoice(q.db.QueryRow(ctx, updateOptionChoice,
		arg.ID,
		arg.OptionID,
		arg.Name,
		arg.PriceMode,
		arg.PriceUsd,
		arg.IsDefault,
		arg.SortOrder,
	))
}

const deleteOptionChoice = `-- name: DeleteOptionChoice :one
DELETE FROM menu_item_option_choices
WHERE id = $1 AND option_id = $2
RETURNING id
`

type DeleteOptionChoiceParams struct {
	ID       uuid.UUID `json:"id"`
	OptionID uuid.UUID `json:"option_id"`
}

func (q *Queries) DeleteOptionChoice(ctx context.Context, arg DeleteOptionChoiceParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteOptionChoice, arg.ID, arg.OptionID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}
