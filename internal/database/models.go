package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Category struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	ParentID  pgtype.UUID `json:"parent_id"`
	SortOrder int32       `json:"sort_order"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type MenuItem struct {
	ID           uuid.UUID      `json:"id"`
	CategoryID   uuid.UUID      `json:"category_id"`
	Name         string         `json:"name"`
	Description  pgtype.Text    `json:"description"`
	BasePriceUsd pgtype.Numeric `json:"base_price_usd"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type MenuItemOption struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	IsRequired bool      `json:"is_required"`
	SortOrder  int32     `json:"sort_order"`
	CreatedAt  time.Time `json:"created_at"`
}

type MenuItemOptionChoice struct {
	ID        uuid.UUID      `json:"id"`
	OptionID  uuid.UUID      `json:"option_id"`
	Name      string         `json:"name"`
	PriceMode string         `json:"price_mode"`
	PriceUsd  pgtype.Numeric `json:"price_usd"`
	IsDefault bool           `json:"is_default"`
	SortOrder int32          `json:"sort_order"`
	CreatedAt time.Time      `json:"created_at"`
}

type Ingredient struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Unit           string         `json:"unit"`
	CurrentStock   pgtype.Numeric `json:"current_stock"`
	ReorderLevel   pgtype.Numeric `json:"reorder_level"`
	CostPerUnitUsd pgtype.Numeric `json:"cost_per_unit_usd"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type Recipe struct {
	ID           uuid.UUID      `json:"id"`
	MenuItemID   uuid.UUID      `json:"menu_item_id"`
	IngredientID uuid.UUID      `json:"ingredient_id"`
	Quantity     pgtype.Numeric `json:"quantity"`
	CreatedAt    time.Time      `json:"created_at"`
}

type StockAdjustment struct {
	ID             uuid.UUID      `json:"id"`
	IngredientID   uuid.UUID      `json:"ingredient_id"`
	QuantityChange pgtype.Numeric `json:"quantity_change"`
	Reason         string         `json:"reason"`
	OrderID        pgtype.UUID    `json:"order_id"`
	AdjustedBy     uuid.UUID      `json:"adjusted_by"`
	CreatedAt      time.Time      `json:"created_at"`
}

type Discount struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Description  pgtype.Text    `json:"description"`
	DiscountType string         `json:"discount_type"`
	Value        pgtype.Numeric `json:"value"`
	AppliesTo    string         `json:"applies_to"`
	IsActive     bool           `json:"is_active"`
	StartDate    pgtype.Date    `json:"start_date"`
	EndDate      pgtype.Date    `json:"end_date"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type Order struct {
	ID                 uuid.UUID      `json:"id"`
	OrderNumber        string         `json:"order_number"`
	CustomerNumber     string         `json:"customer_number"`
	Status             string         `json:"status"`
	PaymentStatus      string         `json:"payment_status"`
	PaymentMethod      pgtype.Text    `json:"payment_method"`
	SubtotalUsd        pgtype.Numeric `json:"subtotal_usd"`
	SubtotalLocal      int64          `json:"subtotal_local"`
	DiscountTotalUsd   pgtype.Numeric `json:"discount_total_usd"`
	DiscountTotalLocal int64          `json:"discount_total_local"`
	FinalTotalUsd      pgtype.Numeric `json:"final_total_usd"`
	FinalTotalLocal    int64          `json:"final_total_local"`
	ExchangeRate       pgtype.Numeric `json:"exchange_rate"`
	RoundingFactor     int64          `json:"rounding_factor"`
	Notes              pgtype.Text    `json:"notes"`
	CreatedBy          uuid.UUID      `json:"created_by"`
	CashierID          pgtype.UUID    `json:"cashier_id"`
	BaristaID          pgtype.UUID    `json:"barista_id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type OrderItem struct {
	ID                  uuid.UUID      `json:"id"`
	OrderID             uuid.UUID      `json:"order_id"`
	MenuItemID          uuid.UUID      `json:"menu_item_id"`
	MenuItemName        string         `json:"menu_item_name"`
	OptionChoiceID      pgtype.UUID    `json:"option_choice_id"`
	OptionChoiceName    pgtype.Text    `json:"option_choice_name"`
	Quantity            int32          `json:"quantity"`
	UnitPriceUsd        pgtype.Numeric `json:"unit_price_usd"`
	UnitPriceLocal      int64          `json:"unit_price_local"`
	LineTotalUsd        pgtype.Numeric `json:"line_total_usd"`
	LineTotalLocal      int64          `json:"line_total_local"`
	DiscountAmountUsd   pgtype.Numeric `json:"discount_amount_usd"`
	DiscountAmountLocal int64          `json:"discount_amount_local"`
	CreatedAt           time.Time      `json:"created_at"`
}

type OrderDiscount struct {
	ID           uuid.UUID      `json:"id"`
	OrderID      uuid.UUID      `json:"order_id"`
	DiscountID   uuid.UUID      `json:"discount_id"`
	DiscountName string         `json:"discount_name"`
	AmountUsd    pgtype.Numeric `json:"amount_usd"`
	AmountLocal  int64          `json:"amount_local"`
	AppliedBy    uuid.UUID      `json:"applied_by"`
	CreatedAt    time.Time      `json:"created_at"`
}

type OrderItemDiscount struct {
	ID           uuid.UUID      `json:"id"`
	OrderItemID  uuid.UUID      `json:"order_item_id"`
	DiscountID   uuid.UUID      `json:"discount_id"`
	DiscountName string         `json:"discount_name"`
	AmountUsd    pgtype.Numeric `json:"amount_usd"`
	AmountLocal  int64          `json:"amount_local"`
	AppliedBy    uuid.UUID      `json:"applied_by"`
	CreatedAt    time.Time      `json:"created_at"`
}

type SystemSetting struct {
	Key         string      `json:"key"`
	Value       string      `json:"value"`
	Description pgtype.Text `json:"description"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
