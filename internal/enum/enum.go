package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPendingPayment         = "pending_payment"
	OrderStatusPaidWaitingPreparation = "paid_waiting_preparation"
	OrderStatusPreparing              = "preparing"
	OrderStatusReadyForPickup         = "ready_for_pickup"
	OrderStatusCompleted              = "completed"
	OrderStatusCancelled              = "cancelled"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// ── Borderline (CHECK constrained in DB) ──

const (
	UserRoleCourier = "courier"
	UserRoleCashier = "cashier"
	UserRoleBarista = "barista"
	UserRoleManager = "manager"
)

const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodMobile = "mobile"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed_amount"
)

const (
	DiscountAppliesToOrder = "order"
	DiscountAppliesToItem  = "item"
)

const (
	PriceModeOverride = "override"
	PriceModeDelta    = "delta"
)

// ── Configurable labels (no DB constraint) ──

const (
	AdjustmentTypeOrder   = "order"
	AdjustmentTypeRestock = "restock"
	AdjustmentTypeWaste   = "waste"
	AdjustmentTypeManual  = "manual"
)

const (
	SettingExchangeRate   = "usd_to_lbp_exchange_rate"
	SettingRoundingFactor = "lbp_rounding_factor"
)
