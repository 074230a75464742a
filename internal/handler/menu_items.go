package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// MenuStore defines the database methods needed by menu item, option and
// choice handlers. Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error)

	ListOptionsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemOption, error)
	ListChoicesByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemOptionChoice, error)
	GetMenuItemOption(ctx context.Context, arg database.GetMenuItemOptionParams) (database.MenuItemOption, error)
	CreateMenuItemOption(ctx context.Context, arg database.CreateMenuItemOptionParams) (database.MenuItemOption, error)
	DeleteMenuItemOption(ctx context.Context, arg database.DeleteMenuItemOptionParams) (uuid.UUID, error)

	ClearDefaultChoice(ctx context.Context, arg database.ClearDefaultChoiceParams) error
	CreateOptionChoice(ctx context.Context, arg database.CreateOptionChoiceParams) (database.MenuItemOptionChoice, error)
	UpdateOptionChoice(ctx context.Context, arg database.UpdateOptionChoiceParams) (database.MenuItemOptionChoice, error)
	DeleteOptionChoice(ctx context.Context, arg database.DeleteOptionChoiceParams) (uuid.UUID, error)
}

// MenuItemHandler handles menu items and their options and choices.
type MenuItemHandler struct {
	store    MenuStore
	pool     service.TxBeginner
	newStore func(db database.DBTX) MenuStore
}

// NewMenuItemHandler creates a new MenuItemHandler. Choice writes run in a
// transaction built from pool and newStore.
func NewMenuItemHandler(store MenuStore, pool service.TxBeginner, newStore func(db database.DBTX) MenuStore) *MenuItemHandler {
	return &MenuItemHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers the read endpoints. Expected to be mounted at /menu-items.
func (h *MenuItemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterManagerRoutes registers the write endpoints.
func (h *MenuItemHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	r.Post("/{id}/options", h.CreateOption)
	r.Delete("/{id}/options/{optionID}", h.DeleteOption)

	r.Post("/{id}/options/{optionID}/choices", h.CreateChoice)
	r.Put("/{id}/options/{optionID}/choices/{choiceID}", h.UpdateChoice)
	r.Delete("/{id}/options/{optionID}/choices/{choiceID}", h.DeleteChoice)
}

// --- Request / Response types ---

type menuItemRequest struct {
	CategoryID   string  `json:"category_id" validate:"required,uuid"`
	Name         string  `json:"name" validate:"required,max=150"`
	Description  *string `json:"description"`
	BasePriceUsd string  `json:"base_price_usd" validate:"required,numeric"`
	IsActive     *bool   `json:"is_active"`
}

type optionRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	IsRequired bool   `json:"is_required"`
	SortOrder  int32  `json:"sort_order" validate:"gte=0"`
}

type choiceRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	PriceMode string `json:"price_mode" validate:"omitempty,oneof=override delta"`
	PriceUsd  string `json:"price_usd" validate:"required,numeric"`
	IsDefault bool   `json:"is_default"`
	SortOrder int32  `json:"sort_order" validate:"gte=0"`
}

type menuItemResponse struct {
	ID           uuid.UUID        `json:"id"`
	CategoryID   uuid.UUID        `json:"category_id"`
	Name         string           `json:"name"`
	Description  *string          `json:"description"`
	BasePriceUsd string           `json:"base_price_usd"`
	IsActive     bool             `json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
	Options      []optionResponse `json:"options,omitempty"`
}

type optionResponse struct {
	ID         uuid.UUID        `json:"id"`
	Name       string           `json:"name"`
	IsRequired bool             `json:"is_required"`
	SortOrder  int32            `json:"sort_order"`
	Choices    []choiceResponse `json:"choices"`
}

type choiceResponse struct {
	ID        uuid.UUID `json:"id"`
	OptionID  uuid.UUID `json:"option_id"`
	Name      string    `json:"name"`
	PriceMode string    `json:"price_mode"`
	PriceUsd  string    `json:"price_usd"`
	IsDefault bool      `json:"is_default"`
	SortOrder int32     `json:"sort_order"`
}

// --- Menu item handlers ---

// List handles GET /menu-items?category_id=&active=.
func (h *MenuItemHandler) List(w http.ResponseWriter, r *http.Request) {
	var params database.ListMenuItemsParams

	if s := r.URL.Query().Get("category_id"); s != "" {
		id, err := optionalUUID(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		params.CategoryID = id
	}
	if s := r.URL.Query().Get("active"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "active must be true or false"})
			return
		}
		params.IsActive = pgtype.Bool{Bool: b, Valid: true}
	}

	items, err := h.store.ListMenuItems(r.Context(), params)
	if err != nil {
		writeInternalError(w, "list menu items", err)
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /menu-items/{id}, including options and their choices.
func (h *MenuItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "menu item")
	if !ok {
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		writeInternalError(w, "get menu item", err)
		return
	}

	options, err := h.store.ListOptionsByMenuItem(r.Context(), id)
	if err != nil {
		writeInternalError(w, "list options", err)
		return
	}
	choices, err := h.store.ListChoicesByMenuItem(r.Context(), id)
	if err != nil {
		writeInternalError(w, "list choices", err)
		return
	}

	byOption := make(map[uuid.UUID][]choiceResponse, len(options))
	for _, c := range choices {
		byOption[c.OptionID] = append(byOption[c.OptionID], toChoiceResponse(c))
	}

	resp := toMenuItemResponse(item)
	resp.Options = make([]optionResponse, len(options))
	for i, o := range options {
		cs := byOption[o.ID]
		if cs == nil {
			cs = []choiceResponse{}
		}
		resp.Options[i] = optionResponse{
			ID:         o.ID,
			Name:       o.Name,
			IsRequired: o.IsRequired,
			SortOrder:  o.SortOrder,
			Choices:    cs,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /menu-items.
func (h *MenuItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	price, err := parseMoney("base_price_usd", req.BasePriceUsd)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		CategoryID:   uuid.MustParse(req.CategoryID),
		Name:         strings.TrimSpace(req.Name),
		Description:  optionalText(req.Description),
		BasePriceUsd: price,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category not found"})
			return
		}
		writeInternalError(w, "create menu item", err)
		return
	}

	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Update handles PUT /menu-items/{id}.
func (h *MenuItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "menu item")
	if !ok {
		return
	}

	var req menuItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	price, err := parseMoney("base_price_usd", req.BasePriceUsd)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	item, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		ID:           id,
		CategoryID:   uuid.MustParse(req.CategoryID),
		Name:         strings.TrimSpace(req.Name),
		Description:  optionalText(req.Description),
		BasePriceUsd: price,
		IsActive:     active,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category not found"})
			return
		}
		writeInternalError(w, "update menu item", err)
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Delete handles DELETE /menu-items/{id} as a soft delete. Historical
// order lines keep their snapshotted name and price.
func (h *MenuItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "menu item")
	if !ok {
		return
	}

	if _, err := h.store.SoftDeleteMenuItem(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		writeInternalError(w, "delete menu item", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Option handlers ---

// CreateOption handles POST /menu-items/{id}/options.
func (h *MenuItemHandler) CreateOption(w http.ResponseWriter, r *http.Request) {
	menuItemID, ok := parseUUIDParam(w, r, "id", "menu item")
	if !ok {
		return
	}

	var req optionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	o, err := h.store.CreateMenuItemOption(r.Context(), database.CreateMenuItemOptionParams{
		MenuItemID: menuItemID,
		Name:       strings.TrimSpace(req.Name),
		IsRequired: req.IsRequired,
		SortOrder:  req.SortOrder,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		writeInternalError(w, "create option", err)
		return
	}

	writeJSON(w, http.StatusCreated, optionResponse{
		ID:         o.ID,
		Name:       o.Name,
		IsRequired: o.IsRequired,
		SortOrder:  o.SortOrder,
		Choices:    []choiceResponse{},
	})
}

// DeleteOption handles DELETE /menu-items/{id}/options/{optionID}.
func (h *MenuItemHandler) DeleteOption(w http.ResponseWriter, r *http.Request) {
	menuItemID, ok := parseUUIDParam(w, r, "id", "menu item")
	if !ok {
		return
	}
	optionID, ok := parseUUIDParam(w, r, "optionID", "option")
	if !ok {
		return
	}

	_, err := h.store.DeleteMenuItemOption(r.Context(), database.DeleteMenuItemOptionParams{
		ID:         optionID,
		MenuItemID: menuItemID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "option not found"})
			return
		}
		writeInternalError(w, "delete option", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Choice handlers ---

// CreateChoice handles POST /menu-items/{id}/options/{optionID}/choices.
func (h *MenuItemHandler) CreateChoice(w http.ResponseWriter, r *http.Request) {
	h.writeChoice(w, r, uuid.Nil)
}

// UpdateChoice handles PUT /menu-items/{id}/options/{optionID}/choices/{choiceID}.
func (h *MenuItemHandler) UpdateChoice(w http.ResponseWriter, r *http.Request) {
	choiceID, ok := parseUUIDParam(w, r, "choiceID", "choice")
	if !ok {
		return
	}
	h.writeChoice(w, r, choiceID)
}

// writeChoice creates (choiceID == uuid.Nil) or updates a choice. Setting
// is_default clears the previous default of the option in the same
// transaction.
func (h *MenuItemHandler) writeChoice(w http.ResponseWriter, r *http.Request, choiceID uuid.UUID) {
	menuItemID, ok := parseUUIDParam(w, r, "id", "menu item")
	if !ok {
		return
	}
	optionID, ok := parseUUIDParam(w, r, "optionID", "option")
	if !ok {
		return
	}

	var req choiceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	mode := req.PriceMode
	if mode == "" {
		mode = enum.PriceModeOverride
	}
	price, err := parseChoicePrice(mode, req.PriceUsd)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		writeInternalError(w, "begin tx", err)
		return
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := h.newStore(tx)

	if _, err := store.GetMenuItemOption(ctx, database.GetMenuItemOptionParams{ID: optionID, MenuItemID: menuItemID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "option not found"})
			return
		}
		writeInternalError(w, "get option", err)
		return
	}

	if req.IsDefault {
		if err := store.ClearDefaultChoice(ctx, database.ClearDefaultChoiceParams{OptionID: optionID, ExceptID: choiceID}); err != nil {
			writeInternalError(w, "clear default choice", err)
			return
		}
	}

	var choice database.MenuItemOptionChoice
	status := http.StatusOK
	if choiceID == uuid.Nil {
		status = http.StatusCreated
		choice, err = store.CreateOptionChoice(ctx, database.CreateOptionChoiceParams{
			OptionID:  optionID,
			Name:      strings.TrimSpace(req.Name),
			PriceMode: mode,
			PriceUsd:  price,
			IsDefault: req.IsDefault,
			SortOrder: req.SortOrder,
		})
	} else {
		choice, err = store.UpdateOptionChoice(ctx, database.UpdateOptionChoiceParams{
			ID:        choiceID,
			OptionID:  optionID,
			Name:      strings.TrimSpace(req.Name),
			PriceMode: mode,
			PriceUsd:  price,
			IsDefault: req.IsDefault,
			SortOrder: req.SortOrder,
		})
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "choice not found"})
			return
		}
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "option already has a default choice"})
			return
		}
		writeInternalError(w, "save choice", err)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeInternalError(w, "commit tx", err)
		return
	}

	writeJSON(w, status, toChoiceResponse(choice))
}

// DeleteChoice handles DELETE /menu-items/{id}/options/{optionID}/choices/{choiceID}.
// Order lines keep the snapshotted choice name.
func (h *MenuItemHandler) DeleteChoice(w http.ResponseWriter, r *http.Request) {
	optionID, ok := parseUUIDParam(w, r, "optionID", "option")
	if !ok {
		return
	}
	choiceID, ok := parseUUIDParam(w, r, "choiceID", "choice")
	if !ok {
		return
	}

	_, err := h.store.DeleteOptionChoice(r.Context(), database.DeleteOptionChoiceParams{
		ID:       choiceID,
		OptionID: optionID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "choice not found"})
			return
		}
		writeInternalError(w, "delete choice", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// parseChoicePrice allows a negative delta (a cheaper size) but never a
// negative override.
func parseChoicePrice(mode, s string) (pgtype.Numeric, error) {
	if mode == enum.PriceModeDelta {
		d, err := parseDecimal("price_usd", s)
		if err != nil {
			return pgtype.Numeric{}, err
		}
		return toNumeric(d.StringFixed(2)), nil
	}
	n, err := parseMoney("price_usd", s)
	if err != nil {
		return pgtype.Numeric{}, fmt.Errorf("override %w", err)
	}
	return n, nil
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:           m.ID,
		CategoryID:   m.CategoryID,
		Name:         m.Name,
		Description:  textPtr(m.Description),
		BasePriceUsd: numericToString(m.BasePriceUsd),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
	}
}

func toChoiceResponse(c database.MenuItemOptionChoice) choiceResponse {
	return choiceResponse{
		ID:        c.ID,
		OptionID:  c.OptionID,
		Name:      c.Name,
		PriceMode: c.PriceMode,
		PriceUsd:  numericToString(c.PriceUsd),
		IsDefault: c.IsDefault,
		SortOrder: c.SortOrder,
	}
}
