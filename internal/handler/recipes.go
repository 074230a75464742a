package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RecipeStore defines the database methods needed by recipe handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type RecipeStore interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ListRecipesByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.ListRecipesByMenuItemRow, error)
	DeleteRecipesByMenuItem(ctx context.Context, menuItemID uuid.UUID) error
	CreateRecipe(ctx context.Context, arg database.CreateRecipeParams) (database.Recipe, error)
}

// AvailabilityChecker reports whether stock covers a menu item.
// Satisfied by *service.StockService.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, menuItemID uuid.UUID, quantity int32) (*service.AvailabilityResult, error)
}

// RecipeHandler handles the ingredient recipe of a menu item.
type RecipeHandler struct {
	store    RecipeStore
	stock    AvailabilityChecker
	pool     service.TxBeginner
	newStore func(db database.DBTX) RecipeStore
}

// NewRecipeHandler creates a new RecipeHandler.
func NewRecipeHandler(store RecipeStore, stock AvailabilityChecker, pool service.TxBeginner, newStore func(db database.DBTX) RecipeStore) *RecipeHandler {
	return &RecipeHandler{store: store, stock: stock, pool: pool, newStore: newStore}
}

// RegisterRoutes registers the endpoints open to all staff.
// Expected to be mounted at /menu-items.
func (h *RecipeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}/availability", h.Availability)
}

// RegisterManagerRoutes registers the recipe endpoints.
func (h *RecipeHandler) RegisterManagerRoutes(r chi.Router) {
	r.Get("/{id}/recipe", h.Get)
	r.Put("/{id}/recipe", h.Replace)
}

// --- Request / Response types ---

type replaceRecipeRequest struct {
	Ingredients []recipeLineRequest `json:"ingredients" validate:"dive"`
}

type recipeLineRequest struct {
	IngredientID string `json:"ingredient_id" validate:"required,uuid"`
	Quantity     string `json:"quantity" validate:"required,numeric"`
}

type recipeLineResponse struct {
	IngredientID   uuid.UUID `json:"ingredient_id"`
	IngredientName string    `json:"ingredient_name"`
	Quantity       string    `json:"quantity"`
	Unit           string    `json:"unit"`
}

type recipeResponse struct {
	MenuItemID  uuid.UUID            `json:"menu_item_id"`
	Ingredients []recipeLineResponse `json:"ingredients"`
}

// --- Handlers ---

// Get handles GET /menu-items/{id}/recipe.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "menu item")
	if !ok {
		return
	}

	if _, err := h.store.GetMenuItem(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		writeInternalError(w, "get menu item", err)
		return
	}

	rows, err := h.store.ListRecipesByMenuItem(r.Context(), id)
	if err != nil {
		writeInternalError(w, "list recipe", err)
		return
	}

	writeJSON(w, http.StatusOK, toRecipeResponse(id, rows))
}

// Replace handles PUT /menu-items/{id}/recipe. All rows are replaced in one
// transaction; an empty list removes the recipe.
func (h *RecipeHandler) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "menu item")
	if !ok {
		return
	}

	var req replaceRecipeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	lines := make([]database.CreateRecipeParams, len(req.Ingredients))
	seen := make(map[uuid.UUID]bool, len(req.Ingredients))
	for i, in := range req.Ingredients {
		ingredientID := uuid.MustParse(in.IngredientID)
		if seen[ingredientID] {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("ingredients[%d]: duplicate ingredient_id", i),
			})
			return
		}
		seen[ingredientID] = true

		qty, err := parseQuantity("quantity", in.Quantity)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("ingredients[%d]: %v", i, err),
			})
			return
		}
		if !qty.IsPositive() {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("ingredients[%d]: quantity must be > 0", i),
			})
			return
		}
		lines[i] = database.CreateRecipeParams{
			MenuItemID:   id,
			IngredientID: ingredientID,
			Quantity:     toNumeric(qty.String()),
		}
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		writeInternalError(w, "begin tx", err)
		return
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := h.newStore(tx)

	if _, err := store.GetMenuItem(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		writeInternalError(w, "get menu item", err)
		return
	}

	if err := store.DeleteRecipesByMenuItem(ctx, id); err != nil {
		writeInternalError(w, "delete recipe", err)
		return
	}
	for i, line := range lines {
		if _, err := store.CreateRecipe(ctx, line); err != nil {
			if isForeignKeyViolation(err) {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": fmt.Sprintf("ingredients[%d]: ingredient not found", i),
				})
				return
			}
			writeInternalError(w, "create recipe line", err)
			return
		}
	}

	rows, err := store.ListRecipesByMenuItem(ctx, id)
	if err != nil {
		writeInternalError(w, "list recipe", err)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeInternalError(w, "commit tx", err)
		return
	}

	writeJSON(w, http.StatusOK, toRecipeResponse(id, rows))
}

// Availability handles GET /menu-items/{id}/availability?quantity=N.
func (h *RecipeHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "menu item")
	if !ok {
		return
	}

	quantity := int32(1)
	if s := r.URL.Query().Get("quantity"); s != "" {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be an integer"})
			return
		}
		quantity = int32(v)
	}

	result, err := h.stock.CheckAvailability(r.Context(), id, quantity)
	if err != nil {
		writeServiceError(w, "check availability", err)
		return
	}
	if result.Shortages == nil {
		result.Shortages = []service.Shortage{}
	}

	writeJSON(w, http.StatusOK, result)
}

// --- Helpers ---

func toRecipeResponse(menuItemID uuid.UUID, rows []database.ListRecipesByMenuItemRow) recipeResponse {
	resp := recipeResponse{
		MenuItemID:  menuItemID,
		Ingredients: make([]recipeLineResponse, len(rows)),
	}
	for i, row := range rows {
		resp.Ingredients[i] = recipeLineResponse{
			IngredientID:   row.IngredientID,
			IngredientName: row.IngredientName,
			Quantity:       quantityToString(row.Quantity),
			Unit:           row.Unit,
		}
	}
	return resp
}
