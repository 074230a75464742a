package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cafe-pos/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CategoryStore defines the database methods needed by category handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]database.Category, error)
	CreateCategory(ctx context.Context, arg database.CreateCategoryParams) (database.Category, error)
	UpdateCategory(ctx context.Context, arg database.UpdateCategoryParams) (database.Category, error)
	SoftDeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// CategoryHandler handles menu category endpoints.
type CategoryHandler struct {
	store CategoryStore
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(store CategoryStore) *CategoryHandler {
	return &CategoryHandler{store: store}
}

// RegisterRoutes registers the read endpoints on the given Chi router.
// Expected to be mounted at /categories.
func (h *CategoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// RegisterManagerRoutes registers the write endpoints.
func (h *CategoryHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type categoryRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	ParentID  string `json:"parent_id" validate:"omitempty,uuid"`
	SortOrder int32  `json:"sort_order" validate:"gte=0"`
}

type categoryResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id"`
	SortOrder int32     `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Handlers ---

// List handles GET /categories (active only, by sort order).
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		writeInternalError(w, "list categories", err)
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /categories.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	parentID, _ := optionalUUID(req.ParentID)

	c, err := h.store.CreateCategory(r.Context(), database.CreateCategoryParams{
		Name:      strings.TrimSpace(req.Name),
		ParentID:  parentID,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "parent category not found"})
			return
		}
		writeInternalError(w, "create category", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

// Update handles PUT /categories/{id}.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "category")
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	parentID, _ := optionalUUID(req.ParentID)
	if parentID.Valid && uuid.UUID(parentID.Bytes) == id {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category cannot be its own parent"})
		return
	}

	c, err := h.store.UpdateCategory(r.Context(), database.UpdateCategoryParams{
		ID:        id,
		Name:      strings.TrimSpace(req.Name),
		ParentID:  parentID,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
			return
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "parent category not found"})
			return
		}
		writeInternalError(w, "update category", err)
		return
	}

	writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

// Delete handles DELETE /categories/{id} as a soft delete.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "category")
	if !ok {
		return
	}

	if _, err := h.store.SoftDeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
			return
		}
		writeInternalError(w, "delete category", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func toCategoryResponse(c database.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		ParentID:  uuidPtr(c.ParentID),
		SortOrder: c.SortOrder,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
	}
}
