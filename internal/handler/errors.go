package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/cafe-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// writeServiceError maps an error returned by a service to an HTTP status.
// Internal errors are logged under op and never shown to the client.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var stockErr *service.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":     service.ErrInsufficientStock.Error(),
			"shortages": stockErr.Shortages,
		})
		return
	}

	var transErr *service.TransitionError
	if errors.As(err, &transErr) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	}

	if errors.Is(err, service.ErrConcurrentUpdate) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	switch service.KindOf(err) {
	case service.KindValidation, service.KindConflict:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case service.KindNotFound:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case service.KindForbidden:
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeInternalError(w http.ResponseWriter, op string, err error) {
	log.Printf("ERROR: %s: %v", op, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// parseUUIDParam reads a chi URL parameter as a UUID, writing a 400 on failure.
func parseUUIDParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + label + " ID"})
		return uuid.Nil, false
	}
	return id, true
}
