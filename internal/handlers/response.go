package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/observability"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondServiceError maps a service error onto its HTTP status. Unknown
// errors are logged and hidden behind a 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, notFound)
	case errors.Is(err, models.ErrContentNotFound):
		respondError(w, http.StatusNotFound, "File not found.")
	case errors.Is(err, models.ErrConflict):
		respondError(w, http.StatusConflict, "An active photo with the same content already exists.")
	case errors.Is(err, models.ErrInvalidVariant):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrPrecheckMalformed):
		respondError(w, http.StatusBadRequest, err.Error())
	case models.IsValidationError(err):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		observability.WithContext(r.Context()).WithError(err).Errorf("%s %s failed", r.Method, r.URL.Path)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}
