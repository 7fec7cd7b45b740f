package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"studyai-backend/internal/middleware"
	"studyai-backend/internal/models"
	"studyai-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *services.ValidationError
		conflict   *services.ConflictError
		notFound   *services.NotFoundError
		unauth     *services.UnauthorizedError
		forbidden  *services.ForbiddenError
		upgrade    *services.UpgradeRequiredError
		limited    *services.RateLimitError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", validation.Error(), validation.Fields, r))
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", conflict.Message, r))
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFound.Message, r))
	case errors.As(err, &unauth):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", unauth.Message, r))
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", forbidden.Message, r))
	case errors.As(err, &upgrade):
		writeJSON(w, http.StatusPaymentRequired, errorResp("UPGRADE_REQUIRED", upgrade.Message, r))
	case errors.As(err, &limited):
		writeJSON(w, http.StatusTooManyRequests, errorResp("RATE_LIMITED", limited.Message, r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return false
	}
	return true
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid index", r))
		return 0, false
	}
	return idx, true
}
