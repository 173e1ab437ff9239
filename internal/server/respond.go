package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/crm-import/internal/city"
	"github.com/sells-group/crm-import/internal/fetcher"
	"github.com/sells-group/crm-import/internal/importer"
	"github.com/sells-group/crm-import/internal/mapper"
	"github.com/sells-group/crm-import/internal/review"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, map[string]errorBody{
		"error": {Code: code, Message: message, Details: details},
	})
}

// writeErr maps pipeline and review errors onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	var mce *mapper.MissingColumnsError
	switch {
	case errors.As(err, &mce):
		writeError(w, http.StatusUnprocessableEntity, "missing_columns", mce.Error(), mce.Missing)
	case errors.Is(err, review.ErrRowNotFound):
		writeError(w, http.StatusNotFound, "row_not_found", err.Error(), nil)
	case errors.Is(err, review.ErrRowInvalid):
		writeError(w, http.StatusConflict, "row_invalid", err.Error(), nil)
	case errors.Is(err, review.ErrSessionClosed):
		writeError(w, http.StatusGone, "session_closed", err.Error(), nil)
	case errors.Is(err, city.ErrCodeTaken):
		writeError(w, http.StatusConflict, "city_code_taken", err.Error(), nil)
	case errors.Is(err, importer.ErrTooManyRows):
		writeError(w, http.StatusRequestEntityTooLarge, "too_many_rows", err.Error(), nil)
	case errors.Is(err, fetcher.ErrEmptyFile), errors.Is(err, fetcher.ErrNoDataRows):
		writeError(w, http.StatusBadRequest, "empty_file", err.Error(), nil)
	default:
		zap.L().Error("server: request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}
