package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter writes classified errors as JSON responses.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates a new HTTP error adapter. A nil logger means slog.Default().
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the JSON error payload.
type HTTPErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

// StatusCodeFor maps an error's category to an HTTP status code.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch GetCategory(err) {
	case CategoryValidation, CategoryConfig:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryNetwork, CategoryRemote:
		return http.StatusBadGateway
	case CategoryDaemon:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FormatErrorResponse converts err into the canonical payload.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	classified, ok := AsClassified(err)
	if !ok {
		return HTTPErrorResponse{Error: err.Error(), Code: string(GetCategory(err))}
	}
	resp := HTTPErrorResponse{Error: classified.Message(), Code: string(classified.Category())}
	if len(classified.Context()) > 0 {
		resp.Details = map[string]any(classified.Context())
	}
	resp.Retryable = classified.CanRetry()
	return resp
}

// WriteErrorResponse writes err as JSON with the mapped status code.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	status := a.StatusCodeFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(a.FormatErrorResponse(err)); encErr != nil {
		a.logger.Warn("Failed to encode error response", "error", encErr)
	}

	level := slog.LevelError
	if classified, ok := AsClassified(err); ok {
		level = levelFor(classified.Severity())
	}
	a.logger.Log(r.Context(), level, "Request failed", "path", r.URL.Path, "status", status, "error", err)
}
