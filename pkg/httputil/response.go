package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/yardline/marketclient/pkg/errors"
	"github.com/yardline/marketclient/pkg/logger"
	"github.com/yardline/marketclient/pkg/validator"
)

// Response is the standard JSON response envelope served to the UI.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
// Retryable tells the UI to offer a retry banner instead of an inline error.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError writes a standardized error response based on the error type.
// Validation errors get field details, AppErrors keep their code and message
// (remote messages are shown verbatim), and anything else is logged as an
// internal error.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	status, body := errorBody(r, err, fallback)
	WriteJSON(w, status, Response{Error: body})
}

// WriteErrorData writes an error response that also carries data, for state
// the UI keeps showing next to the error (a cart after a failed refresh).
func WriteErrorData(w http.ResponseWriter, r *http.Request, err error, data any, fallback *slog.Logger) {
	status, body := errorBody(r, err, fallback)
	WriteJSON(w, status, Response{Data: data, Error: body})
}

func errorBody(r *http.Request, err error, fallback *slog.Logger) (int, *ErrorResponse) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest, &ErrorResponse{
			Code:      "VALIDATION_ERROR",
			Message:   "request validation failed",
			Fields:    valErr.Fields(),
			RequestID: requestID,
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := appErr.Status
		if status == 0 {
			status = apperrors.HTTPStatus(appErr.Err)
		}
		if status >= http.StatusInternalServerError && !apperrors.IsTransport(err) {
			l.ErrorContext(r.Context(), "request failed",
				slog.String("error", err.Error()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
		}
		return status, &ErrorResponse{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Retryable: apperrors.IsTransport(err),
			RequestID: requestID,
		}
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code = "NOT_FOUND"
		message = "resource not found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = "INVALID_INPUT"
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	return status, &ErrorResponse{Code: code, Message: message, RequestID: requestID}
}

// Decode reads a JSON body into dst and validates it, writing the error
// response itself. It returns false when the caller should stop.
func Decode(w http.ResponseWriter, r *http.Request, dst any, fallback *slog.Logger) bool {
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		var valErr *validator.ValidationError
		if !errors.As(err, &valErr) {
			err = apperrors.InvalidInput("invalid request body")
		}
		WriteError(w, r, err, fallback)
		return false
	}
	return true
}
