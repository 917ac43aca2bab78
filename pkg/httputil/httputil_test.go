package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yardline/marketclient/pkg/errors"
	"github.com/yardline/marketclient/pkg/logger"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSON_SetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]string{"key": "value"})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotNil(t, decodeResponse(t, rec).Data)
}

func TestWriteError_RemoteMessageVerbatim(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)

	err := apperrors.Remote(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
	WriteError(rec, req, err, logger.Discard())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Invalid credentials", resp.Error.Message)
	assert.False(t, resp.Error.Retryable)
}

func TestWriteError_TransportIsRetryable(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)

	WriteError(rec, req, apperrors.Unreachable(errors.New("dial tcp: refused")), logger.Discard())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "NETWORK_ERROR", resp.Error.Code)
	assert.True(t, resp.Error.Retryable)
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithCorrelationID(context.Background(), "corr-1"))

	WriteError(rec, req, apperrors.Conflict("a request is already in flight"), logger.Discard())

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "corr-1", decodeResponse(t, rec).Error.RequestID)
}

func TestWriteError_SentinelsAndUnknown(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"wrapped not found", fmt.Errorf("lookup: %w", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"wrapped invalid", fmt.Errorf("parse: %w", apperrors.ErrInvalidInput), http.StatusBadRequest, "INVALID_INPUT"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, logger.Discard())

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeResponse(t, rec).Error.Code)
		})
	}
}

type loginBody struct {
	Identifier string `json:"identifier" validate:"required"`
}

func TestDecode(t *testing.T) {
	var dst loginBody
	rec := httptest.NewRecorder()
	ok := Decode(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"identifier":"kamau"}`)), &dst, logger.Discard())
	assert.True(t, ok)
	assert.Equal(t, "kamau", dst.Identifier)

	var empty loginBody
	rec = httptest.NewRecorder()
	ok = Decode(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)), &empty, logger.Discard())
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "is required", resp.Error.Fields["identifier"])

	var broken loginBody
	rec = httptest.NewRecorder()
	ok = Decode(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`)), &broken, logger.Discard())
	assert.False(t, ok)
	assert.Equal(t, "INVALID_INPUT", decodeResponse(t, rec).Error.Code)
}

func TestWriteErrorData_KeepsData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorData(rec, httptest.NewRequest(http.MethodGet, "/", nil),
		apperrors.Unreachable(errors.New("dial tcp: refused")), map[string]int{"items": 2}, logger.Discard())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.True(t, resp.Error.Retryable)
	assert.Equal(t, map[string]any{"items": float64(2)}, resp.Data)
}
