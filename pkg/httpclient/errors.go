package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/yardline/marketclient/pkg/errors"
)

// errorBody covers the error shapes the backend collaborators return:
// {"detail": "..."}, {"detail": [{"msg": "..."}]}, {"message": "..."} and
// {"error": {"code": "...", "message": "..."}}.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type validationDetail struct {
	Msg string `json:"msg"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError whose Message is the backend's human-readable detail,
// unchanged. When the body carries no message a generic one naming the
// service and status is used.
//
// The caller should only invoke this when resp.StatusCode is not 2xx. The
// response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	code, message := extractMessage(bodyBytes)
	if message == "" {
		message = fmt.Sprintf("%s returned %d %s", serviceName, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return mapRemoteError(resp.StatusCode, code, message)
}

func extractMessage(body []byte) (code, message string) {
	var parsed errorBody
	if json.Unmarshal(body, &parsed) != nil {
		return "", ""
	}

	if len(parsed.Detail) > 0 {
		var detail string
		if json.Unmarshal(parsed.Detail, &detail) == nil && detail != "" {
			return "", detail
		}
		var details []validationDetail
		if json.Unmarshal(parsed.Detail, &details) == nil && len(details) > 0 {
			msgs := make([]string, 0, len(details))
			for _, d := range details {
				if d.Msg != "" {
					msgs = append(msgs, d.Msg)
				}
			}
			return "", strings.Join(msgs, "; ")
		}
	}

	if parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Code, parsed.Error.Message
	}

	return "", parsed.Message
}

// mapRemoteError builds an AppError that keeps both the remote-rejection
// sentinel and the sentinel matching the status class.
func mapRemoteError(status int, code, message string) error {
	var sentinel error
	defaultCode := "REMOTE_ERROR"

	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		sentinel, defaultCode = apperrors.ErrInvalidInput, "INVALID_INPUT"
	case status == http.StatusUnauthorized:
		sentinel, defaultCode = apperrors.ErrUnauthorized, "UNAUTHORIZED"
	case status == http.StatusForbidden:
		sentinel, defaultCode = apperrors.ErrForbidden, "FORBIDDEN"
	case status == http.StatusNotFound:
		sentinel, defaultCode = apperrors.ErrNotFound, "NOT_FOUND"
	case status == http.StatusConflict:
		sentinel, defaultCode = apperrors.ErrConflict, "CONFLICT"
	case status == http.StatusPaymentRequired:
		sentinel, defaultCode = apperrors.ErrPaymentFailed, "PAYMENT_FAILED"
	case status >= 500:
		sentinel, defaultCode = apperrors.ErrInternal, "UPSTREAM_ERROR"
	}

	if code == "" {
		code = defaultCode
	}

	appErr := apperrors.Remote(status, code, message)
	if sentinel != nil {
		appErr.Err = errors.Join(apperrors.ErrRemote, sentinel)
	}
	return appErr
}

// IsSuccess reports whether the status code is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
