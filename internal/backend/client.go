package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/yardline/marketclient/pkg/errors"
	"github.com/yardline/marketclient/pkg/httpclient"
	"github.com/yardline/marketclient/pkg/tracing"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client calls the marketplace backend. Every error it returns is either a
// remote rejection carrying the backend's message, or a transport error
// (apperrors.IsTransport).
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// New creates a backend client rooted at baseURL.
func New(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// call sends body (if any) as JSON and decodes a 2xx response into out (if
// non-nil). Non-2xx responses become remote errors.
func (c *Client) call(ctx context.Context, method, path, token string, body, out any) (err error) {
	ctx, span := tracing.Start(ctx, "marketclient/backend", method+" "+path,
		attribute.String("http.method", method))
	defer func() { tracing.End(span, err) }()

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		err = apperrors.FromTransport(err)
		c.logger.WarnContext(ctx, "backend call failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.ParseResponseError(resp, "backend")
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.Remote(http.StatusBadGateway, "BAD_RESPONSE",
			fmt.Sprintf("backend sent an unreadable response for %s", path))
	}
	return nil
}

// Ping reports whether the backend answers at all. Any HTTP status counts as
// reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if apperrors.IsTransport(apperrors.FromTransport(err)) {
			return err
		}
		return nil
	}
	return resp.Body.Close()
}
