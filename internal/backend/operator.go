package backend

import (
	"context"
	"net/http"

	"github.com/yardline/marketclient/internal/domain"
)

// SubmitOperatorLog posts a shift log with the operator portal token.
func (c *Client) SubmitOperatorLog(ctx context.Context, token string, log *domain.OperatorLog) error {
	return c.call(ctx, http.MethodPost, "/api/operator-logs", token, log, nil)
}
