package http

import (
	"log/slog"
	"net/http"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/service"
	"github.com/yardline/marketclient/pkg/httputil"
	"github.com/yardline/marketclient/pkg/pagination"
)

// OperatorHandler serves the operator portal.
type OperatorHandler struct {
	logbook *service.OperatorLogbook
	logger  *slog.Logger
}

// NewOperatorHandler creates a new operator HTTP handler.
func NewOperatorHandler(logbook *service.OperatorLogbook, logger *slog.Logger) *OperatorHandler {
	return &OperatorHandler{logbook: logbook, logger: logger}
}

// OperatorLoginRequest is the JSON request body for the portal login.
type OperatorLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// State handles GET /api/v1/operator
func (h *OperatorHandler) State(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.logbook.State())
}

// Login handles POST /api/v1/operator/login
func (h *OperatorHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req OperatorLoginRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	state, err := h.logbook.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httputil.WriteErrorData(w, r, err, state, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, state)
}

// Logout handles POST /api/v1/operator/logout
func (h *OperatorHandler) Logout(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.logbook.Logout())
}

// SubmitLog handles POST /api/v1/operator/logs
func (h *OperatorHandler) SubmitLog(w http.ResponseWriter, r *http.Request) {
	var draft domain.OperatorLogDraft
	if !decodeBody(w, r, &draft, h.logger) {
		return
	}
	log, err := h.logbook.Submit(r.Context(), draft)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, log)
}

// ListLogs handles GET /api/v1/operator/logs?page=&per_page=
func (h *OperatorHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	result, err := h.logbook.Logs(r.Context(), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
