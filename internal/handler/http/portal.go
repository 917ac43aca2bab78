package http

import (
	"log/slog"
	"net/http"

	"github.com/yardline/marketclient/internal/service"
	"github.com/yardline/marketclient/pkg/httputil"
)

// PortalHandler turns portal requests into bus events.
type PortalHandler struct {
	portals *service.Portals
	logger  *slog.Logger
}

// NewPortalHandler creates a new portal HTTP handler.
func NewPortalHandler(portals *service.Portals, logger *slog.Logger) *PortalHandler {
	return &PortalHandler{portals: portals, logger: logger}
}

// PortalResponse names the portal that was signalled.
type PortalResponse struct {
	Portal string `json:"portal"`
}

// OpenOperator handles POST /api/v1/portals/operator
func (h *PortalHandler) OpenOperator(w http.ResponseWriter, r *http.Request) {
	h.portals.OpenOperator(r.Context())
	httputil.WriteData(w, http.StatusAccepted, PortalResponse{Portal: "operator"})
}

// OpenSeller handles POST /api/v1/portals/seller
func (h *PortalHandler) OpenSeller(w http.ResponseWriter, r *http.Request) {
	if err := h.portals.OpenSeller(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusAccepted, PortalResponse{Portal: "seller"})
}
