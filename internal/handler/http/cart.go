package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yardline/marketclient/internal/service"
	"github.com/yardline/marketclient/pkg/httputil"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	cart   *service.CartSynchronizer
	logger *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(cart *service.CartSynchronizer, logger *slog.Logger) *CartHandler {
	return &CartHandler{cart: cart, logger: logger}
}

// GetCart handles GET /api/v1/cart. It re-fetches from the backend; on
// failure the last known items are returned next to the error.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	state, err := h.cart.Fetch(r.Context())
	h.write(w, r, state, err)
}

// GetState handles GET /api/v1/cart/state without touching the network.
func (h *CartHandler) GetState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.cart.State())
}

// RemoveItem handles DELETE /api/v1/cart/items/{listingId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	state, err := h.cart.Remove(r.Context(), chi.URLParam(r, "listingId"))
	h.write(w, r, state, err)
}

func (h *CartHandler) write(w http.ResponseWriter, r *http.Request, state service.CartState, err error) {
	if err != nil {
		httputil.WriteErrorData(w, r, err, state, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, state)
}
