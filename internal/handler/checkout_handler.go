package handler

import (
	"net/http"

	"pack-store/internal/middleware"
	"pack-store/internal/model"
	"pack-store/internal/service"
	"pack-store/internal/shipping"

	"github.com/rs/zerolog"
)

// CheckoutHandler handles cart pricing and checkout requests.
type CheckoutHandler struct {
	service  service.CheckoutService
	shipping *shipping.Catalog
	logger   zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, ship *shipping.Catalog, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service:  service,
		shipping: ship,
		logger:   logger.With().Str("handler", "checkout").Logger(),
	}
}

// ShippingOptions handles GET /api/shipping-options requests.
func (h *CheckoutHandler) ShippingOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.shipping.List())
}

// Quote handles POST /api/pricing/quote requests.
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	cart, err := h.service.PriceCart(r.Context(), req.Items, req.ShippingMethodID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// Create handles POST /api/checkout requests.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	resp, err := h.service.CreateSession(r.Context(), &req, middleware.BuyerFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
