package handler

import (
	"net/http"

	"pack-store/internal/model"
	"pack-store/internal/service"

	"github.com/rs/zerolog"
)

// QuoteHandler handles B2B quote requests.
type QuoteHandler struct {
	service service.QuoteService
	logger  zerolog.Logger
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(service service.QuoteService, logger zerolog.Logger) *QuoteHandler {
	return &QuoteHandler{
		service: service,
		logger:  logger.With().Str("handler", "quote").Logger(),
	}
}

// Submit handles POST /api/quotes requests.
func (h *QuoteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.QuoteRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	resp, err := h.service.Submit(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}
