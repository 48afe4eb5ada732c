package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/logging"
	"freight-bidding-api/internal/middleware"
	"freight-bidding-api/internal/models"
	"freight-bidding-api/internal/service"
	"freight-bidding-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
	logger      *logrus.Logger
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	Logger      *logrus.Logger
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultHandlerOptions().MaxBodySize
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
		logger:      opts.Logger,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Post("/", h.SubmitQuote)
		r.Get("/{quote_id}", h.GetQuote)
		r.Get("/{quote_id}/lead-cost", h.EstimateLeadCost)
		r.Post("/{quote_id}/select", h.SelectOffer)
	})

	r.Route("/offers", func(r chi.Router) {
		r.Post("/", h.SubmitOffer)
		r.Get("/", h.ListOffers)
		r.Post("/{offer_id}/withdraw", h.WithdrawOffer)
	})

	r.Route("/wallet", func(r chi.Router) {
		r.Get("/", h.GetWallet)
		r.Post("/recharge", h.RechargeWallet)
		r.Put("/settings", h.UpdateWalletSettings)
		r.Get("/reconcile", h.ReconcileWallet)
	})

	r.Route("/partners", func(r chi.Router) {
		r.Put("/capabilities", h.UpdateCapabilities)
		r.Get("/capabilities", h.GetCapabilities)
	})

	r.Route("/shipments", func(r chi.Router) {
		r.Get("/{shipment_id}", h.GetShipment)
		r.Patch("/{shipment_id}", h.UpdateShipment)
	})

	r.Get("/health", h.Health)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.WithError(err).Error("health check failed")
		h.respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// actor reads the caller identity asserted by the auth gateway. The service
// validates it.
func actor(r *http.Request) models.Actor {
	return models.Actor{
		ID:   validation.SanitizeString(r.Header.Get(middleware.HeaderUserID)),
		Role: models.Role(strings.ToUpper(validation.SanitizeString(r.Header.Get(middleware.HeaderUserRole)))),
	}
}

func urlParam(r *http.Request, name string) string {
	return validation.SanitizeString(chi.URLParam(r, name))
}

// decode reads a JSON body into v, writing the error response itself when
// it fails.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			h.respondError(w, http.StatusBadRequest, "request body is required")
		case errors.As(err, &tooLarge):
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		}
		return false
	}
	return true
}

// handleError maps service errors to status codes. Unexpected errors are
// logged and hidden from the caller.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validation.ValidationError
	switch {
	case errors.As(err, &ve):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		h.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrInsufficientFunds):
		h.respondError(w, http.StatusPaymentRequired, err.Error())
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
