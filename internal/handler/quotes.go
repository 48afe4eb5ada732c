package handler

import (
	"net/http"
	"strings"

	"freight-bidding-api/internal/models"
	"freight-bidding-api/internal/validation"
)

// SubmitQuote handles POST /quotes
func (h *Handler) SubmitQuote(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitQuoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	req.CargoName = validation.SanitizeString(req.CargoName)
	req.QuantityUnit = validation.SanitizeString(req.QuantityUnit)
	req.PickupCity = validation.SanitizeString(req.PickupCity)
	req.PickupState = validation.SanitizeString(req.PickupState)
	req.DeliveryCity = validation.SanitizeString(req.DeliveryCity)
	req.DeliveryState = validation.SanitizeString(req.DeliveryState)
	req.PackagingType = validation.SanitizeString(req.PackagingType)

	resp, err := h.service.SubmitQuote(r.Context(), actor(r), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

// GetQuote handles GET /quotes/{quote_id}
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetQuoteWithOffers(r.Context(), actor(r), urlParam(r, "quote_id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// EstimateLeadCost handles GET /quotes/{quote_id}/lead-cost
func (h *Handler) EstimateLeadCost(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.EstimateLeadCost(r.Context(), actor(r), urlParam(r, "quote_id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// SelectOffer handles POST /quotes/{quote_id}/select
func (h *Handler) SelectOffer(w http.ResponseWriter, r *http.Request) {
	var req models.SelectOfferRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.SelectOffer(r.Context(), actor(r), urlParam(r, "quote_id"), validation.SanitizeString(req.OfferID))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// SubmitOffer handles POST /offers
func (h *Handler) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitOfferRequest
	if !h.decode(w, r, &req) {
		return
	}

	req.QuoteID = validation.SanitizeString(req.QuoteID)
	req.TermsAndConditions = validation.SanitizeString(req.TermsAndConditions)
	req.Remarks = validation.SanitizeString(req.Remarks)
	req.ValueAddedServices = validation.SanitizeList(req.ValueAddedServices)

	offer, err := h.service.SubmitOffer(r.Context(), actor(r), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, offer)
}

// ListOffers handles GET /offers?quote_id=&status=
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.OfferFilter{
		QuoteID: validation.SanitizeString(q.Get("quote_id")),
		Status:  models.OfferStatus(strings.ToUpper(validation.SanitizeString(q.Get("status")))),
	}

	offers, err := h.service.ListOffers(r.Context(), actor(r), filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, offers)
}

// WithdrawOffer handles POST /offers/{offer_id}/withdraw
func (h *Handler) WithdrawOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.service.WithdrawOffer(r.Context(), actor(r), urlParam(r, "offer_id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, offer)
}
