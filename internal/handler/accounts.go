package handler

import (
	"net/http"

	"freight-bidding-api/internal/models"
	"freight-bidding-api/internal/validation"
)

// GetWallet handles GET /wallet
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetWallet(r.Context(), actor(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// RechargeWallet handles POST /wallet/recharge
func (h *Handler) RechargeWallet(w http.ResponseWriter, r *http.Request) {
	var req models.RechargeRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.PaymentMethod = validation.SanitizeString(req.PaymentMethod)

	resp, err := h.service.RechargeWallet(r.Context(), actor(r), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// UpdateWalletSettings handles PUT /wallet/settings
func (h *Handler) UpdateWalletSettings(w http.ResponseWriter, r *http.Request) {
	var req models.WalletSettingsRequest
	if !h.decode(w, r, &req) {
		return
	}

	wallet, err := h.service.UpdateWalletSettings(r.Context(), actor(r), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, wallet)
}

// ReconcileWallet handles GET /wallet/reconcile
func (h *Handler) ReconcileWallet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.ReconcileWallet(r.Context(), actor(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, rec)
}

// UpdateCapabilities handles PUT /partners/capabilities
func (h *Handler) UpdateCapabilities(w http.ResponseWriter, r *http.Request) {
	var req models.PartnerCapability
	if !h.decode(w, r, &req) {
		return
	}

	req.CompanyName = validation.SanitizeString(req.CompanyName)
	req.ServiceStates = validation.SanitizeList(req.ServiceStates)
	req.ServiceCities = validation.SanitizeList(req.ServiceCities)
	req.PackagingCapabilities = validation.SanitizeList(req.PackagingCapabilities)

	c, err := h.service.RegisterPartner(r.Context(), actor(r), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, c)
}

// GetCapabilities handles GET /partners/capabilities
func (h *Handler) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCapabilities(r.Context(), actor(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, c)
}

// GetShipment handles GET /shipments/{shipment_id}
func (h *Handler) GetShipment(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetShipment(r.Context(), actor(r), urlParam(r, "shipment_id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, s)
}

// UpdateShipment handles PATCH /shipments/{shipment_id}
func (h *Handler) UpdateShipment(w http.ResponseWriter, r *http.Request) {
	var req models.ShipmentUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.CurrentLocation = validation.SanitizeString(req.CurrentLocation)

	s, err := h.service.UpdateShipmentStatus(r.Context(), actor(r), urlParam(r, "shipment_id"), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, s)
}
