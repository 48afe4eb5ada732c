package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubmitQuoteRequest represents the request body for posting a quote.
type SubmitQuoteRequest struct {
	CargoName             string          `json:"cargo_name"`
	IsHazardous           bool            `json:"is_hazardous"`
	HazardClass           *HazardClass    `json:"hazard_class"`
	Quantity              decimal.Decimal `json:"quantity"`
	QuantityUnit          string          `json:"quantity_unit"`
	PickupCity            string          `json:"pickup_city"`
	PickupState           string          `json:"pickup_state"`
	DeliveryCity          string          `json:"delivery_city"`
	DeliveryState         string          `json:"delivery_state"`
	PackagingType         string          `json:"packaging_type"`
	PreferredVehicleTypes []VehicleType   `json:"preferred_vehicle_types"`
	CargoReadyDate        time.Time       `json:"cargo_ready_date"`
	IsUrgent              bool            `json:"is_urgent"`
	ExpiresAt             time.Time       `json:"expires_at"` // zero means the configured default TTL
}

// SubmitQuoteResponse is returned after a quote is posted and matched.
type SubmitQuoteResponse struct {
	Quote           Quote `json:"quote"`
	MatchedPartners int   `json:"matched_partners"`
}

// SubmitOfferRequest represents the request body for bidding on a quote.
type SubmitOfferRequest struct {
	QuoteID             string          `json:"quote_id"`
	Price               decimal.Decimal `json:"price"`
	TransitDays         int             `json:"transit_days"`
	OfferValidUntil     time.Time       `json:"offer_valid_until"`
	PickupAvailableFrom time.Time       `json:"pickup_available_from"`
	InsuranceIncluded   bool            `json:"insurance_included"`
	TrackingIncluded    *bool           `json:"tracking_included"` // defaults to true
	CustomsClearance    bool            `json:"customs_clearance"`
	ValueAddedServices  []string        `json:"value_added_services"`
	TermsAndConditions  string          `json:"terms_and_conditions"`
	Remarks             string          `json:"remarks"`
}

// SelectOfferRequest represents the request body for choosing the winning offer.
type SelectOfferRequest struct {
	OfferID string `json:"offer_id"`
}

// SelectionResult is returned when a trader selects an offer.
type SelectionResult struct {
	Quote    Quote           `json:"quote"`
	Offer    Offer           `json:"offer"`
	Shipment Shipment        `json:"shipment"`
	LeadCost decimal.Decimal `json:"lead_cost"`
}

// QuoteWithOffers is a quote together with the offers visible to the caller.
type QuoteWithOffers struct {
	Quote    Quote     `json:"quote"`
	Offers   []Offer   `json:"offers"`
	Shipment *Shipment `json:"shipment,omitempty"`
}

// LeadCostEstimate is a side-effect free price preview for a partner.
type LeadCostEstimate struct {
	QuoteID          string           `json:"quote_id"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier"`
	LeadType         LeadType         `json:"lead_type"`
	LeadCost         decimal.Decimal  `json:"lead_cost"`
	Pricing          LeadPricing      `json:"pricing"`
}

// RechargeRequest represents the request body for topping up a wallet.
type RechargeRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

// WalletSettingsRequest represents the request body for alert settings.
type WalletSettingsRequest struct {
	LowBalanceAlert bool            `json:"low_balance_alert"`
	AlertThreshold  decimal.Decimal `json:"alert_threshold"`
}

// WalletResponse is a wallet with its most recent transactions.
type WalletResponse struct {
	Wallet       Wallet        `json:"wallet"`
	IsLowBalance bool          `json:"is_low_balance"`
	Transactions []Transaction `json:"transactions"`
}

// RechargeResponse is the wallet after a top-up and the entry it created.
type RechargeResponse struct {
	Wallet      Wallet      `json:"wallet"`
	Transaction Transaction `json:"transaction"`
}

// ShipmentUpdateRequest represents an administrative shipment status change.
type ShipmentUpdateRequest struct {
	Status          ShipmentStatus `json:"status"`
	CurrentLocation string         `json:"current_location"`
}

// OfferFilter narrows an offer listing.
type OfferFilter struct {
	QuoteID   string
	PartnerID string
	Status    OfferStatus
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
