package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies what an authenticated caller is allowed to do.
type Role string

const (
	RoleTrader  Role = "TRADER"
	RolePartner Role = "LOGISTICS_PARTNER"
	RoleAdmin   Role = "ADMIN"
)

// Actor is the caller of an operation as asserted by the upstream auth gateway.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// HazardClass is the dangerous-goods class of a cargo (UN classes 1-9).
type HazardClass string

const (
	HazardClass1 HazardClass = "CLASS_1" // Explosives
	HazardClass2 HazardClass = "CLASS_2" // Gases
	HazardClass3 HazardClass = "CLASS_3" // Flammable liquids
	HazardClass4 HazardClass = "CLASS_4" // Flammable solids
	HazardClass5 HazardClass = "CLASS_5" // Oxidizing substances
	HazardClass6 HazardClass = "CLASS_6" // Toxic substances
	HazardClass7 HazardClass = "CLASS_7" // Radioactive
	HazardClass8 HazardClass = "CLASS_8" // Corrosives
	HazardClass9 HazardClass = "CLASS_9" // Miscellaneous

	// NonHazardous is the pricing key for cargo without a hazard class.
	NonHazardous HazardClass = "NON_HAZARDOUS"
)

// HazardClasses lists every valid regulatory class.
var HazardClasses = []HazardClass{
	HazardClass1, HazardClass2, HazardClass3, HazardClass4, HazardClass5,
	HazardClass6, HazardClass7, HazardClass8, HazardClass9,
}

// VehicleType is a fleet vehicle category.
type VehicleType string

const (
	VehicleTruck        VehicleType = "TRUCK"
	VehicleContainer    VehicleType = "CONTAINER"
	VehicleTanker       VehicleType = "TANKER"
	VehicleISOTank      VehicleType = "ISO_TANK"
	VehicleFlatbed      VehicleType = "FLATBED"
	VehicleRefrigerated VehicleType = "REFRIGERATED"
)

// VehicleTypes lists every valid vehicle type.
var VehicleTypes = []VehicleType{
	VehicleTruck, VehicleContainer, VehicleTanker, VehicleISOTank, VehicleFlatbed, VehicleRefrigerated,
}

// SubscriptionTier is the partner account level.
type SubscriptionTier string

const (
	TierFree     SubscriptionTier = "FREE"
	TierStandard SubscriptionTier = "STANDARD"
	TierPremium  SubscriptionTier = "PREMIUM"
)

// LeadType tells a partner whether a lead is shared with other partners.
type LeadType string

const (
	LeadExclusive LeadType = "EXCLUSIVE"
	LeadShared    LeadType = "SHARED"
)

// QuoteStatus is the lifecycle state of a quote.
type QuoteStatus string

const (
	QuoteSubmitted       QuoteStatus = "SUBMITTED"
	QuoteMatching        QuoteStatus = "MATCHING"
	QuoteOffersAvailable QuoteStatus = "OFFERS_AVAILABLE"
	QuoteSelected        QuoteStatus = "SELECTED"
	QuoteExpired         QuoteStatus = "EXPIRED"
)

// IsTerminal reports whether no further offers or selections are possible.
func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteSelected || s == QuoteExpired
}

// AcceptsOffers reports whether partners may bid on a quote in this state.
func (s QuoteStatus) AcceptsOffers() bool {
	return s == QuoteMatching || s == QuoteOffersAvailable
}

// OfferStatus is the lifecycle state of an offer.
type OfferStatus string

const (
	OfferPending   OfferStatus = "PENDING"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
	OfferWithdrawn OfferStatus = "WITHDRAWN"
)

// Quote represents a trader's freight request open to bidding.
type Quote struct {
	ID                    string          `json:"id"`
	QuoteNumber           string          `json:"quote_number"`
	TraderID              string          `json:"trader_id"`
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
	ExpiresAt             time.Time       `json:"expires_at"`
	Status                QuoteStatus     `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	SubmittedAt           time.Time       `json:"submitted_at"`
}

// IsExpiredAt reports whether the quote's bidding window has closed at now.
func (q Quote) IsExpiredAt(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// Offer represents a partner's priced bid against a quote.
type Offer struct {
	ID                  string          `json:"id"`
	QuoteID             string          `json:"quote_id"`
	PartnerID           string          `json:"partner_id"`
	Price               decimal.Decimal `json:"price"`
	TransitDays         int             `json:"transit_days"`
	OfferValidUntil     time.Time       `json:"offer_valid_until"`
	PickupAvailableFrom time.Time       `json:"pickup_available_from"`
	InsuranceIncluded   bool            `json:"insurance_included"`
	TrackingIncluded    bool            `json:"tracking_included"`
	CustomsClearance    bool            `json:"customs_clearance"`
	ValueAddedServices  []string        `json:"value_added_services"`
	TermsAndConditions  string          `json:"terms_and_conditions,omitempty"`
	Remarks             string          `json:"remarks,omitempty"`
	LeadType            LeadType        `json:"lead_type"`
	Status              OfferStatus     `json:"status"`
	IsSelected          bool            `json:"is_selected"`
	SelectedAt          *time.Time      `json:"selected_at"`
	ExpiresAt           time.Time       `json:"expires_at"`
	CreatedAt           time.Time       `json:"created_at"`
}

// PartnerCapability is a logistics partner's declared service profile.
type PartnerCapability struct {
	PartnerID             string           `json:"partner_id"`
	CompanyName           string           `json:"company_name"`
	SubscriptionTier      SubscriptionTier `json:"subscription_tier"`
	ServiceStates         []string         `json:"service_states"`
	ServiceCities         []string         `json:"service_cities"`
	HazardClasses         []HazardClass    `json:"hazard_classes"`
	FleetTypes            []VehicleType    `json:"fleet_types"`
	PackagingCapabilities []string         `json:"packaging_capabilities"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// ShipmentStatus tracks a booked shipment.
type ShipmentStatus string

const (
	ShipmentBooked    ShipmentStatus = "BOOKED"
	ShipmentPickedUp  ShipmentStatus = "PICKED_UP"
	ShipmentInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentDelivered ShipmentStatus = "DELIVERED"
	ShipmentCancelled ShipmentStatus = "CANCELLED"
)

// Shipment is created when a trader selects an offer.
type Shipment struct {
	ID              string         `json:"id"`
	QuoteID         string         `json:"quote_id"`
	OfferID         string         `json:"offer_id"`
	PartnerID       string         `json:"partner_id"`
	TraderID        string         `json:"trader_id"`
	Status          ShipmentStatus `json:"status"`
	CurrentLocation string         `json:"current_location,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// AuditLog records a state-changing action.
type AuditLog struct {
	ID        string            `json:"id"`
	ActorID   string            `json:"actor_id"`
	Action    string            `json:"action"`
	Entity    string            `json:"entity"`
	EntityID  string            `json:"entity_id"`
	Changes   map[string]string `json:"changes"`
	CreatedAt time.Time         `json:"created_at"`
}
