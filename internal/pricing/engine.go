package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"freight-bidding-api/internal/models"
)

var (
	ErrUnknownTier     = errors.New("pricing: unknown subscription tier")
	ErrInvalidQuantity = errors.New("pricing: quantity must be greater than zero")
)

var one = decimal.NewFromInt(1)

// Lead is the subset of a quote that affects its price.
type Lead struct {
	HazardClass   *models.HazardClass
	Quantity      decimal.Decimal
	PickupState   string
	DeliveryState string
	VehicleTypes  []models.VehicleType
	IsUrgent      bool
}

func LeadFromQuote(q models.Quote) Lead {
	return Lead{
		HazardClass:   q.HazardClass,
		Quantity:      q.Quantity,
		PickupState:   q.PickupState,
		DeliveryState: q.DeliveryState,
		VehicleTypes:  q.PreferredVehicleTypes,
		IsUrgent:      q.IsUrgent,
	}
}

// Breakdown is a priced lead with every multiplier that went into it.
type Breakdown struct {
	Tier               models.SubscriptionTier `json:"tier"`
	BaseCost           decimal.Decimal         `json:"base_cost"`
	HazardKey          models.HazardClass      `json:"hazard_key"`
	HazardMultiplier   decimal.Decimal         `json:"hazard_multiplier"`
	Distance           DistanceClass           `json:"distance"`
	DistanceMultiplier decimal.Decimal         `json:"distance_multiplier"`
	QuantityMultiplier decimal.Decimal         `json:"quantity_multiplier"`
	GoverningVehicle   models.VehicleType      `json:"governing_vehicle,omitempty"`
	VehicleMultiplier  decimal.Decimal         `json:"vehicle_multiplier"`
	UrgencyMultiplier  decimal.Decimal         `json:"urgency_multiplier"`
	TierMultiplier     decimal.Decimal         `json:"tier_multiplier"`
	Cost               decimal.Decimal         `json:"cost"`
}

// Inputs returns the replay record stored with a lead-cost debit.
func (b Breakdown) Inputs(quantity decimal.Decimal) models.LeadPricing {
	return models.LeadPricing{
		HazardCategory: string(b.HazardKey),
		RouteDistance:  string(b.Distance),
		Quantity:       quantity,
		VehicleType:    string(b.GoverningVehicle),
	}
}

// Price returns the lead cost for a partner on the given tier.
func Price(cfg Config, lead Lead, tier models.SubscriptionTier) (decimal.Decimal, error) {
	b, err := Calculate(cfg, lead, tier)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Cost, nil
}

// Calculate multiplies the base cost by every applicable factor and rounds
// the result to two decimals, half away from zero.
func Calculate(cfg Config, lead Lead, tier models.SubscriptionTier) (Breakdown, error) {
	tc, ok := cfg.Tiers[tier]
	if !ok {
		return Breakdown{}, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
	if !lead.Quantity.IsPositive() {
		return Breakdown{}, ErrInvalidQuantity
	}

	b := Breakdown{
		Tier:               tier,
		BaseCost:           tc.BaseLeadCost,
		HazardKey:          models.NonHazardous,
		QuantityMultiplier: cfg.quantityMultiplier(lead.Quantity),
		UrgencyMultiplier:  one,
		TierMultiplier:     tc.DiscountMultiplier,
	}

	if lead.HazardClass != nil && *lead.HazardClass != "" {
		b.HazardKey = *lead.HazardClass
	}
	b.HazardMultiplier = multiplierOr(cfg.Hazard[b.HazardKey])

	b.Distance = cfg.Classify(lead.PickupState, lead.DeliveryState)
	b.DistanceMultiplier = multiplierOr(cfg.Distance[b.Distance])

	b.GoverningVehicle, b.VehicleMultiplier = cfg.vehicleMultiplier(lead.VehicleTypes)

	if lead.IsUrgent {
		b.UrgencyMultiplier = cfg.UrgencyMultiplier
	}

	cost := b.BaseCost.
		Mul(b.HazardMultiplier).
		Mul(b.DistanceMultiplier).
		Mul(b.QuantityMultiplier).
		Mul(b.VehicleMultiplier).
		Mul(b.UrgencyMultiplier).
		Mul(b.TierMultiplier)

	b.Cost = cost.Round(2)
	return b, nil
}

// Classify returns the distance class of a route. The table is checked in
// both directions; pairs missing from it are priced as UnmappedRoute.
func (c Config) Classify(pickupState, deliveryState string) DistanceClass {
	from := strings.TrimSpace(pickupState)
	to := strings.TrimSpace(deliveryState)

	if strings.EqualFold(from, to) {
		return SameState
	}
	if dc, ok := c.route(from, to); ok {
		return dc
	}
	if dc, ok := c.route(to, from); ok {
		return dc
	}
	return UnmappedRoute
}

func (c Config) route(from, to string) (DistanceClass, bool) {
	row, ok := lookupFold(c.Routes, from)
	if !ok {
		return "", false
	}
	return lookupFold(row, to)
}

func lookupFold[V any](m map[string]V, key string) (V, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func (c Config) quantityMultiplier(q decimal.Decimal) decimal.Decimal {
	for _, r := range c.QuantityRanges {
		if r.Contains(q) {
			return r.Multiplier
		}
	}
	return one
}

// vehicleMultiplier prices the most expensive requested vehicle.
func (c Config) vehicleMultiplier(types []models.VehicleType) (models.VehicleType, decimal.Decimal) {
	var governing models.VehicleType
	highest := one
	for i, vt := range types {
		m := multiplierOr(c.Vehicle[vt])
		if i == 0 || m.GreaterThan(highest) {
			governing, highest = vt, m
		}
	}
	return governing, highest
}

func multiplierOr(m decimal.Decimal) decimal.Decimal {
	if m.IsZero() {
		return one
	}
	return m
}
