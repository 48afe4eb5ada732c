package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"freight-bidding-api/internal/models"
)

// DistanceClass buckets a state pair by how far apart the states are.
type DistanceClass string

const (
	SameState DistanceClass = "SAME_STATE"
	Short     DistanceClass = "SHORT"
	Medium    DistanceClass = "MEDIUM"
	Long      DistanceClass = "LONG"
)

// UnmappedRoute is used when a state pair is missing from the route table.
const UnmappedRoute = Medium

// QuantityRange is a half-open [Min, Max) band. An invalid Max means unbounded.
type QuantityRange struct {
	Min        decimal.Decimal     `json:"min"`
	Max        decimal.NullDecimal `json:"max"`
	Multiplier decimal.Decimal     `json:"multiplier"`
}

func (r QuantityRange) Contains(q decimal.Decimal) bool {
	if q.LessThan(r.Min) {
		return false
	}
	return !r.Max.Valid || q.LessThan(r.Max.Decimal)
}

// TierConfig is the per-subscription-tier part of the pricing table.
type TierConfig struct {
	BaseLeadCost       decimal.Decimal `json:"base_lead_cost"`
	DiscountMultiplier decimal.Decimal `json:"discount_multiplier"`
	MaxLeadsPerDay     int             `json:"max_leads_per_day"` // 0 means unlimited
	Exclusive          bool            `json:"exclusive"`
}

// Config holds every table the engine reads. It is a plain value: callers
// load it once per operation and pass it in.
type Config struct {
	Tiers             map[models.SubscriptionTier]TierConfig `json:"tiers"`
	Hazard            map[models.HazardClass]decimal.Decimal `json:"hazard"`
	Distance          map[DistanceClass]decimal.Decimal      `json:"distance"`
	Routes            map[string]map[string]DistanceClass    `json:"routes"`
	QuantityRanges    []QuantityRange                        `json:"quantity_ranges"`
	Vehicle           map[models.VehicleType]decimal.Decimal `json:"vehicle"`
	UrgencyMultiplier decimal.Decimal                        `json:"urgency_multiplier"`
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func upTo(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

// DefaultConfig returns the production pricing tables.
func DefaultConfig() Config {
	base := d("500")

	return Config{
		Tiers: map[models.SubscriptionTier]TierConfig{
			models.TierFree:     {BaseLeadCost: base, DiscountMultiplier: d("1.0"), MaxLeadsPerDay: 10},
			models.TierStandard: {BaseLeadCost: base, DiscountMultiplier: d("0.85"), MaxLeadsPerDay: 50},
			models.TierPremium:  {BaseLeadCost: base, DiscountMultiplier: d("0.7"), Exclusive: true},
		},
		Hazard: map[models.HazardClass]decimal.Decimal{
			models.NonHazardous: d("1.0"),
			models.HazardClass1: d("2.5"),
			models.HazardClass2: d("1.8"),
			models.HazardClass3: d("1.6"),
			models.HazardClass4: d("1.5"),
			models.HazardClass5: d("1.7"),
			models.HazardClass6: d("1.9"),
			models.HazardClass7: d("2.0"),
			models.HazardClass8: d("1.6"),
			models.HazardClass9: d("1.3"),
		},
		Distance: map[DistanceClass]decimal.Decimal{
			SameState: d("1.0"),
			Short:     d("1.3"),
			Medium:    d("1.6"),
			Long:      d("2.0"),
		},
		Routes: map[string]map[string]DistanceClass{
			"Maharashtra": {
				"Gujarat":     Short,
				"Karnataka":   Short,
				"Goa":         Short,
				"Delhi":       Medium,
				"Tamil Nadu":  Long,
				"West Bengal": Long,
			},
			"Gujarat": {
				"Maharashtra": Short,
				"Rajasthan":   Short,
				"Delhi":       Medium,
				"Karnataka":   Medium,
			},
			"Karnataka": {
				"Maharashtra":    Short,
				"Goa":            Short,
				"Tamil Nadu":     Short,
				"Kerala":         Short,
				"Andhra Pradesh": Short,
			},
			"Delhi": {
				"Haryana":       Short,
				"Uttar Pradesh": Short,
				"Punjab":        Short,
				"Rajasthan":     Short,
				"Maharashtra":   Medium,
				"Gujarat":       Medium,
			},
		},
		QuantityRanges: []QuantityRange{
			{Min: d("0"), Max: upTo("10"), Multiplier: d("1.5")},
			{Min: d("10"), Max: upTo("50"), Multiplier: d("1.2")},
			{Min: d("50"), Max: upTo("100"), Multiplier: d("1.0")},
			{Min: d("100"), Max: upTo("500"), Multiplier: d("0.9")},
			{Min: d("500"), Multiplier: d("0.8")},
		},
		Vehicle: map[models.VehicleType]decimal.Decimal{
			models.VehicleTruck:        d("1.0"),
			models.VehicleContainer:    d("1.1"),
			models.VehicleTanker:       d("1.3"),
			models.VehicleISOTank:      d("1.5"),
			models.VehicleFlatbed:      d("1.1"),
			models.VehicleRefrigerated: d("1.4"),
		},
		UrgencyMultiplier: d("1.3"),
	}
}

// Validate checks that the tables can price every valid lead.
func (c Config) Validate() error {
	for _, tier := range []models.SubscriptionTier{models.TierFree, models.TierStandard, models.TierPremium} {
		tc, ok := c.Tiers[tier]
		if !ok {
			return fmt.Errorf("missing tier %s", tier)
		}
		if !tc.BaseLeadCost.IsPositive() {
			return fmt.Errorf("tier %s: base lead cost must be positive", tier)
		}
		if !tc.DiscountMultiplier.IsPositive() || tc.DiscountMultiplier.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("tier %s: discount multiplier must be in (0, 1]", tier)
		}
		if tc.MaxLeadsPerDay < 0 {
			return fmt.Errorf("tier %s: max leads per day must be non-negative", tier)
		}
	}

	for _, hc := range append([]models.HazardClass{models.NonHazardous}, models.HazardClasses...) {
		if m, ok := c.Hazard[hc]; !ok || !m.IsPositive() {
			return fmt.Errorf("hazard multiplier for %s must be positive", hc)
		}
	}

	for _, dc := range []DistanceClass{SameState, Short, Medium, Long} {
		if m, ok := c.Distance[dc]; !ok || !m.IsPositive() {
			return fmt.Errorf("distance multiplier for %s must be positive", dc)
		}
	}
	for from, row := range c.Routes {
		for to, dc := range row {
			if _, ok := c.Distance[dc]; !ok {
				return fmt.Errorf("route %s -> %s: unknown distance class %s", from, to, dc)
			}
		}
	}

	for _, vt := range models.VehicleTypes {
		if m, ok := c.Vehicle[vt]; !ok || !m.IsPositive() {
			return fmt.Errorf("vehicle multiplier for %s must be positive", vt)
		}
	}

	if !c.UrgencyMultiplier.IsPositive() {
		return errors.New("urgency multiplier must be positive")
	}

	return c.validateQuantityRanges()
}

func (c Config) validateQuantityRanges() error {
	if len(c.QuantityRanges) == 0 {
		return errors.New("at least one quantity range is required")
	}

	if last := c.QuantityRanges[len(c.QuantityRanges)-1]; last.Max.Valid {
		return errors.New("last quantity range must be unbounded")
	}

	for i, r := range c.QuantityRanges {
		if !r.Multiplier.IsPositive() {
			return fmt.Errorf("quantity range %d: multiplier must be positive", i)
		}
		if r.Max.Valid && !r.Max.Decimal.GreaterThan(r.Min) {
			return fmt.Errorf("quantity range %d: max must be greater than min", i)
		}
		if i == 0 {
			continue
		}

		prev := c.QuantityRanges[i-1]
		if !prev.Max.Valid {
			return errors.New("no quantity ranges allowed after the unbounded range")
		}
		if !r.Min.Equal(prev.Max.Decimal) {
			return fmt.Errorf("quantity range %d must start where range %d ends", i, i-1)
		}
		if r.Multiplier.GreaterThan(prev.Multiplier) {
			return fmt.Errorf("quantity range %d: bulk multiplier must not increase", i)
		}
	}

	return nil
}
