package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"freight-bidding-api/internal/models"
)

func hazard(hc models.HazardClass) *models.HazardClass {
	return &hc
}

func mustPrice(t *testing.T, cfg Config, lead Lead, tier models.SubscriptionTier) decimal.Decimal {
	t.Helper()
	cost, err := Price(cfg, lead, tier)
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	return cost
}

func TestPriceExplosivesTankerSameState(t *testing.T) {
	lead := Lead{
		HazardClass:   hazard(models.HazardClass1),
		Quantity:      decimal.NewFromInt(5),
		PickupState:   "Maharashtra",
		DeliveryState: "Maharashtra",
		VehicleTypes:  []models.VehicleType{models.VehicleTanker},
	}

	cost := mustPrice(t, DefaultConfig(), lead, models.TierFree)

	if cost.StringFixed(2) != "2437.50" {
		t.Errorf("Expected 2437.50, got %s", cost.StringFixed(2))
	}
}

func TestPriceAppliesEveryFactor(t *testing.T) {
	lead := Lead{
		HazardClass:   hazard(models.HazardClass3),
		Quantity:      decimal.NewFromInt(120),
		PickupState:   "Gujarat",
		DeliveryState: "Maharashtra",
		VehicleTypes:  []models.VehicleType{models.VehicleTruck, models.VehicleRefrigerated},
		IsUrgent:      true,
	}

	b, err := Calculate(DefaultConfig(), lead, models.TierStandard)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	// 500 * 1.6 * 1.3 * 0.9 * 1.4 * 1.3 * 0.85 = 1447.992
	if b.Cost.StringFixed(2) != "1447.99" {
		t.Errorf("Expected 1447.99, got %s", b.Cost.StringFixed(2))
	}
	if b.Distance != Short {
		t.Errorf("Expected SHORT route, got %s", b.Distance)
	}
	if b.GoverningVehicle != models.VehicleRefrigerated {
		t.Errorf("Expected REFRIGERATED to govern price, got %s", b.GoverningVehicle)
	}

	inputs := b.Inputs(lead.Quantity)
	if inputs.HazardCategory != "CLASS_3" || inputs.RouteDistance != "SHORT" || inputs.VehicleType != "REFRIGERATED" {
		t.Errorf("Unexpected replay inputs: %+v", inputs)
	}
}

func TestPriceDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	lead := Lead{
		Quantity:      decimal.RequireFromString("37.5"),
		PickupState:   "Delhi",
		DeliveryState: "Punjab",
		VehicleTypes:  []models.VehicleType{models.VehicleContainer},
	}

	first := mustPrice(t, cfg, lead, models.TierPremium)
	for i := 0; i < 50; i++ {
		if got := mustPrice(t, cfg, lead, models.TierPremium); !got.Equal(first) {
			t.Fatalf("Expected %s on every call, got %s", first, got)
		}
	}
}

func TestPriceHazardMonotonicity(t *testing.T) {
	cfg := DefaultConfig()
	base := Lead{
		Quantity:      decimal.NewFromInt(60),
		PickupState:   "Karnataka",
		DeliveryState: "Kerala",
	}

	safe := mustPrice(t, cfg, base, models.TierStandard)
	for _, hc := range models.HazardClasses {
		lead := base
		lead.HazardClass = hazard(hc)
		if cost := mustPrice(t, cfg, lead, models.TierStandard); cost.LessThan(safe) {
			t.Errorf("Expected %s to cost at least %s, got %s", hc, safe, cost)
		}
	}

	explosives := base
	explosives.HazardClass = hazard(models.HazardClass1)
	top := mustPrice(t, cfg, explosives, models.TierStandard)
	for _, hc := range models.HazardClasses {
		lead := base
		lead.HazardClass = hazard(hc)
		if cost := mustPrice(t, cfg, lead, models.TierStandard); cost.GreaterThan(top) {
			t.Errorf("Expected explosives to be the most expensive class, %s costs %s", hc, cost)
		}
	}
}

func TestQuantityBulkDiscount(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		quantity string
		want     string
	}{
		{"0.5", "1.5"},
		{"9.99", "1.5"},
		{"10", "1.2"},
		{"49.9", "1.2"},
		{"50", "1"},
		{"100", "0.9"},
		{"499", "0.9"},
		{"500", "0.8"},
		{"1000000", "0.8"},
	}

	prev := decimal.NewFromInt(100)
	for _, tt := range tests {
		got := cfg.quantityMultiplier(decimal.RequireFromString(tt.quantity))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("quantity %s: expected multiplier %s, got %s", tt.quantity, tt.want, got)
		}
		if got.GreaterThan(prev) {
			t.Errorf("quantity %s: multiplier increased from %s to %s", tt.quantity, prev, got)
		}
		prev = got
	}
}

func TestClassifyRoutes(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		from, to string
		want     DistanceClass
	}{
		{"Maharashtra", "Maharashtra", SameState},
		{"maharashtra", " Maharashtra ", SameState},
		{"Maharashtra", "Tamil Nadu", Long},
		{"Tamil Nadu", "Maharashtra", Long},
		{"Kerala", "Karnataka", Short},
		{"delhi", "uttar pradesh", Short},
		{"Assam", "Kerala", UnmappedRoute},
		{"Gujarat", "Karnataka", Medium},
	}

	for _, tt := range tests {
		if got := cfg.Classify(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %s, got %s", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestVehicleMultiplier(t *testing.T) {
	cfg := DefaultConfig()

	vt, m := cfg.vehicleMultiplier(nil)
	if vt != "" || !m.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected neutral multiplier for no vehicles, got %s %s", vt, m)
	}

	vt, m = cfg.vehicleMultiplier([]models.VehicleType{models.VehicleTruck, models.VehicleISOTank, models.VehicleTanker})
	if vt != models.VehicleISOTank || !m.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("Expected ISO_TANK at 1.5, got %s %s", vt, m)
	}
}

func TestTierDiscounts(t *testing.T) {
	cfg := DefaultConfig()
	lead := Lead{
		Quantity:      decimal.NewFromInt(75),
		PickupState:   "Goa",
		DeliveryState: "Goa",
	}

	free := mustPrice(t, cfg, lead, models.TierFree)
	standard := mustPrice(t, cfg, lead, models.TierStandard)
	premium := mustPrice(t, cfg, lead, models.TierPremium)

	if free.StringFixed(2) != "500.00" || standard.StringFixed(2) != "425.00" || premium.StringFixed(2) != "350.00" {
		t.Errorf("Expected 500/425/350, got %s/%s/%s", free, standard, premium)
	}
}

func TestRoundingHalfAwayFromZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tiers[models.TierFree] = TierConfig{
		BaseLeadCost:       decimal.RequireFromString("0.125"),
		DiscountMultiplier: decimal.NewFromInt(1),
	}
	lead := Lead{Quantity: decimal.NewFromInt(60), PickupState: "Goa", DeliveryState: "Goa"}

	if got := mustPrice(t, cfg, lead, models.TierFree); got.StringFixed(2) != "0.13" {
		t.Errorf("Expected 0.13, got %s", got.StringFixed(2))
	}
}

func TestPriceErrors(t *testing.T) {
	cfg := DefaultConfig()

	_, err := Price(cfg, Lead{Quantity: decimal.NewFromInt(1)}, "GOLD")
	if !errors.Is(err, ErrUnknownTier) {
		t.Errorf("Expected ErrUnknownTier, got %v", err)
	}

	_, err = Price(cfg, Lead{Quantity: decimal.Zero}, models.TierFree)
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("Expected ErrInvalidQuantity, got %v", err)
	}
}
