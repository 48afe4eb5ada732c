package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"freight-bidding-api/internal/models"
)

func validQuoteRequest() models.SubmitQuoteRequest {
	return models.SubmitQuoteRequest{
		CargoName:     "Sulphuric acid",
		Quantity:      decimal.NewFromInt(20),
		QuantityUnit:  "MT",
		PickupCity:    "Mumbai",
		PickupState:   "Maharashtra",
		DeliveryCity:  "Pune",
		DeliveryState: "Maharashtra",
		PreferredVehicleTypes: []models.VehicleType{
			models.VehicleTanker,
		},
		CargoReadyDate: time.Now().Add(48 * time.Hour),
	}
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	return ve.Field
}

func TestValidateQuoteRequest(t *testing.T) {
	now := time.Now()
	class3 := models.HazardClass3
	bogus := models.HazardClass("CLASS_42")

	tests := []struct {
		name    string
		mutate  func(r *models.SubmitQuoteRequest)
		wantErr string
	}{
		{"valid", func(r *models.SubmitQuoteRequest) {}, ""},
		{"valid hazardous", func(r *models.SubmitQuoteRequest) {
			r.IsHazardous = true
			r.HazardClass = &class3
		}, ""},
		{"missing cargo name", func(r *models.SubmitQuoteRequest) { r.CargoName = "" }, "cargo_name"},
		{"hazardous without class", func(r *models.SubmitQuoteRequest) { r.IsHazardous = true }, "hazard_class"},
		{"class without hazard flag", func(r *models.SubmitQuoteRequest) { r.HazardClass = &class3 }, "hazard_class"},
		{"unknown class", func(r *models.SubmitQuoteRequest) {
			r.IsHazardous = true
			r.HazardClass = &bogus
		}, "hazard_class"},
		{"zero quantity", func(r *models.SubmitQuoteRequest) { r.Quantity = decimal.Zero }, "quantity"},
		{"negative quantity", func(r *models.SubmitQuoteRequest) { r.Quantity = decimal.NewFromInt(-3) }, "quantity"},
		{"missing delivery state", func(r *models.SubmitQuoteRequest) { r.DeliveryState = "" }, "delivery_state"},
		{"unknown vehicle", func(r *models.SubmitQuoteRequest) {
			r.PreferredVehicleTypes = []models.VehicleType{"HOVERCRAFT"}
		}, "preferred_vehicle_types[0]"},
		{"duplicate vehicle", func(r *models.SubmitQuoteRequest) {
			r.PreferredVehicleTypes = []models.VehicleType{models.VehicleTruck, models.VehicleTruck}
		}, "preferred_vehicle_types"},
		{"expiry in the past", func(r *models.SubmitQuoteRequest) { r.ExpiresAt = now.Add(-time.Minute) }, "expires_at"},
		{"missing ready date", func(r *models.SubmitQuoteRequest) { r.CargoReadyDate = time.Time{} }, "cargo_ready_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validQuoteRequest()
			tt.mutate(&req)

			err := ValidateQuoteRequest(req, now)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if got := fieldOf(t, err); got != tt.wantErr {
				t.Errorf("Expected error on field %s, got %s", tt.wantErr, got)
			}
		})
	}
}

func TestValidateOfferRequest(t *testing.T) {
	now := time.Now()
	base := models.SubmitOfferRequest{
		QuoteID:             uuid.New().String(),
		Price:               decimal.RequireFromString("45000.50"),
		TransitDays:         3,
		OfferValidUntil:     now.Add(72 * time.Hour),
		PickupAvailableFrom: now.Add(24 * time.Hour),
	}

	if err := ValidateOfferRequest(base); err != nil {
		t.Fatalf("Expected valid offer, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(r *models.SubmitOfferRequest)
		field  string
	}{
		{"bad quote id", func(r *models.SubmitOfferRequest) { r.QuoteID = "not-a-uuid" }, "quote_id"},
		{"missing price", func(r *models.SubmitOfferRequest) { r.Price = decimal.Zero }, "price"},
		{"negative price", func(r *models.SubmitOfferRequest) { r.Price = decimal.NewFromInt(-1) }, "price"},
		{"sub-paisa price", func(r *models.SubmitOfferRequest) { r.Price = decimal.RequireFromString("10.001") }, "price"},
		{"zero transit days", func(r *models.SubmitOfferRequest) { r.TransitDays = 0 }, "transit_days"},
		{"pickup after validity", func(r *models.SubmitOfferRequest) {
			r.PickupAvailableFrom = r.OfferValidUntil.Add(time.Hour)
		}, "pickup_available_from"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			if got := fieldOf(t, ValidateOfferRequest(req)); got != tt.field {
				t.Errorf("Expected error on field %s, got %s", tt.field, got)
			}
		})
	}
}

func TestValidateRecharge(t *testing.T) {
	tests := []struct {
		amount string
		valid  bool
	}{
		{"0.01", true},
		{"1000000", true},
		{"0", false},
		{"-5", false},
		{"1000000.01", false},
		{"10.005", false},
	}

	for _, tt := range tests {
		err := ValidateRecharge(models.RechargeRequest{Amount: decimal.RequireFromString(tt.amount)})
		if tt.valid && err != nil {
			t.Errorf("Expected %s to be valid, got %v", tt.amount, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("Expected %s to be rejected", tt.amount)
		}
	}
}

func TestValidateCapability(t *testing.T) {
	c := models.PartnerCapability{
		CompanyName:      "Deccan Haulers",
		SubscriptionTier: models.TierStandard,
		ServiceStates:    []string{"Maharashtra"},
		HazardClasses:    []models.HazardClass{models.HazardClass3},
		FleetTypes:       []models.VehicleType{models.VehicleTanker},
	}
	if err := ValidateCapability(c); err != nil {
		t.Fatalf("Expected valid capability, got %v", err)
	}

	noArea := c
	noArea.ServiceStates = nil
	if got := fieldOf(t, ValidateCapability(noArea)); got != "service_states" {
		t.Errorf("Expected service_states error, got %s", got)
	}

	badTier := c
	badTier.SubscriptionTier = "GOLD"
	if got := fieldOf(t, ValidateCapability(badTier)); got != "subscription_tier" {
		t.Errorf("Expected subscription_tier error, got %s", got)
	}

	noFleet := c
	noFleet.FleetTypes = nil
	if got := fieldOf(t, ValidateCapability(noFleet)); got != "fleet_types" {
		t.Errorf("Expected fleet_types error, got %s", got)
	}
}

func TestValidateActor(t *testing.T) {
	if err := ValidateActor(models.Actor{ID: uuid.New().String(), Role: models.RolePartner}); err != nil {
		t.Errorf("Expected valid actor, got %v", err)
	}
	if got := fieldOf(t, ValidateActor(models.Actor{ID: "42", Role: models.RoleTrader})); got != "user_id" {
		t.Errorf("Expected user_id error, got %s", got)
	}
	if got := fieldOf(t, ValidateActor(models.Actor{ID: uuid.New().String(), Role: "GUEST"})); got != "user_role" {
		t.Errorf("Expected user_role error, got %s", got)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  Pune\x00\x07 "); got != "Pune" {
		t.Errorf("Expected 'Pune', got %q", got)
	}
	if got := SanitizeList([]string{" Goa ", "\x01", ""}); len(got) != 1 || got[0] != "Goa" {
		t.Errorf("Expected [Goa], got %v", got)
	}
}

func TestValidateUUIDCanonicalOnly(t *testing.T) {
	id := uuid.New().String()

	if err := ValidateUUID(id, "quote_id"); err != nil {
		t.Errorf("Expected canonical id to pass, got %v", err)
	}

	for _, bad := range []string{strings.ToUpper(id), " " + id, id + "\n", "not-a-uuid"} {
		if got := fieldOf(t, ValidateUUID(bad, "quote_id")); got != "quote_id" {
			t.Errorf("Expected quote_id error for %q, got %s", bad, got)
		}
	}
}
