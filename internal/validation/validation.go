package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"freight-bidding-api/internal/models"
)

var (
	uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

	maxRecharge    = decimal.NewFromInt(1_000_000)
	maxOfferPrice  = decimal.NewFromInt(100_000_000)
	maxQuantity    = decimal.NewFromInt(10_000_000)
	maxTransitDays = 365
)

const maxListLen = 100

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func required(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

// ValidateActor checks the identity asserted by the auth gateway.
func ValidateActor(actor models.Actor) error {
	if err := ValidateUUID(actor.ID, "user_id"); err != nil {
		return err
	}

	switch actor.Role {
	case models.RoleTrader, models.RolePartner, models.RoleAdmin:
		return nil
	case "":
		return required("user_role")
	default:
		return &ValidationError{
			Field:   "user_role",
			Message: fmt.Sprintf("unknown role: %s", actor.Role),
		}
	}
}

func ValidateQuoteRequest(req models.SubmitQuoteRequest, now time.Time) error {
	if req.CargoName == "" {
		return required("cargo_name")
	}
	if len(req.CargoName) > 200 {
		return &ValidationError{Field: "cargo_name", Message: "cannot exceed 200 characters"}
	}

	if req.IsHazardous {
		if req.HazardClass == nil {
			return &ValidationError{Field: "hazard_class", Message: "is required for hazardous cargo"}
		}
		if !IsHazardClass(*req.HazardClass) {
			return &ValidationError{
				Field:   "hazard_class",
				Message: fmt.Sprintf("unknown hazard class: %s", *req.HazardClass),
			}
		}
	} else if req.HazardClass != nil {
		return &ValidationError{Field: "hazard_class", Message: "must be empty for non-hazardous cargo"}
	}

	if !req.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	if req.Quantity.GreaterThan(maxQuantity) {
		return &ValidationError{Field: "quantity", Message: "exceeds maximum allowed quantity"}
	}
	if req.QuantityUnit == "" {
		return required("quantity_unit")
	}

	locations := []struct{ field, value string }{
		{"pickup_city", req.PickupCity},
		{"pickup_state", req.PickupState},
		{"delivery_city", req.DeliveryCity},
		{"delivery_state", req.DeliveryState},
	}
	for _, loc := range locations {
		if loc.value == "" {
			return required(loc.field)
		}
	}

	if err := validateVehicleTypes(req.PreferredVehicleTypes, "preferred_vehicle_types"); err != nil {
		return err
	}

	if req.CargoReadyDate.IsZero() {
		return required("cargo_ready_date")
	}

	if !req.ExpiresAt.IsZero() {
		if !req.ExpiresAt.After(now) {
			return &ValidationError{Field: "expires_at", Message: "must be in the future"}
		}
		if req.ExpiresAt.Sub(now) > 90*24*time.Hour {
			return &ValidationError{Field: "expires_at", Message: "cannot be more than 90 days ahead"}
		}
	}

	return nil
}

func ValidateOfferRequest(req models.SubmitOfferRequest) error {
	if err := ValidateUUID(req.QuoteID, "quote_id"); err != nil {
		return err
	}

	if !req.Price.IsPositive() {
		return &ValidationError{Field: "price", Message: "must be greater than zero"}
	}
	if req.Price.GreaterThan(maxOfferPrice) {
		return &ValidationError{Field: "price", Message: "exceeds maximum allowed price"}
	}
	if !req.Price.Equal(req.Price.Round(2)) {
		return &ValidationError{Field: "price", Message: "cannot have more than 2 decimal places"}
	}

	if req.TransitDays <= 0 {
		return &ValidationError{Field: "transit_days", Message: "must be a positive integer"}
	}
	if req.TransitDays > maxTransitDays {
		return &ValidationError{Field: "transit_days", Message: "cannot exceed 365 days"}
	}

	if req.OfferValidUntil.IsZero() {
		return required("offer_valid_until")
	}
	if req.PickupAvailableFrom.IsZero() {
		return required("pickup_available_from")
	}
	if req.PickupAvailableFrom.After(req.OfferValidUntil) {
		return &ValidationError{Field: "pickup_available_from", Message: "must not be after offer_valid_until"}
	}

	if len(req.ValueAddedServices) > maxListLen {
		return &ValidationError{Field: "value_added_services", Message: "cannot contain more than 100 entries"}
	}
	if len(req.TermsAndConditions) > 5000 {
		return &ValidationError{Field: "terms_and_conditions", Message: "cannot exceed 5000 characters"}
	}
	if len(req.Remarks) > 1000 {
		return &ValidationError{Field: "remarks", Message: "cannot exceed 1000 characters"}
	}

	return nil
}

// ValidateRecharge enforces the (0, 1,000,000] recharge window.
func ValidateRecharge(req models.RechargeRequest) error {
	if !req.Amount.IsPositive() || req.Amount.GreaterThan(maxRecharge) {
		return &ValidationError{Field: "amount", Message: "must be between 0 and 1,000,000"}
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return &ValidationError{Field: "amount", Message: "cannot have more than 2 decimal places"}
	}
	return nil
}

func ValidateWalletSettings(req models.WalletSettingsRequest) error {
	if req.AlertThreshold.IsNegative() {
		return &ValidationError{Field: "alert_threshold", Message: "must be non-negative"}
	}
	if req.AlertThreshold.GreaterThan(maxRecharge) {
		return &ValidationError{Field: "alert_threshold", Message: "cannot exceed 1,000,000"}
	}
	return nil
}

func ValidateCapability(c models.PartnerCapability) error {
	if c.CompanyName == "" {
		return required("company_name")
	}

	switch c.SubscriptionTier {
	case models.TierFree, models.TierStandard, models.TierPremium:
	case "":
		return required("subscription_tier")
	default:
		return &ValidationError{
			Field:   "subscription_tier",
			Message: fmt.Sprintf("unknown tier: %s", c.SubscriptionTier),
		}
	}

	if len(c.ServiceStates) == 0 && len(c.ServiceCities) == 0 {
		return &ValidationError{Field: "service_states", Message: "at least one service state or city is required"}
	}
	if err := validateStringList(c.ServiceStates, "service_states"); err != nil {
		return err
	}
	if err := validateStringList(c.ServiceCities, "service_cities"); err != nil {
		return err
	}
	if err := validateStringList(c.PackagingCapabilities, "packaging_capabilities"); err != nil {
		return err
	}

	for i, hc := range c.HazardClasses {
		if !IsHazardClass(hc) {
			return &ValidationError{
				Field:   fmt.Sprintf("hazard_classes[%d]", i),
				Message: fmt.Sprintf("unknown hazard class: %s", hc),
			}
		}
	}

	if len(c.FleetTypes) == 0 {
		return required("fleet_types")
	}
	return validateVehicleTypes(c.FleetTypes, "fleet_types")
}

func ValidateShipmentUpdate(req models.ShipmentUpdateRequest) error {
	switch req.Status {
	case models.ShipmentBooked, models.ShipmentPickedUp, models.ShipmentInTransit,
		models.ShipmentDelivered, models.ShipmentCancelled:
	case "":
		return required("status")
	default:
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status: %s", req.Status)}
	}
	if len(req.CurrentLocation) > 200 {
		return &ValidationError{Field: "current_location", Message: "cannot exceed 200 characters"}
	}
	return nil
}

func IsHazardClass(hc models.HazardClass) bool {
	for _, known := range models.HazardClasses {
		if hc == known {
			return true
		}
	}
	return false
}

func IsVehicleType(vt models.VehicleType) bool {
	for _, known := range models.VehicleTypes {
		if vt == known {
			return true
		}
	}
	return false
}

func validateVehicleTypes(list []models.VehicleType, field string) error {
	if len(list) > len(models.VehicleTypes) {
		return &ValidationError{Field: field, Message: "contains too many entries"}
	}

	seen := make(map[models.VehicleType]bool)
	for i, vt := range list {
		if !IsVehicleType(vt) {
			return &ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("unknown vehicle type: %s", vt),
			}
		}
		if seen[vt] {
			return &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate vehicle type: %s", vt),
			}
		}
		seen[vt] = true
	}

	return nil
}

func validateStringList(list []string, field string) error {
	if len(list) > maxListLen {
		return &ValidationError{
			Field:   field,
			Message: "cannot contain more than 100 entries",
		}
	}

	for i, s := range list {
		if SanitizeString(s) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "must not be empty",
			}
		}
	}

	return nil
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// SanitizeList sanitizes every element and drops the ones left empty.
func SanitizeList(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = SanitizeString(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ValidateUUID accepts only the canonical lowercase form. Ids are used
// verbatim as lock and lookup keys, so "ABC..." and " abc..." must not pass.
func ValidateUUID(id, fieldName string) error {
	if id == "" {
		return required(fieldName)
	}

	if !uuidRegex.MatchString(id) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a lowercase UUID v4",
		}
	}

	return nil
}
