// Package matcher decides which logistics partners may see and bid on a quote.
package matcher

import (
	"strings"

	"freight-bidding-api/internal/models"
)

// Eligible reports whether a partner's declared capabilities cover
// everything the quote requires.
func Eligible(q models.Quote, c models.PartnerCapability) bool {
	if !serves(c, q.PickupState, q.PickupCity) || !serves(c, q.DeliveryState, q.DeliveryCity) {
		return false
	}

	if q.IsHazardous && q.HazardClass != nil && !containsHazard(c.HazardClasses, *q.HazardClass) {
		return false
	}

	if len(q.PreferredVehicleTypes) > 0 && !allVehicles(c.FleetTypes, q.PreferredVehicleTypes) {
		return false
	}

	if q.PackagingType != "" && !containsFold(c.PackagingCapabilities, q.PackagingType) {
		return false
	}

	return true
}

// Match returns the IDs of every eligible partner, in input order.
func Match(q models.Quote, partners []models.PartnerCapability) []string {
	ids := make([]string, 0, len(partners))
	for _, p := range partners {
		if Eligible(q, p) {
			ids = append(ids, p.PartnerID)
		}
	}
	return ids
}

// A location is served when either its state or its city is declared.
func serves(c models.PartnerCapability, state, city string) bool {
	return containsFold(c.ServiceStates, state) || containsFold(c.ServiceCities, city)
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

func containsHazard(list []models.HazardClass, hc models.HazardClass) bool {
	for _, h := range list {
		if h == hc {
			return true
		}
	}
	return false
}

// Every preferred type must be in the fleet. Pricing charges for the most
// expensive preferred vehicle, so partial coverage is not enough.
func allVehicles(fleet, wanted []models.VehicleType) bool {
	for _, w := range wanted {
		found := false
		for _, f := range fleet {
			if f == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
