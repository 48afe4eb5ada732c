package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/models"
	"freight-bidding-api/internal/validation"
)

// GetShipment is visible to the booking trader, the carrying partner and admins.
func (s *Service) GetShipment(ctx context.Context, actor models.Actor, shipmentID string) (models.Shipment, error) {
	if err := validation.ValidateActor(actor); err != nil {
		return models.Shipment{}, err
	}
	if err := validation.ValidateUUID(shipmentID, "shipment_id"); err != nil {
		return models.Shipment{}, err
	}

	sh, err := s.db.GetShipment(ctx, shipmentID)
	if err != nil {
		return models.Shipment{}, err
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTrader:
		if sh.TraderID != actor.ID {
			return models.Shipment{}, apperr.ErrNotOwner
		}
	case models.RolePartner:
		if sh.PartnerID != actor.ID {
			return models.Shipment{}, apperr.ErrNotOwner
		}
	}
	return sh, nil
}

// UpdateShipmentStatus is an administrative override. Delivered and
// cancelled shipments are final.
func (s *Service) UpdateShipmentStatus(ctx context.Context, actor models.Actor, shipmentID string, req models.ShipmentUpdateRequest) (models.Shipment, error) {
	if err := requireRole(actor, models.RoleAdmin, apperr.ErrNotAdmin); err != nil {
		return models.Shipment{}, err
	}
	if err := validation.ValidateUUID(shipmentID, "shipment_id"); err != nil {
		return models.Shipment{}, err
	}
	if err := validation.ValidateShipmentUpdate(req); err != nil {
		return models.Shipment{}, err
	}

	var sh models.Shipment
	err := s.db.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if sh, err = s.db.GetShipment(ctx, shipmentID); err != nil {
			return err
		}
		if sh.Status == models.ShipmentDelivered || sh.Status == models.ShipmentCancelled {
			return apperr.ErrShipmentFinished
		}

		from := sh.Status
		sh.Status = req.Status
		if req.CurrentLocation != "" {
			sh.CurrentLocation = req.CurrentLocation
		}
		sh.UpdatedAt = s.now()
		if err := s.db.UpdateShipment(ctx, sh); err != nil {
			return err
		}

		return s.audit(ctx, actor.ID, "UPDATE_SHIPMENT", "shipment", sh.ID, map[string]string{
			"from":     string(from),
			"status":   string(sh.Status),
			"location": sh.CurrentLocation,
		})
	})
	if err != nil {
		return models.Shipment{}, err
	}

	s.events.PublishShipmentUpdated(ctx, sh)
	s.logger.WithFields(logrus.Fields{
		"shipment_id": sh.ID,
		"status":      sh.Status,
	}).Info("shipment updated")

	return sh, nil
}
