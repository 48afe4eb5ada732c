package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/models"
	"freight-bidding-api/internal/validation"
)

// RegisterPartner creates or replaces the caller's capability profile and
// opens a zero-balance wallet on first registration. Existing quotes are not
// re-matched; the profile applies to quotes submitted afterwards.
func (s *Service) RegisterPartner(ctx context.Context, actor models.Actor, c models.PartnerCapability) (models.PartnerCapability, error) {
	if err := requireRole(actor, models.RolePartner, apperr.ErrNotPartner); err != nil {
		return models.PartnerCapability{}, err
	}

	c.PartnerID = actor.ID
	c.UpdatedAt = s.now()
	if err := validation.ValidateCapability(c); err != nil {
		return models.PartnerCapability{}, err
	}

	err := s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.db.UpsertCapability(ctx, c); err != nil {
			return err
		}
		_, err := s.ledger.Open(ctx, actor.ID)
		return err
	})
	if err != nil {
		return models.PartnerCapability{}, err
	}

	s.events.PublishPartnerRegistered(ctx, c)
	s.logger.WithFields(logrus.Fields{
		"partner_id": c.PartnerID,
		"tier":       c.SubscriptionTier,
	}).Info("partner capabilities updated")

	return c, nil
}

func (s *Service) GetCapabilities(ctx context.Context, actor models.Actor) (models.PartnerCapability, error) {
	if err := requireRole(actor, models.RolePartner, apperr.ErrNotPartner); err != nil {
		return models.PartnerCapability{}, err
	}
	return s.db.GetCapability(ctx, actor.ID)
}
