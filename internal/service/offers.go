package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/events"
	"freight-bidding-api/internal/features"
	"freight-bidding-api/internal/keylock"
	"freight-bidding-api/internal/models"
	"freight-bidding-api/internal/validation"
)

// SubmitOffer places a partner's bid on a quote. Checks run in this order
// under the quote lock: quote open and not overdue, partner matched, no
// active offer from the partner, daily lead limit, wallet balance above zero.
// An overdue quote is expired as a side effect and the bid refused.
func (s *Service) SubmitOffer(ctx context.Context, actor models.Actor, req models.SubmitOfferRequest) (offer models.Offer, err error) {
	ctx, span := s.startSpan(ctx, "SubmitOffer",
		attribute.String("quote.id", req.QuoteID),
		attribute.String("partner.id", actor.ID),
	)
	defer func() { endSpan(span, err) }()

	if err := requireRole(actor, models.RolePartner, apperr.ErrNotPartner); err != nil {
		return models.Offer{}, err
	}
	if err := validation.ValidateOfferRequest(req); err != nil {
		return models.Offer{}, err
	}

	cfg, err := s.pricing.Load(ctx)
	if err != nil {
		return models.Offer{}, fmt.Errorf("failed to load pricing config: %w", err)
	}

	unlock, err := s.locks.Lock(ctx, keylock.QuoteKey(req.QuoteID))
	if err != nil {
		return models.Offer{}, err
	}
	defer unlock()

	var (
		firstOffer bool
		expired    bool
	)
	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		q, err := s.db.GetQuote(ctx, req.QuoteID)
		if err != nil {
			return err
		}

		// Commit the expiry even though the bid is refused.
		if expired, err = s.expireInTx(ctx, q, systemActor); err != nil || expired {
			return err
		}
		if q.Status == models.QuoteExpired {
			return apperr.ErrQuoteExpired
		}
		if !q.Status.AcceptsOffers() {
			return apperr.ErrQuoteClosed
		}

		matched, err := s.db.IsMatched(ctx, q.ID, actor.ID)
		if err != nil {
			return err
		}
		if !matched {
			return apperr.ErrNotEligible
		}

		active, err := s.db.HasActiveOffer(ctx, q.ID, actor.ID)
		if err != nil {
			return err
		}
		if active {
			return apperr.ErrDuplicateOffer
		}

		partner, err := s.db.GetCapability(ctx, actor.ID)
		if err != nil {
			return err
		}

		now := s.now()
		if limit := cfg.Tiers[partner.SubscriptionTier].MaxLeadsPerDay; limit > 0 && s.features.IsEnabled(features.DailyLeadLimit) {
			dayStart := now.Truncate(24 * time.Hour)
			count, err := s.db.CountPartnerOffersSince(ctx, actor.ID, dayStart)
			if err != nil {
				return err
			}
			if count >= limit {
				return apperr.ErrDailyLeadLimit
			}
		}

		funded, err := s.ledger.HasFunds(ctx, actor.ID)
		if err != nil {
			return err
		}
		if !funded {
			return apperr.ErrNoBalance
		}

		tracking := true
		if req.TrackingIncluded != nil {
			tracking = *req.TrackingIncluded
		}

		offer = models.Offer{
			ID:                  uuid.New().String(),
			QuoteID:             q.ID,
			PartnerID:           actor.ID,
			Price:               req.Price,
			TransitDays:         req.TransitDays,
			OfferValidUntil:     req.OfferValidUntil.UTC(),
			PickupAvailableFrom: req.PickupAvailableFrom.UTC(),
			InsuranceIncluded:   req.InsuranceIncluded,
			TrackingIncluded:    tracking,
			CustomsClearance:    req.CustomsClearance,
			ValueAddedServices:  req.ValueAddedServices,
			TermsAndConditions:  req.TermsAndConditions,
			Remarks:             req.Remarks,
			LeadType:            leadType(cfg, partner.SubscriptionTier),
			Status:              models.OfferPending,
			ExpiresAt:           q.ExpiresAt,
			CreatedAt:           now,
		}
		if offer.ValueAddedServices == nil {
			offer.ValueAddedServices = []string{}
		}

		if err := s.db.InsertOffer(ctx, offer); err != nil {
			return err
		}

		firstOffer, err = s.db.TransitionQuote(ctx, q.ID, models.QuoteOffersAvailable, models.QuoteMatching)
		if err != nil {
			return err
		}

		return s.audit(ctx, actor.ID, "CREATE_OFFER", "offer", offer.ID, map[string]string{
			"quote_id":  q.ID,
			"price":     offer.Price.StringFixed(2),
			"lead_type": string(offer.LeadType),
		})
	})
	if expired {
		s.events.PublishQuoteExpired(ctx, req.QuoteID)
		return models.Offer{}, apperr.ErrQuoteExpired
	}
	if err != nil {
		return models.Offer{}, err
	}

	s.events.PublishOffer(ctx, events.OfferSubmitted, offer)
	s.logger.WithFields(logrus.Fields{
		"quote_id":    offer.QuoteID,
		"offer_id":    offer.ID,
		"partner_id":  offer.PartnerID,
		"first_offer": firstOffer,
	}).Info("offer submitted")

	return offer, nil
}

// ListOffers lists offers ordered by price. Partners only ever see their own;
// traders must name a quote they own.
func (s *Service) ListOffers(ctx context.Context, actor models.Actor, filter models.OfferFilter) ([]models.Offer, error) {
	if err := validation.ValidateActor(actor); err != nil {
		return nil, err
	}

	switch filter.Status {
	case "", models.OfferPending, models.OfferAccepted, models.OfferRejected, models.OfferWithdrawn:
	default:
		return nil, &validation.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status: %s", filter.Status)}
	}
	if filter.QuoteID != "" {
		if err := validation.ValidateUUID(filter.QuoteID, "quote_id"); err != nil {
			return nil, err
		}
	}

	switch actor.Role {
	case models.RolePartner:
		filter.PartnerID = actor.ID
	case models.RoleTrader:
		if filter.QuoteID == "" {
			return nil, &validation.ValidationError{Field: "quote_id", Message: "is required"}
		}
		q, err := s.db.GetQuote(ctx, filter.QuoteID)
		if err != nil {
			return nil, err
		}
		if q.TraderID != actor.ID {
			return nil, apperr.ErrNotOwner
		}
	}

	return s.db.ListOffers(ctx, filter)
}

// WithdrawOffer retracts a pending offer before selection, freeing the
// partner to bid again. Withdrawing twice is a conflict, never a silent no-op.
func (s *Service) WithdrawOffer(ctx context.Context, actor models.Actor, offerID string) (offer models.Offer, err error) {
	ctx, span := s.startSpan(ctx, "WithdrawOffer", attribute.String("offer.id", offerID))
	defer func() { endSpan(span, err) }()

	if err := requireRole(actor, models.RolePartner, apperr.ErrNotPartner); err != nil {
		return models.Offer{}, err
	}
	if err := validation.ValidateUUID(offerID, "offer_id"); err != nil {
		return models.Offer{}, err
	}

	offer, err = s.db.GetOffer(ctx, offerID)
	if err != nil {
		return models.Offer{}, err
	}
	if offer.PartnerID != actor.ID {
		return models.Offer{}, apperr.ErrNotOwner
	}

	unlock, err := s.locks.Lock(ctx, keylock.QuoteKey(offer.QuoteID))
	if err != nil {
		return models.Offer{}, err
	}
	defer unlock()

	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		q, err := s.db.GetQuote(ctx, offer.QuoteID)
		if err != nil {
			return err
		}
		if q.Status.IsTerminal() {
			return apperr.ErrQuoteClosed
		}

		ok, err := s.db.WithdrawOffer(ctx, offer.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrOfferNotPending
		}

		if err := s.audit(ctx, actor.ID, "WITHDRAW_OFFER", "offer", offer.ID, map[string]string{
			"quote_id": offer.QuoteID,
			"from":     string(models.OfferPending),
			"status":   string(models.OfferWithdrawn),
		}); err != nil {
			return err
		}

		offer, err = s.db.GetOffer(ctx, offer.ID)
		return err
	})
	if err != nil {
		return models.Offer{}, err
	}

	s.events.PublishOffer(ctx, events.OfferWithdrawn, offer)
	s.logger.WithFields(logrus.Fields{
		"quote_id":   offer.QuoteID,
		"offer_id":   offer.ID,
		"partner_id": offer.PartnerID,
	}).Info("offer withdrawn")

	return offer, nil
}
