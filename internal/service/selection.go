package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/features"
	"freight-bidding-api/internal/keylock"
	"freight-bidding-api/internal/ledger"
	"freight-bidding-api/internal/models"
	"freight-bidding-api/internal/pricing"
	"freight-bidding-api/internal/validation"
)

// SelectOffer is the trader's choice of a winning offer. In one transaction
// it prices the lead, debits the winner's wallet, accepts the offer, rejects
// the other pending offers, closes the quote and books the shipment. Any
// failure rolls every step back.
//
// Locks are taken quote first, then wallet, for every selection.
func (s *Service) SelectOffer(ctx context.Context, actor models.Actor, quoteID, offerID string) (res models.SelectionResult, err error) {
	ctx, span := s.startSpan(ctx, "SelectOffer",
		attribute.String("quote.id", quoteID),
		attribute.String("offer.id", offerID),
	)
	defer func() { endSpan(span, err) }()

	if err := requireRole(actor, models.RoleTrader, apperr.ErrNotTrader); err != nil {
		return models.SelectionResult{}, err
	}
	if err := validation.ValidateUUID(quoteID, "quote_id"); err != nil {
		return models.SelectionResult{}, err
	}
	if err := validation.ValidateUUID(offerID, "offer_id"); err != nil {
		return models.SelectionResult{}, err
	}

	// The partner id is needed to pick the wallet lock. It never changes
	// after creation, so reading it outside the lock is safe.
	pre, err := s.db.GetOffer(ctx, offerID)
	if err != nil {
		return models.SelectionResult{}, err
	}
	if pre.QuoteID != quoteID {
		return models.SelectionResult{}, apperr.ErrNotQuoteLead
	}

	cfg, err := s.pricing.Load(ctx)
	if err != nil {
		return models.SelectionResult{}, fmt.Errorf("failed to load pricing config: %w", err)
	}

	unlock, err := s.locks.Lock(ctx, keylock.QuoteKey(quoteID), keylock.WalletKey(pre.PartnerID))
	if err != nil {
		return models.SelectionResult{}, err
	}
	defer unlock()

	var (
		rejected []string
		wallet   models.Wallet
		expired  bool
	)
	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		q, err := s.db.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if q.TraderID != actor.ID {
			return apperr.ErrNotOwner
		}
		if expired, err = s.expireInTx(ctx, q, systemActor); err != nil || expired {
			return err
		}
		switch q.Status {
		case models.QuoteExpired:
			return apperr.ErrQuoteExpired
		case models.QuoteSelected:
			return apperr.ErrQuoteClosed
		}

		offer, err := s.db.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if offer.Status != models.OfferPending {
			return apperr.ErrOfferNotPending
		}

		partner, err := s.db.GetCapability(ctx, offer.PartnerID)
		if err != nil {
			return err
		}

		b, err := pricing.Calculate(cfg, pricing.LeadFromQuote(q), partner.SubscriptionTier)
		if err != nil {
			return err
		}
		inputs := b.Inputs(q.Quantity)

		wallet, _, err = s.ledger.Debit(ctx, ledger.DebitRequest{
			PartnerID:   offer.PartnerID,
			Amount:      b.Cost,
			OfferID:     offer.ID,
			Description: "Lead cost for quote " + q.QuoteNumber,
			Pricing:     &inputs,
		})
		if err != nil {
			return err
		}

		now := s.now()
		ok, err := s.db.AcceptOffer(ctx, offer.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrOfferNotPending
		}

		if s.features.IsEnabled(features.RejectLosingOffers) {
			if rejected, err = s.db.RejectPendingOffers(ctx, q.ID, offer.ID); err != nil {
				return err
			}
		}

		ok, err = s.db.TransitionQuote(ctx, q.ID, models.QuoteSelected, models.QuoteMatching, models.QuoteOffersAvailable)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrQuoteClosed
		}

		shipment := models.Shipment{
			ID:              uuid.New().String(),
			QuoteID:         q.ID,
			OfferID:         offer.ID,
			PartnerID:       offer.PartnerID,
			TraderID:        q.TraderID,
			Status:          models.ShipmentBooked,
			CurrentLocation: q.PickupCity + ", " + q.PickupState,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.db.InsertShipment(ctx, shipment); err != nil {
			return err
		}

		if err := s.audit(ctx, actor.ID, "SELECT_OFFER", "quote", q.ID, map[string]string{
			"offer_id":    offer.ID,
			"partner_id":  offer.PartnerID,
			"lead_cost":   b.Cost.StringFixed(2),
			"shipment_id": shipment.ID,
			"rejected":    fmt.Sprint(len(rejected)),
		}); err != nil {
			return err
		}

		if res.Quote, err = s.db.GetQuote(ctx, q.ID); err != nil {
			return err
		}
		if res.Offer, err = s.db.GetOffer(ctx, offer.ID); err != nil {
			return err
		}
		res.Shipment = shipment
		res.LeadCost = b.Cost
		return nil
	})
	if expired {
		s.events.PublishQuoteExpired(ctx, quoteID)
		return models.SelectionResult{}, apperr.ErrQuoteExpired
	}
	if err != nil {
		return models.SelectionResult{}, err
	}

	s.events.PublishOfferSelected(ctx, res)
	s.events.PublishOffersRejected(ctx, quoteID, rejected)
	if wallet.IsLow() && s.features.IsEnabled(features.LowBalanceAlerts) {
		s.events.PublishLowBalance(ctx, wallet)
	}

	s.logger.WithFields(logrus.Fields{
		"quote_id":   quoteID,
		"offer_id":   offerID,
		"partner_id": res.Offer.PartnerID,
		"lead_cost":  res.LeadCost.StringFixed(2),
		"rejected":   len(rejected),
	}).Info("offer selected")

	return res, nil
}
