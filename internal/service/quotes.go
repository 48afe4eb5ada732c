package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/matcher"
	"freight-bidding-api/internal/models"
	"freight-bidding-api/internal/pricing"
	"freight-bidding-api/internal/validation"
)

// SubmitQuote posts a trader's freight request, records which partners are
// eligible for it and moves it to MATCHING.
func (s *Service) SubmitQuote(ctx context.Context, actor models.Actor, req models.SubmitQuoteRequest) (resp models.SubmitQuoteResponse, err error) {
	ctx, span := s.startSpan(ctx, "SubmitQuote")
	defer func() { endSpan(span, err) }()

	if err := requireRole(actor, models.RoleTrader, apperr.ErrNotTrader); err != nil {
		return models.SubmitQuoteResponse{}, err
	}

	now := s.now()
	if err := validation.ValidateQuoteRequest(req, now); err != nil {
		return models.SubmitQuoteResponse{}, err
	}

	expiresAt := req.ExpiresAt.UTC()
	if req.ExpiresAt.IsZero() {
		expiresAt = now.Add(s.quoteTTL)
	}

	q := models.Quote{
		ID:                    uuid.New().String(),
		QuoteNumber:           quoteNumber(now),
		TraderID:              actor.ID,
		CargoName:             req.CargoName,
		IsHazardous:           req.IsHazardous,
		HazardClass:           req.HazardClass,
		Quantity:              req.Quantity,
		QuantityUnit:          req.QuantityUnit,
		PickupCity:            req.PickupCity,
		PickupState:           req.PickupState,
		DeliveryCity:          req.DeliveryCity,
		DeliveryState:         req.DeliveryState,
		PackagingType:         req.PackagingType,
		PreferredVehicleTypes: req.PreferredVehicleTypes,
		CargoReadyDate:        req.CargoReadyDate.UTC(),
		IsUrgent:              req.IsUrgent,
		ExpiresAt:             expiresAt,
		Status:                models.QuoteSubmitted,
		CreatedAt:             now,
		SubmittedAt:           now,
	}
	span.SetAttributes(attribute.String("quote.id", q.ID))

	partners, err := s.db.ListCapabilities(ctx)
	if err != nil {
		return models.SubmitQuoteResponse{}, err
	}
	matched := matcher.Match(q, partners)

	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.db.InsertQuote(ctx, q); err != nil {
			return err
		}
		if err := s.db.InsertMatches(ctx, q.ID, matched, now); err != nil {
			return err
		}
		if _, err := s.db.TransitionQuote(ctx, q.ID, models.QuoteMatching, models.QuoteSubmitted); err != nil {
			return err
		}
		return s.audit(ctx, actor.ID, "CREATE_QUOTE", "quote", q.ID, map[string]string{
			"quote_number":     q.QuoteNumber,
			"status":           string(models.QuoteMatching),
			"matched_partners": fmt.Sprint(len(matched)),
		})
	})
	if err != nil {
		return models.SubmitQuoteResponse{}, err
	}
	q.Status = models.QuoteMatching

	s.events.PublishQuoteMatched(ctx, q, matched)
	s.logger.WithFields(logrus.Fields{
		"quote_id":         q.ID,
		"quote_number":     q.QuoteNumber,
		"matched_partners": len(matched),
	}).Info("quote submitted")

	return models.SubmitQuoteResponse{Quote: q, MatchedPartners: len(matched)}, nil
}

// quoteNumber is human-facing: Q-<date>-<6 random hex chars>.
func quoteNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return "Q-" + now.Format("20060102") + "-" + suffix
}

// GetQuoteWithOffers returns a quote with the offers the caller may see: the
// owning trader and admins see every offer ordered by price, a matched
// partner sees only its own. An overdue quote is expired on access.
func (s *Service) GetQuoteWithOffers(ctx context.Context, actor models.Actor, quoteID string) (models.QuoteWithOffers, error) {
	if err := validation.ValidateActor(actor); err != nil {
		return models.QuoteWithOffers{}, err
	}
	if err := validation.ValidateUUID(quoteID, "quote_id"); err != nil {
		return models.QuoteWithOffers{}, err
	}

	q, err := s.db.GetQuote(ctx, quoteID)
	if err != nil {
		return models.QuoteWithOffers{}, err
	}

	filter := models.OfferFilter{QuoteID: q.ID}
	switch actor.Role {
	case models.RoleTrader:
		if q.TraderID != actor.ID {
			return models.QuoteWithOffers{}, apperr.ErrNotOwner
		}
	case models.RolePartner:
		ok, err := s.db.IsMatched(ctx, q.ID, actor.ID)
		if err != nil {
			return models.QuoteWithOffers{}, err
		}
		if !ok {
			return models.QuoteWithOffers{}, apperr.ErrNotEligible
		}
		filter.PartnerID = actor.ID
	}

	if !q.Status.IsTerminal() && q.IsExpiredAt(s.now()) {
		if _, err := s.ExpireQuote(ctx, q.ID); err != nil {
			return models.QuoteWithOffers{}, err
		}
		if q, err = s.db.GetQuote(ctx, quoteID); err != nil {
			return models.QuoteWithOffers{}, err
		}
	}

	offers, err := s.db.ListOffers(ctx, filter)
	if err != nil {
		return models.QuoteWithOffers{}, err
	}

	result := models.QuoteWithOffers{Quote: q, Offers: offers}
	if q.Status == models.QuoteSelected {
		shipment, err := s.db.GetShipmentByQuote(ctx, q.ID)
		switch {
		case err == nil:
			if actor.Role != models.RolePartner || shipment.PartnerID == actor.ID {
				result.Shipment = &shipment
			}
		case !errors.Is(err, apperr.ErrShipmentNotFound):
			return models.QuoteWithOffers{}, err
		}
	}
	return result, nil
}

// EstimateLeadCost previews what the caller would be charged if selected on
// the quote. Callers without a partner profile are priced at STANDARD.
func (s *Service) EstimateLeadCost(ctx context.Context, actor models.Actor, quoteID string) (models.LeadCostEstimate, error) {
	if err := validation.ValidateActor(actor); err != nil {
		return models.LeadCostEstimate{}, err
	}
	if err := validation.ValidateUUID(quoteID, "quote_id"); err != nil {
		return models.LeadCostEstimate{}, err
	}

	q, err := s.db.GetQuote(ctx, quoteID)
	if err != nil {
		return models.LeadCostEstimate{}, err
	}

	tier := models.TierStandard
	if actor.Role == models.RolePartner {
		c, err := s.db.GetCapability(ctx, actor.ID)
		if err != nil {
			return models.LeadCostEstimate{}, err
		}
		tier = c.SubscriptionTier
	}

	cfg, err := s.pricing.Load(ctx)
	if err != nil {
		return models.LeadCostEstimate{}, fmt.Errorf("failed to load pricing config: %w", err)
	}

	b, err := pricing.Calculate(cfg, pricing.LeadFromQuote(q), tier)
	if err != nil {
		return models.LeadCostEstimate{}, err
	}

	return models.LeadCostEstimate{
		QuoteID:          q.ID,
		SubscriptionTier: tier,
		LeadType:         leadType(cfg, tier),
		LeadCost:         b.Cost,
		Pricing:          b.Inputs(q.Quantity),
	}, nil
}

func leadType(cfg pricing.Config, tier models.SubscriptionTier) models.LeadType {
	if cfg.Tiers[tier].Exclusive {
		return models.LeadExclusive
	}
	return models.LeadShared
}
