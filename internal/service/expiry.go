package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"freight-bidding-api/internal/keylock"
	"freight-bidding-api/internal/models"
)

var openStatuses = []models.QuoteStatus{
	models.QuoteSubmitted,
	models.QuoteMatching,
	models.QuoteOffersAvailable,
}

// expireInTx moves an overdue quote to EXPIRED. It must run inside a
// transaction while the caller holds the quote's lock. It reports whether
// this call made the transition.
func (s *Service) expireInTx(ctx context.Context, q models.Quote, actorID string) (bool, error) {
	if q.Status.IsTerminal() || !q.IsExpiredAt(s.now()) {
		return false, nil
	}

	ok, err := s.db.TransitionQuote(ctx, q.ID, models.QuoteExpired, openStatuses...)
	if err != nil || !ok {
		return false, err
	}

	err = s.audit(ctx, actorID, "EXPIRE_QUOTE", "quote", q.ID, map[string]string{
		"from":       string(q.Status),
		"status":     string(models.QuoteExpired),
		"expires_at": q.ExpiresAt.Format(time.RFC3339),
	})
	return err == nil, err
}

// ExpireQuote closes one overdue quote. It is a no-op returning false when
// the quote is already terminal or still inside its bidding window.
func (s *Service) ExpireQuote(ctx context.Context, quoteID string) (expired bool, err error) {
	unlock, err := s.locks.Lock(ctx, keylock.QuoteKey(quoteID))
	if err != nil {
		return false, err
	}
	defer unlock()

	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		q, err := s.db.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		expired, err = s.expireInTx(ctx, q, systemActor)
		return err
	})
	if err != nil {
		return false, err
	}

	if expired {
		s.events.PublishQuoteExpired(ctx, quoteID)
		s.logger.WithField("quote_id", quoteID).Info("quote expired")
	}
	return expired, nil
}

// DueQuotes lists open quotes past their deadline, oldest first.
func (s *Service) DueQuotes(ctx context.Context, limit int) ([]string, error) {
	return s.db.ListDueQuotes(ctx, s.now(), limit)
}

// ExpireDueQuotes runs one sequential sweep pass and returns how many
// quotes it closed. The background worker does the same with a pool.
func (s *Service) ExpireDueQuotes(ctx context.Context, limit int) (n int, err error) {
	ctx, span := s.startSpan(ctx, "ExpireDueQuotes")
	defer func() { endSpan(span, err) }()

	ids, err := s.DueQuotes(ctx, limit)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		ok, err := s.ExpireQuote(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("quote_id", id).Warn("failed to expire quote")
			continue
		}
		if ok {
			n++
		}
	}

	if n > 0 {
		s.logger.WithFields(logrus.Fields{"expired": n, "due": len(ids)}).Info("expiry sweep completed")
	}
	return n, nil
}
