// Package worker runs background maintenance for the bidding lifecycle.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Expirer closes quotes whose bidding window has passed.
type Expirer interface {
	DueQuotes(ctx context.Context, limit int) ([]string, error)
	ExpireQuote(ctx context.Context, quoteID string) (bool, error)
}

// ExpirySweeper periodically moves overdue open quotes to EXPIRED so they
// close even if nobody reads them again. Each quote is expired under its own
// lock, so the sweep never races a selection or an offer submission.
type ExpirySweeper struct {
	expirer     Expirer
	logger      *logrus.Logger
	interval    time.Duration
	batchSize   int
	workerCount int
}

func NewExpirySweeper(expirer Expirer, logger *logrus.Logger, interval time.Duration, batchSize, workerCount int) *ExpirySweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	return &ExpirySweeper{
		expirer:     expirer,
		logger:      logger,
		interval:    interval,
		batchSize:   batchSize,
		workerCount: workerCount,
	}
}

// Start runs the sweep loop until ctx is cancelled. Blocking call.
func (s *ExpirySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithField("interval", s.interval.String()).Info("expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce expires one batch of due quotes with a bounded worker pool and
// returns how many were closed.
func (s *ExpirySweeper) RunOnce(ctx context.Context) int {
	ids, err := s.expirer.DueQuotes(ctx, s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("failed to list due quotes")
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	jobs := make(chan string, len(ids))
	for _, id := range ids {
		jobs <- id
	}
	close(jobs)

	var (
		wg      sync.WaitGroup
		expired atomic.Int64
	)
	for w := 0; w < s.workerCount; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for id := range jobs {
				if ctx.Err() != nil {
					return
				}
				ok, err := s.expirer.ExpireQuote(ctx, id)
				if err != nil {
					s.logger.WithError(err).WithFields(logrus.Fields{
						"quote_id": id,
						"worker":   worker,
					}).Warn("failed to expire quote")
					continue
				}
				if ok {
					expired.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	n := int(expired.Load())
	s.logger.WithFields(logrus.Fields{"due": len(ids), "expired": n}).Info("expiry sweep completed")
	return n
}
