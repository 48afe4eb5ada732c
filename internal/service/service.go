// Package service is the quote/offer lifecycle coordinator. It owns the
// quote and offer state machines and runs every multi-record change as one
// database transaction behind per-quote and per-wallet locks.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/database"
	"freight-bidding-api/internal/events"
	"freight-bidding-api/internal/features"
	"freight-bidding-api/internal/keylock"
	"freight-bidding-api/internal/ledger"
	"freight-bidding-api/internal/logging"
	"freight-bidding-api/internal/models"
	"freight-bidding-api/internal/pricing"
	"freight-bidding-api/internal/tracing"
	"freight-bidding-api/internal/validation"
)

// systemActor is recorded in the audit log for changes nobody requested,
// such as the expiry sweep.
const systemActor = "system"

const DefaultQuoteTTL = 72 * time.Hour

// Options configures the coordinator's collaborators. Zero values get
// working defaults so tests only set what they exercise.
type Options struct {
	Pricing        pricing.Source
	Events         *events.Manager
	Features       *features.Manager
	Logger         *logrus.Logger
	QuoteTTL       time.Duration
	AlertThreshold decimal.Decimal
	Now            func() time.Time
}

// Service provides business logic for the freight bidding API.
type Service struct {
	db       *database.DB
	ledger   *ledger.Ledger
	locks    *keylock.Map
	pricing  pricing.Source
	events   *events.Manager
	features *features.Manager
	logger   *logrus.Logger
	quoteTTL time.Duration
	now      func() time.Time
}

func NewService(db *database.DB, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Pricing == nil {
		opts.Pricing = pricing.StaticSource{Config: pricing.DefaultConfig()}
	}
	if opts.Events == nil {
		opts.Events = events.NewManager(false, opts.Logger)
	}
	if opts.Features == nil {
		opts.Features = features.NewDefaultManager(nil)
	}
	if opts.QuoteTTL <= 0 {
		opts.QuoteTTL = DefaultQuoteTTL
	}
	if opts.AlertThreshold.IsZero() {
		opts.AlertThreshold = ledger.DefaultAlertThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	now := func() time.Time { return opts.Now().UTC() }

	return &Service{
		db:       db,
		ledger:   ledger.New(db, opts.AlertThreshold).WithClock(now),
		locks:    keylock.New(),
		pricing:  opts.Pricing,
		events:   opts.Events,
		features: opts.Features,
		logger:   opts.Logger,
		quoteTTL: opts.QuoteTTL,
		now:      now,
	}
}

func requireRole(actor models.Actor, role models.Role, denied error) error {
	if err := validation.ValidateActor(actor); err != nil {
		return err
	}
	if actor.Role != role {
		return denied
	}
	return nil
}

func (s *Service) audit(ctx context.Context, actorID, action, entity, entityID string, changes map[string]string) error {
	return s.db.InsertAudit(ctx, models.AuditLog{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Changes:   changes,
		CreatedAt: s.now(),
	})
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracing.Tracer().Start(ctx, "service."+name, trace.WithAttributes(attrs...))
}

// endSpan records err on the span unless it is an expected business refusal.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !isClientError(err) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func isClientError(err error) bool {
	var ve *validation.ValidationError
	return errors.As(err, &ve) || apperr.IsKind(err)
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
