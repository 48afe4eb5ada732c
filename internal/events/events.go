package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"freight-bidding-api/internal/models"
)

// Type is the name of a domain event. It doubles as the Kafka header value.
type Type string

const (
	QuoteMatched      Type = "quote.matched"
	QuoteExpired      Type = "quote.expired"
	OfferSubmitted    Type = "offer.submitted"
	OfferSelected     Type = "offer.selected"
	OfferRejected     Type = "offer.rejected"
	OfferWithdrawn    Type = "offer.withdrawn"
	WalletRecharged   Type = "wallet.recharged"
	WalletLowBalance  Type = "wallet.low_balance"
	ShipmentUpdated   Type = "shipment.updated"
	PartnerRegistered Type = "partner.registered"
)

// Event represents an event in the system. Key groups related events,
// usually the quote or partner id.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type QuoteMatchedData struct {
	QuoteID     string   `json:"quote_id"`
	QuoteNumber string   `json:"quote_number"`
	PartnerIDs  []string `json:"partner_ids"`
}

type OfferData struct {
	QuoteID   string          `json:"quote_id"`
	OfferID   string          `json:"offer_id"`
	PartnerID string          `json:"partner_id"`
	Price     decimal.Decimal `json:"price"`
}

type OfferSelectedData struct {
	QuoteID    string          `json:"quote_id"`
	OfferID    string          `json:"offer_id"`
	PartnerID  string          `json:"partner_id"`
	TraderID   string          `json:"trader_id"`
	ShipmentID string          `json:"shipment_id"`
	LeadCost   decimal.Decimal `json:"lead_cost"`
}

type OffersRejectedData struct {
	QuoteID  string   `json:"quote_id"`
	OfferIDs []string `json:"offer_ids"`
}

type WalletData struct {
	PartnerID string          `json:"partner_id"`
	WalletID  string          `json:"wallet_id"`
	Balance   decimal.Decimal `json:"balance"`
	Amount    decimal.Decimal `json:"amount"`
	Threshold decimal.Decimal `json:"threshold"`
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager fans events out to subscribed handlers. Handlers run in their own
// goroutines and never block the publisher; failures are logged.
type Manager struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	all      []Handler
	enabled  bool
	logger   *logrus.Logger
	inflight sync.WaitGroup
}

func NewManager(enabled bool, logger *logrus.Logger) *Manager {
	return &Manager{
		handlers: make(map[Type][]Handler),
		enabled:  enabled,
		logger:   logger,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType Type, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// SubscribeAll subscribes a handler to every event type.
func (m *Manager) SubscribeAll(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = append(m.all, handler)
}

// Publish delivers the event to its handlers. The request context is
// detached from cancellation so handlers outlive the HTTP response.
func (m *Manager) Publish(ctx context.Context, eventType Type, key string, data any) {
	m.mu.RLock()
	if !m.enabled {
		m.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(m.handlers[eventType])+len(m.all))
	handlers = append(handlers, m.handlers[eventType]...)
	handlers = append(handlers, m.all...)
	// Registered under the lock so Shutdown cannot miss them.
	m.inflight.Add(len(handlers))
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Key:       key,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	ctx = context.WithoutCancel(ctx)
	for _, handler := range handlers {
		go func(h Handler) {
			defer m.inflight.Done()
			if err := h(ctx, event); err != nil {
				m.logger.WithError(err).WithFields(logrus.Fields{
					"event_id":   event.ID,
					"event_type": event.Type,
					"key":        event.Key,
				}).Warn("event handler failed")
			}
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

func (m *Manager) PublishQuoteMatched(ctx context.Context, q models.Quote, partnerIDs []string) {
	m.Publish(ctx, QuoteMatched, q.ID, QuoteMatchedData{
		QuoteID:     q.ID,
		QuoteNumber: q.QuoteNumber,
		PartnerIDs:  partnerIDs,
	})
}

func (m *Manager) PublishQuoteExpired(ctx context.Context, quoteID string) {
	m.Publish(ctx, QuoteExpired, quoteID, map[string]string{"quote_id": quoteID})
}

func (m *Manager) PublishOffer(ctx context.Context, eventType Type, o models.Offer) {
	m.Publish(ctx, eventType, o.QuoteID, OfferData{
		QuoteID:   o.QuoteID,
		OfferID:   o.ID,
		PartnerID: o.PartnerID,
		Price:     o.Price,
	})
}

func (m *Manager) PublishOfferSelected(ctx context.Context, res models.SelectionResult) {
	m.Publish(ctx, OfferSelected, res.Quote.ID, OfferSelectedData{
		QuoteID:    res.Quote.ID,
		OfferID:    res.Offer.ID,
		PartnerID:  res.Offer.PartnerID,
		TraderID:   res.Quote.TraderID,
		ShipmentID: res.Shipment.ID,
		LeadCost:   res.LeadCost,
	})
}

func (m *Manager) PublishOffersRejected(ctx context.Context, quoteID string, offerIDs []string) {
	if len(offerIDs) == 0 {
		return
	}
	m.Publish(ctx, OfferRejected, quoteID, OffersRejectedData{QuoteID: quoteID, OfferIDs: offerIDs})
}

func (m *Manager) PublishWalletRecharged(ctx context.Context, w models.Wallet, amount decimal.Decimal) {
	m.Publish(ctx, WalletRecharged, w.PartnerID, WalletData{
		PartnerID: w.PartnerID,
		WalletID:  w.ID,
		Balance:   w.Balance,
		Amount:    amount,
	})
}

func (m *Manager) PublishLowBalance(ctx context.Context, w models.Wallet) {
	m.Publish(ctx, WalletLowBalance, w.PartnerID, WalletData{
		PartnerID: w.PartnerID,
		WalletID:  w.ID,
		Balance:   w.Balance,
		Threshold: w.AlertThreshold,
	})
}

func (m *Manager) PublishShipmentUpdated(ctx context.Context, s models.Shipment) {
	m.Publish(ctx, ShipmentUpdated, s.QuoteID, s)
}

func (m *Manager) PublishPartnerRegistered(ctx context.Context, c models.PartnerCapability) {
	m.Publish(ctx, PartnerRegistered, c.PartnerID, c)
}

// Shutdown stops accepting events and waits for in-flight handlers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[Type][]Handler)
	m.all = nil
	m.mu.Unlock()

	m.inflight.Wait()
}
