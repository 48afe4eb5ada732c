package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newTestQuote(traderID string) models.Quote {
	class8 := models.HazardClass8
	return models.Quote{
		ID:                    uuid.New().String(),
		QuoteNumber:           "Q-20260504-" + uuid.New().String()[:6],
		TraderID:              traderID,
		CargoName:             "Caustic soda lye",
		IsHazardous:           true,
		HazardClass:           &class8,
		Quantity:              decimal.RequireFromString("24.5"),
		QuantityUnit:          "MT",
		PickupCity:            "Bharuch",
		PickupState:           "Gujarat",
		DeliveryCity:          "Nagpur",
		DeliveryState:         "Maharashtra",
		PackagingType:         "Bulk",
		PreferredVehicleTypes: []models.VehicleType{models.VehicleTanker},
		CargoReadyDate:        testNow.Add(24 * time.Hour),
		ExpiresAt:             testNow.Add(72 * time.Hour),
		Status:                models.QuoteMatching,
		CreatedAt:             testNow,
		SubmittedAt:           testNow,
	}
}

func newTestOffer(quoteID, partnerID string, price string) models.Offer {
	return models.Offer{
		ID:                  uuid.New().String(),
		QuoteID:             quoteID,
		PartnerID:           partnerID,
		Price:               decimal.RequireFromString(price),
		TransitDays:         2,
		OfferValidUntil:     testNow.Add(48 * time.Hour),
		PickupAvailableFrom: testNow.Add(24 * time.Hour),
		TrackingIncluded:    true,
		ValueAddedServices:  []string{"loading"},
		LeadType:            models.LeadShared,
		Status:              models.OfferPending,
		ExpiresAt:           testNow.Add(72 * time.Hour),
		CreatedAt:           testNow,
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	q := newTestQuote(uuid.New().String())
	if err := db.InsertQuote(ctx, q); err != nil {
		t.Fatalf("InsertQuote failed: %v", err)
	}

	got, err := db.GetQuote(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}

	if got.HazardClass == nil || *got.HazardClass != models.HazardClass8 {
		t.Errorf("Expected CLASS_8, got %v", got.HazardClass)
	}
	if !got.Quantity.Equal(q.Quantity) {
		t.Errorf("Expected quantity %s, got %s", q.Quantity, got.Quantity)
	}
	if !got.ExpiresAt.Equal(q.ExpiresAt) {
		t.Errorf("Expected expires_at %v, got %v", q.ExpiresAt, got.ExpiresAt)
	}
	if len(got.PreferredVehicleTypes) != 1 || got.PreferredVehicleTypes[0] != models.VehicleTanker {
		t.Errorf("Expected [TANKER], got %v", got.PreferredVehicleTypes)
	}

	if _, err := db.GetQuote(ctx, uuid.New().String()); !errors.Is(err, apperr.ErrQuoteNotFound) {
		t.Errorf("Expected ErrQuoteNotFound, got %v", err)
	}
}

func TestQuoteHazardConsistencyEnforced(t *testing.T) {
	db := setupTestDB(t)

	q := newTestQuote(uuid.New().String())
	q.HazardClass = nil

	if err := db.InsertQuote(context.Background(), q); err == nil {
		t.Error("Expected hazardous quote without class to be rejected by the schema")
	}
}

func TestTransitionQuote(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	q := newTestQuote(uuid.New().String())
	db.InsertQuote(ctx, q)

	ok, err := db.TransitionQuote(ctx, q.ID, models.QuoteSelected, models.QuoteMatching, models.QuoteOffersAvailable)
	if err != nil || !ok {
		t.Fatalf("Expected first transition to succeed, got %v %v", ok, err)
	}

	ok, err = db.TransitionQuote(ctx, q.ID, models.QuoteExpired, models.QuoteMatching, models.QuoteOffersAvailable)
	if err != nil {
		t.Fatalf("TransitionQuote failed: %v", err)
	}
	if ok {
		t.Error("Expected transition out of SELECTED to be refused")
	}
}

func TestOfferUniquenessPerPartner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	q := newTestQuote(uuid.New().String())
	db.InsertQuote(ctx, q)
	partner := uuid.New().String()

	first := newTestOffer(q.ID, partner, "18000")
	if err := db.InsertOffer(ctx, first); err != nil {
		t.Fatalf("InsertOffer failed: %v", err)
	}

	if err := db.InsertOffer(ctx, newTestOffer(q.ID, partner, "17500")); !errors.Is(err, apperr.ErrDuplicateOffer) {
		t.Fatalf("Expected ErrDuplicateOffer, got %v", err)
	}

	ok, err := db.WithdrawOffer(ctx, first.ID)
	if err != nil || !ok {
		t.Fatalf("Expected withdraw to succeed, got %v %v", ok, err)
	}

	if err := db.InsertOffer(ctx, newTestOffer(q.ID, partner, "17500")); err != nil {
		t.Errorf("Expected resubmission after withdrawal to succeed, got %v", err)
	}

	ok, _ = db.WithdrawOffer(ctx, first.ID)
	if ok {
		t.Error("Expected second withdraw to change nothing")
	}
}

func TestAcceptAndRejectOffers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	q := newTestQuote(uuid.New().String())
	db.InsertQuote(ctx, q)

	winner := newTestOffer(q.ID, uuid.New().String(), "15000")
	loser := newTestOffer(q.ID, uuid.New().String(), "16000.75")
	db.InsertOffer(ctx, winner)
	db.InsertOffer(ctx, loser)

	ok, err := db.AcceptOffer(ctx, winner.ID, testNow)
	if err != nil || !ok {
		t.Fatalf("Expected accept to succeed, got %v %v", ok, err)
	}

	rejected, err := db.RejectPendingOffers(ctx, q.ID, winner.ID)
	if err != nil {
		t.Fatalf("RejectPendingOffers failed: %v", err)
	}
	if len(rejected) != 1 || rejected[0] != loser.ID {
		t.Errorf("Expected [%s] rejected, got %v", loser.ID, rejected)
	}

	ok, _ = db.AcceptOffer(ctx, loser.ID, testNow)
	if ok {
		t.Error("Expected a rejected offer to be unacceptable")
	}

	n, _ := db.CountSelectedOffers(ctx, q.ID)
	if n != 1 {
		t.Errorf("Expected 1 selected offer, got %d", n)
	}

	offers, err := db.ListOffers(ctx, models.OfferFilter{QuoteID: q.ID})
	if err != nil {
		t.Fatalf("ListOffers failed: %v", err)
	}
	if len(offers) != 2 || offers[0].ID != winner.ID {
		t.Fatalf("Expected offers ordered by price, got %+v", offers)
	}
	if !offers[0].IsSelected || offers[0].SelectedAt == nil || offers[0].Status != models.OfferAccepted {
		t.Errorf("Expected winner to be selected and accepted, got %+v", offers[0])
	}
	if offers[1].Price.StringFixed(2) != "16000.75" {
		t.Errorf("Expected price 16000.75, got %s", offers[1].Price.StringFixed(2))
	}
}

func TestWalletConditionalDebit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	partner := uuid.New().String()

	if err := db.EnsureWallet(ctx, partner, decimal.NewFromInt(1000), testNow); err != nil {
		t.Fatalf("EnsureWallet failed: %v", err)
	}
	// Idempotent.
	if err := db.EnsureWallet(ctx, partner, decimal.NewFromInt(1000), testNow); err != nil {
		t.Fatalf("EnsureWallet failed on existing wallet: %v", err)
	}

	w, err := db.GetWallet(ctx, partner)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if !w.Balance.IsZero() || !w.LowBalanceAlert {
		t.Errorf("Expected new wallet with zero balance and alerts on, got %+v", w)
	}

	if err := db.CreditWallet(ctx, w.ID, decimal.RequireFromString("300.50"), testNow); err != nil {
		t.Fatalf("CreditWallet failed: %v", err)
	}

	ok, err := db.DebitWallet(ctx, w.ID, decimal.RequireFromString("300.51"), testNow)
	if err != nil || ok {
		t.Fatalf("Expected overdraft to be refused, got %v %v", ok, err)
	}

	ok, err = db.DebitWallet(ctx, w.ID, decimal.RequireFromString("300.50"), testNow)
	if err != nil || !ok {
		t.Fatalf("Expected exact debit to succeed, got %v %v", ok, err)
	}

	w, _ = db.GetWallet(ctx, partner)
	if !w.Balance.IsZero() {
		t.Errorf("Expected zero balance, got %s", w.Balance)
	}

	if _, err := db.GetWallet(ctx, uuid.New().String()); !errors.Is(err, apperr.ErrWalletNotFound) {
		t.Errorf("Expected ErrWalletNotFound, got %v", err)
	}
}

func TestTransactionsLedger(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	partner := uuid.New().String()

	db.EnsureWallet(ctx, partner, decimal.Zero, testNow)
	w, _ := db.GetWallet(ctx, partner)

	entries := []models.Transaction{
		{ID: uuid.New().String(), WalletID: w.ID, Type: models.TransactionRecharge,
			Amount: decimal.NewFromInt(5000), Description: "Wallet recharge via upi", CreatedAt: testNow},
		{ID: uuid.New().String(), WalletID: w.ID, Type: models.TransactionDebit,
			Amount: decimal.RequireFromString("-2437.50"), Description: "Lead cost", RelatedOfferID: uuid.New().String(),
			Pricing: &models.LeadPricing{HazardCategory: "CLASS_1", RouteDistance: "SAME_STATE",
				Quantity: decimal.NewFromInt(5), VehicleType: "TANKER"},
			CreatedAt: testNow.Add(time.Minute)},
	}
	for _, e := range entries {
		if err := db.InsertTransaction(ctx, e); err != nil {
			t.Fatalf("InsertTransaction failed: %v", err)
		}
	}

	sum, count, err := db.SumTransactions(ctx, w.ID)
	if err != nil {
		t.Fatalf("SumTransactions failed: %v", err)
	}
	if sum.StringFixed(2) != "2562.50" || count != 2 {
		t.Errorf("Expected 2562.50 over 2 entries, got %s over %d", sum.StringFixed(2), count)
	}

	list, err := db.ListTransactions(ctx, w.ID, 10)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(list) != 2 || list[0].Type != models.TransactionDebit {
		t.Fatalf("Expected newest entry first, got %+v", list)
	}
	if list[0].Pricing == nil || list[0].Pricing.VehicleType != "TANKER" {
		t.Errorf("Expected pricing inputs to be stored, got %+v", list[0].Pricing)
	}
	if list[1].Pricing != nil || list[1].RelatedOfferID != "" {
		t.Errorf("Expected recharge without pricing or offer, got %+v", list[1])
	}
}

func TestRunInTxRollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	partner := uuid.New().String()

	db.EnsureWallet(ctx, partner, decimal.Zero, testNow)
	w, _ := db.GetWallet(ctx, partner)

	boom := errors.New("boom")
	err := db.RunInTx(ctx, func(ctx context.Context) error {
		if err := db.CreditWallet(ctx, w.ID, decimal.NewFromInt(100), testNow); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	w, _ = db.GetWallet(ctx, partner)
	if !w.Balance.IsZero() {
		t.Errorf("Expected credit to be rolled back, balance is %s", w.Balance)
	}
}

func TestListDueQuotes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	due := newTestQuote(uuid.New().String())
	due.ExpiresAt = testNow.Add(time.Hour)
	open := newTestQuote(uuid.New().String())
	open.ExpiresAt = testNow.Add(5 * time.Hour)
	done := newTestQuote(uuid.New().String())
	done.ExpiresAt = testNow.Add(time.Hour)
	done.Status = models.QuoteSelected

	for _, q := range []models.Quote{due, open, done} {
		if err := db.InsertQuote(ctx, q); err != nil {
			t.Fatalf("InsertQuote failed: %v", err)
		}
	}

	ids, err := db.ListDueQuotes(ctx, testNow.Add(2*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListDueQuotes failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != due.ID {
		t.Errorf("Expected only %s to be due, got %v", due.ID, ids)
	}
}

func TestCapabilitiesAndMatches(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := models.PartnerCapability{
		PartnerID:             uuid.New().String(),
		CompanyName:           "Sahyadri Tankers",
		SubscriptionTier:      models.TierPremium,
		ServiceStates:         []string{"Gujarat", "Maharashtra"},
		HazardClasses:         []models.HazardClass{models.HazardClass8},
		FleetTypes:            []models.VehicleType{models.VehicleTanker},
		PackagingCapabilities: []string{"Bulk"},
		UpdatedAt:             testNow,
	}
	if err := db.UpsertCapability(ctx, c); err != nil {
		t.Fatalf("UpsertCapability failed: %v", err)
	}

	c.SubscriptionTier = models.TierStandard
	if err := db.UpsertCapability(ctx, c); err != nil {
		t.Fatalf("UpsertCapability update failed: %v", err)
	}

	got, err := db.GetCapability(ctx, c.PartnerID)
	if err != nil {
		t.Fatalf("GetCapability failed: %v", err)
	}
	if got.SubscriptionTier != models.TierStandard || len(got.ServiceStates) != 2 {
		t.Errorf("Unexpected capability: %+v", got)
	}

	q := newTestQuote(uuid.New().String())
	db.InsertQuote(ctx, q)
	if err := db.InsertMatches(ctx, q.ID, []string{c.PartnerID}, testNow); err != nil {
		t.Fatalf("InsertMatches failed: %v", err)
	}

	matched, _ := db.IsMatched(ctx, q.ID, c.PartnerID)
	if !matched {
		t.Error("Expected partner to be matched")
	}
	matched, _ = db.IsMatched(ctx, q.ID, uuid.New().String())
	if matched {
		t.Error("Expected unknown partner not to be matched")
	}
}
