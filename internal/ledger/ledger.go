// Package ledger holds partner prepaid balances and their append-only
// transaction history. Every balance change writes a matching transaction
// in the same database transaction, so a wallet's balance always equals the
// sum of its entries.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/database"
	"freight-bidding-api/internal/models"
)

var ErrNonPositiveAmount = errors.New("ledger: amount must be positive")

// DefaultAlertThreshold is the low-balance threshold given to new wallets.
var DefaultAlertThreshold = decimal.NewFromInt(1000)

type Ledger struct {
	db        *database.DB
	threshold decimal.Decimal
	now       func() time.Time
}

func New(db *database.DB, alertThreshold decimal.Decimal) *Ledger {
	return &Ledger{db: db, threshold: alertThreshold, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Open creates the partner's wallet with a zero balance if it does not exist.
func (l *Ledger) Open(ctx context.Context, partnerID string) (models.Wallet, error) {
	if err := l.db.EnsureWallet(ctx, partnerID, l.threshold, l.now()); err != nil {
		return models.Wallet{}, err
	}
	return l.db.GetWallet(ctx, partnerID)
}

func (l *Ledger) Get(ctx context.Context, partnerID string) (models.Wallet, error) {
	return l.db.GetWallet(ctx, partnerID)
}

// HasFunds reports whether the partner's balance is strictly positive. A
// partner without a wallet has no funds.
func (l *Ledger) HasFunds(ctx context.Context, partnerID string) (bool, error) {
	w, err := l.db.GetWallet(ctx, partnerID)
	if errors.Is(err, apperr.ErrWalletNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return w.Balance.IsPositive(), nil
}

// Credit adds amount to the partner's wallet, creating the wallet first if
// needed, and records a transaction of the given type.
func (l *Ledger) Credit(ctx context.Context, partnerID string, amount decimal.Decimal, typ models.TransactionType, description string) (models.Wallet, models.Transaction, error) {
	if !amount.IsPositive() {
		return models.Wallet{}, models.Transaction{}, ErrNonPositiveAmount
	}

	var (
		wallet models.Wallet
		entry  models.Transaction
	)
	err := l.db.RunInTx(ctx, func(ctx context.Context) error {
		w, err := l.Open(ctx, partnerID)
		if err != nil {
			return err
		}

		now := l.now()
		if err := l.db.CreditWallet(ctx, w.ID, amount, now); err != nil {
			return err
		}

		entry = models.Transaction{
			ID:          uuid.New().String(),
			WalletID:    w.ID,
			Type:        typ,
			Amount:      amount,
			Description: description,
			CreatedAt:   now,
		}
		if err := l.db.InsertTransaction(ctx, entry); err != nil {
			return err
		}

		wallet, err = l.db.GetWallet(ctx, partnerID)
		return err
	})
	if err != nil {
		return models.Wallet{}, models.Transaction{}, err
	}
	return wallet, entry, nil
}

// DebitRequest describes a lead-cost charge.
type DebitRequest struct {
	PartnerID   string
	Amount      decimal.Decimal
	OfferID     string
	Description string
	Pricing     *models.LeadPricing
}

// Debit charges the partner's wallet. The balance is decremented only if it
// covers the amount; otherwise apperr.ErrLeadCostDue is returned and nothing
// is written.
func (l *Ledger) Debit(ctx context.Context, req DebitRequest) (models.Wallet, models.Transaction, error) {
	if !req.Amount.IsPositive() {
		return models.Wallet{}, models.Transaction{}, ErrNonPositiveAmount
	}

	var (
		wallet models.Wallet
		entry  models.Transaction
	)
	err := l.db.RunInTx(ctx, func(ctx context.Context) error {
		w, err := l.db.GetWallet(ctx, req.PartnerID)
		if errors.Is(err, apperr.ErrWalletNotFound) {
			return apperr.ErrLeadCostDue
		}
		if err != nil {
			return err
		}

		now := l.now()
		ok, err := l.db.DebitWallet(ctx, w.ID, req.Amount, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrLeadCostDue
		}

		entry = models.Transaction{
			ID:             uuid.New().String(),
			WalletID:       w.ID,
			Type:           models.TransactionDebit,
			Amount:         req.Amount.Neg(),
			Description:    req.Description,
			RelatedOfferID: req.OfferID,
			Pricing:        req.Pricing,
			CreatedAt:      now,
		}
		if err := l.db.InsertTransaction(ctx, entry); err != nil {
			return err
		}

		wallet, err = l.db.GetWallet(ctx, req.PartnerID)
		return err
	})
	if err != nil {
		return models.Wallet{}, models.Transaction{}, err
	}
	return wallet, entry, nil
}

// Transactions returns the newest entries first; limit <= 0 returns all.
func (l *Ledger) Transactions(ctx context.Context, partnerID string, limit int) ([]models.Transaction, error) {
	w, err := l.db.GetWallet(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	return l.db.ListTransactions(ctx, w.ID, limit)
}

func (l *Ledger) UpdateSettings(ctx context.Context, partnerID string, alert bool, threshold decimal.Decimal) (models.Wallet, error) {
	var wallet models.Wallet
	err := l.db.RunInTx(ctx, func(ctx context.Context) error {
		w, err := l.Open(ctx, partnerID)
		if err != nil {
			return err
		}
		if err := l.db.UpdateWalletSettings(ctx, w.ID, alert, threshold, l.now()); err != nil {
			return err
		}
		wallet, err = l.db.GetWallet(ctx, partnerID)
		return err
	})
	return wallet, err
}

// Reconcile compares the stored balance with the sum of the wallet's
// transactions. Both are read in one transaction.
func (l *Ledger) Reconcile(ctx context.Context, partnerID string) (models.Reconciliation, error) {
	var rec models.Reconciliation
	err := l.db.RunInTx(ctx, func(ctx context.Context) error {
		w, err := l.db.GetWallet(ctx, partnerID)
		if err != nil {
			return err
		}

		sum, count, err := l.db.SumTransactions(ctx, w.ID)
		if err != nil {
			return fmt.Errorf("reconcile wallet %s: %w", w.ID, err)
		}

		rec = models.Reconciliation{
			WalletID:         w.ID,
			Balance:          w.Balance,
			TransactionSum:   sum,
			TransactionCount: count,
			Balanced:         w.Balance.Equal(sum),
		}
		return nil
	})
	return rec, err
}
