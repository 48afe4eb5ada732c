package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/models"
)

const walletColumns = `id, partner_id, balance_paise, low_balance_alert, alert_threshold_paise,
	created_at, updated_at`

// EnsureWallet creates a zero-balance wallet for the partner if none exists.
func (db *DB) EnsureWallet(ctx context.Context, partnerID string, threshold decimal.Decimal, at time.Time) error {
	_, err := db.q(ctx).ExecContext(ctx, `INSERT INTO wallets (
		id, partner_id, balance_paise, low_balance_alert, alert_threshold_paise, created_at, updated_at
	) VALUES (?, ?, 0, 1, ?, ?, ?)
	ON CONFLICT(partner_id) DO NOTHING`,
		uuid.New().String(), partnerID, toPaise(threshold), formatTime(at), formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetWallet returns apperr.ErrWalletNotFound when the partner has no wallet.
func (db *DB) GetWallet(ctx context.Context, partnerID string) (models.Wallet, error) {
	row := db.q(ctx).QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE partner_id = ?`, partnerID)

	var (
		w                    models.Wallet
		balance, threshold   int64
		alert                int
		createdAt, updatedAt string
	)
	err := row.Scan(&w.ID, &w.PartnerID, &balance, &alert, &threshold, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{}, apperr.ErrWalletNotFound
	}
	if err != nil {
		return models.Wallet{}, fmt.Errorf("failed to get wallet: %w", err)
	}

	w.Balance = fromPaise(balance)
	w.AlertThreshold = fromPaise(threshold)
	w.LowBalanceAlert = alert == 1
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Wallet{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Wallet{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return w, nil
}

// CreditWallet atomically adds amount to the balance.
func (db *DB) CreditWallet(ctx context.Context, walletID string, amount decimal.Decimal, at time.Time) error {
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE wallets SET balance_paise = balance_paise + ?, updated_at = ? WHERE id = ?`,
		toPaise(amount), formatTime(at), walletID,
	)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrWalletNotFound
	}
	return nil
}

// DebitWallet atomically subtracts amount if the balance covers it. It
// reports false, leaving the balance untouched, when it does not.
func (db *DB) DebitWallet(ctx context.Context, walletID string, amount decimal.Decimal, at time.Time) (bool, error) {
	paise := toPaise(amount)
	res, err := db.q(ctx).ExecContext(ctx, `UPDATE wallets
		SET balance_paise = balance_paise - ?, updated_at = ?
		WHERE id = ? AND balance_paise >= ?`,
		paise, formatTime(at), walletID, paise,
	)
	if isCheckViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to debit wallet: %w", err)
	}
	return affectedOne(res)
}

func (db *DB) UpdateWalletSettings(ctx context.Context, walletID string, alert bool, threshold decimal.Decimal, at time.Time) error {
	res, err := db.q(ctx).ExecContext(ctx, `UPDATE wallets
		SET low_balance_alert = ?, alert_threshold_paise = ?, updated_at = ?
		WHERE id = ?`,
		boolToInt(alert), toPaise(threshold), formatTime(at), walletID,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet settings: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrWalletNotFound
	}
	return nil
}

// InsertTransaction appends a ledger entry. Entries are never updated.
func (db *DB) InsertTransaction(ctx context.Context, t models.Transaction) error {
	var related, pricing sql.NullString
	if t.RelatedOfferID != "" {
		related = sql.NullString{String: t.RelatedOfferID, Valid: true}
	}
	if t.Pricing != nil {
		data, err := json.Marshal(t.Pricing)
		if err != nil {
			return fmt.Errorf("failed to encode pricing inputs: %w", err)
		}
		pricing = sql.NullString{String: string(data), Valid: true}
	}

	_, err := db.q(ctx).ExecContext(ctx, `INSERT INTO wallet_transactions (
		id, wallet_id, type, amount_paise, description, related_offer_id, pricing, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.WalletID, string(t.Type), toPaise(t.Amount), t.Description, related, pricing,
		formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert wallet transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the newest entries first. limit <= 0 returns all.
func (db *DB) ListTransactions(ctx context.Context, walletID string, limit int) ([]models.Transaction, error) {
	query := `SELECT id, wallet_id, type, amount_paise, description, related_offer_id, pricing, created_at
		FROM wallet_transactions WHERE wallet_id = ? ORDER BY created_at DESC, rowid DESC`
	args := []any{walletID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet transactions: %w", err)
	}
	defer rows.Close()

	list := []models.Transaction{}
	for rows.Next() {
		var (
			t                models.Transaction
			typ, createdAt   string
			amount           int64
			related, pricing sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.WalletID, &typ, &amount, &t.Description, &related, &pricing, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}

		t.Type = models.TransactionType(typ)
		t.Amount = fromPaise(amount)
		t.RelatedOfferID = related.String
		if pricing.Valid {
			var lp models.LeadPricing
			if err := json.Unmarshal([]byte(pricing.String), &lp); err != nil {
				return nil, fmt.Errorf("failed to decode pricing inputs: %w", err)
			}
			t.Pricing = &lp
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet transactions: %w", err)
	}
	return list, nil
}

// SumTransactions returns the signed total and the number of ledger entries.
func (db *DB) SumTransactions(ctx context.Context, walletID string) (decimal.Decimal, int, error) {
	var (
		sum   int64
		count int
	)
	err := db.q(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_paise), 0), COUNT(*) FROM wallet_transactions WHERE wallet_id = ?`,
		walletID,
	).Scan(&sum, &count)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to sum wallet transactions: %w", err)
	}
	return fromPaise(sum), count, nil
}
