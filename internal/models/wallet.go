package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of a wallet ledger entry.
type TransactionType string

const (
	TransactionRecharge   TransactionType = "RECHARGE"
	TransactionDebit      TransactionType = "DEBIT"
	TransactionAdjustment TransactionType = "ADJUSTMENT"
)

// Wallet is a logistics partner's prepaid lead balance.
type Wallet struct {
	ID              string          `json:"id"`
	PartnerID       string          `json:"partner_id"`
	Balance         decimal.Decimal `json:"balance"`
	LowBalanceAlert bool            `json:"low_balance_alert"`
	AlertThreshold  decimal.Decimal `json:"alert_threshold"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsLow reports whether the owner asked to be alerted at the current balance.
func (w Wallet) IsLow() bool {
	return w.LowBalanceAlert && w.Balance.LessThanOrEqual(w.AlertThreshold)
}

// LeadPricing captures the pricing inputs behind a lead-cost debit so it can be replayed.
type LeadPricing struct {
	HazardCategory string          `json:"hazard_category"`
	RouteDistance  string          `json:"route_distance"`
	Quantity       decimal.Decimal `json:"quantity"`
	VehicleType    string          `json:"vehicle_type"`
}

// Transaction is an immutable wallet ledger entry. Amount is signed:
// credits are positive, debits negative.
type Transaction struct {
	ID             string          `json:"id"`
	WalletID       string          `json:"wallet_id"`
	Type           TransactionType `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	RelatedOfferID string          `json:"related_offer_id,omitempty"`
	Pricing        *LeadPricing    `json:"pricing,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Reconciliation compares a wallet balance with the sum of its ledger.
type Reconciliation struct {
	WalletID         string          `json:"wallet_id"`
	Balance          decimal.Decimal `json:"balance"`
	TransactionSum   decimal.Decimal `json:"transaction_sum"`
	TransactionCount int             `json:"transaction_count"`
	Balanced         bool            `json:"balanced"`
}
