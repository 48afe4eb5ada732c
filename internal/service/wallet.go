package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/features"
	"freight-bidding-api/internal/keylock"
	"freight-bidding-api/internal/models"
	"freight-bidding-api/internal/validation"
)

const walletHistoryLimit = 50

// RechargeWallet credits the calling partner's wallet, opening it if needed.
// Payment collection happens upstream; the method is only recorded.
func (s *Service) RechargeWallet(ctx context.Context, actor models.Actor, req models.RechargeRequest) (resp models.RechargeResponse, err error) {
	ctx, span := s.startSpan(ctx, "RechargeWallet", attribute.String("partner.id", actor.ID))
	defer func() { endSpan(span, err) }()

	if err := requireRole(actor, models.RolePartner, apperr.ErrNotPartner); err != nil {
		return models.RechargeResponse{}, err
	}
	if err := validation.ValidateRecharge(req); err != nil {
		return models.RechargeResponse{}, err
	}

	unlock, err := s.locks.Lock(ctx, keylock.WalletKey(actor.ID))
	if err != nil {
		return models.RechargeResponse{}, err
	}
	defer unlock()

	method := req.PaymentMethod
	if method == "" {
		method = "manual"
	}

	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		w, entry, err := s.ledger.Credit(ctx, actor.ID, req.Amount, models.TransactionRecharge, "Wallet recharge via "+method)
		if err != nil {
			return err
		}
		resp = models.RechargeResponse{Wallet: w, Transaction: entry}

		return s.audit(ctx, actor.ID, "RECHARGE_WALLET", "wallet", w.ID, map[string]string{
			"amount":         req.Amount.StringFixed(2),
			"payment_method": method,
			"balance":        w.Balance.StringFixed(2),
		})
	})
	if err != nil {
		return models.RechargeResponse{}, err
	}

	s.events.PublishWalletRecharged(ctx, resp.Wallet, req.Amount)
	s.logger.WithFields(logrus.Fields{
		"partner_id": actor.ID,
		"amount":     req.Amount.StringFixed(2),
		"balance":    resp.Wallet.Balance.StringFixed(2),
	}).Info("wallet recharged")

	return resp, nil
}

// GetWallet returns the caller's wallet, opening an empty one on first use,
// with its most recent transactions.
func (s *Service) GetWallet(ctx context.Context, actor models.Actor) (models.WalletResponse, error) {
	if err := requireRole(actor, models.RolePartner, apperr.ErrNotPartner); err != nil {
		return models.WalletResponse{}, err
	}

	w, err := s.ledger.Open(ctx, actor.ID)
	if err != nil {
		return models.WalletResponse{}, err
	}

	txs, err := s.ledger.Transactions(ctx, actor.ID, walletHistoryLimit)
	if err != nil {
		return models.WalletResponse{}, err
	}
	if txs == nil {
		txs = []models.Transaction{}
	}

	return models.WalletResponse{
		Wallet:       w,
		IsLowBalance: w.IsLow(),
		Transactions: txs,
	}, nil
}

func (s *Service) UpdateWalletSettings(ctx context.Context, actor models.Actor, req models.WalletSettingsRequest) (models.Wallet, error) {
	if err := requireRole(actor, models.RolePartner, apperr.ErrNotPartner); err != nil {
		return models.Wallet{}, err
	}
	if err := validation.ValidateWalletSettings(req); err != nil {
		return models.Wallet{}, err
	}

	unlock, err := s.locks.Lock(ctx, keylock.WalletKey(actor.ID))
	if err != nil {
		return models.Wallet{}, err
	}
	defer unlock()

	w, err := s.ledger.UpdateSettings(ctx, actor.ID, req.LowBalanceAlert, req.AlertThreshold)
	if err != nil {
		return models.Wallet{}, err
	}

	if w.IsLow() && s.features.IsEnabled(features.LowBalanceAlerts) {
		s.events.PublishLowBalance(ctx, w)
	}
	return w, nil
}

// ReconcileWallet checks the caller's balance against its transaction sum.
// A mismatch is reported, not repaired.
func (s *Service) ReconcileWallet(ctx context.Context, actor models.Actor) (models.Reconciliation, error) {
	if err := requireRole(actor, models.RolePartner, apperr.ErrNotPartner); err != nil {
		return models.Reconciliation{}, err
	}

	rec, err := s.ledger.Reconcile(ctx, actor.ID)
	if err != nil {
		return models.Reconciliation{}, err
	}

	if !rec.Balanced {
		s.logger.WithFields(logrus.Fields{
			"partner_id":      actor.ID,
			"wallet_id":       rec.WalletID,
			"balance":         rec.Balance.StringFixed(2),
			"transaction_sum": rec.TransactionSum.StringFixed(2),
		}).Warn("wallet balance does not match its transactions")
	}
	return rec, nil
}
