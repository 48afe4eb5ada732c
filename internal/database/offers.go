package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/models"
)

const offerColumns = `id, quote_id, partner_id, price_paise, transit_days, offer_valid_until,
	pickup_available_from, insurance_included, tracking_included, customs_clearance,
	value_added_services, terms_and_conditions, remarks, lead_type, status, is_selected,
	selected_at, expires_at, created_at`

// InsertOffer stores a new offer. A second non-withdrawn offer from the same
// partner on the same quote fails with apperr.ErrDuplicateOffer.
func (db *DB) InsertOffer(ctx context.Context, o models.Offer) error {
	_, err := db.q(ctx).ExecContext(ctx, `INSERT INTO offers (`+offerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID,
		o.QuoteID,
		o.PartnerID,
		toPaise(o.Price),
		o.TransitDays,
		formatTime(o.OfferValidUntil),
		formatTime(o.PickupAvailableFrom),
		boolToInt(o.InsuranceIncluded),
		boolToInt(o.TrackingIncluded),
		boolToInt(o.CustomsClearance),
		serializeList(o.ValueAddedServices),
		o.TermsAndConditions,
		o.Remarks,
		string(o.LeadType),
		string(o.Status),
		boolToInt(o.IsSelected),
		formatNullTime(o.SelectedAt),
		formatTime(o.ExpiresAt),
		formatTime(o.CreatedAt),
	)
	if isUniqueViolation(err) {
		return apperr.ErrDuplicateOffer
	}
	if err != nil {
		return fmt.Errorf("failed to insert offer: %w", err)
	}
	return nil
}

// GetOffer returns apperr.ErrOfferNotFound when no offer has the given id.
func (db *DB) GetOffer(ctx context.Context, id string) (models.Offer, error) {
	row := db.q(ctx).QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, id)

	o, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Offer{}, apperr.ErrOfferNotFound
	}
	if err != nil {
		return models.Offer{}, fmt.Errorf("failed to get offer: %w", err)
	}
	return o, nil
}

// ListOffers returns offers matching the filter, cheapest first.
func (db *DB) ListOffers(ctx context.Context, f models.OfferFilter) ([]models.Offer, error) {
	var (
		conds []string
		args  []any
	)
	if f.QuoteID != "" {
		conds = append(conds, "quote_id = ?")
		args = append(args, f.QuoteID)
	}
	if f.PartnerID != "" {
		conds = append(conds, "partner_id = ?")
		args = append(args, f.PartnerID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + offerColumns + ` FROM offers`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY price_paise, created_at"

	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query offers: %w", err)
	}
	defer rows.Close()

	offers := []models.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offers: %w", err)
	}
	return offers, nil
}

// HasActiveOffer reports whether the partner has a non-withdrawn offer on the quote.
func (db *DB) HasActiveOffer(ctx context.Context, quoteID, partnerID string) (bool, error) {
	var n int
	err := db.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM offers
		WHERE quote_id = ? AND partner_id = ? AND status != ?`,
		quoteID, partnerID, string(models.OfferWithdrawn),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check existing offers: %w", err)
	}
	return n > 0, nil
}

// CountPartnerOffersSince counts every offer a partner created at or after since.
func (db *DB) CountPartnerOffersSince(ctx context.Context, partnerID string, since time.Time) (int, error) {
	var n int
	err := db.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offers WHERE partner_id = ? AND created_at >= ?`,
		partnerID, formatTime(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count partner offers: %w", err)
	}
	return n, nil
}

// CountSelectedOffers returns how many offers on the quote are marked selected.
func (db *DB) CountSelectedOffers(ctx context.Context, quoteID string) (int, error) {
	var n int
	err := db.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offers WHERE quote_id = ? AND is_selected = 1`, quoteID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count selected offers: %w", err)
	}
	return n, nil
}

// AcceptOffer marks a pending offer as the selected winner. It reports
// false when the offer was no longer pending.
func (db *DB) AcceptOffer(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := db.q(ctx).ExecContext(ctx, `UPDATE offers
		SET status = ?, is_selected = 1, selected_at = ?
		WHERE id = ? AND status = ?`,
		string(models.OfferAccepted), formatTime(at), id, string(models.OfferPending),
	)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to accept offer: %w", err)
	}
	return affectedOne(res)
}

// RejectPendingOffers rejects every other pending offer on the quote and
// returns the ids that changed.
func (db *DB) RejectPendingOffers(ctx context.Context, quoteID, exceptID string) ([]string, error) {
	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT id FROM offers WHERE quote_id = ? AND id != ? AND status = ?`,
		quoteID, exceptID, string(models.OfferPending),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending offers: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan offer id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending offers: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	_, err = db.q(ctx).ExecContext(ctx,
		`UPDATE offers SET status = ? WHERE quote_id = ? AND id != ? AND status = ?`,
		string(models.OfferRejected), quoteID, exceptID, string(models.OfferPending),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reject pending offers: %w", err)
	}
	return ids, nil
}

// WithdrawOffer moves a pending offer to WITHDRAWN. It reports false when
// the offer was not pending.
func (db *DB) WithdrawOffer(ctx context.Context, id string) (bool, error) {
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE offers SET status = ? WHERE id = ? AND status = ?`,
		string(models.OfferWithdrawn), id, string(models.OfferPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to withdraw offer: %w", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func scanOffer(row rowScanner) (models.Offer, error) {
	var (
		o                                 models.Offer
		pricePaise                        int64
		insurance, tracking, customs, sel int
		services, leadType, status        string
		validUntil, pickupFrom, expiresAt string
		createdAt                         string
		selectedAt                        sql.NullString
	)

	err := row.Scan(
		&o.ID,
		&o.QuoteID,
		&o.PartnerID,
		&pricePaise,
		&o.TransitDays,
		&validUntil,
		&pickupFrom,
		&insurance,
		&tracking,
		&customs,
		&services,
		&o.TermsAndConditions,
		&o.Remarks,
		&leadType,
		&status,
		&sel,
		&selectedAt,
		&expiresAt,
		&createdAt,
	)
	if err != nil {
		return models.Offer{}, err
	}

	o.Price = fromPaise(pricePaise)
	o.InsuranceIncluded = insurance == 1
	o.TrackingIncluded = tracking == 1
	o.CustomsClearance = customs == 1
	o.IsSelected = sel == 1
	o.ValueAddedServices = deserializeList[string](services)
	o.LeadType = models.LeadType(leadType)
	o.Status = models.OfferStatus(status)

	if o.SelectedAt, err = parseNullTime(selectedAt); err != nil {
		return models.Offer{}, fmt.Errorf("failed to parse selected_at: %w", err)
	}

	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&o.OfferValidUntil, validUntil},
		{&o.PickupAvailableFrom, pickupFrom},
		{&o.ExpiresAt, expiresAt},
		{&o.CreatedAt, createdAt},
	} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return models.Offer{}, fmt.Errorf("failed to parse offer timestamp: %w", err)
		}
	}

	return o, nil
}
