package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/models"
)

const quoteColumns = `id, quote_number, trader_id, cargo_name, is_hazardous, hazard_class,
	quantity, quantity_unit, pickup_city, pickup_state, delivery_city, delivery_state,
	packaging_type, preferred_vehicle_types, cargo_ready_date, is_urgent, expires_at,
	status, created_at, submitted_at`

// InsertQuote stores a new quote.
func (db *DB) InsertQuote(ctx context.Context, q models.Quote) error {
	var hazardClass sql.NullString
	if q.HazardClass != nil {
		hazardClass = sql.NullString{String: string(*q.HazardClass), Valid: true}
	}

	_, err := db.q(ctx).ExecContext(ctx, `INSERT INTO quotes (`+quoteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID,
		q.QuoteNumber,
		q.TraderID,
		q.CargoName,
		boolToInt(q.IsHazardous),
		hazardClass,
		q.Quantity.String(),
		q.QuantityUnit,
		q.PickupCity,
		q.PickupState,
		q.DeliveryCity,
		q.DeliveryState,
		q.PackagingType,
		serializeList(q.PreferredVehicleTypes),
		formatTime(q.CargoReadyDate),
		boolToInt(q.IsUrgent),
		formatTime(q.ExpiresAt),
		string(q.Status),
		formatTime(q.CreatedAt),
		formatTime(q.SubmittedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert quote: %w", err)
	}
	return nil
}

// GetQuote returns apperr.ErrQuoteNotFound when no quote has the given id.
func (db *DB) GetQuote(ctx context.Context, id string) (models.Quote, error) {
	row := db.q(ctx).QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = ?`, id)

	q, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Quote{}, apperr.ErrQuoteNotFound
	}
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to get quote: %w", err)
	}
	return q, nil
}

// TransitionQuote moves a quote to status `to` only if it is currently in
// one of `from`. It reports whether the row changed.
func (db *DB) TransitionQuote(ctx context.Context, id string, to models.QuoteStatus, from ...models.QuoteStatus) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("transition requires at least one source status")
	}

	args := []any{string(to), id}
	placeholders := make([]string, len(from))
	for i, s := range from {
		placeholders[i] = "?"
		args = append(args, string(s))
	}

	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE quotes SET status = ? WHERE id = ? AND status IN (`+strings.Join(placeholders, ",")+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update quote status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// ListDueQuotes returns ids of open quotes whose deadline is before now,
// oldest first.
func (db *DB) ListDueQuotes(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := db.q(ctx).QueryContext(ctx, `SELECT id FROM quotes
		WHERE status IN (?, ?, ?) AND expires_at < ?
		ORDER BY expires_at
		LIMIT ?`,
		string(models.QuoteSubmitted), string(models.QuoteMatching), string(models.QuoteOffersAvailable),
		formatTime(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due quotes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan quote id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due quotes: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (models.Quote, error) {
	var (
		q                                    models.Quote
		isHazardous, isUrgent                int
		hazardClass                          sql.NullString
		quantity, vehicles, status           string
		readyAt, expiresAt, createdAt, subAt string
	)

	err := row.Scan(
		&q.ID,
		&q.QuoteNumber,
		&q.TraderID,
		&q.CargoName,
		&isHazardous,
		&hazardClass,
		&quantity,
		&q.QuantityUnit,
		&q.PickupCity,
		&q.PickupState,
		&q.DeliveryCity,
		&q.DeliveryState,
		&q.PackagingType,
		&vehicles,
		&readyAt,
		&isUrgent,
		&expiresAt,
		&status,
		&createdAt,
		&subAt,
	)
	if err != nil {
		return models.Quote{}, err
	}

	q.IsHazardous = isHazardous == 1
	q.IsUrgent = isUrgent == 1
	q.Status = models.QuoteStatus(status)
	q.PreferredVehicleTypes = deserializeList[models.VehicleType](vehicles)
	if hazardClass.Valid {
		hc := models.HazardClass(hazardClass.String)
		q.HazardClass = &hc
	}

	if q.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return models.Quote{}, fmt.Errorf("failed to parse quantity: %w", err)
	}

	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&q.CargoReadyDate, readyAt},
		{&q.ExpiresAt, expiresAt},
		{&q.CreatedAt, createdAt},
		{&q.SubmittedAt, subAt},
	} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return models.Quote{}, fmt.Errorf("failed to parse quote timestamp: %w", err)
		}
	}

	return q, nil
}
