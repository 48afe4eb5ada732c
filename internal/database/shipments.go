package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/models"
)

const shipmentColumns = `id, quote_id, offer_id, partner_id, trader_id, status, current_location,
	created_at, updated_at`

func (db *DB) InsertShipment(ctx context.Context, s models.Shipment) error {
	_, err := db.q(ctx).ExecContext(ctx, `INSERT INTO shipments (`+shipmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.QuoteID, s.OfferID, s.PartnerID, s.TraderID, string(s.Status), s.CurrentLocation,
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert shipment: %w", err)
	}
	return nil
}

func (db *DB) GetShipment(ctx context.Context, id string) (models.Shipment, error) {
	return db.getShipment(ctx, `id = ?`, id)
}

// GetShipmentByQuote returns the single shipment booked for a quote.
func (db *DB) GetShipmentByQuote(ctx context.Context, quoteID string) (models.Shipment, error) {
	return db.getShipment(ctx, `quote_id = ?`, quoteID)
}

func (db *DB) getShipment(ctx context.Context, where string, arg string) (models.Shipment, error) {
	row := db.q(ctx).QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE `+where, arg)

	var (
		s                            models.Shipment
		status, createdAt, updatedAt string
	)
	err := row.Scan(&s.ID, &s.QuoteID, &s.OfferID, &s.PartnerID, &s.TraderID, &status,
		&s.CurrentLocation, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Shipment{}, apperr.ErrShipmentNotFound
	}
	if err != nil {
		return models.Shipment{}, fmt.Errorf("failed to get shipment: %w", err)
	}

	s.Status = models.ShipmentStatus(status)
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Shipment{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Shipment{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return s, nil
}

func (db *DB) UpdateShipment(ctx context.Context, s models.Shipment) error {
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE shipments SET status = ?, current_location = ?, updated_at = ? WHERE id = ?`,
		string(s.Status), s.CurrentLocation, formatTime(s.UpdatedAt), s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update shipment: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrShipmentNotFound
	}
	return nil
}

// InsertAudit records a state change. It is meant to run in the same
// transaction as the change itself.
func (db *DB) InsertAudit(ctx context.Context, a models.AuditLog) error {
	changes, err := json.Marshal(a.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode audit changes: %w", err)
	}

	_, err = db.q(ctx).ExecContext(ctx, `INSERT INTO audit_logs (
		id, actor_id, action, entity, entity_id, changes, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ActorID, a.Action, a.Entity, a.EntityID, string(changes), formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListAudit returns the audit trail of one entity, oldest first.
func (db *DB) ListAudit(ctx context.Context, entity, entityID string) ([]models.AuditLog, error) {
	rows, err := db.q(ctx).QueryContext(ctx, `SELECT id, actor_id, action, entity, entity_id, changes, created_at
		FROM audit_logs WHERE entity = ? AND entity_id = ? ORDER BY created_at, rowid`,
		entity, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var (
			a                  models.AuditLog
			changes, createdAt string
		)
		if err := rows.Scan(&a.ID, &a.ActorID, &a.Action, &a.Entity, &a.EntityID, &changes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if err := json.Unmarshal([]byte(changes), &a.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode audit changes: %w", err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		logs = append(logs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}
	return logs, nil
}
