package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"freight-bidding-api/internal/apperr"
	"freight-bidding-api/internal/models"
)

const partnerColumns = `partner_id, company_name, subscription_tier, service_states, service_cities,
	hazard_classes, fleet_types, packaging_capabilities, updated_at`

// UpsertCapability creates or replaces a partner's capability profile.
func (db *DB) UpsertCapability(ctx context.Context, c models.PartnerCapability) error {
	now := formatTime(c.UpdatedAt)

	_, err := db.q(ctx).ExecContext(ctx, `INSERT INTO partners (
		partner_id, company_name, subscription_tier, service_states, service_cities,
		hazard_classes, fleet_types, packaging_capabilities, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(partner_id) DO UPDATE SET
		company_name = excluded.company_name,
		subscription_tier = excluded.subscription_tier,
		service_states = excluded.service_states,
		service_cities = excluded.service_cities,
		hazard_classes = excluded.hazard_classes,
		fleet_types = excluded.fleet_types,
		packaging_capabilities = excluded.packaging_capabilities,
		updated_at = excluded.updated_at`,
		c.PartnerID,
		c.CompanyName,
		string(c.SubscriptionTier),
		serializeList(c.ServiceStates),
		serializeList(c.ServiceCities),
		serializeList(c.HazardClasses),
		serializeList(c.FleetTypes),
		serializeList(c.PackagingCapabilities),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert partner capability: %w", err)
	}
	return nil
}

// GetCapability returns apperr.ErrPartnerNotFound for unregistered partners.
func (db *DB) GetCapability(ctx context.Context, partnerID string) (models.PartnerCapability, error) {
	row := db.q(ctx).QueryRowContext(ctx,
		`SELECT `+partnerColumns+` FROM partners WHERE partner_id = ?`, partnerID)

	c, err := scanCapability(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PartnerCapability{}, apperr.ErrPartnerNotFound
	}
	if err != nil {
		return models.PartnerCapability{}, fmt.Errorf("failed to get partner capability: %w", err)
	}
	return c, nil
}

// ListCapabilities returns every registered partner profile.
func (db *DB) ListCapabilities(ctx context.Context) ([]models.PartnerCapability, error) {
	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT `+partnerColumns+` FROM partners ORDER BY partner_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query partner capabilities: %w", err)
	}
	defer rows.Close()

	var list []models.PartnerCapability
	for rows.Next() {
		c, err := scanCapability(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan partner capability: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating partner capabilities: %w", err)
	}
	return list, nil
}

// InsertMatches records which partners are eligible for a quote.
func (db *DB) InsertMatches(ctx context.Context, quoteID string, partnerIDs []string, at time.Time) error {
	if len(partnerIDs) == 0 {
		return nil
	}

	return db.RunInTx(ctx, func(ctx context.Context) error {
		for _, pid := range partnerIDs {
			_, err := db.q(ctx).ExecContext(ctx,
				`INSERT OR IGNORE INTO quote_matches (quote_id, partner_id, created_at) VALUES (?, ?, ?)`,
				quoteID, pid, formatTime(at),
			)
			if err != nil {
				return fmt.Errorf("failed to insert match for partner %s: %w", pid, err)
			}
		}
		return nil
	})
}

// IsMatched reports whether the partner was matched to the quote.
func (db *DB) IsMatched(ctx context.Context, quoteID, partnerID string) (bool, error) {
	var n int
	err := db.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quote_matches WHERE quote_id = ? AND partner_id = ?`,
		quoteID, partnerID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check quote match: %w", err)
	}
	return n > 0, nil
}

func scanCapability(row rowScanner) (models.PartnerCapability, error) {
	var (
		c                             models.PartnerCapability
		tier, states, cities, hazards string
		fleet, packaging, updatedAt   string
	)

	err := row.Scan(
		&c.PartnerID,
		&c.CompanyName,
		&tier,
		&states,
		&cities,
		&hazards,
		&fleet,
		&packaging,
		&updatedAt,
	)
	if err != nil {
		return models.PartnerCapability{}, err
	}

	c.SubscriptionTier = models.SubscriptionTier(tier)
	c.ServiceStates = deserializeList[string](states)
	c.ServiceCities = deserializeList[string](cities)
	c.HazardClasses = deserializeList[models.HazardClass](hazards)
	c.FleetTypes = deserializeList[models.VehicleType](fleet)
	c.PackagingCapabilities = deserializeList[string](packaging)

	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.PartnerCapability{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return c, nil
}
