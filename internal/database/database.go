package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB opens the sqlite database at dbPath and initializes the schema.
// Transactions start with BEGIN IMMEDIATE so writers are serialized by
// sqlite before they read anything they are about to change.
func NewDB(dbPath string) (*DB, error) {
	dsn := dbPath + "?_foreign_keys=1&_busy_timeout=5000&_txlock=immediate"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS partners (
			partner_id TEXT PRIMARY KEY,
			company_name TEXT NOT NULL,
			subscription_tier TEXT NOT NULL,
			service_states TEXT NOT NULL,
			service_cities TEXT NOT NULL,
			hazard_classes TEXT NOT NULL,
			fleet_types TEXT NOT NULL,
			packaging_capabilities TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quotes (
			id TEXT PRIMARY KEY,
			quote_number TEXT NOT NULL UNIQUE,
			trader_id TEXT NOT NULL,
			cargo_name TEXT NOT NULL,
			is_hazardous INTEGER NOT NULL,
			hazard_class TEXT,
			quantity TEXT NOT NULL,
			quantity_unit TEXT NOT NULL,
			pickup_city TEXT NOT NULL,
			pickup_state TEXT NOT NULL,
			delivery_city TEXT NOT NULL,
			delivery_state TEXT NOT NULL,
			packaging_type TEXT NOT NULL,
			preferred_vehicle_types TEXT NOT NULL,
			cargo_ready_date TEXT NOT NULL,
			is_urgent INTEGER NOT NULL,
			expires_at TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			submitted_at TEXT NOT NULL,
			CHECK ((is_hazardous = 1) = (hazard_class IS NOT NULL)),
			CHECK (expires_at > submitted_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_status_expires ON quotes(status, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_trader ON quotes(trader_id)`,
		`CREATE TABLE IF NOT EXISTS quote_matches (
			quote_id TEXT NOT NULL REFERENCES quotes(id),
			partner_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (quote_id, partner_id)
		)`,
		`CREATE TABLE IF NOT EXISTS offers (
			id TEXT PRIMARY KEY,
			quote_id TEXT NOT NULL REFERENCES quotes(id),
			partner_id TEXT NOT NULL,
			price_paise INTEGER NOT NULL CHECK (price_paise > 0),
			transit_days INTEGER NOT NULL CHECK (transit_days > 0),
			offer_valid_until TEXT NOT NULL,
			pickup_available_from TEXT NOT NULL,
			insurance_included INTEGER NOT NULL,
			tracking_included INTEGER NOT NULL,
			customs_clearance INTEGER NOT NULL,
			value_added_services TEXT NOT NULL,
			terms_and_conditions TEXT NOT NULL,
			remarks TEXT NOT NULL,
			lead_type TEXT NOT NULL,
			status TEXT NOT NULL,
			is_selected INTEGER NOT NULL DEFAULT 0,
			selected_at TEXT,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			CHECK (is_selected = 0 OR status = 'ACCEPTED')
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_offers_active_partner
			ON offers(quote_id, partner_id) WHERE status != 'WITHDRAWN'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_offers_selected
			ON offers(quote_id) WHERE is_selected = 1`,
		`CREATE INDEX IF NOT EXISTS idx_offers_partner_created ON offers(partner_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS wallets (
			id TEXT PRIMARY KEY,
			partner_id TEXT NOT NULL UNIQUE,
			balance_paise INTEGER NOT NULL DEFAULT 0 CHECK (balance_paise >= 0),
			low_balance_alert INTEGER NOT NULL DEFAULT 1,
			alert_threshold_paise INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS wallet_transactions (
			id TEXT PRIMARY KEY,
			wallet_id TEXT NOT NULL REFERENCES wallets(id),
			type TEXT NOT NULL,
			amount_paise INTEGER NOT NULL,
			description TEXT NOT NULL,
			related_offer_id TEXT,
			pricing TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_transactions_wallet ON wallet_transactions(wallet_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS shipments (
			id TEXT PRIMARY KEY,
			quote_id TEXT NOT NULL UNIQUE REFERENCES quotes(id),
			offer_id TEXT NOT NULL UNIQUE REFERENCES offers(id),
			partner_id TEXT NOT NULL,
			trader_id TEXT NOT NULL,
			status TEXT NOT NULL,
			current_location TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			actor_id TEXT NOT NULL,
			action TEXT NOT NULL,
			entity TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			changes TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_logs(entity, entity_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

type txKey struct{}

// querier is the subset of *sql.DB and *sql.Tx the stores need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the transaction carried by ctx, or the plain connection.
func (db *DB) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db.conn
}

// RunInTx runs fn inside one database transaction. Every store method called
// with the ctx passed to fn joins that transaction. The transaction commits
// when fn returns nil and rolls back otherwise, including on panic. Nested
// calls reuse the outer transaction.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const timeLayout = "2006-01-02T15:04:05.000000Z"

// Timestamps are stored as fixed-width UTC strings so that they compare
// correctly as text.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Money is stored as integer paise.
func toPaise(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromPaise(p int64) decimal.Decimal {
	return decimal.New(p, -2)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// serializeList converts a slice of string-like values to a JSON array.
func serializeList[T ~string](list []T) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// deserializeList converts a serialized list back to a slice. Older rows
// written as comma-separated text are still accepted.
func deserializeList[T ~string](serialized string) []T {
	if serialized == "" || serialized == "[]" {
		return []T{}
	}

	var result []T
	if err := json.Unmarshal([]byte(serialized), &result); err == nil {
		return result
	}

	parts := strings.Split(serialized, ",")
	result = make([]T, 0, len(parts))
	for _, p := range parts {
		result = append(result, T(strings.TrimSpace(p)))
	}
	return result
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func isCheckViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
}
