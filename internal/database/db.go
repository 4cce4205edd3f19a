package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/meterscraper/pkg/models"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS monthly_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portal TEXT NOT NULL,
		period TEXT NOT NULL,
		billable_days INTEGER,
		kwh REAL,
		payment REAL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(portal, period)
	);
	CREATE TABLE IF NOT EXISTS half_hour_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portal TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		kwh REAL NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(portal, start_time)
	);
	CREATE INDEX IF NOT EXISTS idx_monthly_portal ON monthly_usage(portal);
	CREATE INDEX IF NOT EXISTS idx_half_hour_portal ON half_hour_usage(portal);
	CREATE INDEX IF NOT EXISTS idx_half_hour_published ON half_hour_usage(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// UpsertMonthly stores monthly records. A later fetch of the same period
// replaces the earlier values, since the current month keeps changing.
func (db *DB) UpsertMonthly(portal string, records []models.MonthlyUsage) error {
	query := `
	INSERT INTO monthly_usage (portal, period, billable_days, kwh, payment, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(portal, period) DO UPDATE SET
		billable_days = excluded.billable_days,
		kwh = excluded.kwh,
		payment = excluded.payment
	`

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if _, err := tx.Exec(query, portal, r.Period, r.BillableDays, r.KWh, r.Payment, createdAt); err != nil {
			return fmt.Errorf("inserting monthly usage %s: %w", r.Period, err)
		}
	}

	return tx.Commit()
}

// ListMonthly retrieves monthly records for a portal in the order they were first stored
func (db *DB) ListMonthly(portal string) ([]models.MonthlyUsage, error) {
	query := `
	SELECT period, billable_days, kwh, payment
	FROM monthly_usage
	WHERE portal = ?
	ORDER BY id ASC
	`

	rows, err := db.conn.Query(query, portal)
	if err != nil {
		return nil, fmt.Errorf("querying monthly usage: %w", err)
	}
	defer rows.Close()

	var results []models.MonthlyUsage
	for rows.Next() {
		var r models.MonthlyUsage
		var days sql.NullInt64
		var kwh, payment sql.NullFloat64

		if err := rows.Scan(&r.Period, &days, &kwh, &payment); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if days.Valid {
			d := int(days.Int64)
			r.BillableDays = &d
		}
		if kwh.Valid {
			r.KWh = &kwh.Float64
		}
		if payment.Valid {
			r.Payment = &payment.Float64
		}

		results = append(results, r)
	}

	return results, rows.Err()
}

// UpsertReadings stores half-hour readings. Readings already published are
// left alone; unpublished ones take the newer value.
func (db *DB) UpsertReadings(readings []models.IntervalReading) error {
	query := `
	INSERT INTO half_hour_usage (portal, start_time, end_time, kwh, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(portal, start_time) DO UPDATE SET kwh = excluded.kwh
	WHERE published = 0
	`

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for _, r := range readings {
		start := r.StartTime.In(models.Tokyo).Format(timeLayout)
		end := r.EndTime.In(models.Tokyo).Format(timeLayout)
		if _, err := tx.Exec(query, r.Portal, start, end, r.KWh, createdAt); err != nil {
			return fmt.Errorf("inserting reading %s: %w", start, err)
		}
	}

	return tx.Commit()
}

// ListReadings retrieves half-hour readings for a portal, newest first
func (db *DB) ListReadings(portal string) ([]models.IntervalReading, error) {
	return db.queryReadings(`
	SELECT id, portal, start_time, end_time, kwh
	FROM half_hour_usage
	WHERE portal = ?
	ORDER BY start_time DESC
	`, portal)
}

// ListUnpublishedReadings retrieves readings not yet sent to Home Assistant, oldest first
func (db *DB) ListUnpublishedReadings(portal string) ([]models.IntervalReading, error) {
	return db.queryReadings(`
	SELECT id, portal, start_time, end_time, kwh
	FROM half_hour_usage
	WHERE portal = ? AND published = 0
	ORDER BY start_time ASC
	`, portal)
}

func (db *DB) queryReadings(query, portal string) ([]models.IntervalReading, error) {
	rows, err := db.conn.Query(query, portal)
	if err != nil {
		return nil, fmt.Errorf("querying half-hour usage: %w", err)
	}
	defer rows.Close()

	var results []models.IntervalReading
	for rows.Next() {
		var r models.IntervalReading
		var startStr, endStr string

		if err := rows.Scan(&r.ID, &r.Portal, &startStr, &endStr, &r.KWh); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		r.StartTime, err = time.ParseInLocation(timeLayout, startStr, models.Tokyo)
		if err != nil {
			return nil, fmt.Errorf("parsing start_time: %w", err)
		}
		r.EndTime, err = time.ParseInLocation(timeLayout, endStr, models.Tokyo)
		if err != nil {
			return nil, fmt.Errorf("parsing end_time: %w", err)
		}

		results = append(results, r)
	}

	return results, rows.Err()
}

// MarkPublished marks a half-hour reading as published
func (db *DB) MarkPublished(id int) error {
	query := `UPDATE half_hour_usage SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}
