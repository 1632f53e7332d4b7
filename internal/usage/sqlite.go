// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package usage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/adobe-helper/pkg/types"
)

// SQLiteStore keeps every day's conversions in a SQLite database, so history
// survives the daily reset.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates dir/usage.db.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	dbPath := filepath.Join(dir, UsageDB)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			day TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			filename TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_day ON conversions(day)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(date string) (types.DailyUsage, error) {
	u := types.DailyUsage{Date: date}
	rows, err := s.db.Query(
		`SELECT id, timestamp, filename FROM conversions WHERE day = ? ORDER BY seq`, date)
	if err != nil {
		return types.DailyUsage{}, fmt.Errorf("querying conversions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return types.DailyUsage{}, err
		}
		u.Conversions = append(u.Conversions, rec)
	}
	if err := rows.Err(); err != nil {
		return types.DailyUsage{}, fmt.Errorf("iterating conversions: %w", err)
	}
	u.Count = len(u.Conversions)
	return u, nil
}

// Save replaces the rows for u.Date with u.Conversions.
func (s *SQLiteStore) Save(u types.DailyUsage) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM conversions WHERE day = ?`, u.Date); err != nil {
		return fmt.Errorf("clearing %s: %w", u.Date, err)
	}
	for _, rec := range u.Conversions {
		if _, err := tx.Exec(
			`INSERT INTO conversions (id, day, timestamp, filename) VALUES (?, ?, ?, ?)`,
			rec.ID, u.Date, rec.Timestamp.Format(time.RFC3339Nano), rec.Filename,
		); err != nil {
			return fmt.Errorf("inserting conversion %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Days() ([]types.DailyUsage, error) {
	rows, err := s.db.Query(`SELECT day, id, timestamp, filename FROM conversions ORDER BY day, seq`)
	if err != nil {
		return nil, fmt.Errorf("querying conversions: %w", err)
	}
	defer rows.Close()

	var days []types.DailyUsage
	for rows.Next() {
		var day string
		var id, ts string
		var filename sql.NullString
		if err := rows.Scan(&day, &id, &ts, &filename); err != nil {
			return nil, fmt.Errorf("scanning conversion: %w", err)
		}
		rec, err := newRecord(id, ts, filename)
		if err != nil {
			return nil, err
		}
		if len(days) == 0 || days[len(days)-1].Date != day {
			days = append(days, types.DailyUsage{Date: day})
		}
		last := &days[len(days)-1]
		last.Conversions = append(last.Conversions, rec)
		last.Count++
	}
	return days, rows.Err()
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (types.ConversionRecord, error) {
	var id, ts string
	var filename sql.NullString
	if err := rows.Scan(&id, &ts, &filename); err != nil {
		return types.ConversionRecord{}, fmt.Errorf("scanning conversion: %w", err)
	}
	return newRecord(id, ts, filename)
}

func newRecord(id, ts string, filename sql.NullString) (types.ConversionRecord, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return types.ConversionRecord{}, fmt.Errorf("parsing timestamp of %s: %w", id, err)
	}
	return types.ConversionRecord{ID: id, Timestamp: t, Filename: filename.String}, nil
}
