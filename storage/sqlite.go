package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"kpiwatch/collector"
)

type SQLite struct {
	db  *sql.DB
	loc *time.Location
	log *zap.Logger
}

// NewSQLite opens (or creates) the database behind dsn and runs the
// migration that creates the `kpi_records` table if it does not exist.
// libsql://, wss:// and https:// DSNs go to a remote Turso database, anything
// else is a local file path. loc is the zone dates are read back in.
// The caller must call Close() when the program shuts down.
func NewSQLite(dsn string, loc *time.Location, log *zap.Logger) (*SQLite, error) {
	driver, source := driverFor(dsn)
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	if loc == nil {
		loc = time.UTC
	}
	s := &SQLite{db: db, loc: loc, log: log}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return s, nil
}

func driverFor(dsn string) (driver, source string) {
	for _, scheme := range []string{"libsql://", "wss://", "https://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "libsql", dsn
		}
	}
	if strings.HasPrefix(dsn, "file:") {
		return "sqlite", dsn
	}
	return "sqlite", "file:" + dsn
}

func (s *SQLite) migrate() error {
	const stmt = `
CREATE TABLE IF NOT EXISTS kpi_records (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    day             TEXT    NOT NULL,
    post_count      INTEGER NOT NULL,
    like_total      INTEGER NOT NULL,
    save_total      INTEGER NOT NULL,
    followers_count INTEGER NOT NULL,
    bookmark_count  INTEGER NOT NULL,
    created_at      DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kpi_records_day ON kpi_records(day);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create kpi_records table: %w", err)
	}
	s.log.Info("SQLite migration applied")
	return nil
}

// Append inserts the record as one row.
func (s *SQLite) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kpi_records
		 (day, post_count, like_total, save_total, followers_count, bookmark_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Day(), rec.PostCount, rec.LikeTotal, rec.SaveTotal,
		rec.FollowersCount, rec.BookmarkCount, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert kpi record for %s: %w", rec.Day(), err)
	}
	s.log.Debug("record persisted", zap.String("day", rec.Day()))
	return nil
}

// List implements Store.
func (s *SQLite) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
SELECT day, post_count, like_total, save_total, followers_count, bookmark_count
FROM (
    SELECT * FROM kpi_records ORDER BY id DESC LIMIT ?
) ORDER BY id ASC`
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query kpi records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			day string
			rec Record
		)
		if err := rows.Scan(&day, &rec.PostCount, &rec.LikeTotal, &rec.SaveTotal,
			&rec.FollowersCount, &rec.BookmarkCount); err != nil {
			return nil, fmt.Errorf("scan kpi record: %w", err)
		}
		rec.Date, err = time.ParseInLocation(collector.DateFormat, day, s.loc)
		if err != nil {
			return nil, fmt.Errorf("parse day %q: %w", day, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close shuts down the database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
