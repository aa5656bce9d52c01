// Package store persists the crawl queue, crawl results and difference
// records in a single SQLite database shared by every shard.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/use-agent/cookiediff/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS queue (
	pos    INTEGER PRIMARY KEY AUTOINCREMENT,
	domain TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS results (
	domain     TEXT PRIMARY KEY,
	shard      INTEGER NOT NULL,
	successful INTEGER NOT NULL,
	result     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS differences (
	domain            TEXT NOT NULL,
	clickstream       INTEGER NOT NULL,
	step              INTEGER NOT NULL,
	feature           TEXT NOT NULL,
	control_diff      REAL,
	experimental_diff REAL,
	did               REAL,
	PRIMARY KEY (domain, clickstream, step, feature)
);
`

// Store wraps the SQLite handle. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Enqueue appends domains to the crawl queue, skipping any already queued.
func (s *Store) Enqueue(ctx context.Context, domains []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO queue (domain) VALUES (?)`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare enqueue: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, d := range domains {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, d)
		if err != nil {
			return 0, fmt.Errorf("store: enqueue %s: %w", d, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit enqueue: %w", err)
	}
	return added, nil
}

// Pop removes and returns the domain at the head of the queue. ok is false
// when the queue is empty.
func (s *Store) Pop(ctx context.Context) (domain string, ok bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var pos int64
	err = tx.QueryRowContext(ctx, `SELECT pos, domain FROM queue ORDER BY pos LIMIT 1`).Scan(&pos, &domain)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: peek queue: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM queue WHERE pos = ?`, pos); err != nil {
		return "", false, fmt.Errorf("store: pop %s: %w", domain, err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("store: commit pop: %w", err)
	}
	return domain, true, nil
}

// QueueLen returns the number of queued domains.
func (s *Store) QueueLen(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count queue: %w", err)
	}
	return n, nil
}

// SaveResult records (or replaces) the crawl result of a domain.
func (s *Store) SaveResult(ctx context.Context, domain string, r *models.CrawlResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: encode result %s: %w", domain, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (domain, shard, successful, result) VALUES (?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			shard = excluded.shard,
			successful = excluded.successful,
			result = excluded.result,
			updated_at = CURRENT_TIMESTAMP`,
		domain, r.Shard, r.Successful(), string(data))
	if err != nil {
		return fmt.Errorf("store: save result %s: %w", domain, err)
	}
	return nil
}

// Results returns every recorded crawl result ordered by domain.
func (s *Store) Results(ctx context.Context) ([]models.SiteResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain, result FROM results ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("store: query results: %w", err)
	}
	defer rows.Close()

	var out []models.SiteResult
	for rows.Next() {
		var domain, data string
		if err := rows.Scan(&domain, &data); err != nil {
			return nil, fmt.Errorf("store: scan result: %w", err)
		}
		var r models.CrawlResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("store: decode result %s: %w", domain, err)
		}
		out = append(out, models.SiteResult{Domain: domain, Result: &r})
	}
	return out, rows.Err()
}

// Result returns the crawl result of one domain, or nil if none exists.
func (s *Store) Result(ctx context.Context, domain string) (*models.CrawlResult, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM results WHERE domain = ?`, domain).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: query result %s: %w", domain, err)
	}
	var r models.CrawlResult
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("store: decode result %s: %w", domain, err)
	}
	return &r, nil
}
