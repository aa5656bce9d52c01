package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/use-agent/cookiediff/models"
)

// SaveDifferences replaces the stored difference records of a site.
// Absent scores are stored as NULL.
func (s *Store) SaveDifferences(ctx context.Context, domain string, site models.SiteDifferences) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM differences WHERE domain = ?`, domain); err != nil {
		return fmt.Errorf("store: clear differences %s: %w", domain, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO differences (domain, clickstream, step, feature, control_diff, experimental_diff, did)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare differences: %w", err)
	}
	defer stmt.Close()

	for id, steps := range site {
		for step, rec := range steps {
			for feature, sc := range rec {
				_, err := stmt.ExecContext(ctx, domain, id, step, feature,
					nullable(sc.ControlDiff), nullable(sc.ExperimentalDiff), nullable(sc.DiD))
				if err != nil {
					return fmt.Errorf("store: insert difference %s/%d/%d/%s: %w", domain, id, step, feature, err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit differences: %w", err)
	}
	return nil
}

// Differences loads the stored records of a site. Steps without any score
// are not stored and therefore not returned.
func (s *Store) Differences(ctx context.Context, domain string) (models.SiteDifferences, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT clickstream, step, feature, control_diff, experimental_diff, did
		FROM differences WHERE domain = ?`, domain)
	if err != nil {
		return nil, fmt.Errorf("store: query differences %s: %w", domain, err)
	}
	defer rows.Close()

	out := models.SiteDifferences{}
	for rows.Next() {
		var (
			id, step      int
			feature       string
			ctl, exp, did sql.NullFloat64
		)
		if err := rows.Scan(&id, &step, &feature, &ctl, &exp, &did); err != nil {
			return nil, fmt.Errorf("store: scan difference: %w", err)
		}
		steps, ok := out[id]
		if !ok {
			steps = models.ClickstreamDifferences{}
			out[id] = steps
		}
		rec, ok := steps[step]
		if !ok {
			rec = models.DiffRecord{}
			steps[step] = rec
		}
		rec[feature] = models.Scores{
			ControlDiff:      pointer(ctl),
			ExperimentalDiff: pointer(exp),
			DiD:              pointer(did),
		}
	}
	return out, rows.Err()
}

// Domains lists every domain with stored difference records.
func (s *Store) Domains(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT domain FROM differences ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("store: query domains: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("store: scan domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullable(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func pointer(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
