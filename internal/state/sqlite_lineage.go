package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// SaveTableLineage stores the upstreams of each table for a run.
// Tables without upstreams are not recorded.
func (s *SQLiteStore) SaveTableLineage(ctx context.Context, runID string, lineage []TableLineage) error {
	if s.db == nil {
		return ErrStoreNotOpen
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO table_lineage (run_id, table_name, upstream_name, upstream_full_name, datasource_server, platform)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare lineage insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, l := range lineage {
			for _, u := range l.Upstreams {
				if _, err := stmt.ExecContext(ctx, runID, l.Table, u.Name, u.FullName, u.DatasourceServer, u.Platform); err != nil {
					return fmt.Errorf("failed to save lineage for %s: %w", l.Table, err)
				}
			}
		}
		s.logger.Debug("saved table lineage", slog.String("run_id", runID), slog.Int("tables", len(lineage)))
		return nil
	})
}

// SaveWarnings stores the warnings raised during a run.
func (s *SQLiteStore) SaveWarnings(ctx context.Context, runID string, warnings []Warning) error {
	if s.db == nil {
		return ErrStoreNotOpen
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO warnings (run_id, table_name, key, message) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare warning insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, w := range warnings {
			if _, err := stmt.ExecContext(ctx, runID, w.Table, w.Key, w.Message); err != nil {
				return fmt.Errorf("failed to save warning %s: %w", w.Key, err)
			}
		}
		return nil
	})
}

// GetTableLineage returns the lineage recorded for a run, ordered by table.
func (s *SQLiteStore) GetTableLineage(ctx context.Context, runID string) ([]TableLineage, error) {
	if s.db == nil {
		return nil, ErrStoreNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, upstream_name, upstream_full_name, datasource_server, platform
		 FROM table_lineage WHERE run_id = ? ORDER BY table_name, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get table lineage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lineage []TableLineage
	for rows.Next() {
		var table string
		var u Upstream
		if err := rows.Scan(&table, &u.Name, &u.FullName, &u.DatasourceServer, &u.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan table lineage: %w", err)
		}
		if n := len(lineage); n == 0 || lineage[n-1].Table != table {
			lineage = append(lineage, TableLineage{Table: table})
		}
		last := &lineage[len(lineage)-1]
		last.Upstreams = append(last.Upstreams, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get table lineage: %w", err)
	}
	return lineage, nil
}

// GetWarnings returns the warnings recorded for a run.
func (s *SQLiteStore) GetWarnings(ctx context.Context, runID string) ([]Warning, error) {
	if s.db == nil {
		return nil, ErrStoreNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, key, message FROM warnings WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get warnings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var warnings []Warning
	for rows.Next() {
		var w Warning
		if err := rows.Scan(&w.Table, &w.Key, &w.Message); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
