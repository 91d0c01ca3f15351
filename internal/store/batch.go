package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/datallboy/goytbot/internal/domain"
)

const runColumns = `id, conversation_key, source_url, target_height, playlist, status, error, total, created_at, finished_at`

// SaveRun upserts the run and creates rows for items not stored yet.
// Existing item rows are left for SaveItem to update.
func (s *PersistentStore) SaveRun(ctx context.Context, run *domain.BatchRun) error {
	var d runDBO
	d.FromDomain(run)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// Rollback is a no-op if the tx has already been committed
	defer tx.Rollback()

	query := `INSERT INTO batch_runs (` + runColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT (id) DO UPDATE SET
                  playlist = excluded.playlist,
                  status = excluded.status,
                  error = excluded.error,
                  total = excluded.total,
                  finished_at = excluded.finished_at`

	_, err = tx.ExecContext(ctx, s.rebind(query),
		d.ID, d.ConversationKey, d.SourceURL, d.TargetHeight, d.Playlist,
		d.Status, d.Error, d.Total, d.CreatedAt, d.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	itemQuery := s.rebind(`INSERT INTO batch_items (run_id, idx, source_url, status, title, bytes, delivered_as, transcoded, error, finished_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT (run_id, idx) DO NOTHING`)
	for _, item := range run.Items {
		var it itemDBO
		it.FromDomain(item)
		if _, err := tx.ExecContext(ctx, itemQuery,
			it.RunID, it.Index, it.SourceURL, it.Status, it.Title,
			it.Bytes, it.DeliveredAs, it.Transcoded, it.Error, it.FinishedAt,
		); err != nil {
			return fmt.Errorf("failed to save item %s/%d: %w", item.RunID, item.Index, err)
		}
	}

	return tx.Commit()
}

func (s *PersistentStore) SaveItem(ctx context.Context, item *domain.BatchItem) error {
	var d itemDBO
	d.FromDomain(item)

	query := `INSERT INTO batch_items (run_id, idx, source_url, status, title, bytes, delivered_as, transcoded, error, finished_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT (run_id, idx) DO UPDATE SET
                  status = excluded.status,
                  title = excluded.title,
                  bytes = excluded.bytes,
                  delivered_as = excluded.delivered_as,
                  transcoded = excluded.transcoded,
                  error = excluded.error,
                  finished_at = excluded.finished_at`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		d.RunID, d.Index, d.SourceURL, d.Status, d.Title,
		d.Bytes, d.DeliveredAs, d.Transcoded, d.Error, d.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save item %s/%d: %w", item.RunID, item.Index, err)
	}
	return nil
}

// GetRun loads a run with its items. A missing run returns nil, nil.
func (s *PersistentStore) GetRun(ctx context.Context, id string) (*domain.BatchRun, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM batch_runs WHERE id = ? LIMIT 1`), id)

	d, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Return nil, nil to indicate "Not found"
		}
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}

	run := d.ToDomain()
	run.Items, err = s.listItems(ctx, run.ID, d.Total)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the newest runs first, without their items.
func (s *PersistentStore) ListRuns(ctx context.Context, limit int) ([]*domain.BatchRun, error) {
	if limit <= 0 {
		limit = 20
	}

	// KSUIDs sort chronologically
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+runColumns+` FROM batch_runs ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BatchRun
	for rows.Next() {
		d, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, d.ToDomain())
	}
	return runs, rows.Err()
}

func (s *PersistentStore) listItems(ctx context.Context, runID string, total int) ([]*domain.BatchItem, error) {
	query := `SELECT run_id, idx, source_url, status, title, bytes, delivered_as, transcoded, error, finished_at
              FROM batch_items WHERE run_id = ? ORDER BY idx ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}
	defer rows.Close()

	var items []*domain.BatchItem
	for rows.Next() {
		var d itemDBO
		if err := rows.Scan(&d.RunID, &d.Index, &d.SourceURL, &d.Status, &d.Title,
			&d.Bytes, &d.DeliveredAs, &d.Transcoded, &d.Error, &d.FinishedAt); err != nil {
			return nil, err
		}
		items = append(items, d.ToDomain(total))
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*runDBO, error) {
	var d runDBO
	err := row.Scan(&d.ID, &d.ConversationKey, &d.SourceURL, &d.TargetHeight, &d.Playlist,
		&d.Status, &d.Error, &d.Total, &d.CreatedAt, &d.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
