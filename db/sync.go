// ABOUTME: Database operations for sync_runs and sync_state tables
// ABOUTME: Records run lifecycle and counters, and per-source last successful sync time
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/outreach/models"
	"github.com/oklog/ulid/v2"
)

const runColumns = `id, sync_type, source, status, processed, new_count, contacts_created, needs_review, failed, errors, started_at, completed_at`

func scanRun(row rowScanner) (*models.SyncRun, error) {
	var r models.SyncRun
	var errs string
	var completedAt sql.NullTime
	err := row.Scan(&r.ID, &r.Type, &r.Source, &r.Status, &r.Processed, &r.New, &r.ContactsCreated,
		&r.NeedsReview, &r.Failed, &errs, &r.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if errs != "" {
		if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode run errors: %w", err)
		}
	}
	if completedAt.Valid {
		ts := completedAt.Time
		r.CompletedAt = &ts
	}
	return &r, nil
}

// StartRun records a new run in the started state.
func (s *Store) StartRun(ctx context.Context, syncType, source string) (*models.SyncRun, error) {
	run := &models.SyncRun{
		ID:        ulid.Make().String(),
		Type:      syncType,
		Source:    source,
		Status:    models.RunStarted,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.exec(ctx, s.db, `
		INSERT INTO sync_runs (id, sync_type, source, status, errors, started_at)
		VALUES (?, ?, ?, ?, '[]', ?)
	`, run.ID, run.Type, run.Source, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to start sync run: %w", classify(err))
	}
	return run, nil
}

// FinishRun stores the final counters and status of a run.
func (s *Store) FinishRun(ctx context.Context, run *models.SyncRun) error {
	if run.Status != models.RunCompleted && run.Status != models.RunFailed {
		return fmt.Errorf("run %s: cannot finish with status %q", run.ID, run.Status)
	}

	errs, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("failed to encode run errors: %w", err)
	}
	now := time.Now().UTC()
	run.CompletedAt = &now

	res, err := s.exec(ctx, s.db, `
		UPDATE sync_runs
		SET status = ?, processed = ?, new_count = ?, contacts_created = ?, needs_review = ?, failed = ?,
			errors = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, run.Status, run.Processed, run.New, run.ContactsCreated, run.NeedsReview, run.Failed,
		string(errs), now, run.ID, models.RunStarted)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s is not in progress: %w", run.ID, ErrNotFound)
	}
	return nil
}

// GetRun returns nil, nil when the id is unknown.
func (s *Store) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	r, err := scanRun(s.queryRow(ctx, s.db, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", classify(err))
	}
	return r, nil
}

// ListRuns returns the most recent runs, optionally for one source.
func (s *Store) ListRuns(ctx context.Context, source string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM sync_runs`
	args := []any{}
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var runs []models.SyncRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", classify(err))
	}
	return runs, nil
}

// GetSyncState retrieves the sync state for a service.
func (s *Store) GetSyncState(ctx context.Context, service string) (*models.SyncState, error) {
	var state models.SyncState
	var lastSyncTime sql.NullTime

	err := s.queryRow(ctx, s.db, `
		SELECT service, last_sync_time, status, error_message, updated_at
		FROM sync_state
		WHERE service = ?
	`, service).Scan(&state.Service, &lastSyncTime, &state.Status, &state.ErrorMessage, &state.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", classify(err))
	}

	if lastSyncTime.Valid {
		ts := lastSyncTime.Time
		state.LastSyncTime = &ts
	}
	return &state, nil
}

// UpdateSyncStatus updates the sync status for a service.
func (s *Store) UpdateSyncStatus(ctx context.Context, service, status, errorMsg string) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO sync_state (service, status, error_message, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(service) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`, service, status, errorMsg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", classify(err))
	}
	return nil
}

// MarkSynced records a successful sync of service at syncedAt.
func (s *Store) MarkSynced(ctx context.Context, service string, syncedAt time.Time) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO sync_state (service, last_sync_time, status, error_message, updated_at)
		VALUES (?, ?, 'idle', '', ?)
		ON CONFLICT(service) DO UPDATE SET
			last_sync_time = excluded.last_sync_time,
			status = 'idle',
			error_message = '',
			updated_at = excluded.updated_at
	`, service, syncedAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark sync: %w", classify(err))
	}
	return nil
}

// GetAllSyncStates retrieves the sync state for all services.
func (s *Store) GetAllSyncStates(ctx context.Context) ([]models.SyncState, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT service, last_sync_time, status, error_message, updated_at
		FROM sync_state
		ORDER BY service
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync states: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var states []models.SyncState
	for rows.Next() {
		var state models.SyncState
		var lastSyncTime sql.NullTime
		if err := rows.Scan(&state.Service, &lastSyncTime, &state.Status, &state.ErrorMessage, &state.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		if lastSyncTime.Valid {
			ts := lastSyncTime.Time
			state.LastSyncTime = &ts
		}
		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync states: %w", err)
	}
	return states, nil
}
