package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rocmdev/rocmdev/pkg/reconcile"
	"github.com/rocmdev/rocmdev/pkg/stores"
)

// openJournal opens the run journal, creating the state directory and schema
// on first use. A nil return with a nil error means the journal is
// unavailable; callers proceed without it.
func openJournal(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// journalRecorder adapts the store to the reconciler's ActionRecorder.
type journalRecorder struct {
	store *stores.SQLiteStore
}

func (j *journalRecorder) RecordAction(ctx context.Context, runID string, unit reconcile.Unit) error {
	return j.store.CreateAction(ctx, &stores.ActionRecord{
		ID:        uuid.New().String(),
		RunID:     runID,
		Resource:  unit.Resource,
		Kind:      string(unit.Kind),
		Observed:  string(unit.Observed),
		Action:    string(unit.Action),
		Status:    string(unit.Status),
		Message:   optional(unit.Message),
		CreatedAt: time.Now(),
	})
}

// beginRun journals the start of a run. Journal failures are warnings, never
// run failures.
func beginRun(ctx context.Context, store *stores.SQLiteStore, runID, scope, series, version string, force bool) {
	now := time.Now()
	err := store.CreateRun(ctx, &stores.Run{
		ID:        runID,
		Scope:     scope,
		Series:    series,
		Version:   version,
		Force:     force,
		Status:    stores.RunStatusRunning,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to journal run start")
	}
}

// finishRun journals the run outcome.
func finishRun(ctx context.Context, store *stores.SQLiteStore, runID string, status stores.RunStatus, runErr error) {
	var msg *string
	if runErr != nil {
		msg = optional(runErr.Error())
	}
	if err := store.UpdateRunStatus(ctx, runID, status, msg); err != nil {
		log.Warn().Err(err).Msg("Failed to journal run outcome")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
