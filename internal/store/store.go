// Package store persists triage run history so operators can audit what
// each pass processed and which records were skipped.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/reliefops/triage-cli/internal/config"
	"github.com/reliefops/triage-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// CreateRun records the start of a triage pass.
	CreateRun(ctx context.Context, strategy string) (*model.Run, error)
	// CompleteRun records a finished pass with its report.
	CompleteRun(ctx context.Context, runID string, report *model.Report) error
	// FailRun records a pass aborted by a fatal error.
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the configured store backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
