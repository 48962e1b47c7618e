// Package store persists segmentation runs, labeled customer records, cluster
// profiles, and elbow curves to SQLite or Postgres.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-cli/internal/config"
	"github.com/sells-group/segment-cli/internal/model"
)

// ErrNotFound means the requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus
	Limit  int
}

// Store defines the persistence interface for segmentation results.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, input string, k int, seed int64) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, customers int, ratio float64) error
	FailRun(ctx context.Context, runID string, msg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results
	SaveCustomers(ctx context.Context, runID string, customers []model.Customer) error
	SaveProfiles(ctx context.Context, runID string, profiles []model.ClusterProfile) error
	SaveElbow(ctx context.Context, runID string, curve []model.ElbowPoint) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store from config.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
