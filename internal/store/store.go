// Package store persists analysis runs, their results and the per-year
// lit-area footprints.
package store

import (
	"context"
	"errors"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ntl-cli/internal/config"
	"github.com/sells-group/ntl-cli/internal/model"
)

// ErrNotFound is returned, wrapped, when a run or footprint does not exist.
var ErrNotFound = eris.New("store: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Label  string          `json:"label,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, label string, snapshot []byte) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.AnalysisResult) error
	FailRun(ctx context.Context, runID string, msg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Footprints
	SaveFootprints(ctx context.Context, runID string, footprints []model.Footprint) error
	GetFootprint(ctx context.Context, runID string, year int) (*model.Footprint, error)
	ListFootprintYears(ctx context.Context, runID string) ([]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the Store selected by cfg.Driver and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// yearRow is the flattened per-year summary stored next to the result JSON
// so series can be queried in SQL.
type yearRow struct {
	Year        int
	AreaM2      float64
	PerimeterM  float64
	Compactness float64
	Components  int
	GrowthRate  *float64
	CentroidRow *float64
	CentroidCol *float64
	Empty       bool
}

func yearRows(res *model.AnalysisResult) []yearRow {
	rows := make([]yearRow, 0, len(res.Years))
	for _, yr := range res.Years {
		g := yr.Record.Geometry
		r := yearRow{
			Year:        yr.Year,
			AreaM2:      g.AreaM2,
			PerimeterM:  g.PerimeterM,
			Compactness: g.Compactness,
			Components:  g.Components,
			GrowthRate:  nullable(float64(yr.GrowthRate)),
			Empty:       yr.Empty,
		}
		if c := yr.Record.Centroid; c != nil {
			r.CentroidRow, r.CentroidCol = &c.Row, &c.Col
		}
		rows = append(rows, r)
	}
	return rows
}

func nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
