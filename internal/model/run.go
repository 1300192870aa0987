package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusLoading   RunStatus = "loading"
	RunStatusAnalyzing RunStatus = "analyzing"
	RunStatusReporting RunStatus = "reporting"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one persisted analysis of a yearly series.
type Run struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	Snapshot  string          `json:"snapshot"` // YAML of the AnalysisConfig used
	Status    RunStatus       `json:"status"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Footprint is the stored lit-area geometry for one year of a run.
type Footprint struct {
	RunID     string    `json:"run_id"`
	Year      int       `json:"year"`
	EWKB      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
