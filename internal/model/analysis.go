package model

// CenterMode selects how the series reference center is chosen.
type CenterMode string

const (
	CenterModeFixed            CenterMode = "fixed"
	CenterModeBaselineCentroid CenterMode = "baseline_centroid"
)

// YearResult is one row of the time series.
type YearResult struct {
	Year             int                `json:"year"`
	Record           MetricRecord       `json:"record"`
	GrowthRate       Float              `json:"growth_rate"`       // percent vs. previous year
	CumulativeGrowth Float              `json:"cumulative_growth"` // percent vs. baseline year
	Sensitivity      *SensitivityResult `json:"sensitivity,omitempty"`
	Empty            bool               `json:"empty"`
}

// AnalysisResult is the outcome of analyzing a yearly series with one configuration.
type AnalysisResult struct {
	BaselineYear    int                  `json:"baseline_year"`
	Threshold       float64              `json:"threshold"`
	PixelSizeM      float64              `json:"pixel_size_m"`
	CRS             string               `json:"crs"`
	CenterMode      CenterMode           `json:"center_mode"`
	ReferenceCenter Point                `json:"reference_center"`
	Years           []YearResult         `json:"years"`
	Displacements   []DisplacementRecord `json:"displacements"`
}

// Year returns the result for year y, or nil.
func (r *AnalysisResult) Year(y int) *YearResult {
	for i := range r.Years {
		if r.Years[i].Year == y {
			return &r.Years[i]
		}
	}
	return nil
}

// Confusion is a binary classification confusion matrix.
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TN int `json:"tn"`
}

// Total returns the number of compared cells.
func (c Confusion) Total() int { return c.TP + c.FP + c.FN + c.TN }

// Accuracy holds agreement statistics derived from a Confusion.
type Accuracy struct {
	Overall   float64 `json:"overall_accuracy"`
	Producers float64 `json:"producers_accuracy"`
	Users     float64 `json:"users_accuracy"`
	Kappa     float64 `json:"kappa"`
}

// ValidationReport compares a lit-area mask against a reference classification.
type ValidationReport struct {
	Rows             int       `json:"rows"`
	Cols             int       `json:"cols"`
	DownsampleFactor int       `json:"downsample_factor"`
	RefThreshold     float64   `json:"ref_threshold"`
	Confusion        Confusion `json:"confusion"`
	Accuracy         Accuracy  `json:"accuracy"`
}
