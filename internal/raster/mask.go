package raster

import "math"

// ThresholdPolicy controls how BuildMask treats degenerate thresholds.
type ThresholdPolicy struct {
	// AllowNegative accepts a negative threshold, which marks every finite
	// cell as occupied. Rejected with InvalidConfigError otherwise.
	AllowNegative bool `json:"allow_negative" yaml:"allow_negative" mapstructure:"allow_negative"`
}

// CheckThreshold validates a threshold against the policy.
func (p ThresholdPolicy) CheckThreshold(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return InvalidConfig("threshold must be finite, got %v", t)
	}
	if t < 0 && !p.AllowNegative {
		return InvalidConfig("negative threshold %v occupies every cell; set allow_negative to accept it", t)
	}
	return nil
}

// BuildMask classifies g into an occupancy grid: a cell is occupied iff its
// intensity is strictly greater than threshold. No-data cells are never
// occupied. The result depends only on its inputs.
func BuildMask(g *IntensityGrid, threshold float64, policy ThresholdPolicy) (*OccupancyGrid, error) {
	if g == nil || g.rows == 0 || g.cols == 0 {
		return nil, InvalidInput("intensity grid is empty")
	}
	if g.FiniteCount() == 0 {
		return nil, InvalidInput("grid contains only non-finite values")
	}
	if err := policy.CheckThreshold(threshold); err != nil {
		return nil, err
	}
	return g.Classify(func(v float64) bool { return v > threshold }), nil
}
