package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ntl-cli/internal/config"
	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
)

const testPixel = 463.0

var testRef = raster.GeoRef{CRS: "EPSG:32648", OriginX: 580000, OriginY: 2340000}

func testAnalysis() config.AnalysisConfig {
	return config.AnalysisConfig{
		Threshold:             3,
		BaselineThreshold:     3,
		SensitivityThresholds: []float64{1, 2, 3, 5},
		PixelSizeM:            testPixel,
		CRS:                   "EPSG:32648",
		RingBoundariesM:       []float64{0, 1000, 3000, 8000},
		SectorCount:           8,
		Center:                config.CenterConfig{Mode: model.CenterModeBaselineCentroid},
		EmptyYearPolicy:       config.EmptyYearAbort,
	}
}

// blockGrid returns a 10x10 grid lit at 5.0 over rows r0..r1 and cols c0..c1 inclusive.
func blockGrid(t *testing.T, r0, r1, c0, c1 int) *raster.IntensityGrid {
	t.Helper()
	vals := make([][]float64, 10)
	for r := range vals {
		vals[r] = make([]float64, 10)
		for c := range vals[r] {
			if r >= r0 && r <= r1 && c >= c0 && c <= c1 {
				vals[r][c] = 5
			}
		}
	}
	g, err := raster.NewIntensityGrid(vals, testPixel, testRef)
	require.NoError(t, err)
	return g
}

func darkGrid(t *testing.T) *raster.IntensityGrid {
	t.Helper()
	return blockGrid(t, -1, -1, -1, -1)
}

func growingSeries(t *testing.T) map[int]*raster.IntensityGrid {
	return map[int]*raster.IntensityGrid{
		2012: blockGrid(t, 4, 5, 4, 5),
		2013: blockGrid(t, 4, 5, 4, 7),
		2014: blockGrid(t, 4, 5, 4, 9),
	}
}

func TestAnalyzer_GrowingSeries(t *testing.T) {
	res, err := NewAnalyzer(testAnalysis(), 2).Run(context.Background(), growingSeries(t))
	require.NoError(t, err)

	assert.Equal(t, 2012, res.BaselineYear)
	assert.Equal(t, model.Point{Row: 4.5, Col: 4.5}, res.ReferenceCenter)
	require.Len(t, res.Years, 3)

	cells := []int{4, 8, 12}
	for i, yr := range res.Years {
		assert.Equal(t, 2012+i, yr.Year)
		assert.Equal(t, cells[i], yr.Record.Geometry.OccupiedCells)
		require.NotNil(t, yr.Record.Rings)
		require.NotNil(t, yr.Record.Sectors)
		assert.Equal(t, res.ReferenceCenter, yr.Record.Rings.Center, "one center for every year")
		assert.Equal(t, res.ReferenceCenter, yr.Record.Sectors.Center)
		require.NotNil(t, yr.Sensitivity)
		assert.Len(t, yr.Sensitivity.Rows, 4)
	}

	assert.False(t, res.Years[0].GrowthRate.Defined())
	assert.InDelta(t, 100.0, float64(res.Years[1].GrowthRate), 1e-9)
	assert.InDelta(t, 50.0, float64(res.Years[2].GrowthRate), 1e-9)
	assert.InDelta(t, 0.0, float64(res.Years[0].CumulativeGrowth), 1e-9)
	assert.InDelta(t, 200.0, float64(res.Years[2].CumulativeGrowth), 1e-9)

	require.Len(t, res.Displacements, 2)
	d := res.Displacements[1]
	assert.Equal(t, 2013, d.FromYear)
	assert.Equal(t, 2014, d.ToYear)
	assert.InDelta(t, testPixel, d.DistanceM, 1e-9)
	assert.InDelta(t, 90.0, d.BearingDeg, 1e-9)
	assert.InDelta(t, 2*testPixel, d.CumulativeDistanceM, 1e-9)
	assert.InDelta(t, 2*testPixel, d.NetDistanceM, 1e-9)
}

func TestAnalyzer_DeterministicAcrossConcurrency(t *testing.T) {
	series := growingSeries(t)

	a, err := NewAnalyzer(testAnalysis(), 1).Run(context.Background(), series)
	require.NoError(t, err)
	b, err := NewAnalyzer(testAnalysis(), 8).Run(context.Background(), series)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
}

func TestAnalyzer_EmptyYearAborts(t *testing.T) {
	series := growingSeries(t)
	series[2013] = darkGrid(t)

	_, err := NewAnalyzer(testAnalysis(), 2).Run(context.Background(), series)
	require.Error(t, err)
	assert.True(t, raster.IsEmptyGrid(err))
	assert.Contains(t, err.Error(), "year 2013")
}

func TestAnalyzer_EmptyYearKept(t *testing.T) {
	cfg := testAnalysis()
	cfg.EmptyYearPolicy = config.EmptyYearKeep
	series := growingSeries(t)
	series[2013] = darkGrid(t)

	res, masks, err := NewAnalyzer(cfg, 2).RunWithMasks(context.Background(), series)
	require.NoError(t, err)
	require.Len(t, res.Years, 3)

	empty := res.Year(2013)
	require.NotNil(t, empty)
	assert.True(t, empty.Empty)
	assert.Zero(t, empty.Record.Geometry.AreaM2)
	assert.Nil(t, empty.Record.Centroid)
	assert.Nil(t, empty.Record.Rings)
	assert.InDelta(t, -100.0, float64(empty.GrowthRate), 1e-9)
	assert.False(t, res.Year(2014).GrowthRate.Defined(), "growth after an empty year is undefined")

	require.Len(t, res.Displacements, 1)
	assert.Equal(t, 2012, res.Displacements[0].FromYear)
	assert.Equal(t, 2014, res.Displacements[0].ToYear)

	assert.Equal(t, 0, masks[2013].Count())
	assert.Equal(t, 12, masks[2014].Count())
}

func TestAnalyzer_FixedCenter(t *testing.T) {
	cfg := testAnalysis()
	cfg.Center = config.CenterConfig{Mode: model.CenterModeFixed, Row: 0, Col: 0}

	res, err := NewAnalyzer(cfg, 0).Run(context.Background(), growingSeries(t))
	require.NoError(t, err)
	assert.Equal(t, model.Point{}, res.ReferenceCenter)
	for _, yr := range res.Years {
		assert.Equal(t, model.Point{}, yr.Record.Sectors.Center)
		// Every lit cell lies south-east of the corner.
		assert.Equal(t, yr.Record.Geometry.OccupiedCells, yr.Record.Sectors.Sectors[3].Cells)
	}
}

func TestAnalyzer_ExplicitBaselineYear(t *testing.T) {
	cfg := testAnalysis()
	cfg.BaselineYear = 2013

	res, err := NewAnalyzer(cfg, 2).Run(context.Background(), growingSeries(t))
	require.NoError(t, err)
	assert.Equal(t, 2013, res.BaselineYear)
	assert.Equal(t, model.Point{Row: 4.5, Col: 5.5}, res.ReferenceCenter)
	assert.InDelta(t, -50.0, float64(res.Years[0].CumulativeGrowth), 1e-9)

	// Displacement starts at the baseline; 2012 is not part of the chain.
	require.Len(t, res.Displacements, 1)
	d := res.Displacements[0]
	assert.Equal(t, 2013, d.FromYear)
	assert.Equal(t, 2014, d.ToYear)
	assert.InDelta(t, testPixel, d.DistanceM, 1e-9)
	assert.InDelta(t, testPixel, d.CumulativeDistanceM, 1e-9)
	assert.InDelta(t, testPixel, d.NetDistanceM, 1e-9)
	require.NotNil(t, res.Years[0].Record.Centroid, "pre-baseline years keep their centroid")

	cfg.BaselineYear = 2020
	_, err = NewAnalyzer(cfg, 2).Run(context.Background(), growingSeries(t))
	assert.True(t, raster.IsInvalidConfig(err))
}

func TestAnalyzer_BaselineCentroidNeedsLitBaseline(t *testing.T) {
	cfg := testAnalysis()
	cfg.EmptyYearPolicy = config.EmptyYearKeep
	series := growingSeries(t)
	series[2012] = darkGrid(t)

	_, err := NewAnalyzer(cfg, 2).Run(context.Background(), series)
	require.Error(t, err)
	assert.True(t, raster.IsEmptyGrid(err))
	assert.Contains(t, err.Error(), "reference center")
}

func TestAnalyzer_RejectsMismatchedGrids(t *testing.T) {
	series := growingSeries(t)
	g, err := raster.NewIntensityGrid([][]float64{{5}}, 500, testRef)
	require.NoError(t, err)
	series[2015] = g

	_, err = NewAnalyzer(testAnalysis(), 2).Run(context.Background(), series)
	assert.True(t, raster.IsInvalidInput(err))
}

func TestAnalyzer_InvalidConfig(t *testing.T) {
	cfg := testAnalysis()
	cfg.SectorCount = 0
	_, err := NewAnalyzer(cfg, 2).Run(context.Background(), growingSeries(t))
	assert.True(t, raster.IsInvalidConfig(err))

	_, err = NewAnalyzer(testAnalysis(), 2).Run(context.Background(), nil)
	assert.True(t, raster.IsInvalidInput(err))
}

func TestAnalyzer_Cleaning(t *testing.T) {
	cfg := testAnalysis()
	cfg.Cleaning.MinClusterCells = 9

	res, err := NewAnalyzer(cfg, 2).Run(context.Background(), map[int]*raster.IntensityGrid{
		2012: blockGrid(t, 2, 4, 2, 4),
		2013: blockGrid(t, 2, 4, 2, 5),
	})
	require.NoError(t, err)
	assert.Equal(t, 9, res.Years[0].Record.Geometry.OccupiedCells)

	cfg.Cleaning.MinClusterCells = 10
	_, err = NewAnalyzer(cfg, 2).Run(context.Background(), map[int]*raster.IntensityGrid{
		2012: blockGrid(t, 2, 4, 2, 4),
		2013: blockGrid(t, 2, 4, 2, 5),
	})
	assert.True(t, raster.IsEmptyGrid(err), "the baseline block is removed as too small")
}

func TestMask_AppliesCleaning(t *testing.T) {
	vals := make([][]float64, 10)
	for r := range vals {
		vals[r] = make([]float64, 10)
		for c := range vals[r] {
			if r >= 2 && r <= 4 && c >= 2 && c <= 4 {
				vals[r][c] = 5
			}
		}
	}
	vals[8][8] = 5
	g, err := raster.NewIntensityGrid(vals, testPixel, testRef)
	require.NoError(t, err)

	cfg := testAnalysis()
	raw, err := Mask(cfg, g)
	require.NoError(t, err)
	assert.Equal(t, 10, raw.Count())

	cfg.Cleaning.MinClusterCells = 2
	cleaned, err := Mask(cfg, g)
	require.NoError(t, err)
	assert.Equal(t, 9, cleaned.Count(), "isolated cell removed")

	cfg.Cleaning = config.CleaningConfig{Open: true}
	opened, err := Mask(cfg, g)
	require.NoError(t, err)
	assert.False(t, opened.At(8, 8))
}

func TestAnalyzer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAnalyzer(testAnalysis(), 1).Run(ctx, growingSeries(t))
	assert.ErrorIs(t, err, context.Canceled)
}
