package pipeline

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ntl-cli/internal/config"
	"github.com/sells-group/ntl-cli/internal/metrics"
	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
)

// Analyzer runs the metric engine over a yearly series with one immutable
// configuration.
type Analyzer struct {
	cfg         config.AnalysisConfig
	concurrency int
}

// NewAnalyzer creates an Analyzer. concurrency bounds how many years are
// processed at once; values below 1 mean no bound.
func NewAnalyzer(cfg config.AnalysisConfig, concurrency int) *Analyzer {
	return &Analyzer{cfg: cfg, concurrency: concurrency}
}

// Config returns the configuration the Analyzer was built with.
func (a *Analyzer) Config() config.AnalysisConfig { return a.cfg }

// Run analyzes every year of the series and returns the time series,
// decompositions and centroid displacements in year order.
func (a *Analyzer) Run(ctx context.Context, years map[int]*raster.IntensityGrid) (*model.AnalysisResult, error) {
	res, _, err := a.RunWithMasks(ctx, years)
	return res, err
}

// RunWithMasks is Run that also returns the occupancy grid measured for
// each year.
func (a *Analyzer) RunWithMasks(ctx context.Context, years map[int]*raster.IntensityGrid) (*model.AnalysisResult, map[int]*raster.OccupancyGrid, error) {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: validate config")
	}
	if len(years) == 0 {
		return nil, nil, raster.InvalidInput("no years to analyze")
	}

	order := make([]int, 0, len(years))
	for y, g := range years {
		if g == nil {
			return nil, nil, raster.InvalidInput("year %d has no grid", y)
		}
		if g.PixelSize() != cfg.PixelSizeM || g.Ref().CRS != cfg.CRS {
			return nil, nil, raster.InvalidInput("year %d grid (%v m, %s) does not match configured (%v m, %s)",
				y, g.PixelSize(), g.Ref().CRS, cfg.PixelSizeM, cfg.CRS)
		}
		order = append(order, y)
	}
	sort.Ints(order)

	baseYear := cfg.BaselineYear
	if baseYear == 0 {
		baseYear = order[0]
	}
	baseIdx := sort.SearchInts(order, baseYear)
	if baseIdx == len(order) || order[baseIdx] != baseYear {
		return nil, nil, raster.InvalidConfig("baseline year %d is not among input years %v", baseYear, order)
	}

	log := zap.L().With(zap.Int("baseline_year", baseYear), zap.Int("years", len(order)))
	log.Info("pipeline: starting analysis", zap.Float64("threshold", cfg.Threshold))

	baseMask, err := a.mask(years[baseYear])
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: year %d", baseYear)
	}
	center, err := a.resolveCenter(baseMask)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: reference center from year %d", baseYear)
	}
	log.Info("pipeline: reference center resolved",
		zap.String("mode", string(cfg.Center.Mode)),
		zap.Float64("row", center.Row),
		zap.Float64("col", center.Col),
	)

	rows := make([]model.YearResult, len(order))
	masks := make([]*raster.OccupancyGrid, len(order))

	g, gCtx := errgroup.WithContext(ctx)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, year := range order {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return eris.Wrap(err, "pipeline: cancelled")
			}
			m := baseMask
			if year != baseYear {
				var err error
				if m, err = a.mask(years[year]); err != nil {
					return eris.Wrapf(err, "pipeline: year %d", year)
				}
			}
			yr, err := a.analyzeYear(year, years[year], m, center)
			if err != nil {
				return eris.Wrapf(err, "pipeline: year %d", year)
			}
			rows[i], masks[i] = yr, m
			log.Info("pipeline: year analyzed",
				zap.Int("year", year),
				zap.Int("cells", yr.Record.Geometry.OccupiedCells),
				zap.Float64("area_km2", yr.Record.Geometry.AreaKM2()),
				zap.Float64("compactness", yr.Record.Geometry.Compactness),
				zap.Int("components", yr.Record.Geometry.Components),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	areas := make([]float64, len(rows))
	for i := range rows {
		areas[i] = rows[i].Record.Geometry.AreaM2
	}
	growth := metrics.GrowthRates(areas)
	cumulative := metrics.CumulativeGrowth(areas, baseIdx)
	for i := range rows {
		rows[i].GrowthRate = growth[i]
		rows[i].CumulativeGrowth = cumulative[i]
	}

	displacements, err := trackCentroids(rows, cfg, baseYear)
	if err != nil {
		return nil, nil, err
	}

	out := &model.AnalysisResult{
		BaselineYear:    baseYear,
		Threshold:       cfg.Threshold,
		PixelSizeM:      cfg.PixelSizeM,
		CRS:             cfg.CRS,
		CenterMode:      cfg.Center.Mode,
		ReferenceCenter: center,
		Years:           rows,
		Displacements:   displacements,
	}
	byYear := make(map[int]*raster.OccupancyGrid, len(order))
	for i, y := range order {
		byYear[y] = masks[i]
	}
	log.Info("pipeline: analysis complete", zap.Int("displacements", len(displacements)))
	return out, byYear, nil
}

func (a *Analyzer) mask(g *raster.IntensityGrid) (*raster.OccupancyGrid, error) {
	return Mask(a.cfg, g)
}

// Mask thresholds g and applies the configured cleanup. Every command that
// scores a lit-area mask builds it here.
func Mask(cfg config.AnalysisConfig, g *raster.IntensityGrid) (*raster.OccupancyGrid, error) {
	m, err := raster.BuildMask(g, cfg.Threshold, cfg.ThresholdPolicy)
	if err != nil {
		return nil, err
	}
	if cfg.Cleaning.Open {
		m = raster.Open(m)
	}
	if cfg.Cleaning.MinClusterCells > 1 {
		m = raster.RemoveSmallClusters(m, cfg.Cleaning.MinClusterCells)
	}
	return m, nil
}

func (a *Analyzer) resolveCenter(baseMask *raster.OccupancyGrid) (model.Point, error) {
	if a.cfg.Center.Mode == model.CenterModeFixed {
		return model.Point{Row: a.cfg.Center.Row, Col: a.cfg.Center.Col}, nil
	}
	return metrics.Centroid(baseMask)
}

func (a *Analyzer) analyzeYear(year int, g *raster.IntensityGrid, m *raster.OccupancyGrid, center model.Point) (model.YearResult, error) {
	cfg := a.cfg
	geo, err := metrics.Geometry(m, cfg.PixelSizeM)
	if err != nil {
		return model.YearResult{}, err
	}
	yr := model.YearResult{
		Year:   year,
		Record: model.MetricRecord{Year: year, Threshold: cfg.Threshold, Geometry: geo},
	}

	if len(cfg.SensitivityThresholds) > 0 {
		sens, err := metrics.Sensitivity(g, cfg.SensitivityThresholds, cfg.BaselineThreshold, cfg.ThresholdPolicy)
		if err != nil {
			return model.YearResult{}, err
		}
		yr.Sensitivity = &sens
	}

	if m.Count() == 0 {
		if cfg.EmptyYearPolicy != config.EmptyYearKeep {
			return model.YearResult{}, raster.EmptyGrid("year analysis")
		}
		yr.Empty = true
		return yr, nil
	}

	centroid, err := metrics.Centroid(m)
	if err != nil {
		return model.YearResult{}, err
	}
	rings, err := metrics.Rings(m, center, cfg.PixelSizeM, cfg.RingBoundariesM)
	if err != nil {
		return model.YearResult{}, err
	}
	sectors, err := metrics.Sectors(m, center, cfg.PixelSizeM, cfg.SectorCount)
	if err != nil {
		return model.YearResult{}, err
	}
	yr.Record.Centroid = &centroid
	yr.Record.Rings = &rings
	yr.Record.Sectors = &sectors
	return yr, nil
}

// trackCentroids chains displacements across the non-empty years in order,
// starting at the baseline year. Earlier years keep their centroids but take
// no part in the chain.
func trackCentroids(rows []model.YearResult, cfg config.AnalysisConfig, baseYear int) ([]model.DisplacementRecord, error) {
	tr := metrics.NewTracker()
	var out []model.DisplacementRecord
	for _, r := range rows {
		if r.Year < baseYear || r.Record.Centroid == nil {
			continue
		}
		rec, err := tr.ObservePoint(r.Year, *r.Record.Centroid, cfg.PixelSizeM, cfg.CRS)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: track year %d", r.Year)
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}
