package pipeline

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ntl-cli/internal/config"
	"github.com/sells-group/ntl-cli/internal/loader"
	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
	"github.com/sells-group/ntl-cli/internal/report"
	"github.com/sells-group/ntl-cli/internal/resilience"
	"github.com/sells-group/ntl-cli/internal/store"
)

// Outcome is what one recorded run produced.
type Outcome struct {
	RunID   string
	Result  *model.AnalysisResult
	Written *report.Written
}

// Runner executes a full analysis run: load, analyze, write reports and
// record the run with its footprints in the store.
type Runner struct {
	cfg   *config.Config
	store store.Store
}

// NewRunner creates a Runner. st may be nil, in which case nothing is recorded.
func NewRunner(cfg *config.Config, st store.Store) *Runner {
	return &Runner{cfg: cfg, store: st}
}

// Meta returns the loader metadata derived from the configuration.
func Meta(cfg *config.Config) loader.Meta {
	return loader.Meta{
		PixelSize: cfg.Analysis.PixelSizeM,
		Ref: raster.GeoRef{
			CRS:     cfg.Analysis.CRS,
			OriginX: cfg.Input.OriginX,
			OriginY: cfg.Input.OriginY,
		},
		Scale: cfg.Input.Scale,
		Sheet: cfg.Input.Sheet,
	}
}

// Run processes every yearly raster in the configured input directory.
func (r *Runner) Run(ctx context.Context, label string) (*Outcome, error) {
	log := zap.L().With(zap.String("label", label), zap.String("input", r.cfg.Input.Dir))
	log.Info("pipeline: starting run")

	snapshot, err := config.MarshalSnapshot(r.cfg.Analysis)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: snapshot")
	}

	out := &Outcome{}
	if r.store != nil {
		run, err := r.store.CreateRun(ctx, label, snapshot)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		out.RunID = run.ID
		log = log.With(zap.String("run_id", run.ID))
	}

	setStatus := func(status model.RunStatus) {
		if r.store == nil {
			return
		}
		if statusErr := r.store.UpdateRunStatus(ctx, out.RunID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}
	fail := func(err error) error {
		log.Error("pipeline: run failed", zap.Error(err))
		if r.store != nil {
			// The run context may be cancelled already.
			if failErr := r.store.FailRun(context.WithoutCancel(ctx), out.RunID, err.Error()); failErr != nil {
				log.Warn("pipeline: failed to record failure", zap.Error(failErr))
			}
		}
		return err
	}

	setStatus(model.RunStatusLoading)
	years, err := loader.LoadDir(ctx, r.cfg.Input.Dir, Meta(r.cfg))
	if err != nil {
		return out, fail(eris.Wrap(err, "pipeline: load"))
	}

	setStatus(model.RunStatusAnalyzing)
	res, masks, err := NewAnalyzer(r.cfg.Analysis, r.cfg.Batch.MaxConcurrentYears).RunWithMasks(ctx, years)
	if err != nil {
		return out, fail(eris.Wrap(err, "pipeline: analyze"))
	}
	out.Result = res

	setStatus(model.RunStatusReporting)
	written, err := report.WriteAll(r.cfg.Output, res, masks, snapshot)
	if err != nil {
		return out, fail(eris.Wrap(err, "pipeline: report"))
	}
	out.Written = written

	if r.store != nil {
		fps, err := footprints(masks)
		if err != nil {
			return out, fail(eris.Wrap(err, "pipeline: footprints"))
		}
		if err := r.retry(ctx, "save footprints", func(ctx context.Context) error {
			return r.store.SaveFootprints(ctx, out.RunID, fps)
		}); err != nil {
			return out, fail(eris.Wrap(err, "pipeline: save footprints"))
		}
		if err := r.retry(ctx, "complete run", func(ctx context.Context) error {
			return r.store.CompleteRun(ctx, out.RunID, res)
		}); err != nil {
			return out, fail(eris.Wrap(err, "pipeline: complete run"))
		}
	}

	log.Info("pipeline: run complete",
		zap.Int("years", len(res.Years)),
		zap.Int("tables", len(written.Tables)),
		zap.Int("shapefiles", len(written.Shapefiles)),
	)
	return out, nil
}

// retry runs a store write with backoff on transient database errors.
func (r *Runner) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = r.cfg.Store.RetryAttempts
	rc.OnRetry = resilience.RetryLogger(op)
	return resilience.Do(ctx, rc, fn)
}

// footprints encodes every non-empty mask in year order.
func footprints(masks map[int]*raster.OccupancyGrid) ([]model.Footprint, error) {
	years := make([]int, 0, len(masks))
	for y, m := range masks {
		if m != nil && m.Count() > 0 {
			years = append(years, y)
		}
	}
	sort.Ints(years)

	fps := make([]model.Footprint, 0, len(years))
	for _, y := range years {
		b, err := report.EncodeFootprint(masks[y])
		if err != nil {
			return nil, eris.Wrapf(err, "year %d", y)
		}
		fps = append(fps, model.Footprint{Year: y, EWKB: b})
	}
	return fps, nil
}
