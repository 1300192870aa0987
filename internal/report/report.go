package report

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ntl-cli/internal/config"
	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
)

// SnapshotName is the file name of the recorded analysis configuration.
const SnapshotName = "config_snapshot.yaml"

// Written lists the files produced by WriteAll.
type Written struct {
	Dir        string
	Tables     []string
	Workbook   string
	Summary    string
	Snapshot   string
	Shapefiles []string
}

// WriteAll writes every report for res into out.Dir: the CSV tables, the
// summary, the configuration snapshot and, when enabled, the workbook and
// one footprint shapefile per non-empty year in masks.
func WriteAll(out config.OutputConfig, res *model.AnalysisResult, masks map[int]*raster.OccupancyGrid, snapshot []byte) (*Written, error) {
	if res == nil {
		return nil, eris.New("report: nil result")
	}
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", out.Dir)
	}
	log := zap.L().With(zap.String("dir", out.Dir))
	w := &Written{Dir: out.Dir}

	tables := Tables(res)
	for _, t := range tables {
		path, err := WriteCSVFile(out.Dir, t)
		if err != nil {
			return nil, err
		}
		w.Tables = append(w.Tables, path)
		log.Debug("report: table written", zap.String("table", t.Name), zap.Int("rows", len(t.Rows)))
	}

	if out.Workbook {
		path, err := WriteWorkbook(out.Dir, tables)
		if err != nil {
			return nil, err
		}
		w.Workbook = path
	}

	summary := filepath.Join(out.Dir, SummaryName)
	f, err := os.Create(summary)
	if err != nil {
		return nil, eris.Wrapf(err, "report: create %s", summary)
	}
	if err := WriteSummary(f, res, out.Language); err != nil {
		f.Close() //nolint:errcheck
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrapf(err, "report: close %s", summary)
	}
	w.Summary = summary

	if len(snapshot) > 0 {
		path := filepath.Join(out.Dir, SnapshotName)
		if err := os.WriteFile(path, snapshot, 0o644); err != nil {
			return nil, eris.Wrapf(err, "report: write %s", path)
		}
		w.Snapshot = path
	}

	if out.Shapefiles {
		years := make([]int, 0, len(masks))
		for y := range masks {
			years = append(years, y)
		}
		sort.Ints(years)
		for _, y := range years {
			m := masks[y]
			if m == nil || m.Count() == 0 {
				continue
			}
			path, err := WriteShapefile(out.Dir, y, m)
			if err != nil {
				return nil, err
			}
			w.Shapefiles = append(w.Shapefiles, path)
		}
	}

	log.Info("report: written",
		zap.Int("tables", len(w.Tables)),
		zap.Bool("workbook", w.Workbook != ""),
		zap.Int("shapefiles", len(w.Shapefiles)),
	)
	return w, nil
}
