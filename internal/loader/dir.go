package loader

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ntl-cli/internal/raster"
)

var yearRe = regexp.MustCompile(`(19|20)\d{2}`)

// ParseYear returns the first four-digit year (1900-2099) in a file name.
func ParseYear(name string) (int, bool) {
	m := yearRe.FindString(filepath.Base(name))
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// Supported reports whether path has a readable raster extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx", ".tif", ".tiff":
		return true
	}
	return false
}

// ReadValues reads a raster file into a value matrix, choosing the decoder
// by extension.
func ReadValues(ctx context.Context, path string, meta Meta) ([][]float64, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSXGrid(path, meta)
	case ".csv", ".tif", ".tiff":
	default:
		return nil, raster.InvalidInput("unsupported raster file %s", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadCSVGrid(ctx, f, meta)
	}
	return ReadTIFFGrid(f, meta)
}

// ReadIntensity reads one intensity grid from path.
func ReadIntensity(ctx context.Context, path string, meta Meta) (*raster.IntensityGrid, error) {
	vals, err := ReadValues(ctx, path, meta)
	if err != nil {
		return nil, err
	}
	g, err := raster.NewIntensityGrid(vals, meta.PixelSize, meta.Ref)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: %s", filepath.Base(path))
	}
	return g, nil
}

// ReadReference reads a signed value grid, such as a built-up index, from path.
func ReadReference(ctx context.Context, path string, meta Meta) (*raster.Grid, error) {
	vals, err := ReadValues(ctx, path, meta)
	if err != nil {
		return nil, err
	}
	g, err := raster.NewGrid(vals, meta.PixelSize, meta.Ref)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: %s", filepath.Base(path))
	}
	return g, nil
}

// LoadDir reads every supported raster in dir, groups files by the year in
// their name and returns one grid per year. Several files for one year are
// merged with raster.Composite. Files without a year are logged and skipped.
func LoadDir(ctx context.Context, dir string, meta Meta) (map[int]*raster.IntensityGrid, error) {
	log := zap.L().With(zap.String("dir", dir))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read dir %s", dir)
	}

	byYear := make(map[int][]string)
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		year, ok := ParseYear(e.Name())
		if !ok {
			log.Warn("loader: no year in file name, skipping", zap.String("file", e.Name()))
			continue
		}
		byYear[year] = append(byYear[year], filepath.Join(dir, e.Name()))
	}
	if len(byYear) == 0 {
		return nil, raster.InvalidInput("no yearly rasters found in %s", dir)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make(map[int]*raster.IntensityGrid, len(byYear))
	for _, year := range years {
		paths := byYear[year]
		sort.Strings(paths)

		grids := make([]*raster.IntensityGrid, 0, len(paths))
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "loader: context cancelled")
			}
			g, err := ReadIntensity(ctx, p, meta)
			if err != nil {
				return nil, err
			}
			grids = append(grids, g)
		}

		g := grids[0]
		if len(grids) > 1 {
			g, err = raster.Composite(grids)
			if err != nil {
				return nil, eris.Wrapf(err, "loader: composite %d", year)
			}
		}
		out[year] = g
		log.Info("loader: year loaded",
			zap.Int("year", year),
			zap.Int("files", len(paths)),
			zap.Int("rows", g.Rows()),
			zap.Int("cols", g.Cols()),
		)
	}
	return out, nil
}
