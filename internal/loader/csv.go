// Package loader reads yearly intensity rasters from CSV, XLSX and
// single-band TIFF files and groups them into annual composites.
package loader

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ntl-cli/internal/raster"
)

// Meta carries what a raw grid file does not: cell size, georeference and
// the scale applied to decoded values.
type Meta struct {
	PixelSize float64
	Ref       raster.GeoRef
	Scale     float64 // 0 means 1
	Sheet     string  // XLSX sheet name; first sheet when empty
}

func (m Meta) scale() float64 {
	if m.Scale == 0 {
		return 1
	}
	return m.Scale
}

// streamRows reads CSV records and sends them to a channel. Both channels
// are closed when reading completes.
func streamRows(ctx context.Context, r io.Reader) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.Comment = '#'
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "loader: csv context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "loader: csv read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "loader: csv context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSVGrid parses a numeric CSV matrix, one raster row per line. Empty
// cells and nan/nodata markers become NaN. A first line with non-numeric
// cells is treated as a header and skipped.
func ReadCSVGrid(ctx context.Context, r io.Reader, meta Meta) ([][]float64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := streamRows(ctx, r)
	scale := meta.scale()

	var rows [][]float64
	line := 0
	for record := range rowCh {
		line++
		vals, err := parseRow(record, scale)
		if err != nil {
			if line == 1 {
				continue
			}
			cancel()
			for range rowCh {
			}
			return nil, eris.Wrapf(err, "loader: csv line %d", line)
		}
		rows = append(rows, vals)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, raster.InvalidInput("csv holds no numeric rows")
	}
	return rows, nil
}

func parseRow(cells []string, scale float64) ([]float64, error) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := parseCell(c)
		if err != nil {
			return nil, raster.InvalidInput("column %d: %q is not a number", i, c)
		}
		out[i] = v * scale
	}
	return out, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "nodata", "na", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
