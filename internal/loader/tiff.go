package loader

import (
	"image"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/image/tiff"

	"github.com/sells-group/ntl-cli/internal/raster"
)

// ReadTIFFGrid decodes a single-band 8 or 16 bit grayscale TIFF. Pixel
// values are multiplied by meta.Scale.
func ReadTIFFGrid(r io.Reader, meta Meta) ([][]float64, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, eris.Wrap(err, "loader: decode tiff")
	}

	scale := meta.scale()
	b := img.Bounds()
	rows := make([][]float64, b.Dy())
	switch g := img.(type) {
	case *image.Gray:
		for y := range rows {
			rows[y] = make([]float64, b.Dx())
			for x := range rows[y] {
				rows[y][x] = float64(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y) * scale
			}
		}
	case *image.Gray16:
		for y := range rows {
			rows[y] = make([]float64, b.Dx())
			for x := range rows[y] {
				rows[y][x] = float64(g.Gray16At(b.Min.X+x, b.Min.Y+y).Y) * scale
			}
		}
	default:
		return nil, raster.InvalidInput("unsupported tiff color model %T, want single-band grayscale", img)
	}
	return rows, nil
}
