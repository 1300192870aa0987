package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/ntl-cli/internal/metrics"
	"github.com/sells-group/ntl-cli/internal/model"
)

// SummaryName is the file name of the plain-text summary.
const SummaryName = "summary_report.txt"

// Stats are the series-level figures quoted in the summary.
type Stats struct {
	FirstYear, LastYear int
	FirstAreaKM2        float64
	LastAreaKM2         float64
	TotalGrowthPct      model.Float // last vs. first year
	MeanAnnualGrowthPct model.Float // mean of the defined year-on-year rates
	AreaTrendKM2PerYear model.Float // least-squares slope of area on year
	PathLengthM         float64
	NetDisplacementM    float64
	NetDirection        string
	EmptyYears          []int
	MeanCompactness     model.Float
}

// Summarize derives Stats from res.
func Summarize(res *model.AnalysisResult) Stats {
	s := Stats{
		TotalGrowthPct:      model.Undefined(),
		MeanAnnualGrowthPct: model.Undefined(),
		AreaTrendKM2PerYear: model.Undefined(),
		MeanCompactness:     model.Undefined(),
	}
	if len(res.Years) == 0 {
		return s
	}

	first, last := res.Years[0], res.Years[len(res.Years)-1]
	s.FirstYear, s.LastYear = first.Year, last.Year
	s.FirstAreaKM2 = first.Record.Geometry.AreaKM2()
	s.LastAreaKM2 = last.Record.Geometry.AreaKM2()
	if s.FirstAreaKM2 > 0 {
		s.TotalGrowthPct = model.Float((s.LastAreaKM2 - s.FirstAreaKM2) / s.FirstAreaKM2 * 100)
	}

	var rates, years, areas, compact []float64
	for _, yr := range res.Years {
		if yr.GrowthRate.Defined() {
			rates = append(rates, float64(yr.GrowthRate))
		}
		years = append(years, float64(yr.Year))
		areas = append(areas, yr.Record.Geometry.AreaKM2())
		if yr.Empty {
			s.EmptyYears = append(s.EmptyYears, yr.Year)
		} else {
			compact = append(compact, yr.Record.Geometry.Compactness)
		}
	}
	if len(rates) > 0 {
		s.MeanAnnualGrowthPct = model.Float(stat.Mean(rates, nil))
	}
	if len(years) > 1 {
		_, slope := stat.LinearRegression(years, areas, nil, false)
		s.AreaTrendKM2PerYear = model.Float(slope)
	}
	if len(compact) > 0 {
		s.MeanCompactness = model.Float(stat.Mean(compact, nil))
	}

	if n := len(res.Displacements); n > 0 {
		d := res.Displacements[n-1]
		s.PathLengthM = d.CumulativeDistanceM
		s.NetDisplacementM = d.NetDistanceM
		s.NetDirection = metrics.CompassName(d.NetBearingDeg, 16)
	}
	return s
}

// WriteSummary writes a human-readable summary of res to w. Numbers are
// formatted for lang, a BCP 47 tag; an unparseable tag falls back to English.
func WriteSummary(w io.Writer, res *model.AnalysisResult, lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	s := Summarize(res)

	var werr error
	printf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = p.Fprintf(w, format, args...)
	}

	printf("NIGHTTIME LIGHT URBAN EXPANSION SUMMARY\n")
	printf("=======================================\n\n")
	printf("Years analyzed:      %d (%s-%s)\n", len(res.Years), year(s.FirstYear), year(s.LastYear))
	printf("Baseline year:       %s\n", year(res.BaselineYear))
	printf("Lit threshold:       %v DN\n", res.Threshold)
	printf("Pixel size:          %.1f m (%s)\n", res.PixelSizeM, res.CRS)
	printf("Reference center:    row %.2f, col %.2f (%s)\n\n", res.ReferenceCenter.Row, res.ReferenceCenter.Col, res.CenterMode)

	printf("LIT AREA\n")
	for _, yr := range res.Years {
		g := yr.Record.Geometry
		printf("  %s  %12.2f km²  compactness %.3f  components %d  growth %s\n",
			year(yr.Year), g.AreaKM2(), g.Compactness, g.Components, pct(p, yr.GrowthRate))
	}
	printf("\n")
	printf("Area %s:           %.2f km²\n", year(s.FirstYear), s.FirstAreaKM2)
	printf("Area %s:           %.2f km²\n", year(s.LastYear), s.LastAreaKM2)
	printf("Total growth:        %s\n", pct(p, s.TotalGrowthPct))
	printf("Mean annual growth:  %s\n", pct(p, s.MeanAnnualGrowthPct))
	if s.AreaTrendKM2PerYear.Defined() {
		printf("Linear area trend:   %.2f km²/yr\n", float64(s.AreaTrendKM2PerYear))
	}
	if s.MeanCompactness.Defined() {
		printf("Mean compactness:    %.3f\n", float64(s.MeanCompactness))
	}
	if len(s.EmptyYears) > 0 {
		printf("Years without lit cells: %s\n", fmt.Sprint(s.EmptyYears))
	}

	printf("\nCENTROID MOVEMENT\n")
	if len(res.Displacements) == 0 {
		printf("  fewer than two years with lit cells\n")
	}
	for _, d := range res.Displacements {
		printf("  %s→%s  %10.1f m  %5.1f° %s\n", year(d.FromYear), year(d.ToYear), d.DistanceM, d.BearingDeg, d.Direction)
	}
	if len(res.Displacements) > 0 {
		printf("Path length:         %.1f m\n", s.PathLengthM)
		printf("Net displacement:    %.1f m toward %s\n", s.NetDisplacementM, s.NetDirection)
	}

	if werr != nil {
		return eris.Wrap(werr, "report: write summary")
	}
	return nil
}

func pct(p *message.Printer, f model.Float) string {
	if !f.Defined() {
		return "n/a"
	}
	return p.Sprintf("%+.1f%%", float64(f))
}

// year renders y without locale digit grouping.
func year(y int) string { return strconv.Itoa(y) }
