package service

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

type ChartMode string

const (
	ChartCumulative ChartMode = "cumulative"
	ChartDaily      ChartMode = "daily"
)

// YearChart holds two years of counts on the current year's calendar grid.
// Current stops at the cutoff day; Previous covers the whole year.
type YearChart struct {
	Mode         ChartMode
	CurrentYear  int
	PreviousYear int
	Days         []time.Time
	Current      []float64
	Previous     []float64
	Cutoff       time.Time
}

// CutoffIndex is the grid position of the last current-year value.
func (c *YearChart) CutoffIndex() int {
	return len(c.Current) - 1
}

// PreviousTotal is the previous year's full-year count.
func (c *YearChart) PreviousTotal() float64 {
	if c.Mode == ChartCumulative {
		if len(c.Previous) == 0 {
			return 0
		}
		return c.Previous[len(c.Previous)-1]
	}
	return floats.Sum(c.Previous)
}

type ChartRenderer interface {
	Render(chart *YearChart) (string, error)
}

// ToDailyTotal turns daily counts into a running total.
func ToDailyTotal(values []float64) []float64 {
	totals := make([]float64, len(values))
	if len(values) == 0 {
		return totals
	}
	return floats.CumSum(totals, values)
}

// AlignYears lays current and previous out on the current year's days.
// Days without a measurement count as zero, so cumulative lines stay flat
// over them. On a non-leap current year, Feb 29 of the previous year is
// folded into Feb 28.
func AlignYears(current, previous models.CounterData, mode ChartMode) (*YearChart, error) {
	if len(current) == 0 {
		return nil, fmt.Errorf("%w: no current year data to chart", models.ErrNoDataFound)
	}
	if mode == "" {
		mode = ChartCumulative
	}

	year := current[0].Date.Year()
	cutoff := current[len(current)-1].Date
	if cutoff.Year() != year {
		return nil, fmt.Errorf("current year data spans %d to %d", year, cutoff.Year())
	}

	grid := FullYear(year)
	days := make([]time.Time, 0, grid.Days())
	for d := grid.Start; !d.After(grid.End); d = models.AddDays(d, 1) {
		days = append(days, d)
	}

	currentByDay := make(map[time.Time]int, len(current))
	for _, p := range current {
		currentByDay[p.Date] = p.Count
	}

	type monthDay struct {
		month time.Month
		day   int
	}
	leap := len(days) == 366
	previousByDay := make(map[monthDay]int, len(previous))
	for _, p := range previous {
		key := monthDay{p.Date.Month(), p.Date.Day()}
		if !leap && key.month == time.February && key.day == 29 {
			key.day = 28
		}
		previousByDay[key] += p.Count
	}

	cutoffIndex := cutoff.YearDay() - 1
	currentValues := make([]float64, cutoffIndex+1)
	previousValues := make([]float64, len(days))
	for i, d := range days {
		if i <= cutoffIndex {
			currentValues[i] = float64(currentByDay[d])
		}
		previousValues[i] = float64(previousByDay[monthDay{d.Month(), d.Day()}])
	}

	if mode == ChartCumulative {
		currentValues = ToDailyTotal(currentValues)
		previousValues = ToDailyTotal(previousValues)
	}

	return &YearChart{
		Mode:         mode,
		CurrentYear:  year,
		PreviousYear: year - 1,
		Days:         days,
		Current:      currentValues,
		Previous:     previousValues,
		Cutoff:       cutoff,
	}, nil
}

var (
	currentYearColor  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	previousYearColor = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
)

type PNGChartRenderer struct {
	path   string
	width  vg.Length
	height vg.Length
}

func NewPNGChartRenderer(path string) *PNGChartRenderer {
	return &PNGChartRenderer{
		path:   path,
		width:  10 * vg.Inch,
		height: 5 * vg.Inch,
	}
}

func (r *PNGChartRenderer) Render(chart *YearChart) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Bicycles counted, %d vs. %d", chart.CurrentYear, chart.PreviousYear)
	p.Y.Label.Text = "Bicycles"
	if chart.Mode == ChartCumulative {
		p.Y.Label.Text = "Bicycles (cumulative)"
	}
	p.Y.Min = 0
	p.X.Min = 1
	p.X.Max = float64(len(chart.Days))
	p.X.Tick.Marker = plot.ConstantTicks(monthTicks(chart.Days))
	p.Add(plotter.NewGrid())

	previousLine, err := plotter.NewLine(toXYs(chart.Previous))
	if err != nil {
		return "", fmt.Errorf("failed to build previous year line: %w", err)
	}
	previousLine.LineStyle.Color = previousYearColor
	previousLine.LineStyle.Width = vg.Points(1.5)

	currentLine, err := plotter.NewLine(toXYs(chart.Current))
	if err != nil {
		return "", fmt.Errorf("failed to build current year line: %w", err)
	}
	currentLine.LineStyle.Color = currentYearColor
	currentLine.LineStyle.Width = vg.Points(2)

	p.Add(previousLine, currentLine)
	p.Legend.Add(fmt.Sprint(chart.PreviousYear), previousLine)
	p.Legend.Add(fmt.Sprint(chart.CurrentYear), currentLine)
	p.Legend.Top = true
	p.Legend.Left = true

	if chart.Mode == ChartCumulative {
		total := chart.PreviousTotal()
		hline := plotter.NewFunction(func(float64) float64 { return total })
		hline.LineStyle.Color = previousYearColor
		hline.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(3)}
		p.Add(hline)
	}

	cutoff := chart.CutoffIndex()
	x := float64(cutoff + 1)
	markers := plotter.XYs{
		{X: x, Y: chart.Current[cutoff]},
		{X: x, Y: chart.Previous[cutoff]},
	}

	scatter, err := plotter.NewScatter(markers)
	if err != nil {
		return "", fmt.Errorf("failed to build cutoff markers: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(3)
	scatter.GlyphStyle.Color = currentYearColor

	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs: markers,
		Labels: []string{
			fmt.Sprintf("%.0f", markers[0].Y),
			fmt.Sprintf("%.0f", markers[1].Y),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to build cutoff labels: %w", err)
	}
	labels.Offset.X = vg.Points(5)

	p.Add(scatter, labels)

	if err := ensureDir(r.path); err != nil {
		return "", err
	}
	if err := p.Save(r.width, r.height, r.path); err != nil {
		return "", fmt.Errorf("failed to save chart: %w", err)
	}

	return r.path, nil
}

type ASCIIChartRenderer struct {
	path   string
	height int
	width  int
}

func NewASCIIChartRenderer(path string) *ASCIIChartRenderer {
	return &ASCIIChartRenderer{
		path:   path,
		height: 15,
		width:  80,
	}
}

func (r *ASCIIChartRenderer) Render(chart *YearChart) (string, error) {
	graph := asciigraph.PlotMany(
		[][]float64{padSeries(chart.Previous, len(chart.Days)), padSeries(chart.Current, len(chart.Days))},
		asciigraph.Height(r.height),
		asciigraph.Width(r.width),
		asciigraph.Caption(fmt.Sprintf("%d (to %s) vs. %d, %s",
			chart.CurrentYear, chart.Cutoff.Format("02/01"), chart.PreviousYear, chart.Mode)),
	)

	if err := ensureDir(r.path); err != nil {
		return "", err
	}
	if err := os.WriteFile(r.path, []byte(graph+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write chart: %w", err)
	}

	return r.path, nil
}

// padSeries copies values onto a grid of n days. Days past the end are NaN,
// which asciigraph leaves blank, so every series shares the same x scale.
func padSeries(values []float64, n int) []float64 {
	if n < len(values) {
		n = len(values)
	}
	padded := make([]float64, n)
	copy(padded, values)
	for i := len(values); i < n; i++ {
		padded[i] = math.NaN()
	}
	return padded
}

func toXYs(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i].X = float64(i + 1)
		xys[i].Y = v
	}
	return xys
}

func monthTicks(days []time.Time) []plot.Tick {
	var ticks []plot.Tick
	for i, d := range days {
		if d.Day() == 1 {
			ticks = append(ticks, plot.Tick{Value: float64(i + 1), Label: d.Format("Jan")})
		}
	}
	return ticks
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	return nil
}
