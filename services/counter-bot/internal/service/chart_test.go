package service

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dailySeries(start time.Time, days, count int) models.CounterData {
	data := make(models.CounterData, days)
	for i := range data {
		data[i] = models.DataPoint{Date: models.AddDays(start, i), Count: count}
	}
	return data
}

func TestToDailyTotal(t *testing.T) {
	assert.Equal(t, []float64{1, 3, 6}, ToDailyTotal([]float64{1, 2, 3}))
	assert.Empty(t, ToDailyTotal(nil))
}

func TestAlignYears_Cumulative(t *testing.T) {
	current := dailySeries(models.NewDate(2023, 1, 1), 10, 2)
	previous := dailySeries(models.NewDate(2022, 1, 1), 365, 1)

	chart, err := AlignYears(current, previous, ChartCumulative)
	require.NoError(t, err)

	assert.Equal(t, 2023, chart.CurrentYear)
	assert.Equal(t, 2022, chart.PreviousYear)
	assert.Len(t, chart.Days, 365)
	assert.Len(t, chart.Current, 10)
	assert.Len(t, chart.Previous, 365)
	assert.Equal(t, 9, chart.CutoffIndex())
	assert.Equal(t, 20.0, chart.Current[9])
	assert.Equal(t, 10.0, chart.Previous[9])
	assert.Equal(t, 365.0, chart.PreviousTotal())
	assert.Equal(t, models.NewDate(2023, 1, 10), chart.Cutoff)
}

func TestAlignYears_LeapDayCarriesPreviousValue(t *testing.T) {
	current := dailySeries(models.NewDate(2024, 1, 1), 70, 1)
	previous := dailySeries(models.NewDate(2023, 1, 1), 365, 1)

	chart, err := AlignYears(current, previous, ChartCumulative)
	require.NoError(t, err)

	// Feb 28 is index 58, Feb 29 index 59
	assert.Len(t, chart.Previous, 366)
	assert.Equal(t, chart.Previous[58], chart.Previous[59])
	assert.Equal(t, 365.0, chart.PreviousTotal())

	daily, err := AlignYears(current, previous, ChartDaily)
	require.NoError(t, err)
	assert.Equal(t, 0.0, daily.Previous[59])
	assert.Equal(t, 365.0, daily.PreviousTotal())
}

func TestAlignYears_FoldsPreviousLeapDay(t *testing.T) {
	current := dailySeries(models.NewDate(2025, 1, 1), 5, 1)
	previous := dailySeries(models.NewDate(2024, 1, 1), 366, 1)

	chart, err := AlignYears(current, previous, ChartDaily)
	require.NoError(t, err)

	assert.Len(t, chart.Previous, 365)
	assert.Equal(t, 2.0, chart.Previous[58])
	assert.Equal(t, 366.0, chart.PreviousTotal())
}

func TestAlignYears_NoCurrentData(t *testing.T) {
	_, err := AlignYears(nil, dailySeries(models.NewDate(2023, 1, 1), 3, 1), ChartCumulative)
	assert.True(t, errors.Is(err, models.ErrNoDataFound))
}

func sampleChart(t *testing.T) *YearChart {
	t.Helper()
	chart, err := AlignYears(
		dailySeries(models.NewDate(2024, 1, 1), 60, 3),
		dailySeries(models.NewDate(2023, 1, 1), 365, 2),
		ChartCumulative,
	)
	require.NoError(t, err)
	return chart
}

func TestPNGChartRenderer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "yearly.png")

	out, err := NewPNGChartRenderer(path).Render(sampleChart(t))
	require.NoError(t, err)
	assert.Equal(t, path, out)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("\x89PNG")))
}

func TestASCIIChartRenderer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yearly.txt")

	out, err := NewASCIIChartRenderer(path).Render(sampleChart(t))
	require.NoError(t, err)
	assert.Equal(t, path, out)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "2024 (to 29/02) vs. 2023, cumulative")
}

func TestPadSeries(t *testing.T) {
	padded := padSeries([]float64{1, 2}, 4)

	require.Len(t, padded, 4)
	assert.Equal(t, []float64{1, 2}, padded[:2])
	assert.True(t, math.IsNaN(padded[2]))
	assert.True(t, math.IsNaN(padded[3]))

	assert.Equal(t, []float64{1, 2, 3}, padSeries([]float64{1, 2, 3}, 2))
}

// plotTail returns what follows the y axis on a rendered graph line.
func plotTail(line string) string {
	i := strings.LastIndexAny(line, "┤┼")
	if i < 0 {
		return ""
	}
	_, size := utf8.DecodeRuneInString(line[i:])
	return line[i+size:]
}

func TestASCIIChartRenderer_CurrentYearEndsAtCutoff(t *testing.T) {
	days := make([]time.Time, 366)
	for i := range days {
		days[i] = models.AddDays(models.NewDate(2024, time.January, 1), i)
	}
	current := make([]float64, 10)
	for i := range current {
		current[i] = 10
	}
	chart := &YearChart{
		Mode:         ChartDaily,
		CurrentYear:  2024,
		PreviousYear: 2023,
		Days:         days,
		Current:      current,
		Previous:     make([]float64, len(days)),
		Cutoff:       days[9],
	}
	path := filepath.Join(t.TempDir(), "yearly.txt")

	_, err := NewASCIIChartRenderer(path).Render(chart)
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(string(content), "\n")
	top := plotTail(lines[0])
	bottom := plotTail(lines[15])

	// 10 of 366 days on an 80 column grid
	assert.NotEmpty(t, top)
	assert.LessOrEqual(t, utf8.RuneCountInString(top), 3)
	assert.GreaterOrEqual(t, utf8.RuneCountInString(bottom), 75)
	assert.Len(t, chart.Current, 10)
}
