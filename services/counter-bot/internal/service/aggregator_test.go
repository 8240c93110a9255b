package service

import (
	"errors"
	"testing"
	"time"

	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	viaduc = models.CounterConfig{ID: "viaduc", Name: "Viaduc"}
	lift   = models.CounterConfig{ID: "lift", Name: "Pfaffenthal-Lift"}
	glacis = models.CounterConfig{ID: "glacis", Name: "Glacis"}
)

func day(d int) time.Time {
	return models.NewDate(2024, time.January, d)
}

// series builds consecutive daily points starting at January first.
func series(firstDay int, counts ...int) models.CounterData {
	data := make(models.CounterData, len(counts))
	for i, c := range counts {
		data[i] = models.DataPoint{Date: day(firstDay + i), Count: c}
	}
	return data
}

func TestFlatten_SumsPerDate(t *testing.T) {
	a := series(1, 1, 2, 3)
	b := series(1, 10, 20, 30)

	flattened, err := Flatten([]models.CounterData{a, b})
	require.NoError(t, err)
	assert.Equal(t, series(1, 11, 22, 33), flattened)
}

func TestFlatten_IsCommutative(t *testing.T) {
	a := series(1, 1, 2, 3)
	b := series(1, 4, 5, 6)
	c := series(1, 7, 8, 9)

	abc, err := Flatten([]models.CounterData{a, b, c})
	require.NoError(t, err)
	cab, err := Flatten([]models.CounterData{c, a, b})
	require.NoError(t, err)

	assert.Equal(t, abc, cab)
}

func TestFlatten_SingleSeriesReturnsEqualCopy(t *testing.T) {
	a := series(1, 5, 6)

	flattened, err := Flatten([]models.CounterData{a})
	require.NoError(t, err)
	assert.Equal(t, a, flattened)

	flattened[0].Count = 100
	assert.Equal(t, 5, a[0].Count)
}

func TestFlatten_DoesNotMutateInput(t *testing.T) {
	a := series(1, 1, 2)
	b := series(1, 3, 4)

	_, err := Flatten([]models.CounterData{a, b})
	require.NoError(t, err)
	assert.Equal(t, series(1, 1, 2), a)
	assert.Equal(t, series(1, 3, 4), b)
}

func TestFlatten_Mismatch(t *testing.T) {
	tests := []struct {
		name   string
		series []models.CounterData
	}{
		{"different lengths", []models.CounterData{series(1, 1, 2, 3), series(1, 1, 2)}},
		{"different first date", []models.CounterData{series(1, 1, 2), series(2, 1, 2)}},
		{"one empty", []models.CounterData{series(1, 1), {}}},
		{"gap in the middle", []models.CounterData{
			series(1, 1, 2, 3),
			{{Date: day(1), Count: 1}, {Date: day(2), Count: 2}, {Date: day(4), Count: 3}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Flatten(tt.series)
			assert.True(t, errors.Is(err, models.ErrDataMismatch), "got %v", err)
		})
	}
}

func TestFlatten_NoData(t *testing.T) {
	_, err := Flatten(nil)
	assert.True(t, errors.Is(err, models.ErrNoDataFound))

	_, err = Flatten([]models.CounterData{{}, {}})
	assert.True(t, errors.Is(err, models.ErrNoDataFound))
}

func TestFlattenBestEffort_UsesLongestSeriesAsSpine(t *testing.T) {
	short := series(2, 10, 10)
	long := series(1, 1, 1, 1)

	flattened, err := FlattenBestEffort([]models.CounterData{short, long}, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, series(1, 1, 11, 11), flattened)
}

func TestGetCountForDay(t *testing.T) {
	_, err := GetCountForDay(nil, day(1))
	assert.True(t, errors.Is(err, models.ErrNoDataFound))

	_, err = GetCountForDay(series(1, 5), day(2))
	assert.True(t, errors.Is(err, models.ErrNoDataFound))

	count, err := GetCountForDay(series(1, 5, 7), day(2))
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestFilterCountsByDate(t *testing.T) {
	filtered := FilterCountsByDate(series(1, 1, 2, 3, 4, 5), day(2), day(4))
	assert.Equal(t, series(2, 2, 3, 4), filtered)

	assert.Empty(t, FilterCountsByDate(series(1, 1, 2), day(5), day(6)))
}

func TestFilterCountersByDate(t *testing.T) {
	counters := []models.CounterWithCounts{
		{Counter: viaduc, Counts: series(1, 1, 2, 3)},
		{Counter: lift, Counts: series(1, 4, 5, 6)},
	}

	filtered := FilterCountersByDate(counters, models.DateRange{Start: day(2), End: day(3)})

	require.Len(t, filtered, 2)
	assert.Equal(t, viaduc, filtered[0].Counter)
	assert.Equal(t, series(2, 5, 6), filtered[1].Counts)
	assert.Len(t, counters[0].Counts, 3)
}

func TestSumCounts(t *testing.T) {
	assert.Equal(t, 0, SumCounts(nil))
	assert.Equal(t, 12, SumCounts(series(1, 5, 7)))
}

func TestExtractHighlights_RanksDescending(t *testing.T) {
	aggregator := NewAggregator(models.FlattenPolicyStrict, logger.NewNop())

	h, err := aggregator.ExtractHighlights([]models.CounterWithCounts{
		{Counter: glacis, Counts: series(1, 10)},
		{Counter: viaduc, Counts: series(1, 30)},
		{Counter: lift, Counts: series(1, 20)},
	})
	require.NoError(t, err)

	require.Len(t, h.RankedCounts, 3)
	assert.Equal(t, "viaduc", h.RankedCounts[0].Counter.ID)
	assert.Equal(t, "lift", h.RankedCounts[1].Counter.ID)
	assert.Equal(t, "glacis", h.RankedCounts[2].Counter.ID)
	assert.Equal(t, 60, h.MostRecentTotal)
	assert.Equal(t, 60, h.PeriodTotal)
}

func TestExtractHighlights_EndToEnd(t *testing.T) {
	aggregator := NewAggregator(models.FlattenPolicyStrict, logger.NewNop())
	week := []int{5, 5, 5, 5, 5, 5, 5}

	h, err := aggregator.ExtractHighlights([]models.CounterWithCounts{
		{Counter: viaduc, Counts: series(1, week...)},
		{Counter: lift, Counts: series(1, week...)},
		{Counter: glacis, Counts: series(1, week...)},
	})
	require.NoError(t, err)

	assert.Equal(t, series(1, 15, 15, 15, 15, 15, 15, 15), h.FlattenedCounts)
	assert.Equal(t, 105, h.PeriodTotal)
	assert.Equal(t, 15, h.MostRecentTotal)
	assert.Equal(t, day(7), h.MostRecentDate)

	// ties keep registry order
	require.Len(t, h.RankedCounts, 3)
	assert.Equal(t, "viaduc", h.RankedCounts[0].Counter.ID)
	assert.Equal(t, "lift", h.RankedCounts[1].Counter.ID)
	assert.Equal(t, "glacis", h.RankedCounts[2].Counter.ID)
}

func TestExtractHighlights_PropagatesErrors(t *testing.T) {
	aggregator := NewAggregator(models.FlattenPolicyStrict, logger.NewNop())

	_, err := aggregator.ExtractHighlights([]models.CounterWithCounts{
		{Counter: viaduc, Counts: series(1, 1, 2)},
		{Counter: lift, Counts: series(1, 1)},
	})
	assert.True(t, errors.Is(err, models.ErrDataMismatch))

	_, err = aggregator.ExtractHighlights(nil)
	assert.True(t, errors.Is(err, models.ErrNoDataFound))
}

func TestExtractHighlights_BestEffortMissingLatestDay(t *testing.T) {
	aggregator := NewAggregator(models.FlattenPolicyBestEffort, logger.NewNop())

	h, err := aggregator.ExtractHighlights([]models.CounterWithCounts{
		{Counter: viaduc, Counts: series(1, 1, 2)},
		{Counter: lift, Counts: series(1, 3)},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, h.MostRecentTotal)
	assert.Equal(t, 6, h.PeriodTotal)
	assert.Equal(t, "viaduc", h.RankedCounts[0].Counter.ID)
	assert.Equal(t, 0, h.RankedCounts[1].Count)
}
