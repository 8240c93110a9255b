package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
)

// Flatten sums several counter series date by date. Every series must cover
// exactly the same dates. The inputs are left untouched.
func Flatten(series []models.CounterData) (models.CounterData, error) {
	if allEmpty(series) {
		return nil, fmt.Errorf("%w: nothing to flatten", models.ErrNoDataFound)
	}

	reference := series[0]
	for i, s := range series[1:] {
		if len(s) != len(reference) {
			return nil, fmt.Errorf("%w: series %d has %d points, expected %d",
				models.ErrDataMismatch, i+1, len(s), len(reference))
		}
		for j := range s {
			if !s[j].Date.Equal(reference[j].Date) {
				return nil, fmt.Errorf("%w: series %d has %s at position %d, expected %s",
					models.ErrDataMismatch, i+1, s[j].Date.Format(time.DateOnly), j,
					reference[j].Date.Format(time.DateOnly))
			}
		}
	}

	flattened := make(models.CounterData, len(reference))
	for j, p := range reference {
		flattened[j] = models.DataPoint{Date: p.Date}
		for _, s := range series {
			flattened[j].Count += s[j].Count
		}
	}

	return flattened, nil
}

// FlattenBestEffort sums series over the dates of the longest one. Points a
// shorter series lacks count as zero and are reported as warnings.
func FlattenBestEffort(series []models.CounterData, log logger.Logger) (models.CounterData, error) {
	if allEmpty(series) {
		return nil, fmt.Errorf("%w: nothing to flatten", models.ErrNoDataFound)
	}

	spine := series[0]
	for _, s := range series[1:] {
		if len(s) > len(spine) {
			spine = s
		}
	}

	flattened := make(models.CounterData, len(spine))
	for j, p := range spine {
		flattened[j] = models.DataPoint{Date: p.Date}
	}

	index := make(map[time.Time]int, len(spine))
	for j, p := range spine {
		index[p.Date] = j
	}

	for i, s := range series {
		seen := 0
		for _, p := range s {
			j, ok := index[p.Date]
			if !ok {
				log.Warn("Dropping data point outside of the longest series",
					logger.F("series", i),
					logger.F("date", p.Date.Format(time.DateOnly)),
				)
				continue
			}
			flattened[j].Count += p.Count
			seen++
		}
		if missing := len(spine) - seen; missing > 0 {
			log.Warn("Series is missing data points, counting them as zero",
				logger.F("series", i),
				logger.F("missing", missing),
			)
		}
	}

	return flattened, nil
}

func allEmpty(series []models.CounterData) bool {
	for _, s := range series {
		if len(s) > 0 {
			return false
		}
	}
	return true
}

// GetCountForDay returns the count recorded on day.
func GetCountForDay(series models.CounterData, day time.Time) (int, error) {
	if len(series) == 0 {
		return 0, fmt.Errorf("%w: series is empty", models.ErrNoDataFound)
	}

	day = models.DateOf(day)
	for _, p := range series {
		if p.Date.Equal(day) {
			return p.Count, nil
		}
	}

	return 0, fmt.Errorf("%w: no count for %s", models.ErrNoDataFound, day.Format(time.DateOnly))
}

// FilterCountsByDate keeps the points within [start, end], in order.
func FilterCountsByDate(series models.CounterData, start, end time.Time) models.CounterData {
	period := models.NewDateRange(start, end)

	filtered := make(models.CounterData, 0, len(series))
	for _, p := range series {
		if period.Contains(p.Date) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func FilterCountersByDate(counters []models.CounterWithCounts, period models.DateRange) []models.CounterWithCounts {
	filtered := make([]models.CounterWithCounts, len(counters))
	for i, c := range counters {
		filtered[i] = models.CounterWithCounts{
			Counter: c.Counter,
			Counts:  FilterCountsByDate(c.Counts, period.Start, period.End),
		}
	}
	return filtered
}

func SumCounts(series models.CounterData) int {
	total := 0
	for _, p := range series {
		total += p.Count
	}
	return total
}

// RankByPeriodTotal ranks counters by their total over the whole series,
// highest first; ties keep registry order.
func RankByPeriodTotal(counters []models.CounterWithCounts) []models.RankedCount {
	ranked := make([]models.RankedCount, len(counters))
	for i, c := range counters {
		ranked[i] = models.RankedCount{Counter: c.Counter, Count: SumCounts(c.Counts)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	return ranked
}

type Aggregator struct {
	policy models.FlattenPolicy
	logger logger.Logger
}

func NewAggregator(policy models.FlattenPolicy, log logger.Logger) *Aggregator {
	if policy == "" {
		policy = models.FlattenPolicyStrict
	}
	return &Aggregator{
		policy: policy,
		logger: log,
	}
}

func (a *Aggregator) Flatten(series []models.CounterData) (models.CounterData, error) {
	if a.policy == models.FlattenPolicyBestEffort {
		return FlattenBestEffort(series, a.logger)
	}
	return Flatten(series)
}

// ExtractHighlights flattens the counters, takes the most recent day as the
// headline and ranks counters by their count on that day.
func (a *Aggregator) ExtractHighlights(counters []models.CounterWithCounts) (*models.CountHighlights, error) {
	series := make([]models.CounterData, len(counters))
	for i, c := range counters {
		series[i] = c.Counts
	}

	flattened, err := a.Flatten(series)
	if err != nil {
		return nil, err
	}

	mostRecent := flattened[len(flattened)-1]

	ranked := make([]models.RankedCount, 0, len(counters))
	for _, c := range counters {
		count, err := GetCountForDay(c.Counts, mostRecent.Date)
		if err != nil {
			if a.policy != models.FlattenPolicyBestEffort {
				return nil, fmt.Errorf("counter %s: %w", c.Counter.ID, err)
			}
			a.logger.Warn("Counter has no data for the most recent day",
				logger.F("counter", c.Counter.ID),
				logger.F("date", mostRecent.Date.Format(time.DateOnly)),
			)
		}
		ranked = append(ranked, models.RankedCount{Counter: c.Counter, Count: count})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})

	return &models.CountHighlights{
		FlattenedCounts: flattened,
		MostRecentDate:  mostRecent.Date,
		MostRecentTotal: mostRecent.Count,
		RankedCounts:    ranked,
		PeriodTotal:     SumCounts(flattened),
	}, nil
}
