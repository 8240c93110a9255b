package models

import "time"

// Interval is the aggregation granularity requested from the counter API.
type Interval int

const (
	IntervalDaily   Interval = 4
	IntervalWeekly  Interval = 5
	IntervalMonthly Interval = 6
)

// FlattenPolicy selects how series with differing dates are combined.
type FlattenPolicy string

const (
	FlattenPolicyStrict     FlattenPolicy = "strict"
	FlattenPolicyBestEffort FlattenPolicy = "best_effort"
)

func (p FlattenPolicy) Valid() bool {
	return p == FlattenPolicyStrict || p == FlattenPolicyBestEffort
}

// CounterConfig describes one physical counting station.
type CounterConfig struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	URLTemplate string `yaml:"url_template" json:"-"`
}

// DataPoint is the count measured on a single calendar day.
type DataPoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// CounterData is a series of data points, ascending by date without duplicates.
type CounterData []DataPoint

// Dates returns the dates of the series in order.
func (d CounterData) Dates() []time.Time {
	dates := make([]time.Time, len(d))
	for i, p := range d {
		dates[i] = p.Date
	}
	return dates
}

// Counts returns the counts of the series in order.
func (d CounterData) Counts() []float64 {
	counts := make([]float64, len(d))
	for i, p := range d {
		counts[i] = float64(p.Count)
	}
	return counts
}

// Clone returns a copy that shares no memory with d.
func (d CounterData) Clone() CounterData {
	if d == nil {
		return nil
	}
	return append(CounterData(nil), d...)
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: DateOf(start), End: DateOf(end)}
}

// Contains reports whether day falls within the range, bounds included.
func (r DateRange) Contains(day time.Time) bool {
	day = DateOf(day)
	return !day.Before(r.Start) && !day.After(r.End)
}

// Days returns the number of days covered, 0 for an inverted range.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Shift moves both bounds by the given number of days.
func (r DateRange) Shift(days int) DateRange {
	return DateRange{Start: AddDays(r.Start, days), End: AddDays(r.End, days)}
}

type CounterWithCounts struct {
	Counter CounterConfig `json:"counter"`
	Counts  CounterData   `json:"counts"`
}

type RankedCount struct {
	Counter CounterConfig `json:"counter"`
	Count   int           `json:"count"`
}

// CountHighlights summarises a period across all counters.
type CountHighlights struct {
	FlattenedCounts CounterData   `json:"flattened_counts"`
	MostRecentDate  time.Time     `json:"most_recent_date"`
	MostRecentTotal int           `json:"most_recent_total"`
	RankedCounts    []RankedCount `json:"ranked_counts"`
	PeriodTotal     int           `json:"period_total"`
}

// NewDate returns midnight UTC of the given calendar day.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar day of t (in t's location) as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func AddDays(t time.Time, days int) time.Time {
	return DateOf(t).AddDate(0, 0, days)
}
