package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
	"github.com/bikecount/bikecount/services/counter-bot/internal/utils"
)

type PeriodFetcher interface {
	GetCountsForPeriod(ctx context.Context, counters []models.CounterConfig, period models.DateRange, interval models.Interval) ([]models.CounterWithCounts, error)
}

type RunnerDeps struct {
	RunID      string
	DevMode    bool
	Counters   []models.CounterConfig
	Fetcher    PeriodFetcher
	Aggregator *Aggregator
	Formatter  *utils.Formatter
	Publisher  Publisher
	Events     *ReportEventPublisher
	// Chart is optional; yearly reports go out without media when nil.
	Chart     ChartRenderer
	ChartMode ChartMode
	Metrics   *Metrics
	Logger    logger.Logger
	Now       func() time.Time
}

// Runner produces and publishes one report per Run call.
type Runner struct {
	runID      string
	devMode    bool
	counters   []models.CounterConfig
	fetcher    PeriodFetcher
	aggregator *Aggregator
	formatter  *utils.Formatter
	publisher  Publisher
	events     *ReportEventPublisher
	chart      ChartRenderer
	chartMode  ChartMode
	metrics    *Metrics
	logger     logger.Logger
	now        func() time.Time
}

func NewRunner(deps RunnerDeps) *Runner {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	chartMode := deps.ChartMode
	if chartMode == "" {
		chartMode = ChartCumulative
	}

	return &Runner{
		runID:      deps.RunID,
		devMode:    deps.DevMode,
		counters:   deps.Counters,
		fetcher:    deps.Fetcher,
		aggregator: deps.Aggregator,
		formatter:  deps.Formatter,
		publisher:  deps.Publisher,
		events:     deps.Events,
		chart:      deps.Chart,
		chartMode:  chartMode,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        now,
	}
}

// report is a formatted report ready to be posted.
type report struct {
	text      string
	mediaPath string
	anchor    time.Time
	current   *models.CountHighlights
	reference *models.CountHighlights
}

// Run builds and publishes the given report. Missing data for yesterday is
// reported as OutcomeNoData; nothing is published unless the report was
// built completely.
func (r *Runner) Run(ctx context.Context, kind models.ReportKind) models.RunResult {
	started := time.Now()
	log := r.logger.WithFields(logger.Fields{"report": string(kind)})
	result := models.RunResult{Report: kind}

	defer func() {
		r.metrics.RecordRun(string(kind), string(result.Outcome), time.Since(started))
	}()

	var (
		rep *report
		err error
	)
	switch kind {
	case models.ReportWeekly:
		rep, err = r.buildWeekly(ctx, log)
	case models.ReportYearly:
		rep, err = r.buildYearly(ctx, log)
	default:
		err = fmt.Errorf("unknown report %q", kind)
	}

	if err != nil {
		result.Err = err
		if errors.Is(err, models.ErrNoDataFound) {
			result.Outcome = models.OutcomeNoData
			log.Warn("No data available, skipping report", logger.F("error", err.Error()))
		} else {
			result.Outcome = models.OutcomeFailed
			log.WithError(err).Error("Failed to build report")
		}
		return result
	}

	result.Text = rep.text
	r.metrics.RecordTotals(string(kind), rep.current.PeriodTotal, rep.reference.PeriodTotal)
	log.Info("Assembled report", logger.F("text", rep.text))

	ids, err := r.publisher.Publish(ctx, Post{Text: rep.text, MediaPath: rep.mediaPath})
	result.PublishedIDs = ids
	r.metrics.RecordPublished(string(kind), len(ids))
	if err != nil {
		result.Err = fmt.Errorf("failed to publish report: %w", err)
		result.Outcome = models.OutcomeFailed
		log.WithError(err).Error("Failed to publish report", logger.F("published_ids", ids))
		return result
	}

	result.Outcome = models.OutcomePublished
	log.Info("Published report", logger.F("published_ids", ids))

	r.events.ReportPublished(models.ReportPublishedEvent{
		RunID:           r.runID,
		Report:          kind,
		AnchorDate:      rep.anchor,
		MostRecentTotal: rep.current.MostRecentTotal,
		PeriodTotal:     rep.current.PeriodTotal,
		ReferenceTotal:  rep.reference.PeriodTotal,
		PublishedIDs:    ids,
		DevMode:         r.devMode,
	})

	return result
}

func (r *Runner) dates() (today, yesterday time.Time) {
	today = models.DateOf(r.now())
	return today, models.AddDays(today, -1)
}

func (r *Runner) buildWeekly(ctx context.Context, log logger.Logger) (*report, error) {
	today, yesterday := r.dates()
	current := WeekToDate(yesterday)
	reference := PrecedingWeekPeriod(current)

	log.Debug("Computed weekly periods",
		logger.F("current_start", current.Start.Format(time.DateOnly)),
		logger.F("reference_start", reference.Start.Format(time.DateOnly)),
		logger.F("yesterday", yesterday.Format(time.DateOnly)),
	)

	fetched, err := r.fetcher.GetCountsForPeriod(ctx, r.counters,
		models.DateRange{Start: reference.Start, End: current.End}, models.IntervalDaily)
	if err != nil {
		return nil, err
	}
	if err := requireAnchorDay(fetched, yesterday); err != nil {
		return nil, err
	}

	currentHighlights, err := r.aggregator.ExtractHighlights(FilterCountersByDate(fetched, current))
	if err != nil {
		return nil, fmt.Errorf("current week: %w", err)
	}
	referenceHighlights, err := r.aggregator.ExtractHighlights(FilterCountersByDate(fetched, reference))
	if err != nil {
		return nil, fmt.Errorf("preceding week: %w", err)
	}

	text, err := r.formatter.FormatWeeklyReport(utils.WeeklyReportParams{
		Yesterday:   yesterday,
		CurrentWeek: IsCurrentWeek(yesterday, today),
		Current:     currentHighlights,
		Reference:   referenceHighlights,
	})
	if err != nil {
		return nil, err
	}

	return &report{
		text:      text,
		anchor:    yesterday,
		current:   currentHighlights,
		reference: referenceHighlights,
	}, nil
}

func (r *Runner) buildYearly(ctx context.Context, log logger.Logger) (*report, error) {
	_, yesterday := r.dates()
	current := YearToDate(yesterday)
	previousYear := FullYear(yesterday.Year() - 1)
	reference := PreviousYearToDate(yesterday)

	currentCounts, err := r.fetcher.GetCountsForPeriod(ctx, r.counters, current, models.IntervalDaily)
	if err != nil {
		return nil, err
	}
	if err := requireAnchorDay(currentCounts, yesterday); err != nil {
		return nil, err
	}

	previousCounts, err := r.fetcher.GetCountsForPeriod(ctx, r.counters, previousYear, models.IntervalDaily)
	if err != nil {
		return nil, err
	}

	currentHighlights, err := r.aggregator.ExtractHighlights(currentCounts)
	if err != nil {
		return nil, fmt.Errorf("current year: %w", err)
	}
	referenceHighlights, err := r.aggregator.ExtractHighlights(FilterCountersByDate(previousCounts, reference))
	if err != nil {
		return nil, fmt.Errorf("previous year to date: %w", err)
	}
	previousHighlights, err := r.aggregator.ExtractHighlights(previousCounts)
	if err != nil {
		return nil, fmt.Errorf("previous year: %w", err)
	}

	text, err := r.formatter.FormatYearlyReport(utils.YearlyReportParams{
		Yesterday:         yesterday,
		Current:           currentHighlights,
		Reference:         referenceHighlights,
		PreviousYearTotal: previousHighlights.PeriodTotal,
		Ranking:           RankByPeriodTotal(currentCounts),
	})
	if err != nil {
		return nil, err
	}

	return &report{
		text:      text,
		mediaPath: r.renderChart(currentHighlights, previousHighlights, log),
		anchor:    yesterday,
		current:   currentHighlights,
		reference: referenceHighlights,
	}, nil
}

// renderChart returns the chart path, or "" when charts are disabled or
// rendering failed. The report is posted either way.
func (r *Runner) renderChart(current, previous *models.CountHighlights, log logger.Logger) string {
	if r.chart == nil {
		return ""
	}

	chart, err := AlignYears(current.FlattenedCounts, previous.FlattenedCounts, r.chartMode)
	if err != nil {
		log.WithError(err).Warn("Failed to align chart data, posting without chart")
		return ""
	}

	path, err := r.chart.Render(chart)
	if err != nil {
		log.WithError(err).Warn("Failed to render chart, posting without chart")
		return ""
	}

	log.Debug("Rendered chart", logger.F("path", path))
	return path
}

func requireAnchorDay(counters []models.CounterWithCounts, day time.Time) error {
	for _, c := range counters {
		if _, err := GetCountForDay(c.Counts, day); err != nil {
			return fmt.Errorf("counter %s: %w", c.Counter.ID, err)
		}
	}
	return nil
}
