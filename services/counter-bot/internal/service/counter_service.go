package service

import (
	"context"
	"fmt"

	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
	"golang.org/x/sync/errgroup"
)

type CounterService struct {
	fetcher    CountsFetcher
	concurrent bool
	logger     logger.Logger
}

func NewCounterService(fetcher CountsFetcher, concurrent bool, log logger.Logger) *CounterService {
	return &CounterService{
		fetcher:    fetcher,
		concurrent: concurrent,
		logger:     log,
	}
}

// GetCountsForPeriod fetches every counter over period. The result follows
// the order of counters whether or not requests run concurrently.
func (s *CounterService) GetCountsForPeriod(ctx context.Context, counters []models.CounterConfig, period models.DateRange, interval models.Interval) ([]models.CounterWithCounts, error) {
	s.logger.Debug("Fetching counts for period",
		logger.F("start", period.Start.Format("2006-01-02")),
		logger.F("end", period.End.Format("2006-01-02")),
		logger.F("counters", len(counters)),
		logger.F("concurrent", s.concurrent),
	)

	results := make([]models.CounterWithCounts, len(counters))

	if !s.concurrent {
		for i, counter := range counters {
			counts, err := s.fetcher.GetCounts(ctx, counter, period.Start, period.End, interval)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch counts: %w", err)
			}
			results[i] = models.CounterWithCounts{Counter: counter, Counts: counts}
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, counter := range counters {
		i, counter := i, counter
		g.Go(func() error {
			counts, err := s.fetcher.GetCounts(gctx, counter, period.Start, period.End, interval)
			if err != nil {
				return err
			}
			results[i] = models.CounterWithCounts{Counter: counter, Counts: counts}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch counts: %w", err)
	}

	return results, nil
}
