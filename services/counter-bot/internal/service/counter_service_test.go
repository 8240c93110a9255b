package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCountsFetcher is a mock implementation of CountsFetcher
type MockCountsFetcher struct {
	mock.Mock
}

func (m *MockCountsFetcher) GetCounts(ctx context.Context, counter models.CounterConfig, start, end time.Time, interval models.Interval) (models.CounterData, error) {
	args := m.Called(ctx, counter, start, end, interval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.CounterData), args.Error(1)
}

func TestGetCountsForPeriod_PreservesRegistryOrder(t *testing.T) {
	for _, concurrent := range []bool{false, true} {
		fetcher := new(MockCountsFetcher)
		period := models.DateRange{Start: day(1), End: day(3)}

		// later counters answer first
		fetcher.On("GetCounts", mock.Anything, viaduc, period.Start, period.End, models.IntervalDaily).
			After(30*time.Millisecond).Return(series(1, 1, 1, 1), nil)
		fetcher.On("GetCounts", mock.Anything, lift, period.Start, period.End, models.IntervalDaily).
			After(15*time.Millisecond).Return(series(1, 2, 2, 2), nil)
		fetcher.On("GetCounts", mock.Anything, glacis, period.Start, period.End, models.IntervalDaily).
			Return(series(1, 3, 3, 3), nil)

		svc := NewCounterService(fetcher, concurrent, logger.NewNop())
		results, err := svc.GetCountsForPeriod(context.Background(),
			[]models.CounterConfig{viaduc, lift, glacis}, period, models.IntervalDaily)
		require.NoError(t, err)

		require.Len(t, results, 3)
		assert.Equal(t, viaduc, results[0].Counter)
		assert.Equal(t, series(1, 1, 1, 1), results[0].Counts)
		assert.Equal(t, lift, results[1].Counter)
		assert.Equal(t, glacis, results[2].Counter)
		assert.Equal(t, series(1, 3, 3, 3), results[2].Counts)
		fetcher.AssertExpectations(t)
	}
}

func TestGetCountsForPeriod_SequentialStopsAtFirstError(t *testing.T) {
	fetcher := new(MockCountsFetcher)
	period := models.DateRange{Start: day(1), End: day(1)}
	apiErr := &models.APIError{StatusCode: 500}

	fetcher.On("GetCounts", mock.Anything, viaduc, period.Start, period.End, models.IntervalDaily).
		Return(nil, apiErr)

	svc := NewCounterService(fetcher, false, logger.NewNop())
	_, err := svc.GetCountsForPeriod(context.Background(),
		[]models.CounterConfig{viaduc, lift}, period, models.IntervalDaily)

	assert.True(t, errors.Is(err, models.ErrAPI))
	fetcher.AssertNumberOfCalls(t, "GetCounts", 1)
}

func TestGetCountsForPeriod_ConcurrentError(t *testing.T) {
	fetcher := new(MockCountsFetcher)
	period := models.DateRange{Start: day(1), End: day(1)}

	fetcher.On("GetCounts", mock.Anything, viaduc, period.Start, period.End, models.IntervalDaily).
		Return(series(1, 1), nil)
	fetcher.On("GetCounts", mock.Anything, lift, period.Start, period.End, models.IntervalDaily).
		Return(nil, &models.APIError{StatusCode: 503})

	svc := NewCounterService(fetcher, true, logger.NewNop())
	results, err := svc.GetCountsForPeriod(context.Background(),
		[]models.CounterConfig{viaduc, lift}, period, models.IntervalDaily)

	assert.Nil(t, results)
	assert.True(t, errors.Is(err, models.ErrAPI))
}
