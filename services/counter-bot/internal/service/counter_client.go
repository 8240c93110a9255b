package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
)

const (
	apiRequestDateLayout  = "02/01/2006"
	apiResponseDateLayout = "01/02/2006"

	maxResponseBytes = 10 << 20
)

// CountsFetcher fetches the daily counts of one counter.
type CountsFetcher interface {
	GetCounts(ctx context.Context, counter models.CounterConfig, start, end time.Time, interval models.Interval) (models.CounterData, error)
}

type CounterAPIClient struct {
	client  *http.Client
	logger  logger.Logger
	metrics *Metrics
}

func NewCounterAPIClient(timeout time.Duration, log logger.Logger, metrics *Metrics) *CounterAPIClient {
	return &CounterAPIClient{
		client: &http.Client{
			Timeout: timeout,
		},
		logger:  log,
		metrics: metrics,
	}
}

// GetCounts returns the counts of counter for the inclusive range [start, end].
func (c *CounterAPIClient) GetCounts(ctx context.Context, counter models.CounterConfig, start, end time.Time, interval models.Interval) (models.CounterData, error) {
	start, end = models.DateOf(start), models.DateOf(end)
	if start.After(end) {
		return nil, fmt.Errorf("counter %s: start date %s is after end date %s",
			counter.ID, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	// The API treats the end date as exclusive.
	exclusiveEnd := models.AddDays(end, 1)

	requestURL, err := ExpandURLTemplate(counter.URLTemplate, map[string]string{
		"start_date": start.Format(apiRequestDateLayout),
		"end_date":   exclusiveEnd.Format(apiRequestDateLayout),
		"interval":   strconv.Itoa(int(interval)),
	})
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", counter.ID, err)
	}

	c.logger.Debug("Requesting counter data",
		logger.F("counter", counter.ID),
		logger.F("url", requestURL),
	)

	started := time.Now()
	data, err := c.makeRequest(ctx, requestURL)
	c.metrics.RecordFetch(counter.ID, time.Since(started), err)
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", counter.ID, err)
	}

	return data, nil
}

func (c *CounterAPIClient) makeRequest(ctx context.Context, requestURL string) (models.CounterData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &models.APIError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &models.APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	data, err := parseCounterResponse(body)
	if err != nil {
		return nil, &models.APIError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}

	return data, nil
}

// parseCounterResponse decodes [[date, count], ...] with MM/DD/YYYY dates and
// counts given as decimal strings or numbers.
func parseCounterResponse(body []byte) (models.CounterData, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	data := make(models.CounterData, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected [date, count]", i)
		}

		var rawDate string
		if err := json.Unmarshal(row[0], &rawDate); err != nil {
			return nil, fmt.Errorf("row %d: date is not a string", i)
		}
		date, err := time.Parse(apiResponseDateLayout, rawDate)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date %q", i, rawDate)
		}

		count, err := parseCount(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if count < 0 {
			return nil, fmt.Errorf("row %d: negative count %d", i, count)
		}

		if n := len(data); n > 0 && !date.After(data[n-1].Date) {
			return nil, fmt.Errorf("row %d: date %s is not after %s",
				i, date.Format(time.DateOnly), data[n-1].Date.Format(time.DateOnly))
		}

		data = append(data, models.DataPoint{Date: date, Count: count})
	}

	return data, nil
}

func parseCount(raw json.RawMessage) (int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}

	count, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid count %s", string(raw))
	}
	return count, nil
}

// ExpandURLTemplate substitutes $name placeholders in tmpl. Referencing a
// placeholder absent from values fails with ErrTemplate.
func ExpandURLTemplate(tmpl string, values map[string]string) (string, error) {
	var unknown []string

	expanded := os.Expand(tmpl, func(name string) string {
		value, ok := values[name]
		if !ok {
			unknown = append(unknown, name)
			return ""
		}
		return value
	})

	if len(unknown) > 0 {
		return "", fmt.Errorf("%w: unknown placeholder(s) %s in url template",
			models.ErrTemplate, strings.Join(unknown, ", "))
	}

	return expanded, nil
}
