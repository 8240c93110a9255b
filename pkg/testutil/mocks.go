package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	apiRequestDateLayout  = "02/01/2006"
	apiResponseDateLayout = "01/02/2006"
)

// MockCounterAPIServer is a mock HTTP server for the eco-visio counter API.
// Each counter is served under /data/{id}; the debut/fin query values select
// the [start, end) window of the configured series.
type MockCounterAPIServer struct {
	Server         *httptest.Server
	Series         map[string][]MockDataPoint
	mu             sync.RWMutex
	RequestLog     []MockRequest
	ShouldFail     bool
	FailureStatus  int
	FailureMessage string
	RawResponses   map[string]string
}

type MockDataPoint struct {
	Date  time.Time
	Count int
}

// MockRequest logs incoming requests
type MockRequest struct {
	Method    string
	Path      string
	Query     map[string]string
	Timestamp time.Time
}

func NewMockCounterAPIServer() *MockCounterAPIServer {
	mock := &MockCounterAPIServer{
		Series:        make(map[string][]MockDataPoint),
		RawResponses:  make(map[string]string),
		FailureStatus: http.StatusInternalServerError,
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handleRequest))
	return mock
}

func (m *MockCounterAPIServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestLog = append(m.RequestLog, MockRequest{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     parseQuery(r),
		Timestamp: time.Now(),
	})
	shouldFail, status, message := m.ShouldFail, m.FailureStatus, m.FailureMessage
	m.mu.Unlock()

	if shouldFail {
		http.Error(w, message, status)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/data/")

	m.mu.RLock()
	raw, hasRaw := m.RawResponses[id]
	points, ok := m.Series[id]
	m.mu.RUnlock()

	if hasRaw {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, raw)
		return
	}
	if !ok {
		http.Error(w, "unknown counter", http.StatusNotFound)
		return
	}

	start, err := time.Parse(apiRequestDateLayout, r.URL.Query().Get("debut"))
	if err != nil {
		http.Error(w, "invalid debut", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(apiRequestDateLayout, r.URL.Query().Get("fin"))
	if err != nil {
		http.Error(w, "invalid fin", http.StatusBadRequest)
		return
	}

	response := make([][]string, 0, len(points))
	for _, p := range points {
		if p.Date.Before(start) || !p.Date.Before(end) {
			continue
		}
		response = append(response, []string{
			p.Date.Format(apiResponseDateLayout),
			fmt.Sprintf("%d", p.Count),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// SetSeries replaces the series served for a counter id.
func (m *MockCounterAPIServer) SetSeries(id string, points []MockDataPoint) {
	sorted := append([]MockDataPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Series[id] = sorted
}

// SetConstantSeries serves count for every day in [start, end].
func (m *MockCounterAPIServer) SetConstantSeries(id string, start, end time.Time, count int) {
	var points []MockDataPoint
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		points = append(points, MockDataPoint{Date: d, Count: count})
	}
	m.SetSeries(id, points)
}

// SetRawResponse makes the server answer requests for id with body verbatim.
func (m *MockCounterAPIServer) SetRawResponse(id, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RawResponses[id] = body
}

// URLTemplate returns a counter URL template pointing at this server.
func (m *MockCounterAPIServer) URLTemplate(id string) string {
	return fmt.Sprintf("%s/data/%s?debut=$start_date&fin=$end_date&interval=$interval", m.Server.URL, id)
}

func (m *MockCounterAPIServer) SetShouldFail(fail bool, status int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFail = fail
	m.FailureStatus = status
	m.FailureMessage = message
}

func (m *MockCounterAPIServer) GetRequestLog() []MockRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MockRequest(nil), m.RequestLog...)
}

func (m *MockCounterAPIServer) Close() {
	m.Server.Close()
}

func parseQuery(r *http.Request) map[string]string {
	result := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			result[key] = values[0]
		}
	}
	return result
}
