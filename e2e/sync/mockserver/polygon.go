package mockserver

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Agg is one daily aggregate in Polygon's wire format.
type Agg struct {
	Open         float64 `json:"o"`
	High         float64 `json:"h"`
	Low          float64 `json:"l"`
	Close        float64 `json:"c"`
	Volume       float64 `json:"v"`
	VWAP         float64 `json:"vw"`
	Timestamp    int64   `json:"t"`
	Transactions int64   `json:"n"`
}

type aggsResponse struct {
	Ticker       string `json:"ticker"`
	Adjusted     bool   `json:"adjusted"`
	QueryCount   int    `json:"queryCount"`
	ResultsCount int    `json:"resultsCount"`
	Status       string `json:"status"`
	RequestID    string `json:"request_id"`
	Results      []Agg  `json:"results,omitempty"`
}

// Request records one aggregates call received by the mock.
type Request struct {
	Ticker     string
	From       string
	To         string
	Adjusted   string
	Sort       string
	Limit      string
	ReceivedAt time.Time
}

// MockPolygonServer serves /v2/aggs/ticker/{ticker}/range/... from in-memory bars.
type MockPolygonServer struct {
	server

	mu       sync.RWMutex
	aggs     map[string][]Agg
	failures map[string]int
	requests []Request
	// Overshoot returns every stored bar regardless of the requested range,
	// like an upstream that ignores the end of the window.
	overshoot bool
}

// NewMockPolygonServer creates an empty mock.
func NewMockPolygonServer() *MockPolygonServer {
	return &MockPolygonServer{
		aggs:     make(map[string][]Agg),
		failures: make(map[string]int),
	}
}

// Start starts the mock server on the given address ("" picks a random port).
func (s *MockPolygonServer) Start(address string) error {
	router := mux.NewRouter()
	router.HandleFunc("/v2/aggs/ticker/{ticker}/range/{multiplier}/{timespan}/{from}/{to}", s.handleAggs).Methods("GET")

	return s.start(address, router)
}

// AddDailyBars stores one bar per weekday in [start, end] for ticker, stamped at
// midnight New York time like the real API.
func (s *MockPolygonServer) AddDailyBars(ticker string, start, end time.Time, price float64) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}

		ts := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, ny).UnixMilli()
		s.aggs[ticker] = append(s.aggs[ticker], Agg{
			Open:         price,
			High:         price + 1,
			Low:          price - 1,
			Close:        price + 0.5,
			Volume:       1_000_000,
			VWAP:         price + 0.25,
			Timestamp:    ts,
			Transactions: 1000,
		})
		price++
	}

	slices.SortFunc(s.aggs[ticker], func(a, b Agg) int { return int(a.Timestamp - b.Timestamp) })
}

// FailTicker makes every request for ticker answer with the given HTTP status.
func (s *MockPolygonServer) FailTicker(ticker string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[ticker] = status
}

// SetOvershoot toggles ignoring the requested range.
func (s *MockPolygonServer) SetOvershoot(overshoot bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overshoot = overshoot
}

// Requests returns every request received so far.
func (s *MockPolygonServer) Requests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.requests)
}

func (s *MockPolygonServer) handleAggs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ticker := vars["ticker"]
	query := r.URL.Query()

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Ticker:     ticker,
		From:       vars["from"],
		To:         vars["to"],
		Adjusted:   query.Get("adjusted"),
		Sort:       query.Get("sort"),
		Limit:      query.Get("limit"),
		ReceivedAt: time.Now(),
	})
	status, failing := s.failures[ticker]
	stored := slices.Clone(s.aggs[ticker])
	overshoot := s.overshoot
	s.mu.Unlock()

	if failing {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":     "ERROR",
			"request_id": uuid.New().String(),
			"error":      "mock failure",
		})

		return
	}

	from, fromErr := strconv.ParseInt(vars["from"], 10, 64)
	to, toErr := strconv.ParseInt(vars["to"], 10, 64)

	var results []Agg

	for _, agg := range stored {
		if !overshoot && fromErr == nil && toErr == nil && (agg.Timestamp < from || agg.Timestamp > to) {
			continue
		}

		results = append(results, agg)
	}

	resp := aggsResponse{
		Ticker:       ticker,
		Adjusted:     query.Get("adjusted") == "true",
		QueryCount:   len(results),
		ResultsCount: len(results),
		Status:       "OK",
		RequestID:    uuid.New().String(),
		Results:      results,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
