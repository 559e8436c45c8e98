// Package testutil provides testing utilities for the brewery pipeline.
package testutil

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockBreweryAPI is a configurable stand-in for the Open Brewery DB API.
// By default it pages through Breweries and serves single breweries by id.
type MockBreweryAPI struct {
	server *httptest.Server
	mu     sync.RWMutex

	breweries  []map[string]any
	pageErrors map[int]pageFailure
	handlers   map[string]func(w http.ResponseWriter, r *http.Request)

	// MaxAge is sent as Cache-Control max-age on single-brewery responses.
	MaxAge int

	// Tracking
	NotModified     int
	RequestCount    int
	PagesRequested  []int
	LastUserAgent   string
	LastQueryValues map[string]string
}

// NewMockBreweryAPI starts a mock server serving breweries.
func NewMockBreweryAPI(breweries []map[string]any) *MockBreweryAPI {
	m := &MockBreweryAPI{
		breweries:  breweries,
		pageErrors: make(map[int]pageFailure),
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.RequestCount++
		m.LastUserAgent = r.UserAgent()
		m.LastQueryValues = make(map[string]string)
		for k := range r.URL.Query() {
			m.LastQueryValues[k] = r.URL.Query().Get(k)
		}
		handler, exists := m.handlers[r.URL.Path]
		m.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		switch {
		case r.URL.Path == "/breweries":
			m.listHandler(w, r)
		case strings.HasPrefix(r.URL.Path, "/breweries/"):
			m.getHandler(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	return m
}

// URL returns the mock server URL.
func (m *MockBreweryAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBreweryAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockBreweryAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PagesRequested = nil
	m.LastUserAgent = ""
	m.LastQueryValues = nil
}

// SetBreweries replaces the served dataset.
func (m *MockBreweryAPI) SetBreweries(breweries []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breweries = breweries
}

// pageFailure is a canned failure for one page. remaining counts down the
// failing requests left; zero means fail forever.
type pageFailure struct {
	resp      MockResponse
	remaining int
}

// FailPage makes every request for page return resp instead of data.
func (m *MockBreweryAPI) FailPage(page int, resp MockResponse) {
	m.FailPageTimes(page, 0, resp)
}

// FailPageTimes makes the next times requests for page return resp. Zero
// times fails forever.
func (m *MockBreweryAPI) FailPageTimes(page, times int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageErrors[page] = pageFailure{resp: resp, remaining: times}
}

// ClearPageFailure makes page serve data again.
func (m *MockBreweryAPI) ClearPageFailure(page int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pageErrors, page)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockBreweryAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockBreweryAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockBreweryAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// SetMaxAge sets the Cache-Control max-age of single-brewery responses.
func (m *MockBreweryAPI) SetMaxAge(seconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MaxAge = seconds
}

// GetNotModified returns how many lookups were answered with 304.
func (m *MockBreweryAPI) GetNotModified() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.NotModified
}

// GetPagesRequested returns the page numbers requested so far, in order.
func (m *MockBreweryAPI) GetPagesRequested() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.PagesRequested...)
}

func (m *MockBreweryAPI) listHandler(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = 50
	}

	m.mu.Lock()
	m.PagesRequested = append(m.PagesRequested, page)
	failure, failing := m.pageErrors[page]
	if failing && failure.remaining > 0 {
		failure.remaining--
		if failure.remaining == 0 {
			delete(m.pageErrors, page)
		} else {
			m.pageErrors[page] = failure
		}
	}
	data := m.breweries
	m.mu.Unlock()

	if failing {
		writeResponse(w, failure.resp)
		return
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(data) {
		start = len(data)
	}
	if end > len(data) {
		end = len(data)
	}
	writeJSON(w, http.StatusOK, data[start:end])
}

func (m *MockBreweryAPI) getHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/breweries/")

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.breweries {
		if fmt.Sprint(b["id"]) != id {
			continue
		}
		body, _ := json.Marshal(b)
		etag := fmt.Sprintf(`W/"%x"`, sha256.Sum256(body))
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d, private", m.MaxAge))
		if r.Header.Get("If-None-Match") == etag {
			m.NotModified++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		writeJSON(w, http.StatusOK, b)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Couldn't find Brewery"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Rate limit exceeded"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}
