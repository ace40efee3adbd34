// Package testutil provides testing utilities for the update pinger.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of one mock ping endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration

	// Hang blocks until the client gives up.
	Hang bool
}

// MockEndpoints is an httptest server hosting many ping endpoints under distinct paths.
type MockEndpoints struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse

	requestCount  int
	inFlight      int
	maxInFlight   int
	lastBody      string
	lastHeader    http.Header
	pathHitCounts map[string]int
}

// NewMockEndpoints starts a mock server. Unknown paths answer 200 with a
// weblogUpdates success document.
func NewMockEndpoints() *MockEndpoints {
	m := &MockEndpoints{
		responses:     make(map[string]MockResponse),
		pathHitCounts: make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

func (m *MockEndpoints) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.requestCount++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.lastBody = string(body)
	m.lastHeader = r.Header.Clone()
	m.pathHitCounts[r.URL.Path]++
	resp, exists := m.responses[r.URL.Path]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if !exists {
		resp = NewSuccessResponse()
	}

	if resp.Hang {
		<-r.Context().Done()
		return
	}
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// URL returns the server base URL.
func (m *MockEndpoints) URL() string {
	return m.server.URL
}

// EndpointURL returns the absolute URL for path.
func (m *MockEndpoints) EndpointURL(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockEndpoints) Close() {
	m.server.Close()
}

// SetResponse configures the response for path.
func (m *MockEndpoints) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = resp
}

// GetRequestCount returns the number of requests received.
func (m *MockEndpoints) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetHits returns the number of requests received on path.
func (m *MockEndpoints) GetHits(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathHitCounts[path]
}

// GetMaxInFlight returns the peak number of concurrent requests observed.
func (m *MockEndpoints) GetMaxInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInFlight
}

// GetLastBody returns the last request body received.
func (m *MockEndpoints) GetLastBody() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBody
}

// GetLastHeader returns the headers of the last request received.
func (m *MockEndpoints) GetLastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// NewSuccessResponse returns a 200 weblogUpdates success response.
func NewSuccessResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: `<?xml version="1.0"?><methodResponse><params><param><value><struct>` +
			`<member><name>flerror</name><value><boolean>0</boolean></value></member>` +
			`<member><name>message</name><value>Thanks for the ping.</value></member>` +
			`</struct></value></param></params></methodResponse>`,
		Headers: map[string]string{"Content-Type": "text/xml"},
	}
}

// NewServerErrorResponse returns a 500 response with a body.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal Server Error: ping backend unavailable",
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}

// NewRedirectResponse returns a 301 pointing at location.
func NewRedirectResponse(location string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusMovedPermanently,
		Headers:    map[string]string{"Location": location},
	}
}

// NewHangingResponse returns a response that never completes.
func NewHangingResponse() MockResponse {
	return MockResponse{Hang: true}
}
