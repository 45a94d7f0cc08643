package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/roach88/loginsight/internal/config"
)

// Fake server defaults.
const (
	FakeUser      = "admin"
	FakePassword  = "secret"
	FakeSessionID = "fake-session-0001"
	FakeUserID    = "fake-user-0001"
	FakeAgentID   = "0b6a7f1e-4f38-4f5c-9a0c-3a4fb8d2a001"

	// DefaultEventsBody is served for event queries unless overridden.
	DefaultEventsBody = `{"complete":true,"duration":12,"events":[` +
		`{"text":"disk full on /var","timestamp":1700000000000,"fields":[{"name":"hostname","content":"web-1"}]}` +
		`]}`

	// DefaultAggregateBody is served for aggregate queries unless overridden.
	DefaultAggregateBody = `{"complete":true,"duration":7,"bins":[` +
		`{"minTimestamp":1700000000000,"maxTimestamp":1700000005000,"value":3},` +
		`{"minTimestamp":1700000005000,"maxTimestamp":1700000010000,"value":5}` +
		`]}`
)

// Request is one request observed by FakeServer. Body is stored after
// gzip decoding.
type Request struct {
	Method string
	URI    string // raw request URI, exactly as sent
	Header http.Header
	Body   []byte
}

// FakeServer mimics the query, session, and ingestion endpoints on one
// httptest.Server.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeServer struct {
	*httptest.Server

	mu            sync.Mutex
	ttl           int
	expired       bool
	eventsBody    string
	aggregateBody string
	failStatus    int
	failBody      string
	requests      []Request
}

// NewFakeServer starts a fake server and closes it when the test ends.
func NewFakeServer(t testing.TB) *FakeServer {
	t.Helper()
	s := &FakeServer{
		ttl:           1800,
		eventsBody:    DefaultEventsBody,
		aggregateBody: DefaultAggregateBody,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Config returns a client configuration pointing at this server for both
// queries and ingestion.
func (s *FakeServer) Config() config.Config {
	u, err := url.Parse(s.URL)
	if err != nil {
		panic(fmt.Sprintf("testutil: bad server url %q: %v", s.URL, err))
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		panic(fmt.Sprintf("testutil: bad server host %q: %v", u.Host, err))
	}
	port, _ := strconv.Atoi(portStr)

	return config.Config{
		Host:          host,
		Port:          port,
		IngestionPort: port,
		Scheme:        "http",
		User:          FakeUser,
		Password:      FakePassword,
		AgentID:       FakeAgentID,
		Charset:       config.DefaultCharset,
	}
}

// SetEventsBody overrides the body served for event queries.
func (s *FakeServer) SetEventsBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventsBody = body
}

// SetAggregateBody overrides the body served for aggregate queries.
func (s *FakeServer) SetAggregateBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregateBody = body
}

// SetTTL sets the ttl reported at login.
func (s *FakeServer) SetTTL(ttl int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttl = ttl
}

// FailNext makes the next query or ingestion request return status and body.
func (s *FakeServer) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
	s.failBody = body
}

// Expire invalidates the current session; queries get 440 until the next login.
func (s *FakeServer) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = true
}

// Requests returns a copy of every request seen so far.
func (s *FakeServer) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent request.
func (s *FakeServer) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

func (s *FakeServer) handle(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		URI:    r.RequestURI,
		Header: r.Header.Clone(),
		Body:   body,
	})

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/sessions":
		s.login(w, body)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/events/"):
		s.query(w, r, s.eventsBody)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/aggregated-events/"):
		s.query(w, r, s.aggregateBody)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/v1/messages/ingest/"):
		s.ingest(w, body)
	default:
		writeJSON(w, http.StatusNotFound, `{"errorMessage":"not found"}`)
	}
}

func (s *FakeServer) login(w http.ResponseWriter, body []byte) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(body, &creds); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"errorMessage":"malformed request"}`)
		return
	}
	if creds.Username != FakeUser || creds.Password != FakePassword {
		writeJSON(w, http.StatusUnauthorized, `{"errorMessage":"Invalid username or password."}`)
		return
	}
	s.expired = false
	writeJSON(w, http.StatusOK, fmt.Sprintf(`{"userId":%q,"sessionId":%q,"ttl":%d}`, FakeUserID, FakeSessionID, s.ttl))
}

func (s *FakeServer) query(w http.ResponseWriter, r *http.Request, body string) {
	if s.takeFailure(w) {
		return
	}
	if r.Header.Get("X-li-session-id") != FakeSessionID {
		writeJSON(w, http.StatusUnauthorized, `{"errorMessage":"unauthorized"}`)
		return
	}
	if s.expired {
		w.WriteHeader(440)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *FakeServer) ingest(w http.ResponseWriter, body []byte) {
	if s.takeFailure(w) {
		return
	}
	var req struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"errorMessage":"malformed request"}`)
		return
	}
	writeJSON(w, http.StatusOK, fmt.Sprintf(`{"status":"ok","message":"events ingested","ingested":%d}`, len(req.Messages)))
}

// takeFailure writes and clears a pending FailNext. Caller holds s.mu.
func (s *FakeServer) takeFailure(w http.ResponseWriter) bool {
	if s.failStatus == 0 {
		return false
	}
	status, body := s.failStatus, s.failBody
	s.failStatus, s.failBody = 0, ""
	writeJSON(w, status, body)
	return true
}

func readBody(r *http.Request) ([]byte, error) {
	var reader io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer zr.Close()
		reader = zr
	}
	return io.ReadAll(reader)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
