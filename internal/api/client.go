package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/roach88/loginsight/internal/config"
	"github.com/roach88/loginsight/internal/journal"
	"github.com/roach88/loginsight/internal/query"
	"github.com/roach88/loginsight/internal/queryurl"
)

// SessionPath is the login endpoint.
const SessionPath = "/api/v1/sessions"

// Request headers understood by the server.
const (
	HeaderSessionID = "X-li-session-id"
	HeaderTimestamp = "x-li-timestamp"
)

// StatusSessionExpired is the non-standard status the server returns for a
// timed-out session.
const StatusSessionExpired = 440

// maxErrorBody bounds how much of an error response is kept in APIError.
const maxErrorBody = 64 << 10

// Operation names used in logs, errors, and the journal.
const (
	OpLogin     = "login"
	OpEvents    = "events"
	OpAggregate = "aggregate"
	OpIngest    = "ingest"
)

// Clock supplies wall time for request timestamps and session expiry.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Recorder receives one entry per request. *journal.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (int64, error)
}

// Client talks to the query and ingestion APIs.
//
// Thread-safety: a Client is safe for concurrent use. The only shared
// mutable state is the Session.
type Client struct {
	baseURL      string
	ingestionURL string

	httpClient *http.Client
	logger     *slog.Logger
	clock      Clock
	recorder   Recorder
	compiler   *queryurl.Compiler
	gzip       bool

	user     string
	password string
	session  *Session
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithJournal records every request to r.
func WithJournal(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithCompiler replaces the query compiler. By default the compiler
// encodes values in the configured charset.
func WithCompiler(compiler *queryurl.Compiler) Option {
	return func(c *Client) {
		c.compiler = compiler
	}
}

// WithGzip compresses ingestion bodies.
func WithGzip(enabled bool) Option {
	return func(c *Client) {
		c.gzip = enabled
	}
}

// New creates a client for the server described by cfg.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if cfg.Host == "" {
		return nil, &config.InvalidError{Field: "host", Reason: "required to reach the server"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:      cfg.BaseURL(),
		ingestionURL: cfg.IngestionURL(),
		clock:        systemClock{},
		user:         cfg.User,
		password:     cfg.Password,
		session:      &Session{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.httpClient == nil {
		c.httpClient = defaultHTTPClient(cfg.Insecure)
	}
	if c.compiler == nil {
		enc, err := cfg.TextEncoding()
		if err != nil {
			return nil, err
		}
		c.compiler = queryurl.NewCompiler(queryurl.WithCharset(enc))
	}

	return c, nil
}

func defaultHTTPClient(insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed appliances
	}
	return &http.Client{Transport: transport, Timeout: 2 * time.Minute}
}

// Session returns the client's session holder.
func (c *Client) Session() *Session {
	return c.session
}

// Compiler returns the compiler used to render queries.
func (c *Client) Compiler() *queryurl.Compiler {
	return c.compiler
}

// BaseURL returns scheme://host:port of the query API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Connect logs in with the credentials from the configuration.
func (c *Client) Connect(ctx context.Context) (*AuthResponse, error) {
	return c.Login(ctx, c.user, c.password)
}

// Login authenticates and stores the returned session.
//
// Returns *AuthError if the server rejects the credentials.
func (c *Client) Login(ctx context.Context, user, password string) (*AuthResponse, error) {
	body, err := json.Marshal(struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{user, password})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SessionPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setJSONHeaders(req)

	status, respBody, err := c.do(req, OpLogin, SessionPath)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.Warn("login rejected", "status", status, "user", user)
		return nil, &AuthError{StatusCode: status, Body: respBody}
	}

	var auth AuthResponse
	if err := json.Unmarshal([]byte(respBody), &auth); err != nil {
		return nil, &ParseError{Operation: OpLogin, Err: err}
	}
	if auth.SessionID == "" {
		return nil, &ParseError{Operation: OpLogin, Err: errors.New("response carries no sessionId")}
	}

	c.session.Set(auth.SessionID, auth.UserID, auth.TTL, c.clock.Now())
	c.logger.Info("logged in", "user_id", auth.UserID, "ttl", auth.TTL)
	return &auth, nil
}

// Events compiles q and runs it.
func (c *Client) Events(ctx context.Context, q query.EventQuery) (*EventsResponse, error) {
	rel, err := c.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile event query: %w", err)
	}
	return c.EventsURL(ctx, rel)
}

// EventsURL runs a pre-compiled event query URL relative to the server root.
func (c *Client) EventsURL(ctx context.Context, rel string) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.get(ctx, OpEvents, rel, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AggregatedEvents compiles q and runs it.
func (c *Client) AggregatedEvents(ctx context.Context, q query.AggregateQuery) (*AggregateResponse, error) {
	rel, err := c.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile aggregate query: %w", err)
	}
	return c.AggregatedEventsURL(ctx, rel)
}

// AggregatedEventsURL runs a pre-compiled aggregate query URL relative to the server root.
func (c *Client) AggregatedEventsURL(ctx context.Context, rel string) (*AggregateResponse, error) {
	var resp AggregateResponse
	if err := c.get(ctx, OpAggregate, rel, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// get runs an authenticated query and decodes the body into out.
//
// A 401 or 440 clears the session and returns *AuthError with Expired set.
func (c *Client) get(ctx context.Context, op, rel string, out any) error {
	token, err := c.session.ID()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+rel, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	setJSONHeaders(req)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(c.clock.Now().Unix(), 10))
	req.Header.Set(HeaderSessionID, token)

	status, body, err := c.do(req, op, rel)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized, StatusSessionExpired:
		c.session.Clear()
		c.logger.Warn("session rejected; cleared", "op", op, "status", status)
		return &AuthError{StatusCode: status, Expired: true}
	default:
		return &APIError{Operation: op, StatusCode: status, Body: body}
	}

	if err := json.Unmarshal([]byte(body), out); err != nil {
		return &ParseError{Operation: op, Err: err}
	}
	return nil
}

// Ingest sends messages to the ingestion API. No session is required.
func (c *Client) Ingest(ctx context.Context, r IngestionRequest) (*IngestionResponse, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode ingestion request: %w", err)
	}

	encoding := ""
	if c.gzip {
		if payload, err = gzipBytes(payload); err != nil {
			return nil, err
		}
		encoding = "gzip"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ingestionURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setJSONHeaders(req)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	c.logger.Debug("ingesting", "messages", r.Count(), "bytes", len(payload), "gzip", c.gzip)
	status, body, err := c.do(req, OpIngest, c.ingestionURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{Operation: OpIngest, StatusCode: status, Body: body}
	}

	var resp IngestionResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, &ParseError{Operation: OpIngest, Err: err}
	}
	return &resp, nil
}

// do sends req, reads the body, and journals the exchange. The returned
// error is non-nil only for transport failures; callers interpret status.
func (c *Client) do(req *http.Request, op, journalURL string) (int, string, error) {
	start := c.clock.Now()
	c.logger.Debug("request", "op", op, "method", req.Method, "url", journalURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(req.Context(), op, req.Method, journalURL, 0, start, err)
		return 0, "", fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.StatusCode != http.StatusOK {
		reader = io.LimitReader(resp.Body, maxErrorBody)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		c.record(req.Context(), op, req.Method, journalURL, resp.StatusCode, start, err)
		return 0, "", fmt.Errorf("read %s response: %w", op, err)
	}

	c.record(req.Context(), op, req.Method, journalURL, resp.StatusCode, start, nil)
	c.logger.Debug("response", "op", op, "status", resp.StatusCode, "bytes", len(body))
	return resp.StatusCode, string(body), nil
}

func (c *Client) record(ctx context.Context, op, method, url string, status int, start time.Time, reqErr error) {
	if c.recorder == nil {
		return
	}
	entry := journal.Entry{
		StartedAt: start,
		Operation: op,
		Method:    method,
		URL:       url,
		Status:    status,
		Duration:  c.clock.Now().Sub(start),
	}
	if reqErr != nil {
		entry.Error = reqErr.Error()
	}
	// A cancelled request is still worth recording.
	if _, err := c.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		c.logger.Warn("journal write failed", "op", op, "error", err)
	}
}

func setJSONHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip ingestion body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip ingestion body: %w", err)
	}
	return buf.Bytes(), nil
}
