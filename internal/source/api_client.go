// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
api_client.go - attendance transaction API client

Polls the source server's transaction endpoint for punches inside a time
window, following pagination until the window is exhausted. Field naming
varies across source schema versions, so normalization accepts several
spellings per field. Fetches run through a circuit breaker and a token
bucket so a struggling server is not hammered.
*/

package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
	"github.com/tomtom215/punchsync/internal/models"
)

const (
	transactionsPath = "/iclock/api/transactions/"
	tokenAuthPath    = "/api-token-auth/"

	// timeParamLayout is the timestamp format the source expects in query
	// parameters, rendered in the source timezone.
	timeParamLayout = "2006-01-02 15:04:05"

	// maxFetchPages caps pagination per window. A window that still has a
	// next page at the cap proceeds with what it has; the overlap on the
	// following run picks up the remainder.
	maxFetchPages = 100

	maxThrottleRetries = 3
	maxThrottleDelay   = 30 * time.Second

	maxResponseBytes    = 16 << 20
	payloadExcerptLimit = 200
)

// acceptedTimeLayouts are the punch timestamp formats seen across source
// schema versions, tried in order.
var acceptedTimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
}

// APIClient speaks the HTTP transaction API with bearer authentication.
type APIClient struct {
	cfg        *config.SourceConfig
	baseURL    string
	userAgent  string
	loc        *time.Location
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*transactionPage]
	limiter    *rate.Limiter

	mu    sync.RWMutex
	token string

	retryBaseDelay time.Duration
}

// transactionPage is one decoded page of the paginated transaction listing.
type transactionPage struct {
	punches []models.RawPunch
	next    string
}

// NewAPIClient builds a client for the configured source. The scheme is
// inferred from the port; loc is the source timezone used for query
// parameters and naive timestamps (nil means UTC).
func NewAPIClient(cfg *config.SourceConfig, loc *time.Location) *APIClient {
	if loc == nil {
		loc = time.UTC
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "punchsync/1.0"
	}

	return &APIClient{
		cfg:       cfg,
		baseURL:   baseURLFor(cfg.Host, cfg.Port),
		userAgent: userAgent,
		loc:       loc,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker:        newSourceBreaker("attendance-api"),
		limiter:        rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		token:          cfg.Token,
		retryBaseDelay: 2 * time.Second,
	}
}

// baseURLFor picks https for the conventional TLS ports, http otherwise.
func baseURLFor(host string, port int) string {
	scheme := "http"
	if port == 443 || port == 8443 {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// newSourceBreaker builds the fetch circuit breaker: up to 3 probe requests
// in half-open state, counts reset every minute, 2 minutes open before
// recovery attempts, tripping at a 60% failure rate over at least 5 requests.
func newSourceBreaker(name string) *gobreaker.CircuitBreaker[*transactionPage] {
	metrics.SetBreakerState(name, 0)

	return gobreaker.NewCircuitBreaker[*transactionPage](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Auth and parse failures arrive over a working connection;
			// only connectivity failures count toward opening.
			return err == nil || errors.Is(err, ErrSourceAuth) || errors.Is(err, ErrSourceMalformed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.SetBreakerState(name, breakerStateValue(to))
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
	})
}

// breakerStateValue converts a breaker state to its gauge value.
func breakerStateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Mode reports the transport.
func (c *APIClient) Mode() models.SourceMode {
	return models.SourceModeAPI
}

// Probe checks bare TCP reachability of the source address.
func (c *APIClient) Probe(ctx context.Context) (models.ProbeResult, error) {
	return probeAddress(ctx, c.cfg.Address())
}

// SetToken installs the bearer token used for subsequent requests.
func (c *APIClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *APIClient) bearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Fetch retrieves every punch inside the window, following pagination.
func (c *APIClient) Fetch(ctx context.Context, window models.Window) ([]models.RawPunch, error) {
	pageURL := c.transactionsURL(window)

	var punches []models.RawPunch
	pages := 0
	for pageURL != "" {
		if pages >= maxFetchPages {
			logging.Warn().Int("pages", pages).Str("next", pageURL).Msg("Fetch page cap reached, proceeding with partial window")
			break
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch pacing interrupted: %w", err)
		}

		page, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		punches = append(punches, page.punches...)
		pageURL = page.next
		pages++
	}

	metrics.SourcePagesFetched.Observe(float64(pages))
	logging.Debug().Int("pages", pages).Int("punches", len(punches)).Msg("Fetched transaction window")
	return punches, nil
}

func (c *APIClient) transactionsURL(window models.Window) string {
	q := url.Values{}
	q.Set("start_time", window.Start.In(c.loc).Format(timeParamLayout))
	q.Set("end_time", window.End.In(c.loc).Format(timeParamLayout))
	q.Set("page_size", strconv.Itoa(c.cfg.PageLimit))
	return c.baseURL + transactionsPath + "?" + q.Encode()
}

// fetchPage runs one page request through the circuit breaker. An open
// circuit surfaces as unreachable without a network attempt.
func (c *APIClient) fetchPage(ctx context.Context, pageURL string) (*transactionPage, error) {
	page, err := c.breaker.Execute(func() (*transactionPage, error) {
		return c.doFetchPage(ctx, pageURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", ErrSourceUnreachable)
		}
		return nil, err
	}
	return page, nil
}

// doFetchPage retries a throttled (429) page with capped exponential
// backoff, honoring Retry-After when the server supplies one.
func (c *APIClient) doFetchPage(ctx context.Context, pageURL string) (*transactionPage, error) {
	delay := c.retryBaseDelay
	for attempt := 0; ; attempt++ {
		page, retryAfter, err := c.fetchPageOnce(ctx, pageURL)
		if err == nil {
			return page, nil
		}
		if retryAfter < 0 || attempt >= maxThrottleRetries {
			return nil, err
		}

		wait := delay
		if retryAfter > 0 {
			wait = retryAfter
		}
		if wait > maxThrottleDelay {
			wait = maxThrottleDelay
		}
		logging.Warn().Dur("wait", wait).Int("attempt", attempt+1).Msg("Source throttled the fetch, backing off")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
}

// fetchPageOnce performs a single page request. retryAfter is negative for
// non-throttle failures and the server's requested delay (0 when absent)
// for HTTP 429.
func (c *APIClient) fetchPageOnce(ctx context.Context, pageURL string) (page *transactionPage, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	defer func() {
		metrics.RecordSourceRequest(string(models.SourceModeAPI), time.Since(start), err)
	}()

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, -1, fmt.Errorf("%w: %v", ErrSourceUnreachable, doErr)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, -1, fmt.Errorf("%w: status %d", ErrSourceAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("%w: status 429", ErrSourceUnreachable)
	case resp.StatusCode != http.StatusOK:
		return nil, -1, fmt.Errorf("%w: status %d", ErrSourceUnreachable, resp.StatusCode)
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		return nil, -1, fmt.Errorf("%w: reading body: %v", ErrSourceUnreachable, readErr)
	}

	page, err = c.parsePage(body)
	if err != nil {
		return nil, -1, err
	}
	return page, -1, nil
}

func parseRetryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// parsePage decodes a page body. The punch array may live under "data",
// "results", or "transactions", or the body may be a bare array.
func (c *APIClient) parsePage(body []byte) (*transactionPage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, malformedErr(body, "empty body")
	}

	if trimmed[0] == '[' {
		var rows []apiTransaction
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, malformedErr(body, err.Error())
		}
		return &transactionPage{punches: c.normalizeAll(rows)}, nil
	}

	var envelope struct {
		Data         *[]apiTransaction `json:"data"`
		Results      *[]apiTransaction `json:"results"`
		Transactions *[]apiTransaction `json:"transactions"`
		Next         string            `json:"next"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, malformedErr(body, err.Error())
	}

	rows := envelope.Data
	if rows == nil {
		rows = envelope.Results
	}
	if rows == nil {
		rows = envelope.Transactions
	}
	if rows == nil {
		return nil, malformedErr(body, "no transaction array under data, results, or transactions")
	}
	return &transactionPage{punches: c.normalizeAll(*rows), next: envelope.Next}, nil
}

func malformedErr(body []byte, detail string) error {
	return fmt.Errorf("%w: %s: %s", ErrSourceMalformed, detail, payloadExcerpt(body))
}

func payloadExcerpt(body []byte) string {
	s := string(bytes.TrimSpace(body))
	if len(s) > payloadExcerptLimit {
		s = s[:payloadExcerptLimit] + "..."
	}
	return s
}

// apiTransaction tolerates the field naming of several source schema
// versions. Fields that arrive as either strings or numbers stay raw until
// normalization.
type apiTransaction struct {
	EmpCode           string          `json:"emp_code"`
	Employee          json.RawMessage `json:"employee"`
	UserID            json.RawMessage `json:"user_id"`
	PunchTime         string          `json:"punch_time"`
	Timestamp         string          `json:"timestamp"`
	PunchState        json.RawMessage `json:"punch_state"`
	PunchStateDisplay string          `json:"punch_state_display"`
	LogType           string          `json:"log_type"`
	TerminalAlias     string          `json:"terminal_alias"`
	Terminal          json.RawMessage `json:"terminal"`
	DeviceID          json.RawMessage `json:"device_id"`
	TerminalSN        string          `json:"terminal_sn"`
}

func (c *APIClient) normalizeAll(rows []apiTransaction) []models.RawPunch {
	punches := make([]models.RawPunch, 0, len(rows))
	for i := range rows {
		punches = append(punches, c.normalize(&rows[i]))
	}
	return punches
}

func (c *APIClient) normalize(row *apiTransaction) models.RawPunch {
	punch := models.RawPunch{
		SourceWorkerCode:  firstNonEmpty(row.EmpCode, flexString(row.Employee), flexString(row.UserID)),
		DirectionHint:     directionHint(row),
		SourceDeviceLabel: c.deviceLabel(row),
	}

	raw := row.PunchTime
	if raw == "" {
		raw = row.Timestamp
	}
	ts, ok := parsePunchTime(raw, c.loc)
	if !ok {
		// The zero time fails the orchestrator's sanity bounds, so the
		// event stays accounted instead of silently dropped.
		logging.Warn().Str("worker_code", punch.SourceWorkerCode).Str("raw_timestamp", raw).Msg("Unparseable punch timestamp")
	}
	punch.Timestamp = ts
	return punch
}

func parsePunchTime(raw string, loc *time.Location) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range acceptedTimeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// directionHint maps the source's punch-state encoding to an explicit
// direction: numeric 0 is an arrival, 1 a departure; textual fields match
// "out"/"in" case-insensitively plus the Urdu display strings some
// terminal firmwares emit. Anything else stays unspecified and the
// sequence classifier decides downstream.
func directionHint(row *apiTransaction) models.Direction {
	switch flexString(row.PunchState) {
	case "0":
		return models.DirectionIn
	case "1":
		return models.DirectionOut
	}

	for _, text := range []string{row.PunchStateDisplay, row.LogType} {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "out"), strings.Contains(lower, urduCheckOut):
			return models.DirectionOut
		case strings.Contains(lower, "in"), strings.Contains(lower, urduCheckIn):
			return models.DirectionIn
		}
	}
	return models.DirectionUnspecified
}

// Urdu "check out" / "check in" as reported in punch_state_display by
// terminals with an Urdu locale.
const (
	urduCheckOut = "چیک آؤٹ"
	urduCheckIn  = "چیک ان"
)

func (c *APIClient) deviceLabel(row *apiTransaction) string {
	if label := firstNonEmpty(row.TerminalAlias, flexString(row.Terminal), flexString(row.DeviceID)); label != "" {
		return label
	}
	if row.TerminalSN != "" {
		return fmt.Sprintf("%s (Device-%s)", c.cfg.Host, row.TerminalSN)
	}
	return c.cfg.Host
}

// flexString renders a JSON value that may arrive as a string or a number.
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// RegisterToken exchanges operator credentials for a fresh bearer token and
// installs it on the client. The caller is responsible for persisting the
// returned token.
func (c *APIClient) RegisterToken(ctx context.Context, username, password string) (string, error) {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenAuthPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordSourceRequest(string(models.SourceModeAPI), time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return "", fmt.Errorf("%w: token registration status %d", ErrSourceUnreachable, resp.StatusCode)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, payloadExcerptLimit))
		return "", fmt.Errorf("%w: token registration status %d: %s", ErrSourceAuth, resp.StatusCode, bytes.TrimSpace(body))
	}

	var reply struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("%w: token response: %v", ErrSourceMalformed, err)
	}
	if reply.Token == "" {
		return "", fmt.Errorf("%w: token response carried no token", ErrSourceMalformed)
	}

	c.SetToken(reply.Token)
	logging.Info().Msg("Source API token registered")
	return reply.Token, nil
}
