package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 60 * time.Second
	defaultMaxAttempts    = 3
	defaultBaseBackoff    = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultUserAgent      = "gridcmd/dev"
)

// Error codes sent by a gridcmd server in the error envelope.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidArg      = "INVALID_ARG"
	CodeInvalidWorkbook = "INVALID_WORKBOOK"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInternal        = "INTERNAL"
)

// Client talks to a gridcmd server.
type Client struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	Sheet      string // worksheet for uploads and downloads; empty = server default
	HTTPClient *http.Client
	cache      *SessionCache // nil disables reuse of sessions across runs

	requestTimeout time.Duration
	maxAttempts    int
	baseBackoff    time.Duration
	maxBackoff     time.Duration
	sleep          func(time.Duration)
	randInt63n     func(int64) int64
	now            func() time.Time
}

// New creates a client. With cache set, EnsureSession reuses the session
// previously created for identical workbook content.
func New(baseURL, apiKey string, cache bool) *Client {
	c := &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		APIKey:         apiKey,
		UserAgent:      defaultUserAgent,
		HTTPClient:     &http.Client{},
		requestTimeout: defaultRequestTimeout,
		maxAttempts:    defaultMaxAttempts,
		baseBackoff:    defaultBaseBackoff,
		maxBackoff:     defaultMaxBackoff,
		sleep:          time.Sleep,
		randInt63n:     rand.Int63n,
		now:            time.Now,
	}
	if cache {
		c.cache = NewSessionCache()
	}
	return c
}

// requestKind decides which failures a request may be replayed after.
type requestKind int

const (
	// replayable requests read a session, delete one, or create one; a
	// duplicate created session is reaped by the server's idle expiry.
	replayable requestKind = iota
	// mutating requests run a command and bump the session revision. They
	// are replayed only when the server cannot have run the command.
	mutating
)

type rawResponse struct {
	StatusCode  int
	ContentType string
	RetryAfter  string
	Body        []byte
}

// envelopeCode returns the gridcmd error code in the body, or "" if the body
// is not a gridcmd error envelope (for example a proxy's error page).
func (r *rawResponse) envelopeCode() string {
	var env ErrorResponse
	if json.Unmarshal(r.Body, &env) != nil {
		return ""
	}
	return env.Error.Code
}

// retryable reports whether a response is worth another attempt.
func (r *rawResponse) retryable(kind requestKind) bool {
	switch r.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	case http.StatusInternalServerError:
		// The server reports encode failures as INTERNAL; a bare 500 is a
		// recovered panic and will recur.
		return kind == replayable && r.envelopeCode() == CodeInternal
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusGatewayTimeout:
		return kind == replayable && r.envelopeCode() == ""
	default:
		return false
	}
}

type request struct {
	kind        requestKind
	method      string
	path        string // under /v0/sessions
	withSheet   bool
	contentType string
	body        []byte
}

// do sends req to the server, retrying per req.kind, and returns the final
// response whatever its status.
func (c *Client) do(req request) (*rawResponse, error) {
	attempts := max(c.maxAttempts, 1)
	for attempt := 1; ; attempt++ {
		raw, err := c.roundTrip(req)
		last := attempt == attempts
		switch {
		case err != nil:
			if last || req.kind == mutating || !isTimeout(err) {
				return nil, fmt.Errorf("%s /v0/sessions%s failed after %d attempt(s): %w", req.method, req.path, attempt, err)
			}
			c.sleep(c.backoff(attempt, ""))
		case !last && raw.retryable(req.kind):
			c.sleep(c.backoff(attempt, raw.RetryAfter))
		default:
			return raw, nil
		}
	}
}

func (c *Client) roundTrip(r request) (*rawResponse, error) {
	u, err := c.sessionURL(r.path, r.withSheet)
	if err != nil {
		return nil, err
	}
	timeout := c.requestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	c.setCommonHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &rawResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		RetryAfter:  resp.Header.Get("Retry-After"),
		Body:        data,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// backoff is the wait before attempt+1: Retry-After when the server sent
// one, else capped exponential backoff with full jitter.
func (c *Client) backoff(attempt int, retryAfter string) time.Duration {
	if d, ok := c.parseRetryAfter(retryAfter); ok {
		return d
	}
	base, ceiling := c.baseBackoff, c.maxBackoff
	if base <= 0 {
		base = defaultBaseBackoff
	}
	if ceiling <= 0 {
		ceiling = defaultMaxBackoff
	}
	delay := ceiling
	if attempt < 16 {
		delay = min(base<<(attempt-1), ceiling)
	}
	if c.randInt63n != nil {
		delay = time.Duration(c.randInt63n(int64(delay)))
	}
	return delay
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func (c *Client) parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, secs > 0
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	d := t.Sub(now())
	return d, d > 0
}

// APIError is a non-success response from a gridcmd server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter string
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode == http.StatusTooManyRequests && e.RetryAfter != "":
		return fmt.Sprintf("gridcmd server is rate limiting requests; retry after %s", e.RetryAfter)
	case e.StatusCode == http.StatusTooManyRequests:
		return "gridcmd server is rate limiting requests; retry in a moment"
	case e.Code == CodeUnauthorized:
		return "gridcmd server rejected the API key; set GRIDCMD_API_KEY or remote.api_key"
	case e.Code == CodeNotFound, e.Code == CodeInvalidArg, e.Code == CodeInvalidWorkbook:
		return e.Message
	case e.Code != "":
		return fmt.Sprintf("gridcmd server error %d: %s: %s", e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("gridcmd server error %d: %s", e.StatusCode, strings.TrimSpace(e.Message))
	}
}

// IsNotFound reports whether err is or wraps a 404 APIError, which for a
// session means it expired or was deleted.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func parseAPIError(statusCode int, body []byte, retryAfter string) error {
	e := &APIError{StatusCode: statusCode, Message: string(body), RetryAfter: retryAfter}
	var env ErrorResponse
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		e.Code, e.Message = env.Error.Code, env.Error.Message
	}
	return e
}

func (c *Client) setCommonHeaders(req *http.Request) {
	userAgent := strings.TrimSpace(c.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
}
