package antpool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dreyes86/poolwatch/internal/credentials"
)

// Endpoint is an API path on the pool.
type Endpoint string

const (
	EndpointAccount   Endpoint = "/api/account.htm"
	EndpointHashrate  Endpoint = "/api/hashrate.htm"
	EndpointOverview  Endpoint = "/api/accountOverview.htm"
	EndpointWorkers   Endpoint = "/api/userWorkerList.htm"
	EndpointPayments  Endpoint = "/api/paymentHistoryV2.htm"
	EndpointPoolStats Endpoint = "/api/poolStats.htm"
)

// Name returns the endpoint identifier stored with captures.
func (e Endpoint) Name() string {
	s := strings.TrimPrefix(string(e), "/api/")
	return strings.TrimSuffix(s, ".htm")
}

const (
	DefaultBaseURL = "https://antpool.com"

	// DefaultTimeout bounds one HTTP call.
	DefaultTimeout = 30 * time.Second

	// pacing between requests; the hard 600/10m budget is the rate
	// governor's job, this just keeps individual calls polite.
	requestsPerSecond = 1
)

// Response is the outcome of one completed HTTP exchange. Body is the
// raw payload exactly as received, kept even for error responses so the
// capture store never loses data.
type Response struct {
	Body       []byte
	StatusCode int
	Duration   time.Duration
	ByteSize   int
}

// envelope is the API's standard wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client issues signed calls against the pool API. It performs exactly
// one HTTP call per Call invocation: retries and budget reservation are
// the caller's responsibility. Stateless per call, safe for concurrent
// use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithRateLimit(rps int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), rps) }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call signs and issues one POST to the endpoint for the given account
// credentials. The signature is regenerated with a fresh nonce on every
// invocation. On AuthError and RemoteError the Response still carries
// the raw body so the caller can capture it.
func (c *Client) Call(ctx context.Context, ep Endpoint, creds credentials.Triple, params url.Values) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Err: err}
	}

	form := authParams(creds, nextNonce())
	for k, vs := range params {
		for _, v := range vs {
			form.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+string(ep),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "poolwatch/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read body: %w", err)}
	}

	result := &Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Duration:   duration,
		ByteSize:   len(body),
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return result, &RateLimitedError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return result, &AuthError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return result, &RemoteError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Not JSON at all. Still a remote problem; the raw body is kept.
		return result, &RemoteError{Code: -1, Message: "invalid JSON envelope"}
	}
	if env.Code != 0 {
		if isAuthMessage(env.Message) {
			return result, &AuthError{Code: env.Code, Message: env.Message}
		}
		return result, &RemoteError{Code: env.Code, Message: env.Message}
	}
	return result, nil
}

// isAuthMessage spots signature/key rejections reported inside a 200
// envelope, which the API does for bad credentials.
func isAuthMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "signature") ||
		strings.Contains(m, "api key") ||
		strings.Contains(m, "auth")
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			return d
		}
	}
	return time.Minute
}
