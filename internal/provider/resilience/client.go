package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the provider's circuit breaker is open.
var ErrCircuitOpen = errors.New("provider circuit breaker is open")

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the upstream provider for breaker naming.
	Name string

	// Timeout bounds each individual HTTP call. Default: 10s.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the first call.
	// Default: 3.
	MaxRetries uint64

	// InitialInterval is the first retry backoff delay. Default: 100ms.
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff delay. Default: 5s.
	MaxInterval time.Duration

	// Breaker overrides the default circuit breaker settings.
	Breaker *BreakerConfig

	// Metrics overrides the shared call instruments.
	Metrics *Metrics
}

// Client is an HTTP client that retries transient failures with exponential
// backoff and stops calling an upstream that keeps failing.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	metrics    *Metrics
	cfg        ClientConfig
}

// NewClient creates a resilient HTTP client for one upstream provider.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = defaultMetrics()
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type parameter, not a response
		metrics:    metrics,
		cfg:        cfg,
	}
}

// Do executes the request, retrying network errors and 5xx responses with
// exponential backoff. 5xx responses also count against the circuit breaker,
// so an upstream failing half its calls gets a cool-off instead of a retry
// storm. Returns ErrCircuitOpen without calling out when the breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req.Context(), req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0 // retries bounded by count, not wall clock

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &UpstreamError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			return err
		}

		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, policy)
	if c.metrics != nil {
		c.metrics.RecordRequest(c.cfg.Name, time.Since(start), err)
	}
	if err != nil {
		if lastResp != nil {
			// Retries exhausted on a 5xx; hand the response to the caller.
			return lastResp, nil
		}
		return nil, err
	}
	return lastResp, nil
}

// State reports the circuit breaker state for health reporting.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// UpstreamError represents an HTTP 5xx response from the provider.
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return "upstream error: " + http.StatusText(e.StatusCode)
}
