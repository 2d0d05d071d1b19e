package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when the upstream answers with a non-success
	// status: the location resolved to no data.
	ErrNotFound = errors.New("no data for requested location")

	// ErrMissingLocation is returned when no location selector was supplied.
	ErrMissingLocation = errors.New("no location selector supplied")

	// ErrParse is returned when an upstream body does not match the expected
	// JSON shape.
	ErrParse = errors.New("malformed upstream response")
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig bundles transport and resilience settings shared by all
// outbound clients.
type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	Multiplier     float64
	BreakerTimeout time.Duration
}

// BaseClient wraps an HTTP client with exponential-backoff retries and a
// circuit breaker. Provider clients embed it.
type BaseClient struct {
	client     HTTPClient
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
	multiplier float64
}

func NewBaseClient(name string, cfg ClientConfig, logger *zap.Logger) *BaseClient {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("client", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BaseClient{
		client:     &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		multiplier: cfg.Multiplier,
	}
}

// Get fetches url and returns the response body. Non-2xx statuses and
// transport failures are retried with exponential backoff; 4xx responses
// other than 429 are not retried and map to ErrNotFound.
func (c *BaseClient) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	_, err := c.breaker.Execute(func() (interface{}, error) {
		var execErr error
		body, execErr = c.get(ctx, url)
		return nil, execErr
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

func (c *BaseClient) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.retryDelay) * math.Pow(c.multiplier, float64(attempt-1)))
			c.logger.Debug("Retrying request",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("HTTP request failed",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				lastErr = err
				continue
			}
			return body, nil
		}

		resp.Body.Close()

		// Client errors other than 429 will not get better with retries; the
		// upstream simply has nothing for this selector.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: HTTP %d", ErrNotFound, resp.StatusCode)
		}

		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("max retries exceeded, last error: %w", lastErr)
}
