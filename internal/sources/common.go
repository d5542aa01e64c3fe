package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
)

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errNoHTTPClient = errors.New("http client not configured")
)

// newBreaker builds the circuit breaker shared by all sources. After repeated
// upstream failures the breaker opens and fetches fail fast until the source
// recovers.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
	})
}

// doRequest executes one HTTP request through the circuit breaker and
// classifies the outcome. Transport errors, 429s, 5xx responses, and an open
// breaker wrap ErrTransient; other non-2xx statuses are permanent.
func doRequest(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, req *http.Request) (*http.Response, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransient, execErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %v", ErrTransient, errRateLimited)
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %v: %d", ErrTransient, errServerError, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker: %v", ErrTransient, err)
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
