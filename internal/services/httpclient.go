package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/codyseavey/card-atlas/internal/metrics"
)

// requestTimeout is the fixed per-request deadline for every upstream call.
const requestTimeout = 12 * time.Second

// newProviderHTTPClient builds the shared transport for provider adapters.
// Transient failures (429, 5xx, connection resets) are retried a couple of
// times before the fallback cascade gets to weigh in.
func newProviderHTTPClient() *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	return rc.StandardClient()
}

// getJSON performs one GET against a provider endpoint and decodes the JSON
// body. Failures come back as *ProviderError; a deadline hit additionally
// wraps ErrProviderTimeout so callers can tell timeouts from bad statuses.
func getJSON(ctx context.Context, client *http.Client, provider, endpoint, rawURL string, header http.Header, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &ProviderError{Provider: provider, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	metrics.ProviderRequestDuration.WithLabelValues(provider, endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.ProviderRequestsTotal.WithLabelValues(provider, endpoint, "timeout").Inc()
			return &ProviderError{Provider: provider, Endpoint: endpoint, Err: errors.Join(ErrProviderTimeout, err)}
		}
		metrics.ProviderRequestsTotal.WithLabelValues(provider, endpoint, "error").Inc()
		return &ProviderError{Provider: provider, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ProviderRequestsTotal.WithLabelValues(provider, endpoint, "error").Inc()
		return &ProviderError{Provider: provider, Endpoint: endpoint, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(provider, endpoint, "error").Inc()
		return &ProviderError{Provider: provider, Endpoint: endpoint, Err: err}
	}
	metrics.ProviderRequestsTotal.WithLabelValues(provider, endpoint, "ok").Inc()
	return nil
}

// isNotFound reports whether err is a provider 404, which adapters translate
// into a (nil, nil) miss rather than a failure.
func isNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Status == http.StatusNotFound
}
