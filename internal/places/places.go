// Package places adapts the external points-of-interest HTTP service for
// WHATSAT (spec.md §4.3). It is the one boundary in this repo that talks
// to a service outside the herd.
package places

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/heitortanoue/serverherd/internal/metrics"
)

// FailureKind classifies why a lookup failed, for logging and metrics —
// the handler itself only ever needs to know "it failed" (spec.md §4.3:
// "Never raises to the handler").
type FailureKind int

const (
	// FailureConnect covers dial/transport errors (DNS, refused, reset).
	FailureConnect FailureKind = iota
	// FailureStatus covers a non-2xx HTTP response.
	FailureStatus
	// FailureBody covers a response body that could not be read.
	FailureBody
	// FailureTimeout covers the caller's deadline expiring.
	FailureTimeout
)

// Failure is the typed error a Lookup returns on anything but full
// success.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("places: %s", f.Err)
}

// Client performs GET requests against the configured places endpoint.
// Safe for concurrent use by multiple WHATSAT handlers at once.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.Registry
}

// New creates a Client targeting endpoint with apiKey as its credential.
// httpClient may be nil, in which case http.DefaultClient is used — tests
// substitute their own client pointed at an httptest.Server.
func New(endpoint, apiKey string, httpClient *http.Client, reg *metrics.Registry) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, apiKey: apiKey, httpClient: httpClient, metrics: reg}
}

// Lookup performs one GET against the places endpoint with
// location=lat,lon, radius=radiusKM*1000 (meters, integer), and
// key=apiKey, honoring ctx's deadline. On success it returns the raw
// response body. On any failure — connect error, non-2xx status, body
// read failure, or deadline expiry — it returns a *Failure and never a
// panic, per spec.md §4.3. max_results is enforced by the caller on the
// returned body, not sent upstream.
func (c *Client) Lookup(ctx context.Context, lat, lon string, radiusKM float64) ([]byte, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, &Failure{Kind: FailureConnect, Err: err}
	}

	q := u.Query()
	q.Set("location", lat+","+lon)
	q.Set("radius", strconv.Itoa(int(radiusKM*1000)))
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Failure{Kind: FailureConnect, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			c.metrics.Incr(metrics.PlacesTimeout)
			return nil, &Failure{Kind: FailureTimeout, Err: ctx.Err()}
		}
		c.metrics.Incr(metrics.PlacesFailure)
		return nil, &Failure{Kind: FailureConnect, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.Incr(metrics.PlacesFailure)
		return nil, &Failure{Kind: FailureStatus, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.Incr(metrics.PlacesFailure)
		return nil, &Failure{Kind: FailureBody, Err: err}
	}

	return body, nil
}

// DeadlineFrom derives a context with the given timeout from parent,
// mirroring spec.md §5's requirement that every HTTPS call carry a
// deadline derived from whatsat_timeout.
func DeadlineFrom(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
