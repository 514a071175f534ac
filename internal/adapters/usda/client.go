// Package usda fetches farmers market listings from the USDA Local Food Portal.
package usda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/pkg/metrics"
)

const maxRadiusMiles = 100

// Options configures a Client.
type Options struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RatePerSecond  float64
	Burst          int
	SampleFallback bool // serve built-in sample listings when the API fails
}

// Client implements ports.MarketSource.
type Client struct {
	http    *fasthttp.Client
	opts    Options
	limiter *rate.Limiter
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Client{
		http: &fasthttp.Client{
			Name:         "marketmap",
			ReadTimeout:  opts.Timeout,
			WriteTimeout: opts.Timeout,
		},
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Burst),
	}
}

// ByState returns all listings of a state.
func (c *Client) ByState(ctx context.Context, state string) ([]domain.RawMarket, error) {
	q := url.Values{}
	q.Set("state", strings.ToLower(state))

	markets, err := c.get(ctx, "state", q)
	if err != nil && c.opts.SampleFallback {
		slog.WarnContext(ctx, "usda unavailable, serving sample listings", "state", state, "error", err)
		return SampleByState(state), nil
	}
	return markets, err
}

// ByCoordinates returns listings within radiusMiles (capped at 100) of a point.
func (c *Client) ByCoordinates(ctx context.Context, lat, lon, radiusMiles float64) ([]domain.RawMarket, error) {
	radius := math.Min(radiusMiles, maxRadiusMiles)
	q := url.Values{}
	q.Set("x", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))

	markets, err := c.get(ctx, "coordinates", q)
	if err != nil && c.opts.SampleFallback {
		slog.WarnContext(ctx, "usda unavailable, serving sample listings", "lat", lat, "lon", lon, "error", err)
		return SampleNear(lat, lon, radius), nil
	}
	return markets, err
}

func (c *Client) get(ctx context.Context, label string, q url.Values) ([]domain.RawMarket, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if c.opts.APIKey != "" {
		q.Set("apikey", c.opts.APIKey)
	}
	uri := c.opts.BaseURL + "?" + q.Encode()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	timeout := c.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	start := time.Now()
	err := c.http.DoTimeout(req, resp, timeout)
	metrics.USDAFetchDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.USDAFetchErrors.WithLabelValues(label).Inc()
		return nil, fmt.Errorf("usda request: %w", err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		metrics.USDAFetchErrors.WithLabelValues(label).Inc()
		return nil, fmt.Errorf("usda request: unexpected status %d", code)
	}

	markets, err := decodeListings(resp.Body())
	if err != nil {
		metrics.USDAFetchErrors.WithLabelValues(label).Inc()
		return nil, err
	}
	return markets, nil
}

// decodeListings accepts a bare array or an object wrapping it under
// "results", "data" or "markets".
func decodeListings(body []byte) ([]domain.RawMarket, error) {
	var list []domain.RawMarket
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode usda response: %w", err)
	}
	for _, key := range []string{"results", "data", "markets"} {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
	}
	slog.Warn("unexpected usda response shape")
	return []domain.RawMarket{}, nil
}
