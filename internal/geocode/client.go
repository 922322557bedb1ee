package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/activityladdr/laddr/internal/geo"
	"github.com/activityladdr/laddr/internal/regions"
	"github.com/cenkalti/backoff/v4"
)

// DefaultBaseURL is the OpenCage forward geocoding endpoint.
const DefaultBaseURL = "https://api.opencagedata.com/geocode/v1/json"

// Client looks up suburb coordinates. In stub mode it answers from the
// region catalogue's centroids without any network access.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	stubMode   bool
	regions    *regions.Registry
	cache      Cache
	maxElapsed time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithCache enables result caching.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithMaxElapsed bounds the total time spent retrying one lookup.
func WithMaxElapsed(d time.Duration) Option {
	return func(c *Client) { c.maxElapsed = d }
}

// NewClient creates a geocoding client.
func NewClient(apiKey string, stubMode bool, reg *regions.Registry, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		stubMode:   stubMode,
		regions:    reg,
		maxElapsed: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the coordinates of suburb in region.
func (c *Client) Lookup(ctx context.Context, region, suburb string) (geo.Point, error) {
	if c.stubMode {
		return c.stubLookup(region, suburb)
	}

	key := cacheKey(region, suburb)
	if c.cache != nil {
		if p, ok, err := c.cache.Get(ctx, key); err != nil {
			slog.Warn("Geocode cache read failed", "key", key, "error", err)
		} else if ok {
			return p, nil
		}
	}

	query := fmt.Sprintf("%s, %s, %s", suburb, region, c.country(region))

	var point geo.Point
	operation := func() error {
		p, err := c.fetch(ctx, query)
		if err != nil {
			return err
		}
		point = p
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = c.maxElapsed

	notify := func(err error, wait time.Duration) {
		slog.Warn("Geocode request failed, retrying", "query", query, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		if errors.Is(err, ErrNotFound) {
			return geo.Point{}, err
		}
		return geo.Point{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, point); err != nil {
			slog.Warn("Geocode cache write failed", "key", key, "error", err)
		}
	}
	return point, nil
}

// fetch performs one request. Client errors and empty results are permanent.
func (c *Client) fetch(ctx context.Context, query string) (geo.Point, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("key", c.apiKey)
	params.Set("limit", "1")
	params.Set("no_annotations", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return geo.Point{}, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geo.Point{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return geo.Point{}, err
		}
		return geo.Point{}, backoff.Permanent(err)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return geo.Point{}, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	if len(payload.Results) == 0 {
		return geo.Point{}, backoff.Permanent(fmt.Errorf("%w: %q", ErrNotFound, query))
	}

	g := payload.Results[0].Geometry
	return geo.Point{Lat: g.Lat, Lon: g.Lng}, nil
}

func (c *Client) stubLookup(region, suburb string) (geo.Point, error) {
	if c.regions == nil {
		return geo.Point{}, ErrNotFound
	}
	r, ok := c.regions.Get(region)
	if !ok {
		return geo.Point{}, fmt.Errorf("%w: unknown region %q", ErrNotFound, region)
	}
	s, ok := r.Suburb(suburb)
	if !ok || s.Centroid == nil {
		return geo.Point{}, fmt.Errorf("%w: no centroid for %s, %s", ErrNotFound, suburb, region)
	}
	return *s.Centroid, nil
}

func (c *Client) country(region string) string {
	if c.regions != nil {
		if r, ok := c.regions.Get(region); ok && r.Country != "" {
			return r.Country
		}
	}
	return "Australia"
}
