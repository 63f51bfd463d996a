// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package permits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/georelay/internal/geo"
	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/metrics"
)

var (
	// ErrInvalidRange is returned for missing or inverted date ranges.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrRateLimited is returned when the local request budget is spent.
	ErrRateLimited = errors.New("permit search rate limited")

	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("permit search temporarily unavailable")

	// ErrUpstream wraps failures talking to the open-data API.
	ErrUpstream = errors.New("permit search upstream failure")
)

const maxResponseBytes = 32 << 20

// Config holds permit search settings.
type Config struct {
	BaseURL   string
	Dataset   string
	Limit     int
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
	CacheTTL  time.Duration
	Breaker   BreakerConfig
}

// DefaultConfig targets the City of Calgary building permits dataset.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://data.calgary.ca",
		Dataset:   "c2es-76ed",
		Limit:     1000,
		Timeout:   15 * time.Second,
		RateLimit: 1,
		Burst:     5,
		CacheTTL:  10 * time.Minute,
		Breaker:   DefaultBreakerConfig(),
	}
}

// Permit is one issued building permit with a point location.
type Permit struct {
	ID              string       `json:"id"`
	IssuedDate      string       `json:"issued_date"`
	WorkClassGroup  string       `json:"work_class_group"`
	ContractorName  string       `json:"contractor_name"`
	CommunityName   string       `json:"community_name"`
	OriginalAddress string       `json:"original_address"`
	Position        geo.Position `json:"position"`
}

// Bounds is the bounding box of a result set.
type Bounds struct {
	MinLongitude float64 `json:"min_longitude"`
	MinLatitude  float64 `json:"min_latitude"`
	MaxLongitude float64 `json:"max_longitude"`
	MaxLatitude  float64 `json:"max_latitude"`
}

// Result is the outcome of a search.
type Result struct {
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Count   int      `json:"count"`
	Bounds  *Bounds  `json:"bounds,omitempty"`
	Permits []Permit `json:"permits"`
	Cached  bool     `json:"cached"`
}

// Client searches the open-data permit dataset.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*Result]
	cache   Cache
}

// NewClient creates a search client. cache may be nil to disable caching.
func NewClient(cfg Config, httpClient *http.Client, cache Cache) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Dataset == "" {
		cfg.Dataset = defaults.Dataset
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaults.Limit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}
	if cfg.Breaker.MaxRequests == 0 {
		cfg.Breaker = defaults.Breaker
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		breaker: newBreaker(cfg.Breaker),
		cache:   cache,
	}
}

// Search returns permits issued strictly between start and end.
func (c *Client) Search(ctx context.Context, start, end time.Time) (*Result, error) {
	if err := ValidateRange(start, end); err != nil {
		metrics.RecordPermitRequest("invalid")
		return nil, err
	}
	startDate, endDate := FormatDate(start), FormatDate(end)
	key := startDate + "/" + endDate

	if cached, ok := c.fromCache(key); ok {
		metrics.RecordPermitRequest("ok")
		return cached, nil
	}

	if !c.limiter.Allow() {
		metrics.RecordPermitRequest("rate_limited")
		return nil, ErrRateLimited
	}

	result, err := c.breaker.Execute(func() (*Result, error) {
		return c.fetch(ctx, startDate, endDate)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordPermitRequest("circuit_open")
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		metrics.RecordPermitRequest("error")
		return nil, err
	}
	metrics.RecordPermitRequest("ok")

	c.toCache(key, result)
	return result, nil
}

func (c *Client) fromCache(key string) (*Result, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, ok, err := c.cache.Get(key)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("permit cache read failed")
	}
	metrics.RecordPermitCache(ok)
	if !ok {
		return nil, false
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("discarding corrupt permit cache entry")
		return nil, false
	}
	result.Cached = true
	return &result, true
}

func (c *Client) toCache(key string, result *Result) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to encode permit result for cache")
		return
	}
	if err := c.cache.Set(key, data, c.cfg.CacheTTL); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("permit cache write failed")
	}
}

// searchURL builds the SoQL query for the date range.
func (c *Client) searchURL(startDate, endDate string) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse permits base url: %w", err)
	}
	u := base.JoinPath("resource", c.cfg.Dataset+".geojson")

	q := u.Query()
	q.Set("$where", fmt.Sprintf("issueddate > '%s' AND issueddate < '%s'", startDate, endDate))
	q.Set("$limit", strconv.Itoa(c.cfg.Limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetch(ctx context.Context, startDate, endDate string) (*Result, error) {
	target, err := c.searchURL(startDate, endDate)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create permit request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	began := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.upstreamErr(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.upstreamErr(ctx, fmt.Errorf("read body: %w", err))
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode feature collection: %w", ErrUpstream, err)
	}

	result := toResult(fc, startDate, endDate)
	logging.Debug().
		Str("start", startDate).
		Str("end", endDate).
		Int("permits", result.Count).
		Dur("duration", time.Since(began)).
		Msg("permit search completed")
	return result, nil
}

// upstreamErr reports the caller's own cancellation as-is and everything
// else, including the per-request timeout firing, as ErrUpstream.
func (c *Client) upstreamErr(caller context.Context, err error) error {
	if callerErr := caller.Err(); callerErr != nil {
		return callerErr
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// toResult keeps point features with valid coordinates.
func toResult(fc *geojson.FeatureCollection, startDate, endDate string) *Result {
	result := &Result{Start: startDate, End: endDate, Permits: make([]Permit, 0, len(fc.Features))}

	var bound orb.Bound
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		pos := geo.Position{Longitude: pt.Lon(), Latitude: pt.Lat()}
		if pos.Validate() != nil {
			continue
		}

		result.Permits = append(result.Permits, Permit{
			ID:              f.Properties.MustString("permitnum", ""),
			IssuedDate:      f.Properties.MustString("issueddate", ""),
			WorkClassGroup:  f.Properties.MustString("workclassgroup", ""),
			ContractorName:  f.Properties.MustString("contractorname", ""),
			CommunityName:   f.Properties.MustString("communityname", ""),
			OriginalAddress: f.Properties.MustString("originaladdress", ""),
			Position:        pos,
		})
		if len(result.Permits) == 1 {
			bound = pt.Bound()
		} else {
			bound = bound.Extend(pt)
		}
	}

	result.Count = len(result.Permits)
	if result.Count > 0 {
		result.Bounds = &Bounds{
			MinLongitude: bound.Min.Lon(),
			MinLatitude:  bound.Min.Lat(),
			MaxLongitude: bound.Max.Lon(),
			MaxLatitude:  bound.Max.Lat(),
		}
	}
	return result
}
