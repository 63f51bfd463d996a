// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/georelay/internal/geo"
)

// LocationProvider answers a one-shot position request. Implementations
// must honour ctx so a provider that never answers is cut off.
type LocationProvider interface {
	Locate(ctx context.Context) (geo.Position, error)
}

// TemperatureSampler produces a temperature reading in degrees Celsius.
type TemperatureSampler interface {
	Sample() int
}

// StaticLocation always reports the same configured position.
type StaticLocation struct {
	Position geo.Position
}

// Locate implements LocationProvider.
func (s StaticLocation) Locate(ctx context.Context) (geo.Position, error) {
	if err := ctx.Err(); err != nil {
		return geo.Position{}, err
	}
	if err := s.Position.Validate(); err != nil {
		return geo.Position{}, err
	}
	return s.Position, nil
}

// DefaultIPLocationURL is the ip-api.com endpoint, restricted to the
// fields we read.
const DefaultIPLocationURL = "http://ip-api.com/json/?fields=status,message,lat,lon"

// ipLocationRate is ip-api.com's free-tier allowance of 45 requests per minute.
const ipLocationRate = rate.Limit(45.0 / 60.0)

// IPLocation geolocates the host by its public IP address.
type IPLocation struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewIPLocation creates an IP geolocation provider. An empty url selects
// DefaultIPLocationURL.
func NewIPLocation(url string, client *http.Client) *IPLocation {
	if url == "" {
		url = DefaultIPLocationURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &IPLocation{
		url:     url,
		client:  client,
		limiter: rate.NewLimiter(ipLocationRate, 1),
	}
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Locate implements LocationProvider.
func (l *IPLocation) Locate(ctx context.Context) (geo.Position, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return geo.Position{}, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, http.NoBody)
	if err != nil {
		return geo.Position{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return geo.Position{}, fmt.Errorf("ip lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Position{}, fmt.Errorf("ip lookup: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return geo.Position{}, fmt.Errorf("read response: %w", err)
	}
	var out ipAPIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return geo.Position{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Status != "success" {
		msg := out.Message
		if msg == "" {
			msg = "lookup denied"
		}
		return geo.Position{}, errors.New(msg)
	}

	pos := geo.Position{Longitude: out.Lon, Latitude: out.Lat}
	if err := pos.Validate(); err != nil {
		return geo.Position{}, err
	}
	return pos, nil
}

// RandomTemperature samples uniformly from the closed range [Min, Max].
type RandomTemperature struct {
	Min int
	Max int
}

// DefaultTemperatureRange is the sampling range used when none is configured.
var DefaultTemperatureRange = RandomTemperature{Min: -40, Max: 20}

// Sample implements TemperatureSampler.
func (r RandomTemperature) Sample() int {
	lo, hi := r.Min, r.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + rand.IntN(hi-lo+1) //nolint:gosec // simulated reading, not security sensitive
}
