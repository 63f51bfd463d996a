// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/georelay/internal/geo"
	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/metrics"
)

// Channel is the part of the session the publisher needs.
type Channel interface {
	State() State
	Publish(ctx context.Context, topic string, payload []byte) error
}

// PublisherConfig tunes the publisher.
type PublisherConfig struct {
	// LocateTimeout bounds a single location request.
	// Default: 10s
	LocateTimeout time.Duration
}

// Publisher encodes features and sends them through the session.
type Publisher struct {
	channel     Channel
	location    LocationProvider
	temperature TemperatureSampler
	cfg         PublisherConfig
	logger      zerolog.Logger
}

// NewPublisher creates a publisher. location and temperature may be nil
// when only Publish is used.
func NewPublisher(channel Channel, location LocationProvider, temperature TemperatureSampler, cfg PublisherConfig) *Publisher {
	if cfg.LocateTimeout <= 0 {
		cfg.LocateTimeout = 10 * time.Second
	}
	return &Publisher{
		channel:     channel,
		location:    location,
		temperature: temperature,
		cfg:         cfg,
		logger:      logging.WithComponent("publisher"),
	}
}

// Publish encodes f and sends it on topic. It fails with ErrNotConnected
// before encoding when the session is not Connected, and with ErrEncoding
// for invalid features.
func (p *Publisher) Publish(ctx context.Context, topic string, f geo.GeoFeature) error {
	start := time.Now()
	err := p.publish(ctx, topic, f)
	metrics.RecordPublish(ErrorKind(err), time.Since(start))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("publish failed")
		return err
	}
	logging.Ctx(ctx).Debug().
		Str("topic", topic).
		Float64("lat", f.Position.Latitude).
		Float64("lon", f.Position.Longitude).
		Msg("feature published")
	return nil
}

func (p *Publisher) publish(ctx context.Context, topic string, f geo.GeoFeature) error {
	if topic == "" {
		return fmt.Errorf("%w: topic is required", ErrEncoding)
	}
	if p.channel.State() != StateConnected {
		return ErrNotConnected
	}
	payload, err := geo.Encode(f)
	if err != nil {
		return err
	}
	return p.channel.Publish(ctx, topic, payload)
}

// PublishSample locates once, samples a temperature and publishes the
// resulting feature on topic. A location failure aborts the attempt.
func (p *Publisher) PublishSample(ctx context.Context, topic string) (geo.GeoFeature, error) {
	if p.temperature == nil {
		return geo.GeoFeature{}, fmt.Errorf("no temperature sampler configured")
	}
	return p.publishLocated(ctx, topic, func() map[string]any {
		return map[string]any{geo.AttrTemperature: float64(p.temperature.Sample())}
	})
}

// PublishLocation locates once and publishes a feature without readings.
func (p *Publisher) PublishLocation(ctx context.Context, topic string) (geo.GeoFeature, error) {
	return p.publishLocated(ctx, topic, func() map[string]any { return nil })
}

func (p *Publisher) publishLocated(ctx context.Context, topic string, attrs func() map[string]any) (geo.GeoFeature, error) {
	if p.channel.State() != StateConnected {
		return geo.GeoFeature{}, ErrNotConnected
	}
	if p.location == nil {
		return geo.GeoFeature{}, fmt.Errorf("%w: no location provider configured", ErrLocationUnavailable)
	}

	locateCtx, cancel := context.WithTimeout(ctx, p.cfg.LocateTimeout)
	pos, err := p.location.Locate(locateCtx)
	cancel()
	if err != nil {
		metrics.RecordPublish("location", 0)
		return geo.GeoFeature{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}

	f := geo.NewFeature(pos, attrs())
	// The session may have gone away while we waited for the position.
	if err := p.Publish(ctx, topic, f); err != nil {
		return geo.GeoFeature{}, err
	}
	return f, nil
}
