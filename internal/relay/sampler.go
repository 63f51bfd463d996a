// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package relay

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/georelay/internal/logging"
)

// Sampler publishes a temperature sample on a fixed interval.
type Sampler struct {
	publisher *Publisher
	topic     string
	interval  time.Duration
	logger    zerolog.Logger
}

// NewSampler creates a sampler that publishes on topic every interval.
func NewSampler(publisher *Publisher, topic string, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sampler{
		publisher: publisher,
		topic:     topic,
		interval:  interval,
		logger:    logging.WithComponent("sampler"),
	}
}

// Run publishes until ctx is canceled. Ticks that find the session
// disconnected are skipped quietly; other failures are logged.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Str("topic", s.topic).Dur("interval", s.interval).Msg("sampler started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sampler) tick(ctx context.Context) {
	f, err := s.publisher.PublishSample(ctx, s.topic)
	switch {
	case err == nil:
		t, _ := f.Temperature()
		s.logger.Debug().Float64("temperature", t).Msg("sample published")
	case errors.Is(err, ErrNotConnected):
		s.logger.Debug().Msg("sample skipped, session not connected")
	default:
		s.logger.Warn().Err(err).Msg("sample publish failed")
	}
}
