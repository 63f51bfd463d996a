// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package relay

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSampler_PublishesOnInterval(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{state: StateConnected}
	p := NewPublisher(ch, StaticLocation{Position: calgary}, fixedTemperature(25), PublisherConfig{})
	s := NewSampler(p, "georelay.temperature", 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, "two samples", func() bool { return ch.count() >= 2 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v", err)
	}
}

func TestSampler_SurvivesDisconnected(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	p := NewPublisher(ch, StaticLocation{Position: calgary}, fixedTemperature(25), PublisherConfig{})
	s := NewSampler(p, "georelay.temperature", 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v", err)
	}

	ch.setState(StateConnected)
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	go func() { _ = s.Run(ctx2) }()
	waitFor(t, "sample after reconnect", func() bool { return ch.count() >= 1 })
}
