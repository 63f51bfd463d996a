// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/georelay/internal/logging"
)

// EmbeddedBroker is the lifecycle of *broker.Embedded.
type EmbeddedBroker interface {
	Start() error
	Shutdown(ctx context.Context) error
	IsRunning() bool
	ClientURL() string
}

// EmbeddedBrokerService runs the in-process NATS server:
//  1. Start, which blocks until the server accepts clients
//  2. wait for cancellation
//  3. Shutdown within shutdownTimeout
//
// If the server dies on its own the service returns an error and suture
// starts it again.
type EmbeddedBrokerService struct {
	broker          EmbeddedBroker
	shutdownTimeout time.Duration
	pollInterval    time.Duration
}

// NewEmbeddedBrokerService wraps b.
func NewEmbeddedBrokerService(b EmbeddedBroker, shutdownTimeout time.Duration) *EmbeddedBrokerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EmbeddedBrokerService{broker: b, shutdownTimeout: shutdownTimeout, pollInterval: time.Second}
}

// Serve implements suture.Service.
func (s *EmbeddedBrokerService) Serve(ctx context.Context) error {
	if err := s.broker.Start(); err != nil {
		return fmt.Errorf("embedded broker start failed: %w", err)
	}
	logging.Info().Str("url", s.broker.ClientURL()).Msg("embedded broker ready")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.broker.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("embedded broker shutdown incomplete")
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.broker.IsRunning() {
				return fmt.Errorf("embedded broker stopped unexpectedly")
			}
		}
	}
}

func (s *EmbeddedBrokerService) String() string {
	return "embedded-broker"
}
