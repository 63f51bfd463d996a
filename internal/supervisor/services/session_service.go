// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/relay"
)

// Session is the part of *relay.Session the service needs.
type Session interface {
	Disconnect() error
	State() relay.State
}

// ConnectFunc performs the initial connect and topic subscription.
type ConnectFunc func(ctx context.Context) error

// SessionService owns the relay session for the process lifetime. It
// connects once at start, then leaves recovery to the session's own
// reconnect loop and disconnects on shutdown.
//
// A failed initial connect is returned so suture retries with backoff.
// ErrAlreadyConnected means an operator connected through the API first,
// which is fine.
type SessionService struct {
	session        Session
	connect        ConnectFunc
	connectTimeout time.Duration
}

// NewSessionService creates the service. connect may be nil when
// auto-connect is disabled; the service then only disconnects on stop.
func NewSessionService(session Session, connect ConnectFunc, connectTimeout time.Duration) *SessionService {
	if connectTimeout <= 0 {
		connectTimeout = relay.DefaultSessionConfig().ConnectTimeout
	}
	return &SessionService{session: session, connect: connect, connectTimeout: connectTimeout}
}

// Serve implements suture.Service.
func (s *SessionService) Serve(ctx context.Context) error {
	if s.connect != nil && s.session.State() == relay.StateDisconnected {
		connectCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
		err := s.connect(connectCtx)
		cancel()

		switch {
		case err == nil, errors.Is(err, relay.ErrAlreadyConnected):
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("initial connect failed: %w", err)
		}
	}

	<-ctx.Done()
	if err := s.session.Disconnect(); err != nil {
		logging.Warn().Err(err).Msg("session disconnect failed")
	}
	return ctx.Err()
}

func (s *SessionService) String() string {
	return "relay-session"
}
