// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package relay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/metrics"
)

// State is the lifecycle state of a ChannelSession.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the lower-case state name used in logs, metrics and the API.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Credentials are optional broker credentials.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"-"`
}

// MessageHandler receives raw inbound payloads for a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Conn is one established connection to the message channel.
type Conn interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler MessageHandler) error
	Close() error
}

// Dialer opens connections to the message channel. onLost must be called
// at most once, and only when the connection drops without Close.
type Dialer interface {
	Dial(ctx context.Context, endpoint string, creds *Credentials, onLost func(error)) (Conn, error)
}

// StateChange describes one session transition.
type StateChange struct {
	From     State
	To       State
	Endpoint string
	Err      error
	Attempt  int
	At       time.Time
}

// SessionListener observes session transitions. Listeners run on the
// delivering goroutine, one change at a time and in transition order.
type SessionListener interface {
	OnSessionStateChange(change StateChange)
}

// SessionListenerFunc adapts a function to SessionListener.
type SessionListenerFunc func(change StateChange)

// OnSessionStateChange implements SessionListener.
func (f SessionListenerFunc) OnSessionStateChange(change StateChange) { f(change) }

// SessionConfig tunes connection behaviour.
type SessionConfig struct {
	// ReconnectDelay is the fixed wait between an unsolicited loss (or a
	// failed reconnect) and the next attempt.
	// Default: 3s
	ReconnectDelay time.Duration

	// ConnectTimeout bounds each dial.
	// Default: 10s
	ConnectTimeout time.Duration
}

// DefaultSessionConfig returns the defaults used when fields are zero.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ReconnectDelay: 3 * time.Second,
		ConnectTimeout: 10 * time.Second,
	}
}

// Status is a point-in-time view of the session.
type Status struct {
	State            string    `json:"state"`
	Endpoint         string    `json:"endpoint,omitempty"`
	Attempt          int       `json:"attempt"`
	ReconnectPending bool      `json:"reconnect_pending"`
	LastError        string    `json:"last_error,omitempty"`
	Since            time.Time `json:"since"`
	Subscriptions    []string  `json:"subscriptions"`
}

type subscription struct {
	topic   string
	handler MessageHandler
}

// Session is the ChannelSession: it owns the connection to the message
// channel and its Disconnected -> Connecting -> Connected lifecycle.
//
// After an unsolicited loss the session schedules one reconnect after
// ReconnectDelay and keeps retrying at that fixed interval until it
// succeeds or Disconnect is called. Every connection carries a generation
// number; callbacks and timers from an older generation are ignored.
type Session struct {
	dialer Dialer
	cfg    SessionConfig
	logger zerolog.Logger

	mu             sync.Mutex
	state          State
	since          time.Time
	endpoint       string
	creds          *Credentials
	generation     uint64
	attempt        int
	lastErr        error
	conn           Conn
	dialing        bool
	cancelDial     context.CancelFunc
	pendingLoss    error
	reconnectTimer *time.Timer
	subs           []subscription
	listeners      []SessionListener
	pending        []StateChange

	// emitMu serialises listener delivery.
	emitMu sync.Mutex
}

// NewSession creates a disconnected session using dialer.
func NewSession(dialer Dialer, cfg SessionConfig) *Session {
	defaults := DefaultSessionConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaults.ReconnectDelay
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	return &Session{
		dialer: dialer,
		cfg:    cfg,
		logger: logging.WithComponent("session"),
		state:  StateDisconnected,
		since:  time.Now(),
	}
}

// AddListener registers l for all future transitions.
func (s *Session) AddListener(l SessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Endpoint returns the endpoint of the current or most recent connection.
func (s *Session) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:            s.state.String(),
		Endpoint:         s.endpoint,
		Attempt:          s.attempt,
		ReconnectPending: s.reconnectTimer != nil,
		Since:            s.since,
		Subscriptions:    make([]string, 0, len(s.subs)),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	for _, sub := range s.subs {
		st.Subscriptions = append(st.Subscriptions, sub.topic)
	}
	return st
}

// Connect dials endpoint and blocks until the attempt settles. It is only
// valid from Disconnected; a pending automatic reconnect is replaced by
// this explicit attempt. A failed explicit connect is not retried.
func (s *Session) Connect(ctx context.Context, endpoint string, creds *Credentials) error {
	if endpoint == "" {
		return errors.New("endpoint is required")
	}

	s.mu.Lock()
	if err := s.connectableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.stopReconnectLocked()
	s.generation++
	gen := s.generation
	s.endpoint = endpoint
	s.creds = creds
	s.attempt = 0
	s.lastErr = nil
	s.pendingLoss = nil
	s.transitionLocked(StateConnecting, nil)
	dialCtx := s.beginDialLocked(ctx)
	s.mu.Unlock()
	s.drain()

	return s.establish(dialCtx, gen, endpoint, creds, false)
}

// CanConnect reports whether Connect would start a new attempt right now.
// It returns ErrAlreadyConnected or ErrConnectSettling otherwise.
func (s *Session) CanConnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectableLocked()
}

func (s *Session) connectableLocked() error {
	switch {
	case s.state != StateDisconnected:
		return ErrAlreadyConnected
	case s.dialing:
		return ErrConnectSettling
	default:
		return nil
	}
}

// Disconnect closes the connection, cancels any pending reconnect or
// in-flight dial and moves to Disconnected. Calling it repeatedly is safe.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	s.generation++
	s.stopReconnectLocked()
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	conn := s.conn
	s.conn = nil
	s.pendingLoss = nil
	s.attempt = 0
	s.transitionLocked(StateDisconnected, nil)
	s.mu.Unlock()
	s.drain()

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

// Publish sends payload on topic. It fails with ErrNotConnected, without
// touching the network, unless the session is Connected.
func (s *Session) Publish(ctx context.Context, topic string, payload []byte) error {
	s.mu.Lock()
	if s.state != StateConnected || s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	conn := s.conn
	s.mu.Unlock()

	if err := conn.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("%w: publish to %s: %w", ErrTransportFailure, topic, err)
	}
	return nil
}

// Subscribe registers handler for topic on the live connection. The
// subscription is remembered and restored on every later connection,
// including automatic reconnects. Subscribing twice to a topic is a no-op.
func (s *Session) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" || handler == nil {
		return errors.New("topic and handler are required")
	}

	s.mu.Lock()
	if s.state != StateConnected || s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	for _, sub := range s.subs {
		if sub.topic == topic {
			s.mu.Unlock()
			return nil
		}
	}
	conn := s.conn
	s.subs = append(s.subs, subscription{topic: topic, handler: handler})
	s.mu.Unlock()

	if err := conn.Subscribe(topic, handler); err != nil {
		s.mu.Lock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool { return sub.topic == topic })
		s.mu.Unlock()
		return fmt.Errorf("%w: subscribe to %s: %w", ErrTransportFailure, topic, err)
	}
	return nil
}

// establish runs one dial and settles the outcome for generation gen.
func (s *Session) establish(ctx context.Context, gen uint64, endpoint string, creds *Credentials, reconnecting bool) error {
	conn, err := s.dialer.Dial(ctx, endpoint, creds, s.lostHandler(gen))

	s.mu.Lock()
	s.dialing = false
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}

	if gen != s.generation {
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return fmt.Errorf("connect to %s abandoned: %w", endpoint, ErrNotConnected)
	}

	if err == nil && s.pendingLoss != nil {
		err = s.pendingLoss
		s.pendingLoss = nil
		if conn != nil {
			_ = conn.Close()
		}
	}

	if err != nil {
		err = fmt.Errorf("%w: connect to %s: %w", ErrTransportFailure, endpoint, err)
		s.lastErr = err
		s.transitionLocked(StateDisconnected, err)
		if reconnecting {
			s.scheduleReconnectLocked(gen)
		}
		s.mu.Unlock()
		s.drain()
		return err
	}

	s.conn = conn
	s.lastErr = nil
	subs := slices.Clone(s.subs)
	s.transitionLocked(StateConnected, nil)
	s.mu.Unlock()
	s.drain()

	for _, sub := range subs {
		if err := conn.Subscribe(sub.topic, sub.handler); err != nil {
			s.logger.Warn().Err(err).Str("topic", sub.topic).Msg("failed to restore subscription")
		}
	}
	return nil
}

func (s *Session) lostHandler(gen uint64) func(error) {
	var once sync.Once
	return func(cause error) {
		once.Do(func() { s.handleLoss(gen, cause) })
	}
}

func (s *Session) handleLoss(gen uint64, cause error) {
	if cause == nil {
		cause = errors.New("connection closed by peer")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case StateConnecting:
		s.pendingLoss = cause
		s.mu.Unlock()
		return
	case StateConnected:
	default:
		s.mu.Unlock()
		return
	}

	conn := s.conn
	s.conn = nil
	err := fmt.Errorf("%w: connection lost: %w", ErrTransportFailure, cause)
	s.lastErr = err
	s.generation++
	s.transitionLocked(StateDisconnected, err)
	s.scheduleReconnectLocked(s.generation)
	s.mu.Unlock()
	s.drain()

	if conn != nil {
		go func() { _ = conn.Close() }()
	}
}

// scheduleReconnectLocked must be called with s.mu held.
func (s *Session) scheduleReconnectLocked(gen uint64) {
	s.stopReconnectLocked()
	s.reconnectTimer = time.AfterFunc(s.cfg.ReconnectDelay, func() { s.reconnect(gen) })
}

// stopReconnectLocked must be called with s.mu held.
func (s *Session) stopReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

func (s *Session) reconnect(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateDisconnected || s.dialing {
		s.mu.Unlock()
		return
	}
	s.reconnectTimer = nil
	s.attempt++
	endpoint, creds := s.endpoint, s.creds
	s.transitionLocked(StateConnecting, nil)
	ctx := s.beginDialLocked(context.Background())
	s.mu.Unlock()
	s.drain()

	metrics.RecordReconnectAttempt()
	if err := s.establish(ctx, gen, endpoint, creds, true); err != nil {
		s.logger.Debug().Err(err).Msg("reconnect attempt failed")
	}
}

// beginDialLocked must be called with s.mu held.
func (s *Session) beginDialLocked(parent context.Context) context.Context {
	ctx, cancel := context.WithTimeout(parent, s.cfg.ConnectTimeout)
	s.dialing = true
	s.cancelDial = cancel
	return ctx
}

// transitionLocked must be called with s.mu held. The change is queued
// and delivered by the next drain.
func (s *Session) transitionLocked(to State, err error) {
	if s.state == to {
		return
	}
	change := StateChange{
		From:     s.state,
		To:       to,
		Endpoint: s.endpoint,
		Err:      err,
		Attempt:  s.attempt,
		At:       time.Now(),
	}
	s.state = to
	s.since = change.At
	s.pending = append(s.pending, change)
}

// drain delivers queued transitions. Only one goroutine delivers at a
// time; a caller that loses the race leaves its changes to the winner,
// which re-checks the queue after releasing emitMu.
func (s *Session) drain() {
	for {
		if !s.emitMu.TryLock() {
			return
		}
		for {
			s.mu.Lock()
			batch := s.pending
			s.pending = nil
			listeners := slices.Clone(s.listeners)
			s.mu.Unlock()

			if len(batch) == 0 {
				break
			}
			for _, change := range batch {
				s.deliver(change, listeners)
			}
		}
		s.emitMu.Unlock()

		s.mu.Lock()
		empty := len(s.pending) == 0
		s.mu.Unlock()
		if empty {
			return
		}
	}
}

func (s *Session) deliver(change StateChange, listeners []SessionListener) {
	metrics.RecordSessionTransition(change.From.String(), change.To.String(), int(change.To))

	event := s.logger.Info()
	if change.Err != nil {
		event = s.logger.Warn().Err(change.Err)
	}
	event.
		Str("from", change.From.String()).
		Str("to", change.To.String()).
		Str("endpoint", change.Endpoint).
		Int("attempt", change.Attempt).
		Msg("channel session state changed")

	for _, l := range listeners {
		l.OnSessionStateChange(change)
	}
}
