// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// Config holds embedded broker settings.
type Config struct {
	// Host is the listen address for both listeners.
	Host string

	// Port is the NATS client port. -1 picks a random free port.
	Port int

	// WebSocketPort enables the browser WebSocket listener when non-zero.
	// -1 picks a random free port.
	WebSocketPort int

	// Username and Password, when set, are required from every client.
	Username string
	Password string

	ServerName   string
	MaxPayload   int32
	ReadyTimeout time.Duration
}

// DefaultConfig returns local-development defaults.
func DefaultConfig() Config {
	return Config{
		Host:          "127.0.0.1",
		Port:          4222,
		WebSocketPort: 8443,
		ServerName:    "georelay",
		MaxPayload:    1 << 20,
		ReadyTimeout:  10 * time.Second,
	}
}

// Embedded runs a NATS server inside the process so the relay and
// browser pages can share a broker without external infrastructure.
type Embedded struct {
	cfg Config

	mu     sync.Mutex
	server *server.Server
}

// New creates an embedded broker. The server is not started until Start.
func New(cfg Config) *Embedded {
	defaults := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.ServerName == "" {
		cfg.ServerName = defaults.ServerName
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = defaults.MaxPayload
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaults.ReadyTimeout
	}
	return &Embedded{cfg: cfg}
}

func (e *Embedded) options() *server.Options {
	opts := &server.Options{
		ServerName: e.cfg.ServerName,
		Host:       e.cfg.Host,
		Port:       e.cfg.Port,
		Username:   e.cfg.Username,
		Password:   e.cfg.Password,
		MaxPayload: e.cfg.MaxPayload,
		NoSigs:     true,
	}
	if e.cfg.WebSocketPort != 0 {
		opts.Websocket = server.WebsocketOpts{
			Host: e.cfg.Host,
			Port: e.cfg.WebSocketPort,
			// TLS is terminated in front of the relay in deployments
			// that need wss://.
			NoTLS: true,
		}
	}
	return opts
}

// Start launches the server and waits until it accepts connections.
// Starting a running broker is a no-op.
func (e *Embedded) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.server != nil && e.server.Running() {
		return nil
	}

	ns, err := server.NewServer(e.options())
	if err != nil {
		return fmt.Errorf("create NATS server: %w", err)
	}
	ns.SetLogger(newServerLogger(), false, false)

	go ns.Start()

	if !ns.ReadyForConnections(e.cfg.ReadyTimeout) {
		ns.Shutdown()
		return fmt.Errorf("NATS server not ready within %s", e.cfg.ReadyTimeout)
	}
	e.server = ns
	return nil
}

// ClientURL returns the nats:// URL for relay clients, or "" when stopped.
func (e *Embedded) ClientURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server == nil {
		return ""
	}
	return e.server.ClientURL()
}

// WebSocketURL returns the ws:// URL for browser clients, or "" when the
// WebSocket listener is disabled or the broker is stopped.
func (e *Embedded) WebSocketURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server == nil || e.cfg.WebSocketPort == 0 {
		return ""
	}
	ports := e.server.PortsInfo(time.Second)
	if ports == nil || len(ports.WebSocket) == 0 {
		return ""
	}
	return ports.WebSocket[0]
}

// IsRunning reports whether the server is accepting connections.
func (e *Embedded) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.server != nil && e.server.Running()
}

// Shutdown stops the server and waits for it to exit or ctx to end.
func (e *Embedded) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	ns := e.server
	e.server = nil
	e.mu.Unlock()

	if ns == nil {
		return nil
	}
	ns.Shutdown()

	done := make(chan struct{})
	go func() {
		ns.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("NATS server shutdown incomplete"), ctx.Err())
	}
}
