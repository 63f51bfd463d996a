// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package main

import (
	"net/http"

	"github.com/tomtom215/georelay/internal/broker"
	"github.com/tomtom215/georelay/internal/config"
	"github.com/tomtom215/georelay/internal/geo"
	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/relay"
	"github.com/tomtom215/georelay/internal/transport"
)

const memoryEndpoint = "memory://local"

// startEmbeddedBroker returns nil when the embedded broker is disabled.
func startEmbeddedBroker(cfg *config.Config) (*broker.Embedded, error) {
	if !cfg.Embedded.Enabled {
		return nil, nil
	}
	embedded := broker.New(broker.Config{
		Host:          cfg.Embedded.Host,
		Port:          cfg.Embedded.Port,
		WebSocketPort: cfg.Embedded.WebSocketPort,
		Username:      cfg.Embedded.Username,
		Password:      cfg.Embedded.Password,
		ServerName:    cfg.Embedded.ServerName,
		MaxPayload:    cfg.Embedded.MaxPayload,
		ReadyTimeout:  cfg.Embedded.ReadyTimeout,
	})
	if err := embedded.Start(); err != nil {
		return nil, err
	}
	logging.Info().
		Str("client_url", embedded.ClientURL()).
		Str("websocket_url", embedded.WebSocketURL()).
		Msg("Embedded NATS broker started")
	return embedded, nil
}

// newDialer picks the transport. The returned func releases it.
func newDialer(cfg *config.Config) (relay.Dialer, func()) {
	if cfg.Broker.Transport == config.TransportMemory {
		mb := transport.NewMemoryBroker()
		return mb, func() {
			if err := mb.Close(); err != nil {
				logging.Warn().Err(err).Msg("Error closing memory broker")
			}
		}
	}
	return transport.NewNATSDialer(transport.NATSConfig{
		ClientName:     cfg.Broker.ClientName,
		AckWaitTimeout: cfg.Broker.AckWaitTimeout,
		CloseTimeout:   cfg.Broker.CloseTimeout,
	}), func() {}
}

// brokerEndpoint resolves the auto-connect endpoint: the configured one,
// else the embedded broker, else the in-process channel.
func brokerEndpoint(cfg *config.Config, embedded *broker.Embedded) string {
	switch {
	case cfg.Broker.Endpoint != "":
		return cfg.Broker.Endpoint
	case embedded != nil:
		return embedded.ClientURL()
	case cfg.Broker.Transport == config.TransportMemory:
		return memoryEndpoint
	default:
		return ""
	}
}

func brokerCredentials(cfg *config.Config) *relay.Credentials {
	user, pass := cfg.Broker.Username, cfg.Broker.Password
	if user == "" && cfg.Embedded.Enabled {
		user, pass = cfg.Embedded.Username, cfg.Embedded.Password
	}
	if user == "" {
		return nil
	}
	return &relay.Credentials{Username: user, Password: pass}
}

func newLocationProvider(cfg *config.Config) relay.LocationProvider {
	if cfg.Location.Provider == config.LocationIPAPI {
		logging.Info().Str("url", cfg.Location.IPAPIURL).Msg("Using IP geolocation")
		return relay.NewIPLocation(cfg.Location.IPAPIURL, &http.Client{Timeout: cfg.Location.LocateTimeout})
	}
	return relay.StaticLocation{Position: geo.Position{
		Latitude:  cfg.Location.Latitude,
		Longitude: cfg.Location.Longitude,
	}}
}
