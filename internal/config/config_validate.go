// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/tomtom215/georelay/internal/validation"
)

// Validate checks field constraints, then the rules that span sections.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	validators := []func() error{
		c.validateBroker,
		c.validateEmbedded,
		c.validateServer,
		c.validateLocation,
		c.validatePermits,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateBroker() error {
	if c.Broker.AutoConnect && c.Broker.Endpoint == "" && !c.Embedded.Enabled && c.Broker.Transport == TransportNATS {
		return errors.New("broker.endpoint is required when broker.auto_connect is set without the embedded server")
	}
	if c.Broker.Endpoint == "" {
		return nil
	}

	u, err := url.Parse(c.Broker.Endpoint)
	if err != nil {
		return fmt.Errorf("broker.endpoint: %w", err)
	}
	if c.Broker.Transport == TransportMemory && u.Scheme != "memory" {
		return fmt.Errorf("broker.endpoint must use memory:// with the memory transport, got %s://", u.Scheme)
	}
	if c.Broker.Transport == TransportNATS && u.Scheme == "memory" {
		return errors.New("broker.endpoint memory:// requires broker.transport=memory")
	}
	return nil
}

func (c *Config) validateEmbedded() error {
	if !c.Embedded.Enabled {
		return nil
	}
	if c.Broker.Transport != TransportNATS {
		return errors.New("embedded.enabled requires broker.transport=nats")
	}
	if c.Embedded.Port != 0 && c.Embedded.Port == c.Embedded.WebSocketPort {
		return fmt.Errorf("embedded.port and embedded.websocket_port must differ (both %d)", c.Embedded.Port)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Embedded.Enabled && c.Embedded.WebSocketPort == c.Server.Port {
		return fmt.Errorf("server.port %d collides with embedded.websocket_port", c.Server.Port)
	}
	return nil
}

func (c *Config) validateLocation() error {
	if c.Location.Provider == LocationIPAPI && c.Location.IPAPIURL == "" {
		return errors.New("location.ipapi_url is required when location.provider=ipapi")
	}
	return nil
}

func (c *Config) validatePermits() error {
	if c.Permits.Enabled && c.Permits.BaseURL == "" {
		return errors.New("permits.base_url is required when permits are enabled")
	}
	return nil
}
