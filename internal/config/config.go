// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package config

import (
	"net"
	"strconv"
	"time"
)

// Transport names accepted in broker.transport.
const (
	TransportNATS   = "nats"
	TransportMemory = "memory"
)

// Location providers accepted in location.provider.
const (
	LocationStatic = "static"
	LocationIPAPI  = "ipapi"
)

// Config holds all application configuration.
type Config struct {
	Broker     BrokerConfig     `koanf:"broker"`
	Embedded   EmbeddedConfig   `koanf:"embedded"`
	Topics     TopicsConfig     `koanf:"topics"`
	Publisher  PublisherConfig  `koanf:"publisher"`
	Location   LocationConfig   `koanf:"location"`
	Subscriber SubscriberConfig `koanf:"subscriber"`
	Server     ServerConfig     `koanf:"server"`
	Permits    PermitsConfig    `koanf:"permits"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// BrokerConfig describes the message channel the session connects to.
type BrokerConfig struct {
	Transport      string        `koanf:"transport" validate:"oneof=nats memory"`
	Endpoint       string        `koanf:"endpoint" validate:"omitempty,endpoint"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	AutoConnect    bool          `koanf:"auto_connect"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	ReconnectDelay time.Duration `koanf:"reconnect_delay" validate:"gt=0"`
	ClientName     string        `koanf:"client_name" validate:"required"`
	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout" validate:"gt=0"`
	CloseTimeout   time.Duration `koanf:"close_timeout" validate:"gt=0"`
}

// EmbeddedConfig controls the in-process NATS server.
type EmbeddedConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Host          string        `koanf:"host" validate:"required_if=Enabled true"`
	Port          int           `koanf:"port" validate:"gte=-1,lte=65535"`
	WebSocketPort int           `koanf:"websocket_port" validate:"gte=-1,lte=65535"`
	Username      string        `koanf:"username"`
	Password      string        `koanf:"password"`
	ServerName    string        `koanf:"server_name"`
	MaxPayload    int32         `koanf:"max_payload" validate:"gte=0"`
	ReadyTimeout  time.Duration `koanf:"ready_timeout" validate:"gt=0"`
}

// TopicsConfig names the topics used for publishing and subscribing.
// Empty publish topics are derived from Prefix.
type TopicsConfig struct {
	Prefix      string   `koanf:"prefix" validate:"required,topic"`
	Temperature string   `koanf:"temperature" validate:"omitempty,topic"`
	Location    string   `koanf:"location" validate:"omitempty,topic"`
	Subscribe   []string `koanf:"subscribe" validate:"dive,topicfilter"`
}

// PublisherConfig controls the periodic sampler.
type PublisherConfig struct {
	SampleEnabled  bool          `koanf:"sample_enabled"`
	SampleInterval time.Duration `koanf:"sample_interval" validate:"gt=0"`
	TemperatureMin int           `koanf:"temperature_min"`
	TemperatureMax int           `koanf:"temperature_max" validate:"gtefield=TemperatureMin"`
}

// LocationConfig selects where server-side publishes get their position.
type LocationConfig struct {
	Provider      string        `koanf:"provider" validate:"oneof=static ipapi"`
	Latitude      float64       `koanf:"latitude" validate:"latitude"`
	Longitude     float64       `koanf:"longitude" validate:"longitude"`
	IPAPIURL      string        `koanf:"ipapi_url" validate:"omitempty,url"`
	LocateTimeout time.Duration `koanf:"locate_timeout" validate:"gt=0"`
}

// SubscriberConfig tunes inbound message handling.
type SubscriberConfig struct {
	Buffer int `koanf:"buffer" validate:"gt=0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Address returns host:port for net.Listen.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// PermitsConfig controls the open-data permit search.
type PermitsConfig struct {
	Enabled   bool          `koanf:"enabled"`
	BaseURL   string        `koanf:"base_url" validate:"omitempty,url"`
	Dataset   string        `koanf:"dataset" validate:"required_if=Enabled true"`
	Limit     int           `koanf:"limit" validate:"gte=1,lte=50000"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit float64       `koanf:"rate_limit" validate:"gt=0"`
	Burst     int           `koanf:"burst" validate:"gte=1"`
	CacheTTL  time.Duration `koanf:"cache_ttl" validate:"gte=0"`
	CacheDir  string        `koanf:"cache_dir"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// TemperatureTopic returns the configured temperature topic or its
// prefix-derived default.
func (t TopicsConfig) TemperatureTopic() string {
	if t.Temperature != "" {
		return t.Temperature
	}
	return t.Prefix + ".temperature"
}

// LocationTopic returns the configured location topic or its
// prefix-derived default.
func (t TopicsConfig) LocationTopic() string {
	if t.Location != "" {
		return t.Location
	}
	return t.Prefix + ".location"
}

// SubscribeTopics returns the subscription list, defaulting to both
// publish topics.
func (t TopicsConfig) SubscribeTopics() []string {
	if len(t.Subscribe) > 0 {
		return t.Subscribe
	}
	return []string{t.TemperatureTopic(), t.LocationTopic()}
}
