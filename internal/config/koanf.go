// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/georelay/config.yaml",
	"/etc/georelay/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Transport:      TransportNATS,
			Endpoint:       "",
			AutoConnect:    true,
			ConnectTimeout: 10 * time.Second,
			ReconnectDelay: 3 * time.Second,
			ClientName:     "georelay",
			AckWaitTimeout: 30 * time.Second,
			CloseTimeout:   5 * time.Second,
		},
		Embedded: EmbeddedConfig{
			Enabled:       true,
			Host:          "127.0.0.1",
			Port:          4222,
			WebSocketPort: 8443,
			ServerName:    "georelay",
			MaxPayload:    1 << 20,
			ReadyTimeout:  10 * time.Second,
		},
		Topics: TopicsConfig{
			Prefix:      "georelay",
			Temperature: "georelay.temperature",
			Location:    "georelay.location",
			Subscribe:   []string{"georelay.temperature", "georelay.location"},
		},
		Publisher: PublisherConfig{
			SampleEnabled:  false,
			SampleInterval: 30 * time.Second,
			TemperatureMin: -40,
			TemperatureMax: 20,
		},
		Location: LocationConfig{
			Provider:      LocationStatic,
			Latitude:      51.0447, // Calgary
			Longitude:     -114.0719,
			IPAPIURL:      "http://ip-api.com/json/?fields=status,message,lat,lon",
			LocateTimeout: 10 * time.Second,
		},
		Subscriber: SubscriberConfig{
			Buffer: 1024,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              3857,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Permits: PermitsConfig{
			Enabled:   true,
			BaseURL:   "https://data.calgary.ca",
			Dataset:   "c2es-76ed",
			Limit:     1000,
			Timeout:   15 * time.Second,
			RateLimit: 1,
			Burst:     5,
			CacheTTL:  10 * time.Minute,
			CacheDir:  "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from three layers, later ones winning:
//  1. struct defaults
//  2. the YAML file named by CONFIG_PATH or found in DefaultConfigPaths
//  3. mapped environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as strings.
var sliceConfigPaths = []string{
	"topics.subscribe",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to config
// paths. Unmapped variables are ignored.
var envMappings = map[string]string{
	"broker_transport":       "broker.transport",
	"broker_endpoint":        "broker.endpoint",
	"broker_username":        "broker.username",
	"broker_password":        "broker.password",
	"auto_connect":           "broker.auto_connect",
	"connect_timeout":        "broker.connect_timeout",
	"reconnect_delay":        "broker.reconnect_delay",
	"broker_client_name":     "broker.client_name",
	"enable_embedded_broker": "embedded.enabled",
	"embedded_host":          "embedded.host",
	"embedded_port":          "embedded.port",
	"embedded_ws_port":       "embedded.websocket_port",
	"embedded_username":      "embedded.username",
	"embedded_password":      "embedded.password",
	"topic_prefix":           "topics.prefix",
	"topic_temperature":      "topics.temperature",
	"topic_location":         "topics.location",
	"subscribe_topics":       "topics.subscribe",
	"enable_sampler":         "publisher.sample_enabled",
	"sample_interval":        "publisher.sample_interval",
	"temperature_min":        "publisher.temperature_min",
	"temperature_max":        "publisher.temperature_max",
	"location_provider":      "location.provider",
	"latitude":               "location.latitude",
	"longitude":              "location.longitude",
	"ipapi_url":              "location.ipapi_url",
	"locate_timeout":         "location.locate_timeout",
	"subscriber_buffer":      "subscriber.buffer",
	"http_host":              "server.host",
	"http_port":              "server.port",
	"shutdown_timeout":       "server.shutdown_timeout",
	"cors_origins":           "server.cors_origins",
	"rate_limit_requests":    "server.rate_limit_requests",
	"rate_limit_window":      "server.rate_limit_window",
	"disable_rate_limit":     "server.rate_limit_disabled",
	"enable_permits":         "permits.enabled",
	"permits_base_url":       "permits.base_url",
	"permits_dataset":        "permits.dataset",
	"permits_cache_dir":      "permits.cache_dir",
	"permits_cache_ttl":      "permits.cache_ttl",
	"log_level":              "logging.level",
	"log_format":             "logging.format",
	"log_caller":             "logging.caller",
}

// envTransformFunc maps e.g. BROKER_ENDPOINT to broker.endpoint.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
