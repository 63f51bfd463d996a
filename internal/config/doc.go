// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package config loads GeoRelay configuration with koanf.

# Sources

Layers are applied in order, later layers winning:

 1. Struct defaults (defaultConfig)
 2. YAML file: $CONFIG_PATH, else config.yaml, config.yml,
    /etc/georelay/config.yaml or /etc/georelay/config.yml
 3. Environment variables listed in envMappings

Comma-separated env values are split for topics.subscribe and
server.cors_origins.

# Sections

  - broker: transport (nats or memory), endpoint, credentials,
    auto_connect, connect_timeout, reconnect_delay
  - embedded: in-process NATS server with optional WebSocket listener
  - topics: prefix, temperature and location publish topics, subscribe list
  - publisher: periodic sampler and temperature range
  - location: static or ipapi position source
  - subscriber: inbound queue size
  - server: HTTP listener, CORS, rate limits
  - permits: open-data search client and cache
  - logging: zerolog level, format, caller

# Environment Variables

	BROKER_TRANSPORT, BROKER_ENDPOINT, BROKER_USERNAME, BROKER_PASSWORD
	AUTO_CONNECT, CONNECT_TIMEOUT, RECONNECT_DELAY
	ENABLE_EMBEDDED_BROKER, EMBEDDED_PORT, EMBEDDED_WS_PORT
	TOPIC_PREFIX, TOPIC_TEMPERATURE, TOPIC_LOCATION, SUBSCRIBE_TOPICS
	ENABLE_SAMPLER, SAMPLE_INTERVAL, TEMPERATURE_MIN, TEMPERATURE_MAX
	LOCATION_PROVIDER, LATITUDE, LONGITUDE
	HTTP_HOST, HTTP_PORT, CORS_ORIGINS, RATE_LIMIT_REQUESTS, DISABLE_RATE_LIMIT
	ENABLE_PERMITS, PERMITS_CACHE_DIR, PERMITS_CACHE_TTL
	LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Validation runs go-playground/validator tags (see package validation)
followed by cross-section checks such as transport and endpoint scheme
agreement.
*/
package config
