// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Command server runs GeoRelay: a relay that publishes geo-tagged
temperature readings to a NATS broker, subscribes to the same topics,
keeps the latest marker per source, and pushes updates to browsers over
a websocket.

Startup order:

 1. Configuration (koanf: defaults, config.yaml, environment)
 2. Logging (zerolog)
 3. Embedded NATS broker, when ENABLE_EMBEDDED_BROKER=true
 4. Relay session, registry, subscriber, publisher, sampler
 5. Websocket hub, wired as session listener, marker sink and drop reporter
 6. Permit search client with a Badger cache
 7. chi router and HTTP server
 8. suture supervisor tree

Examples:

	# Everything in one process, no external broker
	ENABLE_EMBEDDED_BROKER=true ./georelay

	# External broker with a periodic sampler
	BROKER_ENDPOINT=nats://nats.internal:4222 ENABLE_SAMPLER=true ./georelay

	# In-process channel only, for demos
	BROKER_TRANSPORT=memory ./georelay

SIGINT and SIGTERM cancel the tree: the HTTP server drains, the session
disconnects and the embedded broker shuts down.
*/
package main
