// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

// Package broker embeds a NATS server with an optional WebSocket listener.
//
// Relay processes connect over the nats:// client port; browser pages use
// the ws:// listener with any NATS WebSocket client. Server logs are
// written through the zerolog logger with component "nats-server".
package broker
