// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package logging provides the process-wide zerolog logger for GeoRelay.

# Quick Start

	logging.Init(logging.Config{Level: "info", Format: "json"})

	logging.Info().Str("endpoint", endpoint).Msg("session connected")
	logging.Err(err).Str("topic", topic).Msg("publish failed")
	logging.Ctx(ctx).Debug().Msg("request handled")

# Configuration

Environment Variables:
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json, console (default: json)
  - LOG_CALLER: true/false (default: false)

# slog Bridge

Libraries that only speak log/slog (sutureslog, Watermill) are given
NewSlogLogger, so every line ends up in the same zerolog stream.

Always terminate log chains with .Msg() or .Send(); an unterminated event
is never written.
*/
package logging
