// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package supervisor runs GeoRelay's long-lived services under suture v4.

	georelay
	├── broker-layer
	│   └── EmbeddedBrokerService (ENABLE_EMBEDDED_BROKER)
	├── messaging-layer
	│   ├── WebSocketHubService
	│   ├── LoopService "subscriber"
	│   ├── LoopService "sampler" (ENABLE_SAMPLER)
	│   └── SessionService (AUTO_CONNECT)
	└── api-layer
	    └── HTTPServerService

A service that returns an error is restarted with suture's backoff;
returning ctx.Err() after cancellation is a clean stop. Supervisor events
are logged through sutureslog into the zerolog-backed slog handler from
package logging.

The service wrappers live in the services subpackage.
*/
package supervisor
