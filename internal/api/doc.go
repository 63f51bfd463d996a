// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package api exposes the relay over HTTP using the chi router.

# Routes

	GET  /api/v1/health               liveness, session state, marker count
	GET  /api/v1/session              session status
	POST /api/v1/session/connect      {endpoint, username?, password?} -> 202
	POST /api/v1/session/disconnect
	POST /api/v1/publish              {topic?, latitude, longitude, temperature?, id?}
	POST /api/v1/publish/sample       server-side location + random temperature
	POST /api/v1/publish/location     server-side location only
	GET  /api/v1/markers              registry snapshot (?classification= filter)
	GET  /api/v1/markers/{id}
	GET  /api/v1/permits?start=&end=  open-data permit search
	GET  /api/v1/ws                   websocket feed
	GET  /metrics                     Prometheus

# Responses

Every JSON response uses the envelope

	{"success": bool, "data": ..., "error": {"code", "message"}, "meta": {"timestamp", ...}}

Relay errors map to HTTP status codes:

	not connected         409 NOT_CONNECTED
	already connected     409 ALREADY_CONNECTED
	connect settling      409 CONNECT_SETTLING
	encoding              400 ENCODING_ERROR
	transport failure     502 TRANSPORT_FAILURE
	location unavailable  424 LOCATION_UNAVAILABLE

# Middleware

Request ids and Prometheus timing (package middleware), chi RealIP and
Recoverer, go-chi/cors, and per-IP go-chi/httprate limits on the
/api/v1 group (health and websocket excluded).
*/
package api
