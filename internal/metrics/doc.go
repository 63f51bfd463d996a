// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package metrics provides Prometheus metrics for the relay.

All collectors are registered on the default registry through promauto and
exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:3857/metrics

Session Metrics:
  - georelay_session_state: current state (gauge)
  - georelay_session_transitions_total: transitions (counter, labels: from, to)
  - georelay_session_reconnect_attempts_total: automatic reconnects (counter)

Relay Metrics:
  - georelay_publishes_total: publish attempts (counter, label: result)
  - georelay_publish_duration_seconds: successful publish latency (histogram)
  - georelay_messages_received_total / georelay_messages_dropped_total
  - georelay_markers: registry size (gauge)

Permit Search Metrics:
  - georelay_permit_requests_total (label: result)
  - georelay_permit_cache_hits_total / georelay_permit_cache_misses_total
  - georelay_circuit_breaker_state / georelay_circuit_breaker_transitions_total

Callers use the Record* helpers rather than touching collectors directly.
*/
package metrics
