// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package transport implements relay.Dialer on top of Watermill.

NATSDialer speaks core NATS (JetStream disabled) through the
watermill-nats publisher and subscriber, sharing one *nats.Conn per
connection. Topics map to subjects with Subject, which turns
"georelay/temperature" into "georelay.temperature".

MemoryBroker uses Watermill's gochannel pub/sub for single-process
deployments and tests. It can simulate outages with Drop and FailDials.

Every message carries a UUID and a content-type header of
application/geo+json.
*/
package transport
