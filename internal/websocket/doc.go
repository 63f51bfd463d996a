// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package websocket pushes relay events to browser map pages.

The Hub implements relay.MarkerSink, relay.SessionListener and
relay.DropReporter, so it can be attached directly to a Session and a
Subscriber. Each browser connection is a Client with a read pump and a
write pump, using gorilla/websocket.

Message types:

  - markers_snapshot: the full registry, sent once when a client connects
  - marker_updated: one registry upsert (relay.MarkerUpdate)
  - session_state: a channel session transition
  - relay_error: an inbound message that was dropped
  - ping / pong: application keepalive initiated by the browser

Every frame is a JSON object {"type": ..., "data": ...}.

A client that cannot keep up with broadcasts is disconnected instead of
stalling the hub.
*/
package websocket
