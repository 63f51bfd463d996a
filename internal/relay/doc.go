// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package relay is the publish/subscribe core of GeoRelay.

# Components

  - Session: the ChannelSession. Owns one connection to the message
    channel and its Disconnected, Connecting and Connected states, with
    fixed-delay automatic reconnection after an unsolicited loss.
  - Publisher: encodes geo features and sends them through the session,
    optionally locating the host and sampling a temperature first.
  - Subscriber: decodes inbound payloads on a single owner goroutine,
    classifies them and upserts the Registry.
  - Registry: the latest MarkerRecord per id.

The message channel itself is abstracted behind Dialer and Conn; see
package transport for the NATS and in-process implementations.

# Errors

Every failure wraps one of ErrNotConnected, ErrEncoding,
ErrTransportFailure, ErrLocationUnavailable or ErrAlreadyConnected.
Match with errors.Is; ErrorKind maps an error to a short label.

# Example

	session := relay.NewSession(transport.NewNATSDialer(transport.NATSConfig{}), relay.SessionConfig{})
	registry := relay.NewRegistry()
	sub := relay.NewSubscriber(session, registry, relay.SubscriberConfig{})
	go sub.Run(ctx)

	if err := session.Connect(ctx, "nats://localhost:4222", nil); err != nil {
		return err
	}
	if err := sub.Subscribe("georelay.temperature"); err != nil {
		return err
	}
*/
package relay
