// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package relay

import (
	"errors"

	"github.com/tomtom215/georelay/internal/geo"
)

// Error kinds surfaced by the relay. Callers match them with errors.Is;
// returned errors wrap one of these with context.
var (
	// ErrNotConnected is returned when publish or subscribe is attempted
	// while the session is not Connected. No network call is made.
	ErrNotConnected = errors.New("channel session not connected")

	// ErrEncoding covers malformed or out-of-range payloads on publish or receive.
	ErrEncoding = geo.ErrEncoding

	// ErrTransportFailure wraps connect, reconnect and publish failures
	// reported by the message channel.
	ErrTransportFailure = errors.New("transport failure")

	// ErrLocationUnavailable is returned when the location provider denies
	// or fails the one-shot position request.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrAlreadyConnected is returned by Connect while a connection is
	// established or a connect attempt is still in flight.
	ErrAlreadyConnected = errors.New("channel session already connected or connecting")

	// ErrConnectSettling is returned by Connect after a Disconnect that
	// abandoned a dial, until that dial returns. Retrying shortly succeeds.
	ErrConnectSettling = errors.New("previous connect attempt still settling")
)

// ErrorKind returns a short label for err, used for metrics and API codes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrLocationUnavailable):
		return "location"
	case errors.Is(err, ErrAlreadyConnected):
		return "already_connected"
	case errors.Is(err, ErrConnectSettling):
		return "connect_settling"
	case errors.Is(err, ErrTransportFailure):
		return "transport"
	default:
		return "error"
	}
}
