// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package websocket

import (
	"errors"
	"time"

	"github.com/tomtom215/georelay/internal/relay"
)

// SessionStateData is sent with session_state messages.
type SessionStateData struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Endpoint  string `json:"endpoint,omitempty"`
	Attempt   int    `json:"attempt"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// RelayErrorData is sent with relay_error messages.
type RelayErrorData struct {
	Topic     string `json:"topic"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// MarkerUpdated implements relay.MarkerSink.
func (h *Hub) MarkerUpdated(update relay.MarkerUpdate) {
	h.BroadcastJSON(MessageTypeMarkerUpdated, update)
}

// OnSessionStateChange implements relay.SessionListener.
func (h *Hub) OnSessionStateChange(change relay.StateChange) {
	data := SessionStateData{
		From:      change.From.String(),
		To:        change.To.String(),
		Endpoint:  change.Endpoint,
		Attempt:   change.Attempt,
		Timestamp: change.At.UTC().Format(time.RFC3339),
	}
	if change.Err != nil {
		data.Error = change.Err.Error()
	}
	h.BroadcastJSON(MessageTypeSessionState, data)
}

// MessageDropped implements relay.DropReporter.
func (h *Hub) MessageDropped(topic string, err error) {
	kind := relay.ErrorKind(err)
	if errors.Is(err, relay.ErrQueueFull) {
		kind = "queue_full"
	}
	h.BroadcastJSON(MessageTypeRelayError, RelayErrorData{
		Topic:     topic,
		Kind:      kind,
		Error:     err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

var (
	_ relay.MarkerSink      = (*Hub)(nil)
	_ relay.SessionListener = (*Hub)(nil)
	_ relay.DropReporter    = (*Hub)(nil)
)
