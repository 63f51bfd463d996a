// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package transport

import (
	"io"
	"testing"
	"time"

	"github.com/tomtom215/georelay/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func TestSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic string
		want  string
	}{
		{"georelay.temperature", "georelay.temperature"},
		{"georelay/temperature", "georelay.temperature"},
		{"/georelay/location/", "georelay.location"},
		{"georelay.>", "georelay.>"},
		{"georelay/*/temp", "georelay.*.temp"},
	}
	for _, tt := range tests {
		if got := Subject(tt.topic); got != tt.want {
			t.Errorf("Subject(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

type received struct {
	topic   string
	payload string
}

func collect(ch chan received) func(string, []byte) {
	return func(topic string, payload []byte) {
		ch <- received{topic: topic, payload: string(payload)}
	}
}

func expectMessage(t *testing.T, ch chan received, wantTopic, wantPayload string) {
	t.Helper()
	select {
	case got := <-ch:
		if got.topic != wantTopic || got.payload != wantPayload {
			t.Errorf("received %+v, want topic %q payload %q", got, wantTopic, wantPayload)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no message on %s", wantTopic)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
