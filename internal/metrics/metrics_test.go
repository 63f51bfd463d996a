// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordSessionTransition(t *testing.T) {
	before := testutil.ToFloat64(SessionTransitions.WithLabelValues("connecting", "connected"))

	RecordSessionTransition("connecting", "connected", 2)

	after := testutil.ToFloat64(SessionTransitions.WithLabelValues("connecting", "connected"))
	if after-before != 1 {
		t.Errorf("transition counter delta = %v, want 1", after-before)
	}
	if got := testutil.ToFloat64(SessionState); got != 2 {
		t.Errorf("SessionState = %v, want 2", got)
	}
}

func TestRecordPublish(t *testing.T) {
	okBefore := testutil.ToFloat64(Publishes.WithLabelValues("ok"))
	failBefore := testutil.ToFloat64(Publishes.WithLabelValues("not_connected"))

	var before dto.Metric
	if err := PublishDuration.Write(&before); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	RecordPublish("ok", 3*time.Millisecond)
	RecordPublish("not_connected", 0)

	if d := testutil.ToFloat64(Publishes.WithLabelValues("ok")) - okBefore; d != 1 {
		t.Errorf("ok delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(Publishes.WithLabelValues("not_connected")) - failBefore; d != 1 {
		t.Errorf("not_connected delta = %v, want 1", d)
	}

	var after dto.Metric
	if err := PublishDuration.Write(&after); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := after.GetHistogram().GetSampleCount() - before.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("histogram observations delta = %d, want 1 (failures must not be observed)", got)
	}
}

func TestRecordMessageCounters(t *testing.T) {
	received := testutil.ToFloat64(MessagesReceived)
	dropped := testutil.ToFloat64(MessagesDropped.WithLabelValues("encoding"))

	RecordMessageReceived(7)
	RecordMessageDropped("encoding")

	if d := testutil.ToFloat64(MessagesReceived) - received; d != 1 {
		t.Errorf("received delta = %v", d)
	}
	if d := testutil.ToFloat64(MessagesDropped.WithLabelValues("encoding")) - dropped; d != 1 {
		t.Errorf("dropped delta = %v", d)
	}
	if got := testutil.ToFloat64(Markers); got != 7 {
		t.Errorf("Markers = %v, want 7", got)
	}
}

func TestRecordPermitCache(t *testing.T) {
	hits := testutil.ToFloat64(PermitCacheHits)
	misses := testutil.ToFloat64(PermitCacheMisses)

	RecordPermitCache(true)
	RecordPermitCache(false)
	RecordPermitCache(false)

	if d := testutil.ToFloat64(PermitCacheHits) - hits; d != 1 {
		t.Errorf("hits delta = %v", d)
	}
	if d := testutil.ToFloat64(PermitCacheMisses) - misses; d != 2 {
		t.Errorf("misses delta = %v", d)
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	RecordCircuitBreakerTransition("test-breaker", "closed", "open", 2)

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test-breaker")); got != 2 {
		t.Errorf("state = %v, want 2", got)
	}
	if got := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues("test-breaker", "closed", "open")); got < 1 {
		t.Errorf("transitions = %v, want >= 1", got)
	}
}

func TestSetWebSocketClients(t *testing.T) {
	SetWebSocketClients(4)
	if got := testutil.ToFloat64(WebSocketClients); got != 4 {
		t.Errorf("WebSocketClients = %v, want 4", got)
	}
	SetWebSocketClients(0)
}
