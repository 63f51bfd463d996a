// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/georelay/internal/geo"
	"github.com/tomtom215/georelay/internal/metrics"
)

type sinkRecorder struct {
	mu      sync.Mutex
	updates []MarkerUpdate
	drops   []error
}

func (r *sinkRecorder) MarkerUpdated(u MarkerUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *sinkRecorder) MessageDropped(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drops = append(r.drops, err)
}

func (r *sinkRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates), len(r.drops)
}

func newTestSubscriber(buffer int) (*Subscriber, *sinkRecorder) {
	sub := NewSubscriber(nil, NewRegistry(), SubscriberConfig{Buffer: buffer})
	rec := &sinkRecorder{}
	sub.AddSink(rec)
	sub.AddDropReporter(rec)
	return sub, rec
}

func TestSubscriber_ProcessClassifies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		band    geo.Band
		colour  string
	}{
		{"cold", `{"type":"Feature","geometry":{"type":"Point","coordinates":[-114.07,51.04]},"properties":{"temperature":9}}`, geo.BandCold, "blue"},
		{"moderate lower bound", `{"type":"Feature","geometry":{"type":"Point","coordinates":[-114.07,51.04]},"properties":{"temperature":10}}`, geo.BandModerate, "yellow"},
		{"hot", `{"type":"Feature","geometry":{"type":"Point","coordinates":[-114.07,51.04]},"properties":{"temperature":30}}`, geo.BandHot, "red"},
		{"location only", `{"type":"Feature","geometry":{"type":"Point","coordinates":[-114.07,51.04]},"properties":{}}`, geo.BandNone, "green"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sub, _ := newTestSubscriber(0)
			rec, err := sub.Process("georelay.temperature", []byte(tt.payload))
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if rec.Classification != tt.band || rec.Colour != tt.colour {
				t.Errorf("classification = %q/%q, want %q/%q", rec.Classification, rec.Colour, tt.band, tt.colour)
			}
		})
	}
}

func TestSubscriber_ProcessIDAndUpdates(t *testing.T) {
	t.Parallel()

	sub, sinks := newTestSubscriber(0)
	withID := []byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"id":"van-7","temperature":-3}}`)
	withoutID := []byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[3,4]},"properties":{"temperature":12.5}}`)

	rec, err := sub.Process("georelay.temperature", withID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "van-7" || rec.Updates != 1 {
		t.Errorf("record = %+v", rec)
	}
	if rec, _ = sub.Process("georelay.temperature", withID); rec.Updates != 2 {
		t.Errorf("Updates = %d, want 2", rec.Updates)
	}
	if rec, _ = sub.Process("georelay.location", withoutID); rec.ID != "georelay.location" {
		t.Errorf("ID = %q, want topic fallback", rec.ID)
	}

	if n := sub.Registry().Len(); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
	updates, _ := sinks.counts()
	if updates != 3 {
		t.Errorf("sink updates = %d, want 3", updates)
	}
	sinks.mu.Lock()
	created := []bool{sinks.updates[0].Created, sinks.updates[1].Created, sinks.updates[2].Created}
	sinks.mu.Unlock()
	if created[0] != true || created[1] != false || created[2] != true {
		t.Errorf("Created flags = %v", created)
	}
}

func TestSubscriber_ProcessRejectsInvalid(t *testing.T) {
	t.Parallel()

	sub, sinks := newTestSubscriber(0)
	before := testutil.ToFloat64(metrics.MessagesDropped.WithLabelValues("encoding"))

	_, err := sub.Process("georelay.temperature", []byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[200,0]},"properties":{}}`))
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("Process() error = %v, want ErrEncoding", err)
	}
	if sub.Registry().Len() != 0 {
		t.Error("registry must be unchanged after a rejected message")
	}
	updates, drops := sinks.counts()
	if updates != 0 || drops != 1 {
		t.Errorf("updates=%d drops=%d, want 0/1", updates, drops)
	}
	if after := testutil.ToFloat64(metrics.MessagesDropped.WithLabelValues("encoding")); after < before+1 {
		t.Errorf("dropped metric = %v, want at least %v", after, before+1)
	}
}

func TestSubscriber_QueueFull(t *testing.T) {
	t.Parallel()

	sub, sinks := newTestSubscriber(1)
	payload := []byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{}}`)

	sub.OnMessage("a", payload)
	sub.OnMessage("b", payload)

	_, drops := sinks.counts()
	if drops != 1 {
		t.Fatalf("drops = %d, want 1", drops)
	}
	sinks.mu.Lock()
	err := sinks.drops[0]
	sinks.mu.Unlock()
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("drop error = %v, want ErrQueueFull", err)
	}
}

func TestSubscriber_RunProcessesInOrder(t *testing.T) {
	t.Parallel()

	sub, sinks := newTestSubscriber(16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	for _, temp := range []string{"1", "15", "40"} {
		sub.OnMessage("georelay.temperature",
			[]byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"temperature":`+temp+`}}`))
	}
	waitFor(t, "three updates", func() bool { n, _ := sinks.counts(); return n == 3 })

	rec, ok := sub.Registry().Get("georelay.temperature")
	if !ok || rec.Classification != geo.BandHot || rec.Updates != 3 {
		t.Errorf("final record = %+v", rec)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestSubscriber_SubscribeThroughSession(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	session, _ := newTestSession(d)
	sub := NewSubscriber(session, NewRegistry(), SubscriberConfig{})

	if err := sub.Subscribe("georelay.temperature"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if err := session.Connect(context.Background(), testEndpoint, nil); err != nil {
		t.Fatal(err)
	}
	if err := sub.Subscribe("georelay.temperature", "georelay.location"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	d.lastConn().deliver("georelay.location",
		[]byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[-114.07,51.04]},"properties":{}}`))
	msg := <-sub.queue
	if msg.topic != "georelay.location" {
		t.Errorf("queued topic = %q", msg.topic)
	}
}
