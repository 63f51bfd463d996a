// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/georelay/internal/geo"
	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/metrics"
)

// ErrQueueFull is reported when an inbound message arrives while the
// processing queue is at capacity.
var ErrQueueFull = errors.New("inbound queue full")

// MarkerUpdate is emitted after every successful registry upsert.
type MarkerUpdate struct {
	ID      string       `json:"id"`
	Record  MarkerRecord `json:"record"`
	Created bool         `json:"created"`
}

// MarkerSink receives marker updates, typically a presentation layer.
type MarkerSink interface {
	MarkerUpdated(update MarkerUpdate)
}

// DropReporter is told about inbound messages that were discarded.
type DropReporter interface {
	MessageDropped(topic string, err error)
}

// Subscription is the part of the session the subscriber needs.
type Subscription interface {
	Subscribe(topic string, handler MessageHandler) error
}

// SubscriberConfig tunes the inbound queue.
type SubscriberConfig struct {
	// Buffer is the inbound queue capacity.
	// Default: 1024
	Buffer int
}

type inbound struct {
	topic   string
	payload []byte
}

// Subscriber turns inbound payloads into registry updates. Transport
// callbacks only enqueue; Run is the single goroutine that decodes,
// classifies and mutates the registry.
type Subscriber struct {
	session  Subscription
	registry *Registry
	queue    chan inbound
	logger   zerolog.Logger

	mu    sync.RWMutex
	sinks []MarkerSink
	drops []DropReporter
}

// NewSubscriber creates a subscriber writing into registry.
func NewSubscriber(session Subscription, registry *Registry, cfg SubscriberConfig) *Subscriber {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	return &Subscriber{
		session:  session,
		registry: registry,
		queue:    make(chan inbound, cfg.Buffer),
		logger:   logging.WithComponent("subscriber"),
	}
}

// AddSink registers a marker sink.
func (s *Subscriber) AddSink(sink MarkerSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// AddDropReporter registers a drop reporter.
func (s *Subscriber) AddDropReporter(r DropReporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drops = append(s.drops, r)
}

// Registry returns the registry the subscriber writes to.
func (s *Subscriber) Registry() *Registry {
	return s.registry
}

// Subscribe registers interest in each topic with the session.
func (s *Subscriber) Subscribe(topics ...string) error {
	for _, topic := range topics {
		if err := s.session.Subscribe(topic, s.OnMessage); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		s.logger.Info().Str("topic", topic).Msg("subscribed")
	}
	return nil
}

// OnMessage enqueues a raw inbound payload without blocking. When the
// queue is full the message is dropped and reported.
func (s *Subscriber) OnMessage(topic string, payload []byte) {
	select {
	case s.queue <- inbound{topic: topic, payload: payload}:
	default:
		metrics.RecordMessageDropped("queue_full")
		s.logger.Warn().Str("topic", topic).Msg("inbound queue full, message dropped")
		s.reportDrop(topic, ErrQueueFull)
	}
}

// Run processes queued messages in arrival order until ctx is canceled.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.queue:
			_, _ = s.Process(msg.topic, msg.payload) //nolint:errcheck // failures are reported inside Process
		}
	}
}

// Process decodes one payload and upserts the resulting marker. A payload
// that fails to decode leaves the registry untouched and is reported to
// the drop reporters.
func (s *Subscriber) Process(topic string, payload []byte) (MarkerRecord, error) {
	feature, err := geo.Decode(payload)
	if err != nil {
		metrics.RecordMessageDropped("encoding")
		s.logger.Warn().Err(err).Str("topic", topic).Int("bytes", len(payload)).Msg("dropping undecodable message")
		s.reportDrop(topic, err)
		return MarkerRecord{}, err
	}

	id, ok := feature.StringAttr(geo.AttrID)
	if !ok || id == "" {
		id = topic
	}

	rec, created := s.registry.Upsert(MarkerRecord{
		ID:             id,
		Position:       feature.Position,
		Classification: geo.ClassifyFeature(feature),
		Attributes:     feature.Attributes,
		Topic:          topic,
		UpdatedAt:      time.Now().UTC(),
	})
	metrics.RecordMessageReceived(s.registry.Len())

	s.logger.Debug().
		Str("topic", topic).
		Str("id", id).
		Str("classification", string(rec.Classification)).
		Bool("created", created).
		Msg("marker updated")

	update := MarkerUpdate{ID: id, Record: rec, Created: created}
	s.mu.RLock()
	sinks := s.sinks
	s.mu.RUnlock()
	for _, sink := range sinks {
		sink.MarkerUpdated(update)
	}
	return rec, nil
}

func (s *Subscriber) reportDrop(topic string, err error) {
	s.mu.RLock()
	drops := s.drops
	s.mu.RUnlock()
	for _, r := range drops {
		r.MessageDropped(topic, err)
	}
}
