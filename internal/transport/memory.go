// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/tomtom215/georelay/internal/geo"
	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/relay"
)

// ErrBrokerClosed is returned by Dial after the memory broker was closed.
var ErrBrokerClosed = errors.New("memory broker closed")

// MemoryBroker is an in-process message channel backed by Watermill's
// gochannel pub/sub. Every Dial shares the same topics, so a publisher
// and a subscriber session in one process see each other's messages.
//
// Drop and FailDials simulate broker outages for local demos and tests.
type MemoryBroker struct {
	pubsub *gochannel.GoChannel

	mu       sync.Mutex
	conns    map[*memoryConn]struct{}
	failWith error
	closed   bool
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	logger := watermill.NewSlogLogger(logging.NewComponentSlogLogger("watermill"))
	return &MemoryBroker{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger),
		conns:  make(map[*memoryConn]struct{}),
	}
}

// Dial implements relay.Dialer. The endpoint is recorded but not used.
func (b *MemoryBroker) Dial(ctx context.Context, endpoint string, _ *relay.Credentials, onLost func(error)) (relay.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}
	if b.failWith != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, b.failWith)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	c := &memoryConn{broker: b, onLost: onLost, ctx: connCtx, cancel: cancel}
	b.conns[c] = struct{}{}
	return c, nil
}

// Drop severs every live connection and reports err through each
// connection's onLost callback.
func (b *MemoryBroker) Drop(err error) {
	if err == nil {
		err = errors.New("memory broker dropped connection")
	}

	b.mu.Lock()
	conns := make([]*memoryConn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	clear(b.conns)
	b.mu.Unlock()

	for _, c := range conns {
		c.sever()
		if c.onLost != nil {
			c.onLost(err)
		}
	}
}

// FailDials makes every following Dial fail with err until called with nil.
func (b *MemoryBroker) FailDials(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWith = err
}

// Connections returns the number of live connections.
func (b *MemoryBroker) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Close shuts the broker down. Live connections are severed without a
// loss report.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	conns := make([]*memoryConn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	clear(b.conns)
	b.mu.Unlock()

	for _, c := range conns {
		c.sever()
	}
	return b.pubsub.Close()
}

func (b *MemoryBroker) forget(c *memoryConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, c)
}

type memoryConn struct {
	broker *MemoryBroker
	onLost func(error)
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *memoryConn) sever() {
	c.cancel()
}

// Publish implements relay.Conn.
func (c *memoryConn) Publish(_ context.Context, topic string, payload []byte) error {
	if c.ctx.Err() != nil {
		return errors.New("connection closed")
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(ContentTypeHeader, geo.ContentType)
	return c.broker.pubsub.Publish(Subject(topic), msg)
}

// Subscribe implements relay.Conn.
func (c *memoryConn) Subscribe(topic string, handler relay.MessageHandler) error {
	if c.ctx.Err() != nil {
		return errors.New("connection closed")
	}
	messages, err := c.broker.pubsub.Subscribe(c.ctx, Subject(topic))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	go func() {
		for msg := range messages {
			handler(topic, msg.Payload)
			msg.Ack()
		}
	}()
	return nil
}

// Close implements relay.Conn.
func (c *memoryConn) Close() error {
	c.sever()
	c.broker.forget(c)
	return nil
}
