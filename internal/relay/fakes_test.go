// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/georelay/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

var errDialRefused = errors.New("connection refused")

type publishedMsg struct {
	topic   string
	payload []byte
}

type fakeConn struct {
	onLost func(error)

	mu         sync.Mutex
	published  []publishedMsg
	subs       map[string]MessageHandler
	closed     bool
	publishErr error
}

func (c *fakeConn) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, publishedMsg{topic: topic, payload: payload})
	return nil
}

func (c *fakeConn) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic] = handler
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[topic]
	return ok
}

func (c *fakeConn) publishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

// deliver invokes the handler registered for topic, as a broker would.
func (c *fakeConn) deliver(topic string, payload []byte) {
	c.mu.Lock()
	h := c.subs[topic]
	c.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

type fakeDialer struct {
	mu       sync.Mutex
	failNext int
	dials    int
	conns    []*fakeConn
	gate     chan struct{}
	entered  chan struct{}

	// ignoreCancel keeps a gated dial blocked after its context ends.
	ignoreCancel bool
}

func (d *fakeDialer) Dial(ctx context.Context, _ string, _ *Credentials, onLost func(error)) (Conn, error) {
	d.mu.Lock()
	d.dials++
	gate, entered, ignoreCancel := d.gate, d.entered, d.ignoreCancel
	fail := d.failNext > 0
	if fail {
		d.failNext--
	}
	d.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil && ignoreCancel {
		<-gate
	} else if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errDialRefused
	}

	conn := &fakeConn{onLost: onLost, subs: make(map[string]MessageHandler)}
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) setFailures(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = n
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type recordingListener struct {
	mu      sync.Mutex
	changes []StateChange
}

func (r *recordingListener) OnSessionStateChange(c StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recordingListener) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.To)
	}
	return out
}

func (r *recordingListener) last() StateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return StateChange{}
	}
	return r.changes[len(r.changes)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestSession(d Dialer) (*Session, *recordingListener) {
	s := NewSession(d, SessionConfig{ReconnectDelay: 20 * time.Millisecond, ConnectTimeout: time.Second})
	l := &recordingListener{}
	s.AddListener(l)
	return s, l
}

type fakeChannel struct {
	mu        sync.Mutex
	state     State
	published []publishedMsg
	err       error
}

func (c *fakeChannel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *fakeChannel) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return ErrNotConnected
	}
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, publishedMsg{topic: topic, payload: payload})
	return nil
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}
