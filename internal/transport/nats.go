// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/georelay/internal/geo"
	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/relay"
)

// ContentTypeHeader carries the payload media type on every message.
const ContentTypeHeader = "content-type"

// NATSConfig holds NATS client settings.
type NATSConfig struct {
	// ClientName is reported to the server for monitoring.
	ClientName string

	// AckWaitTimeout bounds how long Watermill waits for a handler to ack.
	AckWaitTimeout time.Duration

	// CloseTimeout bounds subscriber shutdown.
	CloseTimeout time.Duration
}

// DefaultNATSConfig returns the client defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		ClientName:     "georelay",
		AckWaitTimeout: 30 * time.Second,
		CloseTimeout:   5 * time.Second,
	}
}

// NATSDialer connects to a NATS server using core subjects (no JetStream).
// Endpoints may use nats://, tls://, ws:// or wss://.
//
// Client-side reconnection is disabled: the relay session owns retries,
// so a dropped connection is reported once through onLost and abandoned.
type NATSDialer struct {
	cfg    NATSConfig
	logger watermill.LoggerAdapter
}

// NewNATSDialer creates a dialer. Zero config fields take defaults.
func NewNATSDialer(cfg NATSConfig) *NATSDialer {
	defaults := DefaultNATSConfig()
	if cfg.ClientName == "" {
		cfg.ClientName = defaults.ClientName
	}
	if cfg.AckWaitTimeout <= 0 {
		cfg.AckWaitTimeout = defaults.AckWaitTimeout
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = defaults.CloseTimeout
	}
	return &NATSDialer{
		cfg:    cfg,
		logger: watermill.NewSlogLogger(logging.NewComponentSlogLogger("watermill")),
	}
}

// Subject maps a relay topic onto a NATS subject. Slash-separated topics
// become dot-separated subjects; NATS wildcards pass through unchanged.
func Subject(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

// Dial implements relay.Dialer.
func (d *NATSDialer) Dial(ctx context.Context, endpoint string, creds *relay.Credentials, onLost func(error)) (relay.Conn, error) {
	conn := &natsConn{onLost: onLost, logger: d.logger}

	opts := []natsgo.Option{
		natsgo.Name(d.cfg.ClientName),
		natsgo.NoReconnect(),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			conn.lost(err)
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			fields := watermill.LogFields{}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			d.logger.Error("NATS async error", err, fields)
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			opts = append(opts, natsgo.Timeout(remaining))
		}
	}
	if creds != nil && creds.Username != "" {
		opts = append(opts, natsgo.UserInfo(creds.Username, creds.Password))
	}

	nc, err := connect(ctx, endpoint, opts, conn)
	if err != nil {
		return nil, err
	}
	conn.nc = nc

	pub, err := wmNats.NewPublisherWithNatsConn(nc, wmNats.PublisherPublishConfig{
		Marshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{Disabled: true},
	}, d.logger)
	if err != nil {
		conn.closeQuietly()
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	conn.publisher = pub

	sub, err := wmNats.NewSubscriberWithNatsConn(nc, wmNats.SubscriberSubscriptionConfig{
		Unmarshaler:      &wmNats.NATSMarshaler{},
		SubscribersCount: 1,
		AckWaitTimeout:   d.cfg.AckWaitTimeout,
		CloseTimeout:     d.cfg.CloseTimeout,
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, d.logger)
	if err != nil {
		conn.closeQuietly()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	conn.subscriber = sub
	conn.ctx, conn.cancel = context.WithCancel(context.Background())

	d.logger.Info("NATS connected", watermill.LogFields{"url": nc.ConnectedUrl()})
	return conn, nil
}

// connect runs natsgo.Connect so that ctx can abandon it. A connection
// that completes after ctx ended is closed without reporting a loss.
func connect(ctx context.Context, endpoint string, opts []natsgo.Option, conn *natsConn) (*natsgo.Conn, error) {
	type result struct {
		nc  *natsgo.Conn
		err error
	}
	done := make(chan result, 1)
	go func() {
		nc, err := natsgo.Connect(endpoint, opts...)
		done <- result{nc: nc, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("connect %s: %w", endpoint, r.err)
		}
		return r.nc, nil
	case <-ctx.Done():
		conn.closing.Store(true)
		go func() {
			if r := <-done; r.nc != nil {
				r.nc.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

type natsConn struct {
	nc         *natsgo.Conn
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
	onLost     func(error)

	ctx    context.Context
	cancel context.CancelFunc

	closing   atomic.Bool
	lostOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

func (c *natsConn) lost(err error) {
	if c.closing.Load() {
		return
	}
	if err == nil {
		err = errors.New("NATS connection closed")
	}
	c.lostOnce.Do(func() {
		c.logger.Error("NATS connection lost", err, nil)
		if c.onLost != nil {
			c.onLost(err)
		}
	})
}

// Publish implements relay.Conn.
func (c *natsConn) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(ContentTypeHeader, geo.ContentType)
	msg.SetContext(ctx)

	if err := c.publisher.Publish(Subject(topic), msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe implements relay.Conn. The subscription ends with the connection.
func (c *natsConn) Subscribe(topic string, handler relay.MessageHandler) error {
	messages, err := c.subscriber.Subscribe(c.ctx, Subject(topic))
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
func (c *natsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		if c.cancel != nil {
			c.cancel()
		}
		var errs []error
		if c.subscriber != nil {
			if err := c.subscriber.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close subscriber: %w", err))
			}
		}
		if c.publisher != nil {
			if err := c.publisher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close publisher: %w", err))
			}
		}
		if c.nc != nil {
			c.nc.Close()
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

func (c *natsConn) closeQuietly() {
	_ = c.Close()
}
