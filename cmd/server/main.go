// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/tomtom215/georelay/internal/api"
	"github.com/tomtom215/georelay/internal/config"
	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/relay"
	"github.com/tomtom215/georelay/internal/supervisor"
	"github.com/tomtom215/georelay/internal/supervisor/services"
	ws "github.com/tomtom215/georelay/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("transport", cfg.Broker.Transport).
		Bool("embedded_broker", cfg.Embedded.Enabled).
		Bool("auto_connect", cfg.Broker.AutoConnect).
		Str("temperature_topic", cfg.Topics.TemperatureTopic()).
		Str("location_topic", cfg.Topics.LocationTopic()).
		Msg("Starting GeoRelay")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// The embedded broker is started before the tree so the first
	// auto-connect finds it listening; the supervised service then owns
	// its lifetime.
	embedded, err := startEmbeddedBroker(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to start embedded broker")
	}
	if embedded != nil {
		tree.AddBrokerService(services.NewEmbeddedBrokerService(embedded, cfg.Server.ShutdownTimeout))
	}

	dialer, closeDialer := newDialer(cfg)
	defer closeDialer()

	session := relay.NewSession(dialer, relay.SessionConfig{
		ReconnectDelay: cfg.Broker.ReconnectDelay,
		ConnectTimeout: cfg.Broker.ConnectTimeout,
	})
	registry := relay.NewRegistry()
	subscriber := relay.NewSubscriber(session, registry, relay.SubscriberConfig{Buffer: cfg.Subscriber.Buffer})
	publisher := relay.NewPublisher(session, newLocationProvider(cfg), relay.RandomTemperature{
		Min: cfg.Publisher.TemperatureMin,
		Max: cfg.Publisher.TemperatureMax,
	}, relay.PublisherConfig{LocateTimeout: cfg.Location.LocateTimeout})

	wsHub := ws.NewHub(registry)
	session.AddListener(wsHub)
	subscriber.AddSink(wsHub)
	subscriber.AddDropReporter(wsHub)

	tree.AddMessagingService(services.NewLoopService("websocket-hub", wsHub.RunWithContext))
	tree.AddMessagingService(services.NewLoopService("subscriber", subscriber.Run))
	if cfg.Publisher.SampleEnabled {
		sampler := relay.NewSampler(publisher, cfg.Topics.TemperatureTopic(), cfg.Publisher.SampleInterval)
		tree.AddMessagingService(services.NewLoopService("sampler", sampler.Run))
	}

	endpoint := brokerEndpoint(cfg, embedded)
	var autoConnect services.ConnectFunc
	if cfg.Broker.AutoConnect && endpoint != "" {
		creds := brokerCredentials(cfg)
		topics := cfg.Topics.SubscribeTopics()
		autoConnect = func(ctx context.Context) error {
			return api.ConnectAndSubscribe(ctx, session, subscriber, endpoint, creds, topics)
		}
		logging.Info().Str("endpoint", endpoint).Strs("topics", topics).Msg("Auto-connect enabled")
	}
	tree.AddMessagingService(services.NewSessionService(session, autoConnect, cfg.Broker.ConnectTimeout))

	permitSearcher, closePermits := newPermitSearcher(cfg)
	defer closePermits()

	handler := api.NewHandler(api.Dependencies{
		Session:    session,
		Publisher:  publisher,
		Subscriber: subscriber,
		Hub:        wsHub,
		Permits:    permitSearcher,
		Topics: api.Topics{
			Temperature: cfg.Topics.TemperatureTopic(),
			Location:    cfg.Topics.LocationTopic(),
			Subscribe:   cfg.Topics.SubscribeTopics(),
		},
		ConnectTimeout: cfg.Broker.ConnectTimeout,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})

	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if slices.Contains(cfg.Server.CORSOrigins, "*") {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); set explicit origins in production")
	}

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Server.RateLimitRequests
	mwCfg.RateLimitWindow = cfg.Server.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Server.RateLimitDisabled

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           api.NewRouter(handler, api.NewChiMiddleware(mwCfg)),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Supervisor tree starting")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	unstopped, err := tree.UnstoppedServiceReport()
	if err != nil {
		logging.Warn().Err(err).Msg("Could not collect unstopped service report")
	}
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("GeoRelay stopped")
}
