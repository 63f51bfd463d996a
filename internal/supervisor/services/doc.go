// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package services adapts GeoRelay components to suture.Service.

  - HTTPServerService: ListenAndServe plus graceful Shutdown
  - EmbeddedBrokerService: the in-process NATS server
  - LoopService: any blocking Run(ctx) loop (websocket hub, subscriber,
    sampler)
  - SessionService: initial connect with restart on failure, disconnect
    on stop

Each Serve returns ctx.Err() after cancellation and a wrapped error on
failure, which is how suture tells a clean stop from a crash.

	tree.AddBrokerService(services.NewEmbeddedBrokerService(embedded, 5*time.Second))
	tree.AddMessagingService(services.NewLoopService("websocket-hub", hub.RunWithContext))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
*/
package services
