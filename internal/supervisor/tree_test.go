// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package supervisor

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/georelay/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func newTestTree(t *testing.T, cfg TreeConfig) *SupervisorTree {
	t.Helper()
	tree, err := NewSupervisorTree(logging.NewComponentSlogLogger("supervisor"), cfg)
	if err != nil {
		t.Fatalf("NewSupervisorTree: %v", err)
	}
	return tree
}

func waitStarted(t *testing.T, svc *MockService, n int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for svc.StartCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("%s started %d times, want >= %d", svc, svc.StartCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewSupervisorTreeDefaults(t *testing.T) {
	tree := newTestTree(t, TreeConfig{})

	if tree.Root() == nil {
		t.Fatal("root supervisor is nil")
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
	}
}

func TestNewSupervisorTreeKeepsExplicitValues(t *testing.T) {
	tree := newTestTree(t, TreeConfig{FailureThreshold: 2, FailureBackoff: time.Second})

	if tree.config.FailureThreshold != 2 || tree.config.FailureBackoff != time.Second {
		t.Errorf("explicit values overwritten: %+v", tree.config)
	}
	if tree.config.FailureDecay != 30 || tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("zero values not defaulted: %+v", tree.config)
	}
}

func TestSupervisorTreeStartsEveryLayer(t *testing.T) {
	tree := newTestTree(t, TreeConfig{ShutdownTimeout: time.Second})

	broker := NewMockService("embedded-broker")
	messaging := NewMockService("websocket-hub")
	api := NewMockService("http-server")
	tree.AddBrokerService(broker)
	tree.AddMessagingService(messaging)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for _, svc := range []*MockService{broker, messaging, api} {
		waitStarted(t, svc, 1)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
	for _, svc := range []*MockService{broker, messaging, api} {
		if svc.StopCount() != svc.StartCount() {
			t.Errorf("%s: started %d, stopped %d", svc, svc.StartCount(), svc.StopCount())
		}
	}
}

func TestSupervisorTreeRestartsFailingService(t *testing.T) {
	tree := newTestTree(t, TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	sampler := NewMockService("sampler")
	sampler.SetFailCount(2)
	server := NewMockService("http-server")
	tree.AddMessagingService(sampler)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitStarted(t, sampler, 3)
	if server.StartCount() != 1 {
		t.Errorf("api layer restarted %d times by a messaging failure", server.StartCount())
	}
}

func TestSupervisorTreeRemoveMessagingService(t *testing.T) {
	tree := newTestTree(t, TreeConfig{ShutdownTimeout: time.Second})

	svc := NewMockService("sampler")
	token := tree.AddMessagingService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)
	waitStarted(t, svc, 1)

	if err := tree.RemoveMessagingService(token); err != nil {
		t.Fatalf("RemoveMessagingService: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for svc.StopCount() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("removed service was not stopped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSupervisorTreeUnstoppedReport(t *testing.T) {
	tree := newTestTree(t, TreeConfig{ShutdownTimeout: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	cancel()
	<-errCh

	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("UnstoppedServiceReport: %v", err)
	}
	if len(report) != 0 {
		t.Errorf("unexpected unstopped services: %v", report)
	}
}
