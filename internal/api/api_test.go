// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/georelay/internal/geo"
	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/permits"
	"github.com/tomtom215/georelay/internal/relay"
	"github.com/tomtom215/georelay/internal/transport"
	"github.com/tomtom215/georelay/internal/websocket"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

const (
	temperatureTopic = "georelay.temperature"
	locationTopic    = "georelay.location"
)

var errNoFix = errors.New("no GPS fix")

type failingLocation struct{}

func (failingLocation) Locate(context.Context) (geo.Position, error) {
	return geo.Position{}, errNoFix
}

type fakePermits struct {
	result *permits.Result
	err    error
	calls  int
}

func (f *fakePermits) Search(_ context.Context, start, end time.Time) (*permits.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Start, res.End = permits.FormatDate(start), permits.FormatDate(end)
	return &res, nil
}

type testEnv struct {
	handler   *Handler
	router    http.Handler
	session   *relay.Session
	registry  *relay.Registry
	broker    *transport.MemoryBroker
	connected chan error
}

type envOption func(*Dependencies, *ChiMiddlewareConfig)

func withLocation(l relay.LocationProvider) envOption {
	return func(d *Dependencies, _ *ChiMiddlewareConfig) {
		d.Publisher = relay.NewPublisher(d.Session, l, relay.RandomTemperature{Min: -5, Max: 5}, relay.PublisherConfig{})
	}
}

func withPermits(p PermitSearcher) envOption {
	return func(d *Dependencies, _ *ChiMiddlewareConfig) { d.Permits = p }
}

func withRateLimit(n int) envOption {
	return func(_ *Dependencies, c *ChiMiddlewareConfig) {
		c.RateLimitRequests = n
		c.RateLimitDisabled = false
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	broker := transport.NewMemoryBroker()
	session := relay.NewSession(broker, relay.SessionConfig{ReconnectDelay: 20 * time.Millisecond, ConnectTimeout: time.Second})
	registry := relay.NewRegistry()
	subscriber := relay.NewSubscriber(session, registry, relay.SubscriberConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = subscriber.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = session.Disconnect()
		_ = broker.Close()
	})

	deps := Dependencies{
		Session: session,
		Publisher: relay.NewPublisher(session,
			relay.StaticLocation{Position: geo.Position{Latitude: 51.0447, Longitude: -114.0719}},
			relay.RandomTemperature{Min: -5, Max: 5},
			relay.PublisherConfig{}),
		Subscriber:     subscriber,
		Hub:            websocket.NewHub(registry),
		Topics:         Topics{Temperature: temperatureTopic, Location: locationTopic, Subscribe: []string{temperatureTopic, locationTopic}},
		ConnectTimeout: time.Second,
		AllowedOrigins: []string{"https://map.example.com"},
	}
	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = []string{"https://map.example.com"}
	mwCfg.RateLimitDisabled = true
	for _, opt := range opts {
		opt(&deps, mwCfg)
	}

	h := NewHandler(deps)
	connected := make(chan error, 4)
	h.connectDone = func(err error) { connected <- err }

	return &testEnv{
		handler:   h,
		router:    NewRouter(h, NewChiMiddleware(mwCfg)),
		session:   session,
		registry:  registry,
		broker:    broker,
		connected: connected,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s response: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, resp
}

func (e *testEnv) connect(t *testing.T) {
	t.Helper()
	rec, _ := e.do(t, http.MethodPost, "/api/v1/session/connect", `{"endpoint":"memory://local"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("connect status = %d, body %s", rec.Code, rec.Body.String())
	}
	select {
	case err := <-e.connected:
		if err != nil {
			t.Fatalf("background connect failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("background connect did not finish")
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, resp APIResponse, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Errorf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if resp.Success || resp.Error == nil {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	if resp.Error.Code != code {
		t.Errorf("code = %s, want %s", resp.Error.Code, code)
	}
}

func dataAs[T any](t *testing.T, resp APIResponse) T {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
	health := dataAs[HealthResponse](t, resp)
	if health.Status != "ok" || health.Session != "disconnected" || health.Markers != 0 {
		t.Errorf("health = %+v", health)
	}
	if resp.Meta == nil || resp.Meta.Timestamp.IsZero() || resp.Meta.RequestID == "" {
		t.Errorf("meta = %+v", resp.Meta)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestPublishRequiresConnection(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/publish", `{"latitude":51,"longitude":-114,"temperature":3}`)
	expectError(t, rec, resp, http.StatusConflict, ErrCodeNotConnected)

	rec, resp = env.do(t, http.MethodPost, "/api/v1/publish/sample", "")
	expectError(t, rec, resp, http.StatusConflict, ErrCodeNotConnected)
}

func TestConnectValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing endpoint", `{}`, ErrCodeValidationFailed},
		{"http endpoint", `{"endpoint":"http://example.com"}`, ErrCodeValidationFailed},
		{"malformed json", `{"endpoint":`, ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, http.MethodPost, "/api/v1/session/connect", tt.body)
			expectError(t, rec, resp, http.StatusBadRequest, tt.code)
		})
	}
	if env.session.State() != relay.StateDisconnected {
		t.Error("invalid requests must not start a connect")
	}
}

func TestConnectPublishAndMarkers(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	_, resp := env.do(t, http.MethodGet, "/api/v1/session", "")
	status := dataAs[relay.Status](t, resp)
	if status.State != "connected" || status.Endpoint != "memory://local" {
		t.Errorf("status = %+v", status)
	}
	if len(status.Subscriptions) != 2 {
		t.Errorf("subscriptions = %v, want both topics", status.Subscriptions)
	}

	rec, resp := env.do(t, http.MethodPost, "/api/v1/session/connect", `{"endpoint":"memory://local"}`)
	expectError(t, rec, resp, http.StatusConflict, ErrCodeAlreadyConnected)

	rec, resp = env.do(t, http.MethodPost, "/api/v1/publish", `{"latitude":51.05,"longitude":-114.07,"temperature":-30,"id":"yyc-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish = %d %s", rec.Code, rec.Body.String())
	}
	published := dataAs[PublishResponse](t, resp)
	if published.Topic != temperatureTopic {
		t.Errorf("topic = %q, want temperature topic for a reading", published.Topic)
	}

	waitFor(t, "marker yyc-1", func() bool {
		_, ok := env.registry.Get("yyc-1")
		return ok
	})

	_, resp = env.do(t, http.MethodGet, "/api/v1/markers", "")
	markers := dataAs[MarkersResponse](t, resp)
	if markers.Count != 1 || markers.Markers[0].ID != "yyc-1" {
		t.Fatalf("markers = %+v", markers)
	}
	if markers.Markers[0].Classification != geo.Classify(-30) {
		t.Errorf("classification = %s", markers.Markers[0].Classification)
	}

	_, resp = env.do(t, http.MethodGet, "/api/v1/markers?classification=hot", "")
	if got := dataAs[MarkersResponse](t, resp); got.Count != 0 {
		t.Errorf("filtered markers = %+v", got)
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/markers/yyc-1", "")
	if rec.Code != http.StatusOK || dataAs[relay.MarkerRecord](t, resp).ID != "yyc-1" {
		t.Errorf("marker by id = %d %s", rec.Code, rec.Body.String())
	}
	rec, resp = env.do(t, http.MethodGet, "/api/v1/markers/missing", "")
	expectError(t, rec, resp, http.StatusNotFound, ErrCodeNotFound)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/session/disconnect", "")
	if rec.Code != http.StatusOK || env.session.State() != relay.StateDisconnected {
		t.Errorf("disconnect = %d, state %s", rec.Code, env.session.State())
	}
}

func TestPublishDefaultsToLocationTopic(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	_, resp := env.do(t, http.MethodPost, "/api/v1/publish", `{"latitude":1,"longitude":2}`)
	if got := dataAs[PublishResponse](t, resp); got.Topic != locationTopic {
		t.Errorf("topic = %q, want %q", got.Topic, locationTopic)
	}

	_, resp = env.do(t, http.MethodPost, "/api/v1/publish", `{"topic":"custom.feed","latitude":1,"longitude":2,"temperature":4}`)
	if got := dataAs[PublishResponse](t, resp); got.Topic != "custom.feed" {
		t.Errorf("topic = %q, want explicit topic", got.Topic)
	}
}

func TestPublishValidation(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	for name, body := range map[string]string{
		"missing latitude": `{"longitude":2}`,
		"latitude range":   `{"latitude":91,"longitude":2}`,
		"longitude range":  `{"latitude":1,"longitude":181}`,
		"wildcard topic":   `{"topic":"georelay.>","latitude":1,"longitude":2}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec, resp := env.do(t, http.MethodPost, "/api/v1/publish", body)
			expectError(t, rec, resp, http.StatusBadRequest, ErrCodeValidationFailed)
		})
	}
}

func TestPublishSampleAndLocation(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/publish/sample", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sample = %d %s", rec.Code, rec.Body.String())
	}
	sample := dataAs[PublishResponse](t, resp)
	if sample.Topic != temperatureTopic {
		t.Errorf("sample topic = %q", sample.Topic)
	}
	if _, ok := sample.Attributes[geo.AttrTemperature]; !ok {
		t.Errorf("sample has no temperature: %+v", sample.Attributes)
	}

	rec, resp = env.do(t, http.MethodPost, "/api/v1/publish/location", `{"topic":"georelay.yyc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("location = %d %s", rec.Code, rec.Body.String())
	}
	if got := dataAs[PublishResponse](t, resp); got.Topic != "georelay.yyc" || got.Position.Latitude != 51.0447 {
		t.Errorf("location publish = %+v", got)
	}
}

func TestPublishLocationUnavailable(t *testing.T) {
	env := newTestEnv(t, withLocation(failingLocation{}))
	env.connect(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/publish/location", "")
	expectError(t, rec, resp, http.StatusFailedDependency, ErrCodeLocation)
	if !strings.Contains(resp.Error.Message, errNoFix.Error()) {
		t.Errorf("message = %q", resp.Error.Message)
	}
}

func TestPermits(t *testing.T) {
	fake := &fakePermits{result: &permits.Result{Count: 1, Permits: []permits.Permit{{ID: "BP1"}}}}
	env := newTestEnv(t, withPermits(fake))

	rec, resp := env.do(t, http.MethodGet, "/api/v1/permits?start=2024-03-01&end=2024-03-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("permits = %d %s", rec.Code, rec.Body.String())
	}
	got := dataAs[permits.Result](t, resp)
	if got.Count != 1 || got.Start != "2024-03-01" || got.End != "2024-03-31" {
		t.Errorf("result = %+v", got)
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/permits?start=yesterday&end=2024-03-31", "")
	expectError(t, rec, resp, http.StatusBadRequest, ErrCodeBadRequest)
	if fake.calls != 1 {
		t.Errorf("invalid dates reached the searcher")
	}

	for _, tt := range []struct {
		err    error
		status int
		code   string
	}{
		{permits.ErrRateLimited, http.StatusTooManyRequests, ErrCodeTooManyRequests},
		{permits.ErrUnavailable, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{permits.ErrUpstream, http.StatusBadGateway, ErrCodeUpstream},
	} {
		fake.err = tt.err
		rec, resp = env.do(t, http.MethodGet, "/api/v1/permits?start=2024-03-01&end=2024-03-31", "")
		expectError(t, rec, resp, tt.status, tt.code)
	}
}

func TestPermitsDisabled(t *testing.T) {
	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodGet, "/api/v1/permits?start=2024-03-01&end=2024-03-31", "")
	expectError(t, rec, resp, http.StatusServiceUnavailable, ErrCodeServiceUnavailable)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, withRateLimit(2))

	for i := range 2 {
		if rec, _ := env.do(t, http.MethodGet, "/api/v1/markers", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	rec, resp := env.do(t, http.MethodGet, "/api/v1/markers", "")
	expectError(t, rec, resp, http.StatusTooManyRequests, ErrCodeTooManyRequests)

	// Health is outside the limited group.
	if rec, _ := env.do(t, http.MethodGet, "/api/v1/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health rate limited: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/publish", nil)
	req.Header.Set("Origin", "https://map.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://map.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin %q", got)
	}
}

func TestNotFoundAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/nope", "")
	expectError(t, rec, resp, http.StatusNotFound, ErrCodeNotFound)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	env.router.ServeHTTP(mrec, req)
	if mrec.Code != http.StatusOK || !bytes.Contains(mrec.Body.Bytes(), []byte("georelay_http_requests_total")) {
		t.Errorf("metrics = %d", mrec.Code)
	}
}

func TestWebSocketOriginRejected(t *testing.T) {
	env := newTestEnv(t)

	for name, origin := range map[string]string{"missing": "", "foreign": "https://evil.example.com"} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
			req.Header.Set("Connection", "Upgrade")
			req.Header.Set("Upgrade", "websocket")
			req.Header.Set("Sec-WebSocket-Version", "13")
			req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
			if origin != "" {
				req.Header.Set("Origin", origin)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			if rec.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", rec.Code)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{relay.ErrNotConnected, http.StatusConflict, ErrCodeNotConnected},
		{relay.ErrAlreadyConnected, http.StatusConflict, ErrCodeAlreadyConnected},
		{relay.ErrConnectSettling, http.StatusConflict, ErrCodeConnectSettling},
		{relay.ErrEncoding, http.StatusBadRequest, ErrCodeEncoding},
		{relay.ErrLocationUnavailable, http.StatusFailedDependency, ErrCodeLocation},
		{relay.ErrTransportFailure, http.StatusBadGateway, ErrCodeTransport},
		{errors.Join(relay.ErrTransportFailure, relay.ErrEncoding), http.StatusBadGateway, ErrCodeTransport},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeTimeout},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}
	for _, tt := range tests {
		status, code := statusFor(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("statusFor(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}
}
