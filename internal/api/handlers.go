// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/georelay/internal/geo"
	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/permits"
	"github.com/tomtom215/georelay/internal/relay"
	"github.com/tomtom215/georelay/internal/validation"
	"github.com/tomtom215/georelay/internal/websocket"
)

const maxBodyBytes = 64 << 10

// PermitSearcher runs open-data permit searches.
type PermitSearcher interface {
	Search(ctx context.Context, start, end time.Time) (*permits.Result, error)
}

// Topics names the default topics used when a request omits one.
type Topics struct {
	Temperature string
	Location    string
	Subscribe   []string
}

// Dependencies wires the handler to the relay core.
type Dependencies struct {
	Session    *relay.Session
	Publisher  *relay.Publisher
	Subscriber *relay.Subscriber
	Hub        *websocket.Hub
	Permits    PermitSearcher // nil disables /permits
	Topics     Topics

	// ConnectTimeout bounds the background connect started by
	// POST /session/connect.
	ConnectTimeout time.Duration

	// AllowedOrigins is checked on websocket upgrades; "*" allows all.
	AllowedOrigins []string
}

// Handler serves the HTTP API.
type Handler struct {
	deps      Dependencies
	startTime time.Time

	// connectDone is signalled after each background connect; tests use it.
	connectDone func(error)
}

// NewHandler creates a handler.
func NewHandler(deps Dependencies) *Handler {
	if deps.ConnectTimeout <= 0 {
		deps.ConnectTimeout = relay.DefaultSessionConfig().ConnectTimeout
	}
	return &Handler{deps: deps, startTime: time.Now()}
}

func logContext(r *http.Request) *zerolog.Logger {
	return logging.Ctx(r.Context())
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		NewResponseWriter(w, r).BadRequest("request body too large or unreadable")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		NewResponseWriter(w, r).BadRequest("invalid JSON body")
		return false
	}
	return true
}

func validate(w http.ResponseWriter, r *http.Request, v any) bool {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return true
	}
	apiErr := verr.ToAPIError()
	NewResponseWriter(w, r).ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
	return false
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status           string `json:"status"`
	Session          string `json:"session"`
	Markers          int    `json:"markers"`
	WebSocketClients int    `json:"websocket_clients"`
	Uptime           string `json:"uptime"`
}

// Health reports liveness together with session state and marker count.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Session: h.deps.Session.State().String(),
		Markers: h.deps.Subscriber.Registry().Len(),
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.deps.Hub != nil {
		resp.WebSocketClients = h.deps.Hub.GetClientCount()
	}
	NewResponseWriter(w, r).Success(resp)
}

// SessionStatus returns the session's current status.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.deps.Session.Status())
}

type connectRequest struct {
	Endpoint string `json:"endpoint" validate:"required,endpoint"`
	Username string `json:"username" validate:"max=256"`
	Password string `json:"password" validate:"max=256"`
}

// Connect starts a connect attempt in the background and answers 202.
// The outcome is reported through session_state websocket messages and
// GET /session.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !decodeJSON(w, r, &req) || !validate(w, r, &req) {
		return
	}
	if err := h.deps.Session.CanConnect(); err != nil {
		writeError(w, r, err)
		return
	}

	var creds *relay.Credentials
	if req.Username != "" {
		creds = &relay.Credentials{Username: req.Username, Password: req.Password}
	}

	// Detach from the request so the attempt outlives the response, but
	// keep the ids for log correlation.
	ctx := logging.ContextWithRequestID(context.Background(), logging.RequestIDFromContext(r.Context()))
	ctx = logging.ContextWithCorrelationID(ctx, logging.CorrelationIDFromContext(r.Context()))
	go h.connect(ctx, req.Endpoint, creds)

	NewResponseWriter(w, r).Accepted(map[string]string{
		"endpoint": req.Endpoint,
		"state":    relay.StateConnecting.String(),
	})
}

func (h *Handler) connect(ctx context.Context, endpoint string, creds *relay.Credentials) {
	ctx, cancel := context.WithTimeout(ctx, h.deps.ConnectTimeout)
	defer cancel()

	err := ConnectAndSubscribe(ctx, h.deps.Session, h.deps.Subscriber, endpoint, creds, h.deps.Topics.Subscribe)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("endpoint", endpoint).Msg("connect request failed")
	}
	if h.connectDone != nil {
		h.connectDone(err)
	}
}

// ConnectAndSubscribe connects session and subscribes sub to topics. The
// session restores the subscriptions itself after later reconnects.
func ConnectAndSubscribe(ctx context.Context, session *relay.Session, sub *relay.Subscriber, endpoint string, creds *relay.Credentials, topics []string) error {
	if err := session.Connect(ctx, endpoint, creds); err != nil {
		return err
	}
	if len(topics) == 0 {
		return nil
	}
	return sub.Subscribe(topics...)
}

// Disconnect closes the session and cancels any pending reconnect.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Session.Disconnect(); err != nil {
		logContext(r).Warn().Err(err).Msg("error closing connection")
	}
	NewResponseWriter(w, r).Success(h.deps.Session.Status())
}

type publishRequest struct {
	Topic       string   `json:"topic" validate:"omitempty,topic"`
	Latitude    *float64 `json:"latitude" validate:"required,latitude"`
	Longitude   *float64 `json:"longitude" validate:"required,longitude"`
	Temperature *float64 `json:"temperature" validate:"omitempty,gte=-100,lte=100"`
	ID          string   `json:"id" validate:"max=128"`
}

// PublishResponse describes a published feature.
type PublishResponse struct {
	Topic      string         `json:"topic"`
	Position   geo.Position   `json:"position"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func publishResponse(topic string, f geo.GeoFeature) PublishResponse {
	return PublishResponse{Topic: topic, Position: f.Position, Attributes: f.Attributes}
}

// Publish publishes a feature at the caller's position, typically the
// browser's geolocation result.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if !decodeJSON(w, r, &req) || !validate(w, r, &req) {
		return
	}

	attrs := map[string]any{}
	topic := req.Topic
	if req.Temperature != nil {
		attrs[geo.AttrTemperature] = *req.Temperature
		if topic == "" {
			topic = h.deps.Topics.Temperature
		}
	}
	if topic == "" {
		topic = h.deps.Topics.Location
	}
	if req.ID != "" {
		attrs[geo.AttrID] = req.ID
	}

	f := geo.NewFeature(geo.Position{Latitude: *req.Latitude, Longitude: *req.Longitude}, attrs)
	if err := h.deps.Publisher.Publish(r.Context(), topic, f); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(publishResponse(topic, f))
}

type topicRequest struct {
	Topic string `json:"topic" validate:"omitempty,topic"`
}

// PublishSample locates server-side, samples a temperature and publishes.
func (h *Handler) PublishSample(w http.ResponseWriter, r *http.Request) {
	h.publishLocated(w, r, h.deps.Topics.Temperature, h.deps.Publisher.PublishSample)
}

// PublishLocation locates server-side and publishes the bare position.
func (h *Handler) PublishLocation(w http.ResponseWriter, r *http.Request) {
	h.publishLocated(w, r, h.deps.Topics.Location, h.deps.Publisher.PublishLocation)
}

func (h *Handler) publishLocated(w http.ResponseWriter, r *http.Request, fallback string, publish func(context.Context, string) (geo.GeoFeature, error)) {
	var req topicRequest
	if !decodeJSON(w, r, &req) || !validate(w, r, &req) {
		return
	}
	topic := req.Topic
	if topic == "" {
		topic = fallback
	}

	f, err := publish(r.Context(), topic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(publishResponse(topic, f))
}

// MarkersResponse is the registry snapshot.
type MarkersResponse struct {
	Count   int                  `json:"count"`
	Markers []relay.MarkerRecord `json:"markers"`
}

// Markers returns every marker, sorted by id.
func (h *Handler) Markers(w http.ResponseWriter, r *http.Request) {
	markers := h.deps.Subscriber.Registry().All()
	if band := r.URL.Query().Get("classification"); band != "" {
		markers = slices.DeleteFunc(markers, func(m relay.MarkerRecord) bool {
			return string(m.Classification) != band
		})
	}
	NewResponseWriter(w, r).Success(MarkersResponse{Count: len(markers), Markers: markers})
}

// Marker returns one marker by id.
func (h *Handler) Marker(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	rec, ok := h.deps.Subscriber.Registry().Get(id)
	if !ok {
		NewResponseWriter(w, r).NotFound("marker not found")
		return
	}
	NewResponseWriter(w, r).Success(rec)
}

// Permits searches building permits issued between ?start= and ?end=.
func (h *Handler) Permits(w http.ResponseWriter, r *http.Request) {
	if h.deps.Permits == nil {
		NewResponseWriter(w, r).ServiceUnavailable("permit search is disabled")
		return
	}

	q := r.URL.Query()
	start, err := permits.ParseDate(q.Get("start"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := permits.ParseDate(q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.deps.Permits.Search(r.Context(), start, end)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(result)
}
