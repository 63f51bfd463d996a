// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/georelay/internal/geo"
)

func TestStaticLocation(t *testing.T) {
	t.Parallel()

	pos, err := StaticLocation{Position: calgary}.Locate(context.Background())
	if err != nil || pos != calgary {
		t.Errorf("Locate() = %+v, %v", pos, err)
	}

	if _, err := (StaticLocation{Position: geo.Position{Latitude: 95}}).Locate(context.Background()); err == nil {
		t.Error("out-of-range static position should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (StaticLocation{Position: calgary}).Locate(ctx); err == nil {
		t.Error("canceled context should fail")
	}
}

func TestIPLocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
		want    geo.Position
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"status":"success","lat":51.0447,"lon":-114.0719}`,
			want:   calgary,
		},
		{
			name:    "denied",
			status:  http.StatusOK,
			body:    `{"status":"fail","message":"reserved range"}`,
			wantErr: "reserved range",
		},
		{
			name:    "bad status",
			status:  http.StatusTooManyRequests,
			body:    `{}`,
			wantErr: "unexpected status 429",
		},
		{
			name:    "malformed",
			status:  http.StatusOK,
			body:    `{"status":`,
			wantErr: "decode response",
		},
		{
			name:    "out of range",
			status:  http.StatusOK,
			body:    `{"status":"success","lat":91,"lon":0}`,
			wantErr: "latitude",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			pos, err := NewIPLocation(srv.URL, srv.Client()).Locate(context.Background())
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Locate() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate() error = %v", err)
			}
			if pos != tt.want {
				t.Errorf("Locate() = %+v, want %+v", pos, tt.want)
			}
		})
	}
}

func TestIPLocation_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","lat":1,"lon":2}`))
	}))
	defer srv.Close()

	loc := NewIPLocation(srv.URL, srv.Client())
	if _, err := loc.Locate(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The burst is spent; the next token is more than a second away.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := loc.Locate(ctx); err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("second Locate() error = %v, want rate limit", err)
	}
}

func TestRandomTemperature(t *testing.T) {
	t.Parallel()

	tests := []RandomTemperature{
		DefaultTemperatureRange,
		{Min: 5, Max: 5},
		{Min: 10, Max: -10},
	}
	for _, r := range tests {
		lo, hi := min(r.Min, r.Max), max(r.Min, r.Max)
		for range 500 {
			if v := r.Sample(); v < lo || v > hi {
				t.Fatalf("%+v.Sample() = %d, outside [%d,%d]", r, v, lo, hi)
			}
		}
	}
}
