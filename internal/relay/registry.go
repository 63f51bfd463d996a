// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package relay

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/georelay/internal/geo"
)

// MarkerRecord is the registry's view of the latest feature for one id.
type MarkerRecord struct {
	ID             string         `json:"id"`
	Position       geo.Position   `json:"position"`
	Classification geo.Band       `json:"classification"`
	Colour         string         `json:"colour"`
	Attributes     map[string]any `json:"attributes"`
	Topic          string         `json:"topic"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Updates        int            `json:"updates"`
}

// Registry maps marker ids to their latest record. Writes come from the
// subscriber's owner goroutine; reads may come from anywhere.
// Records are never expired or removed.
type Registry struct {
	mu      sync.RWMutex
	markers map[string]MarkerRecord
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{markers: make(map[string]MarkerRecord)}
}

// Upsert stores rec under rec.ID, replacing any previous record, and
// reports whether the id was new. The returned record carries the
// cumulative update count.
func (r *Registry) Upsert(rec MarkerRecord) (MarkerRecord, bool) {
	rec.Attributes = maps.Clone(rec.Attributes)
	rec.Colour = rec.Classification.Colour()

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.markers[rec.ID]
	rec.Updates = prev.Updates + 1
	r.markers[rec.ID] = rec
	return rec, !exists
}

// Get returns the record for id.
func (r *Registry) Get(id string) (MarkerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.markers[id]
	return rec, ok
}

// All returns a snapshot of every record ordered by id.
func (r *Registry) All() []MarkerRecord {
	r.mu.RLock()
	out := make([]MarkerRecord, 0, len(r.markers))
	for _, rec := range r.markers {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b MarkerRecord) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Len returns the number of markers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markers)
}
