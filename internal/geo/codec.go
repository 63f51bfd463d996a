// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package geo

import (
	"bytes"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// ContentType is attached to published messages as metadata.
const ContentType = "application/geo+json"

type wireGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type wireFeature struct {
	Type       string         `json:"type"`
	Geometry   wireGeometry   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// inbound mirrors wireFeature but keeps the untrusted parts raw so each
// element can be checked before anything is accepted.
type inboundGeometry struct {
	Type        string            `json:"type"`
	Coordinates []json.RawMessage `json:"coordinates"`
}

type inboundFeature struct {
	Type       string                     `json:"type"`
	Geometry   *inboundGeometry           `json:"geometry"`
	Properties map[string]json.RawMessage `json:"properties"`
}

// Encode validates f and returns its canonical encoding.
func Encode(f GeoFeature) ([]byte, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}

	props := f.Attributes
	if props == nil {
		props = map[string]any{}
	}

	data, err := json.Marshal(wireFeature{
		Type: FeatureKind,
		Geometry: wireGeometry{
			Type:        PointGeometry,
			Coordinates: [2]float64{f.Position.Longitude, f.Position.Latitude},
		},
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return data, nil
}

// Decode parses raw as a canonical point feature. Any deviation from the
// wire format returns an error wrapping ErrEncoding and a zero feature.
func Decode(raw []byte) (GeoFeature, error) {
	var in inboundFeature
	if err := json.Unmarshal(raw, &in); err != nil {
		return GeoFeature{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	if in.Type != FeatureKind {
		return GeoFeature{}, fmt.Errorf("%w: type must be %q, got %q", ErrEncoding, FeatureKind, in.Type)
	}
	if in.Geometry == nil {
		return GeoFeature{}, fmt.Errorf("%w: geometry is missing", ErrEncoding)
	}
	if in.Geometry.Type != PointGeometry {
		return GeoFeature{}, fmt.Errorf("%w: geometry type must be %q, got %q", ErrEncoding, PointGeometry, in.Geometry.Type)
	}
	if len(in.Geometry.Coordinates) != 2 {
		return GeoFeature{}, fmt.Errorf("%w: point needs exactly 2 coordinates, got %d", ErrEncoding, len(in.Geometry.Coordinates))
	}

	lon, err := decodeNumber(in.Geometry.Coordinates[0])
	if err != nil {
		return GeoFeature{}, fmt.Errorf("%w: longitude: %v", ErrEncoding, err)
	}
	lat, err := decodeNumber(in.Geometry.Coordinates[1])
	if err != nil {
		return GeoFeature{}, fmt.Errorf("%w: latitude: %v", ErrEncoding, err)
	}

	pos := Position{Longitude: lon, Latitude: lat}
	if err := pos.Validate(); err != nil {
		return GeoFeature{}, err
	}

	attrs := make(map[string]any, len(in.Properties))
	for key, value := range in.Properties {
		decoded, err := decodeScalar(value)
		if err != nil {
			return GeoFeature{}, fmt.Errorf("%w: property %q: %v", ErrEncoding, key, err)
		}
		attrs[key] = decoded
	}

	return NewFeature(pos, attrs), nil
}

// decodeNumber accepts only JSON number literals. null, strings and
// booleans are refused even though json would coerce some of them.
func decodeNumber(raw json.RawMessage) (float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !(trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9')) {
		return 0, fmt.Errorf("not a number: %s", truncate(trimmed))
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return v, nil
}

func decodeScalar(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return s, nil
	}
	return decodeNumber(trimmed)
}

func truncate(b []byte) string {
	const limit = 32
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
