// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrEncoding is returned (wrapped) for any feature that cannot be encoded
// or decoded in the canonical wire format.
var ErrEncoding = errors.New("invalid geo feature encoding")

// FeatureKind is the only GeoJSON object type carried by the relay.
const FeatureKind = "Feature"

// PointGeometry is the only geometry type carried by the relay.
const PointGeometry = "Point"

// Well-known attribute keys.
const (
	AttrTemperature = "temperature"
	AttrID          = "id"
)

// Position is a WGS84 coordinate pair.
type Position struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Validate reports whether both coordinates are finite and inside the
// valid longitude [-180,180] and latitude [-90,90] ranges.
func (p Position) Validate() error {
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return fmt.Errorf("%w: longitude is not a finite number", ErrEncoding)
	}
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) {
		return fmt.Errorf("%w: latitude is not a finite number", ErrEncoding)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180,180]", ErrEncoding, p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90,90]", ErrEncoding, p.Latitude)
	}
	return nil
}

// GeoFeature is a point feature with free-form scalar attributes.
// Attribute values are float64 or string after decoding; Encode also
// accepts the other Go integer and float kinds.
type GeoFeature struct {
	Kind       string
	Position   Position
	Attributes map[string]any
}

// NewFeature builds a feature at pos. A nil attrs map is replaced with an
// empty one so the encoding always carries a properties object.
func NewFeature(pos Position, attrs map[string]any) GeoFeature {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return GeoFeature{
		Kind:       FeatureKind,
		Position:   pos,
		Attributes: attrs,
	}
}

// Validate checks the feature kind, its position and every attribute value.
func Validate(f GeoFeature) error {
	if f.Kind != FeatureKind {
		return fmt.Errorf("%w: type must be %q, got %q", ErrEncoding, FeatureKind, f.Kind)
	}
	if err := f.Position.Validate(); err != nil {
		return err
	}
	for key, value := range f.Attributes {
		if err := validateAttribute(key, value); err != nil {
			return err
		}
	}
	return nil
}

func validateAttribute(key string, value any) error {
	if _, ok := value.(string); ok {
		return nil
	}
	n, ok := toNumber(value)
	if !ok {
		return fmt.Errorf("%w: property %q must be a number or string, got %T", ErrEncoding, key, value)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("%w: property %q is not a finite number", ErrEncoding, key)
	}
	return nil
}

// Temperature returns the numeric temperature attribute, if present.
func (f GeoFeature) Temperature() (float64, bool) {
	return numberAttr(f.Attributes, AttrTemperature)
}

// StringAttr returns a string attribute, if present.
func (f GeoFeature) StringAttr(key string) (string, bool) {
	s, ok := f.Attributes[key].(string)
	return s, ok
}

func numberAttr(attrs map[string]any, key string) (float64, bool) {
	return toNumber(attrs[key])
}

// toNumber widens every Go numeric kind accepted as an attribute.
func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
