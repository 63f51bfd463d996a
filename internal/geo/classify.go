// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package geo

// Band is the classification bucket used to pick a marker's colour.
type Band string

const (
	// BandNone marks a record that carries no temperature reading.
	BandNone     Band = ""
	BandCold     Band = "cold"
	BandModerate Band = "moderate"
	BandHot      Band = "hot"
)

type threshold struct {
	below float64
	band  Band
}

// thresholds are scanned in order; the first upper bound the value is
// strictly below wins, so boundary values land in the higher band.
var thresholds = []threshold{
	{below: 10, band: BandCold},
	{below: 30, band: BandModerate},
}

// Classify maps a temperature onto its band.
func Classify(temperature float64) Band {
	for _, t := range thresholds {
		if temperature < t.below {
			return t.band
		}
	}
	return BandHot
}

// ClassifyFeature classifies f by its temperature attribute, returning
// BandNone when the attribute is absent.
func ClassifyFeature(f GeoFeature) Band {
	t, ok := f.Temperature()
	if !ok {
		return BandNone
	}
	return Classify(t)
}

// Colour returns the marker colour the map uses for the band.
func (b Band) Colour() string {
	switch b {
	case BandCold:
		return "blue"
	case BandModerate:
		return "yellow"
	case BandHot:
		return "red"
	default:
		return "green"
	}
}
