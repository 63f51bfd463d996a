// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package geo defines the GeoFeature wire model exchanged over the relay.

A GeoFeature is a single GeoJSON Feature whose geometry is always a Point.
Every message published or received by GeoRelay uses the canonical encoding:

	{
	  "type": "Feature",
	  "geometry": {"type": "Point", "coordinates": [longitude, latitude]},
	  "properties": {"temperature": 21}
	}

Coordinates are ordered longitude first, as GeoJSON requires. Decoding is
strict: a record with missing, extra, non-numeric, non-finite or out-of-range
coordinates is rejected as a whole and nothing is partially returned.

# Classification

Temperature readings are grouped into three bands with an ordered threshold
scan. A value exactly on a threshold belongs to the higher band:

	t < 10        cold
	10 <= t < 30  moderate
	t >= 30       hot
*/
package geo
