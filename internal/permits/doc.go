// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package permits searches the City of Calgary building-permit open-data
set by issue date and returns point locations for the map.

Requests go through a local token bucket (golang.org/x/time/rate), a
circuit breaker (sony/gobreaker) and an optional BadgerDB result cache
keyed by date range. Responses are GeoJSON decoded with paulmach/orb.

	cache, _ := permits.OpenBadgerCache("")
	client := permits.NewClient(permits.DefaultConfig(), nil, cache)
	res, err := client.Search(ctx, start, end)

Errors: ErrInvalidRange, ErrRateLimited, ErrUnavailable (breaker open)
and ErrUpstream.
*/
package permits
