// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package main

import (
	"net/http"

	"github.com/tomtom215/georelay/internal/api"
	"github.com/tomtom215/georelay/internal/config"
	"github.com/tomtom215/georelay/internal/logging"
	"github.com/tomtom215/georelay/internal/permits"
)

// newPermitSearcher returns nil when permit search is disabled. A cache
// that cannot be opened disables caching, not the search.
func newPermitSearcher(cfg *config.Config) (api.PermitSearcher, func()) {
	if !cfg.Permits.Enabled {
		logging.Info().Msg("Permit search disabled (ENABLE_PERMITS=false)")
		return nil, func() {}
	}

	pcfg := permits.DefaultConfig()
	pcfg.BaseURL = cfg.Permits.BaseURL
	pcfg.Dataset = cfg.Permits.Dataset
	pcfg.Limit = cfg.Permits.Limit
	pcfg.Timeout = cfg.Permits.Timeout
	pcfg.RateLimit = cfg.Permits.RateLimit
	pcfg.Burst = cfg.Permits.Burst
	pcfg.CacheTTL = cfg.Permits.CacheTTL

	var cache permits.Cache
	closeCache := func() {}
	if cfg.Permits.CacheTTL > 0 {
		bc, err := permits.OpenBadgerCache(cfg.Permits.CacheDir)
		if err != nil {
			logging.Warn().Err(err).Str("dir", cfg.Permits.CacheDir).Msg("Permit cache unavailable, continuing without it")
		} else {
			cache = bc
			closeCache = func() {
				if err := bc.Close(); err != nil {
					logging.Warn().Err(err).Msg("Error closing permit cache")
				}
			}
		}
	}

	client := permits.NewClient(pcfg, &http.Client{Timeout: pcfg.Timeout}, cache)
	logging.Info().
		Str("base_url", pcfg.BaseURL).
		Str("dataset", pcfg.Dataset).
		Bool("cached", cache != nil).
		Msg("Permit search enabled")
	return client, closeCache
}
