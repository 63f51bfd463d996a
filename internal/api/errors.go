// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/georelay/internal/permits"
	"github.com/tomtom215/georelay/internal/relay"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// relayErrors maps relay error kinds onto HTTP. Order matters: a publish
// failure wraps ErrTransportFailure and must not be reported as encoding.
var relayErrors = []errorMapping{
	{relay.ErrNotConnected, http.StatusConflict, ErrCodeNotConnected},
	{relay.ErrAlreadyConnected, http.StatusConflict, ErrCodeAlreadyConnected},
	{relay.ErrConnectSettling, http.StatusConflict, ErrCodeConnectSettling},
	{relay.ErrLocationUnavailable, http.StatusFailedDependency, ErrCodeLocation},
	{relay.ErrTransportFailure, http.StatusBadGateway, ErrCodeTransport},
	{relay.ErrEncoding, http.StatusBadRequest, ErrCodeEncoding},
	{permits.ErrInvalidRange, http.StatusBadRequest, ErrCodeBadRequest},
	{permits.ErrRateLimited, http.StatusTooManyRequests, ErrCodeTooManyRequests},
	{permits.ErrUnavailable, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
	{permits.ErrUpstream, http.StatusBadGateway, ErrCodeUpstream},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeTimeout},
}

// statusFor returns the HTTP status and code for err.
func statusFor(err error) (int, string) {
	for _, m := range relayErrors {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}

// writeError renders err using the mapping above. Unmapped errors are
// logged and reported without their text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logContext(r).Error().Err(err).Msg("request failed")
		message = "internal error"
	}
	NewResponseWriter(w, r).Error(status, code, message)
}
