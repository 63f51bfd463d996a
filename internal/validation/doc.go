// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

/*
Package validation wraps go-playground/validator v10 with a shared
instance, relay-specific tags and error translation into the API error
format.

Field names in errors come from json tags (request bodies) or koanf tags
(configuration), so messages name fields the way callers wrote them.

Custom tags:

	endpoint     nats://, tls://, ws://, wss:// or memory:// URL
	topic        publishable topic: no whitespace, no * or > wildcards
	topicfilter  subscription topic: no whitespace, wildcards allowed

Example:

	type connectRequest struct {
	    Endpoint string `json:"endpoint" validate:"required,endpoint"`
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
	    apiErr := verr.ToAPIError()
	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
	    return
	}
*/
package validation
