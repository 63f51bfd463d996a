// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package services

import (
	"context"
	"errors"
	"fmt"
)

// RunFunc is a blocking loop that returns when ctx is canceled. The
// websocket hub's RunWithContext and the subscriber and sampler Run
// methods all have this shape.
type RunFunc func(ctx context.Context) error

// LoopService adapts a RunFunc to suture.Service.
type LoopService struct {
	name string
	run  RunFunc
}

// NewLoopService names run for supervisor logs.
func NewLoopService(name string, run RunFunc) *LoopService {
	return &LoopService{name: name, run: run}
}

// Serve implements suture.Service. A loop that returns before ctx is
// canceled is reported as a failure so suture restarts it.
func (s *LoopService) Serve(ctx context.Context) error {
	err := s.run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		err = errors.New("exited unexpectedly")
	}
	return fmt.Errorf("%s: %w", s.name, err)
}

func (s *LoopService) String() string {
	return s.name
}
