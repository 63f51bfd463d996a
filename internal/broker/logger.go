// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package broker

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/georelay/internal/logging"
)

// serverLogger routes nats-server output into the zerolog logger.
type serverLogger struct {
	logger zerolog.Logger
}

func newServerLogger() *serverLogger {
	return &serverLogger{logger: logging.WithComponent("nats-server")}
}

func (l *serverLogger) Noticef(format string, v ...any) {
	l.logger.Info().Msg(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Warnf(format string, v ...any) {
	l.logger.Warn().Msg(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level without exiting the process.
func (l *serverLogger) Fatalf(format string, v ...any) {
	l.logger.Error().Bool("fatal", true).Msg(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Errorf(format string, v ...any) {
	l.logger.Error().Msg(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Debugf(format string, v ...any) {
	l.logger.Debug().Msg(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Tracef(format string, v ...any) {
	l.logger.Trace().Msg(fmt.Sprintf(format, v...))
}
