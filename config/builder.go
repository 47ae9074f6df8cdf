package config

import (
	"log/slog"

	"github.com/jpalmerr/pixelserve"
)

// SupervisorOptions converts server settings into supervisor options.
//
// The directory and port are not options; they are passed to
// [pixelserve.Supervisor.StartServer] on each start.
func SupervisorOptions(cfg *Config, logger *slog.Logger) []pixelserve.Option {
	s := cfg.Server

	opts := []pixelserve.Option{
		pixelserve.WithBindAddress(s.BindAddress),
		pixelserve.WithStartupTimeout(s.StartupTimeout.Duration()),
		pixelserve.WithStopTimeout(s.StopTimeout.Duration()),
	}

	if s.RateLimit.RequestsPerSecond > 0 {
		opts = append(opts, pixelserve.WithRateLimit(s.RateLimit.RequestsPerSecond, s.RateLimit.Burst))
	}

	if logger != nil {
		opts = append(opts, pixelserve.WithLogger(logger))
	}

	return opts
}
