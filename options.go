package pixelserve

import (
	"errors"
	"log/slog"
	"time"
)

// supervisorConfig holds mutable state during Supervisor construction.
type supervisorConfig struct {
	bindAddress    string
	startupTimeout time.Duration
	stopTimeout    time.Duration
	rateLimit      float64
	rateBurst      int
	logger         *slog.Logger
	notifiers      []Notifier
}

// Option is a function that configures a [Supervisor] during construction.
//
// Option implements the functional options pattern. Options return an error
// if validation fails.
type Option func(*supervisorConfig) error

// WithBindAddress sets the address the server listens on.
//
// Defaults to "127.0.0.1". Use "0.0.0.0" so a device on the local network
// can reach the server.
//
// Returns an error if the address is empty.
func WithBindAddress(addr string) Option {
	return func(cfg *supervisorConfig) error {
		if addr == "" {
			return errors.New("bind address cannot be empty")
		}
		cfg.bindAddress = addr
		return nil
	}
}

// WithStartupTimeout sets how long a start command waits for the socket to
// bind before reporting an error. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithStartupTimeout(d time.Duration) Option {
	return func(cfg *supervisorConfig) error {
		if d <= 0 {
			return errors.New("startup timeout must be positive")
		}
		cfg.startupTimeout = d
		return nil
	}
}

// WithStopTimeout sets how long a stop command waits for in-flight requests
// and the serve loop to finish. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithStopTimeout(d time.Duration) Option {
	return func(cfg *supervisorConfig) error {
		if d <= 0 {
			return errors.New("stop timeout must be positive")
		}
		cfg.stopTimeout = d
		return nil
	}
}

// WithRateLimit limits each client IP to rps requests per second with the
// given burst. Rate limiting is off by default.
//
// Returns an error if rps is negative or burst is less than 1 while rps is
// positive.
func WithRateLimit(rps float64, burst int) Option {
	return func(cfg *supervisorConfig) error {
		if rps < 0 {
			return errors.New("rate limit cannot be negative")
		}
		if rps > 0 && burst < 1 {
			return errors.New("rate limit burst must be at least 1")
		}
		cfg.rateLimit = rps
		cfg.rateBurst = burst
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the supervisor and the servers
// it runs, including per-request logs.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *supervisorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithNotifier registers a [Notifier] for start, stop and error
// notifications.
//
// Notifiers are invoked from the supervisor's command goroutines, never from
// the goroutine that called StartServer or StopServer. Multiple notifiers
// run in registration order. Panics are recovered and logged.
//
// Nil notifiers are silently ignored.
func WithNotifier(n Notifier) Option {
	return func(cfg *supervisorConfig) error {
		if n == nil {
			return nil
		}
		cfg.notifiers = append(cfg.notifiers, n)
		return nil
	}
}

// WithStartedCallback registers fn to receive the server URL after each
// successful start.
//
// Example:
//
//	sup, err := pixelserve.New(
//	    pixelserve.WithStartedCallback(func(url string) {
//	        log.Printf("serving at %s", url)
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithStartedCallback(fn func(url string)) Option {
	return func(cfg *supervisorConfig) error {
		if fn == nil {
			return nil
		}
		cfg.notifiers = append(cfg.notifiers, NotifierFuncs{Started: fn})
		return nil
	}
}

// WithStoppedCallback registers fn to run after each completed stop.
//
// Nil callbacks are silently ignored.
func WithStoppedCallback(fn func()) Option {
	return func(cfg *supervisorConfig) error {
		if fn == nil {
			return nil
		}
		cfg.notifiers = append(cfg.notifiers, NotifierFuncs{Stopped: fn})
		return nil
	}
}

// WithErrorCallback registers fn to receive the message of each failed
// start or stop.
//
// Nil callbacks are silently ignored.
func WithErrorCallback(fn func(message string)) Option {
	return func(cfg *supervisorConfig) error {
		if fn == nil {
			return nil
		}
		cfg.notifiers = append(cfg.notifiers, NotifierFuncs{Error: fn})
		return nil
	}
}

func buildConfig(opts []Option) (*supervisorConfig, error) {
	cfg := &supervisorConfig{
		bindAddress:    defaultBindAddress,
		startupTimeout: defaultStartupTimeout,
		stopTimeout:    defaultStopTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg, nil
}
