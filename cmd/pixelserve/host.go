package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jpalmerr/pixelserve"
	"github.com/jpalmerr/pixelserve/config"
)

// overrides holds settings given on the command line. They win over the
// settings file, including after a reload.
type overrides struct {
	dir  *string
	port *int
	bind *string
}

func (o overrides) apply(cfg *config.Config) error {
	if o.dir != nil {
		cfg.Server.Directory = *o.dir
	}
	if o.port != nil {
		cfg.Server.Port = *o.port
	}
	if o.bind != nil {
		cfg.Server.BindAddress = *o.bind
	}
	return cfg.Validate()
}

// host owns the supervisor on behalf of the CLI and swaps it when the
// settings change.
type host struct {
	logger    *slog.Logger
	out       io.Writer
	overrides overrides

	mu  sync.Mutex
	cfg *config.Config
	sup *pixelserve.Supervisor
}

func newHost(cfg *config.Config, o overrides, logger *slog.Logger, out io.Writer) (*host, error) {
	h := &host{
		logger:    logger,
		out:       out,
		overrides: o,
		cfg:       cfg,
	}
	sup, err := h.newSupervisor(cfg)
	if err != nil {
		return nil, err
	}
	h.sup = sup
	return h, nil
}

func (h *host) newSupervisor(cfg *config.Config) (*pixelserve.Supervisor, error) {
	dir := cfg.Server.Directory
	opts := config.SupervisorOptions(cfg, h.logger)
	opts = append(opts, pixelserve.WithNotifier(pixelserve.NotifierFuncs{
		Started: func(url string) {
			fmt.Fprintf(h.out, "Serving %s at %s\n", dir, url)
		},
		Stopped: func() {
			fmt.Fprintln(h.out, "Server stopped")
		},
	}))

	sup, err := pixelserve.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create supervisor: %w", err)
	}
	return sup, nil
}

// start starts the server and waits for the outcome.
func (h *host) start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startLocked()
}

func (h *host) startLocked() error {
	ch := h.sup.Subscribe()
	defer h.sup.Unsubscribe(ch)

	h.sup.StartServer(h.cfg.Server.Directory, h.cfg.Server.Port)

	for ev := range ch {
		switch ev.Kind {
		case pixelserve.EventStarted:
			return nil
		case pixelserve.EventError:
			return errors.New(ev.Message)
		}
	}
	return errors.New("supervisor closed before the server started")
}

// url returns the running server's URL, or "".
func (h *host) url() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sup.URL()
}

// reload re-reads the settings file and restarts the server when the server
// settings changed. Invalid settings are logged and the current server keeps
// running.
func (h *host) reload(path string) {
	cfg, err := config.Load(path)
	if err == nil {
		err = h.overrides.apply(cfg)
	}
	if err != nil {
		h.logger.Warn("settings reload failed, keeping current settings", "path", path, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if cfg.Logging != h.cfg.Logging {
		h.logger.Info("logging settings changed, restart pixelserve to apply them")
	}
	if cfg.Server == h.cfg.Server {
		h.logger.Debug("server settings unchanged", "path", path)
		h.cfg = cfg
		return
	}

	running := h.sup.State() == pixelserve.StateRunning
	h.logger.Info("server settings changed, restarting",
		"directory", cfg.Server.Directory,
		"port", cfg.Server.Port,
		"bind_address", cfg.Server.BindAddress,
	)

	sup, err := h.newSupervisor(cfg)
	if err != nil {
		h.logger.Error("settings reload failed", "error", err)
		return
	}
	h.sup.Shutdown()
	h.sup = sup
	h.cfg = cfg

	if !running && !cfg.Server.AutoStart {
		h.logger.Info("server idle, set auto_start to start it on reload")
		return
	}
	if err := h.startLocked(); err != nil {
		h.logger.Error("restart failed", "error", err)
	}
}

// shutdown stops the server and waits for it.
func (h *host) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sup.Shutdown()
}
