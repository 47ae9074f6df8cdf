package pixelserve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/pixelserve/internal/events"
	"github.com/jpalmerr/pixelserve/internal/fileserver"
	"github.com/jpalmerr/pixelserve/internal/server"
)

const (
	defaultBindAddress    = server.DefaultBindAddress
	defaultStartupTimeout = 10 * time.Second
	defaultStopTimeout    = 5 * time.Second
)

// Event is a notification delivered to [Supervisor.Subscribe] channels.
type Event = events.Event

// EventKind identifies an [Event].
type EventKind = events.Kind

const (
	EventStarted = events.KindStarted
	EventStopped = events.KindStopped
	EventError   = events.KindError
)

// Supervisor runs the static file server in the background on behalf of a
// host that must never block, such as a GUI event loop.
//
// StartServer and StopServer return immediately. The outcome arrives later
// through the registered [Notifier] callbacks and through [Supervisor.Subscribe]
// channels:
//
//	sup, err := pixelserve.New(
//	    pixelserve.WithStartedCallback(func(url string) { ... }),
//	    pixelserve.WithErrorCallback(func(msg string) { ... }),
//	)
//	sup.StartServer("/home/me/gifs", 8000)
//	...
//	sup.StopServer()
//
// A Supervisor holds at most one server at a time. Starting while a server
// is starting, running, or stopping reports [ErrAlreadyRunning]. Hosts
// should still disable their start control until a notification arrives.
type Supervisor struct {
	bindAddress    string
	startupTimeout time.Duration
	stopTimeout    time.Duration
	handlerOpts    []fileserver.Option
	logger         *slog.Logger
	notifiers      []Notifier
	hub            *events.Hub

	mu      sync.Mutex
	runtime *server.Runtime
	state   State
	gen     uint64

	wg sync.WaitGroup
}

// New creates a [Supervisor] with the given options. No server is started.
//
// Defaults:
//   - Bind address: 127.0.0.1
//   - Startup timeout: 10 seconds
//   - Stop timeout: 5 seconds
//   - Rate limiting: off
func New(opts ...Option) (*Supervisor, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		bindAddress:    cfg.bindAddress,
		startupTimeout: cfg.startupTimeout,
		stopTimeout:    cfg.stopTimeout,
		logger:         cfg.logger,
		notifiers:      cfg.notifiers,
		hub:            events.NewHub(),
		state:          StateStopped,
	}
	if cfg.rateLimit > 0 {
		s.handlerOpts = append(s.handlerOpts, fileserver.WithRateLimit(cfg.rateLimit, cfg.rateBurst))
	}
	return s, nil
}

// StartServer starts serving directory on port in the background.
//
// Exactly one notification follows: started with the server URL, or an
// error. Port 0 picks an ephemeral port.
func (s *Supervisor) StartServer(directory string, port int) {
	id := uuid.NewString()

	s.mu.Lock()
	if s.state == StateStarting || s.state == StateRunning || s.state == StateStopping {
		state := s.state
		s.mu.Unlock()
		s.logger.Warn("start rejected", "command_id", id, "state", state.String())
		s.dispatch(func() { s.emitError(id, ErrAlreadyRunning) })
		return
	}
	s.gen++
	gen := s.gen
	s.state = StateStarting
	s.mu.Unlock()

	s.logger.Info("starting server", "command_id", id, "directory", directory, "port", port)
	s.dispatch(func() { s.start(id, gen, directory, port) })
}

// StopServer stops the current server in the background.
//
// A stopped notification follows once the socket is closed and the serve
// loop has exited, or once the stop timeout has elapsed. Stopping with no
// server running still notifies stopped.
func (s *Supervisor) StopServer() {
	id := uuid.NewString()

	s.mu.Lock()
	rt := s.runtime
	s.runtime = nil
	if s.state == StateStarting || s.state == StateRunning {
		s.state = StateStopping
	}
	s.mu.Unlock()

	s.logger.Info("stopping server", "command_id", id)
	s.dispatch(func() { s.stop(id, rt) })
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// URL returns the running server's URL, or "" when no server is running.
func (s *Supervisor) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runtime == nil || s.state != StateRunning {
		return ""
	}
	return s.runtime.URL()
}

// Subscribe returns a channel of notifications. Slow readers miss events;
// use a [Notifier] when every notification matters. Call
// [Supervisor.Unsubscribe] when done.
func (s *Supervisor) Subscribe() <-chan Event {
	return s.hub.Subscribe()
}

// Unsubscribe closes a channel returned by [Supervisor.Subscribe].
func (s *Supervisor) Unsubscribe(ch <-chan Event) {
	s.hub.Unsubscribe(ch)
}

// LastEvent returns the most recent notification.
func (s *Supervisor) LastEvent() (Event, bool) {
	return s.hub.Last()
}

// Wait blocks until every in-flight start and stop command has finished and
// notified.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Shutdown stops any running server, waits for all commands, and closes
// subscriber channels. The Supervisor must not be used afterwards.
func (s *Supervisor) Shutdown() {
	s.StopServer()
	s.Wait()
	s.hub.Close()
}

func (s *Supervisor) dispatch(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Supervisor) start(id string, gen uint64, directory string, port int) {
	rt, err := server.New(
		server.Config{Root: directory, Port: port, BindAddress: s.bindAddress},
		server.WithLogger(s.logger),
		server.WithHandlerOptions(s.handlerOpts...),
	)
	if err != nil {
		s.finishStart(gen, nil, StateFailed)
		s.emitError(id, err)
		return
	}

	s.mu.Lock()
	if s.gen != gen || s.state != StateStarting {
		s.mu.Unlock()
		s.emitError(id, ErrStopped)
		return
	}
	s.runtime = rt
	s.mu.Unlock()

	go func() {
		err := rt.Run()
		s.runtimeExited(rt, err)
	}()

	if err := rt.WaitForStartup(s.startupTimeout); err != nil {
		if errors.Is(err, ErrStartupTimeout) {
			rt.Stop(s.stopTimeout)
		}
		s.finishStart(gen, rt, StateFailed)
		s.emitError(id, err)
		return
	}

	s.mu.Lock()
	if s.gen != gen || s.runtime != rt || s.state != StateStarting {
		// a stop command took the runtime while it was binding
		s.mu.Unlock()
		s.emitError(id, ErrStopped)
		return
	}
	s.state = StateRunning
	url := rt.URL()
	s.mu.Unlock()

	s.emitStarted(id, url)
}

// finishStart records a failed start unless a newer command has taken over.
func (s *Supervisor) finishStart(gen uint64, rt *server.Runtime, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != StateStarting {
		return
	}
	if s.runtime == rt {
		s.runtime = nil
	}
	s.state = state
}

func (s *Supervisor) stop(id string, rt *server.Runtime) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("stop panicked",
				"command_id", id,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
			)
			s.mu.Lock()
			if s.state == StateStopping {
				s.state = StateFailed
			}
			s.mu.Unlock()
			s.emitError(id, fmt.Errorf("stop failed (correlation_id: %s)", correlationID))
		}
	}()

	if rt != nil && !rt.Stop(s.stopTimeout) {
		s.logger.Warn("stop completed best-effort",
			"command_id", id,
			"timeout", s.stopTimeout.String(),
			"error", ErrShutdownIncomplete,
		)
	}

	s.mu.Lock()
	if s.state == StateStopping && s.runtime == nil {
		s.state = StateStopped
	}
	s.mu.Unlock()

	s.emitStopped(id)
}

// runtimeExited handles a serve loop that ended without a stop command.
func (s *Supervisor) runtimeExited(rt *server.Runtime, err error) {
	s.mu.Lock()
	unexpected := s.runtime == rt && s.state == StateRunning
	if unexpected {
		s.runtime = nil
		s.state = StateFailed
	}
	s.mu.Unlock()

	if !unexpected {
		return
	}
	if err == nil {
		err = errors.New("server exited unexpectedly")
	}
	s.emitError(uuid.NewString(), err)
}

func (s *Supervisor) emitStarted(id, url string) {
	s.logger.Info("server started", "command_id", id, "url", url)
	for _, n := range s.notifiers {
		invokeNotifierSafe(s.logger, "started", func() { n.OnStarted(url) })
	}
	s.hub.Publish(Event{CommandID: id, Kind: EventStarted, URL: url})
}

func (s *Supervisor) emitStopped(id string) {
	s.logger.Info("server stopped", "command_id", id)
	for _, n := range s.notifiers {
		invokeNotifierSafe(s.logger, "stopped", n.OnStopped)
	}
	s.hub.Publish(Event{CommandID: id, Kind: EventStopped})
}

func (s *Supervisor) emitError(id string, err error) {
	msg := err.Error()
	s.logger.Error("server error", "command_id", id, "error", msg)
	for _, n := range s.notifiers {
		invokeNotifierSafe(s.logger, "error", func() { n.OnError(msg) })
	}
	s.hub.Publish(Event{CommandID: id, Kind: EventError, Message: msg})
}

// Serve runs a server for directory on port until ctx is cancelled.
//
// Serve blocks. It returns the startup error if the server cannot start,
// nil after a clean stop, or [ErrShutdownIncomplete] when the stop timeout
// elapsed. Notifiers from opts receive the usual notifications.
func Serve(ctx context.Context, directory string, port int, opts ...Option) error {
	s, err := New(opts...)
	if err != nil {
		return err
	}

	rt, err := server.New(
		server.Config{Root: directory, Port: port, BindAddress: s.bindAddress},
		server.WithLogger(s.logger),
		server.WithHandlerOptions(s.handlerOpts...),
	)
	if err != nil {
		s.emitError(uuid.NewString(), err)
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- rt.Run() }()

	if err := rt.WaitForStartup(s.startupTimeout); err != nil {
		rt.Stop(s.stopTimeout)
		s.emitError(uuid.NewString(), err)
		return err
	}
	s.emitStarted(uuid.NewString(), rt.URL())

	select {
	case <-ctx.Done():
	case err := <-runErr:
		if err != nil {
			s.emitError(uuid.NewString(), err)
			return fmt.Errorf("server exited: %w", err)
		}
	}

	ok := rt.Stop(s.stopTimeout)
	s.emitStopped(uuid.NewString())
	if !ok {
		return ErrShutdownIncomplete
	}
	return nil
}
