package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/jpalmerr/pixelserve/internal/fileserver"
	"github.com/jpalmerr/pixelserve/internal/guard"
)

const (
	// DefaultBindAddress is used when Config.BindAddress is empty.
	DefaultBindAddress = "127.0.0.1"

	// readHeaderTimeout bounds how long a client may take to send headers.
	readHeaderTimeout = 10 * time.Second

	// writeTimeout bounds a single response. GIFs are small, but a stalled
	// device must not pin a connection forever.
	writeTimeout = 2 * time.Minute

	idleTimeout = 60 * time.Second
)

var (
	// ErrInvalidDirectory is returned by [New] when the root is missing or
	// not a directory.
	ErrInvalidDirectory = errors.New("invalid directory")

	// ErrStartupTimeout is returned by [Runtime.WaitForStartup] when startup
	// does not finish in time.
	ErrStartupTimeout = errors.New("server startup timed out")

	// ErrShutdownIncomplete is logged when [Runtime.Stop] gives up waiting.
	// It is advisory; the runtime may still finish later.
	ErrShutdownIncomplete = errors.New("server shutdown incomplete")

	// ErrStopped is the startup error of a runtime stopped before it bound.
	ErrStopped = errors.New("server stopped before startup completed")

	// ErrRuntimeUsed is returned by [Runtime.Run] on a second call.
	// A runtime serves exactly one start/stop cycle.
	ErrRuntimeUsed = errors.New("server runtime already used")
)

// BindError reports a failure to open the listening socket.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind to %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Config is the immutable configuration of a [Runtime].
type Config struct {
	// Root is the directory to serve. Empty means the working directory.
	Root string

	// Port is the TCP port. 0 picks an ephemeral port.
	Port int

	// BindAddress is the listen host. Defaults to [DefaultBindAddress].
	BindAddress string
}

// Option configures a [Runtime].
type Option func(*Runtime)

// WithLogger sets the logger for the runtime and its request handler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHandlerOptions passes options through to the file handler.
func WithHandlerOptions(opts ...fileserver.Option) Option {
	return func(r *Runtime) {
		r.handlerOpts = append(r.handlerOpts, opts...)
	}
}

// Runtime owns one listening socket and the HTTP server behind it.
//
// The lifecycle is:
//
//	rt, err := server.New(server.Config{Root: dir, Port: 8000})
//	go rt.Run()                       // blocks until Stop
//	err = rt.WaitForStartup(10 * time.Second)
//	...
//	rt.Stop(5 * time.Second)
//
// A Runtime is used for a single start/stop cycle. Create a new one to
// start again.
type Runtime struct {
	cfg         Config
	logger      *slog.Logger
	handlerOpts []fileserver.Option
	handler     *fileserver.Handler

	started   chan struct{}
	startOnce sync.Once
	done      chan struct{}

	mu            sync.Mutex
	state         State
	ran           bool
	stopRequested bool
	httpServer    *http.Server
	addr          *net.TCPAddr
	startErr      error
}

// New validates cfg and creates a [Runtime]. No socket is opened until
// [Runtime.Run]. Returns an error wrapping [ErrInvalidDirectory] when the
// root does not exist or is not a directory.
func New(cfg Config, opts ...Option) (*Runtime, error) {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.BindAddress == "" {
		cfg.BindAddress = DefaultBindAddress
	}

	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDirectory, cfg.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidDirectory, cfg.Root)
	}

	root, err := guard.Canonical(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDirectory, cfg.Root, err)
	}
	cfg.Root = root

	r := &Runtime{
		cfg:     cfg,
		logger:  slog.Default(),
		started: make(chan struct{}),
		done:    make(chan struct{}),
		state:   StateStopped,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.handler = fileserver.NewHandler(root, r.logger, r.handlerOpts...)

	return r, nil
}

// Config returns the runtime configuration with the canonical root.
func (r *Runtime) Config() Config {
	return r.cfg
}

// Root returns the canonical directory being served.
func (r *Runtime) Root() string {
	return r.cfg.Root
}

// Handler returns the HTTP handler serving the root.
func (r *Runtime) Handler() http.Handler {
	return r.handler
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Addr returns the bound address, or nil before binding.
func (r *Runtime) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addr == nil {
		return nil
	}
	return r.addr
}

// Done is closed when [Runtime.Run] returns.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// Run binds the socket and serves until [Runtime.Stop] is called.
//
// Startup completion is signalled to [Runtime.WaitForStartup] both on
// success and on failure. A bind failure is returned as *[BindError]
// without serving. Run returns nil after a normal stop.
func (r *Runtime) Run() error {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return ErrRuntimeUsed
	}
	r.ran = true
	defer close(r.done)

	if r.stopRequested {
		r.startErr = ErrStopped
		r.mu.Unlock()
		r.signalStarted()
		return ErrStopped
	}
	r.state = StateStarting
	r.mu.Unlock()

	addr := net.JoinHostPort(r.cfg.BindAddress, strconv.Itoa(r.cfg.Port))
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		bindErr := &BindError{Addr: addr, Err: err}
		r.mu.Lock()
		r.state = StateFailed
		r.startErr = bindErr
		r.mu.Unlock()

		r.logger.Error("server failed to start", "addr", addr, "error", err)
		r.signalStarted()
		return bindErr
	}

	srv := &http.Server{
		Handler:           r.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(r.logger.Handler(), slog.LevelWarn),
	}

	r.mu.Lock()
	if r.stopRequested {
		// Stop arrived while we were binding
		r.state = StateStopped
		r.startErr = ErrStopped
		r.mu.Unlock()
		_ = ln.Close()
		r.signalStarted()
		return ErrStopped
	}
	r.httpServer = srv
	r.addr, _ = ln.Addr().(*net.TCPAddr)
	r.state = StateRunning
	r.mu.Unlock()

	r.logger.Info("server started",
		"addr", ln.Addr().String(),
		"root", r.cfg.Root,
		"url", r.URL(),
	)
	r.signalStarted()

	err = srv.Serve(ln)

	r.mu.Lock()
	r.state = StateStopped
	r.mu.Unlock()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	r.logger.Error("http server error", "error", err)
	return err
}

func (r *Runtime) signalStarted() {
	r.startOnce.Do(func() { close(r.started) })
}

// WaitForStartup blocks until [Runtime.Run] has bound or failed, or until
// timeout. A recorded startup error is returned as soon as it exists.
// A timeout returns an error wrapping [ErrStartupTimeout].
func (r *Runtime) WaitForStartup(timeout time.Duration) error {
	select {
	case <-r.started:
		return r.startupError()
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.started:
		return r.startupError()
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrStartupTimeout, timeout)
	}
}

func (r *Runtime) startupError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startErr
}

// Stop shuts the server down and waits up to timeout for [Runtime.Run] to
// return.
//
// Stop is idempotent and returns true immediately for a runtime that never
// ran or has already stopped. Otherwise it stops accepting, lets in-flight
// requests drain until the deadline, force-closes what remains, and waits
// for Run. A false result means the deadline passed first; it is advisory.
func (r *Runtime) Stop(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	r.mu.Lock()
	r.stopRequested = true
	if !r.ran {
		r.mu.Unlock()
		return true
	}
	state := r.state
	r.mu.Unlock()

	if state == StateStarting && !waitUntil(r.started, deadline) {
		r.logger.Warn("server did not finish starting before stop deadline",
			"timeout", timeout.String(),
			"error", ErrShutdownIncomplete,
		)
		return false
	}

	r.mu.Lock()
	srv := r.httpServer
	shutdown := r.state == StateRunning
	if shutdown {
		r.state = StateStopping
	}
	r.mu.Unlock()

	if shutdown {
		r.logger.Info("shutting down server", "url", r.URL())

		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		err := srv.Shutdown(ctx)
		cancel()
		if err != nil {
			r.logger.Warn("graceful shutdown interrupted, closing connections", "error", err)
			_ = srv.Close()
		}
	}

	if !waitUntil(r.done, deadline) {
		r.logger.Warn("server did not stop in time",
			"timeout", timeout.String(),
			"error", ErrShutdownIncomplete,
		)
		return false
	}

	if shutdown {
		r.logger.Info("server stopped")
	}
	return true
}

// URL returns the externally reachable URL, or "" before binding.
func (r *Runtime) URL() string {
	r.mu.Lock()
	addr := r.addr
	r.mu.Unlock()

	if addr == nil {
		return ""
	}
	return FormatURL(r.cfg.BindAddress, addr.Port)
}

// FormatURL renders an http URL for host and port. Loopback and wildcard
// IPv4 binds render as "localhost"; other hosts are kept as given.
func FormatURL(host string, port int) string {
	switch host {
	case "127.0.0.1", "0.0.0.0":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// waitUntil waits for ch to close or the deadline to pass.
func waitUntil(ch <-chan struct{}, deadline time.Time) bool {
	select {
	case <-ch:
		return true
	default:
	}

	d := time.Until(deadline)
	if d <= 0 {
		return false
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
