// Package pixelserve provides an embeddable static file server for pushing
// GIFs and other assets to a networked pixel display.
//
// The display fetches images over plain HTTP, so the host application (a
// tray utility, a desktop GUI, a CLI) needs a small server that exposes one
// local directory and nothing outside it. pixelserve runs that server in the
// background and reports its lifecycle through callbacks, so the host's own
// event loop is never blocked.
//
// # Quick Start
//
// Start and stop a server from a GUI-style host:
//
//	sup, _ := pixelserve.New(
//	    pixelserve.WithStartedCallback(func(url string) { showURL(url) }),
//	    pixelserve.WithStoppedCallback(func() { enableStart() }),
//	    pixelserve.WithErrorCallback(func(msg string) { showError(msg) }),
//	)
//	defer sup.Shutdown()
//
//	sup.StartServer("/home/me/gifs", 8000) // returns immediately
//	...
//	sup.StopServer()
//
// Or block until a context is cancelled:
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	err := pixelserve.Serve(ctx, "/home/me/gifs", 8000)
//
// # Configuration
//
// pixelserve uses the functional options pattern for configuration:
//
//	sup, err := pixelserve.New(
//	    pixelserve.WithBindAddress("0.0.0.0"),
//	    pixelserve.WithStartupTimeout(10 * time.Second),
//	    pixelserve.WithStopTimeout(5 * time.Second),
//	    pixelserve.WithRateLimit(20, 40),
//	    pixelserve.WithLogger(logger),
//	)
//
// # Serving Rules
//
// Every request path is percent-decoded, joined to the served directory,
// and resolved through symbolic links. Anything that ends up outside the
// directory is redirected to "/" and logged. Directories are answered with
// their index.html or index.htm when present, otherwise with an HTML
// listing. Files are served with a content type taken from the extension,
// or sniffed from the content when the extension is unknown.
//
// # Architecture
//
// pixelserve consists of several internal packages (under internal/):
//
//   - internal/guard: Path confinement to the served directory
//   - internal/fileserver: HTTP handler for files, listings and redirects
//   - internal/server: Single-use listening socket and HTTP server lifecycle
//   - internal/events: Pub/sub of supervisor notifications
//   - internal/logging: slog construction from settings
//   - internal/watch: Settings file change detection
//
// The internal packages are not part of the public API and may change
// without notice.
package pixelserve
