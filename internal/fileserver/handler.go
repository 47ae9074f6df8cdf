package fileserver

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/jpalmerr/pixelserve/internal/guard"
)

// indexFiles are served in place of a directory listing, in order.
var indexFiles = []string{"index.html", "index.htm"}

// RequestContext describes how a single request was resolved.
// It is created per request and never shared.
type RequestContext struct {
	RequestID    string
	RawPath      string
	ResolvedPath string
	WithinRoot   bool
}

// Handler serves files and directory listings from one confined root.
//
// Every request path goes through a [guard.Guard]. Requests that try to
// escape the root are redirected to "/" instead of being served.
// Handler is safe for concurrent use; net/http runs it on a goroutine per
// connection.
type Handler struct {
	root    string
	guard   *guard.Guard
	logger  *slog.Logger
	limiter *ipLimiter
	chain   http.Handler
}

// Option configures a [Handler].
type Option func(*Handler)

// WithRateLimit limits each client IP to rps requests per second with the
// given burst. Non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *Handler) {
		if rps <= 0 {
			h.limiter = nil
			return
		}
		h.limiter = newIPLimiter(rps, burst, h.logger)
	}
}

// NewHandler creates a [Handler] for root. Root must be canonical
// (see [guard.Canonical]). All request and error logging goes to logger.
func NewHandler(root string, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		root:   root,
		guard:  guard.New(root, logger),
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}

	var chain http.Handler = http.HandlerFunc(h.serve)
	if h.limiter != nil {
		chain = h.limiter.middleware(chain)
	}
	chain = h.recoverPanics(chain)
	chain = h.logRequests(chain)
	h.chain = chain

	return h
}

// Root returns the directory this handler serves.
func (h *Handler) Root() string {
	return h.root
}

// ServeHTTP implements [http.Handler].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.chain.ServeHTTP(w, r)
}

// Resolve builds the [RequestContext] for r without serving it.
func (h *Handler) Resolve(r *http.Request) RequestContext {
	raw := r.URL.EscapedPath()
	res := h.guard.Check(raw)
	return RequestContext{
		RequestID:    requestIDFrom(r.Context()),
		RawPath:      raw,
		ResolvedPath: res.Path,
		WithinRoot:   res.WithinRoot,
	}
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	rc := h.Resolve(r)
	if !rc.WithinRoot {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	info, err := os.Stat(rc.ResolvedPath)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	if info.IsDir() {
		h.serveDir(w, r, rc)
		return
	}
	h.serveFile(w, r, rc.ResolvedPath)
}

func (h *Handler) serveDir(w http.ResponseWriter, r *http.Request, rc RequestContext) {
	if !strings.HasSuffix(rc.RawPath, "/") {
		target := rc.RawPath + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		w.Header().Set("Location", target)
		w.WriteHeader(http.StatusMovedPermanently)
		return
	}

	for _, name := range indexFiles {
		// index files can be symlinks too
		res := h.guard.Check(rc.RawPath + name)
		if !res.WithinRoot {
			continue
		}
		if info, err := os.Stat(res.Path); err == nil && info.Mode().IsRegular() {
			h.serveFile(w, r, res.Path)
			return
		}
	}

	h.serveListing(w, r, rc)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType(info.Name(), f))
	// ServeContent handles HEAD, Range and conditional requests and sets
	// Content-Length.
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
