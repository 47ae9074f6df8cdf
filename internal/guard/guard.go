package guard

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"syscall"
)

// ErrPathTranslation indicates a request path that could not be turned into
// a filesystem path (bad percent-encoding, NUL bytes, OS path errors).
var ErrPathTranslation = errors.New("path translation failed")

// Result is the outcome of resolving a request path against a root.
type Result struct {
	// Path is the canonical filesystem path to serve. It is the root itself
	// whenever WithinRoot is false or translation failed.
	Path string

	// WithinRoot reports whether the request resolved inside the root.
	// False means the request tried to escape and was clamped.
	WithinRoot bool
}

// Guard confines request paths to a single directory tree.
//
// A Guard holds only immutable fields and is safe for concurrent use by any
// number of connection handlers.
type Guard struct {
	root   string
	logger *slog.Logger
}

// New creates a [Guard] for root. The root must already be canonical
// (see [Canonical]); New does not touch the filesystem.
func New(root string, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{root: root, logger: logger}
}

// Root returns the confinement root.
func (g *Guard) Root() string {
	return g.root
}

// Confine returns the filesystem path for raw, or the root when raw escapes
// or cannot be translated.
func (g *Guard) Confine(raw string) string {
	return g.Check(raw).Path
}

// Check resolves raw and logs traversal attempts and translation errors.
func (g *Guard) Check(raw string) Result {
	res, err := Resolve(g.root, raw)
	if err != nil {
		g.logger.Error("path translation error", "path", raw, "error", err)
		return res
	}
	if !res.WithinRoot {
		g.logger.Warn("directory traversal attempt blocked", "path", raw, "root", g.root)
	}
	return res
}

// Canonical returns the absolute, symlink-free form of dir.
func Canonical(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// Resolve translates the URL path raw into a filesystem path under root.
//
// The path is percent-decoded, joined to root, and canonicalized. Any result
// that is not root or a descendant of root yields Result{Path: root}. Errors
// wrap [ErrPathTranslation] and also come with Path set to root.
//
// Resolve has no side effects.
func Resolve(root, raw string) (Result, error) {
	clamped := Result{Path: root}

	p := raw
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	decoded, err := url.PathUnescape(p)
	if err != nil {
		return clamped, fmt.Errorf("%w: %v", ErrPathTranslation, err)
	}
	if strings.IndexByte(decoded, 0) >= 0 {
		return clamped, fmt.Errorf("%w: NUL byte in path", ErrPathTranslation)
	}

	// filepath.Join cleans the result, so ".." segments climb lexically here.
	joined := filepath.Join(root, filepath.FromSlash(decoded))
	if !within(root, joined) {
		return clamped, nil
	}

	canonical, err := canonicalize(joined)
	if err != nil {
		return clamped, fmt.Errorf("%w: %v", ErrPathTranslation, err)
	}
	if !within(root, canonical) {
		return clamped, nil
	}

	return Result{Path: canonical, WithinRoot: true}, nil
}

// canonicalize resolves symlinks along the longest existing prefix of p and
// re-appends the missing tail, so paths to files that do not exist yet still
// get a meaningful containment check.
func canonicalize(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
		return "", err
	}

	parent := filepath.Dir(p)
	if parent == p {
		return p, nil
	}
	base, err := canonicalize(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, filepath.Base(p)), nil
}

// within reports whether p equals root or lies beneath it. The separator
// suffix keeps "/srv/www-private" from matching root "/srv/www".
func within(root, p string) bool {
	if p == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}
