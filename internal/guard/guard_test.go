package guard

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTree builds base/www (the root) next to base/www-private and base/outside.
func newTree(t *testing.T) (root, base string) {
	t.Helper()

	base, err := Canonical(t.TempDir())
	require.NoError(t, err)

	root = filepath.Join(base, "www")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "www-private"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "outside"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.gif"), []byte("GIF89a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.gif"), []byte("GIF89a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "outside", "secret.txt"), []byte("secret"), 0o644))

	return root, base
}

func symlinkOrSkip(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
}

func TestResolve_InsideRoot(t *testing.T) {
	root, _ := newTree(t)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"root", "/", root},
		{"empty", "", root},
		{"file", "/a.gif", filepath.Join(root, "a.gif")},
		{"nested file", "/sub/b.gif", filepath.Join(root, "sub", "b.gif")},
		{"missing file", "/missing.gif", filepath.Join(root, "missing.gif")},
		{"missing nested", "/nope/deeper/x.gif", filepath.Join(root, "nope", "deeper", "x.gif")},
		{"dot segments", "/sub/./../a.gif", filepath.Join(root, "a.gif")},
		{"percent encoded", "/sub/%62.gif", filepath.Join(root, "sub", "b.gif")},
		{"query stripped", "/a.gif?v=../../etc", filepath.Join(root, "a.gif")},
		{"fragment stripped", "/a.gif#../../x", filepath.Join(root, "a.gif")},
		{"double slash", "//etc/passwd", filepath.Join(root, "etc", "passwd")},
		{"file as dir", "/a.gif/child", filepath.Join(root, "a.gif", "child")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(root, tt.raw)
			require.NoError(t, err)
			assert.True(t, res.WithinRoot)
			assert.Equal(t, tt.want, res.Path)
		})
	}
}

func TestResolve_TraversalClampedToRoot(t *testing.T) {
	root, _ := newTree(t)

	tests := []struct {
		name string
		raw  string
	}{
		{"dotdot", "/../../etc/passwd"},
		{"dotdot to sibling", "/../outside/secret.txt"},
		{"encoded dotdot", "/%2e%2e/%2e%2e/etc/passwd"},
		{"encoded slash", "/..%2f..%2fetc%2fpasswd"},
		{"climb after descend", "/sub/../../outside/secret.txt"},
		{"sibling with shared prefix", "/../www-private"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(root, tt.raw)
			require.NoError(t, err)
			assert.False(t, res.WithinRoot)
			assert.Equal(t, root, res.Path)
		})
	}
}

func TestResolve_Symlinks(t *testing.T) {
	root, base := newTree(t)

	symlinkOrSkip(t, filepath.Join(base, "outside"), filepath.Join(root, "escape"))
	symlinkOrSkip(t, filepath.Join(base, "www-private"), filepath.Join(root, "private"))
	symlinkOrSkip(t, filepath.Join(root, "sub"), filepath.Join(root, "inside"))

	t.Run("escape dir", func(t *testing.T) {
		res, err := Resolve(root, "/escape")
		require.NoError(t, err)
		assert.False(t, res.WithinRoot)
		assert.Equal(t, root, res.Path)
	})

	t.Run("escape file", func(t *testing.T) {
		res, err := Resolve(root, "/escape/secret.txt")
		require.NoError(t, err)
		assert.False(t, res.WithinRoot)
		assert.Equal(t, root, res.Path)
	})

	t.Run("escape missing file", func(t *testing.T) {
		res, err := Resolve(root, "/escape/not-there.txt")
		require.NoError(t, err)
		assert.False(t, res.WithinRoot)
	})

	t.Run("shared prefix sibling", func(t *testing.T) {
		res, err := Resolve(root, "/private")
		require.NoError(t, err)
		assert.False(t, res.WithinRoot)
		assert.Equal(t, root, res.Path)
	})

	t.Run("link inside root", func(t *testing.T) {
		res, err := Resolve(root, "/inside/b.gif")
		require.NoError(t, err)
		assert.True(t, res.WithinRoot)
		assert.Equal(t, filepath.Join(root, "sub", "b.gif"), res.Path)
	})
}

func TestResolve_TranslationErrors(t *testing.T) {
	root, _ := newTree(t)

	for _, raw := range []string{"/%zz", "/a%", "/a%00b"} {
		t.Run(raw, func(t *testing.T) {
			res, err := Resolve(root, raw)
			require.ErrorIs(t, err, ErrPathTranslation)
			assert.Equal(t, root, res.Path)
			assert.False(t, res.WithinRoot)
		})
	}
}

func TestResolve_NeverLeavesRoot(t *testing.T) {
	root, base := newTree(t)
	symlinkOrSkip(t, filepath.Join(base, "outside"), filepath.Join(root, "escape"))

	segments := []string{"..", ".", "%2e%2e", "%2E%2E", "..%2f", "escape", "sub", "a.gif", "", "%2f", "outside", "www-private", "etc"}

	// every 1-4 segment combination
	var paths []string
	var build func(prefix string, depth int)
	build = func(prefix string, depth int) {
		paths = append(paths, prefix)
		if depth == 4 {
			return
		}
		for _, s := range segments {
			build(prefix+"/"+s, depth+1)
		}
	}
	build("", 0)

	prefix := root + string(filepath.Separator)
	for _, raw := range paths {
		res, _ := Resolve(root, raw)
		if res.Path != root && !strings.HasPrefix(res.Path, prefix) {
			t.Fatalf("Resolve(%q) = %q, outside root %q", raw, res.Path, root)
		}
		if strings.HasPrefix(res.Path, filepath.Join(base, "outside")) {
			t.Fatalf("Resolve(%q) reached outside dir: %q", raw, res.Path)
		}
	}
}

func TestGuard_LogsTraversal(t *testing.T) {
	root, _ := newTree(t)

	var buf bytes.Buffer
	g := New(root, slog.New(slog.NewTextHandler(&buf, nil)))

	got := g.Confine("/../../etc/passwd")
	assert.Equal(t, root, got)
	assert.Contains(t, buf.String(), "directory traversal attempt blocked")
	assert.Contains(t, buf.String(), "/../../etc/passwd")
}

func TestGuard_LogsTranslationError(t *testing.T) {
	root, _ := newTree(t)

	var buf bytes.Buffer
	g := New(root, slog.New(slog.NewTextHandler(&buf, nil)))

	res := g.Check("/%zz")
	assert.Equal(t, root, res.Path)
	assert.Contains(t, buf.String(), "path translation error")
}

func TestGuard_NoLogForNormalPath(t *testing.T) {
	root, _ := newTree(t)

	var buf bytes.Buffer
	g := New(root, slog.New(slog.NewTextHandler(&buf, nil)))

	got := g.Confine("/a.gif")
	assert.Equal(t, filepath.Join(root, "a.gif"), got)
	assert.Empty(t, buf.String())
}

func TestGuard_ConcurrentUse(t *testing.T) {
	root, _ := newTree(t)
	g := New(root, testLogger())

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				if p := g.Confine("/../x"); p != root {
					t.Errorf("Confine = %q, want root", p)
					return
				}
				if p := g.Confine("/a.gif"); p != filepath.Join(root, "a.gif") {
					t.Errorf("Confine = %q, want a.gif", p)
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

func TestCanonical(t *testing.T) {
	dir := t.TempDir()
	got, err := Canonical(dir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))

	_, err = Canonical(filepath.Join(dir, "does-not-exist"))
	assert.Error(t, err)
}
