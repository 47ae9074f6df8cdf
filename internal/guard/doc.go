// Package guard confines HTTP request paths to a single directory tree.
//
// Every request path is percent-decoded, joined to the root, and
// canonicalized (symlinks resolved) before a containment check. Anything
// that lands outside the root, whether through ".." segments, encoded
// separators, or symlinks pointing elsewhere, is clamped back to the root
// and logged as a traversal attempt.
//
// Users of the pixelserve library should not need this package directly;
// the file server consults it for every request.
package guard
