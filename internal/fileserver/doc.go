// Package fileserver provides the HTTP handler that serves a confined
// directory tree.
//
// The handler resolves every request through package guard, then:
//
//   - Serves regular files with Content-Length, Range and HEAD support
//   - Serves index.html/index.htm or an HTML listing for directories
//   - Redirects traversal attempts to "/" instead of answering 403
//   - Returns 404 for anything that does not exist under the root
//
// Content types are inferred from the file extension, falling back to
// content sniffing. Request and error logs go only to the injected
// *slog.Logger. Optional per-client rate limiting is available through
// [WithRateLimit].
package fileserver
