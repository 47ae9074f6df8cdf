// Package server runs the confined static-file HTTP server.
//
// A [Runtime] owns one listening socket for one start/stop cycle:
//
//   - [Runtime.Run] binds (with SO_REUSEADDR), signals startup, then serves
//     until stopped. Each connection is handled on its own goroutine.
//   - [Runtime.WaitForStartup] lets another goroutine learn whether the bind
//     succeeded, failed, or timed out.
//   - [Runtime.Stop] shuts down gracefully within a deadline and is safe to
//     call at any time, any number of times.
//
// Requests are served by package fileserver, which confines every path to
// the configured root.
package server
