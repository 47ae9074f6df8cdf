package pixelserve

import (
	"errors"
	"log/slog"

	"github.com/jpalmerr/pixelserve/internal/server"
)

// State is the lifecycle state of the supervised server.
//
// Transitions:
//
//	Stopped → Starting → Running → Stopping → Stopped
//	               └──→ Failed
type State = server.State

const (
	StateStopped  = server.StateStopped
	StateStarting = server.StateStarting
	StateRunning  = server.StateRunning
	StateStopping = server.StateStopping
	StateFailed   = server.StateFailed
)

var (
	// ErrInvalidDirectory: the serving directory is missing or not a directory.
	ErrInvalidDirectory = server.ErrInvalidDirectory

	// ErrStartupTimeout: the server did not bind within the startup timeout.
	ErrStartupTimeout = server.ErrStartupTimeout

	// ErrShutdownIncomplete: the server did not stop within the stop timeout.
	// It is advisory and never reported as an error notification.
	ErrShutdownIncomplete = server.ErrShutdownIncomplete

	// ErrStopped: a stop command arrived before the server finished starting.
	ErrStopped = server.ErrStopped

	// ErrAlreadyRunning is reported when StartServer is called while a server
	// is starting, running, or stopping.
	ErrAlreadyRunning = errors.New("server already running")
)

// BindError reports a failure to open the listening socket (port in use,
// insufficient permission). Use [errors.As] to inspect it.
type BindError = server.BindError

// Notifier receives supervisor notifications.
//
// Exactly one of OnStarted or OnError follows each StartServer call, and
// exactly one of OnStopped or OnError follows each StopServer call.
// Methods are called from supervisor goroutines and should not block for
// long; a GUI host typically posts the notification onto its own event loop.
type Notifier interface {
	// OnStarted is called with the server URL once the socket is bound.
	OnStarted(url string)

	// OnStopped is called once the server has shut down.
	OnStopped()

	// OnError is called with a human-readable failure message.
	OnError(message string)
}

// NotifierFuncs adapts plain functions to [Notifier]. Nil fields are skipped.
type NotifierFuncs struct {
	Started func(url string)
	Stopped func()
	Error   func(message string)
}

func (n NotifierFuncs) OnStarted(url string) {
	if n.Started != nil {
		n.Started(url)
	}
}

func (n NotifierFuncs) OnStopped() {
	if n.Stopped != nil {
		n.Stopped()
	}
}

func (n NotifierFuncs) OnError(message string) {
	if n.Error != nil {
		n.Error(message)
	}
}

// invokeNotifierSafe calls fn with panic recovery.
// Panics are logged but do not propagate.
func invokeNotifierSafe(logger *slog.Logger, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notifier panicked",
				"panic", r,
				"notification", kind,
			)
		}
	}()
	fn()
}
