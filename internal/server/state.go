package server

// State is the lifecycle state of a [Runtime].
type State int

const (
	// StateStopped is the initial state, and the state after a clean stop.
	StateStopped State = iota

	// StateStarting means Run is binding the socket.
	StateStarting

	// StateRunning means the socket is bound and requests are served.
	StateRunning

	// StateStopping means Stop is draining connections.
	StateStopping

	// StateFailed means binding failed. It is terminal for the runtime.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
