package auth

// State is the gate's position in the login state machine.
type State int

const (
	StateInitializing State = iota
	StateUnauthenticated
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAuthenticating:
		return "Authenticating"
	case StateAuthenticated:
		return "Authenticated"
	default:
		return "Unknown"
	}
}

// Loading is true while the startup lookup or a login round trip is in flight.
func (s State) Loading() bool {
	return s == StateInitializing || s == StateAuthenticating
}

// Snapshot is what rendering code observes: the state, a copy of the session,
// and the last user-visible error.
type Snapshot struct {
	State   State
	Session *Session
	Err     string
	// Ephemeral is set when the session could not be persisted and will not
	// survive a restart.
	Ephemeral bool
}

// IsAuthenticated reports whether the snapshot carries a session.
func (s Snapshot) IsAuthenticated() bool { return s.Session != nil }
