package entities

// SessionStatus represents the lifecycle state of a bot session
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusJoining   SessionStatus = "joining"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusEnded     SessionStatus = "ended"
	SessionStatusFailed    SessionStatus = "failed"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusScheduled: {SessionStatusJoining, SessionStatusEnded, SessionStatusFailed},
	SessionStatusJoining:   {SessionStatusActive, SessionStatusEnded, SessionStatusFailed},
	SessionStatusActive:    {SessionStatusActive, SessionStatusEnded, SessionStatusFailed},
}

// IsValid checks if the status is a known one
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusJoining, SessionStatusActive, SessionStatusEnded, SessionStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusEnded || s == SessionStatusFailed
}

// CanTransitionTo checks the session state machine
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
