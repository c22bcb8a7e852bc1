package session

// Status is a session's lifecycle state
type Status string

const (
	StatusRunning     Status = "running"
	StatusPaused      Status = "paused"
	StatusInterrupted Status = "interrupted"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

var transitions = map[Status][]Status{
	StatusRunning:     {StatusPaused, StatusInterrupted, StatusCompleted, StatusFailed},
	StatusPaused:      {StatusRunning, StatusInterrupted},
	StatusInterrupted: {StatusRunning},
	StatusCompleted:   {StatusRunning},
	StatusFailed:      {},
}

// CanTransition reports whether from -> to is a defined edge
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the session is idle between prompts or finished.
func (s Status) Terminal() bool {
	return s == StatusInterrupted || s == StatusCompleted || s == StatusFailed
}

// Active reports whether a turn is in flight
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusPaused
}
