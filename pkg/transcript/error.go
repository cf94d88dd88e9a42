package transcript

// ErrNotFound is returned when a session has no recorded transcript.
type ErrNotFound struct {
	SessionID string
}

func (e ErrNotFound) Error() string {
	if e.SessionID == "" {
		return "transcript not found"
	}

	return "transcript not found: " + e.SessionID
}
