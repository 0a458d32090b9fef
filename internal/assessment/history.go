package assessment

import "github.com/xkilldash9x/ari/api/schemas"

// recordSnapshot pushes a deep copy of the session's restorable state. It is
// called once per accepted submission, before any field changes.
func recordSnapshot(s *schemas.Session) {
	s.History = append(s.History, s.SessionState.Clone())
}

// undo pops the newest snapshot back onto the session. The popped entry is
// consumed, so repeated calls walk back one submission at a time until
// ErrNoHistoryAvailable.
func undo(s *schemas.Session) error {
	n := len(s.History)
	if n == 0 {
		return ErrNoHistoryAvailable
	}
	s.SessionState = s.History[n-1].Clone()
	s.History = s.History[:n-1]
	return nil
}
