package domain

import "time"

// Student is a whitelisted registration record. Records are created by an
// administrative process; this core only flips the session fields.
type Student struct {
	RegNo        string
	Email        string
	IsRegistered bool
	LastLogin    time.Time
}

// SessionState is the explicit form of the isRegistered/lastLogin pair:
// either no session is held, or one has been active since a point in time.
type SessionState struct {
	Active bool
	Since  time.Time
}

// Session exposes the record's implicit session state as a value.
func (s Student) Session() SessionState {
	return SessionState{Active: s.IsRegistered, Since: s.LastLogin}
}

// Locked reports whether a login attempt must be rejected: the session is
// held and was refreshed within the timeout window. A stale Active flag
// (crash, closed tab) unlocks by itself once the timeout elapses.
func (s SessionState) Locked(now time.Time, timeout time.Duration) bool {
	return s.Active && now.Sub(s.Since) < timeout
}
