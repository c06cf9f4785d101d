package models

import "time"

// Identity is derived from the access token claims and never mutated on its own.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session is the authenticated identity currently usable by the process.
type Session struct {
	Identity    Identity  `json:"identity"`
	AccessToken string    `json:"-"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ChangeReason string

const (
	ChangeLogin          ChangeReason = "login"
	ChangeRegister       ChangeReason = "register"
	ChangeRefresh        ChangeReason = "refresh"
	ChangeLogout         ChangeReason = "logout"
	ChangeSessionExpired ChangeReason = "session_expired"
)

// SessionChange is delivered to store subscribers. Session is nil after a logout.
type SessionChange struct {
	Session *Session
	Reason  ChangeReason
}

type LogoutReason string

const (
	LogoutReasonUser           LogoutReason = "user"
	LogoutReasonSessionExpired LogoutReason = "session_expired"
)

func (r LogoutReason) ChangeReason() ChangeReason {
	if r == LogoutReasonSessionExpired {
		return ChangeSessionExpired
	}
	return ChangeLogout
}

const (
	EventSignedIn  = "signed_in"
	EventRefreshed = "refreshed"
	EventSignedOut = "signed_out"
)

// SessionEvent is the webhook payload for a session change.
type SessionEvent struct {
	Event  string       `json:"event"`
	Reason ChangeReason `json:"reason"`
	UserID string       `json:"user_id,omitempty"`
	At     time.Time    `json:"at"`
}

func NewSessionEvent(change SessionChange, at time.Time) SessionEvent {
	ev := SessionEvent{Reason: change.Reason, At: at}
	switch {
	case change.Session == nil:
		ev.Event = EventSignedOut
	case change.Reason == ChangeRefresh:
		ev.Event = EventRefreshed
	default:
		ev.Event = EventSignedIn
	}
	if change.Session != nil {
		ev.UserID = change.Session.Identity.ID
	}
	return ev
}
