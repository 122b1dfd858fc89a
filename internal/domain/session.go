package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/looplab/fsm"
)

// ManagerFlag records whether the client asked for a manager hand-off.
type ManagerFlag int

const (
	ManagerUnset ManagerFlag = iota
	ManagerRequested
	ManagerDeclined
)

// String returns the wire value of the flag: "true", "false" or "".
func (m ManagerFlag) String() string {
	switch m {
	case ManagerRequested:
		return "true"
	case ManagerDeclined:
		return "false"
	default:
		return ""
	}
}

// Profile is the platform user as seen on the latest /start.
type Profile struct {
	FirstName string
	LastName  string
	Username  string
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// Contact is a shared phone contact.
type Contact struct {
	PhoneNumber string
	FirstName   string
	LastName    string
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Session is the per-conversation record. It is owned by a single goroutine
// at a time; see session.Store and conversation.Mailbox.
type Session struct {
	IdentityKey string

	Phone       string
	ClientName  string
	ClientLogin string
	Username    string
	Brand       string
	Model       string
	City        string
	YearTo      int
	Budget      int64
	Manager     ManagerFlag
	Tag         string

	// LastSynced is the most recent payload handed to the dispatcher.
	LastSynced *Payload
	UpdatedAt  time.Time

	profile Profile
	contact Contact
	machine *fsm.FSM
}

// NewSession creates an idle session for identity.
func NewSession(identity string) *Session {
	return &Session{
		IdentityKey: identity,
		UpdatedAt:   time.Now(),
		machine:     fsm.NewFSM(string(StateIdle), Transitions(), fsm.Callbacks{}),
	}
}

// State returns the current conversation state.
func (s *Session) State() State {
	return State(s.machine.Current())
}

// Fire applies event and returns the states before and after. A self
// transition (restart while already asking for the phone) is not an error.
func (s *Session) Fire(ctx context.Context, event string) (State, State, error) {
	from := s.State()
	if err := s.machine.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			return from, from, err
		}
	}
	s.Touch()
	return from, s.State(), nil
}

// Reset clears all collected answers but keeps the identity key and state.
func (s *Session) Reset() {
	*s = Session{
		IdentityKey: s.IdentityKey,
		UpdatedAt:   time.Now(),
		machine:     s.machine,
	}
}

// RememberProfile stores the platform profile and fills username and login.
// An empty profile leaves the previous one in place.
func (s *Session) RememberProfile(p Profile) {
	if p == (Profile{}) {
		return
	}
	s.profile = p
	if login := NormalizeLogin(p.Username); login != "" {
		s.Username = login
		if s.ClientLogin == "" {
			s.ClientLogin = login
		}
	}
}

// RememberContact stores names from a shared contact.
func (s *Session) RememberContact(c Contact) {
	s.contact = c
}

// DeriveClientName fills ClientName from the contact or the platform profile
// when it has not been given explicitly. It reports whether a name is known.
func (s *Session) DeriveClientName() bool {
	if s.ClientName != "" {
		return true
	}
	candidates := []string{
		s.contact.FullName(),
		s.profile.FullName(),
		strings.TrimSpace(s.contact.FirstName),
		strings.TrimSpace(s.profile.FirstName),
	}
	for _, name := range candidates {
		if name != "" {
			s.ClientName = name
			return true
		}
	}
	return false
}

// Touch marks the session as recently used.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now()
}

// NormalizeLogin turns a platform username into "@login". Empty input yields "".
func NormalizeLogin(username string) string {
	u := strings.TrimSpace(username)
	u = strings.TrimLeft(u, "@")
	if u == "" {
		return ""
	}
	return "@" + u
}
