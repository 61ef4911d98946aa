package session

import (
	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/users"
)

// Status names the variant of a State
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is one of Uninitialized, Loading, Authenticated or Unauthenticated.
// Tokens and profile exist only inside Authenticated, so a session can never
// hold tokens while unauthenticated.
type State interface {
	Status() Status
	isState()
}

// Uninitialized is the state before Initialize has run
type Uninitialized struct{}

// Loading is held while a login, registration or initialization is in flight.
// Prior is restored if it fails.
type Loading struct {
	Prior State
}

// Authenticated holds a live credential pair and the owner's profile
type Authenticated struct {
	Tokens token.Pair
	User   *users.User
}

// Unauthenticated means no credentials are held
type Unauthenticated struct{}

func (Uninitialized) Status() Status   { return StatusUninitialized }
func (Loading) Status() Status         { return StatusLoading }
func (Authenticated) Status() Status   { return StatusAuthenticated }
func (Unauthenticated) Status() Status { return StatusUnauthenticated }

func (Uninitialized) isState()   {}
func (Loading) isState()         {}
func (Authenticated) isState()   {}
func (Unauthenticated) isState() {}

// settled unwraps Loading to the state it replaced
func settled(s State) State {
	for {
		l, ok := s.(Loading)
		if !ok {
			return s
		}
		if l.Prior == nil {
			return Uninitialized{}
		}
		s = l.Prior
	}
}

// Snapshot is the read-only view handed to UI consumers. User is a copy.
type Snapshot struct {
	Status          Status
	User            *users.User
	AccessToken     string
	RefreshToken    string
	IsAuthenticated bool
	Loading         bool
	Error           string
}

func snapshotOf(s State, busy bool, lastErr string) Snapshot {
	snap := Snapshot{
		Status:  s.Status(),
		Loading: busy || s.Status() == StatusLoading,
		Error:   lastErr,
	}
	if a, ok := settled(s).(Authenticated); ok {
		snap.User = a.User.Clone()
		snap.AccessToken = a.Tokens.AccessToken
		snap.RefreshToken = a.Tokens.RefreshToken
		snap.IsAuthenticated = true
	}
	return snap
}
