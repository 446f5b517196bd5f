package model

// Phase is the coarse state of an AuthState.
type Phase int

const (
	// PhaseUnresolved: a session check or login is in progress.
	PhaseUnresolved Phase = iota
	// PhaseAuthenticated: a session exists and User is set.
	PhaseAuthenticated
	// PhaseUnauthenticated: no session, User is nil.
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUnresolved:
		return "unresolved"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// AuthState is the single source of truth for "who is logged in".
//
// Only three shapes are valid and the constructors below are the only way
// the service layer builds one:
//
//	Unresolved()         {IsLoading: true}
//	Authenticated(u)     {User: u, IsAuthenticated: true}
//	Unauthenticated()    {}
type AuthState struct {
	User            *UserProfile `json:"user"`
	IsLoading       bool         `json:"isLoading"`
	IsAuthenticated bool         `json:"isAuthenticated"`
}

func Unresolved() AuthState {
	return AuthState{IsLoading: true}
}

func Authenticated(u *UserProfile) AuthState {
	return AuthState{User: u, IsAuthenticated: true}
}

func Unauthenticated() AuthState {
	return AuthState{}
}

// Phase classifies the state. Loading wins over everything else.
func (s AuthState) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseUnresolved
	case s.IsAuthenticated && s.User != nil:
		return PhaseAuthenticated
	default:
		return PhaseUnauthenticated
	}
}
