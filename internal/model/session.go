package model

// Session holds the in-memory authentication state owned by the session
// manager. The persisted copy lives in the credential store.
type Session struct {
	// Student is the cached user profile; nil when logged out.
	Student *Student

	// AccessToken is attached as a bearer token to every
	// credential-bearing outbound call.
	AccessToken string

	// RefreshToken is rotated by the auth-verification endpoint.
	RefreshToken string

	// Authenticated is true only while both tokens are present and a
	// profile is loaded.
	Authenticated bool

	// LastError is the most recent auth failure message, if any.
	LastError string
}

// Clear resets the session to the logged-out zero state.
func (s *Session) Clear() {
	s.Student = nil
	s.AccessToken = ""
	s.RefreshToken = ""
	s.Authenticated = false
}
