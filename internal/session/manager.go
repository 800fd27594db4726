package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/credential"
	"github.com/campuspay/student-portal/internal/model"
)

// ErrTransitionInFlight is returned when an authentication transition is
// attempted while another one is still running.
var ErrTransitionInFlight = errors.New("authentication transition already in flight")

// ErrAlreadyAuthenticated is returned by Login outside the
// Unauthenticated state.
var ErrAlreadyAuthenticated = errors.New("already authenticated")

// ErrInvalidCredentials is the terminal login failure: the user must
// re-enter their credentials.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthAPI is the slice of the portal API the manager drives.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	CheckAuth(ctx context.Context) (*api.CheckAuthResponse, error)
	Logout(ctx context.Context) error
}

// Result is the navigation outcome of an authentication transition.
type Result struct {
	// Next is the route the application should show.
	Next Route

	// From is the originally requested route to replay after login,
	// set when Next is the login route.
	From Route
}

// Manager owns the authentication state machine: silent re-auth on start,
// login, logout, token rotation, and the forced-logout path every component
// delegates 401s to. The credential store is written only here.
type Manager struct {
	mu      sync.Mutex
	state   State
	session model.Session
	creds   *credential.Store
	api     AuthAPI
	log     zerolog.Logger
}

// NewManager creates a session manager in the Initializing state.
func NewManager(creds *credential.Store, logger zerolog.Logger) *Manager {
	return &Manager{
		state: StateInitializing,
		creds: creds,
		log:   logger.With().Str("component", "session").Logger(),
	}
}

// SetAPI wires the portal API client. Done after construction because the
// client's token provider is this manager.
func (m *Manager) SetAPI(a AuthAPI) {
	m.api = a
}

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the in-memory session.
func (m *Manager) Current() model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Token returns the current access token; empty when logged out. Every
// credential-bearing outbound call reads through here.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.AccessToken
}

// TokenExpiry reports the access token's exp claim, when present. The
// parse is unverified: the value is informational (display, logging) and
// never an authentication decision.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	tok := m.Token()
	if tok == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// beginTransition moves to Transitioning if no other transition is running.
// allowed lists the states the transition may start from.
func (m *Manager) beginTransition(allowed ...State) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateTransitioning {
		return m.state, ErrTransitionInFlight
	}
	for _, s := range allowed {
		if m.state == s {
			prev := m.state
			m.state = StateTransitioning
			return prev, nil
		}
	}

	if m.state == StateAuthenticated {
		return m.state, ErrAlreadyAuthenticated
	}
	return m.state, ErrTransitionInFlight
}

// Bootstrap attempts silent re-authentication from persisted tokens.
// attempted is the route the user originally requested; it is preserved
// across the login detour on failure and replayed on success.
func (m *Manager) Bootstrap(ctx context.Context, attempted Route) (Result, error) {
	if _, err := m.beginTransition(StateInitializing, StateUnauthenticated); err != nil {
		return Result{}, err
	}

	access, refresh, ok := m.creds.Tokens()
	if !ok {
		m.log.Info().Msg("no persisted tokens, starting unauthenticated")
		m.failAuth("")
		return Result{Next: RouteLogin, From: attempted}, nil
	}

	m.setTokens(access, refresh)

	resp, err := m.api.CheckAuth(ctx)
	if err != nil {
		// Any verification failure, including network errors, clears
		// the persisted credentials.
		m.log.Warn().Err(err).Msg("auth verification failed")
		m.failAuth(api.UserMessage(err, "Authorization failed"))
		return Result{Next: RouteLogin, From: attempted}, nil
	}

	if resp.User == nil || !resp.User.Valid() || resp.AccessToken == "" || resp.RefreshToken == "" {
		m.log.Warn().Msg("auth verification returned incomplete payload")
		m.failAuth("Authorization failed")
		return Result{Next: RouteLogin, From: attempted}, nil
	}

	m.establish(resp.User, resp.AccessToken, resp.RefreshToken)
	m.log.Info().Str("student", resp.User.StudentID).Msg("silent re-authentication succeeded")

	next := attempted
	if next == "" || next == RouteLogin {
		next = RouteDashboard
	}
	return Result{Next: next}, nil
}

// Login authenticates with email and password. Valid only from the
// Unauthenticated state. Failures are classified: ErrInvalidCredentials,
// *api.RateLimitError (cooldown, surfaced by the caller as a countdown),
// or a generic error with a user-facing message.
func (m *Manager) Login(ctx context.Context, email, password string) (Result, error) {
	if _, err := m.beginTransition(StateUnauthenticated); err != nil {
		return Result{}, err
	}

	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.endTransition(StateUnauthenticated, api.UserMessage(err, "Login failed"))

		if api.IsAuthError(err) {
			m.log.Info().Str("email", email).Msg("login rejected: invalid credentials")
			return Result{}, ErrInvalidCredentials
		}
		if rle, ok := api.IsRateLimited(err); ok {
			m.log.Warn().Int("retry_after", rle.RetryAfter).Msg("login rate limited")
			return Result{Next: RouteLoginFailed}, rle
		}
		m.log.Warn().Err(err).Msg("login failed")
		return Result{}, err
	}

	if !resp.Success || resp.Token == "" || resp.RefreshToken == "" || resp.Data == nil || !resp.Data.Valid() {
		msg := resp.Message
		if msg == "" {
			msg = "Invalid login response"
		}
		m.endTransition(StateUnauthenticated, msg)
		m.log.Warn().Msg("login response incomplete, treated as failure")
		return Result{}, &api.RequestError{Message: msg}
	}

	m.establish(resp.Data, resp.Token, resp.RefreshToken)
	m.log.Info().Str("student", resp.Data.StudentID).Msg("login succeeded")
	return Result{Next: RouteDashboard}, nil
}

// Logout clears all persisted credentials and in-memory session state
// synchronously, then notifies the server best-effort. It never fails from
// the caller's perspective: local state is authoritative.
func (m *Manager) Logout(ctx context.Context) Result {
	m.mu.Lock()
	if m.state == StateTransitioning {
		m.mu.Unlock()
		return Result{Next: RouteLogin}
	}
	m.session.Clear()
	m.state = StateUnauthenticated
	m.mu.Unlock()

	if err := m.creds.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("clearing persisted credentials")
	}

	if m.api != nil {
		notifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		go func() {
			defer cancel()
			if err := m.api.Logout(notifyCtx); err != nil {
				m.log.Debug().Err(err).Msg("best-effort server logout failed")
			}
		}()
	}

	m.log.Info().Msg("logged out")
	return Result{Next: RouteLogin}
}

// Invalidate is the forced-logout path for a 401 observed on any
// authenticated call. It is idempotent: only the first caller during a
// storm of concurrent failures observes a state change, so the login
// redirect happens exactly once.
func (m *Manager) Invalidate(reason string) bool {
	m.mu.Lock()
	if !m.session.Authenticated {
		m.mu.Unlock()
		return false
	}
	m.session.Clear()
	m.session.LastError = reason
	m.state = StateUnauthenticated
	m.mu.Unlock()

	if err := m.creds.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("clearing persisted credentials")
	}

	m.log.Warn().Str("reason", reason).Msg("session invalidated")
	return true
}

// establish persists sanitized credentials and enters Authenticated.
func (m *Manager) establish(student *model.Student, access, refresh string) {
	clean := sanitizeStudent(student)
	access = Sanitize(access)
	refresh = Sanitize(refresh)

	if err := m.creds.SaveSession(clean, access, refresh); err != nil {
		m.log.Warn().Err(err).Msg("persisting credentials")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = model.Session{
		Student:       clean,
		AccessToken:   access,
		RefreshToken:  refresh,
		Authenticated: true,
	}
	m.state = StateAuthenticated
}

// failAuth clears everything and enters Unauthenticated.
func (m *Manager) failAuth(lastError string) {
	if err := m.creds.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("clearing persisted credentials")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.Clear()
	m.session.LastError = lastError
	m.state = StateUnauthenticated
}

// setTokens loads persisted tokens into memory so CheckAuth can attach
// the bearer token through Token.
func (m *Manager) setTokens(access, refresh string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.AccessToken = Sanitize(access)
	m.session.RefreshToken = Sanitize(refresh)
}

// endTransition leaves Transitioning for the given state.
func (m *Manager) endTransition(next State, lastError string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = next
	m.session.LastError = lastError
}

// sanitizeStudent strips injection-prone characters from every string
// field before the profile is persisted or echoed.
func sanitizeStudent(s *model.Student) *model.Student {
	clean := *s
	clean.ID = Sanitize(s.ID)
	clean.Name = Sanitize(s.Name)
	clean.Email = Sanitize(s.Email)
	clean.StudentID = Sanitize(s.StudentID)
	clean.Department = Sanitize(s.Department)
	clean.YearOfStudy = Sanitize(s.YearOfStudy)
	clean.Courses = make([]string, len(s.Courses))
	for i, c := range s.Courses {
		clean.Courses[i] = Sanitize(c)
	}
	return &clean
}
