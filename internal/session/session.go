package session

import "strings"

// State is the session manager's authentication state.
type State int

const (
	// StateInitializing is the initial state: silent re-authentication
	// from persisted tokens is in progress.
	StateInitializing State = iota

	// StateAuthenticated means both tokens are present and a profile is
	// loaded.
	StateAuthenticated

	// StateUnauthenticated means the user must log in.
	StateUnauthenticated

	// StateTransitioning means an authentication transition is in flight;
	// further transition attempts are rejected, never interleaved.
	StateTransitioning
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// Route identifies a navigable view. Values mirror the portal's paths so a
// preserved destination reads naturally in logs.
type Route string

const (
	RouteLogin         Route = "/login"
	RouteLoginFailed   Route = "/login-failed"
	RouteDashboard     Route = "/dashboard"
	RouteFees          Route = "/fee-assignments"
	RoutePayment       Route = "/payment"
	RouteRefund        Route = "/refund"
	RouteNotifications Route = "/notifications"
)

// injectionChars are stripped from backend-supplied values before they are
// persisted or echoed, to defend against stored-value injection.
const injectionChars = `<>"'%;()&`

// Sanitize strips injection-prone characters from a backend-supplied value.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(injectionChars, r) {
			return -1
		}
		return r
	}, s)
}
