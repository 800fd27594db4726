package session

import "sync"

// Guard gates protected routes on the session state. It is a pure
// predicate over the manager plus the one preserved destination: the route
// the user asked for before being detoured through login.
type Guard struct {
	mgr *Manager

	mu   sync.Mutex
	from Route
}

// NewGuard creates a navigation guard over the given session manager.
func NewGuard(mgr *Manager) *Guard {
	return &Guard{mgr: mgr}
}

// Resolve returns target when the session is authenticated. Otherwise it
// preserves target as the post-login destination and returns the login
// route.
func (g *Guard) Resolve(target Route) Route {
	if g.mgr.State() == StateAuthenticated {
		return target
	}

	g.mu.Lock()
	g.from = target
	g.mu.Unlock()
	return RouteLogin
}

// Remember records a destination to replay after login without resolving.
func (g *Guard) Remember(target Route) {
	g.mu.Lock()
	g.from = target
	g.mu.Unlock()
}

// From returns the preserved destination, if any.
func (g *Guard) From() Route {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.from
}

// Landing consumes the preserved destination, defaulting to the dashboard.
func (g *Guard) Landing() Route {
	g.mu.Lock()
	defer g.mu.Unlock()

	dest := g.from
	g.from = ""
	if dest == "" || dest == RouteLogin || dest == RouteLoginFailed {
		dest = RouteDashboard
	}
	return dest
}
