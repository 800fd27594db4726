package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/keys"
	"github.com/campuspay/student-portal/internal/model"
	"github.com/campuspay/student-portal/internal/notify"
	"github.com/campuspay/student-portal/internal/payment"
	"github.com/campuspay/student-portal/internal/session"
	"github.com/campuspay/student-portal/internal/store"
	"github.com/campuspay/student-portal/internal/ui"
	"github.com/campuspay/student-portal/internal/ui/dashboard"
	"github.com/campuspay/student-portal/internal/ui/fees"
	helpview "github.com/campuspay/student-portal/internal/ui/help"
	"github.com/campuspay/student-portal/internal/ui/login"
	"github.com/campuspay/student-portal/internal/ui/notifications"
	payview "github.com/campuspay/student-portal/internal/ui/payment"
	"github.com/campuspay/student-portal/internal/ui/refund"
)

// bootMsg carries the result of the silent re-authentication attempt.
type bootMsg struct {
	Result session.Result
	Err    error
}

// logoutMsg signals that the local session teardown has completed.
type logoutMsg struct{}

// Deps bundles everything the root model needs. The notifications
// synchronizer is created per mount: its push channel and fetch sequence
// die with the view.
type Deps struct {
	Config     *model.AppConfig
	ConfigPath string
	Log        zerolog.Logger
	Manager    *session.Manager
	Guard      *session.Guard
	API        *api.Client
	Poller     *payment.Poller
	Cache      store.Store
	NewSync    func() *notify.Synchronizer
}

// Model is the root Bubble Tea model: it owns routing through the
// navigation guard and dispatches to the per-route views.
type Model struct {
	deps    Deps
	keys    *keys.KeyMap
	layout  ui.Layout
	route   session.Route
	initial session.Route

	loginView login.Model
	dashView  dashboard.Model
	feesView  fees.Model
	payView   payview.Model
	refView   refund.Model
	noteView  notifications.Model
	noteLive  bool
	helpView  helpview.Model
	showHelp  bool

	sidebarOpen bool
	unread      int
	statusMsg   string
	ready       bool
	booting     bool
}

// New creates the root model. initial is the route the user asked for on
// startup; it is replayed after authentication.
func New(deps Deps, initial session.Route) Model {
	k := keys.DefaultKeyMap()
	currency := deps.Config.Display.Currency

	if initial == "" {
		initial = session.RouteDashboard
	}

	return Model{
		deps:        deps,
		keys:        k,
		initial:     initial,
		booting:     true,
		sidebarOpen: deps.Config.Display.SidebarOpen,
		loginView:   login.New(deps.Manager, 80, 24),
		dashView:    dashboard.New(deps.API, deps.Manager, currency, 80, 24),
		feesView:    fees.New(deps.API, deps.Poller, k, currency, 80, 24),
		payView:     payview.New(deps.Poller, k, currency, 80, 24),
		refView:     refund.New(deps.API, deps.Cache, k, currency, 80, 24),
		helpView:    helpview.New(k, 80, 24),
	}
}

// Init kicks off silent re-authentication from the persisted tokens.
func (m Model) Init() tea.Cmd {
	mgr := m.deps.Manager
	attempted := m.initial
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		res, err := mgr.Bootstrap(ctx, attempted)
		return bootMsg{Result: res, Err: err}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.contentSize()
		m.loginView.SetSize(w, h)
		m.dashView.SetSize(w, h)
		m.feesView.SetSize(w, h)
		m.payView.SetSize(w, h)
		m.refView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		if m.noteLive {
			m.noteView.SetSize(w, h)
		}
		return m.updateActiveView(msg)

	case bootMsg:
		m.booting = false
		if msg.Err != nil {
			// A concurrent transition owns the state; stay put.
			return m, nil
		}
		if msg.Result.From != "" {
			m.deps.Guard.Remember(msg.Result.From)
		}
		if msg.Result.Next == session.RouteLogin {
			m.route = session.RouteLogin
			return m, m.loginView.Reset()
		}
		return m.navigate(msg.Result.Next)

	case login.ResultMsg:
		if msg.Err == nil && msg.Result.Next != "" && msg.Result.Next != session.RouteLoginFailed {
			m.statusMsg = ""
			return m.navigate(m.deps.Guard.Landing())
		}
		// Failures stay on the login view, which renders the reason.
		return m.updateActiveView(msg)

	case logoutMsg:
		m.statusMsg = "Logged out"
		m.route = session.RouteLogin
		return m, m.loginView.Reset()

	case fees.PayRequestedMsg:
		m.route = session.RoutePayment
		return m, m.payView.SetAssignment(msg.Assignment)

	case payview.DoneMsg:
		return m.navigate(session.RouteFees)

	case payment.PollAuthErrorMsg:
		// The confirmation poll hit a 401; exactly one forced logout
		// regardless of how many sources report it.
		return m.sessionExpired()

	case dashboard.LoadedMsg:
		if api.IsAuthError(msg.Err) {
			return m.sessionExpired()
		}
		return m.updateActiveView(msg)

	case fees.LoadedMsg:
		if api.IsAuthError(msg.Err) {
			return m.sessionExpired()
		}
		return m.updateActiveView(msg)

	case refund.LoadedMsg:
		if api.IsAuthError(msg.Err) {
			return m.sessionExpired()
		}
		return m.updateActiveView(msg)

	case payview.InitiateResultMsg:
		if api.IsAuthError(msg.Err) {
			return m.sessionExpired()
		}
		return m.updateActiveView(msg)

	case notify.FetchedMsg:
		if api.IsAuthError(msg.Err) {
			return m.sessionExpired()
		}
		return m.updateActiveView(msg)

	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if key.Matches(msg, m.keys.Quit) {
			m.deps.Poller.Stop()
			m.teardownNotifications()
			return m, tea.Quit
		}
		if m.navKeysActive() {
			switch {
			case key.Matches(msg, m.keys.Dashboard):
				return m.navigate(session.RouteDashboard)
			case key.Matches(msg, m.keys.Fees):
				return m.navigate(session.RouteFees)
			case key.Matches(msg, m.keys.Payment):
				return m.navigate(session.RoutePayment)
			case key.Matches(msg, m.keys.Refund):
				return m.navigate(session.RouteRefund)
			case key.Matches(msg, m.keys.Notifications):
				return m.navigate(session.RouteNotifications)
			case key.Matches(msg, m.keys.Logout):
				return m, m.logout()
			case key.Matches(msg, m.keys.Sidebar):
				m.sidebarOpen = !m.sidebarOpen
				return m, m.saveSidebarPref()
			case key.Matches(msg, m.keys.Help):
				m.showHelp = true
				return m, nil
			}
		}
	}

	return m.updateActiveView(msg)
}

// navKeysActive reports whether global navigation keys apply: not during
// login, not while a form owns the keyboard.
func (m Model) navKeysActive() bool {
	switch m.route {
	case session.RouteLogin, session.RouteLoginFailed, session.RoutePayment:
		return false
	case session.RouteRefund:
		return !m.refView.Editing()
	case session.RouteFees:
		return !m.feesView.Editing()
	}
	return m.route != ""
}

// navigate resolves target through the guard and mounts the view. An
// unauthenticated session is detoured to login with target preserved.
func (m Model) navigate(target session.Route) (tea.Model, tea.Cmd) {
	resolved := m.deps.Guard.Resolve(target)
	if resolved == session.RouteLogin && target != session.RouteLogin {
		m.statusMsg = "Please log in to continue"
	}

	if m.route == resolved {
		return m, nil
	}
	m.teardownRoute(m.route)
	m.route = resolved

	switch resolved {
	case session.RouteLogin:
		return m, m.loginView.Reset()
	case session.RouteDashboard:
		return m, m.dashView.Refresh()
	case session.RouteFees:
		return m, m.feesView.Init()
	case session.RouteRefund:
		return m, m.refView.Refresh()
	case session.RouteNotifications:
		w, h := m.contentSize()
		m.noteView = notifications.New(m.deps.NewSync(), m.deps.Cache, m.keys, w, h)
		m.noteLive = true
		return m, m.noteView.Init()
	}
	return m, nil
}

func (m *Model) teardownRoute(r session.Route) {
	switch r {
	case session.RouteFees:
		m.feesView.Teardown()
	case session.RouteNotifications:
		m.teardownNotifications()
	}
}

func (m *Model) teardownNotifications() {
	if m.noteLive {
		m.unread = m.noteView.UnreadCount()
		m.noteView.Teardown()
		m.noteLive = false
	}
}

// sessionExpired forces the logout redirect after a 401 on a protected
// call. The manager's Invalidate is idempotent: only the first expiry
// report moves the UI, later ones are no-ops.
func (m Model) sessionExpired() (tea.Model, tea.Cmd) {
	if !m.deps.Manager.Invalidate("session expired") {
		return m, nil
	}
	m.deps.Guard.Remember(m.route)
	m.teardownRoute(m.route)
	m.deps.Poller.Stop()
	m.route = session.RouteLogin
	m.statusMsg = "Your session has expired. Please log in again."
	return m, m.loginView.Reset()
}

func (m *Model) logout() tea.Cmd {
	mgr := m.deps.Manager
	m.teardownRoute(m.route)
	m.deps.Poller.Stop()
	return func() tea.Msg {
		mgr.Logout(context.Background())
		return logoutMsg{}
	}
}

func (m Model) saveSidebarPref() tea.Cmd {
	cfg := *m.deps.Config
	cfg.Display.SidebarOpen = m.sidebarOpen
	path := m.deps.ConfigPath
	log := m.deps.Log
	return func() tea.Msg {
		if err := model.SaveConfig(path, &cfg); err != nil {
			log.Warn().Err(err).Msg("saving sidebar preference")
		}
		return nil
	}
}

// updateActiveView dispatches the message to the view for the current route.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.route {
	case session.RouteLogin, session.RouteLoginFailed:
		m.loginView, cmd = m.loginView.Update(msg)
	case session.RouteDashboard:
		m.dashView, cmd = m.dashView.Update(msg)
	case session.RouteFees:
		m.feesView, cmd = m.feesView.Update(msg)
	case session.RoutePayment:
		m.payView, cmd = m.payView.Update(msg)
	case session.RouteRefund:
		m.refView, cmd = m.refView.Update(msg)
	case session.RouteNotifications:
		if m.noteLive {
			m.noteView, cmd = m.noteView.Update(msg)
			m.unread = m.noteView.UnreadCount()
		}
	}

	return m, cmd
}

// View renders the full terminal UI.
func (m Model) View() string {
	if !m.ready || m.booting {
		return "Checking session..."
	}

	title := "CampusPay Student Portal"
	if m.unread > 0 {
		title = fmt.Sprintf("%s [%d unread]", title, m.unread)
	}
	header := m.layout.RenderHeader(title, m.sessionStatus())

	content := m.renderContent()
	if m.showHelp {
		content = m.helpView.View()
	}
	if m.sidebarOpen && m.authenticated() && !m.showHelp {
		content = ui.JoinSidebar(m.renderSidebar(), content)
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints())
	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) authenticated() bool {
	return m.deps.Manager.State() == session.StateAuthenticated
}

func (m Model) contentSize() (int, int) {
	w := m.layout.ContentWidth()
	if m.sidebarOpen {
		w -= ui.SidebarWidth
	}
	return w, m.layout.ContentHeight()
}

func (m Model) renderContent() string {
	switch m.route {
	case session.RouteLogin, session.RouteLoginFailed:
		return m.loginView.View()
	case session.RouteDashboard:
		return m.dashView.View()
	case session.RouteFees:
		return m.feesView.View()
	case session.RoutePayment:
		return m.payView.View()
	case session.RouteRefund:
		return m.refView.View()
	case session.RouteNotifications:
		if m.noteLive {
			return m.noteView.View()
		}
	}
	return ""
}

func (m Model) renderSidebar() string {
	entries := []struct {
		route session.Route
		label string
	}{
		{session.RouteDashboard, "1 Dashboard"},
		{session.RouteFees, "2 Fees"},
		{session.RoutePayment, "3 Payment"},
		{session.RouteRefund, "4 Refunds"},
		{session.RouteNotifications, "5 Notifications"},
	}

	items := make([]ui.SidebarItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, ui.SidebarItem{
			Label:  e.label,
			Active: m.route == e.route,
		})
	}
	return ui.RenderSidebar(items, m.layout.ContentHeight())
}

func (m Model) sessionStatus() string {
	st := m.deps.Manager.State()
	switch st {
	case session.StateAuthenticated:
		if s := m.deps.Manager.Current().Student; s != nil {
			return s.Name
		}
		return "signed in"
	case session.StateTransitioning:
		return "signing in..."
	default:
		return "signed out"
	}
}

// keyHints returns keyboard shortcut hints for the status bar. A pending
// status message takes precedence.
func (m Model) keyHints() string {
	if m.statusMsg != "" {
		return m.statusMsg
	}

	switch m.route {
	case session.RouteLogin, session.RouteLoginFailed:
		return "enter submit | ctrl+c quit"
	case session.RoutePayment:
		return "enter submit | esc back"
	case session.RouteRefund:
		if m.refView.Editing() {
			return "enter submit | esc cancel"
		}
		return "enter refund | 1-5 views | ctrl+l logout | ctrl+c quit"
	case session.RouteFees:
		if m.feesView.Editing() {
			return "enter apply | esc clear"
		}
		return "p pay | f status | / fee type | 1-5 views | ctrl+c quit"
	case session.RouteNotifications:
		return "m read | x delete | f filter | e export | 1-5 views | ctrl+c quit"
	default:
		return "1-5 views | b sidebar | r refresh | ctrl+l logout | ctrl+c quit"
	}
}
