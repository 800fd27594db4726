package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/session"
	"github.com/campuspay/student-portal/internal/theme"
	"github.com/campuspay/student-portal/internal/validate"
)

// ResultMsg is dispatched when a login attempt completes.
type ResultMsg struct {
	Result session.Result
	Err    error
}

// countdownTickMsg advances the rate-limit cooldown by one second.
type countdownTickMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	password string
}

// Model is the login view: the credential form plus the dedicated
// "too many attempts" cooldown state.
type Model struct {
	mgr        *session.Manager
	form       *huh.Form
	fb         *formBindings
	submitting bool
	errMsg     string
	retryLeft  int
	width      int
	height     int
}

// New creates the login view.
func New(mgr *session.Manager, width, height int) Model {
	m := Model{
		mgr:    mgr,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("student@example.edu").
				Value(&m.fb.email),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password),
		),
	).WithShowHelp(false)
}

// Reset clears the form for a fresh login attempt.
func (m *Model) Reset() tea.Cmd {
	m.fb.email = ""
	m.fb.password = ""
	m.submitting = false
	m.errMsg = ""
	m.retryLeft = 0
	m.form = m.buildForm()
	return m.form.Init()
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

func (m Model) tickCountdown() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return countdownTickMsg{}
	})
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Update handles messages for the login view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case countdownTickMsg:
		if m.retryLeft <= 0 {
			return m, nil
		}
		m.retryLeft--
		if m.retryLeft == 0 {
			// Cooldown over: the form is re-enabled exactly now.
			m.errMsg = ""
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		return m, m.tickCountdown()

	case ResultMsg:
		m.submitting = false
		if msg.Err == nil {
			return m, nil
		}

		var rle *api.RateLimitError
		if errors.As(msg.Err, &rle) {
			m.retryLeft = rle.RetryAfter
			m.errMsg = api.UserMessage(msg.Err, "Too many login attempts")
			return m, m.tickCountdown()
		}
		if errors.Is(msg.Err, session.ErrInvalidCredentials) {
			m.errMsg = "Invalid email or password"
		} else if errors.Is(msg.Err, session.ErrTransitionInFlight) {
			// Another transition is running; swallow the duplicate.
			return m, nil
		} else {
			m.errMsg = api.UserMessage(msg.Err, "An error occurred during login")
		}
		m.form = m.buildForm()
		return m, m.form.Init()
	}

	// The form is disabled while submitting or cooling down.
	if m.submitting || m.retryLeft > 0 {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		input := validate.LoginInput{Email: m.fb.email, Password: m.fb.password}
		if err := validate.Struct(input); err != nil {
			// Client-side rejection: never reaches the network.
			m.errMsg = validate.FieldMessage(err)
			m.form = m.buildForm()
			return m, m.form.Init()
		}

		m.submitting = true
		m.errMsg = ""
		email, password := m.fb.email, m.fb.password
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			res, err := m.mgr.Login(ctx, email, password)
			return ResultMsg{Result: res, Err: err}
		}
	}

	return m, cmd
}

// View renders the login view.
func (m Model) View() string {
	title := theme.HeaderStyle.Render("Student Portal · Login")

	var body string
	switch {
	case m.retryLeft > 0:
		body = lipgloss.JoinVertical(
			lipgloss.Left,
			theme.ErrorStyle.Render("Too many login attempts"),
			"",
			fmt.Sprintf("You can try again in %ds.", m.retryLeft),
			theme.HelpStyle.Render("The login form is disabled until the countdown ends."),
		)
	case m.submitting:
		body = "Logging in..."
	default:
		body = m.form.View()
	}

	if m.errMsg != "" && m.retryLeft == 0 {
		body = lipgloss.JoinVertical(
			lipgloss.Left, body, "", theme.ErrorStyle.Render(m.errMsg),
		)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		theme.PanelStyle.Width(min(m.width-2, 60)).Render(body),
	)
}
