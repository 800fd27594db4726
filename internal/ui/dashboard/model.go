package dashboard

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/model"
	"github.com/campuspay/student-portal/internal/session"
	"github.com/campuspay/student-portal/internal/theme"
)

// LoadedMsg is dispatched when the dashboard aggregate has been fetched.
type LoadedMsg struct {
	Dashboard *api.Dashboard
	Err       error
}

// DashboardAPI is the slice of the portal API this view reads.
type DashboardAPI interface {
	GetDashboard(ctx context.Context) (*api.Dashboard, error)
}

// Model is the dashboard view.
type Model struct {
	api      DashboardAPI
	mgr      *session.Manager
	currency string
	data     *api.Dashboard
	loading  bool
	errMsg   string
	width    int
	height   int
}

// New creates the dashboard view.
func New(dashAPI DashboardAPI, mgr *session.Manager, currency string, width, height int) Model {
	return Model{
		api:      dashAPI,
		mgr:      mgr,
		currency: currency,
		width:    width,
		height:   height,
	}
}

// Init fetches the dashboard.
func (m Model) Init() tea.Cmd {
	return m.load()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		d, err := m.api.GetDashboard(ctx)
		return LoadedMsg{Dashboard: d, Err: err}
	}
}

// Refresh re-fetches the dashboard.
func (m *Model) Refresh() tea.Cmd {
	m.loading = true
	m.errMsg = ""
	return m.load()
}

// Update handles messages for the dashboard view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.errMsg = api.UserMessage(msg.Err, "Failed to load dashboard")
			return m, nil
		}
		m.errMsg = ""
		m.data = msg.Dashboard
		return m, nil
	}
	return m, nil
}

// View renders the dashboard view.
func (m Model) View() string {
	if m.loading || (m.data == nil && m.errMsg == "") {
		return "Loading dashboard..."
	}
	if m.errMsg != "" {
		return lipgloss.JoinVertical(
			lipgloss.Left,
			theme.ErrorStyle.Render(m.errMsg),
			theme.HelpStyle.Render("press r to retry"),
		)
	}

	sess := m.mgr.Current()
	var lines []string

	if sess.Student != nil {
		s := sess.Student
		lines = append(lines,
			theme.HeaderStyle.Render("Welcome, "+s.Name),
			"",
			fmt.Sprintf("Student ID:  %s", s.StudentID),
			fmt.Sprintf("Department:  %s", s.Department),
			fmt.Sprintf("Year:        %s", s.YearOfStudy),
		)
	}

	if exp, ok := m.mgr.TokenExpiry(); ok {
		lines = append(lines, theme.HelpStyle.Render(
			"Session expires "+exp.Local().Format("15:04"),
		))
	}

	lines = append(lines, "", theme.HeaderStyle.Render("Recent payments"))
	if len(m.data.Payments) == 0 {
		lines = append(lines, theme.HelpStyle.Render("No payments yet."))
	}
	for i, p := range m.data.Payments {
		if i >= 5 {
			break
		}
		lines = append(lines, fmt.Sprintf(
			"%s%.2f  %s  %s",
			m.currency, p.Amount,
			theme.PaymentStatusStyle(p.Status).Render(p.Status),
			p.CreatedAt.Format("2006-01-02"),
		))
	}

	if len(m.data.FeeAssignments) > 0 {
		lines = append(lines, "", theme.HeaderStyle.Render("Outstanding fees"))
		for _, a := range m.data.FeeAssignments {
			if !a.Payable() {
				continue
			}
			lines = append(lines, fmt.Sprintf(
				"%-24s %s%.2f due, %s",
				a.Fee.FeeType, m.currency, a.AmountDue,
				model.DueIn(a.Fee.DueDate, time.Now()),
			))
		}
	}

	return theme.PanelStyle.Width(m.width - 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, lines...),
	)
}
