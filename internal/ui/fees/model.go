package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/keys"
	"github.com/campuspay/student-portal/internal/model"
	"github.com/campuspay/student-portal/internal/payment"
	"github.com/campuspay/student-portal/internal/theme"
)

// LoadedMsg is dispatched when the fee assignments have been fetched.
type LoadedMsg struct {
	Assignments []model.FeeAssignment
	Err         error
}

// PayRequestedMsg asks the application to open the payment view for a fee.
type PayRequestedMsg struct {
	Assignment model.FeeAssignment
}

// DetailLoadedMsg carries one assignment fetched by its id.
type DetailLoadedMsg struct {
	Assignment *model.FeeAssignment
	Err        error
}

// statusFilters is cycled by the filter key. Empty means all.
var statusFilters = []string{
	"",
	string(model.FeeStatusAssigned),
	string(model.FeeStatusPartiallyPaid),
	string(model.FeeStatusFullyPaid),
	string(model.FeeStatusOverdue),
}

// Model is the fee-assignments view. While a pending payment flag is live
// it hosts the confirmation poller, whose re-fetches replace the visible
// snapshots wholesale.
type Model struct {
	api         payment.FeeAPI
	poller      *payment.Poller
	keys        *keys.KeyMap
	currency    string
	assignments []model.FeeAssignment
	cursor      int
	filterIdx   int
	typeFilter  string
	typing      bool
	detail      *model.FeeAssignment
	loading     bool
	confirming  bool
	errMsg      string
	width       int
	height      int
}

// New creates the fee-assignments view.
func New(feeAPI payment.FeeAPI, poller *payment.Poller, k *keys.KeyMap, currency string, width, height int) Model {
	return Model{
		api:      feeAPI,
		poller:   poller,
		keys:     k,
		currency: currency,
		loading:  true,
		width:    width,
		height:   height,
	}
}

// Init fetches the assignments and, when a non-expired pending payment
// exists, resumes the confirmation poll.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.load()}
	if m.poller.Active() {
		m.confirming = true
		if cmd := m.poller.Start(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// Teardown stops the polling timer when the view goes away. The pending
// flag survives so a later visit within the window resumes.
func (m *Model) Teardown() {
	m.poller.Stop()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Editing reports whether the fee-type filter input is capturing keys, so
// the application suspends global navigation bindings.
func (m Model) Editing() bool {
	return m.typing
}

func (m Model) load() tea.Cmd {
	filter := api.FeeFilter{
		FeeType: m.typeFilter,
		Status:  statusFilters[m.filterIdx],
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		assignments, err := m.api.FeeAssignments(ctx, filter)
		return LoadedMsg{Assignments: assignments, Err: err}
	}
}

// loadDetail fetches one assignment by id for the detail panel, the
// authoritative record rather than the list snapshot.
func (m Model) loadDetail(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		assignments, err := m.api.FeeAssignments(ctx, api.FeeFilter{ID: id})
		if err != nil {
			return DetailLoadedMsg{Err: err}
		}
		if len(assignments) == 0 {
			return DetailLoadedMsg{Err: fmt.Errorf("fee assignment %s not found", id)}
		}
		return DetailLoadedMsg{Assignment: &assignments[0]}
	}
}

// Refresh re-fetches the assignment list.
func (m *Model) Refresh() tea.Cmd {
	m.loading = true
	m.errMsg = ""
	return m.load()
}

// Update handles messages for the fee-assignments view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.errMsg = api.UserMessage(msg.Err, "Failed to load fee assignments")
			return m, nil
		}
		m.errMsg = ""
		m.assignments = msg.Assignments
		m.clampCursor()
		return m, nil

	case DetailLoadedMsg:
		if msg.Err != nil {
			m.errMsg = api.UserMessage(msg.Err, "Failed to load fee details")
			return m, nil
		}
		m.detail = msg.Assignment
		return m, nil

	case payment.PollResultMsg:
		// A confirmation re-fetch: the snapshot is replaced wholesale.
		// Fetch errors surface but do not abort the window.
		if msg.Err != nil {
			m.errMsg = api.UserMessage(msg.Err, "Failed to load fee assignments")
		} else {
			m.errMsg = ""
			m.assignments = msg.Assignments
			m.clampCursor()
		}
		return m, m.poller.WaitForNextResult()

	case payment.PollFinishedMsg:
		// End of window: expected, silent. One last manual refresh is a
		// keypress away.
		m.confirming = false
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.typing {
		return m.handleTypeFilterKeys(msg)
	}

	switch {
	case key.Matches(msg, m.keys.TypeFilter):
		m.typing = true
		return m, nil
	case key.Matches(msg, m.keys.Back):
		m.detail = nil
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.assignments)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.Refresh()
	case key.Matches(msg, m.keys.CycleFilter):
		m.filterIdx = (m.filterIdx + 1) % len(statusFilters)
		return m, m.Refresh()
	case key.Matches(msg, m.keys.Select):
		if m.cursor < len(m.assignments) {
			return m, m.loadDetail(m.assignments[m.cursor].ID)
		}
	case key.Matches(msg, m.keys.Pay):
		a := m.selected()
		if a != nil && a.Payable() {
			req := *a
			return m, func() tea.Msg { return PayRequestedMsg{Assignment: req} }
		}
	}
	return m, nil
}

// selected resolves the assignment a pay action targets: the open detail
// record when present, else the list cursor.
func (m Model) selected() *model.FeeAssignment {
	if m.detail != nil {
		return m.detail
	}
	if m.cursor < len(m.assignments) {
		return &m.assignments[m.cursor]
	}
	return nil
}

// handleTypeFilterKeys captures input for the fee-type filter. Enter
// applies and re-fetches, esc clears it.
func (m Model) handleTypeFilterKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.typing = false
		return m, m.Refresh()
	case tea.KeyEsc:
		m.typing = false
		if m.typeFilter != "" {
			m.typeFilter = ""
			return m, m.Refresh()
		}
		return m, nil
	case tea.KeyBackspace:
		if m.typeFilter != "" {
			m.typeFilter = m.typeFilter[:len(m.typeFilter)-1]
		}
		return m, nil
	case tea.KeyRunes, tea.KeySpace:
		m.typeFilter += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.assignments) {
		m.cursor = len(m.assignments) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View renders the fee-assignments view.
func (m Model) View() string {
	var lines []string

	header := "Fee Assignments"
	if f := statusFilters[m.filterIdx]; f != "" {
		header += " · " + f
	}
	if m.typeFilter != "" && !m.typing {
		header += " · type: " + m.typeFilter
	}
	lines = append(lines, theme.HeaderStyle.Render(header))

	if m.typing {
		lines = append(lines, theme.SelectedItemStyle.Render(
			"Filter by fee type: "+m.typeFilter+"▌",
		))
	}

	if m.confirming {
		lines = append(lines, theme.UnreadStyle.Render(
			"Confirming payment... checking for status updates",
		))
	}
	lines = append(lines, "")

	if m.detail != nil {
		lines = append(lines, m.detailLines()...)
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	switch {
	case m.loading:
		lines = append(lines, "Loading fee assignments...")
	case m.errMsg != "":
		lines = append(lines,
			theme.ErrorStyle.Render(m.errMsg),
			theme.HelpStyle.Render("press r to retry"),
		)
	case len(m.assignments) == 0:
		lines = append(lines, theme.HelpStyle.Render("No fee assignments found."))
	default:
		now := time.Now()
		for i, a := range m.assignments {
			line := fmt.Sprintf(
				"%-24s %s %s%.2f due / %s%.2f paid  %s",
				a.Fee.FeeType,
				theme.FeeStatusStyle(string(a.Status)).Render(string(a.Status)),
				m.currency, a.AmountDue,
				m.currency, a.AmountPaid,
				model.DueIn(a.Fee.DueDate, now),
			)
			if i == m.cursor {
				lines = append(lines, theme.SelectedItemStyle.Render(line))
			} else {
				lines = append(lines, theme.ListItemStyle.Render(line))
			}
		}
		lines = append(lines, "", theme.HelpStyle.Render(
			"p pay · f status · / fee type · r refresh",
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) detailLines() []string {
	a := m.detail
	lines := []string{
		theme.PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			fmt.Sprintf("Fee type:         %s", a.Fee.FeeType),
			fmt.Sprintf("Academic session: %s", a.Fee.AcademicSession),
			fmt.Sprintf("Status:           %s", theme.FeeStatusStyle(string(a.Status)).Render(string(a.Status))),
			fmt.Sprintf("Amount:           %s%.2f", m.currency, a.Fee.Amount),
			fmt.Sprintf("Paid:             %s%.2f", m.currency, a.AmountPaid),
			fmt.Sprintf("Outstanding:      %s%.2f", m.currency, a.AmountDue),
			fmt.Sprintf("Due:              %s (%s)", a.Fee.DueDate.Format("2006-01-02"), model.DueIn(a.Fee.DueDate, time.Now())),
			fmt.Sprintf("Partial payments: %s", yesNo(a.Fee.AllowPartialPayment)),
		)),
	}
	if a.Payable() {
		lines = append(lines, theme.HelpStyle.Render("p pay · esc close"))
	} else {
		lines = append(lines, theme.HelpStyle.Render("esc close"))
	}
	return lines
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
