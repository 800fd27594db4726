package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/keys"
	"github.com/campuspay/student-portal/internal/model"
	"github.com/campuspay/student-portal/internal/payment"
	"github.com/campuspay/student-portal/internal/theme"
)

// InitiateResultMsg is dispatched when payment initialization completes.
type InitiateResultMsg struct {
	Result *api.InitializedPayment
	Err    error
}

// DoneMsg asks the application to return to the fee-assignments view,
// where the confirmation poll resumes while the pending flag is live.
type DoneMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	amount string
}

// Model is the payment view: amount entry for a selected fee assignment,
// then the gateway handoff.
type Model struct {
	poller     *payment.Poller
	keys       *keys.KeyMap
	currency   string
	assignment *model.FeeAssignment
	form       *huh.Form
	fb         *formBindings
	initiating bool
	result     *api.InitializedPayment
	errMsg     string
	width      int
	height     int
}

// New creates the payment view. A fee must be selected via SetAssignment
// before the view can do anything useful.
func New(poller *payment.Poller, k *keys.KeyMap, currency string, width, height int) Model {
	return Model{
		poller:   poller,
		keys:     k,
		currency: currency,
		width:    width,
		height:   height,
	}
}

// SetAssignment selects the fee to pay and resets the amount form. The
// amount defaults to the outstanding balance.
func (m *Model) SetAssignment(a model.FeeAssignment) tea.Cmd {
	m.assignment = &a
	m.result = nil
	m.initiating = false
	m.errMsg = ""
	m.fb = &formBindings{amount: strconv.FormatFloat(a.AmountDue, 'f', 2, 64)}
	m.form = m.buildForm()
	return m.form.Init()
}

func (m Model) buildForm() *huh.Form {
	due := m.assignment.AmountDue
	partial := m.assignment.Fee.AllowPartialPayment

	title := fmt.Sprintf("Amount (%s)", m.currency)
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title(title).
				Value(&m.fb.amount).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
					if err != nil {
						return errors.New("enter a number")
					}
					if v <= 0 {
						return errors.New("amount must be greater than 0")
					}
					if v > due {
						return fmt.Errorf("amount exceeds the %s%.2f outstanding", m.currency, due)
					}
					if !partial && v < due {
						return errors.New("this fee does not allow partial payment")
					}
					return nil
				}),
		),
	).WithShowHelp(false).WithWidth(min(m.width-6, 48))
}

// Init is a no-op; the form is created by SetAssignment.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) initiate(amount float64) tea.Cmd {
	a := *m.assignment
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := m.poller.Initiate(ctx, a, amount)
		return InitiateResultMsg{Result: result, Err: err}
	}
}

// Update handles messages for the payment view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case InitiateResultMsg:
		m.initiating = false
		if msg.Err != nil {
			m.errMsg = api.UserMessage(msg.Err, "Failed to initialize payment")
			if m.assignment != nil {
				m.form = m.buildForm()
				return m, m.form.Init()
			}
			return m, nil
		}
		m.errMsg = ""
		m.result = msg.Result
		return m, nil

	case tea.KeyMsg:
		if m.result != nil {
			if key.Matches(msg, m.keys.Select) || key.Matches(msg, m.keys.Back) {
				return m, func() tea.Msg { return DoneMsg{} }
			}
			return m, nil
		}
		if key.Matches(msg, m.keys.Back) && !m.initiating {
			return m, func() tea.Msg { return DoneMsg{} }
		}
	}

	if m.form == nil || m.initiating || m.result != nil {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		amount, err := strconv.ParseFloat(strings.TrimSpace(m.fb.amount), 64)
		if err != nil {
			m.errMsg = "Enter a valid amount"
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		m.initiating = true
		m.errMsg = ""
		return m, m.initiate(amount)
	}

	return m, cmd
}

// View renders the payment view.
func (m Model) View() string {
	title := theme.HeaderStyle.Render("Make a Payment")

	if m.assignment == nil {
		body := theme.HelpStyle.Render("Select a fee from the Fee Assignments view first.")
		return lipgloss.JoinVertical(lipgloss.Left, title, "", body)
	}

	a := m.assignment
	summary := fmt.Sprintf(
		"%s · %s\nOutstanding: %s%.2f of %s%.2f · %s",
		a.Fee.FeeType,
		a.Fee.AcademicSession,
		m.currency, a.AmountDue,
		m.currency, a.Fee.Amount,
		model.DueIn(a.Fee.DueDate, time.Now()),
	)

	var body string
	switch {
	case m.result != nil:
		pending, _ := m.poller.Pending()
		body = lipgloss.JoinVertical(
			lipgloss.Left,
			"Payment initialized. Complete it at:",
			"",
			theme.SelectedItemStyle.Render(m.result.PaymentURL),
			"",
			fmt.Sprintf("Confirmation is watched until %s.", pending.ExpiresAt.Format("15:04:05")),
			theme.HelpStyle.Render("enter: back to fee assignments"),
		)
	case m.initiating:
		body = "Contacting payment gateway..."
	default:
		body = m.form.View()
	}

	if m.errMsg != "" {
		body = lipgloss.JoinVertical(
			lipgloss.Left, body, "", theme.ErrorStyle.Render(m.errMsg),
		)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		theme.ListItemStyle.Render(summary),
		"",
		theme.PanelStyle.Width(min(m.width-2, 60)).Render(body),
	)
}
