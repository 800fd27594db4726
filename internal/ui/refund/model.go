package refund

import (
	"context"
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
	"github.com/campuspay/student-portal/internal/store"
	"github.com/campuspay/student-portal/internal/theme"
	"github.com/campuspay/student-portal/internal/validate"
)

// RefundAPI is the slice of the backend the refund view needs.
type RefundAPI interface {
	Payments(ctx context.Context) ([]model.Payment, error)
	Refunds(ctx context.Context) ([]model.Refund, error)
	RequestRefund(ctx context.Context, paymentID string, amount float64, reason string) (string, error)
}

// LoadedMsg carries the payment and refund histories. Cached reports
// whether the payments came from the local cache because the fetch failed.
type LoadedMsg struct {
	Payments []model.Payment
	Refunds  []model.Refund
	Cached   bool
	Err      error
}

// SubmittedMsg is dispatched when a refund request completes.
type SubmittedMsg struct {
	Message string
	Err     error
}

type formBindings struct {
	amount string
	reason string
}

// Model is the refund view: successful payments eligible for a refund
// request, plus the student's refund history.
type Model struct {
	api      RefundAPI
	cache    store.Store
	keys     *keys.KeyMap
	currency string
	payments []model.Payment
	refunds  []model.Refund
	cursor   int
	form     *huh.Form
	fb       *formBindings
	selected *model.Payment
	loading  bool
	cached   bool
	infoMsg  string
	errMsg   string
	width    int
	height   int
}

// New creates the refund view. The cache may be nil when the local
// database could not be opened.
func New(refundAPI RefundAPI, cache store.Store, k *keys.KeyMap, currency string, width, height int) Model {
	return Model{
		api:      refundAPI,
		cache:    cache,
		keys:     k,
		currency: currency,
		loading:  true,
		width:    width,
		height:   height,
	}
}

// Init fetches both histories.
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

		payments, err := m.api.Payments(ctx)
		if err != nil {
			if m.cache != nil {
				if cached, cerr := m.cache.Payments(ctx); cerr == nil && len(cached) > 0 {
					return LoadedMsg{Payments: cached, Cached: true, Err: err}
				}
			}
			return LoadedMsg{Err: err}
		}
		if m.cache != nil {
			_ = m.cache.ReplacePayments(ctx, payments)
		}

		refunds, err := m.api.Refunds(ctx)
		if err != nil {
			return LoadedMsg{Payments: payments, Err: err}
		}
		return LoadedMsg{Payments: payments, Refunds: refunds}
	}
}

// Refresh re-fetches both histories.
func (m *Model) Refresh() tea.Cmd {
	m.loading = true
	m.errMsg = ""
	m.infoMsg = ""
	return m.load()
}

func (m Model) buildForm() *huh.Form {
	p := m.selected
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title(fmt.Sprintf("Amount (%s, paid %s%.2f)", m.currency, m.currency, p.Amount)).
				Value(&m.fb.amount).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
					if err != nil || v <= 0 {
						return fmt.Errorf("enter an amount greater than 0")
					}
					if v > p.Amount {
						return fmt.Errorf("amount exceeds the %s%.2f paid", m.currency, p.Amount)
					}
					return nil
				}),
			huh.NewText().
				Key("reason").
				Title("Reason").
				Value(&m.fb.reason).
				Lines(3),
		),
	).WithShowHelp(false).WithWidth(min(m.width-6, 56))
}

func (m Model) submit(paymentID string, amount float64, reason string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		msg, err := m.api.RequestRefund(ctx, paymentID, amount, reason)
		return SubmittedMsg{Message: msg, Err: err}
	}
}

// Update handles messages for the refund view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		m.cached = msg.Cached
		if msg.Err != nil && msg.Payments == nil {
			m.errMsg = api.UserMessage(msg.Err, "Failed to load payments")
			return m, nil
		}
		m.errMsg = ""
		if msg.Cached {
			m.infoMsg = "Offline: showing cached payments"
		}
		m.payments = msg.Payments
		m.refunds = msg.Refunds
		m.clampCursor()
		return m, nil

	case SubmittedMsg:
		m.selected = nil
		m.form = nil
		if msg.Err != nil {
			m.errMsg = api.UserMessage(msg.Err, "Failed to submit refund request")
			return m, nil
		}
		m.infoMsg = msg.Message
		if m.infoMsg == "" {
			m.infoMsg = "Refund request submitted"
		}
		return m, m.Refresh()

	case tea.KeyMsg:
		if m.form == nil {
			return m.handleKeys(msg)
		}
		if key.Matches(msg, m.keys.Back) {
			m.selected = nil
			m.form = nil
			return m, nil
		}
	}

	if m.form == nil {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		amount, _ := strconv.ParseFloat(strings.TrimSpace(m.fb.amount), 64)
		input := validate.RefundInput{
			PaymentID: m.selected.ID,
			Amount:    amount,
			Reason:    strings.TrimSpace(m.fb.reason),
		}
		if err := validate.Struct(input); err != nil {
			m.errMsg = validate.FieldMessage(err)
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		m.errMsg = ""
		return m, m.submit(input.PaymentID, input.Amount, input.Reason)
	}

	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.payments)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.Refresh()
	case key.Matches(msg, m.keys.Select):
		if m.cursor < len(m.payments) {
			p := m.payments[m.cursor]
			if p.Status != "success" {
				m.errMsg = "Only successful payments can be refunded"
				return m, nil
			}
			m.selected = &p
			m.fb = &formBindings{amount: strconv.FormatFloat(p.Amount, 'f', 2, 64)}
			m.form = m.buildForm()
			m.errMsg = ""
			m.infoMsg = ""
			return m, m.form.Init()
		}
	}
	return m, nil
}

// Editing reports whether the refund form is open and should own keys.
func (m Model) Editing() bool {
	return m.form != nil
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.payments) {
		m.cursor = len(m.payments) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View renders the refund view.
func (m Model) View() string {
	title := theme.HeaderStyle.Render("Refunds")

	if m.loading {
		return lipgloss.JoinVertical(lipgloss.Left, title, "", "Loading...")
	}

	if m.form != nil {
		body := lipgloss.JoinVertical(
			lipgloss.Left,
			fmt.Sprintf("Refund for payment %s", m.selected.ID),
			"",
			m.form.View(),
		)
		if m.errMsg != "" {
			body = lipgloss.JoinVertical(lipgloss.Left, body, "", theme.ErrorStyle.Render(m.errMsg))
		}
		return lipgloss.JoinVertical(
			lipgloss.Left, title, "",
			theme.PanelStyle.Width(min(m.width-2, 64)).Render(body),
		)
	}

	var lines []string
	lines = append(lines, theme.ListItemStyle.Render("Payments"))
	if len(m.payments) == 0 {
		lines = append(lines, theme.HelpStyle.Render("No payments yet."))
	}
	for i, p := range m.payments {
		line := fmt.Sprintf(
			"%s%.2f · %s · %s · %s",
			m.currency, p.Amount,
			p.PaymentProvider,
			p.CreatedAt.Format("2006-01-02"),
			theme.PaymentStatusStyle(p.Status).Render(p.Status),
		)
		if i == m.cursor {
			lines = append(lines, theme.SelectedItemStyle.Render(line))
		} else {
			lines = append(lines, theme.ListItemStyle.Render(line))
		}
	}

	if len(m.refunds) > 0 {
		lines = append(lines, "", theme.ListItemStyle.Render("Refund requests"))
		for _, r := range m.refunds {
			lines = append(lines, theme.ListItemStyle.Render(fmt.Sprintf(
				"%s%.2f · %s · %s",
				m.currency, r.Amount,
				r.CreatedAt.Format("2006-01-02"),
				theme.PaymentStatusStyle(r.Status).Render(r.Status),
			)))
		}
	}

	if m.infoMsg != "" {
		lines = append(lines, "", theme.HelpStyle.Render(m.infoMsg))
	}
	if m.errMsg != "" {
		lines = append(lines, "", theme.ErrorStyle.Render(m.errMsg))
	}
	lines = append(lines, "", theme.HelpStyle.Render("enter request refund · r refresh"))

	return lipgloss.JoinVertical(lipgloss.Left, append([]string{title, ""}, lines...)...)
}
