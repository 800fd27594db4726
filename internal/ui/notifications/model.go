package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/export"
	"github.com/campuspay/student-portal/internal/keys"
	"github.com/campuspay/student-portal/internal/model"
	"github.com/campuspay/student-portal/internal/notify"
	"github.com/campuspay/student-portal/internal/store"
	"github.com/campuspay/student-portal/internal/theme"
)

// ExportedMsg is dispatched when a CSV export completes.
type ExportedMsg struct {
	Path string
	Err  error
}

// cachedMsg carries the local fallback snapshot after a failed fetch.
type cachedMsg struct {
	Items []model.Notification
}

// typeFilters is cycled by the filter key. Empty means all.
var typeFilters = []string{
	"",
	model.NotificationPaymentSuccess,
	model.NotificationPaymentFailure,
	model.NotificationRefundApproved,
	model.NotificationRefundRejected,
	model.NotificationFeeAssigned,
}

// sortCycle is cycled by the sort key, starting from the default.
var sortCycle = []notify.Sort{
	notify.DefaultSort(),
	{Field: notify.SortByCreatedAt, Order: notify.OrderAsc},
	{Field: notify.SortByType, Order: notify.OrderAsc},
	{Field: notify.SortByType, Order: notify.OrderDesc},
}

// Model is the notifications view. It hosts the synchronizer: authoritative
// page fetches, the live push channel, and the optimistic local mutations.
type Model struct {
	sync     *notify.Synchronizer
	cache    store.Store
	keys     *keys.KeyMap
	cursor   int
	loading  bool
	pushOK   bool
	cached   []model.Notification
	infoMsg  string
	errMsg   string
	width    int
	height   int
}

// New creates the notifications view. The cache may be nil when the local
// database could not be opened.
func New(sync *notify.Synchronizer, cache store.Store, k *keys.KeyMap, width, height int) Model {
	return Model{
		sync:    sync,
		cache:   cache,
		keys:    k,
		loading: true,
		width:   width,
		height:  height,
	}
}

// Init issues the first authoritative fetch and opens the push channel.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.sync.Fetch(), m.sync.Connect())
}

// Teardown closes the push channel and invalidates in-flight fetches.
func (m *Model) Teardown() {
	m.sync.Close()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Refresh issues a fresh authoritative fetch.
func (m *Model) Refresh() tea.Cmd {
	m.loading = true
	m.errMsg = ""
	m.infoMsg = ""
	return m.sync.Fetch()
}

func (m Model) loadCached() tea.Cmd {
	cache := m.cache
	limit := m.sync.Feed().PageSize
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		items, err := cache.Notifications(ctx, limit)
		if err != nil {
			return nil
		}
		return cachedMsg{Items: items}
	}
}

func (m Model) saveCache(items []model.Notification) tea.Cmd {
	cache := m.cache
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = cache.ReplaceNotifications(ctx, items)
		return nil
	}
}

// Update handles messages for the notifications view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	feed := m.sync.Feed()

	switch msg := msg.(type) {
	case notify.FetchedMsg:
		if m.sync.Apply(msg) {
			m.loading = false
			m.errMsg = ""
			m.cached = nil
			m.clampCursor()
			if m.cache != nil && feed.DefaultView() {
				return m, m.saveCache(feed.Items)
			}
			return m, nil
		}
		if msg.Err != nil {
			m.loading = false
			m.errMsg = api.UserMessage(msg.Err, "Failed to load notifications")
			if m.cache != nil && len(feed.Items) == 0 {
				return m, m.loadCached()
			}
		}
		// Stale result: a newer fetch is already in flight.
		return m, nil

	case cachedMsg:
		m.cached = msg.Items
		m.infoMsg = "Offline: showing cached notifications"
		return m, nil

	case notify.PushConnectedMsg:
		m.pushOK = true
		return m, m.sync.WaitForPush()

	case notify.PushMsg:
		feed.ApplyPush(msg.Notification)
		m.clampCursor()
		return m, m.sync.WaitForPush()

	case notify.PushClosedMsg:
		m.pushOK = false
		if msg.Err != nil {
			return m, m.sync.Reconnect()
		}
		return m, nil

	case ExportedMsg:
		if msg.Err != nil {
			m.errMsg = "Export failed: " + msg.Err.Error()
		} else {
			m.infoMsg = "Exported to " + msg.Path
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	feed := m.sync.Feed()

	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(feed.Items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Refresh):
		return m, m.Refresh()

	case key.Matches(msg, m.keys.MarkRead):
		if m.cursor < len(feed.Items) {
			id := feed.Items[m.cursor].ID
			if feed.MarkRead([]string{id}) > 0 {
				return m, m.sync.MarkReadCmd([]string{id})
			}
		}

	case key.Matches(msg, m.keys.MarkAllRead):
		var unread []string
		for _, n := range feed.Items {
			if !n.Read {
				unread = append(unread, n.ID)
			}
		}
		if feed.MarkAllRead() > 0 {
			return m, m.sync.MarkReadCmd(unread)
		}

	case key.Matches(msg, m.keys.Delete):
		if m.cursor < len(feed.Items) {
			id := feed.Items[m.cursor].ID
			if feed.Delete(id) {
				m.clampCursor()
				return m, m.sync.DeleteCmd(id)
			}
		}

	case key.Matches(msg, m.keys.ClearAll):
		if len(feed.Items) > 0 {
			feed.Clear()
			m.cursor = 0
			return m, m.sync.ClearCmd()
		}

	case key.Matches(msg, m.keys.NextPage):
		if feed.Page < feed.TotalPages() {
			m.loading = true
			m.cursor = 0
			return m, m.sync.SetPage(feed.Page + 1)
		}

	case key.Matches(msg, m.keys.PrevPage):
		if feed.Page > 1 {
			m.loading = true
			m.cursor = 0
			return m, m.sync.SetPage(feed.Page - 1)
		}

	case key.Matches(msg, m.keys.CycleFilter):
		next := 0
		for i, t := range typeFilters {
			if feed.Filter.Type == t {
				next = (i + 1) % len(typeFilters)
				break
			}
		}
		m.loading = true
		m.cursor = 0
		return m, m.sync.SetFilter(notify.Filter{Type: typeFilters[next]})

	case key.Matches(msg, m.keys.CycleSort):
		next := 0
		for i, s := range sortCycle {
			if feed.Sort == s {
				next = (i + 1) % len(sortCycle)
				break
			}
		}
		m.loading = true
		m.cursor = 0
		return m, m.sync.SetSort(sortCycle[next])

	case key.Matches(msg, m.keys.Export):
		items := feed.Items
		if len(m.cached) > 0 {
			items = m.cached
		}
		return m, func() tea.Msg {
			path, err := export.NotificationsCSVFile(items)
			return ExportedMsg{Path: path, Err: err}
		}
	}

	return m, nil
}

func (m *Model) clampCursor() {
	n := len(m.sync.Feed().Items)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// UnreadCount exposes the global unread counter for the status bar.
func (m Model) UnreadCount() int {
	return m.sync.Feed().UnreadCount
}

// View renders the notifications view.
func (m Model) View() string {
	feed := m.sync.Feed()

	header := fmt.Sprintf("Notifications · %d unread", feed.UnreadCount)
	title := theme.HeaderStyle.Render(header)

	var status []string
	if feed.Filter.Type != "" {
		status = append(status, "filter: "+feed.Filter.Type)
	}
	if feed.Sort != notify.DefaultSort() {
		status = append(status, fmt.Sprintf("sort: %s %s", feed.Sort.Field, feed.Sort.Order))
	}
	if feed.TotalPages() > 1 {
		status = append(status, fmt.Sprintf("page %d/%d", feed.Page, feed.TotalPages()))
	}
	if !m.pushOK {
		status = append(status, "live updates off")
	}

	var lines []string
	switch {
	case m.loading:
		lines = append(lines, "Loading...")
	case len(m.cached) > 0:
		for _, n := range m.cached {
			lines = append(lines, theme.ListItemStyle.Render(m.renderItem(n)))
		}
	case len(feed.Items) == 0:
		lines = append(lines, theme.HelpStyle.Render("No notifications."))
	default:
		for i, n := range feed.Items {
			line := m.renderItem(n)
			switch {
			case i == m.cursor:
				lines = append(lines, theme.SelectedItemStyle.Render(line))
			case !n.Read:
				lines = append(lines, theme.UnreadStyle.Render(line))
			default:
				lines = append(lines, theme.ListItemStyle.Render(line))
			}
		}
	}

	if m.infoMsg != "" {
		lines = append(lines, "", theme.HelpStyle.Render(m.infoMsg))
	}
	if m.errMsg != "" {
		lines = append(lines, "", theme.ErrorStyle.Render(m.errMsg))
	}
	lines = append(lines, "", theme.HelpStyle.Render(
		"m read · M all read · x delete · X clear · f filter · tab sort · n/p page · e export · r refresh",
	))

	parts := []string{title}
	if len(status) > 0 {
		parts = append(parts, theme.HelpStyle.Render(strings.Join(status, " · ")))
	}
	parts = append(parts, "")
	parts = append(parts, lines...)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderItem(n model.Notification) string {
	marker := " "
	if !n.Read {
		marker = "●"
	}
	return fmt.Sprintf(
		"%s %s · %s · %s",
		marker,
		n.CreatedAt.Format("Jan 02 15:04"),
		n.Type,
		n.Message,
	)
}
