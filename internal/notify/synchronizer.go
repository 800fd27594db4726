package notify

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/model"
)

// fetchTimeout bounds one authoritative read.
const fetchTimeout = 30 * time.Second

// Push reconnect delays double from pushBackoffBase up to pushBackoffMax.
const (
	pushBackoffBase = time.Second
	pushBackoffMax  = 30 * time.Second
)

// NotificationAPI is the slice of the portal API the synchronizer drives.
type NotificationAPI interface {
	Notifications(ctx context.Context, q api.NotificationQuery) (*api.NotificationPage, error)
	MarkNotificationsRead(ctx context.Context, ids []string) error
	DeleteNotification(ctx context.Context, id string) error
	ClearNotifications(ctx context.Context) error
}

// Dialer opens the push channel with current credentials.
type Dialer func(ctx context.Context) (*Channel, error)

// FetchedMsg carries one authoritative read result. Seq identifies the
// fetch; a result whose sequence is stale is discarded without touching
// the feed.
type FetchedMsg struct {
	Seq  int
	Page *api.NotificationPage
	Err  error
}

// PushConnectedMsg is sent when the push channel is open.
type PushConnectedMsg struct{}

// PushMsg carries one pushed notification.
type PushMsg struct {
	Notification model.Notification
}

// PushClosedMsg is sent when the push channel fails or closes. Err is nil
// on an orderly shutdown.
type PushClosedMsg struct {
	Err error
}

// Synchronizer merges the live push stream with paginated authoritative
// reads into one Feed. The feed itself is mutated only from the Bubble Tea
// update loop; the synchronizer's own fields are guarded for the command
// goroutines that complete fetches and reads.
type Synchronizer struct {
	api  NotificationAPI
	dial Dialer
	log  zerolog.Logger
	feed *Feed

	mu      sync.Mutex
	seq     int
	closed  bool
	channel *Channel
	retries int
}

// NewSynchronizer creates a synchronizer with an empty feed.
func NewSynchronizer(napi NotificationAPI, dial Dialer, logger zerolog.Logger, pageSize int) *Synchronizer {
	return &Synchronizer{
		api:  napi,
		dial: dial,
		log:  logger.With().Str("component", "notify").Logger(),
		feed: NewFeed(pageSize),
	}
}

// Feed exposes the merged view state.
func (s *Synchronizer) Feed() *Feed {
	return s.feed
}

// Fetch issues an authoritative read for the feed's current page, filter,
// and sort. Starting a new fetch invalidates every earlier in-flight one.
func (s *Synchronizer) Fetch() tea.Cmd {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	q := api.NotificationQuery{
		Page:      s.feed.Page,
		Limit:     s.feed.PageSize,
		Type:      s.feed.Filter.Type,
		Status:    s.feed.Filter.Status,
		SortBy:    s.feed.Sort.Field,
		SortOrder: s.feed.Sort.Order,
	}

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		page, err := s.api.Notifications(ctx, q)
		return FetchedMsg{Seq: seq, Page: page, Err: err}
	}
}

// Apply folds a completed fetch into the feed. It reports false when the
// result was stale (a newer fetch was issued, or the view was torn down)
// and the feed was left untouched.
func (s *Synchronizer) Apply(msg FetchedMsg) bool {
	s.mu.Lock()
	stale := s.closed || msg.Seq != s.seq
	s.mu.Unlock()

	if stale || msg.Err != nil || msg.Page == nil {
		return false
	}

	s.feed.ApplyFetch(msg.Page.Notifications, msg.Page.UnreadCount, msg.Page.Total)
	return true
}

// SetPage moves pagination and returns the mandatory fresh fetch.
func (s *Synchronizer) SetPage(page int) tea.Cmd {
	if page < 1 {
		page = 1
	}
	s.feed.Page = page
	return s.Fetch()
}

// SetFilter replaces the filter, resets to page 1, and re-fetches. The
// push-augmented list is never re-filtered in place.
func (s *Synchronizer) SetFilter(f Filter) tea.Cmd {
	s.feed.Filter = f
	s.feed.Page = 1
	return s.Fetch()
}

// SetSort replaces the sort, resets to page 1, and re-fetches.
func (s *Synchronizer) SetSort(sort Sort) tea.Cmd {
	s.feed.Sort = sort
	s.feed.Page = 1
	return s.Fetch()
}

// Connect opens the push channel. The returned command completes with
// PushConnectedMsg or PushClosedMsg; on success the caller follows up with
// WaitForPush.
func (s *Synchronizer) Connect() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		ch, err := s.dial(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("push channel connect failed")
			return PushClosedMsg{Err: err}
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			ch.Close()
			return PushClosedMsg{}
		}
		if s.channel != nil {
			// One channel per view instance.
			s.channel.Close()
		}
		s.channel = ch
		s.retries = 0
		s.mu.Unlock()

		s.log.Debug().Msg("push channel connected")
		return PushConnectedMsg{}
	}
}

// Reconnect schedules a fresh Connect after the next backoff delay. It
// returns nil once the synchronizer is closed; an orderly teardown must not
// resurrect the channel.
func (s *Synchronizer) Reconnect() tea.Cmd {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	delay := s.nextBackoffLocked()
	s.mu.Unlock()

	connect := s.Connect()
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return connect()
	})
}

// nextBackoffLocked advances the retry counter and returns the delay before
// the next connect attempt. Callers hold mu.
func (s *Synchronizer) nextBackoffLocked() time.Duration {
	delay := pushBackoffBase << uint(s.retries)
	if delay >= pushBackoffMax {
		return pushBackoffMax
	}
	s.retries++
	return delay
}

// WaitForPush blocks on the next pushed notification.
func (s *Synchronizer) WaitForPush() tea.Cmd {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch == nil {
		return nil
	}

	return func() tea.Msg {
		n, err := ch.Next()
		if err != nil {
			s.mu.Lock()
			orderly := s.closed
			s.mu.Unlock()
			if orderly {
				return PushClosedMsg{}
			}
			return PushClosedMsg{Err: err}
		}
		return PushMsg{Notification: n}
	}
}

// MarkReadCmd issues the fire-and-forget mark-read call. The feed was
// already flipped optimistically; a failure is logged, not rolled back, and
// the next authoritative fetch reconciles.
func (s *Synchronizer) MarkReadCmd(ids []string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		if err := s.api.MarkNotificationsRead(ctx, ids); err != nil {
			s.log.Warn().Err(err).Int("count", len(ids)).Msg("mark-read failed")
		}
		return nil
	}
}

// DeleteCmd issues the fire-and-forget single delete.
func (s *Synchronizer) DeleteCmd(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		if err := s.api.DeleteNotification(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("delete notification failed")
		}
		return nil
	}
}

// ClearCmd issues the fire-and-forget clear-all.
func (s *Synchronizer) ClearCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		if err := s.api.ClearNotifications(ctx); err != nil {
			s.log.Warn().Err(err).Msg("clear notifications failed")
		}
		return nil
	}
}

// Close tears the synchronizer down: the push channel closes and every
// in-flight fetch becomes stale so a late completion cannot mutate state.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	s.seq++
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
}
