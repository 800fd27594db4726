package notify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/model"
)

type stubNotificationAPI struct {
	notifications func(ctx context.Context, q api.NotificationQuery) (*api.NotificationPage, error)
	marked        atomic.Int32
	deleted       atomic.Int32
	cleared       atomic.Int32
}

func (s *stubNotificationAPI) Notifications(ctx context.Context, q api.NotificationQuery) (*api.NotificationPage, error) {
	return s.notifications(ctx, q)
}

func (s *stubNotificationAPI) MarkNotificationsRead(ctx context.Context, ids []string) error {
	s.marked.Add(int32(len(ids)))
	return nil
}

func (s *stubNotificationAPI) DeleteNotification(ctx context.Context, id string) error {
	s.deleted.Add(1)
	return nil
}

func (s *stubNotificationAPI) ClearNotifications(ctx context.Context) error {
	s.cleared.Add(1)
	return nil
}

func pageOf(items []model.Notification, unread, total int) *api.NotificationPage {
	return &api.NotificationPage{Notifications: items, UnreadCount: unread, Total: total}
}

func newTestSync(napi NotificationAPI) *Synchronizer {
	return NewSynchronizer(napi, nil, zerolog.Nop(), 20)
}

func TestFetchAppliesAuthoritativePage(t *testing.T) {
	napi := &stubNotificationAPI{
		notifications: func(ctx context.Context, q api.NotificationQuery) (*api.NotificationPage, error) {
			if q.Page != 1 || q.Limit != 20 {
				t.Errorf("query = %+v, want page 1, limit 20", q)
			}
			return pageOf([]model.Notification{notif("a", false)}, 1, 1), nil
		},
	}
	s := newTestSync(napi)

	msg := s.Fetch()().(FetchedMsg)
	if !s.Apply(msg) {
		t.Fatal("fresh fetch discarded")
	}
	if len(s.Feed().Items) != 1 || s.Feed().UnreadCount != 1 {
		t.Errorf("feed = %+v", s.Feed())
	}
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	var calls atomic.Int32
	napi := &stubNotificationAPI{
		notifications: func(ctx context.Context, q api.NotificationQuery) (*api.NotificationPage, error) {
			n := calls.Add(1)
			if n == 1 {
				// The slow first fetch: its result arrives after a
				// newer fetch was issued.
				return pageOf([]model.Notification{notif("stale", false)}, 99, 99), nil
			}
			return pageOf([]model.Notification{notif("fresh", false)}, 1, 1), nil
		},
	}
	s := newTestSync(napi)

	firstCmd := s.Fetch()
	secondCmd := s.Fetch()

	first := firstCmd().(FetchedMsg)
	second := secondCmd().(FetchedMsg)

	if !s.Apply(second) {
		t.Fatal("latest fetch discarded")
	}
	if s.Apply(first) {
		t.Fatal("stale fetch applied over a newer one")
	}
	if s.Feed().Items[0].ID != "fresh" || s.Feed().UnreadCount != 1 {
		t.Errorf("feed corrupted by stale result: %+v", s.Feed())
	}
}

func TestSetFilterResetsPageAndRefetches(t *testing.T) {
	var lastQuery atomic.Value
	napi := &stubNotificationAPI{
		notifications: func(ctx context.Context, q api.NotificationQuery) (*api.NotificationPage, error) {
			lastQuery.Store(q)
			return pageOf(nil, 0, 0), nil
		},
	}
	s := newTestSync(napi)
	s.Feed().Page = 3

	msg := s.SetFilter(Filter{Type: model.NotificationRefundApproved})().(FetchedMsg)
	s.Apply(msg)

	q := lastQuery.Load().(api.NotificationQuery)
	if q.Page != 1 {
		t.Errorf("page = %d, want reset to 1", q.Page)
	}
	if q.Type != model.NotificationRefundApproved {
		t.Errorf("type = %q, want filter applied", q.Type)
	}
}

func TestSetSortResetsPage(t *testing.T) {
	napi := &stubNotificationAPI{
		notifications: func(ctx context.Context, q api.NotificationQuery) (*api.NotificationPage, error) {
			return pageOf(nil, 0, 0), nil
		},
	}
	s := newTestSync(napi)
	s.Feed().Page = 2

	s.SetSort(Sort{Field: SortByType, Order: OrderDesc})
	if s.Feed().Page != 1 {
		t.Errorf("page = %d, want 1", s.Feed().Page)
	}
	if s.Feed().Sort.Field != SortByType {
		t.Errorf("sort = %+v", s.Feed().Sort)
	}
}

func TestCloseInvalidatesInFlightFetches(t *testing.T) {
	napi := &stubNotificationAPI{
		notifications: func(ctx context.Context, q api.NotificationQuery) (*api.NotificationPage, error) {
			return pageOf([]model.Notification{notif("late", false)}, 1, 1), nil
		},
	}
	s := newTestSync(napi)

	cmd := s.Fetch()
	s.Close()

	if s.Apply(cmd().(FetchedMsg)) {
		t.Error("fetch applied after Close")
	}
	if len(s.Feed().Items) != 0 {
		t.Errorf("feed mutated after Close: %+v", s.Feed().Items)
	}
}

func TestFireAndForgetCommandsHitTheAPI(t *testing.T) {
	napi := &stubNotificationAPI{
		notifications: func(ctx context.Context, q api.NotificationQuery) (*api.NotificationPage, error) {
			return pageOf(nil, 0, 0), nil
		},
	}
	s := newTestSync(napi)

	s.MarkReadCmd([]string{"a", "b"})()
	s.DeleteCmd("a")()
	s.ClearCmd()()

	if got := napi.marked.Load(); got != 2 {
		t.Errorf("marked = %d, want 2", got)
	}
	if got := napi.deleted.Load(); got != 1 {
		t.Errorf("deleted = %d, want 1", got)
	}
	if got := napi.cleared.Load(); got != 1 {
		t.Errorf("cleared = %d, want 1", got)
	}
}

func TestPushReconnectBackoffDoublesToCap(t *testing.T) {
	s := newTestSync(&stubNotificationAPI{})

	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for i, w := range want {
		s.mu.Lock()
		got := s.nextBackoffLocked()
		s.mu.Unlock()
		if got != w {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, got, w)
		}
	}
}

func TestPushReconnectStopsAfterClose(t *testing.T) {
	s := newTestSync(&stubNotificationAPI{})

	if cmd := s.Reconnect(); cmd == nil {
		t.Fatal("no reconnect scheduled while open")
	}
	s.Close()
	if cmd := s.Reconnect(); cmd != nil {
		t.Error("reconnect scheduled after Close")
	}
}

func TestConnectResetsBackoff(t *testing.T) {
	dial := func(ctx context.Context) (*Channel, error) {
		return &Channel{}, nil
	}
	s := NewSynchronizer(&stubNotificationAPI{}, dial, zerolog.Nop(), 20)
	s.mu.Lock()
	s.retries = 4
	s.mu.Unlock()

	if _, ok := s.Connect()().(PushConnectedMsg); !ok {
		t.Fatal("connect with a working dialer did not succeed")
	}
	s.mu.Lock()
	got := s.retries
	s.mu.Unlock()
	if got != 0 {
		t.Errorf("retries = %d after successful connect, want 0", got)
	}
}
