package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/campuspay/student-portal/internal/model"
)

func notif(id string, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Message:   "Payment received for " + id,
		Type:      model.NotificationPaymentSuccess,
		Status:    model.NotificationStatusPending,
		Read:      read,
		CreatedAt: time.Now(),
	}
}

func seededFeed(pageSize, items, unread, total int) *Feed {
	f := NewFeed(pageSize)
	var list []model.Notification
	for i := 0; i < items; i++ {
		list = append(list, notif(fmt.Sprintf("n-%d", i), i >= unread))
	}
	f.ApplyFetch(list, unread, total)
	return f
}

func TestApplyPushSplicesOnDefaultView(t *testing.T) {
	f := seededFeed(3, 3, 1, 10)

	spliced := f.ApplyPush(notif("fresh", false))
	if !spliced {
		t.Fatal("push not spliced into the default view")
	}
	if f.Items[0].ID != "fresh" {
		t.Errorf("new item not prepended, first = %s", f.Items[0].ID)
	}
	if len(f.Items) != 3 {
		t.Errorf("page not bounded: %d items", len(f.Items))
	}
	if f.Items[len(f.Items)-1].ID == "n-2" {
		t.Error("oldest visible item not evicted")
	}
	if f.UnreadCount != 2 {
		t.Errorf("unread = %d, want 2", f.UnreadCount)
	}
	if f.TotalCount != 11 {
		t.Errorf("total = %d, want 11", f.TotalCount)
	}
}

func TestApplyPushCountersOnlyOffDefaultView(t *testing.T) {
	cases := []struct {
		name  string
		tweak func(*Feed)
	}{
		{"page 2", func(f *Feed) { f.Page = 2 }},
		{"filtered", func(f *Feed) { f.Filter = Filter{Type: model.NotificationRefundApproved} }},
		{"sorted by type", func(f *Feed) { f.Sort = Sort{Field: SortByType, Order: OrderAsc} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := seededFeed(3, 3, 0, 10)
			tc.tweak(f)

			if f.ApplyPush(notif("fresh", false)) {
				t.Error("push spliced into a non-default view")
			}
			if len(f.Items) != 3 || f.Items[0].ID != "n-0" {
				t.Error("visible list mutated off the default view")
			}
			if f.UnreadCount != 1 {
				t.Errorf("unread = %d, want counter bumped to 1", f.UnreadCount)
			}
			if f.TotalCount != 11 {
				t.Errorf("total = %d, want 11", f.TotalCount)
			}
		})
	}
}

func TestApplyPushDeduplicatesByID(t *testing.T) {
	f := seededFeed(5, 3, 1, 3)

	if f.ApplyPush(notif("n-1", false)) {
		t.Error("duplicate push spliced")
	}
	if f.UnreadCount != 1 || f.TotalCount != 3 {
		t.Errorf("duplicate push moved counters: unread=%d total=%d", f.UnreadCount, f.TotalCount)
	}
}

func TestApplyPushReadItemLeavesUnreadAlone(t *testing.T) {
	f := seededFeed(5, 2, 1, 2)

	f.ApplyPush(notif("already-read", true))
	if f.UnreadCount != 1 {
		t.Errorf("unread = %d, want unchanged for read push", f.UnreadCount)
	}
	if f.TotalCount != 3 {
		t.Errorf("total = %d, want 3", f.TotalCount)
	}
}

func TestApplyFetchSupersedesPushResidue(t *testing.T) {
	f := seededFeed(3, 3, 1, 10)
	f.ApplyPush(notif("optimistic-1", false))
	f.ApplyPush(notif("optimistic-2", false))

	// The authoritative read happens to disagree with every optimistic
	// delta. It wins wholesale.
	auth := []model.Notification{notif("auth-1", false), notif("auth-2", true)}
	f.ApplyFetch(auth, 4, 7)

	if len(f.Items) != 2 || f.Items[0].ID != "auth-1" {
		t.Errorf("fetch did not replace visible list: %+v", f.Items)
	}
	if f.UnreadCount != 4 || f.TotalCount != 7 {
		t.Errorf("counters = (%d, %d), want authoritative (4, 7)", f.UnreadCount, f.TotalCount)
	}
}

func TestMarkRead(t *testing.T) {
	f := seededFeed(5, 4, 2, 4)

	flipped := f.MarkRead([]string{"n-0", "n-3", "missing"})
	if flipped != 1 {
		t.Errorf("flipped = %d, want 1 (n-3 was already read, missing is absent)", flipped)
	}
	if f.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1", f.UnreadCount)
	}
	if !f.Items[0].Read || f.Items[0].Status != model.NotificationStatusSent {
		t.Errorf("n-0 not flipped: %+v", f.Items[0])
	}
}

func TestMarkAllReadZeroesUnread(t *testing.T) {
	f := seededFeed(5, 4, 3, 4)

	if flipped := f.MarkAllRead(); flipped != 3 {
		t.Errorf("flipped = %d, want 3", flipped)
	}
	if f.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0", f.UnreadCount)
	}
	for _, n := range f.Items {
		if !n.Read {
			t.Errorf("%s still unread", n.ID)
		}
	}
	// Idempotent: nothing left to flip.
	if flipped := f.MarkAllRead(); flipped != 0 {
		t.Errorf("second MarkAllRead flipped %d", flipped)
	}
}

func TestUnreadCounterFloorsAtZero(t *testing.T) {
	f := NewFeed(5)
	f.ApplyFetch([]model.Notification{notif("a", false)}, 0, 1)

	// The backend undercounted; the optimistic flip must not go negative.
	f.MarkRead([]string{"a"})
	if f.UnreadCount != 0 {
		t.Errorf("unread = %d, want floored at 0", f.UnreadCount)
	}
}

func TestDelete(t *testing.T) {
	f := seededFeed(5, 3, 1, 5)

	if !f.Delete("n-0") {
		t.Fatal("delete of visible unread item failed")
	}
	if f.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0 after deleting the unread item", f.UnreadCount)
	}
	if f.TotalCount != 4 {
		t.Errorf("total = %d, want 4", f.TotalCount)
	}
	if f.Delete("n-0") {
		t.Error("second delete of the same ID succeeded")
	}
	if f.Delete("never-existed") {
		t.Error("delete of unknown ID succeeded")
	}
}

func TestClear(t *testing.T) {
	f := seededFeed(5, 3, 2, 9)
	f.Clear()
	if len(f.Items) != 0 || f.UnreadCount != 0 || f.TotalCount != 0 {
		t.Errorf("clear left residue: %+v", f)
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total, pageSize, want int
	}{
		{0, 20, 1},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{45, 20, 3},
	}
	for _, tc := range cases {
		f := NewFeed(tc.pageSize)
		f.TotalCount = tc.total
		if got := f.TotalPages(); got != tc.want {
			t.Errorf("TotalPages(total=%d, size=%d) = %d, want %d", tc.total, tc.pageSize, got, tc.want)
		}
	}
}
