package notify

import (
	"github.com/campuspay/student-portal/internal/model"
)

// Sort fields and orders accepted by the backend.
const (
	SortByCreatedAt = "createdAt"
	SortByType      = "type"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Filter narrows the feed to one notification type and/or status. The
// enumerations are backend-defined, so filtering is never re-applied
// client-side: a filter change always triggers an authoritative fetch.
type Filter struct {
	Type   string
	Status string
}

// Sort orders the feed. The default is newest first.
type Sort struct {
	Field string
	Order string
}

// DefaultSort is the ordering new pushes are spliced under.
func DefaultSort() Sort {
	return Sort{Field: SortByCreatedAt, Order: OrderDesc}
}

// Feed is the merged notification view: one page of visible items plus
// the global unread and total counters. Push events are optimistic deltas;
// an authoritative fetch always supersedes them.
type Feed struct {
	Items       []model.Notification
	UnreadCount int
	TotalCount  int
	Page        int
	PageSize    int
	Filter      Filter
	Sort        Sort
}

// NewFeed creates an empty feed on page 1 with the default sort.
func NewFeed(pageSize int) *Feed {
	return &Feed{
		Page:     1,
		PageSize: pageSize,
		Sort:     DefaultSort(),
	}
}

// DefaultView reports whether the feed shows page 1 with no filter and the
// default sort: the only view a pushed notification may be spliced into.
func (f *Feed) DefaultView() bool {
	return f.Page == 1 &&
		f.Filter == (Filter{}) &&
		f.Sort == DefaultSort()
}

// ApplyPush merges one pushed notification. On the default view the item is
// prepended and the oldest visible item evicted to keep the page bounded;
// on any other page/filter/sort only the counters move, since the item may
// not belong to the visible slice. Returns whether the item was spliced in.
// A notification already visible is ignored entirely: identity is ID, and
// the same notification may arrive over both push and REST.
func (f *Feed) ApplyPush(n model.Notification) bool {
	for _, existing := range f.Items {
		if existing.ID == n.ID {
			return false
		}
	}

	f.TotalCount++
	if !n.Read {
		f.UnreadCount++
	}

	if !f.DefaultView() {
		return false
	}

	f.Items = append([]model.Notification{n}, f.Items...)
	if f.PageSize > 0 && len(f.Items) > f.PageSize {
		f.Items = f.Items[:f.PageSize]
	}
	return true
}

// ApplyFetch replaces the feed with an authoritative read: the visible list
// and both counters become exactly the response values, erasing any
// push-derived residue.
func (f *Feed) ApplyFetch(items []model.Notification, unread, total int) {
	f.Items = items
	f.UnreadCount = unread
	f.TotalCount = total
}

// MarkRead optimistically flips read on the matching visible items and
// returns how many were previously unread. The unread counter decrements by
// that number, floored at zero.
func (f *Feed) MarkRead(ids []string) int {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	flipped := 0
	for i := range f.Items {
		if !idSet[f.Items[i].ID] || f.Items[i].Read {
			continue
		}
		f.Items[i].Read = true
		f.Items[i].Status = model.NotificationStatusSent
		flipped++
	}

	f.UnreadCount -= flipped
	if f.UnreadCount < 0 {
		f.UnreadCount = 0
	}
	return flipped
}

// MarkAllRead flips read on every visible item.
func (f *Feed) MarkAllRead() int {
	return f.MarkRead(f.VisibleIDs())
}

// Delete removes one item from the visible list, decrementing the total
// counter and, when the item was unread, the unread counter. Returns
// whether an item was removed.
func (f *Feed) Delete(id string) bool {
	for i, n := range f.Items {
		if n.ID != id {
			continue
		}
		f.Items = append(f.Items[:i], f.Items[i+1:]...)
		f.TotalCount--
		if f.TotalCount < 0 {
			f.TotalCount = 0
		}
		if !n.Read {
			f.UnreadCount--
			if f.UnreadCount < 0 {
				f.UnreadCount = 0
			}
		}
		return true
	}
	return false
}

// Clear empties the feed after a clear-all.
func (f *Feed) Clear() {
	f.Items = nil
	f.UnreadCount = 0
	f.TotalCount = 0
}

// VisibleIDs returns the IDs of the currently visible items.
func (f *Feed) VisibleIDs() []string {
	ids := make([]string, len(f.Items))
	for i, n := range f.Items {
		ids[i] = n.ID
	}
	return ids
}

// TotalPages derives the page count from the global total.
func (f *Feed) TotalPages() int {
	if f.PageSize <= 0 || f.TotalCount <= 0 {
		return 1
	}
	pages := (f.TotalCount + f.PageSize - 1) / f.PageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}
