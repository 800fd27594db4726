package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/campuspay/student-portal/internal/model"
)

// NotificationQuery is the paginated, filtered, sorted read request.
type NotificationQuery struct {
	Page      int
	Limit     int
	Type      string
	Status    string
	SortBy    string
	SortOrder string
}

// NotificationPage is the authoritative read result. UnreadCount and Total
// are global collection counters, not per-page.
type NotificationPage struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
	Total         int                  `json:"total"`
}

// Notifications fetches one page of the notification history.
func (c *Client) Notifications(ctx context.Context, q NotificationQuery) (*NotificationPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(q.Page))
	query.Set("limit", strconv.Itoa(q.Limit))
	if q.Type != "" {
		query.Set("type", q.Type)
	}
	if q.Status != "" {
		query.Set("status", q.Status)
	}
	if q.SortBy != "" {
		query.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		query.Set("sortOrder", q.SortOrder)
	}

	var out NotificationPage
	if err := c.get(ctx, "/students/notifications", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkNotificationsRead flags the given notifications as read.
func (c *Client) MarkNotificationsRead(ctx context.Context, ids []string) error {
	body := map[string][]string{"notificationIds": ids}
	return c.post(ctx, "/students/notifications/mark-read", body, nil)
}

// DeleteNotification removes a single notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.delete(ctx, "/students/notifications/"+url.PathEscape(id))
}

// ClearNotifications removes every notification for the student.
func (c *Client) ClearNotifications(ctx context.Context) error {
	return c.delete(ctx, "/students/notifications")
}
