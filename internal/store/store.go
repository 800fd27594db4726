package store

import (
	"context"

	"github.com/campuspay/student-portal/internal/model"
)

// Store is the local read cache: the last authoritative payments and
// notifications snapshots, so the refund and notifications views can render
// a last-known state while offline or before a first fetch completes.
// The cache is a fallback only; it never feeds reconciliation, and an
// authoritative fetch always replaces it wholesale.
type Store interface {
	ReplacePayments(ctx context.Context, payments []model.Payment) error
	Payments(ctx context.Context) ([]model.Payment, error)

	ReplaceNotifications(ctx context.Context, notifications []model.Notification) error
	Notifications(ctx context.Context, limit int) ([]model.Notification, error)

	Close() error
}
