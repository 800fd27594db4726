package model

import "time"

// Notification types enumerated by the backend.
const (
	NotificationPaymentSuccess    = "payment_success"
	NotificationPaymentFailure    = "payment_failure"
	NotificationRefundApproved    = "refund_approved"
	NotificationRefundRejected    = "refund_rejected"
	NotificationFeeAssigned       = "fee_assigned"
	NotificationDashboardAccessed = "dashboard_accessed"
)

// Notification delivery statuses enumerated by the backend.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

// Notification is an alert surfaced to the student. Identity is ID:
// the same notification may arrive over the push channel and again in a
// paginated read, and must collapse to one entry.
type Notification struct {
	// ID is the unique backend identifier.
	ID string `json:"_id"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Type is one of the backend-defined notification types.
	Type string `json:"type"`

	// Status is the backend delivery status.
	Status string `json:"status"`

	// Read indicates whether the student has seen this notification.
	Read bool `json:"read"`

	// CreatedAt is when the notification was generated.
	CreatedAt time.Time `json:"createdAt"`
}
