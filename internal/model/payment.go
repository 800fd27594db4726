package model

import "time"

// Payment is a completed or in-flight gateway payment record.
type Payment struct {
	ID              string    `json:"_id"`
	FeeID           string    `json:"feeId"`
	Amount          float64   `json:"amount"`
	PaymentProvider string    `json:"paymentProvider"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

// PendingPayment marks a payment that was initiated and handed off to the
// external gateway. It lives only in process memory: the gateway redirect
// leaves the application, and a fresh start simply has no flag to resume.
// At most one pending payment exists per session.
type PendingPayment struct {
	ID          string
	FeeID       string
	Amount      float64
	InitiatedAt time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the confirmation window has closed.
func (p PendingPayment) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Refund is a student-initiated refund request against a payment.
type Refund struct {
	ID         string    `json:"_id"`
	Payment    Payment   `json:"paymentId"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason"`
	FraudScore float64   `json:"fraudScore"`
	CreatedAt  time.Time `json:"createdAt"`
}
