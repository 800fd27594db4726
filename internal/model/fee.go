package model

import (
	"fmt"
	"time"
)

// FeeStatus is the backend-defined lifecycle status of a fee assignment.
type FeeStatus string

const (
	FeeStatusAssigned      FeeStatus = "assigned"
	FeeStatusPartiallyPaid FeeStatus = "partially_paid"
	FeeStatusFullyPaid     FeeStatus = "fully_paid"
	FeeStatusOverdue       FeeStatus = "overdue"
)

// Fee describes the fee definition a student assignment points at.
type Fee struct {
	ID                  string    `json:"_id"`
	FeeType             string    `json:"feeType"`
	Amount              float64   `json:"amount"`
	DueDate             time.Time `json:"dueDate"`
	AcademicSession     string    `json:"academicSession"`
	AllowPartialPayment bool      `json:"allowPartialPayment"`
}

// FeeAssignment is a student's obligation to pay a specific fee. It is
// mutated only by re-fetching from the backend, never optimistically.
type FeeAssignment struct {
	ID         string    `json:"_id"`
	Fee        Fee       `json:"feeId"`
	Status     FeeStatus `json:"status"`
	AmountDue  float64   `json:"amountDue"`
	AmountPaid float64   `json:"amountPaid"`
}

// Payable reports whether the assignment still accepts a payment.
func (a FeeAssignment) Payable() bool {
	return a.Status == FeeStatusAssigned || a.Status == FeeStatusPartiallyPaid
}

// DueIn renders the distance between now and the fee's due date as a
// human-readable label ("3 days more", "Due today", "Overdue by 2 days").
func DueIn(dueDate time.Time, now time.Time) string {
	due := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	days := int(due.Sub(today).Hours() / 24)
	switch {
	case days > 1:
		return fmt.Sprintf("%d days more", days)
	case days == 1:
		return "1 day more"
	case days == 0:
		return "Due today"
	case days == -1:
		return "Overdue by 1 day"
	default:
		return fmt.Sprintf("Overdue by %d days", -days)
	}
}
