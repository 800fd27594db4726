package api

import (
	"context"
	"net/url"

	"github.com/campuspay/student-portal/internal/model"
)

// Dashboard is the aggregate payload behind the dashboard view.
type Dashboard struct {
	Student        *model.Student        `json:"student"`
	Payments       []model.Payment       `json:"payments"`
	Receipts       []model.Payment       `json:"receipts"`
	FeeAssignments []model.FeeAssignment `json:"feeAssignments"`
	Message        string                `json:"message"`
}

type dashboardResponse struct {
	Data Dashboard `json:"data"`
}

type feeAssignmentsResponse struct {
	FeeAssignments []model.FeeAssignment `json:"feeAssignments"`
}

// FeeFilter narrows the fee-assignment list. Zero value fetches everything.
type FeeFilter struct {
	ID      string
	FeeType string
	Status  string
}

// GetDashboard fetches the dashboard aggregate.
func (c *Client) GetDashboard(ctx context.Context) (*Dashboard, error) {
	var out dashboardResponse
	if err := c.get(ctx, "/students/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// FeeAssignments fetches the student's fee assignments, optionally filtered.
// Each successful fetch replaces the caller's snapshots wholesale; the
// client never merges partially.
func (c *Client) FeeAssignments(ctx context.Context, filter FeeFilter) ([]model.FeeAssignment, error) {
	query := url.Values{}
	if filter.ID != "" {
		query.Set("_id", filter.ID)
	}
	if filter.FeeType != "" {
		query.Set("feeType", filter.FeeType)
	}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}

	var out feeAssignmentsResponse
	if err := c.get(ctx, "/students/fee-assignments", query, &out); err != nil {
		return nil, err
	}
	return out.FeeAssignments, nil
}
