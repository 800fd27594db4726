package api

import (
	"context"

	"github.com/campuspay/student-portal/internal/model"
)

// InitializedPayment is the gateway handoff returned by payment
// initialization. PaymentURL is the external gateway page the student
// completes the payment on.
type InitializedPayment struct {
	Message    string        `json:"message"`
	PaymentURL string        `json:"paymentUrl"`
	Payment    model.Payment `json:"payment"`
}

type paymentsResponse struct {
	Payments []model.Payment `json:"payments"`
}

type refundsResponse struct {
	Refunds []model.Refund `json:"refunds"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// InitializePayment starts a payment for a fee and returns the gateway URL.
func (c *Client) InitializePayment(ctx context.Context, feeID string, amount float64) (*InitializedPayment, error) {
	body := map[string]interface{}{"feeId": feeID, "amount": amount}

	var out InitializedPayment
	if err := c.post(ctx, "/payment/initialize", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Payments fetches the student's payment history.
func (c *Client) Payments(ctx context.Context) ([]model.Payment, error) {
	var out paymentsResponse
	if err := c.get(ctx, "/payment/get-payments", nil, &out); err != nil {
		return nil, err
	}
	return out.Payments, nil
}

// RequestRefund submits a refund request against a payment and returns the
// backend acknowledgement message.
func (c *Client) RequestRefund(ctx context.Context, paymentID string, amount float64, reason string) (string, error) {
	body := map[string]interface{}{
		"paymentId": paymentID,
		"amount":    amount,
		"reason":    reason,
	}

	var out messageResponse
	if err := c.post(ctx, "/refund/request", body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Refunds fetches the student's refund request history.
func (c *Client) Refunds(ctx context.Context) ([]model.Refund, error) {
	var out refundsResponse
	if err := c.get(ctx, "/students/get-refunds", nil, &out); err != nil {
		return nil, err
	}
	return out.Refunds, nil
}
