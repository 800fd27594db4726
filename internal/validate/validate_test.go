package validate

import (
	"strings"
	"testing"
)

func TestLoginInput(t *testing.T) {
	cases := []struct {
		name  string
		input LoginInput
		ok    bool
	}{
		{"valid", LoginInput{Email: "jane@university.edu", Password: "password123"}, true},
		{"empty email", LoginInput{Password: "password123"}, false},
		{"not an email", LoginInput{Email: "not-an-email", Password: "password123"}, false},
		{"email too long", LoginInput{Email: strings.Repeat("a", 250) + "@b.edu", Password: "password123"}, false},
		{"password too short", LoginInput{Email: "jane@university.edu", Password: "short"}, false},
		{"password too long", LoginInput{Email: "jane@university.edu", Password: strings.Repeat("x", 129)}, false},
		{"password at minimum", LoginInput{Email: "jane@university.edu", Password: "LongEnuf"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Struct(tc.input)
			if tc.ok && err != nil {
				t.Errorf("valid input rejected: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("invalid input accepted")
			}
		})
	}
}

func TestRefundInput(t *testing.T) {
	valid := RefundInput{PaymentID: "p1", Amount: 50, Reason: "duplicate charge"}
	if err := Struct(valid); err != nil {
		t.Errorf("valid refund rejected: %v", err)
	}

	for name, input := range map[string]RefundInput{
		"missing payment": {Amount: 50, Reason: "duplicate charge"},
		"zero amount":     {PaymentID: "p1", Reason: "duplicate charge"},
		"negative amount": {PaymentID: "p1", Amount: -5, Reason: "duplicate charge"},
		"short reason":    {PaymentID: "p1", Amount: 50, Reason: "no"},
	} {
		t.Run(name, func(t *testing.T) {
			if err := Struct(input); err == nil {
				t.Error("invalid refund accepted")
			}
		})
	}
}

func TestFieldMessage(t *testing.T) {
	err := Struct(LoginInput{Email: "bad", Password: "password123"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if msg := FieldMessage(err); !strings.Contains(msg, "email") {
		t.Errorf("message = %q, want email guidance", msg)
	}
}
