package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/campuspay/student-portal/internal/model"
)

func TestNotificationsCSV(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	notifications := []model.Notification{
		{
			Message:   "Payment of GH₵100 received",
			Type:      model.NotificationPaymentSuccess,
			Status:    model.NotificationStatusSent,
			Read:      true,
			CreatedAt: created,
		},
		{
			Message:   "Tuition fee assigned, due soon",
			Type:      model.NotificationFeeAssigned,
			Status:    model.NotificationStatusPending,
			Read:      false,
			CreatedAt: created.AddDate(0, 0, 1),
		},
	}

	var buf bytes.Buffer
	if err := NotificationsCSV(&buf, notifications); err != nil {
		t.Fatalf("NotificationsCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(records))
	}

	header := records[0]
	want := []string{"Message", "Type", "Status", "Date", "Read"}
	for i, col := range want {
		if header[i] != col {
			t.Errorf("header[%d] = %q, want %q", i, header[i], col)
		}
	}

	if records[1][0] != "Payment of GH₵100 received" || records[1][4] != "Yes" {
		t.Errorf("row 1 = %v", records[1])
	}
	if records[2][3] != "2026-03-15" || records[2][4] != "No" {
		t.Errorf("row 2 = %v", records[2])
	}
}

func TestNotificationsCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NotificationsCSV(&buf, nil); err != nil {
		t.Fatalf("NotificationsCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("rows = %d, want header only", len(records))
	}
}
