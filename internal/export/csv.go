package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/campuspay/student-portal/internal/model"
)

// NotificationsCSV writes the given notifications as CSV. The export is a
// read-only snapshot of the currently visible list: it is never paginated
// separately and carries no synchronization guarantees.
func NotificationsCSV(w io.Writer, notifications []model.Notification) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Message", "Type", "Status", "Date", "Read"}); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, n := range notifications {
		read := "No"
		if n.Read {
			read = "Yes"
		}
		record := []string{
			n.Message,
			n.Type,
			n.Status,
			n.CreatedAt.Format("2006-01-02"),
			read,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// NotificationsCSVFile writes the snapshot to a timestamped file in the
// user's home directory and returns its path.
func NotificationsCSVFile(notifications []model.Notification) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	path := filepath.Join(home, fmt.Sprintf(
		"notifications-%s.csv", time.Now().Format("20060102-150405"),
	))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	if err := NotificationsCSV(f, notifications); err != nil {
		return "", err
	}
	return path, nil
}
