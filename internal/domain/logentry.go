package domain

import (
	"fmt"
	"time"
)

// LogEntry line of the activity log panel.
type LogEntry struct {
	Time    time.Time `json:"ts"`
	Message string    `json:"message"`
}

// String returns the panel representation, e.g. "[15:04:05] message".
func (e LogEntry) String() string {
	return fmt.Sprintf("[%s] %s", e.Time.Format("15:04:05"), e.Message)
}
