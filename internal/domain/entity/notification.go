package entity

import "time"

// Notification categories.
const (
	NotificationCategoryHub     = "HUB"
	NotificationCategoryKsef    = "KSEF"
	NotificationCategoryInvoice = "INVOICE"
)

// Notification levels.
const (
	NotificationLevelInfo    = "INFO"
	NotificationLevelSuccess = "SUCCESS"
	NotificationLevelWarning = "WARNING"
	NotificationLevelError   = "ERROR"
)

// SystemNotification is a human-readable status event for the hub's
// notification feed.
type SystemNotification struct {
	ID        string
	Category  string
	Level     string
	Title     string
	Message   string
	Details   string // optional JSON payload
	IsRead    bool
	CreatedAt time.Time
}
