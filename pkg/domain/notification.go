package domain

// NotificationType is the severity of a user-facing notice.
type NotificationType string

const (
	NotifyError   NotificationType = "error"
	NotifyWarning NotificationType = "warning"
	NotifyInfo    NotificationType = "info"
)

// Notification is a user-facing notice emitted by the preparation flow.
type Notification struct {
	Type    NotificationType `json:"type"`
	Message string           `json:"message"`
}
