package domain

import "time"

// NotificationType identifies the event a notification reports.
type NotificationType string

const (
	// NotificationInvitation asks a specific recipient for a decision.
	// It is the only action-required class.
	NotificationInvitation     NotificationType = "invitation"
	NotificationAcceptance     NotificationType = "acceptance"
	NotificationRejection      NotificationType = "rejection"
	NotificationActivated      NotificationType = "activated"
	NotificationBacklinePosted NotificationType = "backline_posted"
)

// ActionRequired reports whether this notification class represents a
// pending decision awaiting the recipient.
func (t NotificationType) ActionRequired() bool {
	return t == NotificationInvitation
}

// Notification is one materialized per-recipient record. Recipient is
// always a canonical account, never a persona reference.
type Notification struct {
	ID             string           `json:"id"`
	Type           NotificationType `json:"type"`
	Sender         *string          `json:"sender,omitempty"`
	Recipient      string           `json:"recipient"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	EntityID       string           `json:"entityID,omitempty"`
	Payload        map[string]any   `json:"payload,omitempty"`
	DedupeKey      string           `json:"-"`
	IsRead         bool             `json:"isRead"`
	ActionRequired bool             `json:"actionRequired"`
	ExpiresAt      *time.Time       `json:"expiresAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}
