package model

import (
	"encoding/json"
	"time"
)

// NotificationType classifies what a notification is about.
type NotificationType string

const (
	NotificationIncident   NotificationType = "incident"
	NotificationFuelReport NotificationType = "fuel_report"
	NotificationOther      NotificationType = "other"
)

// normalizeNotificationType folds unknown server types into NotificationOther.
func normalizeNotificationType(t string) NotificationType {
	switch NotificationType(t) {
	case NotificationIncident, NotificationFuelReport:
		return NotificationType(t)
	default:
		return NotificationOther
	}
}

// Notification represents an alert surfaced to the operator in the inbox.
type Notification struct {
	// ID is the opaque server identifier.
	ID ID `json:"id"`

	// Type is incident, fuel_report or other.
	Type NotificationType `json:"type"`

	// Title is the short headline.
	Title string `json:"title"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// IsRead indicates whether the notification has been marked read.
	IsRead bool `json:"is_read"`

	// ReadAt is when the notification was marked read. Nil while unread.
	ReadAt *time.Time `json:"read_at"`

	// CreatedAt is when the server generated the notification.
	CreatedAt time.Time `json:"created_at"`

	// UserID references the user whose action produced the notification.
	UserID *ID `json:"user_id,omitempty"`
}

// Normalize enforces that an unread notification carries no read time.
func (n *Notification) Normalize() {
	if !n.IsRead {
		n.ReadAt = nil
	}
	if n.Type == "" {
		n.Type = NotificationOther
	}
}

// UnmarshalJSON decodes the backend representation, tolerating numeric ids,
// 0/1 read flags and the different timestamp layouts it emits.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID        ID              `json:"id"`
		Type      string          `json:"type"`
		Title     string          `json:"title"`
		Message   string          `json:"message"`
		IsRead    json.RawMessage `json:"is_read"`
		ReadAt    *string         `json:"read_at"`
		CreatedAt string          `json:"created_at"`
		UserID    *ID             `json:"user_id"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*n = Notification{
		ID:      wire.ID,
		Type:    normalizeNotificationType(wire.Type),
		Title:   wire.Title,
		Message: wire.Message,
		IsRead:  parseFlag(wire.IsRead),
		UserID:  wire.UserID,
	}
	if t, ok := ParseTimestamp(wire.CreatedAt); ok {
		n.CreatedAt = t
	}
	if wire.ReadAt != nil {
		if t, ok := ParseTimestamp(*wire.ReadAt); ok {
			n.ReadAt = &t
		}
	}
	n.Normalize()
	return nil
}
