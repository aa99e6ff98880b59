package model

import (
	"time"
)

// NotificationType enumerates the user/admin events the dispatcher
// delivers.
type NotificationType string

const (
	EventNewAccount NotificationType = "NEW_ACCOUNT"
	EventTopUp      NotificationType = "TOP_UP"
	EventJobDone    NotificationType = "JOB_DONE"
	EventAdminAuth  NotificationType = "ADMIN_AUTH"
)

// NotificationEvent is an append-only record of a pending delivery.
// Events are written inside the transaction that produced them and
// dispatched after commit; Processed flips when delivery succeeds or
// is permanently given up on.
type NotificationEvent struct {
	ID        int64            `json:"-"`
	EventID   string           `json:"event_id"`
	Type      NotificationType `json:"type"`
	Recipient string           `json:"recipient"`
	Headline  string           `json:"headline"`
	Text      string           `json:"text"`
	Processed bool             `json:"processed"`
	CreatedAt time.Time        `json:"created_at"`
}
