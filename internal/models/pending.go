package models

import "time"

// PendingNotification is a scheduled local notification awaiting delivery.
type PendingNotification struct {
	Identifier string    `json:"identifier"`
	FireAt     time.Time `json:"fire_at"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
