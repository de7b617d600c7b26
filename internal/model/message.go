package model

import "time"

// Message is a one-line note delivered to a user's inbox. SenderID is
// nil for system notifications (exchange results).
type Message struct {
	ID         int64     `json:"id"`
	SenderID   *int64    `json:"sender_id,omitempty"`
	ReceiverID int64     `json:"receiver_id"`
	Content    string    `json:"content"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"created_at"`

	// Joined field (not always populated).
	SenderName string `json:"sender_name,omitempty"`
}
