package model

import "time"

// Exchange represents one user offering one of their stamps for another
// user's stamp. An exchange is created unanswered, is answered exactly
// once by the receiver, and is never deleted afterwards (audit trail).
type Exchange struct {
	ID             int64      `json:"id"`
	SenderID       int64      `json:"sender_id"`
	ReceiverID     int64      `json:"receiver_id"`
	SenderItemID   int64      `json:"sender_item_id"`
	ReceiverItemID int64      `json:"receiver_item_id"`
	Answered       bool       `json:"answered"`
	Accepted       bool       `json:"accepted"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// ItemSnapshot is the current state of an item as shown alongside a
// pending exchange.
type ItemSnapshot struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Year      int    `json:"year,omitempty"`
	ImageMime string `json:"image_mime,omitempty"`
}

// PendingExchange is an unanswered exchange enriched with the sender's
// display name and snapshots of both items, for the receiver's inbox.
type PendingExchange struct {
	Exchange
	SenderName   string       `json:"sender_name"`
	SenderItem   ItemSnapshot `json:"sender_item"`
	ReceiverItem ItemSnapshot `json:"receiver_item"`
}
