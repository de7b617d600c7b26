package model

import "time"

// Item represents a single stamp in a collector's catalog. Ownership is
// per-item: owner_id changes exactly when an exchange naming this item
// is accepted.
type Item struct {
	ID        int64      `json:"id"`
	OwnerID   int64      `json:"owner_id"`
	Name      string     `json:"name"`
	Year      int        `json:"year,omitempty"`
	Public    bool       `json:"public"`
	ImageMime string     `json:"image_mime,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// Joined fields (not always populated).
	OwnerName string `json:"owner_name,omitempty"`
}
