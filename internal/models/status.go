package models

import "time"

// Status is an ephemeral post visible to everyone for 24 hours. Expiry is
// enforced at read time; there is no background reaper.
type Status struct {
	ID          int       `db:"id" json:"id"`
	UserID      int       `db:"user_id" json:"user_id"`
	Content     string    `db:"content" json:"content"`
	ContentType string    `db:"content_type" json:"content_type"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	User    *UserInfo  `json:"user,omitempty"`
	Viewers []UserInfo `json:"viewers,omitempty"`
}

// Expired reports whether the status is logically dead at now.
func (s Status) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
