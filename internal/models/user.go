package models

import "time"

// User is a registered account, reachable by email or phone.
type User struct {
	ID             int       `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email,omitempty"`
	PhoneSuffix    string    `db:"phone_suffix" json:"phone_suffix,omitempty"`
	PhoneNumber    string    `db:"phone_number" json:"phone_number,omitempty"`
	ProfilePicture string    `db:"profile_picture" json:"profile_picture,omitempty"`
	About          string    `db:"about" json:"about,omitempty"`
	OTPHash        string    `db:"otp_hash" json:"-"`
	OTPExpiry      time.Time `db:"otp_expiry" json:"-"`
	IsVerified     bool      `db:"is_verified" json:"is_verified"`
	IsOnline       bool      `db:"is_online" json:"is_online"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Info returns the display projection embedded in messages, statuses and
// call payloads.
func (u User) Info() UserInfo {
	return UserInfo{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.ProfilePicture,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}

// UserInfo carries the public display fields of a user.
type UserInfo struct {
	ID       int       `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}
