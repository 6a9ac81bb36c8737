// Package model defines the data structures used throughout the application.
//
// Numeric IDs are internal primary keys. Challenges and conversations also
// carry a caller-visible text key (ChallengeID "CHAL_001", Identifier
// "CONV_001"); those are the only keys the API accepts for them.
package model

import "time"

// User is an account that can author posts.
//
// PasswordHash holds a bcrypt hash, never the plaintext. The `json:"-"` tag
// keeps it out of every API response.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsSupport    bool      `json:"is_support"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserWithPosts is a user together with every post they authored.
type UserWithPosts struct {
	User
	Posts []Post `json:"posts"`
}
