package model

import "time"

// Conversation is a support thread about one challenge. It owns an ordered
// sequence of posts that is deleted with it.
type Conversation struct {
	ID          int64     `json:"id"`
	Identifier  string    `json:"identifier"` // CONV_NNN
	Topic       string    `json:"topic"`
	CategoryID  int64     `json:"category_id"`
	ChallengeID string    `json:"challenge_id"` // CHAL_NNN of the challenge discussed
	Posts       []Post    `json:"posts"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Post is one message in a conversation.
//
// PostID is scoped to the conversation: 1, 2, 3, ... in insertion order, so
// two conversations can each have a post with PostID 1. ID is the global
// row key.
type Post struct {
	ID             int64     `json:"id"`
	PostID         int       `json:"post_id"`
	ConversationID string    `json:"conversation_id"` // CONV_NNN
	UserID         int64     `json:"user_id"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	User           *User     `json:"user,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
