package model

import "time"

// Challenge is an aggregate: the challenge row plus the learning objectives,
// hints and tag memberships it owns. Deleting a challenge removes the owned
// rows; Category, Difficulty and Tag rows are shared and stay.
type Challenge struct {
	ID                 int64               `json:"id"`
	ChallengeID        string              `json:"challenge_id"` // CHAL_NNN
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	Points             int                 `json:"points"`
	CategoryID         int64               `json:"category_id"`
	DifficultyID       int64               `json:"difficulty_id"`
	Category           *Category           `json:"category,omitempty"`
	Difficulty         *Difficulty         `json:"difficulty,omitempty"`
	Tags               []Tag               `json:"tags"`
	LearningObjectives []LearningObjective `json:"learning_objectives"`
	Hints              []Hint              `json:"hints"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// LearningObjective belongs to exactly one challenge. ChallengeID here is the
// owning challenge's internal key.
type LearningObjective struct {
	ID          int64     `json:"id"`
	ChallengeID int64     `json:"challenge_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Hint belongs to exactly one challenge.
type Hint struct {
	ID          int64     `json:"id"`
	ChallengeID int64     `json:"challenge_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
