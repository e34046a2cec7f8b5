package domain

import "time"

// ScoreRecord holds a user's current high score. Score only ever increases;
// Version guards concurrent updates (compare-and-swap).
type ScoreRecord struct {
	UserID    string    `json:"user_id"`
	Score     int64     `json:"score"`
	Version   int64     `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateResult is the outcome of a score submission. A submission below the
// stored high score is Ignored, not an error.
type UpdateResult struct {
	Accepted bool  `json:"accepted"`
	Score    int64 `json:"score"`
}

// LeaderboardEntry represents a single ranked entry, derived from the score
// ledger. It is never persisted.
type LeaderboardEntry struct {
	Rank   int64  `json:"rank"`
	UserID string `json:"user_id"`
	Handle string `json:"handle,omitempty"`
	TeamID string `json:"team_id,omitempty"`
	Score  int64  `json:"score"`
}

// ScoreSubmission is a score submission arriving over Kafka.
type ScoreSubmission struct {
	UserID string `json:"user_id"`
	Score  int64  `json:"score"`
}

// Less reports whether a ranks strictly better than b: higher score first,
// then earlier update, then lower user id for determinism.
func Less(a, b ScoreRecord) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.UserID < b.UserID
}
