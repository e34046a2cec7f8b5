package domain

import "time"

// User represents a registered account. The credential hash is opaque to
// everything except the auth package.
type User struct {
	ID             string    `json:"id"`
	Handle         string    `json:"handle"`
	CredentialHash string    `json:"-"`
	TeamID         string    `json:"team_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Team groups users for team-scoped leaderboard views. MemberCount is an
// aggregate maintained atomically by the team registry.
type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MemberCount int64     `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}
