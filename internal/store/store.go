// Package store defines the persistence contracts for users, teams and
// score records, together with an in-memory driver. The PostgreSQL driver
// lives in internal/postgres.
package store

import (
	"context"

	"github.com/arena-leaderboard/internal/domain"
)

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts a new user. Fails with domain.ErrHandleTaken when
	// the handle is already registered; no record is created in that case.
	CreateUser(ctx context.Context, u domain.User) error

	// GetUser returns a user by id, or domain.ErrUserNotFound.
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// GetUserByHandle returns a user by handle, or domain.ErrUserNotFound.
	GetUserByHandle(ctx context.Context, handle string) (*domain.User, error)

	// UsersByID returns the users for the given ids. Unknown ids are
	// silently absent from the result.
	UsersByID(ctx context.Context, ids []string) (map[string]domain.User, error)
}

// TeamStore persists teams and team membership.
type TeamStore interface {
	// CreateTeam inserts a new team, or fails with domain.ErrTeamExists.
	CreateTeam(ctx context.Context, t domain.Team) error

	// GetTeam returns a team by id, or domain.ErrTeamNotFound.
	GetTeam(ctx context.Context, id string) (*domain.Team, error)

	// ListTeams returns all teams.
	ListTeams(ctx context.Context) ([]domain.Team, error)

	// ReassignUser atomically moves a user to a team: the previous team's
	// member count decrements and the new team's increments, with no
	// intermediate state observable. Fails with domain.ErrUserNotFound or
	// domain.ErrTeamNotFound.
	ReassignUser(ctx context.Context, userID, teamID string) error
}

// ScoreStore persists score records with versioned compare-and-swap
// semantics. The ledger owns the retry protocol; the store only applies a
// single swap atomically.
type ScoreStore interface {
	// GetScore returns the user's score record, or (nil, nil) when the user
	// has never had a score accepted.
	GetScore(ctx context.Context, userID string) (*domain.ScoreRecord, error)

	// SwapScore applies rec if the stored version equals rec.Version-1.
	// rec.Version == 1 inserts a fresh record and fails if one exists.
	// A version mismatch fails with domain.ErrScoreConflict.
	SwapScore(ctx context.Context, rec domain.ScoreRecord) error

	// AllScores returns every score record, in no particular order.
	AllScores(ctx context.Context) ([]domain.ScoreRecord, error)
}

// Store is the full persistence surface used by the service layer.
type Store interface {
	UserStore
	TeamStore
	ScoreStore
}
