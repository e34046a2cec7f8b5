// Package team implements the team registry. Team creation is explicit;
// assigning a user to an unknown team fails with domain.ErrTeamNotFound.
package team

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arena-leaderboard/internal/domain"
	"github.com/arena-leaderboard/internal/store"
)

// Registry manages teams and membership on top of the storage layer.
type Registry struct {
	store  store.Store
	logger *slog.Logger
}

// NewRegistry creates a team registry.
func NewRegistry(st store.Store, logger *slog.Logger) *Registry {
	return &Registry{store: st, logger: logger}
}

// Create registers a new team with a generated id.
func (r *Registry) Create(ctx context.Context, name string) (*domain.Team, error) {
	if name == "" {
		return nil, domain.ErrInvalidRequest
	}

	t := domain.Team{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.CreateTeam(ctx, t); err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}

	r.logger.Info("team created", "team_id", t.ID, "name", t.Name)
	return &t, nil
}

// Get returns a team by id.
func (r *Registry) Get(ctx context.Context, teamID string) (*domain.Team, error) {
	return r.store.GetTeam(ctx, teamID)
}

// List returns all teams.
func (r *Registry) List(ctx context.Context) ([]domain.Team, error) {
	return r.store.ListTeams(ctx)
}

// TeamOf returns the user's team, or (nil, nil) when the user has none.
func (r *Registry) TeamOf(ctx context.Context, userID string) (*domain.Team, error) {
	u, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.TeamID == "" {
		return nil, nil
	}
	return r.store.GetTeam(ctx, u.TeamID)
}

// SetTeam atomically moves the user to the team. The storage driver
// guarantees both membership count updates land together.
func (r *Registry) SetTeam(ctx context.Context, userID, teamID string) error {
	if err := r.store.ReassignUser(ctx, userID, teamID); err != nil {
		return err
	}
	r.logger.Info("team updated", "user_id", userID, "team_id", teamID)
	return nil
}
