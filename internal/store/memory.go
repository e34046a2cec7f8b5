package store

import (
	"context"
	"sync"

	"github.com/arena-leaderboard/internal/domain"
)

// Memory is an in-process Store implementation. It backs the memory storage
// driver and the test suites.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]domain.User // by id
	byHandle map[string]string      // handle -> id
	teams    map[string]domain.Team
	scores   map[string]domain.ScoreRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]domain.User),
		byHandle: make(map[string]string),
		teams:    make(map[string]domain.Team),
		scores:   make(map[string]domain.ScoreRecord),
	}
}

// CreateUser inserts a new user or fails with domain.ErrHandleTaken.
func (m *Memory) CreateUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byHandle[u.Handle]; exists {
		return domain.ErrHandleTaken
	}
	m.users[u.ID] = u
	m.byHandle[u.Handle] = u.ID
	return nil
}

// GetUser returns a user by id.
func (m *Memory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

// GetUserByHandle returns a user by handle.
func (m *Memory) GetUserByHandle(ctx context.Context, handle string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byHandle[handle]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := m.users[id]
	return &u, nil
}

// UsersByID returns the users for the given ids.
func (m *Memory) UsersByID(ctx context.Context, ids []string) (map[string]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// CreateTeam inserts a new team.
func (m *Memory) CreateTeam(ctx context.Context, t domain.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.teams[t.ID]; exists {
		return domain.ErrTeamExists
	}
	m.teams[t.ID] = t
	return nil
}

// GetTeam returns a team by id.
func (m *Memory) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.teams[id]
	if !ok {
		return nil, domain.ErrTeamNotFound
	}
	return &t, nil
}

// ListTeams returns all teams.
func (m *Memory) ListTeams(ctx context.Context) ([]domain.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Team, 0, len(m.teams))
	for _, t := range m.teams {
		out = append(out, t)
	}
	return out, nil
}

// ReassignUser atomically moves a user between teams. Both membership count
// updates happen under the same lock, so no torn state is observable.
func (m *Memory) ReassignUser(ctx context.Context, userID, teamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	next, ok := m.teams[teamID]
	if !ok {
		return domain.ErrTeamNotFound
	}
	if u.TeamID == teamID {
		return nil
	}

	if prev, ok := m.teams[u.TeamID]; ok {
		prev.MemberCount--
		m.teams[prev.ID] = prev
	}
	next.MemberCount++
	m.teams[next.ID] = next

	u.TeamID = teamID
	m.users[userID] = u
	return nil
}

// GetScore returns the user's score record, or nil when unranked.
func (m *Memory) GetScore(ctx context.Context, userID string) (*domain.ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.scores[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// SwapScore applies rec if the stored version equals rec.Version-1.
func (m *Memory) SwapScore(ctx context.Context, rec domain.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.scores[rec.UserID]
	if rec.Version == 1 {
		if exists {
			return domain.ErrScoreConflict
		}
		m.scores[rec.UserID] = rec
		return nil
	}
	if !exists || current.Version != rec.Version-1 {
		return domain.ErrScoreConflict
	}
	m.scores[rec.UserID] = rec
	return nil
}

// AllScores returns every score record.
func (m *Memory) AllScores(ctx context.Context) ([]domain.ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ScoreRecord, 0, len(m.scores))
	for _, rec := range m.scores {
		out = append(out, rec)
	}
	return out, nil
}
