// Package postgres implements the storage contracts on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arena-leaderboard/internal/config"
	"github.com/arena-leaderboard/internal/domain"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL-based data access. It implements
// store.Store.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS teams (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			member_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			handle VARCHAR(64) NOT NULL UNIQUE,
			credential_hash VARCHAR(255) NOT NULL,
			team_id VARCHAR(64) REFERENCES teams(id),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS score_records (
			user_id VARCHAR(64) PRIMARY KEY REFERENCES users(id),
			score BIGINT NOT NULL,
			version BIGINT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_team ON users(team_id)`,
		`CREATE INDEX IF NOT EXISTS idx_score_records_order ON score_records(score DESC, updated_at ASC, user_id ASC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateUser inserts a new user. A handle collision maps to
// domain.ErrHandleTaken and leaves no record behind.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	query := `
		INSERT INTO users (id, handle, credential_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, u.ID, u.Handle, u.CredentialHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrHandleTaken
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, handle, credential_hash, COALESCE(team_id, ''), created_at
		FROM users
		WHERE id = $1
	`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Handle, &u.CredentialHash, &u.TeamID, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// GetUserByHandle retrieves a user by handle
func (r *Repository) GetUserByHandle(ctx context.Context, handle string) (*domain.User, error) {
	query := `
		SELECT id, handle, credential_hash, COALESCE(team_id, ''), created_at
		FROM users
		WHERE handle = $1
	`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, handle).Scan(
		&u.ID, &u.Handle, &u.CredentialHash, &u.TeamID, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user by handle: %w", err)
	}
	return &u, nil
}

// UsersByID retrieves the users for the given ids
func (r *Repository) UsersByID(ctx context.Context, ids []string) (map[string]domain.User, error) {
	if len(ids) == 0 {
		return map[string]domain.User{}, nil
	}

	query := `
		SELECT id, handle, credential_hash, COALESCE(team_id, ''), created_at
		FROM users
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("getting users: %w", err)
	}
	defer rows.Close()

	users := make(map[string]domain.User, len(ids))
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Handle, &u.CredentialHash, &u.TeamID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users[u.ID] = u
	}
	return users, rows.Err()
}

// CreateTeam inserts a new team
func (r *Repository) CreateTeam(ctx context.Context, t domain.Team) error {
	query := `
		INSERT INTO teams (id, name, member_count, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, t.ID, t.Name, t.MemberCount, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrTeamExists
		}
		return fmt.Errorf("creating team: %w", err)
	}
	return nil
}

// GetTeam retrieves a team by id
func (r *Repository) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	query := `SELECT id, name, member_count, created_at FROM teams WHERE id = $1`
	var t domain.Team
	err := r.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.MemberCount, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, fmt.Errorf("getting team: %w", err)
	}
	return &t, nil
}

// ListTeams retrieves all teams
func (r *Repository) ListTeams(ctx context.Context) ([]domain.Team, error) {
	query := `SELECT id, name, member_count, created_at FROM teams ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.MemberCount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// ReassignUser atomically moves a user to a team. Both membership counts and
// the user row change in one transaction; no intermediate state is visible.
func (r *Repository) ReassignUser(ctx context.Context, userID, teamID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var prevTeam string
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(team_id, '') FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&prevTeam)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("locking user: %w", err)
	}
	if prevTeam == teamID {
		return tx.Commit(ctx)
	}

	result, err := tx.Exec(ctx,
		`UPDATE teams SET member_count = member_count + 1 WHERE id = $1`,
		teamID,
	)
	if err != nil {
		return fmt.Errorf("incrementing member count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrTeamNotFound
	}

	if prevTeam != "" {
		_, err = tx.Exec(ctx,
			`UPDATE teams SET member_count = member_count - 1 WHERE id = $1`,
			prevTeam,
		)
		if err != nil {
			return fmt.Errorf("decrementing member count: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `UPDATE users SET team_id = $2 WHERE id = $1`, userID, teamID)
	if err != nil {
		return fmt.Errorf("updating user team: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing reassignment: %w", err)
	}
	return nil
}

// GetScore retrieves a user's score record; (nil, nil) when unranked
func (r *Repository) GetScore(ctx context.Context, userID string) (*domain.ScoreRecord, error) {
	query := `SELECT user_id, score, version, updated_at FROM score_records WHERE user_id = $1`
	var rec domain.ScoreRecord
	err := r.pool.QueryRow(ctx, query, userID).Scan(&rec.UserID, &rec.Score, &rec.Version, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting score: %w", err)
	}
	return &rec, nil
}

// SwapScore applies rec when the stored version equals rec.Version-1. A lost
// race surfaces as domain.ErrScoreConflict for the ledger to retry.
func (r *Repository) SwapScore(ctx context.Context, rec domain.ScoreRecord) error {
	if rec.Version == 1 {
		query := `
			INSERT INTO score_records (user_id, score, version, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO NOTHING
		`
		result, err := r.pool.Exec(ctx, query, rec.UserID, rec.Score, rec.Version, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting score: %w", err)
		}
		if result.RowsAffected() == 0 {
			return domain.ErrScoreConflict
		}
		return nil
	}

	query := `
		UPDATE score_records
		SET score = $2, version = $3, updated_at = $4
		WHERE user_id = $1 AND version = $5
	`
	result, err := r.pool.Exec(ctx, query, rec.UserID, rec.Score, rec.Version, rec.UpdatedAt, rec.Version-1)
	if err != nil {
		return fmt.Errorf("updating score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrScoreConflict
	}
	return nil
}

// AllScores retrieves every score record
func (r *Repository) AllScores(ctx context.Context) ([]domain.ScoreRecord, error) {
	query := `SELECT user_id, score, version, updated_at FROM score_records`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("getting all scores: %w", err)
	}
	defer rows.Close()

	var records []domain.ScoreRecord
	for rows.Next() {
		var rec domain.ScoreRecord
		if err := rows.Scan(&rec.UserID, &rec.Score, &rec.Version, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
