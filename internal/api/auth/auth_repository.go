package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lmoreira/go-task-tracker/app/observability/metrics"
	"github.com/lmoreira/go-task-tracker/internal/types"
)

// PgxPool is the subset of pgxpool.Pool the repository needs.
// Satisfied by *pgxpool.Pool and by pgxmock in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ AuthRepo = (*AuthRepoImpl)(nil)

// AuthRepo defines the persistence operations for user identities.
type AuthRepo interface {
	// CreateUser persists a new identity. The password must already be hashed.
	CreateUser(ctx context.Context, username, email, hashedPassword string) (*types.UserAuth, error)

	// GetUserByEmail returns the identity for an exact email match,
	// types.ErrNotFound when no row exists.
	GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error)

	// GetUserByID returns the identity for an id, types.ErrNotFound when gone.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error)

	// FindConflictingUser returns any existing identity matching either the
	// email or the username, types.ErrNotFound when neither is taken.
	FindConflictingUser(ctx context.Context, email, username string) (*types.UserAuth, error)
}

type AuthRepoImpl struct {
	logger *slog.Logger
	pgpool PgxPool
}

func NewAuthRepo(pgpool PgxPool, logger *slog.Logger) *AuthRepoImpl {
	return &AuthRepoImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *AuthRepoImpl) CreateUser(ctx context.Context, username, email, hashedPassword string) (*types.UserAuth, error) {
	now := time.Now()
	user := &types.UserAuth{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Username, user.Email, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		// The unique indexes are the backstop behind the pre-insert check;
		// translate their violations instead of leaking a raw pg error.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			field := "username"
			if strings.Contains(pgErr.ConstraintName, "email") {
				field = "email"
			}
			return nil, &types.DuplicateIdentityError{Field: field}
		}
		r.logger.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		metrics.RecordDBError(ctx, "users.insert")
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

func (r *AuthRepoImpl) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	var user types.UserAuth
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at, updated_at
         FROM users WHERE email = $1`,
		email).Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query user by email", slog.Any("error", err))
		metrics.RecordDBError(ctx, "users.get_by_email")
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return &user, nil
}

func (r *AuthRepoImpl) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	var user types.UserAuth
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at, updated_at
         FROM users WHERE id = $1`,
		userID).Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query user by id", slog.Any("error", err))
		metrics.RecordDBError(ctx, "users.get_by_id")
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}
	return &user, nil
}

func (r *AuthRepoImpl) FindConflictingUser(ctx context.Context, email, username string) (*types.UserAuth, error) {
	var user types.UserAuth
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, username, email, created_at, updated_at
         FROM users WHERE email = $1 OR username = $2
         LIMIT 1`,
		email, username).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query conflicting user", slog.Any("error", err))
		metrics.RecordDBError(ctx, "users.find_conflict")
		return nil, fmt.Errorf("failed to query conflicting user: %w", err)
	}
	return &user, nil
}
