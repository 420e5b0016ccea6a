package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lmoreira/go-task-tracker/config"
	"github.com/lmoreira/go-task-tracker/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService defines the credential and identity operations.
type AuthService interface {
	// Register validates the input, persists a new identity with a hashed
	// password and returns it together with a fresh access token.
	Register(ctx context.Context, username, email, password string) (*types.UserAuth, string, error)

	// Login authenticates by email and password. Unknown email and wrong
	// password both fail with types.ErrInvalidCredentials so callers cannot
	// enumerate accounts.
	Login(ctx context.Context, email, password string) (*types.UserAuth, string, error)

	// GetUserByID resolves a token's identity reference to a live record.
	GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error)
}

type AuthServiceImpl struct {
	logger *slog.Logger
	repo   AuthRepo
	cfg    *config.Config
}

func NewAuthService(repo AuthRepo, cfg *config.Config, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		cfg:    cfg,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, username, email, password string) (*types.UserAuth, string, error) {
	if err := validateRegistration(username, email, password); err != nil {
		return nil, "", err
	}

	existing, err := s.repo.FindConflictingUser(ctx, email, username)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, "", fmt.Errorf("error checking existing users: %w", err)
	}
	if existing != nil {
		field := "username"
		if existing.Email == email {
			field = "email"
		}
		return nil, "", &types.DuplicateIdentityError{Field: field}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, username, email, string(hashedPassword))
	if err != nil {
		// CreateUser already translates unique violations; pass them through.
		var dupErr *types.DuplicateIdentityError
		if errors.As(err, &dupErr) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("error creating user: %w", err)
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate access token: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", slog.String("user_id", user.ID.String()))
	return user, token, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*types.UserAuth, string, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, "", types.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("error fetching user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", types.ErrInvalidCredentials
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return user, token, nil
}

func (s *AuthServiceImpl) GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, types.ErrNotFound
	}
	return s.repo.GetUserByID(ctx, id)
}

// generateAccessToken issues a signed, time-limited token bound to the user.
// Tokens are stateless; validity is decided at verification time from the
// signature and the embedded expiry alone.
func (s *AuthServiceImpl) generateAccessToken(user *types.UserAuth) (string, error) {
	now := time.Now()
	claims := types.Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.JWT.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.JWT.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.SecretKey))
}
