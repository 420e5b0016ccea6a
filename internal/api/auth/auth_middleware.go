package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lmoreira/go-task-tracker/config"
	"github.com/lmoreira/go-task-tracker/internal/api"
	"github.com/lmoreira/go-task-tracker/internal/types"
)

// Define typed context keys
type contextKey string

const UserIDKey contextKey = "userID"

// UserResolver looks up the identity a verified token refers to.
type UserResolver interface {
	GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error)
}

// Authenticate is middleware to validate JWT access tokens.
// It verifies the signature and expiry, resolves the embedded user reference
// to a live identity and attaches the user id to the request context. Every
// failure mode answers 401 without distinguishing the cause to the caller.
func Authenticate(logger *slog.Logger, jwtCfg config.JWTConfig, users UserResolver) func(next http.Handler) http.Handler {
	secretKey := []byte(jwtCfg.SecretKey)
	if len(secretKey) == 0 {
		logger.Error("FATAL: JWT Secret Key is not configured!")
		panic("JWT Secret Key cannot be empty")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.WarnContext(ctx, "Missing Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				l.WarnContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			tokenString := headerParts[1]

			claims := &types.Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return secretKey, nil
			})
			if err != nil {
				// Log the cause, answer generically.
				l.WarnContext(ctx, "Token parsing/validation failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if !token.Valid {
				l.WarnContext(ctx, "Token marked as invalid")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			if claims.ExpiresAt == nil || time.Now().Unix() > claims.ExpiresAt.Unix() {
				l.WarnContext(ctx, "Token expiration claim check failed")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if jwtCfg.Issuer != "" && claims.Issuer != jwtCfg.Issuer {
				l.WarnContext(ctx, "Token issuer mismatch", slog.String("actual", claims.Issuer))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if jwtCfg.Audience != "" && !api.VerifyAudience(claims.Audience, jwtCfg.Audience) {
				l.WarnContext(ctx, "Token audience mismatch", slog.Any("actual", claims.Audience))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			// The token may outlive its user; a vanished identity is
			// indistinguishable from a bad token to the caller. A store
			// failure is not an authentication verdict and maps to 500.
			user, err := users.GetUserByID(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, types.ErrNotFound) {
					l.WarnContext(ctx, "Token refers to unknown user", slog.String("user_id", claims.UserID))
					api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
					return
				}
				l.ErrorContext(ctx, "User lookup failed during authentication", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, user.ID.String())
			l.DebugContext(ctx, "Authentication successful", slog.String("user_id", user.ID.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext returns the authenticated user id set by Authenticate.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}
