package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lmoreira/go-task-tracker/config"
	"github.com/lmoreira/go-task-tracker/internal/types"
)

// MockAuthRepo is a mock implementation of the AuthRepo interface
type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) CreateUser(ctx context.Context, username, email, hashedPassword string) (*types.UserAuth, error) {
	args := m.Called(ctx, username, email, hashedPassword)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockAuthRepo) FindConflictingUser(ctx context.Context, email, username string) (*types.UserAuth, error) {
	args := m.Called(ctx, email, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT = config.JWTConfig{
		SecretKey:      "test-access-secret",
		Issuer:         "test-issuer",
		Audience:       "test-audience",
		AccessTokenTTL: 5 * time.Minute,
	}
	return cfg
}

func setupAuthServiceTest() (*AuthServiceImpl, *MockAuthRepo, *config.Config) {
	mockRepo := new(MockAuthRepo)
	cfg := testConfig()
	service := NewAuthService(mockRepo, cfg, slog.Default())
	return service, mockRepo, cfg
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		service, mockRepo, cfg := setupAuthServiceTest()
		username, email, password := "alice", "a@x.com", "Str0ng!Pass"

		created := &types.UserAuth{
			ID:       uuid.New(),
			Username: username,
			Email:    email,
		}
		mockRepo.On("FindConflictingUser", ctx, email, username).Return(nil, types.ErrNotFound).Once()
		mockRepo.On("CreateUser", ctx, username, email, mock.AnythingOfType("string")).Return(created, nil).Once()

		user, token, err := service.Register(ctx, username, email, password)
		require.NoError(t, err)
		assert.Equal(t, created, user)
		assert.NotEmpty(t, token)

		// Token must verify against the configured secret and carry the
		// new identity's reference.
		claims := &types.Claims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWT.SecretKey), nil
		})
		require.NoError(t, err)
		assert.True(t, parsed.Valid)
		assert.Equal(t, created.ID.String(), claims.UserID)
		assert.Equal(t, cfg.JWT.Issuer, claims.Issuer)

		// The stored password must be a bcrypt hash of the input, never plaintext.
		hashed := mockRepo.Calls[1].Arguments.String(3)
		assert.NotEqual(t, password, hashed)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)))

		mockRepo.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		service, mockRepo, _ := setupAuthServiceTest()

		_, _, err := service.Register(ctx, "alice", "", "Str0ng!Pass")
		require.Error(t, err)

		var missingErr *types.MissingFieldsError
		require.ErrorAs(t, err, &missingErr)
		assert.True(t, missingErr.Fields["username"])
		assert.False(t, missingErr.Fields["email"])
		assert.True(t, missingErr.Fields["password"])

		mockRepo.AssertNotCalled(t, "CreateUser")
	})

	t.Run("UsernameTooShort", func(t *testing.T) {
		service, _, _ := setupAuthServiceTest()

		_, _, err := service.Register(ctx, "al", "a@x.com", "Str0ng!Pass")
		var validationErr *types.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Fields, "username")
	})

	t.Run("MultibyteUsernameCountsCharacters", func(t *testing.T) {
		service, mockRepo, _ := setupAuthServiceTest()

		// 2 characters but 6 bytes: below the minimum.
		_, _, err := service.Register(ctx, "日本", "a@x.com", "Str0ng!Pass")
		var validationErr *types.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Fields, "username")

		// 3 characters is a valid username.
		created := &types.UserAuth{ID: uuid.New(), Username: "日本語", Email: "a@x.com"}
		mockRepo.On("FindConflictingUser", ctx, "a@x.com", "日本語").Return(nil, types.ErrNotFound).Once()
		mockRepo.On("CreateUser", ctx, "日本語", "a@x.com", mock.AnythingOfType("string")).Return(created, nil).Once()
		_, _, err = service.Register(ctx, "日本語", "a@x.com", "Str0ng!Pass")
		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("InvalidEmail", func(t *testing.T) {
		service, _, _ := setupAuthServiceTest()

		_, _, err := service.Register(ctx, "alice", "not-an-email", "Str0ng!Pass")
		var validationErr *types.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Fields, "email")
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		service, mockRepo, _ := setupAuthServiceTest()
		email, username := "a@x.com", "alice"

		existing := &types.UserAuth{ID: uuid.New(), Username: "someone", Email: email}
		mockRepo.On("FindConflictingUser", ctx, email, username).Return(existing, nil).Once()

		_, _, err := service.Register(ctx, username, email, "Str0ng!Pass")
		var dupErr *types.DuplicateIdentityError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, "email", dupErr.Field)
		mockRepo.AssertExpectations(t)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		service, mockRepo, _ := setupAuthServiceTest()
		email, username := "a@x.com", "alice"

		existing := &types.UserAuth{ID: uuid.New(), Username: username, Email: "other@x.com"}
		mockRepo.On("FindConflictingUser", ctx, email, username).Return(existing, nil).Once()

		_, _, err := service.Register(ctx, username, email, "Str0ng!Pass")
		var dupErr *types.DuplicateIdentityError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, "username", dupErr.Field)
		mockRepo.AssertExpectations(t)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		service, mockRepo, _ := setupAuthServiceTest()
		repoErr := errors.New("connection reset")

		mockRepo.On("FindConflictingUser", ctx, "a@x.com", "alice").Return(nil, types.ErrNotFound).Once()
		mockRepo.On("CreateUser", ctx, "alice", "a@x.com", mock.AnythingOfType("string")).Return(nil, repoErr).Once()

		_, _, err := service.Register(ctx, "alice", "a@x.com", "Str0ng!Pass")
		require.Error(t, err)
		assert.ErrorIs(t, err, repoErr)
		mockRepo.AssertExpectations(t)
	})

	t.Run("RetryYieldsDuplicate", func(t *testing.T) {
		// A retried registration with the same input must fail with the
		// duplicate error, not create a second identity.
		service, mockRepo, _ := setupAuthServiceTest()
		email, username := "a@x.com", "alice"

		existing := &types.UserAuth{ID: uuid.New(), Username: username, Email: email}
		mockRepo.On("FindConflictingUser", ctx, email, username).Return(existing, nil).Once()

		_, _, err := service.Register(ctx, username, email, "Str0ng!Pass")
		var dupErr *types.DuplicateIdentityError
		require.ErrorAs(t, err, &dupErr)
		mockRepo.AssertNotCalled(t, "CreateUser")
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		service, mockRepo, cfg := setupAuthServiceTest()
		email, password := "a@x.com", "Str0ng!Pass"
		hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		stored := &types.UserAuth{
			ID:       uuid.New(),
			Username: "alice",
			Email:    email,
			Password: string(hashed),
		}
		mockRepo.On("GetUserByEmail", ctx, email).Return(stored, nil).Once()

		user, token, err := service.Login(ctx, email, password)
		require.NoError(t, err)
		assert.Equal(t, stored, user)

		claims := &types.Claims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWT.SecretKey), nil
		})
		require.NoError(t, err)
		assert.True(t, parsed.Valid)
		assert.Equal(t, stored.ID.String(), claims.UserID)
		assert.WithinDuration(t, time.Now().Add(cfg.JWT.AccessTokenTTL), claims.ExpiresAt.Time, 5*time.Second)

		mockRepo.AssertExpectations(t)
	})

	t.Run("TwoLoginsYieldIndependentTokens", func(t *testing.T) {
		service, mockRepo, _ := setupAuthServiceTest()
		email, password := "a@x.com", "Str0ng!Pass"
		hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		stored := &types.UserAuth{ID: uuid.New(), Username: "alice", Email: email, Password: string(hashed)}
		mockRepo.On("GetUserByEmail", ctx, email).Return(stored, nil).Twice()

		_, first, err := service.Login(ctx, email, password)
		require.NoError(t, err)
		time.Sleep(1100 * time.Millisecond) // distinct iat second
		_, second, err := service.Login(ctx, email, password)
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
		mockRepo.AssertExpectations(t)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		service, mockRepo, _ := setupAuthServiceTest()
		mockRepo.On("GetUserByEmail", ctx, "nobody@x.com").Return(nil, types.ErrNotFound).Once()

		user, token, err := service.Login(ctx, "nobody@x.com", "Str0ng!Pass")
		assert.Nil(t, user)
		assert.Empty(t, token)
		assert.ErrorIs(t, err, types.ErrInvalidCredentials)
		mockRepo.AssertExpectations(t)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		service, mockRepo, _ := setupAuthServiceTest()
		hashed, _ := bcrypt.GenerateFromPassword([]byte("Str0ng!Pass"), bcrypt.DefaultCost)
		stored := &types.UserAuth{ID: uuid.New(), Email: "a@x.com", Password: string(hashed)}
		mockRepo.On("GetUserByEmail", ctx, "a@x.com").Return(stored, nil).Once()

		user, token, err := service.Login(ctx, "a@x.com", "Wr0ng!Pass")
		assert.Nil(t, user)
		assert.Empty(t, token)
		assert.ErrorIs(t, err, types.ErrInvalidCredentials)
		mockRepo.AssertExpectations(t)
	})

	t.Run("FailureCausesIndistinguishable", func(t *testing.T) {
		// Unknown email and wrong password must yield the exact same error
		// value so the transport layer cannot leak which one happened.
		service, mockRepo, _ := setupAuthServiceTest()
		hashed, _ := bcrypt.GenerateFromPassword([]byte("Str0ng!Pass"), bcrypt.DefaultCost)
		stored := &types.UserAuth{ID: uuid.New(), Email: "a@x.com", Password: string(hashed)}

		mockRepo.On("GetUserByEmail", ctx, "nobody@x.com").Return(nil, types.ErrNotFound).Once()
		mockRepo.On("GetUserByEmail", ctx, "a@x.com").Return(stored, nil).Once()

		_, _, errUnknown := service.Login(ctx, "nobody@x.com", "whatever")
		_, _, errWrong := service.Login(ctx, "a@x.com", "Wr0ng!Pass")

		assert.Equal(t, errUnknown, errWrong)
		mockRepo.AssertExpectations(t)
	})
}

func TestGetUserByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		service, mockRepo, _ := setupAuthServiceTest()
		id := uuid.New()
		stored := &types.UserAuth{ID: id, Username: "alice"}
		mockRepo.On("GetUserByID", ctx, id).Return(stored, nil).Once()

		user, err := service.GetUserByID(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, stored, user)
		mockRepo.AssertExpectations(t)
	})

	t.Run("MalformedID", func(t *testing.T) {
		service, mockRepo, _ := setupAuthServiceTest()

		_, err := service.GetUserByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, types.ErrNotFound)
		mockRepo.AssertNotCalled(t, "GetUserByID")
	})

	t.Run("DeletedUser", func(t *testing.T) {
		service, mockRepo, _ := setupAuthServiceTest()
		id := uuid.New()
		mockRepo.On("GetUserByID", ctx, id).Return(nil, types.ErrNotFound).Once()

		_, err := service.GetUserByID(ctx, id.String())
		assert.ErrorIs(t, err, types.ErrNotFound)
		mockRepo.AssertExpectations(t)
	})
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
		failing  []string
	}{
		{"Valid", "Str0ng!Pass", false, nil},
		{"TooShort", "S0r!t", true, []string{"length"}},
		{"NoUppercase", "str0ng!pass", true, []string{"uppercase"}},
		{"NoLowercase", "STR0NG!PASS", true, []string{"lowercase"}},
		{"NoDigit", "Strong!Pass", true, []string{"digit"}},
		{"NoSymbol", "Str0ngPass1", true, []string{"symbol"}},
		{"MultibyteTooShort", "Ab1!日本", true, []string{"length"}}, // 6 characters, 10 bytes
		{"Empty", "", true, []string{"length", "uppercase", "lowercase", "digit", "symbol"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePassword(tc.password)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}

			var policyErr *types.PasswordPolicyError
			require.ErrorAs(t, err, &policyErr)

			failed := map[string]bool{
				"length":    !policyErr.Length,
				"uppercase": !policyErr.Uppercase,
				"lowercase": !policyErr.Lowercase,
				"digit":     !policyErr.Digit,
				"symbol":    !policyErr.Symbol,
			}
			for _, rule := range tc.failing {
				assert.True(t, failed[rule], fmt.Sprintf("expected rule %q to fail", rule))
			}
			// Exactly the named rules fail, nothing else.
			count := 0
			for _, f := range failed {
				if f {
					count++
				}
			}
			assert.Equal(t, len(tc.failing), count)
		})
	}
}
