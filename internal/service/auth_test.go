package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/errors"
)

func TestCreateUser(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	user, err := env.auth.CreateUser(context.Background(), domain.CreateUserInput{
		Username:      "mluukkai",
		FavoriteGenre: "refactoring",
		Password:      "salasana-123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "mluukkai", user.Username)
	assert.Equal(t, "refactoring", user.FavoriteGenre)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$argon2id$"))
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	registerTestUser(t, env, "mluukkai")

	_, err := env.auth.CreateUser(context.Background(), domain.CreateUserInput{
		Username:      "mluukkai",
		FavoriteGenre: "classic",
		Password:      "another-password",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Contains(t, err.Error(), "username already taken")
}

func TestCreateUser_ValidationFailures(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	tests := []struct {
		name  string
		input domain.CreateUserInput
	}{
		{
			name:  "username too short",
			input: domain.CreateUserInput{Username: "ab", FavoriteGenre: "classic", Password: "salasana-123"},
		},
		{
			name:  "missing favorite genre",
			input: domain.CreateUserInput{Username: "mluukkai", Password: "salasana-123"},
		},
		{
			name:  "password too short",
			input: domain.CreateUserInput{Username: "mluukkai", FavoriteGenre: "classic", Password: "short"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.CreateUser(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}
}

func TestLogin(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ctx := context.Background()
	user := registerTestUser(t, env, "mluukkai")

	token, err := env.auth.Login(ctx, "mluukkai", "salasana-123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	// The token resolves back to the account that logged in.
	fromToken, err := env.auth.UserFromToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, fromToken.ID)
	assert.Equal(t, "mluukkai", fromToken.Username)
}

func TestLogin_WrongCredentials(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ctx := context.Background()
	registerTestUser(t, env, "mluukkai")

	_, err := env.auth.Login(ctx, "mluukkai", "wrong-password")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))

	// An unknown username fails with the same error as a wrong password.
	_, err = env.auth.Login(ctx, "nobody", "salasana-123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
}

func TestLogin_RateLimited(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ctx := context.Background()
	registerTestUser(t, env, "mluukkai")

	limited := false
	for range 10 {
		_, err := env.auth.Login(ctx, "mluukkai", "wrong-password")
		require.Error(t, err)
		if errors.Is(err, errors.ErrValidation) {
			limited = true
			break
		}
	}
	assert.True(t, limited, "rapid login attempts should trip the rate limit")

	// Attempts for other usernames are not affected.
	_, err := env.auth.Login(ctx, "someone-else", "whatever-pass")
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
}

func TestUserFromToken_UnknownUser(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ctx := context.Background()

	// Issue a token for a user that was never persisted.
	token, err := env.auth.tokenService.IssueToken(&domain.User{ID: "user-ghost", Username: "ghost"})
	require.NoError(t, err)

	_, err = env.auth.UserFromToken(ctx, token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthenticated))
}

func TestUserFromToken_Garbage(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	_, err := env.auth.UserFromToken(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthenticated))
}
