package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfmark/shelfmark-server/internal/auth"
	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/pubsub"
	"github.com/shelfmark/shelfmark-server/internal/store"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type testEnv struct {
	store   *store.Store
	broker  *pubsub.Broker
	catalog *CatalogService
	auth    *AuthService
}

func setupTestEnv(t *testing.T) (*testEnv, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "shelfmark-service-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil)
	require.NoError(t, err)

	log := slog.New(slog.DiscardHandler)

	broker := pubsub.NewBroker(log)
	ctx, cancel := context.WithCancel(context.Background())
	go broker.Start(ctx)

	tokenService, err := auth.NewTokenService(testKeyHex)
	require.NoError(t, err)

	env := &testEnv{
		store:   s,
		broker:  broker,
		catalog: NewCatalogService(s, broker, log),
		auth:    NewAuthService(s, tokenService, log),
	}

	cleanup := func() {
		cancel()
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return env, cleanup
}

// registerTestUser creates an account for tests that need an authenticated
// caller.
func registerTestUser(t *testing.T, env *testEnv, username string) *domain.User {
	t.Helper()

	user, err := env.auth.CreateUser(context.Background(), domain.CreateUserInput{
		Username:      username,
		FavoriteGenre: "refactoring",
		Password:      "salasana-123",
	})
	require.NoError(t, err)
	return user
}
