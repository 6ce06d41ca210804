package store

import (
	"context"

	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/id"
)

// CreateUser persists a new user account.
// Returns ErrAlreadyExists when the username is taken.
func (s *Store) CreateUser(ctx context.Context, username, favoriteGenre, passwordHash string) (*domain.User, error) {
	userID, err := id.Generate("user")
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:            userID,
		Username:      username,
		FavoriteGenre: favoriteGenre,
		PasswordHash:  passwordHash,
	}

	if err := s.Users.Create(ctx, userID, user); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Debug("user created", "user_id", userID, "username", username)
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.Users.Get(ctx, userID)
}

// GetUserByUsername retrieves a user by exact username match.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.Users.GetByIndex(ctx, "username", username)
}
