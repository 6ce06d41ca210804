package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_GetNotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.Authors.Get(context.Background(), "author-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntity_UpdateMovesIndex(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	author, err := s.FindOrCreateAuthor(ctx, "Old Name")
	require.NoError(t, err)

	author.Name = "New Name"
	require.NoError(t, s.UpdateAuthor(ctx, author))

	// Old index key is gone, new one resolves.
	_, err = s.GetAuthorByName(ctx, "Old Name")
	assert.ErrorIs(t, err, ErrNotFound)

	renamed, err := s.GetAuthorByName(ctx, "New Name")
	require.NoError(t, err)
	assert.Equal(t, author.ID, renamed.ID)
}

func TestEntity_UpdateRejectsIndexConflict(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	_, err := s.FindOrCreateAuthor(ctx, "First Author")
	require.NoError(t, err)
	second, err := s.FindOrCreateAuthor(ctx, "Second Author")
	require.NoError(t, err)

	second.Name = "First Author"
	err = s.UpdateAuthor(ctx, second)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestEntity_CountSkipsIndexKeys(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	// Users carry a unique username index; the index entries must not count.
	_, err := s.CreateUser(ctx, "alice", "design", "hash-a")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "bob", "agile", "hash-b")
	require.NoError(t, err)

	count, err := s.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
