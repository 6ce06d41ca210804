package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/id"
)

// GetAuthor retrieves an author by ID.
func (s *Store) GetAuthor(ctx context.Context, authorID string) (*domain.Author, error) {
	return s.Authors.Get(ctx, authorID)
}

// GetAuthorByName retrieves an author by exact name match.
func (s *Store) GetAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	return s.Authors.GetByIndex(ctx, "name", name)
}

// FindOrCreateAuthor returns the author with the given name, creating it
// with an unset birth year when absent.
//
// Two concurrent calls for a brand-new name cannot both create: the loser
// fails with ErrAlreadyExists, either on the unique name index or on a
// commit-time transaction conflict, and resolves it by re-reading the
// winner's record.
func (s *Store) FindOrCreateAuthor(ctx context.Context, name string) (*domain.Author, error) {
	author, err := s.GetAuthorByName(ctx, name)
	if err == nil {
		return author, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	authorID, err := id.Generate("author")
	if err != nil {
		return nil, err
	}

	author = &domain.Author{
		ID:   authorID,
		Name: name,
	}

	err = s.Authors.Create(ctx, authorID, author)
	if errors.Is(err, ErrAlreadyExists) {
		// Lost the race. The name now resolves to the winning record.
		return s.GetAuthorByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Debug("author created", "author_id", authorID, "name", name)
	}
	return author, nil
}

// UpdateAuthor persists changes to an existing author.
// Returns ErrNotFound if the author does not exist.
func (s *Store) UpdateAuthor(ctx context.Context, author *domain.Author) error {
	return s.Authors.Update(ctx, author.ID, author)
}

// CountAuthors returns the total number of author records.
func (s *Store) CountAuthors(ctx context.Context) (int, error) {
	return s.Authors.Count(ctx)
}

// ListAuthors returns all authors with their derived book counts.
// The count is computed here, at read time, by walking the book records;
// it is never cached on the author.
func (s *Store) ListAuthors(ctx context.Context) ([]domain.AuthorWithCount, error) {
	counts := make(map[string]int)
	for book, err := range s.Books.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("count books: %w", err)
		}
		counts[book.AuthorID]++
	}

	var authors []domain.AuthorWithCount
	for author, err := range s.Authors.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list authors: %w", err)
		}
		authors = append(authors, domain.AuthorWithCount{
			Author:    *author,
			BookCount: counts[author.ID],
		})
	}
	return authors, nil
}

// CountBooksByAuthor returns the number of books referencing the author.
func (s *Store) CountBooksByAuthor(ctx context.Context, authorID string) (int, error) {
	count := 0
	for book, err := range s.Books.List(ctx) {
		if err != nil {
			return 0, err
		}
		if book.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}
