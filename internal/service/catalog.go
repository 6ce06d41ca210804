package service

import (
	"context"
	"log/slog"

	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/errors"
	"github.com/shelfmark/shelfmark-server/internal/pubsub"
	"github.com/shelfmark/shelfmark-server/internal/store"
)

// CatalogService handles books and authors: listing, counting, the add-book
// flow and author edits. Mutations require an authenticated user.
type CatalogService struct {
	store  *store.Store
	broker *pubsub.Broker
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store *store.Store, broker *pubsub.Broker, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:  store,
		broker: broker,
		logger: logger,
	}
}

// AuthorCount returns the total number of authors.
func (s *CatalogService) AuthorCount(ctx context.Context) (int, error) {
	return s.store.CountAuthors(ctx)
}

// BookCount returns the number of books, optionally narrowed to one author
// by name. An unknown author name has zero books.
func (s *CatalogService) BookCount(ctx context.Context, authorName string) (int, error) {
	filter := store.BookFilter{}
	if authorName != "" {
		author, err := s.store.GetAuthorByName(ctx, authorName)
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		filter.AuthorID = author.ID
	}
	return s.store.CountBooks(ctx, filter)
}

// AllBooks lists books filtered by author name and/or genre.
// When both filters are present the genre filter takes precedence and the
// author filter is ignored, matching the catalog's query contract.
func (s *CatalogService) AllBooks(ctx context.Context, authorName, genre string) ([]domain.Book, error) {
	filter := store.BookFilter{Genre: genre}
	if authorName != "" && genre == "" {
		author, err := s.store.GetAuthorByName(ctx, authorName)
		if errors.Is(err, store.ErrNotFound) {
			return []domain.Book{}, nil
		}
		if err != nil {
			return nil, err
		}
		filter.AuthorID = author.ID
	}
	return s.store.ListBooks(ctx, filter)
}

// AuthorBookCount returns the number of books held by one author.
func (s *CatalogService) AuthorBookCount(ctx context.Context, authorID string) (int, error) {
	return s.store.CountBooksByAuthor(ctx, authorID)
}

// AllAuthors lists every author with its derived book count.
func (s *CatalogService) AllAuthors(ctx context.Context) ([]domain.AuthorWithCount, error) {
	return s.store.ListAuthors(ctx)
}

// ResolveAuthor re-fetches a book's author in full, with the derived book
// count, for embedding in a response.
func (s *CatalogService) ResolveAuthor(ctx context.Context, book *domain.Book) (*domain.AuthorWithCount, error) {
	author, err := s.store.GetAuthor(ctx, book.AuthorID)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "resolve author for book %s", book.ID)
	}

	count, err := s.store.CountBooksByAuthor(ctx, author.ID)
	if err != nil {
		return nil, err
	}

	return &domain.AuthorWithCount{Author: *author, BookCount: count}, nil
}

// AddBook creates a book on behalf of the user, creating its author first
// when absent, and publishes a book-added event on success.
//
// The author is always persisted before the book, so a book can never hold
// a dangling author reference.
func (s *CatalogService) AddBook(ctx context.Context, user *domain.User, input domain.AddBookInput) (*domain.Book, error) {
	if user == nil {
		return nil, errors.Unauthenticated("not authenticated")
	}

	if err := validateInput(input); err != nil {
		return nil, err
	}

	author, err := s.store.FindOrCreateAuthor(ctx, input.Author)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "saving author failed").WithDetails(input)
	}

	book, err := s.store.CreateBook(ctx, input.Title, input.Published, author.ID, input.Genres)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "saving book failed").WithDetails(input)
	}

	s.broker.Publish(pubsub.TopicBookAdded, book)

	s.logger.Info("book added",
		"book_id", book.ID,
		"title", book.Title,
		"author", author.Name,
		"user_id", user.ID)

	return book, nil
}

// EditAuthor sets the birth year of an existing author.
// Returns a not-found error when no author matches the name; everything else
// about the author is left unchanged.
func (s *CatalogService) EditAuthor(ctx context.Context, user *domain.User, name string, born int) (*domain.Author, error) {
	if user == nil {
		return nil, errors.Unauthenticated("not authenticated")
	}

	author, err := s.store.GetAuthorByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFoundf("author %q not found", name)
	}
	if err != nil {
		return nil, err
	}

	author.Born = &born
	if err := s.store.UpdateAuthor(ctx, author); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "saving author failed")
	}

	s.logger.Info("author edited", "author_id", author.ID, "name", author.Name, "born", born)
	return author, nil
}
