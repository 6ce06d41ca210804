package store

import (
	"context"
	"slices"

	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/id"
)

// BookFilter narrows book listings. Zero values mean "no filter".
//
// When both fields are set, Genre takes precedence and AuthorID is ignored.
// That asymmetry is part of the catalog's query contract; see ListBooks.
type BookFilter struct {
	AuthorID string
	Genre    string
}

// CreateBook persists a new book referencing an existing author.
func (s *Store) CreateBook(ctx context.Context, title string, published int, authorID string, genres []string) (*domain.Book, error) {
	bookID, err := id.Generate("book")
	if err != nil {
		return nil, err
	}

	if genres == nil {
		genres = []string{}
	}

	book := &domain.Book{
		ID:        bookID,
		Title:     title,
		Published: published,
		AuthorID:  authorID,
		Genres:    genres,
	}

	if err := s.Books.Create(ctx, bookID, book); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Debug("book created", "book_id", bookID, "title", title, "author_id", authorID)
	}
	return book, nil
}

// GetBook retrieves a book by ID.
func (s *Store) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	return s.Books.Get(ctx, bookID)
}

// ListBooks returns all books matching the filter.
// A genre filter wins over an author filter when both are present.
func (s *Store) ListBooks(ctx context.Context, filter BookFilter) ([]domain.Book, error) {
	books := []domain.Book{}
	for book, err := range s.Books.List(ctx) {
		if err != nil {
			return nil, err
		}
		if !filter.matches(book) {
			continue
		}
		books = append(books, *book)
	}
	return books, nil
}

// CountBooks returns the number of books matching the filter.
func (s *Store) CountBooks(ctx context.Context, filter BookFilter) (int, error) {
	count := 0
	for book, err := range s.Books.List(ctx) {
		if err != nil {
			return 0, err
		}
		if filter.matches(book) {
			count++
		}
	}
	return count, nil
}

func (f BookFilter) matches(book *domain.Book) bool {
	if f.Genre != "" {
		return slices.Contains(book.Genres, f.Genre)
	}
	if f.AuthorID != "" {
		return book.AuthorID == f.AuthorID
	}
	return true
}
