package domain

// Book represents a single catalog entry. Books are immutable once created:
// there is no edit or delete operation in this design.
type Book struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Published int    `json:"published"`
	// AuthorID is an ownership reference to exactly one Author. The author
	// record is created first when absent, so a book is never persisted with
	// a dangling reference.
	AuthorID string `json:"author_id"`
	// Genres is an ordered sequence of tags; may be empty but never nil
	// in a persisted book.
	Genres []string `json:"genres"`
}

// AddBookInput carries the arguments of the add-book mutation.
// Length constraints mirror the persistence-layer schema rules of the
// catalog: short titles and author names are rejected as user input errors.
type AddBookInput struct {
	Title     string   `json:"title" validate:"required,min=2"`
	Published int      `json:"published" validate:"gte=0,lte=3000"`
	Author    string   `json:"author" validate:"required,min=4"`
	Genres    []string `json:"genres" validate:"dive,min=1"`
}
