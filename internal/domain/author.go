package domain

// Author represents a person who wrote one or more books in the catalog.
// The name is the author's identity key and is unique across the catalog.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Born is the birth year. Nil until set via the edit-author mutation.
	Born *int `json:"born,omitempty"`
}

// AuthorWithCount pairs an author with its derived book count.
// The count is computed at read time by counting books that reference the
// author; it is never stored, so it cannot go stale after book insertion.
type AuthorWithCount struct {
	Author
	BookCount int `json:"bookCount"`
}
