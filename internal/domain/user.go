package domain

// User represents a reader account. Usernames are unique identity keys.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FavoriteGenre string `json:"favorite_genre"`
	// PasswordHash is the Argon2id encoded hash of the user's password.
	// Stored hashed, filtered from API responses.
	PasswordHash string `json:"password_hash,omitempty"`
}

// CreateUserInput carries the arguments of the create-user mutation.
type CreateUserInput struct {
	Username      string `json:"username" validate:"required,min=3"`
	FavoriteGenre string `json:"favoriteGenre" validate:"required"`
	Password      string `json:"password" validate:"required,min=8,max=1024"`
}
