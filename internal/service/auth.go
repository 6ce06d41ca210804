package service

import (
	"context"
	"log/slog"

	"github.com/shelfmark/shelfmark-server/internal/auth"
	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/errors"
	"github.com/shelfmark/shelfmark-server/internal/ratelimit"
	"github.com/shelfmark/shelfmark-server/internal/store"
)

// Login attempts are rate limited per username to slow down credential
// guessing. The bucket refills at loginAttemptsPerSecond.
const (
	loginAttemptsPerSecond = 1.0
	loginAttemptBurst      = 5
)

// AuthService handles account creation, login and token verification.
type AuthService struct {
	store        *store.Store
	tokenService *auth.TokenService
	loginLimiter *ratelimit.KeyedRateLimiter
	logger       *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(store *store.Store, tokenService *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:        store,
		tokenService: tokenService,
		loginLimiter: ratelimit.New(loginAttemptsPerSecond, loginAttemptBurst),
		logger:       logger,
	}
}

// CreateUser registers a new account with an Argon2id-hashed password.
// A taken username surfaces as a validation error, not a conflict at the
// transport level.
func (s *AuthService) CreateUser(ctx context.Context, input domain.CreateUserInput) (*domain.User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "invalid password")
	}

	user, err := s.store.CreateUser(ctx, input.Username, input.FavoriteGenre, passwordHash)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, errors.Validation("username already taken").WithDetails(input.Username)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "saving user failed")
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login verifies the credentials and issues a bearer token.
// An unknown username and a wrong password are indistinguishable to the
// caller: both fail with the same "wrong credentials" error.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if !s.loginLimiter.Allow(username) {
		s.logger.Warn("login attempt rate limited", "username", username)
		return "", errors.Validation("too many login attempts")
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return "", errors.InvalidCredentials("wrong credentials")
	}
	if err != nil {
		return "", err
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "verify password")
	}
	if !ok {
		return "", errors.InvalidCredentials("wrong credentials")
	}

	token, err := s.tokenService.IssueToken(user)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "issue token")
	}

	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return token, nil
}

// UserFromToken verifies a bearer token and re-fetches the user it names.
// Token claims alone are never trusted for existence; the account must still
// be on file.
func (s *AuthService) UserFromToken(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokenService.VerifyToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.Unauthenticated("unknown user")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
