package auth

import (
	"encoding/hex"
	"encoding/json/v2"
	"fmt"

	"aidanwoods.dev/go-paseto"

	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/errors"
)

const (
	tokenIssuer   = "shelfmark-server"
	tokenAudience = "shelfmark-client"

	// PASETO v4 symmetric key requirements.
	keyBytesSize = 32 // 256 bits
	keyHexSize   = 64 // 32 bytes as hex string
)

// TokenService handles PASETO token generation and verification.
//
// Tokens are stateless bearer credentials carrying the username and user ID.
// They deliberately carry no expiry claim and there is no revocation list;
// verification is a pure signature check plus claim parsing. Callers must
// re-fetch the user to confirm it still exists.
type TokenService struct {
	symmetricKey paseto.V4SymmetricKey
}

// NewTokenService creates a new token service with the given hex-encoded key.
func NewTokenService(keyHex string) (*TokenService, error) {
	if len(keyHex) != keyHexSize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d hex characters (%d bytes), got %d", keyHexSize, keyBytesSize, len(keyHex))
	}

	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string for PASETO key: %w", err)
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &TokenService{symmetricKey: key}, nil
}

// IssueToken creates a PASETO v4.local token for the user.
// The token is encrypted and contains the username and user ID claims.
func (s *TokenService) IssueToken(user *domain.User) (string, error) {
	token := paseto.NewToken()

	token.SetIssuer(tokenIssuer)
	token.SetSubject(user.ID)
	token.SetAudience(tokenAudience)

	// Our custom claims
	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("user_id", user.ID)
	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("username", user.Username)

	return token.V4Encrypt(s.symmetricKey, nil), nil
}

// VerifyToken verifies and parses a PASETO token.
// Returns the claims if valid, or an unauthenticated domain error if the
// token is malformed or its signature does not check out. Existence of the
// user behind the claims is NOT checked here.
func (s *TokenService) VerifyToken(tokenString string) (*Claims, error) {
	// NewParser would preload a NotExpired rule, and these tokens carry no
	// exp claim.
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))

	token, err := parser.ParseV4Local(s.symmetricKey, tokenString, nil)
	if err != nil {
		return nil, errors.Unauthenticated("invalid token").WithCause(err)
	}

	var claims Claims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, errors.Unauthenticated("invalid token claims").WithCause(err)
	}

	return &claims, nil
}
