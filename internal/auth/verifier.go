// Package auth verifies the session tokens issued by the identity provider and
// exposes a per-client auth state stream.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chat-room/internal/session"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// UserMetadata is the profile the identity provider attached to the user.
type UserMetadata struct {
	PreferredUsername string `json:"preferred_username,omitempty"`
	Name              string `json:"name,omitempty"`
	AvatarURL         string `json:"avatar_url,omitempty"`
}

// AppMetadata carries the provider the user signed in with.
type AppMetadata struct {
	Provider string `json:"provider,omitempty"`
}

// Claims is the token body issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
	AppMetadata  AppMetadata  `json:"app_metadata"`
}

// Verifier checks HS256 tokens signed with the service API key.
type Verifier struct {
	key []byte
	now func() time.Time
}

// NewVerifier constructs a Verifier for key.
func NewVerifier(key string) *Verifier {
	return &Verifier{key: []byte(key), now: time.Now}
}

// Verify parses token and builds the session it represents.
func (v *Verifier) Verify(token string) (*session.Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	sess := &session.Session{
		UserID:       claims.Subject,
		DisplayName:  session.DisplayName(claims.UserMetadata.PreferredUsername, claims.UserMetadata.Name, claims.Email),
		AvatarURL:    claims.UserMetadata.AvatarURL,
		Email:        claims.Email,
		ProviderName: claims.AppMetadata.Provider,
		AccessToken:  token,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// SignToken issues a token for claims. Used by tooling and tests that stand in for the identity provider.
func SignToken(key string, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
