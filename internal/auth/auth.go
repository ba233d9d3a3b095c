package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned when credential material is missing or invalid.
var ErrUnauthorized = errors.New("unauthorized")

// Kind distinguishes anonymous sessions from authenticated users.
type Kind string

const (
	KindAnonymous Kind = "anonymous"
	KindUser      Kind = "user"
)

// Identity is the principal every core operation is scoped to. There is no
// ambient auth state: callers resolve an Identity once per request and pass
// it down explicitly.
type Identity struct {
	Kind Kind
	ID   string
}

// Anonymous returns the identity for an anonymous session id.
func Anonymous(sessionID string) Identity {
	return Identity{Kind: KindAnonymous, ID: sessionID}
}

// User returns the identity for an authenticated user id.
func User(userID string) Identity {
	return Identity{Kind: KindUser, ID: userID}
}

// Key returns the owner key repository rows are scoped by.
func (i Identity) Key() string {
	if i.Kind == KindUser {
		return "user:" + i.ID
	}
	return "anon:" + i.ID
}

// IsUser reports whether the identity is an authenticated user.
func (i Identity) IsUser() bool {
	return i.Kind == KindUser
}

// Verifier validates bearer tokens and resolves them to user identities.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for HS256 tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a raw bearer token, returning the
// authenticated identity. The subject claim carries the user id.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return User(sub), nil
}

// FromAuthorizationHeader resolves an Authorization header value to an
// authenticated identity. Fails with ErrUnauthorized when the header is
// missing or is not a bearer token.
func (v *Verifier) FromAuthorizationHeader(header string) (Identity, error) {
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return Identity{}, fmt.Errorf("%w: missing or invalid authorization header", ErrUnauthorized)
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return v.Verify(raw)
}
