// Package auth implements password hashing and the signed bearer-token scheme
// used by the user endpoints. Tokens are a base64url JSON payload plus an
// HMAC-SHA256 signature; they are intentionally not JWTs.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const hashIterations = 100_000

var (
	// ErrInvalidToken is returned for malformed or tampered tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for structurally valid but expired tokens.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the payload carried inside a bearer token.
type Claims struct {
	Subject string  `json:"sub"`
	Role    string  `json:"role"`
	Expiry  float64 `json:"exp"` // unix seconds
}

// Tokens issues and verifies bearer tokens and hashes passwords, all keyed
// off a single shared secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// New creates a Tokens helper with the given signing secret and token lifetime.
func New(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// HashPassword derives a PBKDF2-SHA256 hash of the password, base64-encoded.
func (t *Tokens) HashPassword(password string) string {
	hashed := pbkdf2.Key([]byte(password), t.secret, hashIterations, sha256.Size, sha256.New)
	return base64.StdEncoding.EncodeToString(hashed)
}

// VerifyPassword reports whether the plain password matches the stored hash.
func (t *Tokens) VerifyPassword(plain, stored string) bool {
	hashed := pbkdf2.Key([]byte(plain), t.secret, hashIterations, sha256.Size, sha256.New)
	encoded := base64.StdEncoding.EncodeToString(hashed)
	return subtle.ConstantTimeCompare([]byte(encoded), []byte(stored)) == 1
}

// Issue creates a signed token for the given user.
func (t *Tokens) Issue(username, role string) (string, error) {
	claims := Claims{
		Subject: username,
		Role:    role,
		Expiry:  float64(time.Now().Add(t.ttl).Unix()),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshaling claims: %w", err)
	}

	encoded := base64.URLEncoding.EncodeToString(payload)
	return encoded + "." + base64.URLEncoding.EncodeToString(t.sign(encoded)), nil
}

// Verify checks the signature and expiry of a token and returns its claims.
func (t *Tokens) Verify(token string) (Claims, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	gotSig, err := base64.URLEncoding.DecodeString(sig)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if !hmac.Equal(gotSig, t.sign(encoded)) {
		return Claims{}, ErrInvalidToken
	}

	payload, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}

	if float64(time.Now().Unix()) > claims.Expiry {
		return Claims{}, ErrTokenExpired
	}
	return claims, nil
}

func (t *Tokens) sign(encoded string) []byte {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(encoded))
	return mac.Sum(nil)
}
