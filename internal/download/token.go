// Package download issues and redeems time limited PDF download links.
package download

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrExpiredOrInvalid covers every link that cannot be redeemed.
	ErrExpiredOrInvalid = errors.New("download link expired or invalid")
	// ErrExpired is the expired case. errors.Is(ErrExpired, ErrExpiredOrInvalid) holds.
	ErrExpired = fmt.Errorf("%w: link has expired", ErrExpiredOrInvalid)
	// ErrInvalidArchetype means the link names an archetype the bank does not know.
	ErrInvalidArchetype = errors.New("invalid archetype in download token")
	// ErrReportNotFound means the archetype's PDF is missing from blob storage.
	ErrReportNotFound = errors.New("PDF report not found")
)

// Claims are the JWT claims of a download link. The subject is the archetype
// and the ID names the grant record in the store.
type Claims struct {
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 download tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a signer. ttl is the lifetime written into exp.
func NewTokens(secret string, ttl time.Duration, now func() time.Time) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("download secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// Mint returns a signed token and its id.
func (t *Tokens) Mint(archetype string) (token, id string, err error) {
	id = uuid.NewString()
	issued := t.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        id,
		Subject:   archetype,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(t.ttl)),
	}}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign download token: %w", err)
	}
	return token, id, nil
}

// Parse verifies a token. Expired tokens report ErrExpired, anything else
// that fails verification reports ErrExpiredOrInvalid.
func (t *Tokens) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrExpiredOrInvalid)
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrExpiredOrInvalid, err)
	case claims.ID == "" || claims.Subject == "":
		return nil, fmt.Errorf("%w: token lacks id or subject", ErrExpiredOrInvalid)
	}
	return &claims, nil
}
