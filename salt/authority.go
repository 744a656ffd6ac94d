// Package salt derives the per-identity secret that is mixed into a zkLogin
// address. The derivation is a keyed hash of the token subject, so the
// same subject gets the same salt on any device without a database.
package salt

import (
	"crypto/hmac"
	"crypto/sha256"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Size is the number of digest bytes kept. zkLogin requires salt < 2^128.
const Size = 16

var (
	ErrSaltOverflow  = errors.New("derived salt does not fit in 128 bits")
	ErrMissingSecret = errors.New("salt secret is not configured")
	ErrMissingSub    = errors.New("token has no sub claim")
)

var maxSalt = new(big.Int).Lsh(big.NewInt(1), 8*Size)

// Authority derives salts from a server held secret. Rotating the secret
// changes every derived address irreversibly.
type Authority struct {
	secret []byte
}

func NewAuthority(secret string) (*Authority, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Authority{secret: []byte(secret)}, nil
}

// Derive returns the decimal salt for sub.
func (a *Authority) Derive(sub string) (string, error) {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(sub))
	return toSalt(mac.Sum(nil)[:Size])
}

// ForToken derives the salt for the sub claim of an unverified token.
func (a *Authority) ForToken(token string) (string, error) {
	sub, err := SubjectOf(token)
	if err != nil {
		return "", err
	}
	return a.Derive(sub)
}

// SubjectOf reads sub from a syntactically valid token without checking
// its signature.
func SubjectOf(token string) (string, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", errors.Wrap(err, "parse token")
	}
	if claims.Subject == "" {
		return "", ErrMissingSub
	}
	return claims.Subject, nil
}

func toSalt(b []byte) (string, error) {
	n := new(big.Int).SetBytes(b)
	if n.Cmp(maxSalt) >= 0 {
		return "", ErrSaltOverflow
	}
	return n.String(), nil
}
