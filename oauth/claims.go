package oauth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var ErrInvalidToken = errors.New("invalid identity token")

// Claims holds the identity token fields this module reads. Sub and Aud
// together are the durable identity key; the rest is display data.
type Claims struct {
	Sub     string
	Aud     string
	Iss     string
	Nonce   string
	Name    string
	Email   string
	Picture string
}

// DecodeClaims parses the token payload without verifying its signature.
// The proving service is what vouches for the token.
func DecodeClaims(token string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.Wrap(ErrInvalidToken, "missing sub claim")
	}
	aud, err := mc.GetAudience()
	if err != nil || len(aud) == 0 || aud[0] == "" {
		return nil, errors.Wrap(ErrInvalidToken, "missing aud claim")
	}
	iss, _ := mc.GetIssuer()

	return &Claims{
		Sub:     sub,
		Aud:     aud[0],
		Iss:     iss,
		Nonce:   stringClaim(mc, "nonce"),
		Name:    stringClaim(mc, "name"),
		Email:   stringClaim(mc, "email"),
		Picture: stringClaim(mc, "picture"),
	}, nil
}

func stringClaim(mc jwt.MapClaims, name string) string {
	s, _ := mc[name].(string)
	return s
}
