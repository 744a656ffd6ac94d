package router

import (
	"bytes"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/yawdotio/totalbeginers-Suitters/types"
)

var errMissingJWT = errors.New("jwt is required")

// jwtFromBody pulls the token out of a salt request body and puts the body
// back for the handler.
func jwtFromBody(c echo.Context) ([]string, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	c.Request().Body = io.NopCloser(bytes.NewReader(raw))

	var req types.SaltRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.JWT == "" {
		return nil, errMissingJWT
	}
	return []string{req.JWT}, nil
}

// verifiedToken rejects tokens that are not RS256-signed by one of keys.
func (s *server) verifiedToken(keys []*rsa.PublicKey) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup:      "header:" + echo.HeaderAuthorization + ":Bearer ",
		TokenLookupFuncs: []middleware.ValuesExtractor{jwtFromBody},
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			var lastErr error
			for _, key := range keys {
				token, err := jwt.Parse(auth, func(*jwt.Token) (interface{}, error) {
					return key, nil
				}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
				if err == nil {
					return token, nil
				}
				lastErr = err
			}
			return nil, lastErr
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var parseErr *echojwt.TokenParsingError
			if errors.As(err, &parseErr) {
				s.requests.WithLabelValues("unauthorized").Inc()
				return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid jwt"})
			}
			s.requests.WithLabelValues("bad_request").Inc()
			return c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: errMissingJWT.Error()})
		},
	})
}
