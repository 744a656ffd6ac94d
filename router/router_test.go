package router

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yawdotio/totalbeginers-Suitters/salt"
	"github.com/yawdotio/totalbeginers-Suitters/types"
)

const oracleSalt = "298425862164995226741827086525030590252"

func setupTestRouter(t *testing.T, opts Options) *echo.Echo {
	t.Helper()
	authority, err := salt.NewAuthority("test")
	require.NoError(t, err)
	opts.Authority = authority
	opts.Logger = zerolog.Nop()

	e := echo.New()
	RegisterRoutes(e, opts)
	return e
}

func hsToken(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"aud": "app",
	}).SignedString([]byte("whatever"))
	require.NoError(t, err)
	return tok
}

func rsToken(t *testing.T, key *rsa.PrivateKey, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": sub,
		"aud": "app",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)
	return tok
}

func postSalt(e *echo.Echo, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, SaltPath, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	e.ServeHTTP(rec, req)
	return rec
}

func saltBody(token string) string {
	b, _ := json.Marshal(types.SaltRequest{JWT: token})
	return string(b)
}

func TestSalt(t *testing.T) {
	e := setupTestRouter(t, Options{})

	rec := postSalt(e, saltBody(hsToken(t, "user123")))
	assert.Equal(t, http.StatusOK, rec.Code)

	var res types.SaltResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, oracleSalt, res.Salt)
}

func TestSalt_StableAcrossRestarts(t *testing.T) {
	first := postSalt(setupTestRouter(t, Options{}), saltBody(hsToken(t, "someone")))
	second := postSalt(setupTestRouter(t, Options{}), saltBody(hsToken(t, "someone")))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestSalt_BadRequest(t *testing.T) {
	e := setupTestRouter(t, Options{})

	for _, body := range []string{`{}`, `not json`, `{"jwt":"garbage"}`, saltBody(hsToken(t, ""))} {
		rec := postSalt(e, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "error")
	}
}

func TestSalt_RateLimit(t *testing.T) {
	e := setupTestRouter(t, Options{RateLimit: 1, Burst: 2})
	body := saltBody(hsToken(t, "user123"))

	assert.Equal(t, http.StatusOK, postSalt(e, body).Code)
	assert.Equal(t, http.StatusOK, postSalt(e, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, postSalt(e, body).Code)
}

func postSaltFrom(e *echo.Echo, body, remote, forwardedFor string) int {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, SaltPath, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remote
	if forwardedFor != "" {
		req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
	}
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestSalt_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	e := setupTestRouter(t, Options{RateLimit: 1, Burst: 2})
	extractor, err := IPExtractor(nil)
	require.NoError(t, err)
	e.IPExtractor = extractor
	body := saltBody(hsToken(t, "user123"))

	var limited int
	for i := 0; i < 50; i++ {
		if postSaltFrom(e, body, "203.0.113.7:4000", fmt.Sprintf("198.51.100.%d", i)) == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 48, limited)
}

func TestSalt_RateLimitTrustedProxy(t *testing.T) {
	e := setupTestRouter(t, Options{RateLimit: 1, Burst: 1})
	extractor, err := IPExtractor([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	e.IPExtractor = extractor
	body := saltBody(hsToken(t, "user123"))

	assert.Equal(t, http.StatusOK, postSaltFrom(e, body, "10.1.2.3:4000", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, postSaltFrom(e, body, "10.1.2.3:4000", "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, postSaltFrom(e, body, "10.1.2.3:4000", "198.51.100.2"))

	assert.Equal(t, http.StatusOK, postSaltFrom(e, body, "203.0.113.7:4000", "198.51.100.3"))
	assert.Equal(t, http.StatusTooManyRequests, postSaltFrom(e, body, "203.0.113.7:4000", "198.51.100.4"))
}

func TestIPExtractor_BadCIDR(t *testing.T) {
	_, err := IPExtractor([]string{"not-a-cidr"})
	assert.Error(t, err)
}

func TestSalt_BodyLimit(t *testing.T) {
	e := setupTestRouter(t, Options{BodyLimit: "1K"})

	rec := postSalt(e, saltBody(strings.Repeat("a", 2048)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSalt_VerifiedTokens(t *testing.T) {
	trusted, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	e := setupTestRouter(t, Options{VerifyKeys: []*rsa.PublicKey{&trusted.PublicKey}})

	rec := postSalt(e, saltBody(rsToken(t, trusted, "user123")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), oracleSalt)

	assert.Equal(t, http.StatusUnauthorized, postSalt(e, saltBody(rsToken(t, other, "user123"))).Code)
	assert.Equal(t, http.StatusUnauthorized, postSalt(e, saltBody(hsToken(t, "user123"))).Code)
	assert.Equal(t, http.StatusBadRequest, postSalt(e, `{}`).Code)
}

func TestHealth(t *testing.T) {
	e := setupTestRouter(t, Options{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetrics(t *testing.T) {
	e := setupTestRouter(t, Options{})
	postSalt(e, saltBody(hsToken(t, "user123")))
	postSalt(e, `{}`)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `zklogin_salt_requests_total{result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `zklogin_salt_requests_total{result="bad_request"} 1`)
}

func TestIPLimiter(t *testing.T) {
	assert.Nil(t, newIPLimiter(0, 1))
	assert.True(t, (*ipLimiter)(nil).allow("1.2.3.4"))

	now := time.Unix(1000, 0)
	l := newIPLimiter(1, 1)
	l.clock = func() time.Time { return now }

	assert.True(t, l.allow("1.2.3.4"))
	assert.False(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("5.6.7.8"))

	now = now.Add(time.Second)
	assert.True(t, l.allow("1.2.3.4"))
}
