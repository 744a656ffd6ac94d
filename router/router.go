package router

import (
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/yawdotio/totalbeginers-Suitters/salt"
	"github.com/yawdotio/totalbeginers-Suitters/types"
)

const SaltPath = "/api/zklogin/salt"

type Options struct {
	Authority *salt.Authority
	RateLimit float64
	Burst     int
	BodyLimit string
	// VerifyKeys switches the salt endpoint to verified tokens only.
	VerifyKeys []*rsa.PublicKey
	Registry   *prometheus.Registry
	Logger     zerolog.Logger
}

func RegisterRoutes(e *echo.Echo, opts Options) {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.BodyLimit == "" {
		opts.BodyLimit = "16K"
	}
	s := newServer(opts)

	e.GET("/health", getHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))

	chain := []echo.MiddlewareFunc{
		middleware.BodyLimit(opts.BodyLimit),
		s.rateLimit(newIPLimiter(opts.RateLimit, opts.Burst)),
	}
	if s.strict {
		chain = append(chain, s.verifiedToken(opts.VerifyKeys))
	}
	e.POST(SaltPath, s.postSalt, chain...)
}

func getHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, types.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *server) postSalt(c echo.Context) error {
	var req types.SaltRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil || req.JWT == "" {
		s.requests.WithLabelValues("bad_request").Inc()
		return c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "jwt is required"})
	}

	sub, err := s.subject(c, req.JWT)
	if err != nil {
		s.requests.WithLabelValues("bad_request").Inc()
		return c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid jwt"})
	}

	start := time.Now()
	value, err := s.authority.Derive(sub)
	s.duration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Error().Err(err).Msg("salt derivation failed")
		s.requests.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "failed to derive salt"})
	}

	s.requests.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, types.SaltResponse{Salt: value})
}

// subject uses the verified token when the middleware produced one and
// falls back to reading the payload unverified.
func (s *server) subject(c echo.Context, raw string) (string, error) {
	if s.strict {
		if token, ok := c.Get("user").(*jwt.Token); ok {
			sub, err := token.Claims.GetSubject()
			if err != nil || sub == "" {
				return "", salt.ErrMissingSub
			}
			return sub, nil
		}
	}
	return salt.SubjectOf(raw)
}
