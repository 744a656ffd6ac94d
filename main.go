// main.go
package main

import (
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yawdotio/totalbeginers-Suitters/config"
	"github.com/yawdotio/totalbeginers-Suitters/router"
	"github.com/yawdotio/totalbeginers-Suitters/salt"
)

func newServer(cfg *config.Server, logger zerolog.Logger) (*echo.Echo, error) {
	authority, err := salt.NewAuthority(cfg.SaltSecret)
	if err != nil {
		return nil, err
	}
	keys, err := config.LoadVerifyKeys(cfg.VerifyKeysFile)
	if err != nil {
		return nil, err
	}

	extractor, err := router.IPExtractor(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = extractor

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	router.RegisterRoutes(e, router.Options{
		Authority:  authority,
		RateLimit:  cfg.RateLimitRPS,
		Burst:      cfg.RateLimitBurst,
		BodyLimit:  cfg.BodyLimit,
		VerifyKeys: keys,
		Registry:   registry,
		Logger:     logger,
	})
	return e, nil
}

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	e, err := newServer(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	log.Info().Str("port", cfg.Port).Bool("verifiedTokens", cfg.VerifyKeysFile != "").Msg("salt server starting")
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%s", cfg.Port)))
}
