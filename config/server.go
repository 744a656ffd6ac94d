// Package config loads settings for the salt server and the CLI client.
package config

import (
	"crypto/rsa"
	"encoding/pem"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Server configures the salt endpoint.
type Server struct {
	Port           string  `envconfig:"PORT" default:"3000"`
	SaltSecret     string  `envconfig:"SALT_SECRET" required:"true"`
	RateLimitRPS   float64 `envconfig:"SALT_RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int     `envconfig:"SALT_RATE_LIMIT_BURST" default:"10"`
	BodyLimit      string  `envconfig:"SALT_BODY_LIMIT" default:"16K"`
	VerifyKeysFile string  `envconfig:"SALT_VERIFY_KEYS_FILE"`
	LogLevel       string  `envconfig:"LOG_LEVEL" default:"info"`

	// TrustedProxies are CIDR ranges whose X-Forwarded-For is believed.
	TrustedProxies []string `envconfig:"SALT_TRUSTED_PROXIES"`
}

func LoadServer() (*Server, error) {
	cfg := &Server{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, errors.Wrap(err, "process server config")
	}
	return cfg, nil
}

// LoadVerifyKeys reads every RSA public key PEM block in path. With keys
// configured the salt endpoint only accepts tokens signed by one of them.
func LoadVerifyKeys(path string) ([]*rsa.PublicKey, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read verify keys")
	}

	var keys []*rsa.PublicKey
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(pem.EncodeToMemory(block))
		if err != nil {
			return nil, errors.Wrap(err, "parse verify key")
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, errors.Errorf("no public keys in %s", path)
	}
	return keys, nil
}
