package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendSealed = "sealed"
)

// Client configures the zklogin CLI. Values come from defaults, then the
// YAML file, then ZKLOGIN_* environment variables.
type Client struct {
	FullnodeURL string        `yaml:"fullnodeUrl" split_words:"true"`
	ProverURL   string        `yaml:"proverUrl" split_words:"true"`
	SaltURL     string        `yaml:"saltUrl" split_words:"true"`
	ClientID    string        `yaml:"clientId" split_words:"true"`
	RedirectURI string        `yaml:"redirectUri" split_words:"true"`
	Timeout     time.Duration `yaml:"timeout"`
	Session     SessionConfig `yaml:"session"`
	LogLevel    string        `yaml:"logLevel" split_words:"true"`
}

type SessionConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	RedisAddr  string `yaml:"redisAddr" split_words:"true"`
	Namespace  string `yaml:"namespace"`
	Passphrase string `yaml:"-"`
}

func DefaultClient() Client {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return Client{
		FullnodeURL: "https://fullnode.testnet.sui.io:443",
		ProverURL:   "https://prover-dev.mystenlabs.com/v1",
		SaltURL:     "http://localhost:3000/api/zklogin/salt",
		RedirectURI: "http://localhost:5173/auth/callback",
		Timeout:     30 * time.Second,
		Session: SessionConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(dir, "zklogin", "session.db"),
		},
		LogLevel: "warn",
	}
}

// LoadClient reads path when it exists and applies environment overrides.
func LoadClient(path string) (*Client, error) {
	cfg := DefaultClient()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, errors.Wrapf(err, "parse %s", path)
			}
		case !os.IsNotExist(err):
			return nil, errors.Wrapf(err, "read %s", path)
		}
	}

	if err := envconfig.Process("zklogin", &cfg); err != nil {
		return nil, errors.Wrap(err, "process client env")
	}
	return &cfg, cfg.validate()
}

func (c *Client) validate() error {
	switch c.Session.Backend {
	case BackendSQLite, BackendSealed:
		if c.Session.Path == "" {
			return errors.New("session path is required")
		}
	case BackendRedis:
		if c.Session.RedisAddr == "" {
			return errors.New("session redis address is required")
		}
	default:
		return errors.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Session.Backend == BackendSealed && c.Session.Passphrase == "" {
		return errors.New("sealed session backend needs ZKLOGIN_SESSION_PASSPHRASE")
	}
	return nil
}
