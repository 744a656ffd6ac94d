package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer(t *testing.T) {
	t.Setenv("SALT_SECRET", "test")
	t.Setenv("PORT", "4000")
	t.Setenv("SALT_TRUSTED_PROXIES", "10.0.0.0/8,192.168.0.0/16")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.SaltSecret)
	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, "16K", cfg.BodyLimit)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.TrustedProxies)
}

func TestLoadServer_MissingSecret(t *testing.T) {
	t.Setenv("SALT_SECRET", "")
	os.Unsetenv("SALT_SECRET")

	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Session.Backend)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Contains(t, cfg.FullnodeURL, "sui.io")
}

func TestLoadClient_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zklogin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
proverUrl: http://prover.local
clientId: from-file
timeout: 45s
session:
  backend: redis
  redisAddr: localhost:6379
`), 0o600))
	t.Setenv("ZKLOGIN_CLIENT_ID", "from-env")

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "http://prover.local", cfg.ProverURL)
	assert.Equal(t, "from-env", cfg.ClientID)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, BackendRedis, cfg.Session.Backend)
	assert.Equal(t, "localhost:6379", cfg.Session.RedisAddr)
}

func TestLoadClient_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zklogin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  backend: floppy\n"), 0o600))
	_, err := LoadClient(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("session:\n  backend: sealed\n"), 0o600))
	_, err = LoadClient(path)
	assert.Error(t, err)

	t.Setenv("ZKLOGIN_SESSION_PASSPHRASE", "pw")
	_, err = LoadClient(path)
	assert.NoError(t, err)
}

func TestLoadVerifyKeys(t *testing.T) {
	keys, err := LoadVerifyKeys("")
	require.NoError(t, err)
	assert.Nil(t, keys)

	var pemData []byte
	for i := 0; i < 2; i++ {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		der, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
		require.NoError(t, err)
		pemData = append(pemData, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})...)
	}
	path := filepath.Join(t.TempDir(), "keys.pem")
	require.NoError(t, os.WriteFile(path, pemData, 0o600))

	keys, err = LoadVerifyKeys(path)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, os.WriteFile(path, []byte("nothing here"), 0o600))
	_, err = LoadVerifyKeys(path)
	assert.Error(t, err)
}
