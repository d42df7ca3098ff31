package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
postgres:
  dsn: "host=db"
paystack:
  secret_key: "sk_test_x"
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Postgres.TxTimeout)
	assert.Equal(t, int64(100), cfg.Ledger.MinTransferAmount)
	assert.Equal(t, 5, cfg.Auth.MaxActiveKeys)
	assert.Equal(t, "https://api.paystack.co", cfg.Paystack.BaseURL)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_live_env")
	t.Setenv("JWT_SECRET", "jwt-env")

	cfg, err := Parse([]byte(`
postgres:
  dsn: "host=db"
  tx_timeout: 2s
`))
	require.NoError(t, err)

	assert.Equal(t, "host=db password=s3cret", cfg.Postgres.DSN)
	assert.Equal(t, 2*time.Second, cfg.Postgres.TxTimeout)
	assert.Equal(t, "sk_live_env", cfg.Paystack.SecretKey)
	assert.Equal(t, "jwt-env", cfg.Auth.JWTSecret)
}

func TestParse_Invalid(t *testing.T) {
	t.Setenv("PAYSTACK_SECRET_KEY", "")

	_, err := Parse([]byte(`
ledger:
  min_transfer_amount: 0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.dsn is required")
	assert.Contains(t, err.Error(), "ledger.min_transfer_amount must be positive")
	assert.Contains(t, err.Error(), "paystack.secret_key is required")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
postgres:
  dsn: "host=file"
paystack:
  secret_key: "sk_test_file"
kafka:
  brokers: ["k1:9092", "k2:9092"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "wallet-events", cfg.Kafka.Topic)
}

func TestPath(t *testing.T) {
	t.Setenv("WALLET_CONFIG", "")
	assert.Equal(t, "internal/config/config.yaml", Path())
	t.Setenv("WALLET_CONFIG", "/etc/wallet.yaml")
	assert.Equal(t, "/etc/wallet.yaml", Path())
}
