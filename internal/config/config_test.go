package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http", cfg.Ledger.Transport)
	assert.Equal(t, "payRent", cfg.Ledger.PaymentFunction)
	assert.Equal(t, 2*time.Second, cfg.Directory.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, "memory", cfg.Events.Transport)
	assert.Equal(t, []string{"/health", "/metrics"}, cfg.Auth.SkipPaths)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settlement.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ledger:
  transport: rpc
  rpc_url: http://localhost:20332
  contract_hash: "0x1234"
  payment_function: processPayment
directory:
  timeout: 500ms
`), 0o600))
	t.Setenv(FileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "rpc", cfg.Ledger.Transport)
	assert.Equal(t, "processPayment", cfg.Ledger.PaymentFunction)
	assert.Equal(t, 500*time.Millisecond, cfg.Directory.Timeout)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() Config {
		return Config{
			Server: ServerConfig{Port: 8080},
			Ledger: LedgerConfig{Transport: "http", PaymentFunction: "payRent"},
			Events: EventsConfig{Transport: "memory"},
		}
	}

	cfg := base()
	cfg.Ledger.PaymentFunction = "terminateAgreement"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Ledger.Transport = "rpc"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Events.Transport = "rocketmq"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	assert.NoError(t, cfg.Validate())
}
