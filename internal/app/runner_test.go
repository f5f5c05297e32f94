package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AdminAddress: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		TaxAddress:   "CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM",
		ProgramID:    config.DefaultProgramID,
		TradeFeeRate: "0.01",
		Curve: config.CurveConfig{
			K:                    config.DefaultK,
			VirtualTokenReserves: config.DefaultVirtualTokenReserves,
			SupplyCap:            config.DefaultSupplyCap,
			InitialSupply:        config.DefaultInitialSupply,
			PoolSeedTokens:       config.DefaultPoolSeedTokens,
		},
		Health: config.HealthConfig{
			TimeoutMs:          1_000,
			Retries:            1,
			StalenessThreshold: 60,
			PollInterval:       15,
		},
		ListenAddr:  "127.0.0.1:0",
		JournalFile: filepath.Join(t.TempDir(), "journal.csv"),
		EventBuffer: 16,
	}
}

func TestRunnerServesAndJournals(t *testing.T) {
	cfg := testConfig(t)
	r, err := NewRunner(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "no rpc_url means the network is assumed live")

	creator, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	_, err = r.Protocol().CreateToken(creator.PublicKey(), "Token", "TKN", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))

	data, err := os.ReadFile(cfg.JournalFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "token.created")
	assert.Contains(t, string(data), creator.PublicKey().String())
}

func TestNewRunnerRejectsBadAddresses(t *testing.T) {
	cfg := testConfig(t)
	cfg.TaxAddress = "not-an-address"

	_, err := NewRunner(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}
