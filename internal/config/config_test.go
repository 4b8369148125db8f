package config

import (
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg, err := Load()
	require.NoError(t, err)
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COMMIT_MAX_ATTEMPTS", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 3, cfg.CommitMaxAttempts)
	assert.Equal(t, 1000, cfg.CommitRetryDelayMS)
	assert.Equal(t, "pos.tickets", cfg.TicketTopic)
	assert.True(t, cfg.RequireNotesOnCriticalVariance)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("COMMIT_MAX_ATTEMPTS", "5")
	t.Setenv("COMMIT_RETRY_DELAY_MS", "250")
	t.Setenv("REQUIRE_NOTES_ON_CRITICAL_VARIANCE", "false")
	t.Setenv("DATABASE_URL", "  sqlite://vivero.db ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, 5, cfg.CommitMaxAttempts)
	assert.Equal(t, 250, cfg.CommitRetryDelayMS)
	assert.False(t, cfg.RequireNotesOnCriticalVariance)
	assert.Equal(t, "sqlite://vivero.db", cfg.DatabaseURL)
}

func TestLoadClampsInvalidValues(t *testing.T) {
	t.Setenv("COMMIT_MAX_ATTEMPTS", "0")
	t.Setenv("STOCK_CACHE_TTL_SECONDS", "-4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.CommitMaxAttempts)
	assert.Equal(t, 20, cfg.StockCacheTTLSeconds)
}

func TestLoadResolvesStoreTimezone(t *testing.T) {
	t.Setenv("STORE_TIMEZONE", "America/Asuncion")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "America/Asuncion", cfg.Location.String())
}

func TestLoadRejectsUnknownStoreTimezone(t *testing.T) {
	t.Setenv("STORE_TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load()
	assert.Error(t, err)
}
