package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearConsentCoreEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SECRET_KEY", "CONSENT_TIMEOUT_SECONDS", "DATABASE_URL", "FRONTEND_URL",
		"PRODUCTION_MODE", "REDIS_ADDR", "VAULT_ADDR", "PORT", "LOG_LEVEL",
	}
	for _, k := range keys {
		v, had := os.LookupEnv(k)
		os.Unsetenv(k)
		if had {
			t.Cleanup(func(k, v string) func() {
				return func() { os.Setenv(k, v) }
			}(k, v))
		}
	}
}

func TestLoadFailsFastWithoutSecretKey(t *testing.T) {
	clearConsentCoreEnv(t)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearConsentCoreEnv(t)
	os.Setenv("SECRET_KEY", "test-secret")
	t.Cleanup(func() { os.Unsetenv("SECRET_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.True(t, cfg.ProductionMode)
	require.Equal(t, "http://localhost:3000", cfg.FrontendURL)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	clearConsentCoreEnv(t)
	os.Setenv("SECRET_KEY", "test-secret")
	os.Setenv("PORT", "9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("PRODUCTION_MODE", "false")
	t.Cleanup(func() {
		os.Unsetenv("SECRET_KEY")
		os.Unsetenv("PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("PRODUCTION_MODE")
	})

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "debug", cfg.LogLevel)
	require.False(t, cfg.ProductionMode)
}

func TestLoadLeavesOptionalBackendsEmptyByDefault(t *testing.T) {
	clearConsentCoreEnv(t)
	os.Setenv("SECRET_KEY", "test-secret")
	t.Cleanup(func() { os.Unsetenv("SECRET_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.DatabaseURL)
	require.Empty(t, cfg.VaultAddr)
	require.Empty(t, cfg.Developers)
}
