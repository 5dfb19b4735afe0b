package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFiles(t *testing.T, appJSON, dotEnv string) {
	t.Helper()
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json")
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(jsonPath, []byte(appJSON), 0o600))
	require.NoError(t, os.WriteFile(envPath, []byte(dotEnv), 0o600))

	_ = Load()
	require.NoError(t, loadFromFiles(jsonPath, envPath))
	t.Cleanup(func() {
		mu.Lock()
		values = defaultValues()
		mu.Unlock()
	})
}

func TestLayering(t *testing.T) {
	withFiles(t,
		`{"app_port": "9000", "rate_limit_per_minute": 50, "cors_origins": "https://a.test"}`,
		"APP_PORT=9100\nCATALOG_CACHE_TTL=90s\n",
	)

	assert.Equal(t, "9100", AppPort(), ".env beats app.json")
	assert.Equal(t, 50, RateLimitPerMinute())
	assert.Equal(t, []string{"https://a.test"}, CORSOrigins())
	assert.Equal(t, 90*time.Second, CatalogCacheTTL())

	t.Setenv("APP_PORT", "9200")
	assert.Equal(t, "9200", AppPort(), "environment beats files")
}

func TestInvalidValuesFallBack(t *testing.T) {
	withFiles(t, `{}`, "SESSION_TTL=soon\nMAX_BODY_BYTES=-1\nDB_DRIVER=oracle\n")

	assert.Equal(t, defaultSessionTTL, SessionTTL())
	assert.EqualValues(t, 4<<20, MaxBodyBytes())
	assert.Equal(t, "sqlite", DatabaseDriver())
	assert.Equal(t, defaultSQLiteDSN, DatabaseDSN())
}

func TestDriverDefaultDSN(t *testing.T) {
	withFiles(t, `{}`, "DB_DRIVER=postgres\n")
	assert.Equal(t, defaultPostgresDSN, DatabaseDSN())
}

func TestGRPCPortCanBeDisabled(t *testing.T) {
	assert.Equal(t, defaultGRPCPort, GRPCPort())

	Set("GRPC_PORT", "")
	t.Cleanup(func() {
		mu.Lock()
		delete(overrides, "GRPC_PORT")
		mu.Unlock()
	})
	assert.Empty(t, GRPCPort())
}

func TestList(t *testing.T) {
	Set("TEST_LIST", " a, ,b ,")
	assert.Equal(t, []string{"a", "b"}, List("TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, List("TEST_MISSING", []string{"x"}))
	assert.Empty(t, TrustedProxies())
}
