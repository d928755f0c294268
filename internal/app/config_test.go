package app

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://books@db/books")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":9090", cfg.OpsAddr)
	assert.Equal(t, 6, cfg.SequencePadLength)
	assert.True(t, cfg.SequenceResetAnnually)
	assert.True(t, cfg.MigrateOnStart)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://books@db/books")
	t.Setenv("APP_ENV", "production")
	t.Setenv("SEQUENCE_PAD_LENGTH", "8")
	t.Setenv("SEQUENCE_RESET_ANNUALLY", "false")
	t.Setenv("CACHE_TTL", "30s")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8, cfg.SequencePadLength)
	assert.False(t, cfg.SequenceResetAnnually)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
}

func TestLoadConfigRejectsBadPadding(t *testing.T) {
	t.Setenv("SEQUENCE_PAD_LENGTH", "0")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("SEQUENCE_PAD_LENGTH", "19")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json"}, &buf).Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	buf.Reset()
	newLogger(&Config{LogFormat: "pretty"}, &buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	newLogger(nil, &buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestInTestModeFollowsEnvironment(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
