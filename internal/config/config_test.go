package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STORE", "")
	t.Setenv("INITIAL_STATUS", "")
	t.Setenv("COOKIE_HASH_KEY", "")
	t.Setenv("COOKIE_BLOCK_KEY", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, "confirmed", cfg.InitialStatus)
	assert.Equal(t, 30*time.Second, cfg.SlotCacheTTL)
	assert.Zero(t, cfg.AutoConfirmAfter)
	assert.Error(t, cfg.RequireCookieKeys())
}

func TestFromEnvCookieKeys(t *testing.T) {
	t.Setenv("COOKIE_HASH_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))
	t.Setenv("COOKIE_BLOCK_KEY", base64.StdEncoding.EncodeToString(make([]byte, 16))+"\n")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Len(t, cfg.CookieHashKey, 32)
	assert.Len(t, cfg.CookieBlockKey, 16)
	assert.NoError(t, cfg.RequireCookieKeys())
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, val string
	}{
		{"STORE", "sqlite"},
		{"INITIAL_STATUS", "seated"},
		{"SLOT_CACHE_TTL_SECONDS", "zero"},
		{"SWEEP_INTERVAL_SECONDS", "0"},
		{"DEFAULT_TIMEZONE", "Mars/Olympus"},
		{"COOKIE_HASH_KEY", "!!!"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
