package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.True(t, cfg.SeedSample)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
listen: ":9000"
week_start: Monday
timezone: UTC
chat:
  model: llama-3.1-8b-instant
ics:
  - name: team
    url: https://example.com/team.ics
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.Equal(t, time.Monday, cfg.WeekStartDay())
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Chat.Model)
	assert.Equal(t, defaultChatURL, cfg.Chat.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Chat.Timeout())
	assert.Equal(t, 5000, cfg.MaxOccurrences)
	assert.False(t, cfg.SeedSample)
	require.Len(t, cfg.ICS, 1)
	assert.Equal(t, "team", cfg.ICS[0].ID)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus_Mons"
	loc, err := cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestChatAPIKeyFromEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chat.APIKeyEnv = "PLANCAL_TEST_KEY"
	t.Setenv("PLANCAL_TEST_KEY", "secret")
	assert.Equal(t, "secret", cfg.Chat.APIKey())
}

func TestChatRetriesDefault(t *testing.T) {
	assert.Equal(t, 2, DefaultConfig().Chat.Retries())

	dir := t.TempDir()
	first, err := Load(filepath.Join(dir, "fresh.yaml"))
	require.NoError(t, err)
	require.NotNil(t, first.Chat.MaxRetries)
	assert.Equal(t, 2, *first.Chat.MaxRetries)

	cases := map[string]struct {
		body string
		want int
	}{
		"absent":   {body: "chat:\n  model: m\n", want: 2},
		"explicit": {body: "chat:\n  max_retries: 0\n", want: 0},
		"custom":   {body: "chat:\n  max_retries: 5\n", want: 5},
		"negative": {body: "chat:\n  max_retries: -3\n", want: 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o600))
			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.Chat.Retries())
		})
	}
}
