package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source_url: https://calendar.example.edu/
top_k: 5
similarity_threshold: 400
time_range_policy: date_only
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://calendar.example.edu/", cfg.SourceURL)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, defaultThreshold, cfg.SimilarityThreshold)
	assert.Equal(t, "date_only", cfg.TimeRangePolicy)
	assert.Equal(t, defaultMaxWindowDays, cfg.MaxWindowDays)
	assert.Equal(t, defaultRefreshCron, cfg.RefreshCron)
	assert.Equal(t, ".ev", cfg.EventSelector)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"timezone": "timezone: Mars/Olympus_Mons\n",
		"cron":     "refresh: every now and then\n",
		"policy":   "time_range_policy: end_time\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Listen = "0.0.0.0:9000"
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveRejectsBadInput(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}
