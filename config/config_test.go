package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"scdl/config"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempConfigHome(t *testing.T) string {
	t.Helper()
	orig := xdg.ConfigHome
	dir := t.TempDir()
	xdg.ConfigHome = dir
	t.Cleanup(func() { xdg.ConfigHome = orig })
	return filepath.Join(dir, "scdl", "config.yaml")
}

func writeConfig(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestGetClientConfig(t *testing.T) {
	def := config.DefaultClientConfig()

	tests := []struct {
		name      string
		write     bool
		contents  string
		expectErr bool
		check     func(t *testing.T, got *config.ClientConfig)
	}{
		{
			name: "missing file returns defaults",
			check: func(t *testing.T, got *config.ClientConfig) {
				assert.Equal(t, def, *got)
			},
		},
		{
			name:  "empty file returns defaults",
			write: true,
			check: func(t *testing.T, got *config.ClientConfig) {
				assert.Equal(t, def, *got)
			},
		},
		{
			name:      "invalid yaml returns error",
			write:     true,
			contents:  ": not yaml",
			expectErr: true,
		},
		{
			name:     "partial file keeps defaults",
			write:    true,
			contents: "endpoint: http://media.local:8080\nformat: opus\npollInterval: 2s\n",
			check: func(t *testing.T, got *config.ClientConfig) {
				assert.Equal(t, "http://media.local:8080", got.Endpoint)
				assert.Equal(t, "opus", got.Format)
				assert.Equal(t, 2*time.Second, got.PollInterval)
				assert.Equal(t, def.Quality, got.Quality)
				assert.Equal(t, def.StaggerDelay, got.StaggerDelay)
				assert.Equal(t, def.RequestTimeout, got.RequestTimeout)
				assert.Equal(t, def.HistoryPath, got.HistoryPath)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := withTempConfigHome(t)
			assert.Equal(t, path, config.ClientConfigPath())
			if tt.write {
				writeConfig(t, path, tt.contents)
			}

			got, err := config.GetClientConfig()
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestServerEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DEBUG", "DOWNLOAD_DIR", "MAX_CONCURRENT_DOWNLOADS", "YTDLP_PATH", "CORS_ORIGINS", "GIN_MODE"} {
		t.Setenv(key, "")
	}

	assert.Equal(t, 5000, config.GetPort())
	assert.False(t, config.IsDebug())
	assert.Equal(t, "downloads", config.GetDownloadLocation())
	assert.Equal(t, 3, config.GetMaxConcurrent())
	assert.Equal(t, "yt-dlp", config.GetYtdlpPath())
	assert.Equal(t, config.DefaultCORSOrigins, config.GetCORSOrigins())
	assert.Equal(t, "release", config.GetGinMode())
}

func TestServerEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DEBUG", "true")
	t.Setenv("DOWNLOAD_DIR", "/srv/audio")
	t.Setenv("MAX_CONCURRENT_DOWNLOADS", "5")
	t.Setenv("YTDLP_PATH", "/opt/bin/yt-dlp")
	t.Setenv("CORS_ORIGINS", " https://a.example , https://b.example,")
	t.Setenv("GIN_MODE", "")

	assert.Equal(t, 8080, config.GetPort())
	assert.True(t, config.IsDebug())
	assert.Equal(t, "/srv/audio", config.GetDownloadLocation())
	assert.Equal(t, 5, config.GetMaxConcurrent())
	assert.Equal(t, "/opt/bin/yt-dlp", config.GetYtdlpPath())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, config.GetCORSOrigins())
	assert.Equal(t, "debug", config.GetGinMode())
}

func TestServerEnvInvalidNumbers(t *testing.T) {
	t.Setenv("PORT", "http")
	t.Setenv("MAX_CONCURRENT_DOWNLOADS", "-2")

	assert.Equal(t, 5000, config.GetPort())
	assert.Equal(t, 3, config.GetMaxConcurrent())
}
