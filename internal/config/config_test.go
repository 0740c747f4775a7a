package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves the test into an empty directory so no stray config.yaml or
// .env leaks in.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestDefaults(t *testing.T) {
	chdir(t)
	v := viper.New()
	require.NoError(t, Init(v, ""))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "http://enotifikasi.moh.gov.my/Login.aspx", cfg.Portal.URL)
	assert.Equal(t, "downloads", cfg.Download.Dir)
	assert.Equal(t, ".xls", cfg.Download.Extension)
	assert.Equal(t, []string{".crdownload", ".part", ".partial", ".download"}, cfg.Download.Markers)
	assert.Equal(t, 240*time.Second, cfg.Download.Timeout)
	assert.Equal(t, time.Second, cfg.Download.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Navigation.StepTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
	assert.Equal(t, 1080, cfg.Browser.WindowHeight)
	assert.Equal(t, "enotifikasi-exporter", cfg.Logger.ServiceName)
}

func TestConfigFile(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "exporter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
portal:
  username: clinic01
download:
  dir: /data/exports
  timeout: 5m
navigation:
  step_timeout: 45s
browser:
  headless: false
`), 0o644))

	v := viper.New()
	require.NoError(t, Init(v, path))
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "clinic01", cfg.Portal.Username)
	assert.Equal(t, "/data/exports", cfg.Download.Dir)
	assert.Equal(t, 5*time.Minute, cfg.Download.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Navigation.StepTimeout)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, ".xls", cfg.Download.Extension, "unset keys keep defaults")
}

func TestMissingExplicitConfigFile(t *testing.T) {
	chdir(t)
	err := Init(viper.New(), "does-not-exist.yaml")
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	chdir(t)
	t.Setenv("ENOTIF_USERNAME", "env-user")
	t.Setenv("ENOTIF_PASSWORD", "env-secret")
	t.Setenv("DOWNLOAD_DIR", "/tmp/from-env")
	t.Setenv("ENOTIF_NAVIGATION_STEP_TIMEOUT", "10s")

	v := viper.New()
	require.NoError(t, Init(v, ""))
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "env-user", cfg.Portal.Username)
	assert.Equal(t, "env-secret", cfg.Portal.Password)
	assert.Equal(t, "/tmp/from-env", cfg.Download.Dir)
	assert.Equal(t, 10*time.Second, cfg.Navigation.StepTimeout)
}

func TestDotEnvFile(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ENOTIF_USERNAME=dotenv-user\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ENOTIF_USERNAME") })

	v := viper.New()
	require.NoError(t, Init(v, ""))
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "dotenv-user", cfg.Portal.Username)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Portal:     PortalConfig{URL: "http://portal/Login.aspx"},
			Download:   DownloadConfig{Dir: "out", Extension: ".xls", Timeout: time.Minute, PollInterval: time.Second},
			Navigation: NavigationConfig{StepTimeout: time.Second},
			Browser:    BrowserConfig{WindowWidth: 800, WindowHeight: 600},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no url", func(c *Config) { c.Portal.URL = "" }},
		{"no dir", func(c *Config) { c.Download.Dir = "" }},
		{"extension without dot", func(c *Config) { c.Download.Extension = "xls" }},
		{"zero timeout", func(c *Config) { c.Download.Timeout = 0 }},
		{"zero poll", func(c *Config) { c.Download.PollInterval = 0 }},
		{"zero step timeout", func(c *Config) { c.Navigation.StepTimeout = 0 }},
		{"zero window", func(c *Config) { c.Browser.WindowWidth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
