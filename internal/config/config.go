// Package config loads exporter settings from a YAML file, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. ENOTIF_DOWNLOAD_DIR.
const EnvPrefix = "ENOTIF"

// Config is the full exporter configuration.
type Config struct {
	Portal     PortalConfig     `mapstructure:"portal" yaml:"portal"`
	Download   DownloadConfig   `mapstructure:"download" yaml:"download"`
	Navigation NavigationConfig `mapstructure:"navigation" yaml:"navigation"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
}

// PortalConfig identifies the portal and the account used to sign in.
type PortalConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	// Password is normally left empty and resolved from the keyring.
	Password string `mapstructure:"password" yaml:"-"`
}

// DownloadConfig controls where the export lands and how completion is
// detected.
type DownloadConfig struct {
	Dir          string        `mapstructure:"dir" yaml:"dir"`
	Extension    string        `mapstructure:"extension" yaml:"extension"`
	Markers      []string      `mapstructure:"markers" yaml:"markers"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// NavigationConfig tunes the step controller.
type NavigationConfig struct {
	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
}

// BrowserConfig holds settings for the automated browser.
type BrowserConfig struct {
	ExecPath     string        `mapstructure:"exec_path" yaml:"exec_path"`
	ProfileDir   string        `mapstructure:"profile_dir" yaml:"profile_dir"`
	Headless     bool          `mapstructure:"headless" yaml:"headless"`
	WindowWidth  int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int           `mapstructure:"window_height" yaml:"window_height"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LoggerConfig defines all settings related to logging.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// -- Portal --
	v.SetDefault("portal.url", "http://enotifikasi.moh.gov.my/Login.aspx")

	// -- Download --
	v.SetDefault("download.dir", "downloads")
	v.SetDefault("download.extension", ".xls")
	v.SetDefault("download.markers", []string{".crdownload", ".part", ".partial", ".download"})
	v.SetDefault("download.timeout", "240s")
	v.SetDefault("download.poll_interval", "1s")

	// -- Navigation --
	v.SetDefault("navigation.step_timeout", "30s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.timeout", "15m")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "enotifikasi-exporter")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")
}

// Init prepares v: defaults, the optional config file and the environment.
// A missing default config.yaml is not an error; a missing explicit cfgFile is.
// Variables from a .env file in the working directory are loaded first
// without overriding the real environment.
func Init(v *viper.Viper, cfgFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error loading .env: %w", err)
	}

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Short names kept for existing deployment scripts.
	_ = v.BindEnv("portal.username", "ENOTIF_USERNAME")
	_ = v.BindEnv("portal.password", "ENOTIF_PASSWORD")
	_ = v.BindEnv("download.dir", "ENOTIF_DOWNLOAD_DIR", "DOWNLOAD_DIR")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// Credentials are not required here; the export command checks them.
func (c *Config) Validate() error {
	if c.Portal.URL == "" {
		return fmt.Errorf("portal.url is a required configuration field")
	}
	if c.Download.Dir == "" {
		return fmt.Errorf("download.dir is a required configuration field")
	}
	if !strings.HasPrefix(c.Download.Extension, ".") {
		return fmt.Errorf("download.extension must start with a dot, got %q", c.Download.Extension)
	}
	if c.Download.Timeout <= 0 {
		return fmt.Errorf("download.timeout must be positive")
	}
	if c.Download.PollInterval <= 0 {
		return fmt.Errorf("download.poll_interval must be positive")
	}
	if c.Navigation.StepTimeout <= 0 {
		return fmt.Errorf("navigation.step_timeout must be positive")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser window size must be positive")
	}
	return nil
}
