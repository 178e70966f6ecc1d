// Package config loads carrierconf settings from a YAML file and
// CARRIERCONF_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/superfly/carrierconf/database"
	"github.com/superfly/carrierconf/prefs"
)

// EnvPrefix is prepended to every environment override, with dots in the
// key replaced by underscores: CARRIERCONF_DATABASE_PATH.
const EnvPrefix = "CARRIERCONF"

// DatabaseConfig configures the SQLite carrier database.
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
	OMACP           bool          `mapstructure:"omacp"`
	PaletteSize     int           `mapstructure:"paletteSize"`
}

// PrefsConfig configures the preferred-APN store.
type PrefsConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// S3Config configures the remote asset area.
type S3Config struct {
	Enable   bool   `mapstructure:"enable"`
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Prefix   string `mapstructure:"prefix"`
	Endpoint string `mapstructure:"endpoint"`
}

// AssetsConfig locates the three asset areas. When S3 is enabled it
// replaces the vendor directory as the OEM overlay area.
type AssetsConfig struct {
	Bundled string   `mapstructure:"bundled"`
	System  string   `mapstructure:"system"`
	Vendor  string   `mapstructure:"vendor"`
	S3      S3Config `mapstructure:"s3"`
}

// SPNConfig selects the operator name tables.
type SPNConfig struct {
	// Profile is the built-in table variant: default or southeast.
	Profile string `mapstructure:"profile"`

	// Variant selects etc/spn-conf-<variant>.xml when present.
	Variant string `mapstructure:"variant"`
}

// LumberjackConfig configures log file rotation.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures the logger. An empty File.Filename logs to
// stderr only.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig configures the Prometheus endpoint served by carrierctl serve.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// Config is the top-level configuration.
type Config struct {
	Database      DatabaseConfig `mapstructure:"database"`
	Prefs         PrefsConfig    `mapstructure:"prefs"`
	Assets        AssetsConfig   `mapstructure:"assets"`
	SPN           SPNConfig      `mapstructure:"spn"`
	Logging       LoggingConfig  `mapstructure:"logging"`
	Metrics       MetricsConfig  `mapstructure:"metrics"`
	DefaultSubID  int64          `mapstructure:"defaultSubId"`
	SlowThreshold time.Duration  `mapstructure:"slowThreshold"`
}

// Load reads path, or carrierconf.yaml from the working directory and
// /etc/carrierconf when path is empty. A missing default file is not an
// error; defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/carrierconf")
		v.SetConfigName("carrierconf")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	db := database.DefaultConfig()
	v.SetDefault("database.path", db.Path)
	v.SetDefault("database.maxOpenConns", db.MaxOpenConns)
	v.SetDefault("database.maxIdleConns", db.MaxIdleConns)
	v.SetDefault("database.connMaxLifetime", db.ConnMaxLifetime)
	v.SetDefault("database.omacp", false)
	v.SetDefault("database.paletteSize", db.PaletteSize)

	p := prefs.DefaultConfig()
	v.SetDefault("prefs.path", p.Path)
	v.SetDefault("prefs.timeout", p.Timeout)

	v.SetDefault("assets.bundled", "/usr/share/carrierconf")
	v.SetDefault("assets.system", "/system")
	v.SetDefault("assets.vendor", "/custom")
	v.SetDefault("assets.s3.enable", false)
	v.SetDefault("assets.s3.bucket", "carrierconf-assets")
	v.SetDefault("assets.s3.region", "us-east-1")
	v.SetDefault("assets.s3.prefix", "")
	v.SetDefault("assets.s3.endpoint", "")

	v.SetDefault("spn.profile", "default")
	v.SetDefault("spn.variant", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.addr", ":9464")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("defaultSubId", 1)
	v.SetDefault("slowThreshold", "250ms")
}

// DatabaseConfig converts the database section for database.New.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		OMACP:           c.Database.OMACP,
		PaletteSize:     c.Database.PaletteSize,
	}
}

// PrefsConfig converts the prefs section for prefs.Open.
func (c *Config) PrefsConfig() prefs.Config {
	return prefs.Config{Path: c.Prefs.Path, Timeout: c.Prefs.Timeout}
}
