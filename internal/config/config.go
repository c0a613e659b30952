package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teemow/slotwise/internal/timegrid"
)

// Event source names.
const (
	SourceLocal  = "local"
	SourceGoogle = "google"
)

// Commit modes.
const (
	CommitBuffered  = "buffered"
	CommitImmediate = "immediate"
)

// Config holds every slotwise setting.
type Config struct {
	PixelsPerMinute float64 `mapstructure:"pixels_per_minute"`
	ViewStartHour   int     `mapstructure:"view_start_hour"`
	ViewEndHour     int     `mapstructure:"view_end_hour"`
	SnapMinutes     int     `mapstructure:"snap_minutes"`
	MinimumMinutes  int     `mapstructure:"minimum_minutes"`
	ColumnWidth     float64 `mapstructure:"column_width"`
	Columns         int     `mapstructure:"columns"`
	TZ              string  `mapstructure:"timezone"`

	Source string       `mapstructure:"source"`
	Store  StoreConfig  `mapstructure:"store"`
	Google GoogleConfig `mapstructure:"google"`
	Log    LogConfig    `mapstructure:"log"`
	Commit CommitConfig `mapstructure:"commit"`

	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// StoreConfig configures the local event store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// GoogleConfig configures the Google Calendar event source.
type GoogleConfig struct {
	Account    string `mapstructure:"account"`
	CalendarID string `mapstructure:"calendar_id"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CommitConfig configures when gestures are committed.
type CommitConfig struct {
	Mode string `mapstructure:"mode"`
}

// TelemetryConfig configures metric and span export.
type TelemetryConfig struct {
	Metrics         string  `mapstructure:"metrics"`
	Tracing         string  `mapstructure:"tracing"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	SampleRate      float64 `mapstructure:"sample_rate"`
	EventTypeLabels bool    `mapstructure:"event_type_labels"`
}

// AuditConfig configures commit audit records.
type AuditConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IncludeContacts bool `mapstructure:"include_contacts"`
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pixels_per_minute", timegrid.DefaultPixelsPerMinute)
	v.SetDefault("view_start_hour", 0)
	v.SetDefault("view_end_hour", 24)
	v.SetDefault("snap_minutes", timegrid.DefaultSnapMinutes)
	v.SetDefault("minimum_minutes", int(timegrid.DefaultMinimumDuration/time.Minute))
	v.SetDefault("column_width", 0.0)
	v.SetDefault("columns", 1)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("source", SourceLocal)
	v.SetDefault("store.path", "~/.slotwise/events")
	v.SetDefault("google.account", "default")
	v.SetDefault("google.calendar_id", "primary")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("commit.mode", CommitBuffered)
	v.SetDefault("telemetry.metrics", "prometheus")
	v.SetDefault("telemetry.tracing", "none")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.sample_rate", 0.1)
	v.SetDefault("telemetry.event_type_labels", false)
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.include_contacts", false)
}

// New returns a viper instance with slotwise defaults, file search paths and
// environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".slotwise") // .yaml is implicit
	v.SetEnvPrefix("SLOTWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if override := os.Getenv("SLOTWISE_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	return v
}

// Load reads configuration. A missing config file is not an error; an
// explicit file that cannot be read is.
func Load(v *viper.Viper, file string) (*Config, error) {
	if v == nil {
		v = New()
	}
	if file != "" {
		v.SetConfigFile(file)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.PixelsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("pixels_per_minute must be positive, got %v", c.PixelsPerMinute))
	}
	if c.ViewStartHour < 0 || c.ViewEndHour > 24 || c.ViewStartHour >= c.ViewEndHour {
		errs = append(errs, fmt.Errorf("view hours must satisfy 0 <= start < end <= 24, got %d-%d", c.ViewStartHour, c.ViewEndHour))
	}
	if c.SnapMinutes <= 0 || 24*60%c.SnapMinutes != 0 {
		errs = append(errs, fmt.Errorf("snap_minutes must be a positive divisor of 1440, got %d", c.SnapMinutes))
	}
	if c.MinimumMinutes <= 0 {
		errs = append(errs, fmt.Errorf("minimum_minutes must be positive, got %d", c.MinimumMinutes))
	}
	if c.Columns < 1 {
		errs = append(errs, fmt.Errorf("columns must be at least 1, got %d", c.Columns))
	}
	if c.ColumnWidth < 0 {
		errs = append(errs, fmt.Errorf("column_width must not be negative, got %v", c.ColumnWidth))
	}
	if _, err := time.LoadLocation(c.TZ); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.TZ, err))
	}

	switch c.Source {
	case SourceLocal, SourceGoogle:
	default:
		errs = append(errs, fmt.Errorf("invalid source %q (valid: %s, %s)", c.Source, SourceLocal, SourceGoogle))
	}
	switch strings.ToLower(c.Commit.Mode) {
	case CommitBuffered, CommitImmediate:
	default:
		errs = append(errs, fmt.Errorf("invalid commit.mode %q (valid: %s, %s)", c.Commit.Mode, CommitBuffered, CommitImmediate))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log.format %q (valid: text, json)", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Timezone implements timegrid.TimezoneSource.
func (c *Config) Timezone() string {
	return c.TZ
}

// Grid builds the time grid geometry.
func (c *Config) Grid() timegrid.Grid {
	g := timegrid.Grid{
		PixelsPerMinute: c.PixelsPerMinute,
		ViewStartHour:   c.ViewStartHour,
		ViewEndHour:     c.ViewEndHour,
		SnapMinutes:     c.SnapMinutes,
		MinimumDuration: time.Duration(c.MinimumMinutes) * time.Minute,
		ColumnWidth:     c.ColumnWidth,
		Columns:         c.Columns,
	}
	return g.WithTimezone(c).Normalize()
}
