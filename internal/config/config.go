package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"netspeed-daemon/internal/logging"
)

// Config materialises application configuration. Runtime-mutable display and
// quota settings live in the state store; this file carries infrastructure
// settings only.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	State     StateConfig     `mapstructure:"state"`
	Control   ControlConfig   `mapstructure:"control"`
	Sampler   SamplerConfig   `mapstructure:"sampler"`
	Usage     UsageConfig     `mapstructure:"usage"`
	Icon      IconConfig      `mapstructure:"icon"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StateConfig locates the bbolt state database and the single-instance lock.
type StateConfig struct {
	Path     string `mapstructure:"path"`
	LockPath string `mapstructure:"lock_path"`
}

// ControlConfig locates the daemon control socket. CLI commands issued while
// the daemon holds the state lock are routed through this socket; an empty
// path disables the control surface.
type ControlConfig struct {
	SocketPath string `mapstructure:"socket_path"`
}

// SamplerConfig governs the tick loop cadence.
type SamplerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	SlowInterval time.Duration `mapstructure:"slow_interval"`
	AlertEvery   int           `mapstructure:"alert_every"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// UsageConfig covers the privileged historical usage source.
type UsageConfig struct {
	VnstatPath     string        `mapstructure:"vnstat_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LookbackDays   int           `mapstructure:"lookback_days"`
}

// IconConfig sizes the rendered status glyph. Size is BaseSize scaled by the
// display scale factor so the glyph stays sharp on HiDPI bars.
type IconConfig struct {
	BaseSize int     `mapstructure:"base_size"`
	Scale    float64 `mapstructure:"scale"`
	CacheCap int     `mapstructure:"cache_cap"`
}

// PublishConfig locates the live-channel output files.
type PublishConfig struct {
	OutputDir  string `mapstructure:"output_dir"`
	IconFile   string `mapstructure:"icon_file"`
	StatusFile string `mapstructure:"status_file"`
}

// AlertingConfig toggles the desktop alert channel.
type AlertingConfig struct {
	DesktopEnabled bool `mapstructure:"desktop_enabled"`
}

// DefaultsConfig seeds the state store on first run. After that the store
// values win; edits go through the set command.
type DefaultsConfig struct {
	ShowSpeed         bool    `mapstructure:"show_speed"`
	ShowUpDown        bool    `mapstructure:"show_up_down"`
	ShowWifiSignal    bool    `mapstructure:"show_wifi_signal"`
	DailyLimitEnabled bool    `mapstructure:"daily_limit_enabled"`
	DailyLimitMB      float64 `mapstructure:"daily_limit_mb"`
	SelectedUnit      string  `mapstructure:"selected_unit"`
	UnitInMB          bool    `mapstructure:"unit_in_mb"`
}

// RetentionConfig bounds on-disk growth of per-day counters and alert audits.
type RetentionConfig struct {
	Days int `mapstructure:"days"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NETSPEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultConfigDir())
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "netspeedd")
	v.SetDefault("app.environment", "production")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("state.path", filepath.Join(defaultStateDir(), "netspeedd.db"))
	v.SetDefault("state.lock_path", filepath.Join(defaultStateDir(), "netspeedd.lock"))

	v.SetDefault("control.socket_path", filepath.Join(defaultStateDir(), "netspeedd.sock"))

	v.SetDefault("sampler.interval", "1s")
	v.SetDefault("sampler.slow_interval", "10s")
	v.SetDefault("sampler.alert_every", 5)
	v.SetDefault("sampler.startup_delay", "0s")

	v.SetDefault("usage.vnstat_path", "vnstat")
	v.SetDefault("usage.request_timeout", "5s")
	v.SetDefault("usage.lookback_days", 30)

	v.SetDefault("icon.base_size", 48)
	v.SetDefault("icon.scale", 1.0)
	v.SetDefault("icon.cache_cap", 15)

	v.SetDefault("publish.output_dir", defaultStateDir())
	v.SetDefault("publish.icon_file", "icon.png")
	v.SetDefault("publish.status_file", "status.json")

	v.SetDefault("alerting.desktop_enabled", true)

	v.SetDefault("defaults.show_speed", true)
	v.SetDefault("defaults.show_up_down", false)
	v.SetDefault("defaults.show_wifi_signal", false)
	v.SetDefault("defaults.daily_limit_enabled", false)
	v.SetDefault("defaults.daily_limit_mb", 0.0)
	v.SetDefault("defaults.selected_unit", "MB")
	v.SetDefault("defaults.unit_in_mb", false)

	v.SetDefault("retention.days", 60)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Sampler.Interval <= 0 {
		return fmt.Errorf("sampler.interval must be greater than zero")
	}
	if c.Sampler.SlowInterval < c.Sampler.Interval {
		return fmt.Errorf("sampler.slow_interval must not be shorter than sampler.interval")
	}
	if c.Sampler.AlertEvery <= 0 {
		return fmt.Errorf("sampler.alert_every must be greater than zero")
	}
	if c.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if c.Usage.LookbackDays <= 0 {
		return fmt.Errorf("usage.lookback_days must be greater than zero")
	}
	if c.Icon.BaseSize <= 0 {
		return fmt.Errorf("icon.base_size must be greater than zero")
	}
	if c.Icon.Scale <= 0 {
		return fmt.Errorf("icon.scale must be greater than zero")
	}
	if c.Icon.CacheCap <= 0 {
		return fmt.Errorf("icon.cache_cap must be greater than zero")
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be greater than zero")
	}
	if c.Defaults.DailyLimitMB < 0 {
		return fmt.Errorf("defaults.daily_limit_mb cannot be negative")
	}
	return nil
}

// IconSize returns the density-scaled pixel dimension of the status glyph.
func (c *Config) IconSize() int {
	size := int(float64(c.Icon.BaseSize)*c.Icon.Scale + 0.5)
	if size < 16 {
		size = 16
	}
	return size
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "netspeedd")
	}
	return "."
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "netspeedd")
	}
	return "."
}
