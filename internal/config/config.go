package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sandeepkv93/timelock/internal/model"
)

const envPrefix = "TIMELOCK"

type Config struct {
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Reminders     RemindersConfig     `yaml:"reminders" mapstructure:"reminders"`
	Scheduler     SchedulerConfig     `yaml:"scheduler" mapstructure:"scheduler"`
	Notifications NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RemindersConfig.DefaultOffsets uses the same syntax as the --remind flag,
// e.g. "1d" or "60,1440". SweepInterval of zero disables periodic sweeps.
type RemindersConfig struct {
	DefaultOffsets string        `yaml:"default_offsets" mapstructure:"default_offsets"`
	SweepInterval  time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

type SchedulerConfig struct {
	Buffer         int           `yaml:"buffer" mapstructure:"buffer"`
	ReloadDebounce time.Duration `yaml:"reload_debounce" mapstructure:"reload_debounce"`
}

type NotificationsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Desktop bool `yaml:"desktop" mapstructure:"desktop"`
	Sound   bool `yaml:"sound" mapstructure:"sound"`
	Badge   bool `yaml:"badge" mapstructure:"badge"`
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: filepath.Join(Dir(), "timelock.db")},
		Reminders: RemindersConfig{
			DefaultOffsets: model.DefaultOffsets().String(),
			SweepInterval:  15 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Buffer:         64,
			ReloadDebounce: 250 * time.Millisecond,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Desktop: false,
			Sound:   true,
			Badge:   true,
		},
	}
}

// Dir is the per-user state directory, ~/.timelock.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".timelock"
	}
	return filepath.Join(home, ".timelock")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads defaults, then the YAML file at path, then TIMELOCK_* env vars
// (TIMELOCK_SCHEDULER_BUFFER overrides scheduler.buffer). An empty path
// means DefaultPath, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Database.Path = expandHome(cfg.Database.Path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("reminders.default_offsets", cfg.Reminders.DefaultOffsets)
	v.SetDefault("reminders.sweep_interval", cfg.Reminders.SweepInterval)
	v.SetDefault("scheduler.buffer", cfg.Scheduler.Buffer)
	v.SetDefault("scheduler.reload_debounce", cfg.Scheduler.ReloadDebounce)
	v.SetDefault("notifications.enabled", cfg.Notifications.Enabled)
	v.SetDefault("notifications.desktop", cfg.Notifications.Desktop)
	v.SetDefault("notifications.sound", cfg.Notifications.Sound)
	v.SetDefault("notifications.badge", cfg.Notifications.Badge)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("config: database.path is required")
	}
	if c.Scheduler.Buffer <= 0 {
		return fmt.Errorf("config: scheduler.buffer must be positive, got %d", c.Scheduler.Buffer)
	}
	if c.Reminders.SweepInterval < 0 {
		return fmt.Errorf("config: reminders.sweep_interval must not be negative, got %s", c.Reminders.SweepInterval)
	}
	if c.Scheduler.ReloadDebounce < 0 {
		return fmt.Errorf("config: scheduler.reload_debounce must not be negative, got %s", c.Scheduler.ReloadDebounce)
	}
	if _, err := c.Offsets(); err != nil {
		return fmt.Errorf("config: reminders.default_offsets: %w", err)
	}
	return nil
}

// Offsets parses reminders.default_offsets.
func (c *Config) Offsets() (model.Offsets, error) {
	return model.ParseOffsets(c.Reminders.DefaultOffsets)
}

// fileConfig is the on-disk shape; durations are written as "15m0s"
// strings rather than nanosecond integers.
type fileConfig struct {
	Database      DatabaseConfig      `yaml:"database"`
	Reminders     fileReminders       `yaml:"reminders"`
	Scheduler     fileScheduler       `yaml:"scheduler"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

type fileReminders struct {
	DefaultOffsets string `yaml:"default_offsets"`
	SweepInterval  string `yaml:"sweep_interval"`
}

type fileScheduler struct {
	Buffer         int    `yaml:"buffer"`
	ReloadDebounce string `yaml:"reload_debounce"`
}

func (c Config) MarshalYAML() (any, error) {
	return fileConfig{
		Database:      c.Database,
		Reminders:     fileReminders{DefaultOffsets: c.Reminders.DefaultOffsets, SweepInterval: c.Reminders.SweepInterval.String()},
		Scheduler:     fileScheduler{Buffer: c.Scheduler.Buffer, ReloadDebounce: c.Scheduler.ReloadDebounce.String()},
		Notifications: c.Notifications,
	}, nil
}

const header = `# timelock configuration
# Every key can be overridden with a TIMELOCK_ environment variable,
# e.g. TIMELOCK_NOTIFICATIONS_DESKTOP=true.
`

// WriteDefault writes DefaultConfig to path, creating parent directories.
// An existing file is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config: %s already exists", path)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
