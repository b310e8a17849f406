package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/morozRed/ripple/internal/fileutil"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// Dir is the per-project working directory.
	Dir = ".ripple"
	// FileName is the config file inside Dir.
	FileName = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. RIPPLE_STORE_BACKEND.
	EnvPrefix = "RIPPLE"
)

// Config is the project configuration loaded from .ripple/config.yaml.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	History HistoryConfig `yaml:"history" mapstructure:"history"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Ignore  []string      `yaml:"ignore" mapstructure:"ignore"`
	Workers int           `yaml:"workers" mapstructure:"workers"`

	// Root is the project root the config was loaded for. Not persisted.
	Root string `yaml:"-" mapstructure:"-"`
}

// StoreConfig selects where the graph and line snapshots live.
type StoreConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // file | badger
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text | json
}

type ReportConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // text | json | yaml
	Output string `yaml:"output" mapstructure:"output"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "file",
			Dir:     Dir,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Report: ReportConfig{
			Format: "text",
			Output: filepath.Join(Dir, "output.txt"),
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(Dir, "history.db"),
		},
		Ignore:  []string{},
		Workers: 0,
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.dir", cfg.Store.Dir)
	v.SetDefault("watch.debounce", cfg.Watch.Debounce)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("report.format", cfg.Report.Format)
	v.SetDefault("report.output", cfg.Report.Output)
	v.SetDefault("history.enabled", cfg.History.Enabled)
	v.SetDefault("history.path", cfg.History.Path)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("ignore", cfg.Ignore)
	v.SetDefault("workers", cfg.Workers)
}

// Load reads <root>/.ripple/config.yaml. A missing file yields the defaults;
// environment variables prefixed with RIPPLE_ override both.
func Load(root string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(root, Dir))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Root = root
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated fields and ranges.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file", "badger":
	default:
		return &Error{Field: "store.backend", Message: fmt.Sprintf("unknown backend %q (expected file|badger)", c.Store.Backend)}
	}
	if strings.TrimSpace(c.Store.Dir) == "" {
		return &Error{Field: "store.dir", Message: "must not be empty"}
	}
	switch c.Report.Format {
	case "text", "json", "yaml":
	default:
		return &Error{Field: "report.format", Message: fmt.Sprintf("unknown format %q (expected text|json|yaml)", c.Report.Format)}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return &Error{Field: "log.format", Message: fmt.Sprintf("unknown format %q (expected text|json)", c.Log.Format)}
	}
	if c.Watch.Debounce < 0 {
		return &Error{Field: "watch.debounce", Message: "must not be negative"}
	}
	if c.Workers < 0 {
		return &Error{Field: "workers", Message: "must not be negative"}
	}
	return nil
}

// Resolve makes a configured path absolute against the project root.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

// StateDir is the absolute store directory.
func (c *Config) StateDir() string {
	return c.Resolve(c.Store.Dir)
}

// Encode renders the config as YAML.
func (c *Config) Encode() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// WriteDefault writes the default config file unless one already exists.
func WriteDefault(root string) (string, bool, error) {
	path := filepath.Join(root, Dir, FileName)
	data, err := Default().Encode()
	if err != nil {
		return path, false, err
	}
	created, err := fileutil.WriteIfMissing(path, data, 0644)
	return path, created, err
}

// Error describes an invalid config field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
