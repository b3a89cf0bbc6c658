// Package config loads wml.yaml.
package config

import "time"

// Config is the root configuration structure
type Config struct {
	// BaseDir is the directory containing the config file, used to resolve
	// relative paths. Set during Load.
	BaseDir string `yaml:"-"`

	Root          string `yaml:"root"`           // template directory
	ModulePrefix  string `yaml:"module_prefix"`  // prefix of module names (default wml!)
	ResourceRoot  string `yaml:"resource_root"`  // URL prefix of resource() paths
	Generator     string `yaml:"generator"`      // vdom or string
	ExceptionMode string `yaml:"exception_mode"` // log or throw
	TranslateText bool   `yaml:"translate_text"` // promote plain text to translations

	I18n    I18nConfig    `yaml:"i18n"`
	Store   StoreConfig   `yaml:"store"`
	Cache   CacheConfig   `yaml:"cache"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// I18nConfig holds localization settings
type I18nConfig struct {
	Locale   string `yaml:"locale"`   // BCP 47 tag, e.g. en-US
	Dir      string `yaml:"dir"`      // directory of <locale>.yaml dictionaries
	Currency string `yaml:"currency"` // default ISO 4217 code for |money
	Timezone string `yaml:"timezone"` // IANA zone for |date
}

// StoreConfig holds the compiled artifact store settings
type StoreConfig struct {
	Enabled  bool         `yaml:"enabled"`
	Driver   string       `yaml:"driver"` // sqlite, postgres or mysql
	DSN      SecretString `yaml:"dsn"`    // file path for sqlite
	Compress bool         `yaml:"compress"`
}

// CacheConfig holds the in-memory template cache settings
type CacheConfig struct {
	Size int `yaml:"size"` // compiled templates kept in memory
}

// WatchConfig holds file watcher settings
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stderr, stdout, or file path
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Root:          ".",
		ModulePrefix:  "wml!",
		ResourceRoot:  "/",
		Generator:     "string",
		ExceptionMode: "log",
		I18n: I18nConfig{
			Locale:   "en-US",
			Currency: "USD",
			Timezone: "UTC",
		},
		Store: StoreConfig{
			Driver:   "sqlite",
			DSN:      SecretString{value: ".wml/cache.db"},
			Compress: true,
		},
		Cache: CacheConfig{
			Size: 256,
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.I18n.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.I18n.Timezone)
}
