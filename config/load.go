package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	werrors "github.com/sambeau/wml/pkg/wml/errors"
)

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the
// resolved path. When no config file exists in the default locations the
// defaults are returned with an empty path and relative paths resolve
// against the working directory.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, "", err
	}

	cfg := Defaults()
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		cfg.BaseDir = wd
		resolvePaths(cfg)
		return cfg, "", nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", werrors.Wrap("CONFIG-0001", err, map[string]any{"Path": path})
	}

	// Interpolate environment variables
	data = interpolateEnv(data, getenv)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", werrors.Wrap("CONFIG-0001", err, map[string]any{"Path": path})
	}

	cfg.BaseDir = filepath.Dir(absPath)
	resolvePaths(cfg)

	if err := Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, absPath, nil
}

// resolvePaths makes relative directories absolute against BaseDir.
func resolvePaths(cfg *Config) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(cfg.BaseDir, p)
	}
	cfg.Root = abs(cfg.Root)
	cfg.I18n.Dir = abs(cfg.I18n.Dir)
	if cfg.Store.Driver == "" || cfg.Store.Driver == "sqlite" {
		if dsn := cfg.Store.DSN.value; dsn != ":memory:" {
			cfg.Store.DSN.value = abs(dsn)
		}
	}
	if out := cfg.Logging.Output; out != "stderr" && out != "stdout" {
		cfg.Logging.Output = abs(out)
	}
}

// Validate checks the configuration and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.Generator {
	case "vdom", "string":
	default:
		errs = append(errs, fmt.Sprintf("generator: %q (must be vdom or string)", cfg.Generator))
	}
	switch cfg.ExceptionMode {
	case "log", "throw":
	default:
		errs = append(errs, fmt.Sprintf("exception_mode: %q (must be log or throw)", cfg.ExceptionMode))
	}
	if cfg.ModulePrefix != "" && !strings.HasSuffix(cfg.ModulePrefix, "!") {
		errs = append(errs, fmt.Sprintf("module_prefix: %q (must end with !)", cfg.ModulePrefix))
	}
	if _, err := language.Parse(cfg.I18n.Locale); err != nil {
		errs = append(errs, fmt.Sprintf("i18n.locale: %q is not a BCP 47 tag", cfg.I18n.Locale))
	}
	if cfg.I18n.Timezone != "" {
		if _, err := time.LoadLocation(cfg.I18n.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("i18n.timezone: %q", cfg.I18n.Timezone))
		}
	}
	switch cfg.Store.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("store.driver: %q (must be sqlite, postgres or mysql)", cfg.Store.Driver))
	}
	if cfg.Store.Enabled && cfg.Store.DSN.Value() == "" {
		errs = append(errs, "store.dsn: required when the store is enabled")
	}
	if cfg.Cache.Size < 0 {
		errs = append(errs, fmt.Sprintf("cache.size: %d (must not be negative)", cfg.Cache.Size))
	}
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, "watch.debounce: must not be negative")
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("logging.format: %q (must be json or text)", cfg.Logging.Format))
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level: %q", cfg.Logging.Level))
	}

	if len(errs) > 0 {
		return werrors.New("CONFIG-0004", map[string]any{"Reason": strings.Join(errs, "; ")})
	}
	return nil
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > WML_CONFIG env > ./wml.yaml > ~/.config/wml/wml.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv("WML_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("WML_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	if _, err := os.Stat("wml.yaml"); err == nil {
		return "wml.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "wml", "wml.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := string(parts[1])
		value := getenv(varName)

		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}

		return []byte(value)
	})
}
