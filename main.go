package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sambeau/wml/config"
)

// Version is set at build time via -ldflags
var Version = "0.1.0-dev"

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point, designed for testability (Mat Ryer pattern)
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("wml", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		configPath  = flags.String("config", "", "Path to config file")
		root        = flags.String("root", "", "Override template directory")
		locale      = flags.String("locale", "", "Override locale")
		logLevel    = flags.String("log-level", "", "Override log level")
		noStore     = flags.Bool("no-store", false, "Do not use the artifact store")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}

	if *showVersion {
		fmt.Fprintf(stdout, "wml version %s\n", Version)
		return nil
	}

	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return fmt.Errorf("no command given")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q (see wml --help)", rest[0])
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configFile, err := config.LoadWithPath(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Apply CLI overrides
	if *root != "" {
		cfg.Root = *root
	}
	if *locale != "" {
		cfg.I18n.Locale = *locale
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *noStore {
		cfg.Store.Enabled = false
	}

	// Full validation after CLI overrides applied
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	a, err := newApp(ctx, cfg, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	if configFile != "" {
		a.log.Debug("config loaded", map[string]any{"path": configFile})
	}

	return cmd.run(ctx, a, rest[1:])
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `wml - A compiler for wml view templates

Usage:
  wml [options] <command> [arguments]

Commands:
  compile MODULE...      Print the compiled description of modules
  render MODULE          Render a module to HTML
  check [MODULE...]      Parse and annotate modules (default: all)
  keys [MODULE...]       Print translation keys as a YAML dictionary
  watch                  Recompile templates as they change
  repl                   Start an interactive shell

Options:
  --config PATH      Path to config file (default: auto-detect)
  --root DIR         Override template directory
  --locale TAG       Override locale
  --log-level LEVEL  Override log level
  --no-store         Do not use the artifact store
  --version          Show version
  --help             Show this help

Config Resolution:
  1. --config flag
  2. WML_CONFIG environment variable
  3. ./wml.yaml
  4. ~/.config/wml/wml.yaml

Examples:
  wml check                          Check every template under the root
  wml render --data page.yaml Page   Render wml!Page with data
  wml keys --missing                 List untranslated keys of the locale
  wml --root views watch             Rebuild templates under views/

`)
}
