package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/language"

	"github.com/sambeau/wml/config"
	"github.com/sambeau/wml/pkg/wml/compiler"
	"github.com/sambeau/wml/pkg/wml/decorators"
	"github.com/sambeau/wml/pkg/wml/i18n"
	"github.com/sambeau/wml/pkg/wml/logger"
	"github.com/sambeau/wml/pkg/wml/runtime"
	"github.com/sambeau/wml/pkg/wml/store"
)

// app is everything a command needs, built from the configuration.
type app struct {
	cfg        *config.Config
	stdout     io.Writer
	stderr     io.Writer
	log        *logger.EventLogger
	compiler   *compiler.Compiler
	translator *i18n.Translator
	store      *store.Store
	logFile    *os.File
}

func newApp(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) (*app, error) {
	a := &app{cfg: cfg, stdout: stdout, stderr: stderr}

	var logOut io.Writer
	switch cfg.Logging.Output {
	case "stderr", "":
		logOut = stderr
	case "stdout":
		logOut = stdout
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.Output), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Logging.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		a.logFile = f
		logOut = f
	}
	a.log = logger.NewEventLogger(logOut, cfg.Logging.Format, logger.ParseLevel(cfg.Logging.Level))

	loc, err := cfg.Location()
	if err != nil {
		a.Close()
		return nil, err
	}
	m := runtime.NewMethods()
	m.ResourceRoot = cfg.ResourceRoot
	m.Logger = a.log
	if err := decorators.Install(m, decorators.Options{
		Locale:   cfg.I18n.Locale,
		Location: loc,
		Currency: cfg.I18n.Currency,
	}); err != nil {
		a.Close()
		return nil, err
	}

	cat := i18n.NewCatalog(language.Make(cfg.I18n.Locale))
	if cfg.I18n.Dir != "" {
		if err := cat.LoadDir(cfg.I18n.Dir); err != nil {
			a.Close()
			return nil, err
		}
	}
	if a.translator, err = cat.Translator(cfg.I18n.Locale); err != nil {
		a.Close()
		return nil, err
	}
	m.Translator = a.translator
	a.log.Debug("translations", map[string]any{"locale": a.translator.Locale(), "loaded": cat.Locales()})

	if cfg.Store.Enabled {
		a.store, err = store.Open(ctx, store.Config{
			Driver:   cfg.Store.Driver,
			DSN:      cfg.Store.DSN.Value(),
			Compress: cfg.Store.Compress,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.log.Debug("store opened", map[string]any{"driver": cfg.Store.Driver, "dsn": cfg.Store.DSN.String()})
	}

	a.compiler = compiler.New(compiler.Options{
		Root:          cfg.Root,
		Prefix:        cfg.ModulePrefix,
		Methods:       m,
		Store:         a.store,
		CacheSize:     cfg.Cache.Size,
		TranslateText: cfg.TranslateText,
		Log:           a.log,
	})
	return a, nil
}

// generatorConfig is the render configuration of every command.
func (a *app) generatorConfig() *runtime.GeneratorConfig {
	return &runtime.GeneratorConfig{
		Registry: a.compiler.Registry(),
		Logger:   a.log,
	}
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
