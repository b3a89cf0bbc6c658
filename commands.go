package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/wml/pkg/wml/compiler"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/i18n"
	"github.com/sambeau/wml/pkg/wml/repl"
	"github.com/sambeau/wml/pkg/wml/runtime"
	"github.com/sambeau/wml/pkg/wml/wire"
)

type command struct {
	run func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"compile": {runCompile},
	"render":  {runRender},
	"check":   {runCheck},
	"keys":    {runKeys},
	"watch":   {runWatch},
	"repl":    {runRepl},
}

func newFlags(name string, a *app) *flag.FlagSet {
	flags := flag.NewFlagSet("wml "+name, flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	return flags
}

// modules returns the named modules, or every module under the root.
func modules(a *app, names []string) ([]string, error) {
	if len(names) > 0 {
		return names, nil
	}
	return a.compiler.Modules()
}

func runCompile(ctx context.Context, a *app, args []string) error {
	flags := newFlags("compile", a)
	outDir := flags.String("out", "", "Write <module>.json files to this directory")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return fmt.Errorf("compile: no modules given")
	}

	for _, name := range flags.Args() {
		tmpl, err := a.compiler.Load(ctx, name)
		if err != nil {
			return err
		}
		data, err := wire.MarshalIndent(tmpl.Description)
		if err != nil {
			return err
		}
		if *outDir == "" {
			fmt.Fprintf(a.stdout, "%s\n", data)
			continue
		}
		rel := strings.TrimPrefix(tmpl.Description.Module, a.cfg.ModulePrefix)
		path := filepath.Join(*outDir, filepath.FromSlash(runtime.NormalizeName(rel))+".json")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "wrote %s\n", path)
	}
	return nil
}

func runRender(ctx context.Context, a *app, args []string) error {
	flags := newFlags("render", a)
	dataPath := flags.String("data", "", "YAML or JSON file with the template data (- for stdin)")
	vdom := flags.Bool("vdom", a.cfg.Generator == "vdom", "Print the node tree instead of HTML")
	dirty := flags.Bool("dirty", false, "Print the dirty-check values instead of rendering")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("render: expected one module")
	}

	data, err := readData(*dataPath)
	if err != nil {
		return err
	}
	tmpl, err := a.compiler.Load(ctx, flags.Arg(0))
	if err != nil {
		return err
	}

	if *dirty {
		values := tmpl.DirtyCheck(data)
		indexes := make([]int, 0, len(values))
		for i := range values {
			indexes = append(indexes, i)
		}
		slices.Sort(indexes)
		for _, i := range indexes {
			v := values[i]
			if v == runtime.Unreachable {
				fmt.Fprintf(a.stdout, "%d: unreachable\n", i)
				continue
			}
			fmt.Fprintf(a.stdout, "%d: %s\n", i, runtime.ToString(v))
		}
		return nil
	}

	out, err := tmpl.Invoke(data, nil, nil, *vdom, nil, false, a.generatorConfig(), a.cfg.ExceptionMode)
	if err != nil {
		return err
	}
	if nodes, ok := out.([]*runtime.VNode); ok {
		runtime.DumpNodes(a.stdout, nodes)
		return nil
	}
	fmt.Fprintln(a.stdout, out)
	return nil
}

// readData loads template data. YAML is a superset of JSON so one decoder
// reads both.
func readData(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing data %s: %w", path, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return normalize(data).(map[string]any), nil
}

// normalize converts decoded YAML into the value model templates use:
// every number is a float64.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	}
	return v
}

func runCheck(ctx context.Context, a *app, args []string) error {
	flags := newFlags("check", a)
	if err := flags.Parse(args); err != nil {
		return err
	}
	names, err := modules(a, flags.Args())
	if err != nil {
		return err
	}

	failed := 0
	for _, name := range names {
		module := a.compiler.ModuleName(name)
		path := a.compiler.Path(module)
		src, err := os.ReadFile(path)
		if err == nil {
			_, _, err = a.compiler.Check(module, string(src))
		}
		if err != nil {
			failed++
			printError(a, err, path)
			continue
		}
		fmt.Fprintf(a.stdout, "ok   %s\n", module)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(names))
	}
	return nil
}

func printError(a *app, err error, file string) {
	if werr, ok := werrors.As(err); ok {
		if werr.File == "" {
			werr.File = file
		}
		fmt.Fprintf(a.stdout, "FAIL %s\n", werr.PrettyString())
		return
	}
	fmt.Fprintf(a.stdout, "FAIL %s: %v\n", file, err)
}

func runKeys(ctx context.Context, a *app, args []string) error {
	flags := newFlags("keys", a)
	missing := flags.Bool("missing", false, "Only keys without a translation in the locale")
	if err := flags.Parse(args); err != nil {
		return err
	}
	names, err := modules(a, flags.Args())
	if err != nil {
		return err
	}

	seen := map[runtime.TranslationKey]bool{}
	var keys []runtime.TranslationKey
	for _, name := range names {
		tmpl, err := a.compiler.Load(ctx, name)
		if err != nil {
			return err
		}
		for _, k := range tmpl.Description.TranslationKeys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	if *missing {
		keys = a.translator.Missing(keys)
	}
	if len(keys) == 0 {
		return nil
	}
	out, err := i18n.Template(keys)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(out)
	return err
}

func runWatch(ctx context.Context, a *app, args []string) error {
	flags := newFlags("watch", a)
	if err := flags.Parse(args); err != nil {
		return err
	}

	// compile everything up front so errors show before the first change
	names, err := a.compiler.Modules()
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := a.compiler.Load(ctx, name); err != nil {
			printError(a, err, a.compiler.Path(name))
		}
	}

	var mu sync.Mutex
	w, err := compiler.NewWatcher(a.compiler, a.cfg.Watch.Debounce, func(ch compiler.Change) {
		mu.Lock()
		defer mu.Unlock()
		if ch.Err != nil {
			printError(a, ch.Err, a.compiler.Path(ch.Module))
			return
		}
		fmt.Fprintf(a.stdout, "rebuilt %s\n", ch.Module)
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func runRepl(ctx context.Context, a *app, args []string) error {
	repl.Start(os.Stdin, a.stdout, Version, a.compiler)
	return nil
}
