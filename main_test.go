package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func noenv(string) string { return "" }

func TestRunVersion(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := run(context.Background(), []string{"--version"}, stdout, stderr, noenv)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "wml version") {
		t.Errorf("expected version output, got %q", output)
	}
}

func TestRunHelp(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := run(context.Background(), []string{"--help"}, stdout, stderr, noenv)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	output := stdout.String()
	for _, want := range []string{"wml - A compiler for wml view templates", "--config", "render MODULE", "WML_CONFIG"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in help, got %q", want, output)
		}
	}
}

func TestRunInvalidFlag(t *testing.T) {
	err := run(context.Background(), []string{"--invalid-flag"}, &bytes.Buffer{}, &bytes.Buffer{}, noenv)
	if err == nil {
		t.Error("expected error for invalid flag")
	}
}

func TestRunMissingConfig(t *testing.T) {
	err := run(context.Background(), []string{"--config", "/nonexistent/config.yaml", "check"}, &bytes.Buffer{}, &bytes.Buffer{}, noenv)

	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("expected 'config file not found' error, got %q", err.Error())
	}
}

func TestRunCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"none", nil, "no command given"},
		{"unknown", []string{"serve"}, `unknown command "serve"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args, &bytes.Buffer{}, &bytes.Buffer{}, noenv)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

// project writes a config file, templates and dictionaries and returns
// the config path.
func project(t *testing.T, views map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"wml.yaml":     "root: views\ni18n:\n  dir: lang\nlogging:\n  level: error\n",
		"lang/de.yaml": "Hello: Hallo\n",
		"data.yaml":    "name: Ada\ncount: 3\n",
	}
	for name, body := range views {
		files["views/"+name] = body
	}
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "wml.yaml")
}

func runIn(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	err := run(context.Background(), append([]string{"--config", cfg}, args...), stdout, stderr, noenv)
	return stdout.String(), err
}

func TestRunRender(t *testing.T) {
	cfg := project(t, map[string]string{
		"Page.wml":     `<Card title="{{ name }}"/><p>{{ name }}-{{ count + 1 }}</p>`,
		"Card.wml":     `<h1>{{ title }}</h1>`,
		"Greeting.wml": `<p>{[ Hello ]}</p>`,
	})
	data := filepath.Join(filepath.Dir(cfg), "data.yaml")

	out, err := runIn(t, cfg, "render", "--data", data, "Page")
	if err != nil {
		t.Fatal(err)
	}
	if out != "<h1>Ada</h1><p>Ada-4</p>\n" {
		t.Errorf("render = %q", out)
	}

	out, err = runIn(t, cfg, "--locale", "de", "render", "Greeting")
	if err != nil {
		t.Fatal(err)
	}
	if out != "<p>Hallo</p>\n" {
		t.Errorf("translated render = %q", out)
	}

	out, err = runIn(t, cfg, "render", "--vdom", "Greeting")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "<p>") || !strings.Contains(out, `text "Hello"`) {
		t.Errorf("vdom render = %q", out)
	}

	if _, err := runIn(t, cfg, "render"); err == nil {
		t.Error("render without a module should fail")
	}
}

func TestRunCheck(t *testing.T) {
	cfg := project(t, map[string]string{
		"Page.wml":   `<p>{{ name }}</p>`,
		"Broken.wml": `<p>{{ a + }}</p>`,
	})
	out, err := runIn(t, cfg, "check")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 templates failed") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(out, "ok   wml!Page") {
		t.Errorf("missing ok line in %q", out)
	}
	if !strings.Contains(out, "FAIL Syntax error") || !strings.Contains(out, "Broken") {
		t.Errorf("missing failure in %q", out)
	}

	if _, err := runIn(t, cfg, "check", "Page"); err != nil {
		t.Errorf("check Page: %v", err)
	}
}

func TestRunKeys(t *testing.T) {
	cfg := project(t, map[string]string{
		"Menu.wml": `<p>{[ Hello ]}</p><p>{[ menu@@Open ]}</p>`,
	})

	out, err := runIn(t, cfg, "keys")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Hello: Hello", "menu:", "Open: Open"} {
		if !strings.Contains(out, want) {
			t.Errorf("keys output %q lacks %q", out, want)
		}
	}

	out, err = runIn(t, cfg, "--locale", "de", "keys", "--missing")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "Hello") || !strings.Contains(out, "Open: Open") {
		t.Errorf("missing keys = %q", out)
	}
}

func TestRunCompile(t *testing.T) {
	cfg := project(t, map[string]string{
		"Controls/Title.wml": `<h1>{{ text }}</h1>`,
	})

	out, err := runIn(t, cfg, "compile", "Controls.Title")
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid([]byte(out)) || !strings.Contains(out, `"wml!Controls/Title"`) {
		t.Errorf("compile output = %q", out)
	}

	dir := t.TempDir()
	if _, err := runIn(t, cfg, "compile", "--out", dir, "Controls/Title"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "Controls", "Title.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Errorf("written artifact is not JSON: %s", data)
	}
}

func TestReadData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.json")
	if err := os.WriteFile(path, []byte(`{"n": 2, "items": [1, {"x": 3}], "s": "a"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := readData(path)
	if err != nil {
		t.Fatal(err)
	}
	if data["n"] != 2.0 || data["s"] != "a" {
		t.Errorf("data = %#v", data)
	}
	items := data["items"].([]any)
	if items[0] != 1.0 || items[1].(map[string]any)["x"] != 3.0 {
		t.Errorf("items = %#v", items)
	}
}
