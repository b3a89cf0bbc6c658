package scope

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/markup"
)

func TestRequestDependenciesLoadsConcurrently(t *testing.T) {
	var inflight, peak int32
	loader := LoaderFunc(func(ctx context.Context, path string) (any, error) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return "module:" + path, nil
	})

	s := New(loader)
	s.RegisterDependency("Controls/Button")
	s.RegisterDependency("Controls/Grid")
	s.RegisterDependency("Controls/Button")

	if diff := cmp.Diff([]string{"Controls/Button", "Controls/Grid"}, s.Dependencies()); diff != "" {
		t.Errorf("Dependencies mismatch (-want +got):\n%s", diff)
	}
	if err := s.RequestDependencies(context.Background()); err != nil {
		t.Fatalf("RequestDependencies error: %v", err)
	}
	if v, ok := s.Dependency("Controls/Grid"); !ok || v != "module:Controls/Grid" {
		t.Errorf("Dependency(Controls/Grid) = %v, %v", v, ok)
	}
	if atomic.LoadInt32(&peak) < 2 {
		t.Errorf("peak concurrent loads = %d, want 2", peak)
	}
}

func TestRequestDependenciesFailure(t *testing.T) {
	s := New(LoaderFunc(func(ctx context.Context, path string) (any, error) {
		if path == "Missing" {
			return nil, errors.New("no such module")
		}
		return path, nil
	}))
	s.RegisterDependency("Present")
	s.RegisterDependency("Missing")

	err := s.RequestDependencies(context.Background())
	if !werrors.HasCode(err, "DEP-0001") {
		t.Fatalf("error = %v, want DEP-0001", err)
	}
	if _, ok := s.Dependency("Missing"); ok {
		t.Error("failed dependency should not be available")
	}
	if _, ok := s.Dependency("Present"); !ok {
		t.Error("successful dependency should be available")
	}
}

func TestRequestDependenciesCancelled(t *testing.T) {
	s := New(LoaderFunc(func(ctx context.Context, path string) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	s.RegisterDependency("Slow")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.RequestDependencies(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
	if _, ok := s.Dependency("Slow"); ok {
		t.Error("cancelled dependency should not be available")
	}
}

func TestRequestDependenciesFailureCancelsSiblings(t *testing.T) {
	var cancelled atomic.Bool
	s := New(LoaderFunc(func(ctx context.Context, path string) (any, error) {
		if path == "Broken" {
			return nil, errors.New("syntax error")
		}
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return path, nil
		}
	}))
	s.RegisterDependency("Slow")
	s.RegisterDependency("Broken")

	err := s.RequestDependencies(context.Background())
	if !werrors.HasCode(err, "DEP-0001") {
		t.Fatalf("error = %v, want DEP-0001", err)
	}
	if !cancelled.Load() {
		t.Error("the slow load should see the failure as a cancellation")
	}
	if strings.Contains(err.Error(), "Slow") {
		t.Errorf("error = %v, should only report Broken", err)
	}
}

func TestRequestDependenciesReportsEveryFailure(t *testing.T) {
	s := New(LoaderFunc(func(ctx context.Context, path string) (any, error) {
		return nil, errors.New("missing " + path)
	}))
	s.RegisterDependency("B")
	s.RegisterDependency("A")

	err := s.RequestDependencies(context.Background())
	want := "failed to load dependency A: missing A\nfailed to load dependency B: missing B"
	if err == nil || err.Error() != want {
		t.Errorf("error = %v, want %q", err, want)
	}
}

func TestRequestDependenciesWithoutLoader(t *testing.T) {
	s := New(nil)
	if err := s.RequestDependencies(context.Background()); err != nil {
		t.Errorf("no dependencies: %v", err)
	}
	s.RegisterDependency("X")
	if err := s.RequestDependencies(context.Background()); !werrors.HasCode(err, "DEP-0002") {
		t.Errorf("error = %v, want DEP-0002", err)
	}
}

func TestTranslations(t *testing.T) {
	s := New(nil)
	if s.HasDetectedTranslations() {
		t.Fatal("fresh scope should not report translations")
	}
	s.RegisterTranslation("text", "wml!Page", "Hello", "")
	s.RegisterTranslation("text", "wml!Page", "Hello", "")
	s.RegisterTranslation("text", "wml!Page", "Open", "menu")
	s.SetDetectedTranslation()

	want := []TranslationKey{
		{Type: "text", Module: "wml!Page", Text: "Hello"},
		{Type: "text", Module: "wml!Page", Text: "Open", Context: "menu"},
	}
	if diff := cmp.Diff(want, s.TranslationKeys()); diff != "" {
		t.Errorf("TranslationKeys mismatch (-want +got):\n%s", diff)
	}
	if !s.HasDetectedTranslations() {
		t.Error("HasDetectedTranslations = false")
	}
}

func TestTemplates(t *testing.T) {
	s := New(nil)
	row := &markup.Template{Name: "row"}
	if err := s.RegisterTemplate("row", row); err != nil {
		t.Fatal(err)
	}
	if !s.HasTemplate("row") || s.HasTemplate("cell") {
		t.Error("HasTemplate mismatch")
	}
	if got, _ := s.Template("row"); got != row {
		t.Error("Template(row) returned a different node")
	}
	if err := s.RegisterTemplate("row", &markup.Template{Name: "row"}); !werrors.HasCode(err, "MARKUP-0006") {
		t.Errorf("duplicate template error = %v, want MARKUP-0006", err)
	}
}
