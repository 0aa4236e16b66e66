package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/multierr"

	"github.com/aellingwood/mdenhance/internal/enhance"
	"github.com/aellingwood/mdenhance/internal/markdown"
)

// writeTree creates files under dir from a map of relative path to content.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

type rendererFunc func([]byte) ([]byte, error)

func (f rendererFunc) Render(src []byte) ([]byte, error) { return f(src) }

func TestBuildRendersPagesAndCopiesAssets(t *testing.T) {
	contentDir := t.TempDir()
	outDir := t.TempDir()
	writeTree(t, contentDir, map[string]string{
		"index.md":           "---\ntitle: Home\n---\n![Logo](./logo.png)\n",
		"logo.png":           "png",
		"blog/first.md":      "# First\n\n![Cover](./img/cover.jpg?w=640)\n",
		"blog/img/cover.jpg": "jpg",
		".hidden/skip.md":    "# skip",
		".DS_Store":          "junk",
	})

	rw, err := enhance.NewRewriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(markdown.NewRenderer(rw, markdown.Options{}, nil), BuildOptions{
		ContentDir: contentDir,
		OutputDir:  outDir,
		Extension:  ".svelte",
		Workers:    2,
	}, nil)

	result, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if result.PagesRendered != 2 {
		t.Errorf("PagesRendered: got %d, want 2", result.PagesRendered)
	}
	if result.FilesCopied != 2 {
		t.Errorf("FilesCopied: got %d, want 2", result.FilesCopied)
	}
	wantPages := []string{filepath.Join("blog", "first.svelte"), "index.svelte"}
	if strings.Join(result.Pages, ",") != strings.Join(wantPages, ",") {
		t.Errorf("Pages: got %v, want %v", result.Pages, wantPages)
	}

	page, err := os.ReadFile(filepath.Join(outDir, "blog", "first.svelte"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(page), "import _img0 from './img/cover.jpg?enhanced&w=640';") {
		t.Errorf("page missing enhanced import:\n%s", page)
	}
	if _, err := os.Stat(filepath.Join(outDir, "blog", "img", "cover.jpg")); err != nil {
		t.Errorf("asset not copied next to its page: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, ".hidden")); !os.IsNotExist(err) {
		t.Error("hidden directories must be skipped")
	}
}

func TestBuildReportsEveryFailure(t *testing.T) {
	contentDir := t.TempDir()
	outDir := t.TempDir()
	writeTree(t, contentDir, map[string]string{
		"a.md":  "bad",
		"b.md":  "good",
		"c.md":  "bad",
		"d.txt": "asset",
	})

	errBad := errors.New("bad page")
	r := rendererFunc(func(src []byte) ([]byte, error) {
		if string(src) == "bad" {
			return nil, errBad
		}
		return []byte("ok"), nil
	})

	result, err := NewBuilder(r, BuildOptions{ContentDir: contentDir, OutputDir: outDir}, nil).Build(context.Background())
	if err == nil {
		t.Fatal("Build() expected an error")
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("expected 2 combined errors, got %d: %v", n, err)
	}
	if !errors.Is(err, errBad) {
		t.Errorf("errors should wrap the renderer error, got %v", err)
	}
	if result == nil || result.PagesRendered != 1 {
		t.Errorf("the good page should still be rendered, got %+v", result)
	}
	if _, err := os.Stat(filepath.Join(outDir, "b.svelte")); err != nil {
		t.Errorf("default extension should be .svelte: %v", err)
	}
}

func TestBuildStopsOnCancel(t *testing.T) {
	contentDir := t.TempDir()
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files[name+".md"] = name
	}
	writeTree(t, contentDir, files)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	r := rendererFunc(func(src []byte) ([]byte, error) {
		calls.Add(1)
		cancel()
		return src, nil
	})

	_, err := NewBuilder(r, BuildOptions{ContentDir: contentDir, OutputDir: t.TempDir(), Workers: 1}, nil).Build(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if n := calls.Load(); n >= 6 {
		t.Errorf("cancellation should stop dispatch, rendered %d pages", n)
	}
}

func TestBuildMissingContentDir(t *testing.T) {
	r := rendererFunc(func(src []byte) ([]byte, error) { return src, nil })
	result, err := NewBuilder(r, BuildOptions{ContentDir: filepath.Join(t.TempDir(), "nope")}, nil).Build(context.Background())
	if err == nil {
		t.Error("expected an error for a missing content directory")
	}
	if result == nil {
		t.Fatal("result should be returned even when discovery fails")
	}
	if result.PagesRendered != 0 || result.FilesCopied != 0 {
		t.Errorf("nothing should be counted, got %+v", result)
	}
}

func TestBuildSkipsNestedOutputDir(t *testing.T) {
	contentDir := t.TempDir()
	outDir := filepath.Join(contentDir, "out")
	writeTree(t, contentDir, map[string]string{
		"index.md":  "# Home\n",
		"photo.jpg": "jpg",
	})

	r := rendererFunc(func(src []byte) ([]byte, error) { return src, nil })
	b := NewBuilder(r, BuildOptions{ContentDir: contentDir, OutputDir: outDir}, nil)

	for i := range 2 {
		result, err := b.Build(context.Background())
		if err != nil {
			t.Fatalf("Build() #%d error: %v", i+1, err)
		}
		if result.PagesRendered != 1 || result.FilesCopied != 1 {
			t.Errorf("Build() #%d: got %d pages and %d files, want 1 and 1",
				i+1, result.PagesRendered, result.FilesCopied)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "out")); !os.IsNotExist(err) {
		t.Errorf("output directory should not be copied into itself, stat error: %v", err)
	}
}

func TestRenderParallelEmpty(t *testing.T) {
	err := renderParallel(context.Background(), nil, 4, func(source) error {
		t.Error("fn must not be called")
		return nil
	})
	if err != nil {
		t.Errorf("renderParallel() error: %v", err)
	}
}

func TestIsPage(t *testing.T) {
	tests := map[string]bool{
		"post.md":        true,
		"POST.MD":        true,
		"dir/page.md":    true,
		"image.png":      false,
		"notes.markdown": false,
		"md":             false,
	}
	for in, want := range tests {
		if got := IsPage(in); got != want {
			t.Errorf("IsPage(%q) = %v, want %v", in, got, want)
		}
	}
}
