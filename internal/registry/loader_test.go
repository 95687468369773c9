package registry

import (
	"os"
	"path/filepath"
	"testing"

	"chesscomm/pkg/types"
)

func TestLoadDir_FiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"b.gguf", "a.GGUF", "notes.txt", "model.bin"} {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d: %+v", len(models), models)
	}
	if models[0].ID != "a.GGUF" || models[1].ID != "b.gguf" {
		t.Fatalf("unexpected order: %+v", models)
	}
	if !filepath.IsAbs(models[0].Path) {
		t.Fatalf("path not absolute: %s", models[0].Path)
	}
}

func TestLoadDir_Missing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	got, err := ExpandHome("~/models/llm")
	if err != nil {
		t.Fatalf("ExpandHome: %v", err)
	}
	if got != filepath.Join(home, "models", "llm") {
		t.Fatalf("unexpected expansion: %s", got)
	}
	if got, _ := ExpandHome("/abs"); got != "/abs" {
		t.Fatalf("absolute path changed: %s", got)
	}
	if got, _ := ExpandHome("~"); got != home {
		t.Fatalf("bare ~ not expanded: %s", got)
	}
}

func TestResolve(t *testing.T) {
	models := []types.Model{
		{ID: "chess-gemma-commentary-extra.gguf", Path: "/m/extra"},
		{ID: "Chess-Gemma-Commentary.Q8_0.gguf", Path: "/m/q8"},
		{ID: "gemma-2b.gguf", Path: "/m/gemma"},
	}
	m, ok := Resolve(models, "NAKSTStudio/chess-gemma-commentary")
	if !ok {
		t.Fatalf("expected a match")
	}
	// Both prefix matches qualify; the first listed wins.
	if m.Path != "/m/extra" {
		t.Fatalf("unexpected match: %+v", m)
	}

	exact := append(models, types.Model{ID: "chess-gemma-commentary.gguf", Path: "/m/exact"})
	if m, _ := Resolve(exact, "NAKSTStudio/chess-gemma-commentary"); m.Path != "/m/exact" {
		t.Fatalf("exact match should win, got %+v", m)
	}

	if _, ok := Resolve(models, "owner/chess-gem"); ok {
		t.Fatalf("partial word must not match")
	}
	if _, ok := Resolve(models, ""); ok {
		t.Fatalf("empty id must not match")
	}
}
