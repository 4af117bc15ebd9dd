package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func stage(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestResolve_ByName(t *testing.T) {
	dir := t.TempDir()
	want := stage(t, dir, "lexi-q4.gguf")
	stage(t, dir, "other.gguf")
	got, err := Resolve(dir, "lexi-q4.gguf")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolve_NameWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	want := stage(t, dir, "lexi-q4.gguf")
	got, err := Resolve(dir, "lexi-q4")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolve_SingleArtifact(t *testing.T) {
	dir := t.TempDir()
	want := stage(t, dir, "only.gguf")
	got, err := Resolve(dir, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolve_MostRecentWins(t *testing.T) {
	dir := t.TempDir()
	old := stage(t, dir, "old.gguf")
	want := stage(t, dir, "new.gguf")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	got, err := Resolve(dir, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolve_MissingName(t *testing.T) {
	dir := t.TempDir()
	stage(t, dir, "present.gguf")
	_, err := Resolve(dir, "absent")
	if err == nil || !strings.Contains(err.Error(), "present.gguf") {
		t.Fatalf("expected error listing staged artifacts, got %v", err)
	}
}

func TestResolve_EmptyDir(t *testing.T) {
	if _, err := Resolve(t.TempDir(), ""); err == nil {
		t.Fatalf("expected error for empty models dir")
	}
}

func TestResolve_IgnoresNonGGUF(t *testing.T) {
	dir := t.TempDir()
	stage(t, dir, "notes.txt")
	want := stage(t, dir, "model.gguf")
	got, err := Resolve(dir, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
