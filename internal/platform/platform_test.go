package platform

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWorkspaceLifecycle(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	a, err := ws.ItemDir()
	if err != nil {
		t.Fatal(err)
	}
	b, err := ws.ItemDir()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("item dirs must be unique")
	}

	if err := os.WriteFile(filepath.Join(a, "Same Title.mp4"), []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(b, "Same Title.mp4"), []byte("2"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ws.Release(a); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(a); !os.IsNotExist(err) {
		t.Fatal("released dir still exists")
	}
	if err := ws.Release(ws.Root); err == nil {
		t.Fatal("releasing the root must be refused")
	}
	if err := ws.Release(filepath.Dir(ws.Root)); err == nil {
		t.Fatal("releasing outside the workspace must be refused")
	}

	if err := ws.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Fatal("workspace root still exists after Close")
	}
}

func TestValidateDependencies(t *testing.T) {
	bin := t.TempDir()
	if err := os.WriteFile(filepath.Join(bin, "present-tool"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", bin)

	if err := ValidateDependencies("present-tool"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ValidateDependencies("present-tool", "missing-tool")
	if err == nil || !strings.Contains(err.Error(), "missing-tool") {
		t.Fatalf("expected missing-tool in error, got %v", err)
	}
}

func TestTailLines(t *testing.T) {
	out := "a\n\nb\nc\n\n"
	if got := TailLines(out, 2); got != "b\nc" {
		t.Fatalf("TailLines = %q", got)
	}
	if got := TailLines("", 3); got != "" {
		t.Fatalf("TailLines(empty) = %q", got)
	}
}
