package fleet

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfigAtProjectRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	want := writeFile(t, root, "launch.toml", "")

	got, err := FindConfig(sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("FindConfig = %q, want %q", got, want)
	}
}

func TestFindConfigPrefersJSON(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, root, "launch.yaml", "")
	want := writeFile(t, root, "launch.json", "{}")

	got, err := FindConfig(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("FindConfig = %q, want %q", got, want)
	}
}

func TestFindConfigNone(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := FindConfig(root); !errors.Is(err, ErrNoConfig) {
		t.Errorf("expected ErrNoConfig, got %v", err)
	}
}

func TestProjectRootWithoutGit(t *testing.T) {
	dir := t.TempDir()
	root, err := ProjectRoot(dir)
	if err != nil {
		t.Fatal(err)
	}
	// t.TempDir is not inside a repository in CI, but a developer's TMPDIR
	// might be; either way the result must be dir or one of its ancestors.
	rel, err := filepath.Rel(root, dir)
	if err != nil || filepath.IsAbs(rel) || (len(rel) >= 2 && rel[:2] == "..") {
		t.Errorf("ProjectRoot(%q) = %q, not an ancestor", dir, root)
	}
}
