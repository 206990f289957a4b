package corpus

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestEntryFilesCollectsYAMLSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	got, err := EntryFiles(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}
	if len(got) != len(want) {
		t.Fatalf("EntryFiles = %v, want %v", got, want)
	}
	sort.Strings(got)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("EntryFiles[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEntryFilesSkipsGitDirectory(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	if err := os.WriteFile(filepath.Join(gitDir, "config.yaml"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fixture.yaml"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture.yaml: %v", err)
	}
	got, err := EntryFiles(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != filepath.Join(dir, "fixture.yaml") {
		t.Fatalf("expected only fixture.yaml (skipping .git), got %v", got)
	}
}

func TestEntryFilesEmptyDirYieldsNil(t *testing.T) {
	got, err := EntryFiles(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries in an empty dir, got %v", got)
	}
}

func TestFetchRejectsEmptyArguments(t *testing.T) {
	if err := Fetch("", "main", t.TempDir()); err == nil {
		t.Fatalf("expected an error for an empty repo URL")
	}
	if err := Fetch("file:///nowhere", "main", ""); err == nil {
		t.Fatalf("expected an error for an empty destination directory")
	}
}

func TestFetchClonesAndChecksOutBranch(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "fixture.yaml"), []byte("name: first\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	initGitRepo(t, srcDir)

	destDir := filepath.Join(t.TempDir(), "checkout")
	if err := Fetch(srcDir, "master", destDir); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(destDir, "fixture.yaml"))
	if err != nil {
		t.Fatalf("reading checked-out fixture: %v", err)
	}
	if string(data) != "name: first\n" {
		t.Fatalf("unexpected checked-out content: %q", data)
	}
}

func TestFetchRefetchesExistingClone(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "fixture.yaml"), []byte("name: first\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	initGitRepo(t, srcDir)

	destDir := filepath.Join(t.TempDir(), "checkout")
	if err := Fetch(srcDir, "master", destDir); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	if err := Fetch(srcDir, "master", destDir); err != nil {
		t.Fatalf("second Fetch against an existing clone: %v", err)
	}
}

func TestFetchChecksOutCommitHash(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "fixture.yaml"), []byte("name: first\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	hash := initGitRepo(t, srcDir)

	destDir := filepath.Join(t.TempDir(), "checkout")
	if err := Fetch(srcDir, hash, destDir); err != nil {
		t.Fatalf("Fetch by hash: %v", err)
	}
}

func TestFetchUnresolvableRefErrors(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "fixture.yaml"), []byte("name: first\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	initGitRepo(t, srcDir)

	destDir := filepath.Join(t.TempDir(), "checkout")
	err := Fetch(srcDir, "no-such-ref", destDir)
	if err == nil {
		t.Fatalf("expected an error for a ref that resolves to nothing")
	}
}

// initGitRepo stages every file under dir (skipping .git) and commits them,
// returning the commit hash.
func initGitRepo(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == filepath.Join(dir, ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		_, addErr := worktree.Add(rel)
		return addErr
	}); err != nil {
		t.Fatalf("stage files: %v", err)
	}
	hash, err := worktree.Commit("init", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "corpus test",
			Email: "corpus@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return hash.String()
}
