// Package corpus fetches a git-hosted fixture corpus onto local disk before
// a driver decodes it into a codedb (spec §6.1, SPEC_FULL.md §2): a
// directory of YAML program descriptions in the same shape pkg/codedb
// decodes, versioned in its own repository so a run can pin an exact ref.
// Grounded on the teacher's own go-git usage (cmd/able/main_test.go), which
// builds throwaway repos via PlainInit/Worktree.Commit to test dependency
// resolution; this package exercises the complementary operation, cloning
// and checking out a real remote.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Fetch clones repoURL into destDir (creating it if absent) and checks out
// ref — a branch name, tag name, or commit hash, tried in that order. An
// already-cloned destDir is fetched and re-checked-out in place rather than
// re-cloned.
func Fetch(repoURL, ref, destDir string) error {
	if repoURL == "" {
		return fmt.Errorf("corpus: empty repo URL")
	}
	if destDir == "" {
		return fmt.Errorf("corpus: empty destination directory")
	}

	repo, err := git.PlainOpen(destDir)
	switch {
	case err == nil:
		remote, rerr := repo.Remote("origin")
		if rerr != nil {
			return fmt.Errorf("corpus: %s: read origin remote: %w", destDir, rerr)
		}
		if fetchErr := repo.Fetch(&git.FetchOptions{RemoteName: remote.Config().Name}); fetchErr != nil && fetchErr != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("corpus: %s: fetch: %w", destDir, fetchErr)
		}
	case err == git.ErrRepositoryNotExists:
		if mkErr := os.MkdirAll(destDir, 0o755); mkErr != nil {
			return fmt.Errorf("corpus: create %s: %w", destDir, mkErr)
		}
		repo, err = git.PlainClone(destDir, false, &git.CloneOptions{URL: repoURL})
		if err != nil {
			return fmt.Errorf("corpus: clone %s into %s: %w", repoURL, destDir, err)
		}
	default:
		return fmt.Errorf("corpus: open %s: %w", destDir, err)
	}

	if ref == "" {
		return nil
	}
	return checkout(repo, ref)
}

func checkout(repo *git.Repository, ref string) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("corpus: worktree: %w", err)
	}

	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	}
	for _, name := range candidates {
		if _, err := repo.Reference(name, true); err == nil {
			return worktree.Checkout(&git.CheckoutOptions{Branch: name})
		}
	}

	hash := plumbing.NewHash(ref)
	if !hash.IsZero() {
		return worktree.Checkout(&git.CheckoutOptions{Hash: hash})
	}
	return fmt.Errorf("corpus: ref %q resolves to neither a branch, tag, nor commit hash", ref)
}

// EntryFiles walks dir collecting every *.yaml/*.yml fixture file, sorted for
// deterministic load order, for the driver to hand to codedb.LoadModule one
// at a time.
func EntryFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext == ".yaml" || ext == ".yml" {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("corpus: walk %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}
