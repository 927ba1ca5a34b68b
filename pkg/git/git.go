// Package git backs the git.ensure-repo and git.checkout Flow ops,
// cloning and checking out the repository a Github/Gitlab job
// document references.
package git

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// EnsureRepo clones url into dir if dir doesn't already hold a git
// repository, and is a no-op otherwise. Idempotent, so a flow resumed
// after a restart (scenario 4) can replay this op safely.
func EnsureRepo(url, dir string) error {
	if _, err := os.Stat(dir); err == nil {
		if _, err := git.PlainOpen(dir); err == nil {
			return nil
		}
	}

	if _, err := git.PlainClone(dir, false, &git.CloneOptions{URL: url}); err != nil {
		return fmt.Errorf("git: clone %s into %s: %w", url, dir, err)
	}
	return nil
}

// Checkout resets dir's working tree to the given commit SHA.
func Checkout(dir, commitSHA string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("git: open %s: %w", dir, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("git: worktree %s: %w", dir, err)
	}

	if err := worktree.Checkout(&git.CheckoutOptions{
		Hash:  plumbing.NewHash(commitSHA),
		Force: true,
	}); err != nil {
		return fmt.Errorf("git: checkout %s @ %s: %w", dir, commitSHA, err)
	}
	return nil
}
