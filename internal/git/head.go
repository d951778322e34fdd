package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Revision identifies the checked-out commit of a repository.
type Revision struct {
	Commit string `json:"commit"`
	Branch string `json:"branch,omitempty"`
}

// ReadRevision returns the HEAD revision of the repository containing dir.
// Parent directories are searched for the repository root. A directory that
// is not inside a repository yields a zero Revision and no error.
func ReadRevision(dir string) (Revision, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Revision{}, nil
		}
		return Revision{}, fmt.Errorf("open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		// A fresh repository without commits has an unborn HEAD.
		return Revision{}, nil //nolint:nilerr // unborn HEAD is not a failure
	}
	rev := Revision{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}
	return rev, nil
}

// Short returns the abbreviated commit hash.
func (r Revision) Short() string {
	if len(r.Commit) > 12 {
		return r.Commit[:12]
	}
	return r.Commit
}
