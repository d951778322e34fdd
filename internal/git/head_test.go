package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRevisionOutsideRepository(t *testing.T) {
	rev, err := ReadRevision(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Revision{}, rev)
}

func TestReadRevisionUnbornHead(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	rev, err := ReadRevision(dir)
	require.NoError(t, err)
	assert.Empty(t, rev.Commit)
}

func TestReadRevisionFromSubdirectory(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "static_website.yaml"), []byte("x: 1\n"), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("static_website.yaml")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	sub := filepath.Join(dir, "site", "templates")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	rev, err := ReadRevision(sub)
	require.NoError(t, err)
	assert.Equal(t, hash.String(), rev.Commit)
	assert.NotEmpty(t, rev.Branch)
	assert.Len(t, rev.Short(), 12)
}
