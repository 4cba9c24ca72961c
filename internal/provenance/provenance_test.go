package provenance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{"https://example.com/shop.git"},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.sql"), []byte("SELECT 1;\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("pricing.sql")
	require.NoError(t, err)

	hash, err := wt.Commit("add pricing", &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	return dir, hash.String()
}

func TestCollectFromRepository(t *testing.T) {
	dir, commit := initRepo(t)

	info := Collect(dir, nil)
	require.Equal(t, commit, info.Commit)
	require.NotEmpty(t, info.Branch)
	require.Equal(t, "https://example.com/shop.git", info.Remote)
}

func TestCollectOutsideRepository(t *testing.T) {
	info := Collect(t.TempDir(), nil)
	require.Equal(t, Info{}, info)
}

func TestStamp(t *testing.T) {
	model := &rules.DecisionModel{}

	Info{Commit: "abc123", Branch: "main", Remote: "https://example.com/shop.git"}.Stamp(model)
	require.Equal(t, "abc123", model.Metadata[MetaCommit])
	require.Equal(t, "main", model.Metadata[MetaBranch])
	require.Equal(t, "https://example.com/shop.git", model.Metadata[MetaRemote])

	empty := &rules.DecisionModel{}
	Info{}.Stamp(empty)
	require.Empty(t, empty.Metadata)
}
