// Package provenance stamps git metadata into run output. Everything
// here is best-effort: a repository without git history still analyzes,
// it just carries no commit coordinates.
package provenance

import (
	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// Metadata keys written into the decision model.
const (
	MetaCommit = "git_commit"
	MetaBranch = "git_branch"
	MetaRemote = "git_remote"
)

// Info is the git state of an analyzed repository at run time.
type Info struct {
	Commit string
	Branch string
	Remote string
}

// Collect reads the repository's HEAD and origin remote. A missing or
// detached state leaves the corresponding field empty.
func Collect(repoPath string, logger *logging.Logger) Info {
	if logger == nil {
		logger = logging.NewNop()
	}
	log := logger.Named("provenance")

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		log.Debug("not a git repository", zap.String("path", repoPath))
		return Info{}
	}

	var info Info
	if head, err := repo.Head(); err == nil {
		info.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		}
	} else {
		log.Debug("no HEAD", zap.String("path", repoPath), zap.Error(err))
	}

	if remote, err := repo.Remote(git.DefaultRemoteName); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			info.Remote = urls[0]
		}
	}
	return info
}

// Stamp writes the collected fields into the model's metadata, skipping
// empties.
func (i Info) Stamp(model *rules.DecisionModel) {
	if i.Commit != "" {
		model.SetMeta(MetaCommit, i.Commit)
	}
	if i.Branch != "" {
		model.SetMeta(MetaBranch, i.Branch)
	}
	if i.Remote != "" {
		model.SetMeta(MetaRemote, i.Remote)
	}
}
