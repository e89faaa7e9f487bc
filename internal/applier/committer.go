// internal/applier/committer.go
package applier

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// Committer records successfully applied fixes as git commits in the project
// repository. Committing is best-effort and config-gated: a project that is
// not a git repository simply skips the commit.
type Committer struct {
	projectRoot string
	logger      *zap.Logger
}

// NewCommitter builds a committer rooted at the project directory.
func NewCommitter(projectRoot string, logger *zap.Logger) *Committer {
	return &Committer{projectRoot: projectRoot, logger: logger.Named("committer")}
}

// Commit stages the applied fix's files and creates one commit per applied
// suggestion. The returned hash is empty when the project is not a repository.
func (c *Committer) Commit(applied schemas.AppliedFix) (string, error) {
	if !applied.Success {
		return "", fmt.Errorf("refusing to commit an unsuccessful fix")
	}

	repo, err := git.PlainOpen(c.projectRoot)
	if err == git.ErrRepositoryNotExists {
		c.logger.Debug("Project is not a git repository, skipping commit")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}

	for _, abs := range applied.Files {
		rel, err := filepath.Rel(c.projectRoot, abs)
		if err != nil {
			return "", fmt.Errorf("failed to relativize %s: %w", abs, err)
		}
		if _, err := wt.Add(rel); err != nil {
			return "", fmt.Errorf("failed to stage %s: %w", rel, err)
		}
	}

	hash, err := wt.Commit(commitMessage(applied), &git.CommitOptions{
		Author: &object.Signature{
			Name:  "mend",
			Email: "mend@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit fix: %w", err)
	}

	c.logger.Info("Committed applied fix",
		zap.String("commit", hash.String()),
		zap.String("test_id", applied.Suggestion.TestID))
	return hash.String(), nil
}

func commitMessage(applied schemas.AppliedFix) string {
	s := applied.Suggestion
	summary := s.Suggestion
	if idx := strings.IndexByte(summary, '\n'); idx > 0 {
		summary = summary[:idx]
	}
	if len(summary) > 72 {
		summary = summary[:69] + "..."
	}
	return fmt.Sprintf("fix: %s\n\nTest: %s\nConfidence: %.2f\nSource: %s\n",
		summary, s.TestID, s.Confidence, s.Provenance)
}
