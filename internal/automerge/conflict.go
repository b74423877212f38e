package automerge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/optimaxdev/automerge-semantic-release/internal/logfields"
)

const (
	fallbackPRBody = "Auto-merge pull request created by Automerge-bot"
	sideBranchFmt  = "automerge_%s_to_%s_%d"
)

// ConflictResolver opens a pull request for changes that could not be merged
// automatically.
// The pull request is created from a new side branch that points to the
// head commit of the source branch, this allows to resolve the conflict in
// the side branch without modifying the release branch.
type ConflictResolver struct {
	gw     Gateway
	label  string
	now    func() time.Time
	logger *zap.Logger
}

// NewConflictResolver returns a ConflictResolver that creates pull requests
// via gw. If label is not empty, it is added to created pull requests.
func NewConflictResolver(gw Gateway, label string) *ConflictResolver {
	return &ConflictResolver{
		gw:     gw,
		label:  strings.TrimSpace(label),
		now:    time.Now,
		logger: zap.L().Named(loggerName).Named("conflict_resolver"),
	}
}

// SideBranchName returns the name of the branch that carries the fallback
// pull request from source to target.
func SideBranchName(source, target string, t time.Time) string {
	return fmt.Sprintf(sideBranchFmt, strings.TrimSpace(source), strings.TrimSpace(target), t.UnixMilli())
}

func fallbackPRTitle(source, target string) string {
	return fmt.Sprintf("Merge release branch %s to the release branch %s", source, target)
}

// Resolve creates a pull request that merges source into target.
// headSHA is the commit the side branch is created from.
// Failing to add the label to the pull request is logged and not returned as
// error.
func (r *ConflictResolver) Resolve(ctx context.Context, owner, repo, source, target, headSHA string) error {
	source = strings.TrimSpace(source)
	target = strings.TrimSpace(target)

	logger := r.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.SourceBranch(source),
		logfields.TargetBranch(target),
	)

	sideBranch, err := r.gw.CreateBranch(ctx, owner, repo, SideBranchName(source, target, r.now()), headSHA)
	if err != nil {
		return fmt.Errorf("creating side branch failed: %w", err)
	}

	logger = logger.With(logfields.Branch(sideBranch))

	prNumber, err := r.gw.CreatePullRequest(ctx, owner, repo, target, sideBranch, fallbackPRTitle(source, target), fallbackPRBody)
	if err != nil {
		return fmt.Errorf("creating pull request from %s to %s failed: %w", sideBranch, target, err)
	}

	logger = logger.With(logfields.PullRequest(prNumber))
	logger.Info(
		"created pull request for merge conflict",
		logfields.Event("fallback_pull_request_created"),
	)

	if r.label == "" {
		return nil
	}

	if err := r.gw.AddLabels(ctx, owner, repo, prNumber, []string{r.label}); err != nil {
		logger.Warn(
			"adding label to pull request failed",
			logfields.Event("github_adding_label_failed"),
			logfields.Label(r.label),
			zap.Error(err),
		)

		return nil
	}

	logger.Debug(
		"label added to pull request",
		logfields.Event("github_label_added"),
		logfields.Label(r.label),
	)

	return nil
}
