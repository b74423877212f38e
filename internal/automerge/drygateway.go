package automerge

import (
	"context"

	"go.uber.org/zap"

	"github.com/optimaxdev/automerge-semantic-release/internal/githubclt"
	"github.com/optimaxdev/automerge-semantic-release/internal/logfields"
)

// DryGateway is a Gateway that does not do any changes on github.
// All operations that could cause a change are simulated and always succeed.
// All other operations are forwarded to a wrapped Gateway.
type DryGateway struct {
	gw     Gateway
	logger *zap.Logger
}

func NewDryGateway(gw Gateway, logger *zap.Logger) *DryGateway {
	return &DryGateway{
		gw:     gw,
		logger: logger.Named("dry_github_client"),
	}
}

func (c *DryGateway) ListBranches(ctx context.Context, owner, repo, refPrefix string) ([]string, error) {
	return c.gw.ListBranches(ctx, owner, repo, refPrefix)
}

func (c *DryGateway) MergeBranch(_ context.Context, _, _, base, head string) (githubclt.MergeResult, error) {
	c.logger.Info(
		"simulated merging of branch, returning is uptodate",
		logfields.Event("dry_run_merge_branch"),
		logfields.TargetBranch(base),
		logfields.SourceBranch(head),
	)

	return githubclt.MergeResultNoOp, nil
}

func (c *DryGateway) CreateBranch(_ context.Context, _, _, branch, fromCommitSHA string) (string, error) {
	c.logger.Info(
		"simulated creating of branch, no branch created on github",
		logfields.Event("dry_run_create_branch"),
		logfields.Branch(branch),
		logfields.Commit(fromCommitSHA),
	)

	return branch, nil
}

func (c *DryGateway) CreatePullRequest(_ context.Context, _, _, base, head, title, _ string) (int, error) {
	c.logger.Info(
		"simulated creating of pull request, no pull request created on github",
		logfields.Event("dry_run_create_pull_request"),
		logfields.BaseBranch(base),
		logfields.Branch(head),
		zap.String("github.pull_request_title", title),
	)

	return 0, nil
}

func (*DryGateway) AddLabels(context.Context, string, string, int, []string) error {
	return nil
}
