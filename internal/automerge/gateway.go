package automerge

import (
	"context"

	"github.com/optimaxdev/automerge-semantic-release/internal/githubclt"
)

//go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks . Gateway

// Gateway is the set of remote repository operations an automerge run needs.
// It is implemented by githubclt.Client, retryer.Gateway and DryGateway.
type Gateway interface {
	ListBranches(ctx context.Context, owner, repo, refPrefix string) ([]string, error)
	MergeBranch(ctx context.Context, owner, repo, base, head string) (githubclt.MergeResult, error)
	CreateBranch(ctx context.Context, owner, repo, branch, fromCommitSHA string) (string, error)
	CreatePullRequest(ctx context.Context, owner, repo, base, head, title, body string) (int, error)
	AddLabels(ctx context.Context, owner, repo string, pullRequestOrIssueNumber int, labels []string) error
}
