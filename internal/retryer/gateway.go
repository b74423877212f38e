package retryer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/optimaxdev/automerge-semantic-release/internal/amerr"
	"github.com/optimaxdev/automerge-semantic-release/internal/githubclt"
	"github.com/optimaxdev/automerge-semantic-release/internal/logfields"
)

// GithubClient is the set of GitHub operations that Gateway retries.
type GithubClient interface {
	ListBranches(ctx context.Context, owner, repo, refPrefix string) ([]string, error)
	MergeBranch(ctx context.Context, owner, repo, base, head string) (githubclt.MergeResult, error)
	CreateBranch(ctx context.Context, owner, repo, branch, fromCommitSHA string) (string, error)
	CreatePullRequest(ctx context.Context, owner, repo, base, head, title, body string) (int, error)
	AddLabels(ctx context.Context, owner, repo string, pullRequestOrIssueNumber int, labels []string) error
}

// Gateway wraps a GithubClient and retries operations that failed with an
// amerr.RetryableError.
// Operations that create a resource are not retried when GitHub responded
// with a server error, the resource might have been created.
type Gateway struct {
	clt     GithubClient
	retryer *Retryer
}

func NewGateway(clt GithubClient, retryer *Retryer) *Gateway {
	return &Gateway{clt: clt, retryer: retryer}
}

func (g *Gateway) ListBranches(ctx context.Context, owner, repo, refPrefix string) ([]string, error) {
	var result []string

	err := g.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = g.clt.ListBranches(ctx, owner, repo, refPrefix)
		return err
	}, []zap.Field{
		zap.String("operation", "list_branches"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
	})

	return result, err
}

func (g *Gateway) MergeBranch(ctx context.Context, owner, repo, base, head string) (githubclt.MergeResult, error) {
	var result githubclt.MergeResult

	err := g.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = g.clt.MergeBranch(ctx, owner, repo, base, head)
		return err
	}, []zap.Field{
		zap.String("operation", "merge_branch"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.TargetBranch(base),
		logfields.SourceBranch(head),
	})

	return result, err
}

func (g *Gateway) CreateBranch(ctx context.Context, owner, repo, branch, fromCommitSHA string) (string, error) {
	var result string

	err := g.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = g.clt.CreateBranch(ctx, owner, repo, branch, fromCommitSHA)
		return withoutServerErrorRetries(err)
	}, []zap.Field{
		zap.String("operation", "create_branch"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Branch(branch),
		logfields.Commit(fromCommitSHA),
	})

	return result, err
}

func (g *Gateway) CreatePullRequest(ctx context.Context, owner, repo, base, head, title, body string) (int, error) {
	var result int

	err := g.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = g.clt.CreatePullRequest(ctx, owner, repo, base, head, title, body)
		return withoutServerErrorRetries(err)
	}, []zap.Field{
		zap.String("operation", "create_pull_request"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.BaseBranch(base),
		logfields.Branch(head),
	})

	return result, err
}

func (g *Gateway) AddLabels(ctx context.Context, owner, repo string, pullRequestOrIssueNumber int, labels []string) error {
	return g.retryer.Run(ctx, func(ctx context.Context) error {
		return g.clt.AddLabels(ctx, owner, repo, pullRequestOrIssueNumber, labels)
	}, []zap.Field{
		zap.String("operation", "add_labels"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(pullRequestOrIssueNumber),
		zap.Strings("github.labels", labels),
	})
}

// withoutServerErrorRetries unwraps retryable errors that were caused by a 5xx
// response. Rate limit errors stay retryable, GitHub did not process the
// request.
func withoutServerErrorRetries(err error) error {
	var retryErr *amerr.RetryableError
	if !errors.As(err, &retryErr) {
		return err
	}

	var statusErr *amerr.UnexpectedStatusError
	if errors.As(retryErr.Err, &statusErr) && statusErr.Status >= 500 {
		return retryErr.Err
	}

	return err
}
