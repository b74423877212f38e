// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/optimaxdev/automerge-semantic-release/internal/amerr"
	"github.com/optimaxdev/automerge-semantic-release/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

const branchRefPrefix = "refs/heads/"

// New returns a new github api client for github.com.
func New(oauthAPItoken string) *Client {
	httpClient := newHTTPClient(oauthAPItoken)
	return &Client{
		restClt:    github.NewClient(httpClient),
		graphQLClt: githubv4.NewClient(httpClient),
		logger:     zap.L().Named(loggerName),
	}
}

// NewEnterprise returns a github api client that sends REST requests to
// restURL and GraphQL queries to graphQLURL.
// It is used for GitHub Enterprise installations, the URLs are provided to
// GitHub Actions via the GITHUB_API_URL and GITHUB_GRAPHQL_URL environment
// variables.
func NewEnterprise(oauthAPItoken, restURL, graphQLURL string) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimSuffix(restURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing rest api url failed: %w", err)
	}

	if graphQLURL == "" {
		return nil, errors.New("graphql api url is empty")
	}

	httpClient := newHTTPClient(oauthAPItoken)

	restClt := github.NewClient(httpClient)
	restClt.BaseURL = baseURL

	return &Client{
		restClt:    restClt,
		graphQLClt: githubv4.NewEnterpriseClient(graphQLURL, httpClient),
		logger:     zap.L().Named(loggerName),
	}, nil
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is an github API client.
// All methods return an amerr.RetryableError when an operation can be retried.
// This can be e.g. the case when the API ratelimit is exceeded.
// Responses with a status code that an operation does not expect are returned
// as amerr.UnexpectedStatusError.
type Client struct {
	restClt    *github.Client
	graphQLClt *githubv4.Client
	logger     *zap.Logger
}

// MergeBranch merges the head branch into the base branch.
// If the base branch already contains all commits of head,
// MergeResultNoOp is returned.
// If the branches can not be merged because of a merge conflict,
// MergeResultConflict is returned, a conflict is not an error.
func (clt *Client) MergeBranch(ctx context.Context, owner, repo, base, head string) (MergeResult, error) {
	const operation = "merging branch"

	_, resp, err := clt.restClt.Repositories.Merge(ctx, owner, repo, &github.RepositoryMergeRequest{
		Base: &base,
		Head: &head,
	})
	if err != nil {
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusConflict {
			clt.logger.Debug(
				"merging branch failed with a merge conflict",
				logfields.Event("github_merge_conflict"),
				logfields.RepositoryOwner(owner),
				logfields.Repository(repo),
				logfields.TargetBranch(base),
				logfields.SourceBranch(head),
			)

			return MergeResultConflict, nil
		}

		return MergeResultUndefined, clt.wrapErrors(operation, err)
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		return MergeResultMerged, nil

	case http.StatusNoContent:
		return MergeResultNoOp, nil

	default:
		return MergeResultUndefined, &amerr.UnexpectedStatusError{
			Operation: operation,
			Status:    resp.StatusCode,
		}
	}
}

func branchRef(branch string) string {
	return branchRefPrefix + strings.Trim(strings.TrimSpace(branch), "/")
}

// CreateBranch creates a new branch pointing to the commit fromCommitSHA.
// It returns the name of the created branch.
func (clt *Client) CreateBranch(ctx context.Context, owner, repo, branch, fromCommitSHA string) (string, error) {
	const operation = "creating branch"

	if fromCommitSHA == "" {
		return "", errors.New("commit sha is empty")
	}

	ref, resp, err := clt.restClt.Git.CreateRef(ctx, owner, repo, &github.Reference{
		Ref:    github.String(branchRef(branch)),
		Object: &github.GitObject{SHA: github.String(fromCommitSHA)},
	})
	if err != nil {
		return "", clt.wrapErrors(operation, err)
	}

	if resp.StatusCode != http.StatusCreated {
		return "", &amerr.UnexpectedStatusError{Operation: operation, Status: resp.StatusCode}
	}

	return strings.TrimSpace(strings.TrimPrefix(ref.GetRef(), branchRefPrefix)), nil
}

// CreatePullRequest creates a pull request to merge head into base.
// The pull request is not a draft and maintainers can modify it.
// The number of the created pull request is returned.
func (clt *Client) CreatePullRequest(ctx context.Context, owner, repo, base, head, title, body string) (int, error) {
	const operation = "creating pull request"

	pr, resp, err := clt.restClt.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title:               &title,
		Head:                &head,
		Base:                &base,
		Body:                &body,
		MaintainerCanModify: github.Bool(true),
		Draft:               github.Bool(false),
	})
	if err != nil {
		return 0, clt.wrapErrors(operation, err)
	}

	if resp.StatusCode != http.StatusCreated {
		return 0, &amerr.UnexpectedStatusError{Operation: operation, Status: resp.StatusCode}
	}

	if pr.GetNumber() <= 0 {
		return 0, errors.New("pull request was created with unknown number")
	}

	return pr.GetNumber(), nil
}

// AddLabels adds labels to a Pull-Request or Issue.
// Labels that do not exist in the repository are created by GitHub.
func (clt *Client) AddLabels(ctx context.Context, owner, repo string, pullRequestOrIssueNumber int, labels []string) error {
	const operation = "adding labels"

	if len(labels) == 0 {
		// by default github removes all labels when none is provided,
		// we do not need this functionality, as safe guard fail if
		// because of a bug an empty label value is passed:
		return errors.New("provided label list is empty")
	}

	for _, l := range labels {
		if l == "" {
			return errors.New("provided label is empty")
		}
	}

	_, resp, err := clt.restClt.Issues.AddLabelsToIssue(ctx, owner, repo, pullRequestOrIssueNumber, labels)
	if err != nil {
		return clt.wrapErrors(operation, err)
	}

	if resp.StatusCode != http.StatusOK {
		return &amerr.UnexpectedStatusError{Operation: operation, Status: resp.StatusCode}
	}

	return nil
}

// wrapErrors converts err into an amerr.RetryableError if the operation can
// be retried, into an amerr.UnexpectedStatusError if GitHub responded with an
// error status, otherwise the error is annotated with operation.
func (clt *Client) wrapErrors(operation string, err error) error {
	if err := clt.wrapRetryableErrors(err); err != nil {
		var retryErr *amerr.RetryableError
		if errors.As(err, &retryErr) {
			return retryErr
		}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return &amerr.UnexpectedStatusError{
			Operation: operation,
			Status:    respErr.Response.StatusCode,
			Body:      errorResponseBody(respErr),
			Err:       err,
		}
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}

func errorResponseBody(respErr *github.ErrorResponse) []byte {
	if len(respErr.Errors) == 0 {
		return []byte(respErr.Message)
	}

	var sb strings.Builder
	sb.WriteString(respErr.Message)
	for _, e := range respErr.Errors {
		sb.WriteString("; ")
		sb.WriteString(e.Error())
	}

	return []byte(sb.String())
}

func (clt *Client) wrapRetryableErrors(err error) error {
	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return amerr.NewRetryableError(err, v.Rate.Reset.Time)

	case *github.AbuseRateLimitError:
		clt.logger.Info(
			"secondary rate limit exceeded",
			logfields.Event("github_api_secondary_rate_limit_exceeded"),
			zap.Durationp("github_api_retry_after", v.RetryAfter),
		)

		if v.RetryAfter != nil {
			return amerr.NewRetryableError(err, time.Now().Add(*v.RetryAfter))
		}

		return amerr.NewRetryableAnytimeError(err)

	case *github.ErrorResponse:
		if v.Response != nil && v.Response.StatusCode >= 500 && v.Response.StatusCode < 600 {
			var operation string
			if v.Response.Request != nil {
				operation = v.Response.Request.Method + " " + v.Response.Request.URL.Path
			}

			return amerr.NewRetryableAnytimeError(&amerr.UnexpectedStatusError{
				Operation: operation,
				Status:    v.Response.StatusCode,
				Body:      errorResponseBody(v),
				Err:       err,
			})
		}
	}

	return err
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return err
	}

	if errcode >= 500 && errcode < 600 {
		return amerr.NewRetryableAnytimeError(err)
	}

	return err
}
