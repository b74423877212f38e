package githubclt

import (
	"context"
	"errors"
	"fmt"

	"github.com/shurcooL/githubv4"
)

const branchesPerPage = 100

// ListBranches returns the names of all branches in the repository.
// The names are returned without the refPrefix, if refPrefix is empty
// "refs/heads/" is used.
// The branches are retrieved page-wise, until GitHub reports that no further
// page exists.
func (clt *Client) ListBranches(ctx context.Context, owner, repo, refPrefix string) ([]string, error) {
	type graphQLQueryRefs struct {
		Repository struct {
			Refs struct {
				Nodes []struct {
					Name string
				}
				PageInfo struct {
					EndCursor   string
					HasNextPage bool
				}
			} `graphql:"refs(refPrefix: $refPrefix, first: $first, after: $after)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	if refPrefix == "" {
		refPrefix = branchRefPrefix
	}

	vars := map[string]any{
		"owner":     githubv4.String(owner),
		"name":      githubv4.String(repo),
		"refPrefix": githubv4.String(refPrefix),
		"first":     githubv4.Int(branchesPerPage),
		"after":     (*githubv4.String)(nil),
	}

	var result []string
	for {
		var q graphQLQueryRefs

		err := clt.graphQLClt.Query(ctx, &q, vars)
		if err != nil {
			return nil, fmt.Errorf("querying branches failed: %w", clt.wrapGraphQLRetryableErrors(err))
		}

		for _, node := range q.Repository.Refs.Nodes {
			result = append(result, node.Name)
		}

		pageInfo := q.Repository.Refs.PageInfo
		if !pageInfo.HasNextPage {
			return result, nil
		}

		if pageInfo.EndCursor == "" {
			return nil, errors.New("retrieving all branches failed, HasNextPage is true, expected non-empty EndCursor")
		}

		vars["after"] = githubv4.NewString(githubv4.String(pageInfo.EndCursor))
	}
}
