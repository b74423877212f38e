package automerge

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/optimaxdev/automerge-semantic-release/internal/automerge/mocks"
	"github.com/optimaxdev/automerge-semantic-release/internal/githubclt"
)

func TestDryGatewayForwardsReadsAndSimulatesWrites(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(mockctrl)

	mockListBranches(gw, []string{"1.x"})

	dry := NewDryGateway(gw, zap.L())
	ctx := context.Background()

	branches, err := dry.ListBranches(ctx, repoOwner, repo, "refs/heads/")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.x"}, branches)

	res, err := dry.MergeBranch(ctx, repoOwner, repo, "1.2.x", "1.1.x")
	require.NoError(t, err)
	assert.Equal(t, githubclt.MergeResultNoOp, res)

	branch, err := dry.CreateBranch(ctx, repoOwner, repo, "side", headSHA)
	require.NoError(t, err)
	assert.Equal(t, "side", branch)

	_, err = dry.CreatePullRequest(ctx, repoOwner, repo, "1.2.x", "side", "title", "body")
	require.NoError(t, err)

	require.NoError(t, dry.AddLabels(ctx, repoOwner, repo, 1, []string{"automerge"}))
}
