package automerge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimaxdev/automerge-semantic-release/internal/githubclt"
)

type recorder struct {
	merged   []string
	resolved []string
	results  map[string]githubclt.MergeResult
	errs     map[string]error
}

func (r *recorder) merge(_ context.Context, target string) (githubclt.MergeResult, error) {
	r.merged = append(r.merged, target)

	if err := r.errs[target]; err != nil {
		return githubclt.MergeResultUndefined, err
	}

	if res, exists := r.results[target]; exists {
		return res, nil
	}

	return githubclt.MergeResultMerged, nil
}

func (r *recorder) resolve(_ context.Context, target string) error {
	r.resolved = append(r.resolved, target)
	return nil
}

func TestPropagateStopsAtFirstConflict(t *testing.T) {
	rec := recorder{results: map[string]githubclt.MergeResult{"1.2.x": githubclt.MergeResultConflict}}

	report, err := Propagate(context.Background(), "1.1.x", []string{"1.2.x", "1.3.x"}, rec.merge, rec.resolve)
	require.NoError(t, err)

	assert.Equal(t, []string{"1.2.x"}, rec.merged)
	assert.Equal(t, []string{"1.2.x"}, rec.resolved)
	assert.Equal(t, "1.2.x", report.Conflict)
	assert.Equal(t, []string{"1.3.x"}, report.Skipped)
	assert.Empty(t, report.Merged)
}

func TestPropagateMergesAllTargets(t *testing.T) {
	rec := recorder{results: map[string]githubclt.MergeResult{"1.2.x": githubclt.MergeResultNoOp}}

	report, err := Propagate(context.Background(), "1.x", []string{"1.1.x", "1.2.x", "1.3.x"}, rec.merge, rec.resolve)
	require.NoError(t, err)

	assert.Equal(t, []string{"1.1.x", "1.2.x", "1.3.x"}, rec.merged)
	assert.Empty(t, rec.resolved)
	assert.Equal(t, []string{"1.1.x", "1.3.x"}, report.Merged)
	assert.Equal(t, []string{"1.2.x"}, report.NoOp)
	assert.Empty(t, report.Conflict)
	assert.Empty(t, report.Skipped)
}

func TestPropagateWithoutTargetsIsNoop(t *testing.T) {
	rec := recorder{}

	for _, targets := range [][]string{nil, {}} {
		report, err := Propagate(context.Background(), "1.3.x", targets, rec.merge, rec.resolve)
		require.NoError(t, err)
		assert.Empty(t, report.Merged)
	}

	assert.Empty(t, rec.merged)
	assert.Empty(t, rec.resolved)
}

func TestPropagateDeduplicatesTargets(t *testing.T) {
	rec := recorder{}

	_, err := Propagate(context.Background(), "1.x", []string{"1.1.x", "1.2.x", "1.1.x", "1.2.x"}, rec.merge, rec.resolve)
	require.NoError(t, err)

	assert.Equal(t, []string{"1.1.x", "1.2.x"}, rec.merged)
}

func TestPropagateAbortsOnMergeError(t *testing.T) {
	mergeErr := errors.New("unexpected response status code: 422")
	rec := recorder{errs: map[string]error{"1.2.x": mergeErr}}

	report, err := Propagate(context.Background(), "1.1.x", []string{"1.2.x", "1.3.x"}, rec.merge, rec.resolve)
	require.ErrorIs(t, err, mergeErr)
	assert.Contains(t, err.Error(), "1.2.x")

	assert.Equal(t, []string{"1.2.x"}, rec.merged)
	assert.Empty(t, rec.resolved)
	assert.Equal(t, []string{"1.3.x"}, report.Skipped)
}

func TestPropagateAbortsOnUnknownResult(t *testing.T) {
	rec := recorder{results: map[string]githubclt.MergeResult{"1.2.x": githubclt.MergeResultUndefined}}

	_, err := Propagate(context.Background(), "1.1.x", []string{"1.2.x", "1.3.x"}, rec.merge, rec.resolve)
	require.Error(t, err)

	assert.Equal(t, []string{"1.2.x"}, rec.merged)
	assert.Empty(t, rec.resolved)
}

func TestPropagateReturnsResolveError(t *testing.T) {
	resolveErr := errors.New("creating pull request failed")
	rec := recorder{results: map[string]githubclt.MergeResult{"1.2.x": githubclt.MergeResultConflict}}

	var resolveCalls int
	resolve := func(context.Context, string) error {
		resolveCalls++
		return resolveErr
	}

	_, err := Propagate(context.Background(), "1.1.x", []string{"1.2.x", "1.3.x"}, rec.merge, resolve)
	assert.ErrorIs(t, err, resolveErr)
	assert.Equal(t, 1, resolveCalls)
	assert.Equal(t, []string{"1.2.x"}, rec.merged)
}

func TestPropagateStopsWhenContextIsCancelled(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()

	rec := recorder{}

	report, err := Propagate(ctx, "1.x", []string{"1.1.x", "1.2.x"}, rec.merge, rec.resolve)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.merged)
	assert.Equal(t, []string{"1.1.x", "1.2.x"}, report.Skipped)
}
