// Package automerge propagates changes of a semantic release branch forward
// into the later release branches of the same major version.
package automerge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/optimaxdev/automerge-semantic-release/internal/githubclt"
	"github.com/optimaxdev/automerge-semantic-release/internal/logfields"
	"github.com/optimaxdev/automerge-semantic-release/internal/releasebranch"
	"github.com/optimaxdev/automerge-semantic-release/internal/trigger"
)

const loggerName = "automerge"

// Workflow runs the automerge for a single branch change.
type Workflow struct {
	gw       Gateway
	parser   *releasebranch.Parser
	resolver *ConflictResolver
	logger   *zap.Logger
}

type Option func(*Workflow)

// WithRefPrefix sets the ref namespace prefix that is stripped from branch
// names and used when listing branches.
func WithRefPrefix(prefix string) Option {
	return func(w *Workflow) {
		w.parser = releasebranch.NewParser(prefix)
	}
}

// WithPullRequestLabel sets the label that is added to pull requests that are
// created for merge conflicts.
func WithPullRequestLabel(label string) Option {
	return func(w *Workflow) {
		w.resolver.label = strings.TrimSpace(label)
	}
}

// WithClock sets the function that is used to get the current time when
// naming side branches.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		w.resolver.now = now
	}
}

func NewWorkflow(gw Gateway, opts ...Option) *Workflow {
	w := Workflow{
		gw:       gw,
		parser:   releasebranch.NewParser(releasebranch.DefaultRefPrefix),
		resolver: NewConflictResolver(gw, ""),
		logger:   zap.L().Named(loggerName),
	}

	for _, o := range opts {
		o(&w)
	}

	return &w
}

func (w *Workflow) branchName(ref string) string {
	return strings.TrimSpace(w.parser.TrimRefPrefix(ref))
}

// Run merges the changed branch into all later release branches of the same
// major version family.
// When a merge conflicts, a pull request is created for it and no further
// branches are merged.
func (w *Workflow) Run(ctx context.Context, pc *trigger.PushContext) error {
	outcome, err := w.run(ctx, pc)
	metrics.RunsInc(outcome)

	return err
}

func (w *Workflow) run(ctx context.Context, pc *trigger.PushContext) (outcomeLabelVal, error) {
	if pc == nil || pc.Owner == "" || pc.Repository == "" {
		return outcomeLabelFailureVal, ErrMissingRepository
	}

	logger := w.logger.With(pc.LogFields()...)

	source := w.branchName(pc.BaseBranch)
	if source == "" {
		source = w.branchName(pc.HeadBranch)
	}

	if source == "" {
		return outcomeLabelFailureVal, ErrMissingSourceBranch
	}

	head := w.branchName(pc.HeadBranch)
	if head == "" {
		head = source
	}

	logger = logger.With(logfields.SourceBranch(source))

	if !w.parser.IsReleaseBranch(source) {
		return outcomeLabelUnsupportedBranchVal, fmt.Errorf("%w: %q", ErrUnsupportedBranch, source)
	}

	branches, err := w.gw.ListBranches(ctx, pc.Owner, pc.Repository, w.parser.RefPrefix())
	if err != nil {
		return outcomeLabelFailureVal, fmt.Errorf("listing branches failed: %w", err)
	}

	if len(branches) == 0 {
		return outcomeLabelFailureVal, ErrNoBranches
	}

	targets := w.parser.TargetBranches(source, branches)
	if len(targets) == 0 {
		logger.Info(
			"no later release branches to merge into",
			logfields.Event("automerge_no_target_branches"),
			zap.Int("branch_count", len(branches)),
		)

		return outcomeLabelNoTargetsVal, nil
	}

	logger.Debug(
		"merging into target branches",
		logfields.Event("automerge_propagation_started"),
		zap.Strings("target_branches", targets),
	)

	merge := func(ctx context.Context, target string) (githubclt.MergeResult, error) {
		res, err := w.gw.MergeBranch(ctx, pc.Owner, pc.Repository, target, head)
		if err != nil {
			return res, err
		}

		metrics.MergesInc(res)

		logger.Info(
			"merged branch",
			logfields.Event("automerge_branch_merged"),
			logfields.TargetBranch(target),
			zap.Stringer("merge_result", res),
		)

		return res, nil
	}

	resolve := func(ctx context.Context, target string) error {
		return w.resolver.Resolve(ctx, pc.Owner, pc.Repository, head, target, pc.HeadSHA)
	}

	report, err := Propagate(ctx, head, targets, merge, resolve)
	logger = logger.With(
		zap.Strings("merged_branches", report.Merged),
		zap.Strings("uptodate_branches", report.NoOp),
		zap.Strings("skipped_branches", report.Skipped),
	)

	if err != nil {
		logger.Debug(
			"propagation failed",
			logfields.Event("automerge_propagation_failed"),
			zap.Error(err),
		)

		return outcomeLabelFailureVal, err
	}

	if report.Conflict != "" {
		logger.Info(
			"propagation stopped at merge conflict",
			logfields.Event("automerge_propagation_conflict"),
			logfields.TargetBranch(report.Conflict),
		)

		return outcomeLabelConflictVal, nil
	}

	logger.Info(
		"propagation finished",
		logfields.Event("automerge_propagation_finished"),
	)

	return outcomeLabelSuccessVal, nil
}
