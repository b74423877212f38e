package automerge

import (
	"context"
	"fmt"

	"github.com/optimaxdev/automerge-semantic-release/internal/githubclt"
)

// MergeFunc merges the source branch into target.
type MergeFunc func(ctx context.Context, target string) (githubclt.MergeResult, error)

// ConflictFunc is called when the source branch can not be merged into target
// because of a merge conflict.
type ConflictFunc func(ctx context.Context, target string) error

// Report describes the outcome of a propagation.
type Report struct {
	Source string
	// Merged contains the targets into that a merge commit was created.
	Merged []string
	// NoOp contains the targets that already contained the source branch.
	NoOp []string
	// Conflict is the target that could not be merged, it is empty if no
	// conflict happened.
	Conflict string
	// Skipped contains the targets that were not processed because
	// propagation stopped before reaching them.
	Skipped []string
}

// Propagate merges source into each target, in the given order.
// Duplicate targets are only processed once.
// Propagation stops at the first target that conflicts, resolve is called
// for it exactly once.
// A merge error or an unknown merge result aborts the propagation with an
// error naming the target.
func Propagate(ctx context.Context, source string, targets []string, merge MergeFunc, resolve ConflictFunc) (*Report, error) {
	targets = dedup(targets)
	report := Report{Source: source}

	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			report.Skipped = targets[i:]
			return &report, fmt.Errorf("merging %s into %s aborted: %w", source, target, err)
		}

		res, err := merge(ctx, target)
		if err != nil {
			report.Skipped = targets[i+1:]
			return &report, fmt.Errorf("merging %s into %s failed: %w", source, target, err)
		}

		switch res {
		case githubclt.MergeResultMerged:
			report.Merged = append(report.Merged, target)

		case githubclt.MergeResultNoOp:
			report.NoOp = append(report.NoOp, target)

		case githubclt.MergeResultConflict:
			report.Conflict = target
			report.Skipped = targets[i+1:]

			if err := resolve(ctx, target); err != nil {
				return &report, fmt.Errorf("resolving merge conflict between %s and %s failed: %w", source, target, err)
			}

			return &report, nil

		default:
			report.Skipped = targets[i+1:]
			return &report, fmt.Errorf("merging %s into %s returned unsupported result: %s", source, target, res)
		}
	}

	return &report, nil
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	result := make([]string, 0, len(in))

	for _, s := range in {
		if _, exists := seen[s]; exists {
			continue
		}

		seen[s] = struct{}{}
		result = append(result, s)
	}

	return result
}
