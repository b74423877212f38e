package githubclt

// MergeResult is the outcome of a branch merge operation.
type MergeResult int

const (
	MergeResultUndefined MergeResult = iota
	// MergeResultMerged is returned when a merge commit was created.
	MergeResultMerged
	// MergeResultNoOp is returned when the base branch already contained
	// all changes.
	MergeResultNoOp
	// MergeResultConflict is returned when the branches could not be
	// merged automatically.
	MergeResultConflict
)

func (r MergeResult) String() string {
	switch r {
	case MergeResultMerged:
		return "merged"
	case MergeResultNoOp:
		return "noop"
	case MergeResultConflict:
		return "conflict"
	default:
		return "undefined"
	}
}
