package automerge

import "errors"

var (
	ErrMissingRepository   = errors.New("repository owner or name is missing")
	ErrMissingSourceBranch = errors.New("neither base nor head branch is set")
	ErrUnsupportedBranch   = errors.New("branch is not a semantic release branch")
	ErrNoBranches          = errors.New("no branches found in repository")
)
