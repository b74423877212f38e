// Package releasebranch parses and orders semantic release branch names like
// "1.x" and "1.2.x".
//
// A release branch denotes an open release line. Branches sharing the same
// major version form a family. Within a family a branch without a minor
// version ("1.x") sorts below all branches with a minor version, a bare
// major branch is treated as having minor version 0.
package releasebranch

import (
	"cmp"
	"fmt"
)

// Version is the version of a release branch.
// The zero value is not a valid Version, Versions are created by Parse.
type Version struct {
	major    uint64
	minor    uint64
	hasMinor bool
}

// Major returns the major version.
func (v Version) Major() uint64 {
	return v.major
}

// Minor returns the minor version. If the branch name did not contain a
// minor version, ok is false.
func (v Version) Minor() (minor uint64, ok bool) {
	return v.minor, v.hasMinor
}

func (v Version) minorOrZero() uint64 {
	if !v.hasMinor {
		return 0
	}

	return v.minor
}

// String returns the canonical branch name of the version.
func (v Version) String() string {
	if v.hasMinor {
		return fmt.Sprintf("%d.%d.x", v.major, v.minor)
	}

	return fmt.Sprintf("%d.x", v.major)
}

// Compare returns a negative number if a sorts before b, a positive number if
// it sorts after b and 0 if they are equal.
// Majors are compared first, then minors. An absent minor version is compared
// as 0.
func Compare(a, b Version) int {
	if c := cmp.Compare(a.major, b.major); c != 0 {
		return c
	}

	return cmp.Compare(a.minorOrZero(), b.minorOrZero())
}

// SameFamily returns true if a and b have the same major version.
func SameFamily(a, b Version) bool {
	return a.major == b.major
}
