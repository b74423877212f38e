package releasebranch

import "slices"

type candidate struct {
	name    string
	version Version
}

// TargetBranches returns the branches of candidates that a change of the
// source branch must be merged into.
// These are the release branches of the same family with a higher version
// than source, sorted ascending. Candidates with equal versions keep their
// relative order. The returned names are the unmodified candidate strings.
// If source is not a release branch an empty slice is returned.
func (p *Parser) TargetBranches(source string, candidates []string) []string {
	sourceVersion, ok := p.Parse(source)
	if !ok {
		return []string{}
	}

	targets := make([]candidate, 0, len(candidates))
	for _, name := range candidates {
		v, ok := p.Parse(name)
		if !ok {
			continue
		}

		if !SameFamily(sourceVersion, v) {
			continue
		}

		if Compare(v, sourceVersion) <= 0 {
			continue
		}

		targets = append(targets, candidate{name: name, version: v})
	}

	slices.SortStableFunc(targets, func(a, b candidate) int {
		return Compare(a.version, b.version)
	})

	result := make([]string, 0, len(targets))
	for _, t := range targets {
		result = append(result, t.name)
	}

	return result
}

// TargetBranches returns the target branches for source with a parser using
// DefaultRefPrefix.
func TargetBranches(source string, candidates []string) []string {
	return defaultParser.TargetBranches(source, candidates)
}
