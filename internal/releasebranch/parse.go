package releasebranch

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultRefPrefix is the git ref namespace of branches.
const DefaultRefPrefix = "refs/heads/"

var versionRe = regexp.MustCompile(`^(\d+)(?:\.(\d+))?\.x$`)

var defaultParser = NewParser(DefaultRefPrefix)

// Parser parses release branch names.
type Parser struct {
	refPrefix   string
	refPrefixRe *regexp.Regexp
}

// NewParser returns a parser that strips refPrefix from branch names before
// parsing them.
// The prefix is matched case-insensitive at the start of the name, leading
// whitespace and slashes are allowed. If refPrefix is empty, no prefix is
// stripped.
func NewParser(refPrefix string) *Parser {
	p := Parser{refPrefix: refPrefix}

	if refPrefix != "" {
		p.refPrefixRe = regexp.MustCompile(`(?i)^\s*/*` + regexp.QuoteMeta(refPrefix))
	}

	return &p
}

// RefPrefix returns the ref prefix that is stripped from branch names.
func (p *Parser) RefPrefix() string {
	return p.refPrefix
}

// TrimRefPrefix removes the ref prefix from name, if it exists.
// The result is not whitespace trimmed.
func (p *Parser) TrimRefPrefix(name string) string {
	if p.refPrefixRe == nil {
		return name
	}

	loc := p.refPrefixRe.FindStringIndex(name)
	if loc == nil {
		return name
	}

	return name[loc[1]:]
}

// Parse parses a release branch name like "1.x", "1.2.x" or
// "refs/heads/1.2.x".
// If name is not a release branch name ok is false.
// Version numbers are limited to uint64, names with a larger major or minor
// number (e.g. "99999999999999999999999.x") are not release branches.
func (p *Parser) Parse(name string) (v Version, ok bool) {
	name = strings.TrimSpace(p.TrimRefPrefix(name))

	matches := versionRe.FindStringSubmatch(name)
	if matches == nil {
		return Version{}, false
	}

	major, err := strconv.ParseUint(matches[1], 10, 64)
	if err != nil {
		return Version{}, false
	}

	if matches[2] == "" {
		return Version{major: major}, true
	}

	minor, err := strconv.ParseUint(matches[2], 10, 64)
	if err != nil {
		return Version{}, false
	}

	return Version{major: major, minor: minor, hasMinor: true}, true
}

// Parse parses name with a parser using DefaultRefPrefix.
func Parse(name string) (Version, bool) {
	return defaultParser.Parse(name)
}

// IsReleaseBranch returns true if name can be parsed as release branch.
func (p *Parser) IsReleaseBranch(name string) bool {
	_, ok := p.Parse(name)
	return ok
}
