package eventloop

import "fmt"

// MatchResult represents the result of matching an event against the event
// filter.
type MatchResult uint8

const (
	MatchResultUndefined MatchResult = iota
	FilterMismatch
	Match
)

var matchResultString = [...]string{
	MatchResultUndefined: "undefined",
	FilterMismatch:       "filter mismatch",
	Match:                "filter matches",
}

func (m MatchResult) String() string {
	// it can not be <0 because it's type is uint8
	if int(m) > len(matchResultString)-1 {
		return fmt.Sprintf("unsupported MatchResult value: %d", m)
	}

	return matchResultString[m]
}
