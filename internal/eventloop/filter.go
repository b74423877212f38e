package eventloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// DefaultFilterQuery accepts branch pushes that did not delete the branch.
// Merging a pull request also sends a push event for its base branch, pull
// request events are therefore not accepted.
const DefaultFilterQuery = `.ref != null and .deleted != true and (.ref | startswith("refs/heads/"))`

// Filter decides with a jq query which events trigger an automerge run.
type Filter struct {
	query *gojq.Query
}

func NewFilter(jqQuery string) (*Filter, error) {
	query, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, fmt.Errorf("parsing jq query failed: %w", err)
	}

	return &Filter{query: query}, nil
}

func (f *Filter) String() string {
	return f.query.String()
}

func goJQIterToSlice(iter gojq.Iter) ([]any, []error) {
	var result []any
	var errors []error

	for {
		res, ok := iter.Next()
		if !ok {
			return result, errors
		}

		if err, isErr := res.(error); isErr {
			errors = append(errors, err)
			continue
		}

		result = append(result, res)
	}
}

func errString(errs []error) string {
	var result strings.Builder

	for i, err := range errs {
		if i > 0 {
			result.WriteString("; ")
		}

		result.WriteString(fmt.Sprintf("error %d: %s", i, err))
	}

	return result.String()
}

// Match returns Match if the filter-query evaluates to true for the JSON
// event payload.
func (f *Filter) Match(ctx context.Context, payload []byte) (MatchResult, error) {
	var evUn any

	if len(payload) == 0 {
		return MatchResultUndefined, errors.New("event payload is empty")
	}

	err := json.Unmarshal(payload, &evUn)
	if err != nil {
		return MatchResultUndefined, fmt.Errorf("unmarshaling json failed: %w", err)
	}

	result, errs := goJQIterToSlice(f.query.RunWithContext(ctx, evUn))
	if len(errs) != 0 {
		return MatchResultUndefined, fmt.Errorf("json query returned errors, query: %q, errors: %s", f.query.String(), errString(errs))
	}

	if len(result) != 1 {
		return MatchResultUndefined, fmt.Errorf("json query returned %d results, expected 1, query: %q", len(result), f.query.String())
	}

	val, ok := result[0].(bool)
	if !ok {
		return MatchResultUndefined, fmt.Errorf(
			"json query returned non-bool result: %+v (%T), query: %q",
			result[0], result[0], f.query.String(),
		)
	}

	if val {
		return Match, nil
	}

	return FilterMismatch, nil
}
