package mergetrain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// PRFilter is a jq query that is evaluated against the JSON representation
// of a pull request. Only pull requests for which the query returns true are
// considered for merging.
type PRFilter struct {
	query *gojq.Query
}

func NewPRFilter(jqQuery string) (*PRFilter, error) {
	query, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, err
	}

	return &PRFilter{query: query}, nil
}

func (f *PRFilter) String() string {
	return f.query.String()
}

// Match returns true if the filter query evaluates to true for the pull
// request JSON document.
// The query must return exactly one boolean result, everything else is an
// error.
func (f *PRFilter) Match(ctx context.Context, prJSON []byte) (bool, error) {
	var doc any

	if len(prJSON) == 0 {
		return false, errors.New("pull request json document is empty")
	}

	if err := json.Unmarshal(prJSON, &doc); err != nil {
		return false, fmt.Errorf("unmarshaling json failed: %w", err)
	}

	result, errs := goJQIterToSlice(f.query.RunWithContext(ctx, doc))
	if len(errs) != 0 {
		return false, fmt.Errorf("json query returned errors, query: %q, errors: %s", f.query.String(), errString(errs))
	}

	if len(result) != 1 {
		return false, fmt.Errorf("json query returned %d results, expected 1, query: %q", len(result), f.query.String())
	}

	val, ok := result[0].(bool)
	if !ok {
		return false, fmt.Errorf("json query returned a %T, expected a boolean, query: %q", result[0], f.query.String())
	}

	return val, nil
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
