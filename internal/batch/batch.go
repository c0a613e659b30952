package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Step status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// ErrSkipped marks a step that never ran because an earlier step failed.
var ErrSkipped = errors.New("skipped after earlier failure")

// Result represents the result of a single step in a batch.
type Result struct {
	ID     string `json:"id"`
	Step   string `json:"step,omitempty"`
	Status string `json:"status"` // "success", "error" or "skipped"
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the step succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Summary represents the aggregated results of a batch operation.
type Summary struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Results    []Result `json:"results"`
}

// Step is one unit of work. Fn returns a short human-readable result.
type Step struct {
	ID   string
	Name string
	Fn   func(ctx context.Context) (string, error)
}

// Run executes steps in order. The first failing step stops the run; every
// later step is reported as skipped. The returned error wraps the failing
// step's error, or the context error if ctx was cancelled between steps.
func Run(ctx context.Context, steps []Step) ([]Result, error) {
	results := make([]Result, 0, len(steps))
	var failure error

	for _, s := range steps {
		if failure == nil {
			if err := ctx.Err(); err != nil {
				failure = err
			}
		}
		if failure != nil {
			results = append(results, NewSkippedResult(s.ID, s.Name))
			continue
		}

		res, err := s.Fn(ctx)
		if err != nil {
			failure = fmt.Errorf("%s %s: %w", s.Name, s.ID, err)
			results = append(results, NewErrorResult(s.ID, s.Name, err))
			continue
		}
		results = append(results, NewSuccessResult(s.ID, s.Name, res))
	}

	return results, failure
}

// ParseIDList flattens repeated and comma-separated id flags into a list,
// trimming whitespace and dropping duplicates while keeping first-seen order.
func ParseIDList(values []string, paramName string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for i, v := range values {
		for _, part := range strings.Split(v, ",") {
			id := strings.TrimSpace(part)
			if id == "" {
				return nil, fmt.Errorf("%s[%d] contains an empty id", paramName, i)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	s := Summary{
		Total:   len(results),
		Results: results,
	}

	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Successful++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// FormatResults creates a formatted JSON string from batch results.
func FormatResults(results []Result) string {
	jsonBytes, _ := json.MarshalIndent(Summarize(results), "", "  ")
	return string(jsonBytes)
}

// NewSuccessResult creates a success result.
func NewSuccessResult(id, step, message string) Result {
	return Result{
		ID:     id,
		Step:   step,
		Status: StatusSuccess,
		Result: message,
	}
}

// NewErrorResult creates an error result.
func NewErrorResult(id, step string, err error) Result {
	return Result{
		ID:     id,
		Step:   step,
		Status: StatusError,
		Error:  err.Error(),
	}
}

// NewSkippedResult creates a result for a step that did not run.
func NewSkippedResult(id, step string) Result {
	return Result{
		ID:     id,
		Step:   step,
		Status: StatusSkipped,
		Error:  ErrSkipped.Error(),
	}
}
