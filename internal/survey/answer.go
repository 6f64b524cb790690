// Package survey defines the canonical question and answer value types of a
// survey report, together with the pure transformations applied to them while
// a report is being built.
//
// Every value in this package is treated as immutable: operations return new
// values and never modify their receiver or arguments.
package survey

import (
	"fmt"
	"maps"
	"slices"
)

// DefaultBucket is the catch-all answer label that absorbs unrecognized and
// reclassified responses.
const DefaultBucket = "Other"

// Answer is one answer label and the number of respondents who chose it.
type Answer struct {
	Answer string `json:"answer"`
	Count  int    `json:"count"`
}

// NewAnswer returns an Answer, rejecting negative counts.
func NewAnswer(label string, count int) (Answer, error) {
	if count < 0 {
		return Answer{}, fmt.Errorf("%w: %q has count %d", ErrNegativeCount, label, count)
	}
	return Answer{Answer: label, Count: count}, nil
}

// RatingAnswer couples an answer with its position on a numeric scale.
type RatingAnswer struct {
	Answer Answer `json:"answer"`
	Rating int    `json:"rating"`
}

func totalCount(answers []Answer) int {
	total := 0
	for _, a := range answers {
		total += a.Count
	}
	return total
}

func answerLabels(answers []Answer) []string {
	out := make([]string, len(answers))
	for i, a := range answers {
		out[i] = a.Answer
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// validateAnswers returns field-level problems with an answer list.
func validateAnswers(answers []Answer) []string {
	var errs []string
	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		if a.Count < 0 {
			errs = append(errs, fmt.Sprintf("answer %q has negative count %d", a.Answer, a.Count))
		}
		if seen[a.Answer] {
			errs = append(errs, fmt.Sprintf("answer %q appears more than once", a.Answer))
		}
		seen[a.Answer] = true
	}
	return errs
}
