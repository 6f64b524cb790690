package survey

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Question is one survey prompt with its answer distribution. Text is the
// prompt as it appears in the raw export and acts as the join key between an
// export and its reference summary.
type Question struct {
	ID             int    // source column index
	Year           int    // survey year
	Text           string // prompt text
	TotalResponses int    // respondents who answered
	Kind           Kind
}

// IsSimple reports whether q has a flat answer list.
func (q Question) IsSimple() bool {
	_, ok := q.Kind.(SimpleQuestion)
	return ok
}

// Simple narrows q to its SimpleQuestion variant.
func (q Question) Simple() (SimpleQuestion, error) {
	s, ok := q.Kind.(SimpleQuestion)
	if !ok {
		return SimpleQuestion{}, fmt.Errorf("%w: %q is %s", ErrNotSimple, q.Text, kindName(q.Kind))
	}
	return s, nil
}

// IsSingleAnswer reports whether every respondent picked exactly one answer,
// i.e. the answer counts sum to TotalResponses. Matrix questions are never
// single-answer; rating questions have no such notion.
func (q Question) IsSingleAnswer() (bool, error) {
	switch k := q.Kind.(type) {
	case SimpleQuestion:
		return totalCount(k.Answers) == q.TotalResponses, nil
	case MatrixQuestion:
		return false, nil
	default:
		return false, fmt.Errorf("%w: single-answer check on %s question %q", ErrInvalidKind, kindName(q.Kind), q.Text)
	}
}

func (q Question) withAnswers(answers []Answer) Question {
	q.Kind = SimpleQuestion{Answers: answers}
	return q
}

// Merge folds the answers named in From into a single answer labelled Into.
type Merge struct {
	Into string
	From []string
}

// CombineAnswers applies merges in order. Answers not named by any merge are
// kept. The result is ordered by each label's original position, with labels
// that did not exist before placed last in alphabetical order.
func (q Question) CombineAnswers(merges []Merge) (Question, error) {
	s, err := q.Simple()
	if err != nil {
		return Question{}, err
	}
	before := totalCount(s.Answers)

	remaining := make(map[string]Answer, len(s.Answers))
	for _, a := range s.Answers {
		remaining[a.Answer] = a
	}
	targets := make(map[string]bool, len(merges))
	answers := make([]Answer, 0, len(s.Answers))
	for _, m := range merges {
		if targets[m.Into] {
			return Question{}, fmt.Errorf("%w: merge target %q listed twice in %q", ErrDiffNotApplied, m.Into, q.Text)
		}
		targets[m.Into] = true
		count := 0
		for _, old := range m.From {
			a, ok := remaining[old]
			if !ok {
				return Question{}, fmt.Errorf("%w: answer %q not in %q (answers %q)",
					ErrDiffNotApplied, old, q.Text, sortedKeys(remaining))
			}
			count += a.Count
			delete(remaining, old)
		}
		if count <= 0 {
			return Question{}, fmt.Errorf("%w: %q in %q", ErrEmptyMerge, m.Into, q.Text)
		}
		answers = append(answers, Answer{Answer: m.Into, Count: count})
	}
	for _, a := range s.Answers {
		if _, ok := remaining[a.Answer]; !ok {
			continue
		}
		if targets[a.Answer] {
			return Question{}, fmt.Errorf("%w: merge target %q collides with an unmerged answer in %q",
				ErrDiffNotApplied, a.Answer, q.Text)
		}
		answers = append(answers, a)
	}

	position := make(map[string]int, len(s.Answers))
	for i, a := range s.Answers {
		position[a.Answer] = i
	}
	rank := func(label string) int {
		if p, ok := position[label]; ok {
			return p
		}
		return math.MaxInt
	}
	slices.SortStableFunc(answers, func(a, b Answer) int {
		return cmp.Or(cmp.Compare(rank(a.Answer), rank(b.Answer)), strings.Compare(a.Answer, b.Answer))
	})

	if after := totalCount(answers); after != before {
		return Question{}, fmt.Errorf("%w: combine in %q changed total from %d to %d",
			ErrCountConservation, q.Text, before, after)
	}
	return q.withAnswers(answers), nil
}

// IntegerAnswers rewrites every label as a truncated integer, so "3", "3.0"
// and "3.7" all become "3". Labels that collapse onto the same integer are
// merged at the position of the first one.
func (q Question) IntegerAnswers() (Question, error) {
	s, err := q.Simple()
	if err != nil {
		return Question{}, err
	}
	answers := make([]Answer, 0, len(s.Answers))
	index := make(map[string]int, len(s.Answers))
	for _, a := range s.Answers {
		f, err := strconv.ParseFloat(strings.TrimSpace(a.Answer), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
			return Question{}, fmt.Errorf("%w: %q in %q", ErrNotNumeric, a.Answer, q.Text)
		}
		label := strconv.FormatInt(int64(f), 10)
		if i, ok := index[label]; ok {
			answers[i].Count += a.Count
			continue
		}
		index[label] = len(answers)
		answers = append(answers, Answer{Answer: label, Count: a.Count})
	}
	return q.withAnswers(answers), nil
}

// ExpandAnswers replaces each answer by the labels fn derives from it. Every
// derived label is credited with the full count of its source answer, so a
// respondent who wrote "a, b" counts towards both "a" and "b". The result is
// sorted by label.
func (q Question) ExpandAnswers(fn func(label string) []string) (Question, error) {
	s, err := q.Simple()
	if err != nil {
		return Question{}, err
	}
	totals := make(map[string]int)
	for _, a := range s.Answers {
		for _, derived := range fn(a.Answer) {
			totals[derived] += a.Count
		}
	}
	answers := make([]Answer, 0, len(totals))
	for _, label := range sortedKeys(totals) {
		answers = append(answers, Answer{Answer: label, Count: totals[label]})
	}
	return q.withAnswers(answers), nil
}

// FilterAnswers keeps the answers for which keep returns true.
func (q Question) FilterAnswers(keep func(Answer) bool) (Question, error) {
	s, err := q.Simple()
	if err != nil {
		return Question{}, err
	}
	answers := make([]Answer, 0, len(s.Answers))
	for _, a := range s.Answers {
		if keep(a) {
			answers = append(answers, a)
		}
	}
	return q.withAnswers(answers), nil
}

// RenameAnswers renames or drops answers of a simple question, or renames the
// groups of a matrix question. Rating questions are returned unchanged.
func (q Question) RenameAnswers(diff RenameDiff) (Question, error) {
	if q.Kind == nil {
		return Question{}, fmt.Errorf("%w: rename on %s question %q", ErrInvalidKind, kindName(q.Kind), q.Text)
	}
	k, err := q.Kind.renameAnswers(diff)
	if err != nil {
		return Question{}, fmt.Errorf("rename %q: %w", q.Text, err)
	}
	q.Kind = k
	return q, nil
}

// AddOpen reclassifies free-text responses. Every open answer containing id
// is counted; that many responses are moved out of the replace answer into a
// new answer labelled label, appended at the end. An empty replace means
// DefaultBucket.
func (q Question) AddOpen(open []string, id, label, replace string) (Question, error) {
	s, err := q.Simple()
	if err != nil {
		return Question{}, err
	}
	if replace == "" {
		replace = DefaultBucket
	}

	added := 0
	for _, v := range frequencies(open) {
		if strings.Contains(v.value, id) {
			added += v.count
		}
	}
	if added == 0 {
		return Question{}, fmt.Errorf("%w: no open answer of %q contains %q", ErrNoMatch, q.Text, id)
	}

	if label == replace {
		return Question{}, fmt.Errorf("%w: %q cannot replace itself in %q", ErrAmbiguous, label, q.Text)
	}
	answers := slices.Clone(s.Answers)
	replaced := -1
	for i, a := range answers {
		switch a.Answer {
		case replace:
			if replaced >= 0 {
				return Question{}, fmt.Errorf("%w: %q appears twice in %q", ErrAmbiguous, replace, q.Text)
			}
			replaced = i
		case label:
			return Question{}, fmt.Errorf("%w: %q already exists in %q", ErrAmbiguous, label, q.Text)
		}
	}
	if replaced < 0 {
		return Question{}, fmt.Errorf("%w: %q not found in %q", ErrNoMatch, replace, q.Text)
	}
	if answers[replaced].Count < added {
		return Question{}, fmt.Errorf("%w: moving %d responses out of %q (%d) in %q",
			ErrCountConservation, added, replace, answers[replaced].Count, q.Text)
	}
	answers[replaced].Count -= added
	answers = append(answers, Answer{Answer: label, Count: added})

	if before, after := totalCount(s.Answers), totalCount(answers); before != after {
		return Question{}, fmt.Errorf("%w: open answers in %q changed total from %d to %d",
			ErrCountConservation, q.Text, before, after)
	}
	return q.withAnswers(answers), nil
}

// WithTitle returns a copy of q with its prompt text rewritten by fn.
func (q Question) WithTitle(fn func(string) string) Question {
	q = q.Clone()
	q.Text = fn(q.Text)
	return q
}

// Clone returns a copy of q that shares no answer slices with it.
func (q Question) Clone() Question {
	if q.Kind != nil {
		q.Kind = q.Kind.clone()
	}
	return q
}

// RatingToSimpleQuestion converts a rating question into a simple question
// whose labels are the ratings.
func RatingToSimpleQuestion(q Question) (Question, error) {
	r, ok := q.Kind.(RatingQuestion)
	if !ok {
		return Question{}, fmt.Errorf("%w: %q is %s, want %s", ErrInvalidKind, q.Text, kindName(q.Kind), KindRating)
	}
	answers := make([]Answer, len(r.Answers))
	for i, a := range r.Answers {
		answers[i] = Answer{Answer: strconv.Itoa(a.Rating), Count: a.Answer.Count}
	}
	return q.withAnswers(answers), nil
}

// Validate returns field-level problems with q.
func (q Question) Validate() []string {
	var errs []string
	if q.Text == "" {
		errs = append(errs, "question text is required")
	}
	if q.TotalResponses < 0 {
		errs = append(errs, fmt.Sprintf("total_responses %d is negative", q.TotalResponses))
	}
	switch k := q.Kind.(type) {
	case SimpleQuestion:
		errs = append(errs, validateAnswers(k.Answers)...)
	case MatrixQuestion:
		seen := make(map[string]bool, len(k.Groups))
		for _, g := range k.Groups {
			if seen[g.Label] {
				errs = append(errs, fmt.Sprintf("group %q appears more than once", g.Label))
			}
			seen[g.Label] = true
			for _, e := range validateAnswers(g.Answers) {
				errs = append(errs, fmt.Sprintf("group %q: %s", g.Label, e))
			}
		}
	case RatingQuestion:
		for _, a := range k.Answers {
			if a.Answer.Count < 0 {
				errs = append(errs, fmt.Sprintf("rating %d has negative count %d", a.Rating, a.Answer.Count))
			}
		}
	case nil:
		errs = append(errs, "kind is required")
	}
	return errs
}

type frequency struct {
	value string
	count int
}

// frequencies counts distinct values, most frequent first; ties keep the
// order of first appearance.
func frequencies(values []string) []frequency {
	index := make(map[string]int)
	var out []frequency
	for _, v := range values {
		if i, ok := index[v]; ok {
			out[i].count++
			continue
		}
		index[v] = len(out)
		out = append(out, frequency{value: v, count: 1})
	}
	slices.SortStableFunc(out, func(a, b frequency) int { return cmp.Compare(b.count, a.count) })
	return out
}
