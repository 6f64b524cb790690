package survey

import (
	"fmt"
	"slices"
)

// KindType names the structural shape of a question's answers.
type KindType string

const (
	KindSimple KindType = "SIMPLE"
	KindMatrix KindType = "MATRIX"
	KindRating KindType = "RATING"
)

// Kind is the closed set of question shapes: SimpleQuestion, MatrixQuestion
// and RatingQuestion. The unexported method keeps other packages from adding
// variants, so a type switch over the three is exhaustive.
type Kind interface {
	Type() KindType
	renameAnswers(diff RenameDiff) (Kind, error)
	clone() Kind
}

// Target is the right-hand side of a RenameDiff entry: either a new label or
// an instruction to drop the answer.
type Target struct {
	label string
	drop  bool
}

// To renames an answer to label.
func To(label string) Target { return Target{label: label} }

// Drop removes an answer, discarding its count.
func Drop() Target { return Target{drop: true} }

// Label returns the new label and false when the target drops the answer.
func (t Target) Label() (string, bool) { return t.label, !t.drop }

// RenameDiff maps existing labels to their replacements. Every key must match
// an existing label exactly once.
type RenameDiff map[string]Target

// SimpleQuestion is a flat answer distribution.
type SimpleQuestion struct {
	Answers []Answer `json:"answers"`
}

func (SimpleQuestion) Type() KindType { return KindSimple }

func (s SimpleQuestion) clone() Kind { return SimpleQuestion{Answers: slices.Clone(s.Answers)} }

func (s SimpleQuestion) renameAnswers(diff RenameDiff) (Kind, error) {
	pending := make(RenameDiff, len(diff))
	for k, v := range diff {
		pending[k] = v
	}
	answers := make([]Answer, 0, len(s.Answers))
	for _, a := range s.Answers {
		if t, ok := pending[a.Answer]; ok {
			delete(pending, a.Answer)
			label, keep := t.Label()
			if !keep {
				continue
			}
			a.Answer = label
		}
		answers = append(answers, a)
	}
	if len(pending) > 0 {
		return nil, fmt.Errorf("%w: %q not found among answers %q",
			ErrDiffNotApplied, sortedKeys(pending), answerLabels(s.Answers))
	}
	if dup, ok := firstDuplicate(answerLabels(answers)); ok {
		return nil, fmt.Errorf("%w: renaming would give two answers labelled %q", ErrDiffNotApplied, dup)
	}
	return SimpleQuestion{Answers: answers}, nil
}

// AnswerGroup is one row of a matrix question, e.g. one statement of a
// Likert grid, with its own answer distribution.
type AnswerGroup struct {
	Label   string   `json:"label"`
	Answers []Answer `json:"answers"`
}

// MatrixQuestion is an ordered set of labelled answer distributions.
type MatrixQuestion struct {
	Groups []AnswerGroup `json:"groups"`
}

func (MatrixQuestion) Type() KindType { return KindMatrix }

func (m MatrixQuestion) clone() Kind {
	groups := make([]AnswerGroup, len(m.Groups))
	for i, g := range m.Groups {
		groups[i] = AnswerGroup{Label: g.Label, Answers: slices.Clone(g.Answers)}
	}
	return MatrixQuestion{Groups: groups}
}

// renameAnswers renames group labels; the answers inside a group are kept.
func (m MatrixQuestion) renameAnswers(diff RenameDiff) (Kind, error) {
	pending := make(RenameDiff, len(diff))
	for k, v := range diff {
		pending[k] = v
	}
	groups := make([]AnswerGroup, 0, len(m.Groups))
	for _, g := range m.Groups {
		if t, ok := pending[g.Label]; ok {
			delete(pending, g.Label)
			label, keep := t.Label()
			if !keep {
				return nil, fmt.Errorf("%w: matrix group %q cannot be dropped", ErrDiffNotApplied, g.Label)
			}
			g.Label = label
		}
		groups = append(groups, AnswerGroup{Label: g.Label, Answers: slices.Clone(g.Answers)})
	}
	if len(pending) > 0 {
		labels := make([]string, len(m.Groups))
		for i, g := range m.Groups {
			labels[i] = g.Label
		}
		return nil, fmt.Errorf("%w: %q not found among groups %q",
			ErrDiffNotApplied, sortedKeys(pending), labels)
	}
	renamed := make([]string, len(groups))
	for i, g := range groups {
		renamed[i] = g.Label
	}
	if dup, ok := firstDuplicate(renamed); ok {
		return nil, fmt.Errorf("%w: renaming would give two groups labelled %q", ErrDiffNotApplied, dup)
	}
	return MatrixQuestion{Groups: groups}, nil
}

// RatingQuestion is a scale question; each answer carries its rating.
type RatingQuestion struct {
	Answers []RatingAnswer `json:"answers"`
}

func (RatingQuestion) Type() KindType { return KindRating }

func (r RatingQuestion) clone() Kind { return RatingQuestion{Answers: slices.Clone(r.Answers)} }

// renameAnswers is a no-op: a rating's label is bound to its numeric value.
func (r RatingQuestion) renameAnswers(RenameDiff) (Kind, error) { return r.clone(), nil }

func firstDuplicate(labels []string) (string, bool) {
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if seen[l] {
			return l, true
		}
		seen[l] = true
	}
	return "", false
}

func kindName(k Kind) string {
	if k == nil {
		return "empty"
	}
	return string(k.Type())
}
