package reconcile

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/dshills/surveyrecon/internal/dataset"
	"github.com/dshills/surveyrecon/internal/survey"
)

var otherPattern = regexp.MustCompile(`^Other(\.\d+)?$`)

// NormalizeAnswerOther maps "Other" and its disambiguated duplicates
// ("Other.1", "Other.2", ...) to survey.DefaultBucket. Every other label is
// returned unchanged.
func NormalizeAnswerOther(label string) string {
	if otherPattern.MatchString(label) {
		return survey.DefaultBucket
	}
	return label
}

// SortAnswers orders fresh counts for col. Labels known to the reference
// question keep its order; labels it lacks follow in the order they are
// encountered in counts. Labels are "Other"-canonicalized first, and labels
// that canonicalize to the same value are merged.
func (f *FullAnswers) SortAnswers(counts []dataset.Count, col dataset.Column) ([]survey.Answer, error) {
	position := make(map[string]int)
	ref, found, err := f.reference(col.Name)
	if err != nil {
		return nil, err
	}
	if found {
		s, err := ref.Simple()
		if err != nil {
			return nil, fmt.Errorf("reconcile: reference: %w: %w", survey.ErrSchemaMismatch, err)
		}
		for i, a := range s.Answers {
			position[a.Answer] = i
		}
	}

	var answers []survey.Answer
	index := make(map[string]int, len(counts))
	for _, c := range counts {
		if c.Count < 0 {
			return nil, fmt.Errorf("reconcile: %w: %q has count %d in %q", survey.ErrNegativeCount, c.Value, c.Count, col.Name)
		}
		label := NormalizeAnswerOther(c.Value)
		if i, ok := index[label]; ok {
			answers[i].Count += c.Count
			continue
		}
		if _, ok := position[label]; !ok {
			position[label] = len(position)
		}
		index[label] = len(answers)
		answers = append(answers, survey.Answer{Answer: label, Count: c.Count})
	}
	slices.SortStableFunc(answers, func(a, b survey.Answer) int {
		return cmp.Compare(position[a.Answer], position[b.Answer])
	})
	return answers, nil
}

// TreatUnknownAnswersAs folds every answer of q whose label is not in the
// reference vocabulary into bucket. The bucket itself is never folded. The
// result keeps q's order; a bucket q did not have is appended last, and only
// when something was folded into it.
func (f *FullAnswers) TreatUnknownAnswersAs(q survey.Question, bucket string) (survey.Question, error) {
	s, err := q.Simple()
	if err != nil {
		return survey.Question{}, fmt.Errorf("reconcile: %w", err)
	}
	ref, err := f.requireReference(q.Text)
	if err != nil {
		return survey.Question{}, err
	}
	refSimple, err := ref.Simple()
	if err != nil {
		return survey.Question{}, fmt.Errorf("reconcile: reference: %w: %w", survey.ErrSchemaMismatch, err)
	}
	known := make(map[string]bool, len(refSimple.Answers))
	for _, a := range refSimple.Answers {
		known[a.Answer] = true
	}

	answers := make([]survey.Answer, 0, len(s.Answers)+1)
	bucketAt := -1
	folded := 0
	for _, a := range s.Answers {
		switch {
		case a.Answer == bucket:
			bucketAt = len(answers)
			answers = append(answers, a)
		case !known[a.Answer]:
			f.log.Debug("folding unknown answer",
				zap.String("question", q.Text),
				zap.String("answer", a.Answer),
				zap.Int("count", a.Count),
				zap.String("bucket", bucket))
			folded += a.Count
		default:
			answers = append(answers, a)
		}
	}
	switch {
	case bucketAt >= 0:
		answers[bucketAt].Count += folded
	case folded > 0:
		answers = append(answers, survey.Answer{Answer: bucket, Count: folded})
	}

	before, after := 0, 0
	for _, a := range s.Answers {
		before += a.Count
	}
	for _, a := range answers {
		after += a.Count
	}
	if before != after {
		return survey.Question{}, fmt.Errorf("reconcile: %w: folding unknown answers of %q changed total from %d to %d",
			survey.ErrCountConservation, q.Text, before, after)
	}
	q.Kind = survey.SimpleQuestion{Answers: answers}
	return q, nil
}

// OpenTextOptions configures NormalizeOpenAnswers.
type OpenTextOptions struct {
	// ReplaceSpaces joins words with "-" instead of a single space.
	ReplaceSpaces bool
	// Strip lists words removed from every answer, typically the survey's
	// subject, which free-text respondents tend to repeat.
	Strip []string
}

// NormalizeOpenAnswers prepares free-text answers for matching: each answer is
// NFC-normalized, lower-cased, stripped of the configured words and has its
// whitespace collapsed. The result has one entry per input, empty ones
// included.
func NormalizeOpenAnswers(answers []string, opts OpenTextOptions) []string {
	lower := cases.Lower(language.Und)
	strip := make([]string, 0, len(opts.Strip))
	for _, w := range opts.Strip {
		if w = lower.String(norm.NFC.String(strings.TrimSpace(w))); w != "" {
			strip = append(strip, w)
		}
	}
	sep := " "
	if opts.ReplaceSpaces {
		sep = "-"
	}

	out := make([]string, len(answers))
	for i, a := range answers {
		a = lower.String(norm.NFC.String(a))
		for _, w := range strip {
			a = strings.ReplaceAll(a, w, " ")
		}
		out[i] = strings.Join(strings.Fields(a), sep)
	}
	return out
}
