// Package reconcile derives survey questions from a raw export and aligns
// them with the answer vocabulary and ordering of a reference summary report.
//
// A FullAnswers value is built once per survey year and is read-only
// afterwards; every method is a pure function of it and its arguments.
package reconcile

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/surveyrecon/internal/dataset"
	"github.com/dshills/surveyrecon/internal/survey"
)

// Input is the externally loaded data a FullAnswers is built from.
type Input struct {
	Year  int
	Table *dataset.Table
	// Summary is the optional reference report for the same year.
	Summary *survey.Report
	// OpenAnswers maps a question index to its raw open-text responses when
	// those are exported separately from the table.
	OpenAnswers map[int][]string
}

// FullAnswers owns one year's raw export and its optional reference report.
type FullAnswers struct {
	year             int
	answers          map[int][]string
	questions        []string
	totalRespondents int
	table            *dataset.Table
	summary          *survey.Report
	log              *zap.Logger
}

// New builds a FullAnswers. A nil logger disables logging. A summary in which
// a prompt text appears twice is rejected up front, since every lookup
// against it would fail.
func New(in Input, log *zap.Logger) (*FullAnswers, error) {
	if in.Table == nil {
		return nil, errors.New("reconcile: nil table")
	}
	if log == nil {
		log = zap.NewNop()
	}
	fa := &FullAnswers{
		year:             in.Year,
		answers:          make(map[int][]string, len(in.OpenAnswers)),
		questions:        in.Table.Header(),
		totalRespondents: in.Table.NumRows(),
		table:            in.Table,
		log:              log.With(zap.Int("year", in.Year)),
	}
	for k, v := range in.OpenAnswers {
		fa.answers[k] = slices.Clone(v)
	}
	if in.Summary != nil {
		s := in.Summary.Clone()
		for _, q := range s.Questions {
			if _, _, err := s.Lookup(q.Text); err != nil {
				return nil, fmt.Errorf("reconcile: summary: %w", err)
			}
		}
		if s.Year != in.Year {
			fa.log.Warn("summary year differs from export year", zap.Int("summary_year", s.Year))
		}
		fa.summary = &s
	}
	return fa, nil
}

// Year returns the survey year.
func (f *FullAnswers) Year() int { return f.year }

// Questions returns the prompt text of every export column.
func (f *FullAnswers) Questions() []string { return slices.Clone(f.questions) }

// TotalRespondents returns the number of rows in the export.
func (f *FullAnswers) TotalRespondents() int { return f.totalRespondents }

// Summary returns a copy of the reference report, if any.
func (f *FullAnswers) Summary() (survey.Report, bool) {
	if f.summary == nil {
		return survey.Report{}, false
	}
	return f.summary.Clone(), true
}

// OpenResponses returns the separately exported open-text responses for the
// question at index.
func (f *FullAnswers) OpenResponses(index int) []string {
	return slices.Clone(f.answers[index])
}

// OpenResponseIndexes lists the question indexes with separately exported
// open-text responses.
func (f *FullAnswers) OpenResponseIndexes() []int {
	return slices.Sorted(maps.Keys(f.answers))
}

// ColumnRef addresses an export column by position or by prompt text.
type ColumnRef struct {
	index  int
	name   string
	byName bool
}

// ByIndex addresses the column at position i.
func ByIndex(i int) ColumnRef { return ColumnRef{index: i} }

// ByName addresses the column whose header is name.
func ByName(name string) ColumnRef { return ColumnRef{name: name, byName: true} }

func (r ColumnRef) String() string {
	if r.byName {
		return strconv.Quote(r.name)
	}
	return "#" + strconv.Itoa(r.index)
}

func (f *FullAnswers) column(ref ColumnRef) (dataset.Column, error) {
	var (
		col dataset.Column
		err error
	)
	if ref.byName {
		col, err = f.table.ColumnByName(ref.name)
	} else {
		col, err = f.table.Column(ref.index)
	}
	if err != nil {
		return dataset.Column{}, fmt.Errorf("reconcile: column %s: %w: %w", ref, survey.ErrSchemaMismatch, err)
	}
	return col, nil
}

// reference looks up the summary question for a prompt. A miss is reported
// as false and logged; only a malformed summary is an error.
func (f *FullAnswers) reference(text string) (survey.Question, bool, error) {
	if f.summary == nil {
		return survey.Question{}, false, nil
	}
	q, ok, err := f.summary.Lookup(text)
	if err != nil {
		return survey.Question{}, false, fmt.Errorf("reconcile: %w", err)
	}
	if !ok {
		f.log.Debug("no reference question", zap.String("question", text))
	}
	return q, ok, nil
}

func (f *FullAnswers) requireReference(text string) (survey.Question, error) {
	ref, ok, err := f.reference(text)
	if err != nil {
		return survey.Question{}, err
	}
	if !ok {
		return survey.Question{}, fmt.Errorf("reconcile: %w: summary has no question %q", survey.ErrSchemaMismatch, text)
	}
	return ref, nil
}

// checkReference verifies that ref is a simple question whose single-answer
// flag matches the extraction being performed.
func checkReference(ref survey.Question, wantSingle bool) error {
	if _, err := ref.Simple(); err != nil {
		return fmt.Errorf("reconcile: reference: %w: %w", survey.ErrSchemaMismatch, err)
	}
	single, err := ref.IsSingleAnswer()
	if err != nil {
		return fmt.Errorf("reconcile: reference: %w", err)
	}
	if single != wantSingle {
		want := "multi-answer"
		if wantSingle {
			want = "single-answer"
		}
		return fmt.Errorf("reconcile: %w: reference %q is not %s", survey.ErrSchemaMismatch, ref.Text, want)
	}
	return nil
}

// answerColumns returns the per-option sub-columns that follow a
// multi-select question's own column. When n is zero the option count is
// taken from the reference question.
func (f *FullAnswers) answerColumns(col dataset.Column, n int) ([]dataset.Column, error) {
	if n <= 0 {
		ref, ok, err := f.reference(col.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("reconcile: %w: provide an answer count or a summary that has the question %q",
				survey.ErrSchemaMismatch, col.Name)
		}
		s, err := ref.Simple()
		if err != nil {
			return nil, fmt.Errorf("reconcile: reference: %w: %w", survey.ErrSchemaMismatch, err)
		}
		n = len(s.Answers)
	}
	cols, err := f.table.Window(col.Index+1, n)
	if err != nil {
		return nil, fmt.Errorf("reconcile: answer columns of %q: %w: %w", col.Name, survey.ErrSchemaMismatch, err)
	}
	return cols, nil
}

// SingleOptions configures QSimpleSingle.
type SingleOptions struct {
	// UnknownAs is the bucket answers missing from the reference vocabulary
	// are folded into. Empty means survey.DefaultBucket.
	UnknownAs string
	// KeepUnknown leaves unrecognized answers as they are.
	KeepUnknown bool
}

// QSimpleSingle extracts a single-answer question: one column, one answer
// per respondent.
func (f *FullAnswers) QSimpleSingle(ref ColumnRef, opts SingleOptions) (survey.Question, error) {
	col, err := f.column(ref)
	if err != nil {
		return survey.Question{}, err
	}
	refQ, found, err := f.reference(col.Name)
	if err != nil {
		return survey.Question{}, err
	}
	if found {
		if err := checkReference(refQ, true); err != nil {
			return survey.Question{}, err
		}
	}

	answers, err := f.SortAnswers(col.ValueCounts(), col)
	if err != nil {
		return survey.Question{}, err
	}
	q := survey.Question{
		ID:             col.Index,
		Year:           f.year,
		Text:           col.Name,
		TotalResponses: col.Count(),
		Kind:           survey.SimpleQuestion{Answers: answers},
	}
	if !found || opts.KeepUnknown {
		return q, nil
	}
	bucket := opts.UnknownAs
	if bucket == "" {
		bucket = survey.DefaultBucket
	}
	return f.TreatUnknownAnswersAs(q, bucket)
}

// MultiOptions configures QSimpleMulti.
type MultiOptions struct {
	// AnswerCount is the number of option sub-columns following the
	// question column. Zero takes it from the reference question.
	AnswerCount int
}

// QSimpleMulti extracts a multi-select question exported as one column per
// option right after the question's own column. An option's count is the
// number of respondents with a value in its column.
func (f *FullAnswers) QSimpleMulti(ref ColumnRef, opts MultiOptions) (survey.Question, error) {
	col, err := f.column(ref)
	if err != nil {
		return survey.Question{}, err
	}
	subs, err := f.answerColumns(col, opts.AnswerCount)
	if err != nil {
		return survey.Question{}, err
	}
	for _, sub := range subs {
		// A trailing "?" means the window ran into the next question.
		if strings.HasSuffix(sub.Name, "?") {
			return survey.Question{}, fmt.Errorf("reconcile: %w: answer column %q of %q looks like a question",
				survey.ErrSchemaMismatch, sub.Name, col.Name)
		}
	}

	responded := 0
	for row := range col.Data {
		for _, sub := range subs {
			if sub.Data[row].Valid {
				responded++
				break
			}
		}
	}

	refQ, found, err := f.reference(col.Name)
	if err != nil {
		return survey.Question{}, err
	}
	if found {
		if err := checkReference(refQ, false); err != nil {
			return survey.Question{}, err
		}
	}

	counts := make([]dataset.Count, len(subs))
	for i, sub := range subs {
		counts[i] = dataset.Count{Value: sub.Name, Count: sub.Count()}
	}
	answers, err := f.SortAnswers(counts, col)
	if err != nil {
		return survey.Question{}, err
	}
	return survey.Question{
		ID:             col.Index,
		Year:           f.year,
		Text:           col.Name,
		TotalResponses: responded,
		Kind:           survey.SimpleQuestion{Answers: answers},
	}, nil
}

// OpenAnswers returns the free-text responses of a question that has a
// reference. For a single-answer question these are the values outside the
// reference vocabulary; for a multi-select question they are the values of
// its "Other" option column.
func (f *FullAnswers) OpenAnswers(ref ColumnRef) ([]string, error) {
	col, err := f.column(ref)
	if err != nil {
		return nil, err
	}
	refQ, err := f.requireReference(col.Name)
	if err != nil {
		return nil, err
	}
	s, err := refQ.Simple()
	if err != nil {
		return nil, fmt.Errorf("reconcile: reference: %w: %w", survey.ErrSchemaMismatch, err)
	}
	single, err := refQ.IsSingleAnswer()
	if err != nil {
		return nil, fmt.Errorf("reconcile: reference: %w", err)
	}

	if single {
		known := make(map[string]bool, len(s.Answers))
		for _, a := range s.Answers {
			known[a.Answer] = true
		}
		var open []string
		for _, v := range col.Values(true) {
			if !known[v] {
				open = append(open, v)
			}
		}
		return open, nil
	}

	subs, err := f.answerColumns(col, 0)
	if err != nil {
		return nil, err
	}
	var other []dataset.Column
	for _, sub := range subs {
		if NormalizeAnswerOther(sub.Name) == survey.DefaultBucket {
			other = append(other, sub)
		}
	}
	switch len(other) {
	case 0:
		return nil, fmt.Errorf("reconcile: %w: %q has no %q answer column", survey.ErrSchemaMismatch, col.Name, survey.DefaultBucket)
	case 1:
		return other[0].Values(true), nil
	default:
		return nil, fmt.Errorf("reconcile: %w: %q has %d %q answer columns", survey.ErrAmbiguous, col.Name, len(other), survey.DefaultBucket)
	}
}

// OpenAnswersRaw returns a column's values verbatim.
func (f *FullAnswers) OpenAnswersRaw(ref ColumnRef, dropMissing bool) ([]string, error) {
	col, err := f.column(ref)
	if err != nil {
		return nil, err
	}
	return col.Values(dropMissing), nil
}
