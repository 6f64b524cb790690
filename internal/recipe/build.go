package recipe

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dshills/surveyrecon/internal/dataset"
	"github.com/dshills/surveyrecon/internal/reconcile"
	"github.com/dshills/surveyrecon/internal/survey"
)

var errNoSummary = errors.New("recipe: no summary configured")

// Open loads the export, the optional summary and the optional open-answer
// file named by r.
func (r *Recipe) Open(log *zap.Logger) (*reconcile.FullAnswers, error) {
	if log == nil {
		log = zap.NewNop()
	}
	loader := dataset.Loader{MissingValues: r.MissingValues, TrimSpace: r.TrimSpace}
	if r.Comma != "" {
		loader.Comma, _ = utf8.DecodeRuneInString(r.Comma)
	}
	table, err := loader.ParseFile(r.Data)
	if err != nil {
		return nil, fmt.Errorf("recipe: %w", err)
	}
	log.Info("loaded export",
		zap.String("path", r.Data),
		zap.Int("respondents", table.NumRows()),
		zap.Int("columns", table.NumCols()))

	in := reconcile.Input{Year: r.Year, Table: table}
	if r.Summary != "" {
		summary, err := readSummary(r.Summary)
		if err != nil {
			return nil, err
		}
		log.Info("loaded summary", zap.String("path", r.Summary), zap.Int("questions", len(summary.Questions)))
		in.Summary = &summary
	}
	if r.OpenAnswers != "" {
		open, err := readOpenAnswers(r.OpenAnswers)
		if err != nil {
			return nil, err
		}
		in.OpenAnswers = open
	}
	fa, err := reconcile.New(in, log)
	if err != nil {
		return nil, fmt.Errorf("recipe: %w", err)
	}
	return fa, nil
}

func readSummary(path string) (survey.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return survey.Report{}, fmt.Errorf("recipe: open summary: %w", err)
	}
	defer f.Close()
	report, err := survey.ReadReport(f)
	if err != nil {
		return survey.Report{}, fmt.Errorf("recipe: summary %s: %w", path, err)
	}
	return report, nil
}

// readOpenAnswers reads a YAML mapping of export column index to the
// open-text responses exported for it.
func readOpenAnswers(path string) (map[int][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recipe: read open answers: %w", err)
	}
	var open map[int][]string
	if err := yaml.Unmarshal(data, &open); err != nil {
		return nil, fmt.Errorf("recipe: parse open answers %s: %w", path, err)
	}
	return open, nil
}

// Build runs every question step against fa and returns the report.
func (r *Recipe) Build(fa *reconcile.FullAnswers, log *zap.Logger) (survey.Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	report := survey.Report{Year: r.Year, Questions: make([]survey.Question, 0, len(r.Questions))}
	for i, step := range r.Questions {
		q, err := step.build(fa, log)
		if err != nil {
			return survey.Report{}, fmt.Errorf("recipe: questions[%d] %s: %w", i, step.Name(), err)
		}
		q.Year = r.Year
		log.Debug("built question", zap.Int("step", i), zap.String("question", q.Text), zap.Int("responses", q.TotalResponses))
		report.Questions = append(report.Questions, q)
	}
	if errs := report.Validate(); len(errs) > 0 {
		return survey.Report{}, fmt.Errorf("recipe: built report is invalid: %s", strings.Join(errs, "; "))
	}
	log.Info("built report", zap.Int("year", report.Year), zap.Int("questions", len(report.Questions)))
	return report, nil
}

func (s QuestionStep) ref() reconcile.ColumnRef {
	if s.Column != "" {
		return reconcile.ByName(s.Column)
	}
	return reconcile.ByIndex(*s.Index)
}

func (s QuestionStep) build(fa *reconcile.FullAnswers, log *zap.Logger) (survey.Question, error) {
	q, err := s.extract(fa)
	if err != nil {
		return survey.Question{}, err
	}
	if len(s.Open) > 0 {
		if q, err = s.applyOpen(fa, q, log); err != nil {
			return survey.Question{}, err
		}
	}
	if s.Integer {
		if q, err = q.IntegerAnswers(); err != nil {
			return survey.Question{}, err
		}
	}
	if len(s.Rename) > 0 {
		diff := make(survey.RenameDiff, len(s.Rename))
		for from, to := range s.Rename {
			if to == nil {
				diff[from] = survey.Drop()
				continue
			}
			diff[from] = survey.To(*to)
		}
		if q, err = q.RenameAnswers(diff); err != nil {
			return survey.Question{}, err
		}
	}
	if len(s.Combine) > 0 {
		merges := make([]survey.Merge, len(s.Combine))
		for i, c := range s.Combine {
			merges[i] = survey.Merge{Into: c.Into, From: c.From}
		}
		if q, err = q.CombineAnswers(merges); err != nil {
			return survey.Question{}, err
		}
	}
	if s.Split != "" {
		sp, err := LookupSplitter(s.Split)
		if err != nil {
			return survey.Question{}, err
		}
		if q, err = q.ExpandAnswers(sp.Split); err != nil {
			return survey.Question{}, err
		}
	}
	if s.MinCount > 0 {
		if q, err = q.FilterAnswers(func(a survey.Answer) bool { return a.Count >= s.MinCount }); err != nil {
			return survey.Question{}, err
		}
	}
	if s.Title != "" {
		q = q.WithTitle(func(string) string { return s.Title })
	}
	return q, nil
}

func (s QuestionStep) extract(fa *reconcile.FullAnswers) (survey.Question, error) {
	switch s.Type {
	case TypeSingle:
		return fa.QSimpleSingle(s.ref(), reconcile.SingleOptions{UnknownAs: s.UnknownAs, KeepUnknown: s.KeepUnknown})
	case TypeMulti:
		return fa.QSimpleMulti(s.ref(), reconcile.MultiOptions{AnswerCount: s.AnswerCount})
	case TypeSummary:
		summary, ok := fa.Summary()
		if !ok {
			return survey.Question{}, errNoSummary
		}
		q, err := summary.Q(*s.SummaryIndex)
		if err != nil {
			return survey.Question{}, err
		}
		if s.AsSimple {
			return survey.RatingToSimpleQuestion(q)
		}
		return q, nil
	default:
		return survey.Question{}, fmt.Errorf("unknown type %q", s.Type)
	}
}

// applyOpen reclassifies open answers. Responses exported separately for the
// question's column take precedence over those found in the export itself.
func (s QuestionStep) applyOpen(fa *reconcile.FullAnswers, q survey.Question, log *zap.Logger) (survey.Question, error) {
	open := fa.OpenResponses(q.ID)
	if len(open) == 0 {
		var err error
		if open, err = fa.OpenAnswers(s.ref()); err != nil {
			return survey.Question{}, err
		}
	}
	if s.Normalize != nil {
		open = reconcile.NormalizeOpenAnswers(open, reconcile.OpenTextOptions{
			ReplaceSpaces: s.Normalize.ReplaceSpaces,
			Strip:         s.Normalize.Strip,
		})
	}
	log.Debug("open answers", zap.String("question", q.Text), zap.Int("count", len(open)))
	for _, o := range s.Open {
		var err error
		if q, err = q.AddOpen(open, o.Match, o.Label, o.Replace); err != nil {
			return survey.Question{}, err
		}
	}
	return q, nil
}
