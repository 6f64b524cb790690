// Package verify compares a built survey report with its reference summary
// question by question and derives an overall verdict. Everything here is
// deterministic local logic.
package verify

import (
	"fmt"

	"github.com/dshills/surveyrecon/internal/survey"
)

// Status classifies one compared question.
type Status string

const (
	StatusEqual         Status = "EQUAL"
	StatusCountsDiffer  Status = "COUNTS_DIFFER"
	StatusAnswersDiffer Status = "ANSWERS_DIFFER"
	StatusKindsDiffer   Status = "KINDS_DIFFER"
	StatusTitlesDiffer  Status = "TITLES_DIFFER"
	StatusMissing       Status = "MISSING"
	StatusExtra         Status = "EXTRA"
)

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityCritical Severity = "CRITICAL"
)

// Verdict represents the overall alignment verdict.
type Verdict string

const (
	VerdictAligned          Verdict = "ALIGNED"
	VerdictPartiallyAligned Verdict = "PARTIALLY_ALIGNED"
	VerdictDriftDetected    Verdict = "DRIFT_DETECTED"
)

// severities maps each status to the severity of its finding. EQUAL carries
// none.
var severities = map[Status]Severity{
	StatusCountsDiffer:  SeverityInfo,
	StatusExtra:         SeverityInfo,
	StatusMissing:       SeverityWarn,
	StatusAnswersDiffer: SeverityWarn,
	StatusTitlesDiffer:  SeverityWarn,
	StatusKindsDiffer:   SeverityCritical,
}

// Result is the outcome of comparing one report with its summary.
type Result struct {
	Year     int       `json:"year"`
	Summary  Summary   `json:"summary"`
	Findings []Finding `json:"findings"`
}

// Summary holds the computed verdict and finding counts.
type Summary struct {
	Verdict       Verdict `json:"verdict"`
	Score         int     `json:"score"`
	Compared      int     `json:"compared"`
	Equal         int     `json:"equal"`
	CriticalCount int     `json:"critical_count"`
	WarnCount     int     `json:"warn_count"`
	InfoCount     int     `json:"info_count"`
}

// Finding describes how one question differs from its reference.
type Finding struct {
	Question        string       `json:"question"`
	SummaryQuestion string       `json:"summary_question,omitempty"`
	Status          Status       `json:"status"`
	Severity        Severity     `json:"severity,omitempty"`
	Description     string       `json:"description"`
	Answers         []AnswerDiff `json:"answers,omitempty"`
}

// AnswerDiff is one position at which the answer lists disagree. An empty
// label means the list has no answer at that position.
type AnswerDiff struct {
	Position     int    `json:"position"`
	Report       string `json:"report"`
	Summary      string `json:"summary"`
	ReportCount  int    `json:"report_count"`
	SummaryCount int    `json:"summary_count"`
}

// Options tunes a comparison.
type Options struct {
	// IgnoreCounts compares labels and kinds only.
	IgnoreCounts bool
	// Strict escalates every finding one severity level.
	Strict bool
}

// Compare matches report questions with summary questions by prompt text.
// A report question without a text match is paired with the unmatched
// summary question of the same ID, if any, and reported as TITLES_DIFFER.
// Findings follow report order; summary questions left unmatched are
// appended as MISSING in summary order.
func Compare(report, summary survey.Report, opts Options) (Result, error) {
	claimed := make(map[string]bool, len(summary.Questions))
	refs := make([]*survey.Question, len(report.Questions))
	for i, q := range report.Questions {
		ref, ok, err := summary.Lookup(q.Text)
		if err != nil {
			return Result{}, fmt.Errorf("verify: %w", err)
		}
		if ok {
			if claimed[ref.Text] {
				return Result{}, fmt.Errorf("verify: %w: %q appears twice in the %d report", survey.ErrDuplicateQuestion, q.Text, report.Year)
			}
			claimed[ref.Text] = true
			refs[i] = &ref
		}
	}

	byID := make(map[int]survey.Question, len(summary.Questions))
	for _, q := range summary.Questions {
		if _, dup := byID[q.ID]; !dup {
			byID[q.ID] = q
		}
	}

	res := Result{Year: report.Year}
	for i, q := range report.Questions {
		if refs[i] != nil {
			res.Findings = append(res.Findings, compareQuestion(q, *refs[i], opts))
			continue
		}
		if ref, ok := byID[q.ID]; ok && !claimed[ref.Text] {
			claimed[ref.Text] = true
			res.Findings = append(res.Findings, Finding{
				Question:        q.Text,
				SummaryQuestion: ref.Text,
				Status:          StatusTitlesDiffer,
				Description:     fmt.Sprintf("question %d is titled %q in the summary", q.ID, ref.Text),
			})
			continue
		}
		res.Findings = append(res.Findings, Finding{
			Question:    q.Text,
			Status:      StatusExtra,
			Description: "question has no counterpart in the summary",
		})
	}
	for _, ref := range summary.Questions {
		if claimed[ref.Text] {
			continue
		}
		claimed[ref.Text] = true
		res.Findings = append(res.Findings, Finding{
			Question:    ref.Text,
			Status:      StatusMissing,
			Description: "summary question is missing from the report",
		})
	}

	for i := range res.Findings {
		f := &res.Findings[i]
		f.Severity = EscalateSeverity(severities[f.Status], opts.Strict)
		if f.Status != StatusMissing && f.Status != StatusExtra {
			res.Summary.Compared++
		}
		if f.Status == StatusEqual {
			res.Summary.Equal++
		}
	}
	res.Summary.CriticalCount, res.Summary.WarnCount, res.Summary.InfoCount = CountBySeverity(res.Findings)
	res.Summary.Score = ComputeScore(res.Summary.CriticalCount, res.Summary.WarnCount, res.Summary.InfoCount)
	res.Summary.Verdict = DetermineVerdict(res.Findings)
	return res, nil
}

func compareQuestion(q, ref survey.Question, opts Options) Finding {
	f := Finding{Question: q.Text}
	if kq, kr := kindOf(q), kindOf(ref); kq != kr {
		f.Status = StatusKindsDiffer
		f.Description = fmt.Sprintf("kind is %s, summary has %s", kq, kr)
		return f
	}
	if q.IsSimple() {
		qs, _ := q.IsSingleAnswer()
		rs, _ := ref.IsSingleAnswer()
		if qs != rs {
			f.Status = StatusKindsDiffer
			f.Description = fmt.Sprintf("question is %s, summary has it %s", answerMode(qs), answerMode(rs))
			return f
		}
	}

	got, want := entries(q), entries(ref)
	if diffs := diffLabels(got, want); len(diffs) > 0 {
		f.Status = StatusAnswersDiffer
		f.Description = fmt.Sprintf("%d of %d answer positions differ", len(diffs), max(len(got), len(want)))
		f.Answers = diffs
		return f
	}
	if !opts.IgnoreCounts {
		diffs := diffCounts(got, want)
		if len(diffs) > 0 || q.TotalResponses != ref.TotalResponses {
			f.Status = StatusCountsDiffer
			f.Description = fmt.Sprintf("%d responses, summary has %d", q.TotalResponses, ref.TotalResponses)
			f.Answers = diffs
			return f
		}
	}
	f.Status = StatusEqual
	f.Description = "question matches the summary"
	return f
}

func kindOf(q survey.Question) survey.KindType {
	if q.Kind == nil {
		return ""
	}
	return q.Kind.Type()
}

func answerMode(single bool) string {
	if single {
		return "single-answer"
	}
	return "multi-answer"
}

// entries flattens any question kind into an ordered label/count list:
// answers for simple and rating questions, groups for matrix questions.
func entries(q survey.Question) []survey.Answer {
	switch k := q.Kind.(type) {
	case survey.SimpleQuestion:
		return k.Answers
	case survey.MatrixQuestion:
		out := make([]survey.Answer, len(k.Groups))
		for i, g := range k.Groups {
			n := 0
			for _, a := range g.Answers {
				n += a.Count
			}
			out[i] = survey.Answer{Answer: g.Label, Count: n}
		}
		return out
	case survey.RatingQuestion:
		out := make([]survey.Answer, len(k.Answers))
		for i, a := range k.Answers {
			out[i] = a.Answer
		}
		return out
	default:
		return nil
	}
}

func diffLabels(got, want []survey.Answer) []AnswerDiff {
	var diffs []AnswerDiff
	for i := range max(len(got), len(want)) {
		var d AnswerDiff
		d.Position = i
		if i < len(got) {
			d.Report, d.ReportCount = got[i].Answer, got[i].Count
		}
		if i < len(want) {
			d.Summary, d.SummaryCount = want[i].Answer, want[i].Count
		}
		if i >= len(got) || i >= len(want) || d.Report != d.Summary {
			diffs = append(diffs, d)
		}
	}
	return diffs
}

// diffCounts assumes both lists carry the same labels.
func diffCounts(got, want []survey.Answer) []AnswerDiff {
	var diffs []AnswerDiff
	for i := range got {
		if got[i].Count != want[i].Count {
			diffs = append(diffs, AnswerDiff{
				Position:     i,
				Report:       got[i].Answer,
				Summary:      want[i].Answer,
				ReportCount:  got[i].Count,
				SummaryCount: want[i].Count,
			})
		}
	}
	return diffs
}
