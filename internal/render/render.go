// Package render produces output from a built survey.Report and from a
// verify.Result.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/surveyrecon/internal/survey"
	"github.com/dshills/surveyrecon/internal/verify"
)

// RenderJSON produces a pretty-printed JSON representation of the report.
// The output reads back through survey.ReadReport to an equal Report, so a
// rendered report can serve as the summary of a later run.
func RenderJSON(report *survey.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("render: nil report")
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderMarkdown produces a GitHub-flavoured Markdown report with one table
// per question. Shares are relative to the question's total responses.
func RenderMarkdown(report *survey.Report) string {
	if report == nil {
		return ""
	}
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Survey Report %d\n\n", report.Year)
	fmt.Fprintf(&sb, "**Questions:** %d\n\n", len(report.Questions))

	for _, q := range report.Questions {
		fmt.Fprintf(&sb, "### %s\n\n", mdEscape(q.Text))
		fmt.Fprintf(&sb, "*%d responses*\n\n", q.TotalResponses)
		switch k := q.Kind.(type) {
		case survey.SimpleQuestion:
			sb.WriteString("| Answer | Count | Share |\n")
			sb.WriteString("|---|---:|---:|\n")
			for _, a := range k.Answers {
				fmt.Fprintf(&sb, "| %s | %d | %s |\n", mdEscape(a.Answer), a.Count, share(a.Count, q.TotalResponses))
			}
		case survey.MatrixQuestion:
			sb.WriteString("| Group | Answer | Count | Share |\n")
			sb.WriteString("|---|---|---:|---:|\n")
			for _, g := range k.Groups {
				for _, a := range g.Answers {
					fmt.Fprintf(&sb, "| %s | %s | %d | %s |\n",
						mdEscape(g.Label), mdEscape(a.Answer), a.Count, share(a.Count, q.TotalResponses))
				}
			}
		case survey.RatingQuestion:
			sb.WriteString("| Rating | Answer | Count | Share |\n")
			sb.WriteString("|---:|---|---:|---:|\n")
			for _, a := range k.Answers {
				fmt.Fprintf(&sb, "| %d | %s | %d | %s |\n",
					a.Rating, mdEscape(a.Answer.Answer), a.Answer.Count, share(a.Answer.Count, q.TotalResponses))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderVerifyJSON produces a pretty-printed JSON representation of a
// comparison result.
func RenderVerifyJSON(res *verify.Result) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("render: nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderVerifyMarkdown produces a Markdown summary of a comparison result,
// suitable for PR comments or terminal output. Every question with a finding
// appears in the output.
func RenderVerifyMarkdown(res *verify.Result) string {
	if res == nil {
		return ""
	}
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Verification %d\n\n", res.Year)
	fmt.Fprintf(&sb, "**Verdict:** %s  \n", res.Summary.Verdict)
	fmt.Fprintf(&sb, "**Score:** %d/100  \n", res.Summary.Score)
	fmt.Fprintf(&sb, "**Equal:** %d/%d compared  \n", res.Summary.Equal, res.Summary.Compared)
	fmt.Fprintf(&sb, "**Critical:** %d | **Warn:** %d | **Info:** %d\n\n",
		res.Summary.CriticalCount, res.Summary.WarnCount, res.Summary.InfoCount)

	if len(res.Findings) == 0 {
		return sb.String()
	}
	sb.WriteString("| Question | Status | Severity | Description |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, f := range res.Findings {
		severity := string(f.Severity)
		if severity == "" {
			severity = "-"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", mdEscape(f.Question), f.Status, severity, mdEscape(f.Description))
	}
	sb.WriteString("\n")

	for _, f := range res.Findings {
		if len(f.Answers) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "<details>\n<summary><strong>%s</strong> [%s]</summary>\n\n", mdEscape(f.Question), f.Status)
		sb.WriteString("| # | Report | Count | Summary | Count |\n")
		sb.WriteString("|---:|---|---:|---|---:|\n")
		for _, d := range f.Answers {
			fmt.Fprintf(&sb, "| %d | %s | %d | %s | %d |\n",
				d.Position+1, orDash(d.Report), d.ReportCount, orDash(d.Summary), d.SummaryCount)
		}
		sb.WriteString("\n</details>\n\n")
	}
	return sb.String()
}

func share(count, total int) string {
	if total <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(count)*100/float64(total))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return mdEscape(s)
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
