package verify

import "fmt"

// ComputeScore calculates the alignment score from finding counts.
// Start at 100; subtract 20 per CRITICAL, 7 per WARN, 2 per INFO; clamp to [0, 100].
func ComputeScore(criticalCount, warnCount, infoCount int) int {
	score := 100 - (criticalCount * 20) - (warnCount * 7) - (infoCount * 2)
	return min(max(score, 0), 100)
}

// VerdictOrdinal returns the numeric ordinal for a verdict, used to compare
// severity order. ALIGNED=0, PARTIALLY_ALIGNED=1, DRIFT_DETECTED=2.
// Used by --fail-on comparison: exit 2 if VerdictOrdinal(actual) >= VerdictOrdinal(threshold).
func VerdictOrdinal(v Verdict) int {
	switch v {
	case VerdictAligned:
		return 0
	case VerdictPartiallyAligned:
		return 1
	case VerdictDriftDetected:
		return 2
	default:
		return -1
	}
}

// ParseVerdict converts a string to a Verdict constant.
func ParseVerdict(s string) (Verdict, error) {
	switch Verdict(s) {
	case VerdictAligned, VerdictPartiallyAligned, VerdictDriftDetected:
		return Verdict(s), nil
	}
	return "", fmt.Errorf("verify: unknown verdict %q", s)
}

// DetermineVerdict applies the verdict rules to a set of findings.
//
// Rules (in order of precedence):
//  1. Any KINDS_DIFFER, ANSWERS_DIFFER or TITLES_DIFFER → DRIFT_DETECTED
//  2. Any MISSING or EXTRA question → PARTIALLY_ALIGNED
//  3. Otherwise → ALIGNED
//
// Count differences never change the verdict: a report built from a sample
// of the raw export is not expected to reproduce the summary's counts.
func DetermineVerdict(findings []Finding) Verdict {
	partial := false
	for _, f := range findings {
		switch f.Status {
		case StatusKindsDiffer, StatusAnswersDiffer, StatusTitlesDiffer:
			return VerdictDriftDetected
		case StatusMissing, StatusExtra:
			partial = true
		}
	}
	if partial {
		return VerdictPartiallyAligned
	}
	return VerdictAligned
}

// EscalateSeverity raises a severity one level in strict mode:
// INFO → WARN, WARN → CRITICAL; CRITICAL and the empty severity are unchanged.
func EscalateSeverity(s Severity, strict bool) Severity {
	if !strict {
		return s
	}
	switch s {
	case SeverityInfo:
		return SeverityWarn
	case SeverityWarn:
		return SeverityCritical
	}
	return s
}

// CountBySeverity returns the count of findings at each severity level.
func CountBySeverity(findings []Finding) (critical, warn, info int) {
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			critical++
		case SeverityWarn:
			warn++
		case SeverityInfo:
			info++
		}
	}
	return
}

// ValidateFinding returns field-level error messages for a finding.
func ValidateFinding(f Finding) []string {
	var errs []string
	if f.Question == "" {
		errs = append(errs, "question is required")
	}
	switch f.Status {
	case StatusEqual:
		if f.Severity != "" {
			errs = append(errs, fmt.Sprintf("severity %q on an EQUAL finding", f.Severity))
		}
	case StatusCountsDiffer, StatusAnswersDiffer, StatusKindsDiffer, StatusTitlesDiffer, StatusMissing, StatusExtra:
		switch f.Severity {
		case SeverityInfo, SeverityWarn, SeverityCritical:
		case "":
			errs = append(errs, "severity is required")
		default:
			errs = append(errs, fmt.Sprintf("severity %q is not valid", f.Severity))
		}
	case "":
		errs = append(errs, "status is required")
	default:
		errs = append(errs, fmt.Sprintf("status %q is not valid", f.Status))
	}
	if f.Status == StatusTitlesDiffer && f.SummaryQuestion == "" {
		errs = append(errs, "summary_question is required for TITLES_DIFFER")
	}
	return errs
}
