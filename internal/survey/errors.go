package survey

import "errors"

// Sentinel errors. Every failure returned by this package wraps one of these
// so callers can classify it with errors.Is. None of them are transient.
var (
	ErrNegativeCount     = errors.New("survey: negative answer count")
	ErrNotSimple         = errors.New("survey: not a simple question")
	ErrInvalidKind       = errors.New("survey: operation undefined for question kind")
	ErrDiffNotApplied    = errors.New("survey: diff not fully applied")
	ErrEmptyMerge        = errors.New("survey: merge accumulated no responses")
	ErrCountConservation = errors.New("survey: total answer count not conserved")
	ErrNotNumeric        = errors.New("survey: answer label is not numeric")
	ErrNoMatch           = errors.New("survey: no matching answer")
	ErrAmbiguous         = errors.New("survey: ambiguous answer match")
	ErrSchemaMismatch    = errors.New("survey: schema mismatch")
	ErrDuplicateQuestion = errors.New("survey: duplicate question text")
)
