package survey

import "fmt"

// Report is the ordered set of questions of one survey year. A finished
// report doubles as the reference summary for reconciling raw exports.
type Report struct {
	Year      int        `json:"year"`
	Questions []Question `json:"questions"`
}

// Clone returns a deep copy of r.
func (r Report) Clone() Report {
	if r.Questions == nil {
		return r
	}
	qs := make([]Question, len(r.Questions))
	for i, q := range r.Questions {
		qs[i] = q.Clone()
	}
	r.Questions = qs
	return r
}

// Q returns the question at index.
func (r Report) Q(index int) (Question, error) {
	if index < 0 || index >= len(r.Questions) {
		return Question{}, fmt.Errorf("%w: question index %d out of range [0, %d)", ErrSchemaMismatch, index, len(r.Questions))
	}
	return r.Questions[index], nil
}

// Lookup finds the question whose prompt text equals text exactly. More than
// one match is an error; no match reports false.
func (r Report) Lookup(text string) (Question, bool, error) {
	var (
		found Question
		n     int
	)
	for _, q := range r.Questions {
		if q.Text == text {
			found = q
			n++
		}
	}
	switch n {
	case 0:
		return Question{}, false, nil
	case 1:
		return found, true, nil
	default:
		return Question{}, false, fmt.Errorf("%w: %q appears %d times in the %d report", ErrDuplicateQuestion, text, n, r.Year)
	}
}

// Validate returns problems with the report as a whole, prefixed by the
// offending question's position.
func (r Report) Validate() []string {
	var errs []string
	seen := make(map[string]bool, len(r.Questions))
	for i, q := range r.Questions {
		for _, e := range q.Validate() {
			errs = append(errs, fmt.Sprintf("questions[%d]: %s", i, e))
		}
		if q.Text != "" && seen[q.Text] {
			errs = append(errs, fmt.Sprintf("questions[%d]: duplicate question text %q", i, q.Text))
		}
		seen[q.Text] = true
	}
	return errs
}
