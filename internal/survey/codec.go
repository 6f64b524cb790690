package survey

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// questionJSON is the wire form of a Question. The kind tag selects which of
// the answer fields is populated.
type questionJSON struct {
	ID             int            `json:"id"`
	Year           int            `json:"year"`
	Question       string         `json:"question"`
	TotalResponses int            `json:"total_responses"`
	Kind           KindType       `json:"kind"`
	Answers        []Answer       `json:"answers,omitempty"`
	Groups         []AnswerGroup  `json:"groups,omitempty"`
	Ratings        []RatingAnswer `json:"ratings,omitempty"`
}

// MarshalJSON encodes q with an explicit kind tag.
func (q Question) MarshalJSON() ([]byte, error) {
	w := questionJSON{
		ID:             q.ID,
		Year:           q.Year,
		Question:       q.Text,
		TotalResponses: q.TotalResponses,
	}
	switch k := q.Kind.(type) {
	case SimpleQuestion:
		w.Kind, w.Answers = KindSimple, k.Answers
	case MatrixQuestion:
		w.Kind, w.Groups = KindMatrix, k.Groups
	case RatingQuestion:
		w.Kind, w.Ratings = KindRating, k.Answers
	default:
		return nil, fmt.Errorf("survey: marshal %q: %w: %s", q.Text, ErrInvalidKind, kindName(q.Kind))
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a question and rejects invalid answer lists.
func (q *Question) UnmarshalJSON(b []byte) error {
	var w questionJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := Question{
		ID:             w.ID,
		Year:           w.Year,
		Text:           w.Question,
		TotalResponses: w.TotalResponses,
	}
	switch w.Kind {
	case KindSimple:
		out.Kind = SimpleQuestion{Answers: w.Answers}
	case KindMatrix:
		out.Kind = MatrixQuestion{Groups: w.Groups}
	case KindRating:
		out.Kind = RatingQuestion{Answers: w.Ratings}
	default:
		return fmt.Errorf("survey: unmarshal %q: unknown kind %q", w.Question, w.Kind)
	}
	if errs := out.Validate(); len(errs) > 0 {
		return fmt.Errorf("survey: unmarshal %q: %s", w.Question, strings.Join(errs, "; "))
	}
	*q = out
	return nil
}

// ReadReport decodes a JSON report from r and validates it.
func ReadReport(r io.Reader) (Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return Report{}, fmt.Errorf("survey: decode report: %w", err)
	}
	if errs := rep.Validate(); len(errs) > 0 {
		return Report{}, fmt.Errorf("survey: invalid report: %s", strings.Join(errs, "; "))
	}
	return rep, nil
}
