package recipe

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/surveyrecon/internal/survey"
)

const fixture = "../../testdata/recipe-2024.yaml"

func ptr[T any](v T) *T { return &v }

func TestLoad_Fixture(t *testing.T) {
	t.Setenv(EnvStore, "")
	r, err := Load(fixture)
	require.NoError(t, err)

	assert.Equal(t, 2024, r.Year)
	assert.Equal(t, filepath.Join("..", "..", "testdata", "survey-2024.csv"), r.Data)
	assert.Equal(t, filepath.Join("..", "..", "testdata", "history.db"), r.Store)
	require.Len(t, r.Questions, 5)

	years := r.Questions[3]
	assert.Equal(t, TypeSingle, years.Type)
	assert.True(t, years.Integer)
	to, ok := years.Rename["5"]
	assert.True(t, ok, "rename key 5 missing")
	assert.Nil(t, to, "null rename target should decode to nil")

	rating := r.Questions[4]
	require.NotNil(t, rating.SummaryIndex)
	assert.Equal(t, 3, *rating.SummaryIndex)
	assert.NotNil(t, r.Questions[2].Normalize, "empty normalize mapping should still be set")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv(EnvStore, "/var/lib/surveyrecon/history.db")
	r, err := Load(fixture)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/surveyrecon/history.db", r.Store)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want string
	}{
		"unknown key": {
			doc:  "year: 2024\ndata: a.csv\ncolour: red\nquestions: [{column: A, type: single}]",
			want: "field colour not found",
		},
		"missing year": {
			doc:  "data: a.csv\nquestions: [{column: A, type: single}]",
			want: "year must be positive",
		},
		"no questions": {
			doc:  "year: 2024\ndata: a.csv",
			want: "at least one question",
		},
		"column and index": {
			doc:  "year: 2024\ndata: a.csv\nquestions: [{column: A, index: 1, type: single}]",
			want: "exactly one of column and index",
		},
		"unknown type": {
			doc:  "year: 2024\ndata: a.csv\nquestions: [{column: A, type: ranking}]",
			want: `unknown type "ranking"`,
		},
		"summary without file": {
			doc:  "year: 2024\ndata: a.csv\nquestions: [{type: summary, summary_index: 0}]",
			want: "a summary file is required",
		},
		"unknown_as on multi": {
			doc:  "year: 2024\ndata: a.csv\nquestions: [{column: A, type: multi, unknown_as: Misc}]",
			want: "unknown_as and keep_unknown require type single",
		},
		"unknown splitter": {
			doc:  "year: 2024\ndata: a.csv\nquestions: [{column: A, type: single, split: pipe}]",
			want: `unknown splitter "pipe"`,
		},
		"bad comma": {
			doc:  "year: 2024\ndata: a.csv\ncomma: ';;'\nquestions: [{column: A, type: single}]",
			want: "single character",
		},
		"open without label": {
			doc:  "year: 2024\ndata: a.csv\nquestions: [{column: A, type: single, open: [{match: x}]}]",
			want: "match and label are required",
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(c.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

func TestBuild_Fixture(t *testing.T) {
	t.Setenv(EnvStore, "")
	r, err := Load(fixture)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	fa, err := r.Open(log)
	require.NoError(t, err)
	report, err := r.Build(fa, log)
	require.NoError(t, err)

	want := survey.Report{
		Year: 2024,
		Questions: []survey.Question{
			{ID: 1, Year: 2024, Text: "Color", TotalResponses: 9, Kind: survey.SimpleQuestion{Answers: []survey.Answer{
				{Answer: "Red", Count: 5}, {Answer: "Blue", Count: 3}, {Answer: "Other", Count: 1},
			}}},
			{ID: 2, Year: 2024, Text: "Which editors do you use?", TotalResponses: 8, Kind: survey.SimpleQuestion{Answers: []survey.Answer{
				{Answer: "Vim", Count: 5}, {Answer: "Emacs", Count: 3}, {Answer: "Other", Count: 1}, {Answer: "Helix", Count: 2},
			}}},
			{ID: 7, Year: 2024, Text: "Which OS do you use?", TotalResponses: 8, Kind: survey.SimpleQuestion{Answers: []survey.Answer{
				{Answer: "Linux", Count: 5}, {Answer: "macOS", Count: 3}, {Answer: "Other", Count: 0}, {Answer: "Haiku", Count: 2},
			}}},
			{ID: 6, Year: 2024, Text: "How many years have you used it?", TotalResponses: 8, Kind: survey.SimpleQuestion{Answers: []survey.Answer{
				{Answer: "1", Count: 2}, {Answer: "2", Count: 3}, {Answer: "3", Count: 2},
			}}},
			{ID: 12, Year: 2024, Text: "How satisfied are you?", TotalResponses: 9, Kind: survey.SimpleQuestion{Answers: []survey.Answer{
				{Answer: "1", Count: 2}, {Answer: "3", Count: 3}, {Answer: "5", Count: 4},
			}}},
		},
	}
	assert.Equal(t, want, report)
}

func TestBuild_StepErrors(t *testing.T) {
	data := filepath.Join("..", "..", "testdata", "survey-2024.csv")
	summary := filepath.Join("..", "..", "testdata", "summary-2024.json")
	cases := map[string]struct {
		step QuestionStep
		want error
	}{
		"combine unknown label": {
			step: QuestionStep{Column: "Color", Type: TypeSingle, Combine: []CombineStep{{Into: "Warm", From: []string{"Orange"}}}},
			want: survey.ErrDiffNotApplied,
		},
		"rename unknown label": {
			step: QuestionStep{Column: "Color", Type: TypeSingle, Rename: map[string]*string{"Green": nil}},
			want: survey.ErrDiffNotApplied,
		},
		"rename onto existing label": {
			step: QuestionStep{Column: "Color", Type: TypeSingle, Rename: map[string]*string{"Blue": ptr("Red")}},
			want: survey.ErrDiffNotApplied,
		},
		"integer on words": {
			step: QuestionStep{Column: "Color", Type: TypeSingle, Integer: true},
			want: survey.ErrNotNumeric,
		},
		"open without match": {
			step: QuestionStep{Column: "Color", Type: TypeSingle, Open: []OpenStep{{Match: "purple", Label: "Purple"}}},
			want: survey.ErrNoMatch,
		},
		"summary index out of range": {
			step: QuestionStep{Type: TypeSummary, SummaryIndex: ptr(9)},
			want: survey.ErrSchemaMismatch,
		},
		"rating not converted": {
			step: QuestionStep{Type: TypeSummary, SummaryIndex: ptr(3), MinCount: 1},
			want: survey.ErrNotSimple,
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			r := &Recipe{Year: 2024, Data: data, Summary: summary, Questions: []QuestionStep{c.step}}
			require.Empty(t, r.Validate())
			fa, err := r.Open(nil)
			require.NoError(t, err)
			_, err = r.Build(fa, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, c.want), "error %v does not wrap %v", err, c.want)
			assert.True(t, strings.HasPrefix(err.Error(), "recipe: questions[0]"), "error %q lacks step prefix", err)
		})
	}
}

func TestBuild_SummaryStepWithoutSummary(t *testing.T) {
	data := filepath.Join("..", "..", "testdata", "survey-2024.csv")
	r := &Recipe{Year: 2024, Data: data, Questions: []QuestionStep{{Type: TypeSummary, SummaryIndex: ptr(0)}}}
	assert.NotEmpty(t, r.Validate(), "Validate accepts a summary step without a summary")

	fa, err := r.Open(nil)
	require.NoError(t, err)
	_, err = r.Build(fa, nil)
	assert.ErrorIs(t, err, errNoSummary)
}

func TestBuild_SplitAndMinCount(t *testing.T) {
	data := filepath.Join("..", "..", "testdata", "survey-2024.csv")
	r := &Recipe{Year: 2024, Data: data, Questions: []QuestionStep{{
		Column:      "Which editors do you use?",
		Type:        TypeMulti,
		AnswerCount: 3,
		Rename:      map[string]*string{"Other": ptr("Other/Vim")},
		Split:       "slash",
		MinCount:    4,
	}}}
	require.Empty(t, r.Validate())
	fa, err := r.Open(nil)
	require.NoError(t, err)
	report, err := r.Build(fa, nil)
	require.NoError(t, err)

	s, err := report.Questions[0].Simple()
	require.NoError(t, err)
	assert.Equal(t, []survey.Answer{{Answer: "Vim", Count: 8}}, s.Answers)
}

func TestLookupSplitter(t *testing.T) {
	for _, name := range []string{"comma", "semicolon", "slash", "list", "whitespace"} {
		s, err := LookupSplitter(name)
		if err != nil {
			t.Errorf("LookupSplitter(%q) error: %v", name, err)
			continue
		}
		if s.Name != name || s.Description == "" || s.Split == nil {
			t.Errorf("LookupSplitter(%q) = %+v", name, s)
		}
	}
	if _, err := LookupSplitter("pipe"); err == nil {
		t.Fatal("LookupSplitter(\"pipe\") expected error, got nil")
	}
}

func TestSplitters(t *testing.T) {
	cases := []struct {
		name, in string
		want     []string
	}{
		{"comma", "vim, emacs ,vim", []string{"vim", "emacs"}},
		{"comma", " , ", []string{" , "}},
		{"list", "a;b/c,d", []string{"a", "b", "c", "d"}},
		{"whitespace", "  a \t b ", []string{"a", "b"}},
	}
	for _, c := range cases {
		s, err := LookupSplitter(c.name)
		require.NoError(t, err)
		assert.Equal(t, c.want, s.Split(c.in), "%s(%q)", c.name, c.in)
	}
}
