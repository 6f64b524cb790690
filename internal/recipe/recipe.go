// Package recipe loads the YAML description of how one survey year's report
// is built and runs it: inputs are loaded into a reconcile.FullAnswers and
// every configured question is extracted and transformed in order.
package recipe

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// StepType selects how a question is obtained.
type StepType string

const (
	// TypeSingle extracts a single-answer question from one export column.
	TypeSingle StepType = "single"
	// TypeMulti extracts a multi-select question from its option columns.
	TypeMulti StepType = "multi"
	// TypeSummary copies a question from the reference summary.
	TypeSummary StepType = "summary"
)

// EnvStore overrides Recipe.Store when set.
const EnvStore = "SURVEYRECON_STORE"

// Recipe describes the inputs of one survey year and the questions of its
// report. Relative paths are resolved against the recipe file's directory.
type Recipe struct {
	Year          int            `yaml:"year"`
	Data          string         `yaml:"data"`
	Summary       string         `yaml:"summary"`
	OpenAnswers   string         `yaml:"open_answers"`
	Store         string         `yaml:"store"`
	Comma         string         `yaml:"comma"`
	MissingValues []string       `yaml:"missing_values"`
	TrimSpace     bool           `yaml:"trim_space"`
	Questions     []QuestionStep `yaml:"questions"`
}

// QuestionStep builds one report question. Transformations run in a fixed
// order: open, integer, rename, combine, split, min_count, title.
type QuestionStep struct {
	Column string   `yaml:"column"`
	Index  *int     `yaml:"index"`
	Type   StepType `yaml:"type"`

	// single
	UnknownAs   string `yaml:"unknown_as"`
	KeepUnknown bool   `yaml:"keep_unknown"`
	// multi
	AnswerCount int `yaml:"answer_count"`
	// summary
	SummaryIndex *int `yaml:"summary_index"`
	AsSimple     bool `yaml:"as_simple"`

	Normalize *NormalizeStep `yaml:"normalize"`
	Open      []OpenStep     `yaml:"open"`
	Integer   bool           `yaml:"integer"`
	// Rename maps a label to its new label; a null value drops the answer.
	Rename   map[string]*string `yaml:"rename"`
	Combine  []CombineStep      `yaml:"combine"`
	Split    string             `yaml:"split"`
	MinCount int                `yaml:"min_count"`
	Title    string             `yaml:"title"`
}

// NormalizeStep configures free-text normalization of open answers before
// they are matched.
type NormalizeStep struct {
	ReplaceSpaces bool     `yaml:"replace_spaces"`
	Strip         []string `yaml:"strip"`
}

// OpenStep reclassifies the open answers containing Match into a new answer.
type OpenStep struct {
	Match   string `yaml:"match"`
	Label   string `yaml:"label"`
	Replace string `yaml:"replace"`
}

// CombineStep merges the answers in From into one answer named Into.
type CombineStep struct {
	Into string   `yaml:"into"`
	From []string `yaml:"from"`
}

// Name identifies the step in errors and logs.
func (s QuestionStep) Name() string {
	if s.Column != "" {
		return fmt.Sprintf("%q", s.Column)
	}
	if s.Index != nil {
		return fmt.Sprintf("#%d", *s.Index)
	}
	if s.SummaryIndex != nil {
		return fmt.Sprintf("summary #%d", *s.SummaryIndex)
	}
	return "<unnamed>"
}

// Load reads and validates the recipe at path.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recipe: read %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	r.resolve(filepath.Dir(path))
	return r, nil
}

// Parse decodes and validates a recipe document. Unknown keys are errors.
// Paths are left as written.
func Parse(data []byte) (*Recipe, error) {
	r := &Recipe{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(r); err != nil {
		return nil, fmt.Errorf("recipe: parse: %w", err)
	}
	r.applyEnvOverrides()
	if errs := r.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("recipe: invalid: %s", strings.Join(errs, "; "))
	}
	return r, nil
}

// applyEnvOverrides applies environment variable overrides.
func (r *Recipe) applyEnvOverrides() {
	if path := os.Getenv(EnvStore); path != "" {
		r.Store = path
	}
}

func (r *Recipe) resolve(dir string) {
	for _, p := range []*string{&r.Data, &r.Summary, &r.OpenAnswers, &r.Store} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Validate returns field-level problems with r.
func (r *Recipe) Validate() []string {
	var errs []string
	if r.Year <= 0 {
		errs = append(errs, "year must be positive")
	}
	if r.Data == "" {
		errs = append(errs, "data is required")
	}
	if r.Comma != "" && utf8.RuneCountInString(r.Comma) != 1 {
		errs = append(errs, fmt.Sprintf("comma %q must be a single character", r.Comma))
	}
	if len(r.Questions) == 0 {
		errs = append(errs, "at least one question is required")
	}
	for i, s := range r.Questions {
		for _, e := range s.validate(r.Summary != "") {
			errs = append(errs, fmt.Sprintf("questions[%d] %s: %s", i, s.Name(), e))
		}
	}
	return errs
}

func (s QuestionStep) validate(haveSummary bool) []string {
	var errs []string
	switch s.Type {
	case TypeSingle, TypeMulti:
		if (s.Column == "") == (s.Index == nil) {
			errs = append(errs, "exactly one of column and index is required")
		}
		if s.SummaryIndex != nil || s.AsSimple {
			errs = append(errs, fmt.Sprintf("summary_index and as_simple require type %s", TypeSummary))
		}
	case TypeSummary:
		if s.SummaryIndex == nil {
			errs = append(errs, "summary_index is required")
		}
		if !haveSummary {
			errs = append(errs, "a summary file is required")
		}
		if s.Column != "" || s.Index != nil {
			errs = append(errs, "column and index are not allowed")
		}
		if len(s.Open) > 0 {
			errs = append(errs, "open is not allowed")
		}
	case "":
		errs = append(errs, "type is required")
	default:
		errs = append(errs, fmt.Sprintf("unknown type %q (want %s, %s or %s)", s.Type, TypeSingle, TypeMulti, TypeSummary))
	}
	if s.Type != TypeSingle && (s.UnknownAs != "" || s.KeepUnknown) {
		errs = append(errs, fmt.Sprintf("unknown_as and keep_unknown require type %s", TypeSingle))
	}
	if s.UnknownAs != "" && s.KeepUnknown {
		errs = append(errs, "unknown_as and keep_unknown are mutually exclusive")
	}
	if s.AnswerCount < 0 || (s.AnswerCount > 0 && s.Type != TypeMulti) {
		errs = append(errs, fmt.Sprintf("answer_count requires type %s and must not be negative", TypeMulti))
	}
	if s.Normalize != nil && len(s.Open) == 0 {
		errs = append(errs, "normalize has no effect without open")
	}
	for i, o := range s.Open {
		if o.Match == "" || o.Label == "" {
			errs = append(errs, fmt.Sprintf("open[%d]: match and label are required", i))
		}
	}
	for i, c := range s.Combine {
		if c.Into == "" || len(c.From) == 0 {
			errs = append(errs, fmt.Sprintf("combine[%d]: into and from are required", i))
		}
	}
	if s.Split != "" {
		if _, err := LookupSplitter(s.Split); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if s.MinCount < 0 {
		errs = append(errs, "min_count must not be negative")
	}
	return errs
}
