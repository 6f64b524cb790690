package reconcile

import (
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/surveyrecon/internal/dataset"
	"github.com/dshills/surveyrecon/internal/survey"
)

const (
	editors = "Which editors do you use?"
	systems = "Which OS do you use?"
)

func loadFixture(t *testing.T) *FullAnswers {
	t.Helper()
	table, err := dataset.Loader{}.ParseFile("../../testdata/survey-2024.csv")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	f, err := os.Open("../../testdata/summary-2024.json")
	if err != nil {
		t.Fatalf("open summary: %v", err)
	}
	defer f.Close()
	summary, err := survey.ReadReport(f)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	fa, err := New(Input{Year: 2024, Table: table, Summary: &summary}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fa
}

func answers(t *testing.T, q survey.Question) []survey.Answer {
	t.Helper()
	s, err := q.Simple()
	if err != nil {
		t.Fatalf("Simple: %v", err)
	}
	return s.Answers
}

// withSummary builds a FullAnswers over table whose summary holds refs.
func withSummary(t *testing.T, table *dataset.Table, refs ...survey.Question) *FullAnswers {
	t.Helper()
	fa, err := New(Input{Year: 2024, Table: table, Summary: &survey.Report{Year: 2024, Questions: refs}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fa
}

func ref(text string, total int, labels ...string) survey.Question {
	as := make([]survey.Answer, len(labels))
	for i, l := range labels {
		as[i] = survey.Answer{Answer: l, Count: 1}
	}
	return survey.Question{Text: text, Year: 2024, TotalResponses: total, Kind: survey.SimpleQuestion{Answers: as}}
}

func TestNew(t *testing.T) {
	fa := loadFixture(t)
	if fa.Year() != 2024 {
		t.Errorf("Year = %d, want 2024", fa.Year())
	}
	if fa.TotalRespondents() != 10 {
		t.Errorf("TotalRespondents = %d, want 10", fa.TotalRespondents())
	}
	if qs := fa.Questions(); len(qs) != 12 || qs[1] != "Color" {
		t.Errorf("Questions = %q", qs)
	}
	if s, ok := fa.Summary(); !ok || len(s.Questions) != 4 {
		t.Errorf("Summary = %v, %v", s, ok)
	}

	table, _ := dataset.New([]string{"Q"}, nil)
	if _, err := New(Input{Table: table, Summary: &survey.Report{Questions: []survey.Question{ref("Q", 1, "A"), ref("Q", 1, "B")}}}, nil); !errors.Is(err, survey.ErrDuplicateQuestion) {
		t.Errorf("New with duplicate summary text error = %v, want ErrDuplicateQuestion", err)
	}
	if _, err := New(Input{}, nil); err == nil {
		t.Error("New accepted a nil table")
	}

	open := map[int][]string{3: {"a", "b"}}
	fa, err := New(Input{Table: table, OpenAnswers: open}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	open[3][0] = "changed"
	if diff := cmp.Diff([]string{"a", "b"}, fa.OpenResponses(3)); diff != "" {
		t.Errorf("OpenResponses mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3}, fa.OpenResponseIndexes()); diff != "" {
		t.Errorf("OpenResponseIndexes mismatch (-want +got):\n%s", diff)
	}
}

func TestQSimpleSingle_EndToEnd(t *testing.T) {
	fa := loadFixture(t)
	q, err := fa.QSimpleSingle(ByName("Color"), SingleOptions{})
	if err != nil {
		t.Fatalf("QSimpleSingle: %v", err)
	}
	want := []survey.Answer{{Answer: "Red", Count: 5}, {Answer: "Blue", Count: 3}, {Answer: "Other", Count: 1}}
	if diff := cmp.Diff(want, answers(t, q)); diff != "" {
		t.Errorf("answers mismatch (-want +got):\n%s", diff)
	}
	if q.TotalResponses != 9 {
		t.Errorf("TotalResponses = %d, want 9", q.TotalResponses)
	}
	if q.ID != 1 || q.Year != 2024 || q.Text != "Color" {
		t.Errorf("question header = (%d, %d, %q)", q.ID, q.Year, q.Text)
	}
	if single, _ := q.IsSingleAnswer(); !single {
		t.Error("extracted Color is not single-answer")
	}

	byIndex, err := fa.QSimpleSingle(ByIndex(1), SingleOptions{})
	if err != nil {
		t.Fatalf("QSimpleSingle(ByIndex): %v", err)
	}
	if diff := cmp.Diff(q, byIndex); diff != "" {
		t.Errorf("ByIndex and ByName disagree (-name +index):\n%s", diff)
	}
}

func TestSummary_ReturnsCopy(t *testing.T) {
	fa := loadFixture(t)
	rep, ok := fa.Summary()
	if !ok {
		t.Fatal("Summary reported no summary")
	}
	rep.Questions[0].Text = "Colour"
	rep.Questions[0].Kind = survey.SimpleQuestion{}
	again, _ := fa.Summary()
	if again.Questions[0].Text != "Color" {
		t.Errorf("Summary().Questions[0].Text = %q after editing an earlier copy", again.Questions[0].Text)
	}

	q, err := fa.QSimpleSingle(ByName("Color"), SingleOptions{})
	if err != nil {
		t.Fatalf("QSimpleSingle: %v", err)
	}
	want := []survey.Answer{{Answer: "Red", Count: 5}, {Answer: "Blue", Count: 3}, {Answer: "Other", Count: 1}}
	if diff := cmp.Diff(want, answers(t, q)); diff != "" {
		t.Errorf("answers mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_CopiesSummary(t *testing.T) {
	table := emptyTable(t)
	summary := &survey.Report{Year: 2024, Questions: []survey.Question{ref("Q", 1, "A")}}
	fa, err := New(Input{Year: 2024, Table: table, Summary: summary}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	summary.Questions[0].Kind.(survey.SimpleQuestion).Answers[0].Answer = "Z"
	got, _ := fa.Summary()
	if diff := cmp.Diff([]survey.Answer{{Answer: "A", Count: 1}}, answers(t, got.Questions[0])); diff != "" {
		t.Errorf("editing the input changed the summary (-want +got):\n%s", diff)
	}
}

func TestQSimpleSingle_Options(t *testing.T) {
	fa := loadFixture(t)

	kept, err := fa.QSimpleSingle(ByName("Color"), SingleOptions{KeepUnknown: true})
	if err != nil {
		t.Fatalf("KeepUnknown: %v", err)
	}
	want := []survey.Answer{{Answer: "Red", Count: 5}, {Answer: "Blue", Count: 3}, {Answer: "Teal", Count: 1}}
	if diff := cmp.Diff(want, answers(t, kept)); diff != "" {
		t.Errorf("KeepUnknown answers mismatch (-want +got):\n%s", diff)
	}

	misc, err := fa.QSimpleSingle(ByName("Color"), SingleOptions{UnknownAs: "Misc"})
	if err != nil {
		t.Fatalf("UnknownAs: %v", err)
	}
	want = []survey.Answer{{Answer: "Red", Count: 5}, {Answer: "Blue", Count: 3}, {Answer: "Misc", Count: 1}}
	if diff := cmp.Diff(want, answers(t, misc)); diff != "" {
		t.Errorf("UnknownAs answers mismatch (-want +got):\n%s", diff)
	}
}

func TestQSimpleSingle_NoReference(t *testing.T) {
	fa := loadFixture(t)
	q, err := fa.QSimpleSingle(ByName("Years"), SingleOptions{})
	if err != nil {
		t.Fatalf("QSimpleSingle: %v", err)
	}
	if q.TotalResponses != 8 {
		t.Errorf("TotalResponses = %d, want 8", q.TotalResponses)
	}
	q, err = q.IntegerAnswers()
	if err != nil {
		t.Fatalf("IntegerAnswers: %v", err)
	}
	want := []survey.Answer{{Answer: "1", Count: 2}, {Answer: "2", Count: 3}, {Answer: "5", Count: 1}, {Answer: "3", Count: 2}}
	if diff := cmp.Diff(want, answers(t, q)); diff != "" {
		t.Errorf("answers mismatch (-want +got):\n%s", diff)
	}
}

func TestQSimpleSingle_Errors(t *testing.T) {
	fa := loadFixture(t)
	cases := map[string]ColumnRef{
		"unknown name":     ByName("Favourite color"),
		"index past end":   ByIndex(12),
		"negative index":   ByIndex(-1),
		"multi reference":  ByName(editors),
		"multi reference2": ByIndex(7),
	}
	for name, r := range cases {
		if _, err := fa.QSimpleSingle(r, SingleOptions{}); !errors.Is(err, survey.ErrSchemaMismatch) {
			t.Errorf("%s: error = %v, want ErrSchemaMismatch", name, err)
		}
	}
}

func TestQSimpleMulti(t *testing.T) {
	fa := loadFixture(t)
	cases := []struct {
		ref   ColumnRef
		opts  MultiOptions
		want  []survey.Answer
		total int
	}{
		{ByName(editors), MultiOptions{}, []survey.Answer{{Answer: "Vim", Count: 5}, {Answer: "Emacs", Count: 3}, {Answer: "Other", Count: 3}}, 8},
		{ByName(systems), MultiOptions{}, []survey.Answer{{Answer: "Linux", Count: 5}, {Answer: "macOS", Count: 3}, {Answer: "Other", Count: 2}}, 8},
		{ByIndex(7), MultiOptions{AnswerCount: 2}, []survey.Answer{{Answer: "Linux", Count: 5}, {Answer: "macOS", Count: 3}}, 7},
		{ByIndex(2), MultiOptions{AnswerCount: 1}, []survey.Answer{{Answer: "Vim", Count: 5}}, 5},
	}
	for _, c := range cases {
		q, err := fa.QSimpleMulti(c.ref, c.opts)
		if err != nil {
			t.Errorf("QSimpleMulti(%s): %v", c.ref, err)
			continue
		}
		if diff := cmp.Diff(c.want, answers(t, q)); diff != "" {
			t.Errorf("QSimpleMulti(%s) answers mismatch (-want +got):\n%s", c.ref, diff)
		}
		if q.TotalResponses != c.total {
			t.Errorf("QSimpleMulti(%s).TotalResponses = %d, want %d", c.ref, q.TotalResponses, c.total)
		}
	}
}

func TestQSimpleMulti_Errors(t *testing.T) {
	fa := loadFixture(t)
	cases := map[string]struct {
		ref  ColumnRef
		opts MultiOptions
	}{
		"no count and no reference": {ByName("Years"), MultiOptions{}},
		"runs into next question":   {ByName("Color"), MultiOptions{AnswerCount: 1}},
		"past table end":            {ByName("Comments"), MultiOptions{AnswerCount: 1}},
		"unknown column":            {ByName("Nope"), MultiOptions{AnswerCount: 1}},
	}
	table, _ := dataset.New([]string{"Q", "A"}, [][]dataset.Cell{{dataset.Value("x"), dataset.Value("1")}})
	single := withSummary(t, table, ref("Q", 1, "A"))
	if _, err := single.QSimpleMulti(ByName("Q"), MultiOptions{}); !errors.Is(err, survey.ErrSchemaMismatch) {
		t.Errorf("single reference: error = %v, want ErrSchemaMismatch", err)
	}

	for name, c := range cases {
		if _, err := fa.QSimpleMulti(c.ref, c.opts); !errors.Is(err, survey.ErrSchemaMismatch) {
			t.Errorf("%s: error = %v, want ErrSchemaMismatch", name, err)
		}
	}
}

func TestOpenAnswers(t *testing.T) {
	fa := loadFixture(t)
	cases := []struct {
		ref  ColumnRef
		want []string
	}{
		{ByName("Color"), []string{"Teal"}},
		{ByName(editors), []string{"helix", "helix editor", "zed"}},
		{ByName(systems), []string{"haiku", "redox"}},
	}
	for _, c := range cases {
		got, err := fa.OpenAnswers(c.ref)
		if err != nil {
			t.Errorf("OpenAnswers(%s): %v", c.ref, err)
			continue
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("OpenAnswers(%s) mismatch (-want +got):\n%s", c.ref, diff)
		}
	}

	if _, err := fa.OpenAnswers(ByName("Comments")); !errors.Is(err, survey.ErrSchemaMismatch) {
		t.Errorf("OpenAnswers without reference error = %v, want ErrSchemaMismatch", err)
	}
}

func TestOpenAnswers_OtherColumn(t *testing.T) {
	row := []dataset.Cell{dataset.Missing(), dataset.Value("1"), dataset.Value("x"), dataset.Value("y")}

	table, _ := dataset.New([]string{"Q?", "A", "Other", "Other.1"}, [][]dataset.Cell{row})
	fa := withSummary(t, table, ref("Q?", 1, "A", "B", "Other"))
	if _, err := fa.OpenAnswers(ByName("Q?")); !errors.Is(err, survey.ErrAmbiguous) {
		t.Errorf("two Other columns: error = %v, want ErrAmbiguous", err)
	}

	table, _ = dataset.New([]string{"Q?", "A", "B", "C"}, [][]dataset.Cell{row})
	fa = withSummary(t, table, ref("Q?", 1, "A", "B", "C"))
	if _, err := fa.OpenAnswers(ByName("Q?")); !errors.Is(err, survey.ErrSchemaMismatch) {
		t.Errorf("no Other column: error = %v, want ErrSchemaMismatch", err)
	}
}

func TestOpenAnswersRaw(t *testing.T) {
	fa := loadFixture(t)
	got, err := fa.OpenAnswersRaw(ByName("Comments"), true)
	if err != nil {
		t.Fatalf("OpenAnswersRaw: %v", err)
	}
	if diff := cmp.Diff([]string{"great", "meh"}, got); diff != "" {
		t.Errorf("dropMissing mismatch (-want +got):\n%s", diff)
	}
	got, err = fa.OpenAnswersRaw(ByName("Comments"), false)
	if err != nil {
		t.Fatalf("OpenAnswersRaw: %v", err)
	}
	if len(got) != 10 || got[0] != "great" || got[1] != "" {
		t.Errorf("OpenAnswersRaw(false) = %q", got)
	}
	if _, err := fa.OpenAnswersRaw(ByIndex(40), true); !errors.Is(err, survey.ErrSchemaMismatch) {
		t.Errorf("OpenAnswersRaw(#40) error = %v, want ErrSchemaMismatch", err)
	}
}

func TestColumnRef_String(t *testing.T) {
	if got := ByIndex(3).String(); got != "#3" {
		t.Errorf("ByIndex(3) = %q", got)
	}
	if got := ByName("Color").String(); got != `"Color"` {
		t.Errorf("ByName(Color) = %q", got)
	}
}

func TestNew_LogsYearMismatch(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	table, _ := dataset.New([]string{"Q"}, nil)
	if _, err := New(Input{Year: 2024, Table: table, Summary: &survey.Report{Year: 2023}}, zap.New(core)); err != nil {
		t.Fatalf("New: %v", err)
	}
	if n := logs.FilterMessage("summary year differs from export year").Len(); n != 1 {
		t.Errorf("year mismatch logged %d times, want 1", n)
	}
}
