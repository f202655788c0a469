package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"skillwizard/internal/dispatch"
	"skillwizard/internal/session"
	"skillwizard/internal/types"
	"skillwizard/internal/wizard"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Options{})
	require.NoError(t, err)
	return r
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func ptr(s string) *string { return &s }

func mcqQuestion(text string) types.TestQuestion {
	return types.TestQuestion{
		Question: text,
		Kind:     types.KindMultipleChoice,
		Options: []types.Option{
			types.ParseOption("A) Channels", 0),
			types.ParseOption("B) Mutexes", 1),
			types.ParseOption("C) Both", 2),
		},
	}
}

func TestQuestionsRenderOneBlockPerQuestion(t *testing.T) {
	r := newRenderer(t)
	questions := []types.TestQuestion{mcqQuestion("one"), mcqQuestion("two"), mcqQuestion("three")}

	var buf bytes.Buffer
	require.NoError(t, r.Questions(&buf, questions, types.KindMultipleChoice))
	doc := parse(t, buf.String())

	cards := doc.Find(".question-card")
	require.Equal(t, 3, cards.Length())
	cards.Each(func(i int, card *goquery.Selection) {
		assert.Equal(t, dispatch.AnswerField(i), card.Find("input").First().AttrOr("name", ""))
		assert.Equal(t, 3, card.Find(`input[type="radio"]`).Length())
		assert.Equal(t, []string{"A", "B", "C"}, card.Find("input").Map(func(_ int, s *goquery.Selection) string {
			return s.AttrOr("value", "")
		}))
	})
	assert.Contains(t, doc.Find(".question-card").Eq(1).Text(), "two")
}

func TestCodingQuestionsRenderTextareaAndEscapedExample(t *testing.T) {
	r := newRenderer(t)
	questions := []types.TestQuestion{{
		Question:              "Reverse a string",
		CodeTemplate:          ptr("func reverse(s string) string {\n}"),
		ExpectedOutputExample: ptr("<b>olleh</b>"),
	}, {
		Question: "Sum a slice",
	}}

	var buf bytes.Buffer
	require.NoError(t, r.Questions(&buf, questions, types.KindCoding))
	doc := parse(t, buf.String())

	textareas := doc.Find("textarea")
	require.Equal(t, 2, textareas.Length())
	assert.Equal(t, "question-0", textareas.Eq(0).AttrOr("name", ""))
	assert.Contains(t, textareas.Eq(0).Text(), "func reverse(s string) string {")
	assert.Equal(t, "question-1", textareas.Eq(1).AttrOr("name", ""))

	pre := doc.Find(".example-output pre")
	require.Equal(t, 1, pre.Length())
	assert.Equal(t, "<b>olleh</b>", pre.Text())
	assert.Zero(t, pre.Find("b").Length())
	assert.Zero(t, doc.Find(`input[type="radio"]`).Length())
}

func TestResultsWithoutResourcesShowsFallbackOnly(t *testing.T) {
	r := newRenderer(t)
	results := &types.TestResults{
		OverallFeedback:          "Solid fundamentals.",
		GeneralLearningResources: []types.LearningResource{},
	}

	var buf bytes.Buffer
	require.NoError(t, r.Results(&buf, results))
	doc := parse(t, buf.String())

	assert.Zero(t, doc.Find("li").Length())
	assert.Equal(t, FallbackResources, strings.TrimSpace(doc.Find(".learning-resources .fallback").Text()))
	assert.Equal(t, FallbackPaths, strings.TrimSpace(doc.Find(".learning-paths .fallback").Text()))
	assert.Contains(t, doc.Find(".overall-feedback").Text(), "Solid fundamentals.")
}

func TestResultsRenderListsAndPaths(t *testing.T) {
	r := newRenderer(t)
	results := &types.TestResults{
		OverallFeedback:  "Good",
		Strengths:        []string{"Syntax"},
		Weaknesses:       []string{"Concurrency", "Generics"},
		DetailedFeedback: []string{"Q1 correct"},
		GeneralLearningResources: []types.LearningResource{
			{Title: "Tour of Go", Link: "https://go.dev/tour", Description: "Interactive"},
		},
		SpecificLearningPaths: []types.LearningPath{{
			Topic:     "Concurrency",
			Reason:    "Missed channel questions",
			Path:      "Read then practice",
			Resources: []types.LearningResource{{Title: "Go by Example", Link: "https://gobyexample.com"}},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, r.Results(&buf, results))
	doc := parse(t, buf.String())

	assert.Equal(t, 2, doc.Find(".weaknesses li").Length())
	assert.Equal(t, "https://go.dev/tour", doc.Find(".learning-resources a").AttrOr("href", ""))
	assert.Zero(t, doc.Find(".fallback").Length())

	card := doc.Find(".learning-path-card")
	require.Equal(t, 1, card.Length())
	assert.Equal(t, "Concurrency", card.Find("h4").Text())
	assert.Equal(t, "Go by Example", card.Find("li a").Text())
}

func TestJobsFallbackAndSanitizing(t *testing.T) {
	r := newRenderer(t)

	var empty bytes.Buffer
	require.NoError(t, r.Jobs(&empty, nil))
	doc := parse(t, empty.String())
	assert.Zero(t, doc.Find(".job-card").Length())
	assert.Equal(t, FallbackJobs, strings.TrimSpace(doc.Find(".fallback").Text()))

	jobs := []types.JobRecommendation{{
		Title:       "Go Engineer",
		Company:     "Acme",
		Location:    "Remote",
		Description: `<p>Build <strong>APIs</strong></p><script>alert("x")</script><a href="javascript:evil()">bad</a>`,
		ApplyLink:   "https://acme.example/apply",
	}}
	var buf bytes.Buffer
	require.NoError(t, r.Jobs(&buf, jobs))
	doc = parse(t, buf.String())

	card := doc.Find(".job-card")
	require.Equal(t, 1, card.Length())
	assert.Equal(t, "Go Engineer", card.Find(".job-title").Text())
	assert.Equal(t, "Acme", card.Find(".job-company").Text())
	assert.Equal(t, 1, card.Find(".job-description strong").Length())
	assert.Zero(t, doc.Find("script").Length())
	_, hasHref := card.Find(".job-description a").Attr("href")
	assert.False(t, hasHref)
	assert.Equal(t, "https://acme.example/apply", card.Find(".apply-link").AttrOr("href", ""))
}

func TestResumeFragment(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	require.NoError(t, r.Resume(&buf, &types.ResumeProfile{Name: "Ada", Email: "ada@example.com", Skills: []string{"Go", "SQL"}}))
	doc := parse(t, buf.String())

	assert.Equal(t, "Ada", doc.Find(".resume-name").Text())
	assert.Equal(t, 2, doc.Find(".skill").Length())
}

func pageFor(t *testing.T, r *Renderer, mutate func(s *session.Session), notice *session.Notice) *goquery.Document {
	t.Helper()
	s := session.New(session.Defaults{QuestionKind: types.KindCoding, QuestionCount: 4})
	if mutate != nil {
		mutate(s)
	}
	data := NewPageData(dispatch.View{Session: s, Notice: notice}, PageOptions{MaxQuestions: 20})

	var buf bytes.Buffer
	require.NoError(t, r.Page(&buf, data))
	return parse(t, buf.String())
}

func TestPageShowsExactlyOneSection(t *testing.T) {
	r := newRenderer(t)
	doc := pageFor(t, r, func(s *session.Session) {
		require.NoError(t, s.Router.Show(wizard.SectionTestTaking))
		s.Questions = []types.TestQuestion{mcqQuestion("one"), mcqQuestion("two")}
	}, nil)

	sections := doc.Find("section.section")
	require.Equal(t, len(wizard.Sections), sections.Length())

	visible := doc.Find("section.section:not([hidden])")
	require.Equal(t, 1, visible.Length())
	assert.Equal(t, string(wizard.SectionTestTaking), visible.AttrOr("id", ""))
	_, inert := visible.Attr("inert")
	assert.False(t, inert)

	assert.Equal(t, len(wizard.Sections)-1, doc.Find("section.section[hidden][inert]").Length())
	assert.Equal(t, 2, doc.Find("#test-form .question-card").Length())
}

func TestPageWizardState(t *testing.T) {
	r := newRenderer(t)
	doc := pageFor(t, r, func(s *session.Session) {
		s.Wizard.Values[wizard.FieldName] = "Ada"
		s.Wizard.Values[wizard.FieldEmail] = "abc"
		s.Wizard.Invalid = []string{wizard.FieldEmail}
	}, &session.Notice{Kind: session.NoticeError, Message: wizard.MsgInvalidEmail})

	assert.Equal(t, "0", doc.Find("#wizard-progress").AttrOr("value", ""))
	assert.Equal(t, 1, doc.Find(".step-dots .dot.active").Length())
	assert.Equal(t, 1, doc.Find("fieldset.form-step:not([hidden])").Length())
	assert.Equal(t, "Ada", doc.Find("input#name").AttrOr("value", ""))
	assert.True(t, doc.Find("input#email").HasClass("invalid"))
	assert.Equal(t, wizard.MsgInvalidEmail, doc.Find("#message-box.notice-error").Text())
	assert.Zero(t, doc.Find(`button[formaction="/wizard/back"]`).Length())
	assert.Equal(t, "coding", doc.Find(`input[name="question_kind"][checked]`).AttrOr("value", ""))
	assert.Equal(t, "4", doc.Find("#question_count").AttrOr("value", ""))

	overlay := doc.Find("#loading-overlay")
	_, hidden := overlay.Attr("hidden")
	assert.True(t, hidden)
}

func TestEnterOnMiddleStepSubmitsNext(t *testing.T) {
	r := newRenderer(t)
	doc := pageFor(t, r, func(s *session.Session) {
		s.Wizard.Current = 1
	}, nil)

	buttons := doc.Find(`#resume-form button[type="submit"]`)
	require.Equal(t, 2, buttons.Length())
	_, hasAction := buttons.First().Attr("formaction")
	assert.False(t, hasAction)
	assert.Equal(t, "Next", buttons.First().Text())
	assert.Equal(t, "/wizard/back", buttons.Last().AttrOr("formaction", ""))
}

func TestPageLastStepAndBusyOverlay(t *testing.T) {
	r := newRenderer(t)
	doc := pageFor(t, r, func(s *session.Session) {
		s.Wizard.Current = s.Wizard.Total() - 1
		s.Busy = dispatch.BusySubmitResume
	}, nil)

	assert.Equal(t, "100", doc.Find("#wizard-progress").AttrOr("value", ""))
	assert.Equal(t, 1, doc.Find(`button[formaction="/resume"]`).Length())
	assert.Equal(t, dispatch.BusySubmitResume, doc.Find(`button[formaction="/resume"]`).AttrOr("data-busy", ""))
	assert.Equal(t, dispatch.BusySubmitResume, doc.Find("#loading-message").Text())

	first := doc.Find(`#resume-form button[type="submit"]`).First()
	assert.Equal(t, "/resume", first.AttrOr("formaction", ""))
	_, hidden := doc.Find("#loading-overlay").Attr("hidden")
	assert.False(t, hidden)
}

func TestBackButtonsTargetPreviousSection(t *testing.T) {
	r := newRenderer(t)
	doc := pageFor(t, r, nil, nil)

	target := doc.Find("#" + string(wizard.SectionJobs) + ` form[action="/navigate"] input[name="target"]`)
	assert.Equal(t, string(wizard.SectionTestResults), target.AttrOr("value", ""))
}

func TestTemplateOverridesAndReload(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "jobs.html")
	require.NoError(t, os.WriteFile(override, []byte(`{{define "jobs"}}<p class="custom">v1</p>{{end}}`), 0600))

	r, err := New(Options{TemplatesDir: dir})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Jobs(&buf, nil))
	assert.Contains(t, buf.String(), "v1")

	require.NoError(t, os.WriteFile(override, []byte(`{{define "jobs"}}<p class="custom">v2</p>{{end}}`), 0600))
	require.NoError(t, r.Reload())
	buf.Reset()
	require.NoError(t, r.Jobs(&buf, nil))
	assert.Contains(t, buf.String(), "v2")

	require.NoError(t, os.WriteFile(override, []byte(`{{define "jobs"}}{{.Broken`), 0600))
	assert.Error(t, r.Reload())
	buf.Reset()
	require.NoError(t, r.Jobs(&buf, nil))
	assert.Contains(t, buf.String(), "v2")
}

func TestStylesheetOverride(t *testing.T) {
	r := newRenderer(t)
	assert.Contains(t, string(r.Stylesheet()), ".section.is-visible")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{}"), 0600))
	r, err := New(Options{TemplatesDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(r.Stylesheet()))
}

func TestTemplateWatcherTriggersReload(t *testing.T) {
	dir := t.TempDir()
	var reloads atomic.Int32
	w := NewTemplateWatcher(dir, 10*time.Millisecond, func() error {
		reloads.Add(1)
		return nil
	}, nil)

	require.NoError(t, w.Start())
	defer func() { assert.NoError(t, w.Stop()) }()
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte("x"), 0600))

	require.Eventually(t, func() bool { return reloads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
