package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"skillwizard/internal/dispatch"
	"skillwizard/internal/errors"
	"skillwizard/internal/session"
	"skillwizard/internal/types"
	"skillwizard/internal/wizard"

	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/app.css
var defaultStylesheet []byte

// Fallback texts shown when a result list is empty
const (
	FallbackResources = "No general learning resources provided."
	FallbackPaths     = "No specific learning paths recommended at this time."
	FallbackJobs      = "No job recommendations found based on your profile and the current search criteria. Try updating your skills or experience."
)

var fallbacks = map[string]string{
	"resources": FallbackResources,
	"paths":     FallbackPaths,
	"jobs":      FallbackJobs,
}

var busyLabels = map[dispatch.Action]string{
	dispatch.ActionSubmitResume:  dispatch.BusySubmitResume,
	dispatch.ActionGenerateTest:  dispatch.BusyGenerateTest,
	dispatch.ActionEvaluateTest:  dispatch.BusyEvaluateTest,
	dispatch.ActionRetryTest:     dispatch.BusyRetryTest,
	dispatch.ActionRecommendJobs: dispatch.BusyRecommendJobs,
}

// Options configures a Renderer
type Options struct {
	// TemplatesDir optionally holds *.html files and app.css overriding the embedded ones
	TemplatesDir string
	Logger       *errors.Logger
}

// Renderer paints the wizard page and its sections. Templates can be
// reloaded at runtime; rendering always uses the last set that parsed.
type Renderer struct {
	mu     sync.RWMutex
	tmpl   *template.Template
	css    []byte
	dir    string
	policy *bluemonday.Policy
	logger *errors.Logger
}

// New parses the templates and returns a ready renderer
func New(opts Options) (*Renderer, error) {
	policy := bluemonday.UGCPolicy()
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	r := &Renderer{
		dir:    opts.TemplatesDir,
		policy: policy,
		logger: opts.Logger,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-parses the templates. On failure the previous set stays active.
func (r *Renderer) Reload() error {
	tmpl, err := template.New("skillwizard").Funcs(r.funcs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("parse embedded templates: %w", err)
	}

	css := defaultStylesheet
	if r.dir != "" {
		overrides, err := filepath.Glob(filepath.Join(r.dir, "*.html"))
		if err != nil {
			return fmt.Errorf("list template overrides: %w", err)
		}
		if len(overrides) > 0 {
			if tmpl, err = tmpl.ParseFiles(overrides...); err != nil {
				return fmt.Errorf("parse template overrides: %w", err)
			}
		}
		if data, err := os.ReadFile(filepath.Join(r.dir, "app.css")); err == nil {
			css = data
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("read stylesheet override: %w", err)
		}
	}

	r.mu.Lock()
	r.tmpl = tmpl
	r.css = css
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Debug("Templates loaded", "override_dir", r.dir)
	}
	return nil
}

// Stylesheet returns the current stylesheet
func (r *Renderer) Stylesheet() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.css
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"sanitize": r.sanitize,
		"fallback": func(name string) string { return fallbacks[name] },
		"busy":     func(action string) string { return busyLabels[dispatch.Action(action)] },
		"backTo":   backTo,
	}
}

// sanitize keeps the markup of a rich job description that is safe to show
func (r *Renderer) sanitize(html string) template.HTML {
	return template.HTML(r.policy.Sanitize(html)) // #nosec G203 -- sanitized by bluemonday
}

// BackLink feeds the back button of a section
type BackLink struct {
	SessionID string
	Target    wizard.SectionID
}

func backTo(sessionID, from string) BackLink {
	target, ok := wizard.BackTarget(wizard.SectionID(from))
	if !ok {
		target = wizard.SectionResumeInput
	}
	return BackLink{SessionID: sessionID, Target: target}
}

// execute renders a named template into a buffer first so that a failing
// template never leaves a half written response
func (r *Renderer) execute(w io.Writer, name string, data any) error {
	r.mu.RLock()
	tmpl := r.tmpl
	r.mu.RUnlock()

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// QuestionView is one question prepared for display
type QuestionView struct {
	Index        int
	Number       int
	Field        string
	Question     string
	Kind         types.QuestionKind
	Coding       bool
	Options      []types.Option
	CodeTemplate string
	Example      string
}

// QuestionViews prepares questions for display. Questions without their own
// kind take the kind of the test.
func QuestionViews(questions []types.TestQuestion, kind types.QuestionKind) []QuestionView {
	views := make([]QuestionView, 0, len(questions))
	for i, q := range questions {
		k := q.Kind
		if k == "" {
			k = kind
		}
		v := QuestionView{
			Index:    i,
			Number:   i + 1,
			Field:    dispatch.AnswerField(i),
			Question: q.Question,
			Kind:     k,
			Coding:   k == types.KindCoding,
			Options:  q.Options,
		}
		if q.CodeTemplate != nil {
			v.CodeTemplate = *q.CodeTemplate
		}
		if q.ExpectedOutputExample != nil {
			v.Example = *q.ExpectedOutputExample
		}
		views = append(views, v)
	}
	return views
}

// Resume renders the parsed profile
func (r *Renderer) Resume(w io.Writer, profile *types.ResumeProfile) error {
	return r.execute(w, "resume", profile)
}

// Questions renders one block per question, with inputs named by index
func (r *Renderer) Questions(w io.Writer, questions []types.TestQuestion, kind types.QuestionKind) error {
	return r.execute(w, "questions", QuestionViews(questions, kind))
}

// Results renders an evaluation
func (r *Renderer) Results(w io.Writer, results *types.TestResults) error {
	return r.execute(w, "results", results)
}

// Jobs renders job cards, or the fallback text when there are none
func (r *Renderer) Jobs(w io.Writer, jobs []types.JobRecommendation) error {
	return r.execute(w, "jobs", jobs)
}

// PageData is everything the full page template reads
type PageData struct {
	SessionID     string
	Wizard        *wizard.Tracker
	Steps         []wizard.Step
	Sections      map[string]wizard.SectionView
	Resume        *types.ResumeProfile
	Questions     []QuestionView
	QuestionKind  string
	QuestionCount int
	MaxQuestions  int
	Results       *types.TestResults
	Jobs          []types.JobRecommendation
	JobsLoaded    bool
	Notice        *session.Notice
	Busy          string
	NoticeMillis  int64
}

// PageOptions carries presentation settings that do not live in the session
type PageOptions struct {
	MaxQuestions   int
	NoticeDuration time.Duration
}

// NewPageData builds the page model from a session view
func NewPageData(view dispatch.View, opts PageOptions) PageData {
	s := view.Session
	sections := make(map[string]wizard.SectionView, len(wizard.Sections))
	for _, v := range s.Router.Views() {
		sections[string(v.ID)] = v
	}

	noticeMillis := opts.NoticeDuration.Milliseconds()
	if noticeMillis <= 0 {
		noticeMillis = 5000
	}

	return PageData{
		SessionID:     s.ID,
		Wizard:        s.Wizard,
		Steps:         wizard.Steps,
		Sections:      sections,
		Resume:        s.Resume,
		Questions:     QuestionViews(s.Questions, s.QuestionKind),
		QuestionKind:  string(s.QuestionKind),
		QuestionCount: s.QuestionCount,
		MaxQuestions:  opts.MaxQuestions,
		Results:       s.Results,
		Jobs:          s.Jobs,
		JobsLoaded:    s.JobsLoaded,
		Notice:        view.Notice,
		Busy:          s.Busy,
		NoticeMillis:  noticeMillis,
	}
}

// Page renders the whole wizard document
func (r *Renderer) Page(w io.Writer, data PageData) error {
	return r.execute(w, "page", data)
}
