package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"skillwizard/internal/config"
	"skillwizard/internal/dispatch"
	apperrors "skillwizard/internal/errors"
	"skillwizard/internal/render"
	"skillwizard/internal/session"
	"skillwizard/internal/types"
	"skillwizard/internal/wizard"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	healthy   bool
	questions []types.TestQuestion
}

func (b *stubBackend) SubmitResume(_ context.Context, p types.ResumeProfile) (types.ResumeProfile, error) {
	return p, nil
}

func (b *stubBackend) GenerateTest(_ context.Context, req types.GenerateTestRequest) ([]types.TestQuestion, error) {
	return b.questions, nil
}

func (b *stubBackend) EvaluateTest(context.Context, types.EvaluateTestRequest) (types.TestResults, error) {
	return types.TestResults{OverallFeedback: "Good"}, nil
}

func (b *stubBackend) RecommendJobs(context.Context, types.ResumeProfile) ([]types.JobRecommendation, error) {
	return nil, nil
}

func (b *stubBackend) Stats() map[string]any {
	return map[string]any{"generate_test": map[string]any{"state": "closed"}}
}

func (b *stubBackend) Healthy() bool { return b.healthy }

type testServer struct {
	*Server
	backend *stubBackend
	store   *session.MemoryStore
	handler http.Handler
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.Session.Store = "memory"
	cfg.Session.TTL = time.Hour
	cfg.UI.MaxQuestions = 20
	cfg.UI.NoticeDuration = time.Second
	cfg.App.MaxRequestSize = 1 << 20
	if mutate != nil {
		mutate(cfg)
	}

	logger := apperrors.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
	store := session.NewMemoryStore(time.Hour, 0, logger)
	backend := &stubBackend{healthy: true}
	renderer, err := render.New(render.Options{Logger: logger})
	require.NoError(t, err)

	wiz := dispatch.New(backend, store, logger, dispatch.Options{
		Defaults:     session.Defaults{QuestionKind: types.KindMultipleChoice, QuestionCount: 5},
		MaxQuestions: cfg.UI.MaxQuestions,
	})

	srv := NewServer(cfg, NewServerConfig(cfg, "test"), Dependencies{
		Wizard:   wiz,
		Renderer: renderer,
		Backend:  backend,
		Store:    store,
	}, logger)
	t.Cleanup(func() {
		srv.cleanupRateLimiter()
		_ = store.Close()
	})

	return &testServer{Server: srv, backend: backend, store: store, handler: srv.handler()}
}

func (ts *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (ts *testServer) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func document(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

func sessionID(t *testing.T, doc *goquery.Document) string {
	t.Helper()
	id := doc.Find(`#resume-form input[name="session_id"]`).AttrOr("value", "")
	require.NotEmpty(t, id)
	return id
}

func visibleSection(doc *goquery.Document) string {
	return doc.Find("section.section:not([hidden])").AttrOr("id", "")
}

func profileForm(id string) url.Values {
	return url.Values{
		fieldSessionID:              {id},
		wizard.FieldName:            {"Ada Lovelace"},
		wizard.FieldEmail:           {"ada@example.com"},
		wizard.FieldExperienceYears: {"4"},
		wizard.FieldExperience:      {"Analytical engines"},
		wizard.FieldEducation:       {"Mathematics"},
		wizard.FieldSkills:          {"Go, SQL"},
	}
}

func TestIndexStartsSession(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	doc := document(t, rec)
	id := sessionID(t, doc)
	assert.Equal(t, string(wizard.SectionResumeInput), visibleSection(doc))
	assert.Equal(t, 1, ts.store.Len())

	_, err := ts.store.Get(context.Background(), id)
	assert.NoError(t, err)

	second := document(t, ts.get(t, "/"))
	assert.NotEqual(t, id, sessionID(t, second))
}

func TestUnknownPathIsNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, ts.get(t, "/nope").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, ts.get(t, "/resume").Code)
}

func TestWizardStepsAndSubmit(t *testing.T) {
	ts := newTestServer(t, nil)
	id := sessionID(t, document(t, ts.get(t, "/")))

	rec := ts.post(t, "/wizard/next", url.Values{fieldSessionID: {id}, wizard.FieldName: {"Ada"}, wizard.FieldEmail: {"nope"}})
	require.Equal(t, http.StatusOK, rec.Code)
	doc := document(t, rec)
	assert.Equal(t, wizard.MsgInvalidEmail, doc.Find("#message-box").Text())
	assert.Equal(t, "0", doc.Find("fieldset.form-step:not([hidden])").AttrOr("data-step", ""))

	rec = ts.post(t, "/wizard/next", url.Values{fieldSessionID: {id}, wizard.FieldName: {"Ada"}, wizard.FieldEmail: {"ada@example.com"}})
	doc = document(t, rec)
	assert.Equal(t, "1", doc.Find("fieldset.form-step:not([hidden])").AttrOr("data-step", ""))
	assert.Zero(t, doc.Find("#message-box").Length())

	rec = ts.post(t, "/resume", profileForm(id))
	require.Equal(t, http.StatusOK, rec.Code)
	doc = document(t, rec)
	assert.Equal(t, string(wizard.SectionParsedResume), visibleSection(doc))
	assert.Equal(t, "Ada Lovelace", doc.Find(".resume-name").Text())
	assert.Equal(t, dispatch.SuccessSubmitResume, doc.Find("#message-box.notice-success").Text())
}

func TestGenerateTestRendersQuestions(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.backend.questions = []types.TestQuestion{
		{Question: "q1", Options: []types.Option{{Label: "A", Text: "A) yes"}}},
		{Question: "q2", Options: []types.Option{{Label: "A", Text: "A) yes"}}},
		{Question: "q3", Options: []types.Option{{Label: "A", Text: "A) yes"}}},
	}
	id := sessionID(t, document(t, ts.get(t, "/")))
	ts.post(t, "/resume", profileForm(id))

	doc := document(t, ts.post(t, "/test/setup", url.Values{fieldSessionID: {id}}))
	assert.Equal(t, string(wizard.SectionTestGeneration), visibleSection(doc))

	doc = document(t, ts.post(t, "/test/generate", url.Values{
		fieldSessionID:             {id},
		dispatch.FormQuestionCount: {"3"},
		dispatch.FormQuestionKind:  {"mcq"},
	}))
	assert.Equal(t, string(wizard.SectionTestTaking), visibleSection(doc))
	cards := doc.Find("#test-form .question-card")
	require.Equal(t, 3, cards.Length())
	assert.Equal(t, "question-2", cards.Eq(2).Find("input").AttrOr("name", ""))

	doc = document(t, ts.post(t, "/navigate", url.Values{fieldSessionID: {id}, fieldTarget: {string(wizard.SectionTestGeneration)}}))
	assert.Equal(t, string(wizard.SectionTestGeneration), visibleSection(doc))
}

func TestExpiredSessionStartsOver(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, form := range []url.Values{
		{fieldSessionID: {"missing"}},
		{},
	} {
		rec := ts.post(t, "/jobs", form)
		require.Equal(t, http.StatusOK, rec.Code)
		doc := document(t, rec)
		assert.Equal(t, dispatch.MsgSessionExpired, doc.Find("#message-box.notice-info").Text())
		assert.NotEqual(t, "missing", sessionID(t, doc))
		assert.Equal(t, string(wizard.SectionResumeInput), visibleSection(doc))
	}
}

func TestNavigateRejectsUnknownSection(t *testing.T) {
	ts := newTestServer(t, nil)
	id := sessionID(t, document(t, ts.get(t, "/")))

	rec := ts.post(t, "/navigate", url.Values{fieldSessionID: {id}, fieldTarget: {"nowhere"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRestartReplacesSession(t *testing.T) {
	ts := newTestServer(t, nil)
	id := sessionID(t, document(t, ts.get(t, "/")))

	doc := document(t, ts.post(t, "/restart", url.Values{fieldSessionID: {id}}))
	assert.NotEqual(t, id, sessionID(t, doc))

	_, err := ts.store.Get(context.Background(), id)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSessionStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	id := sessionID(t, document(t, ts.get(t, "/")))

	rec := ts.get(t, "/session/"+id+"/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status dispatch.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, wizard.SectionResumeInput, status.Section)
	assert.Empty(t, status.Busy)

	rec = ts.get(t, "/session/unknown/status")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, dispatch.MsgSessionExpired, errResp.Message)
}

func TestStylesheet(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.get(t, "/static/app.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), ".section.is-visible")
}

func TestHealthReflectsBackend(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "circuit_breakers")

	ts.backend.healthy = false
	rec = ts.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestStatsReportsSessions(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.get(t, "/")
	ts.get(t, "/")

	rec := ts.get(t, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Sessions struct {
			Store  string `json:"store"`
			Active int    `json:"active"`
		} `json:"sessions"`
		RateLimiting map[string]any `json:"rate_limiting"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "memory", body.Sessions.Store)
	assert.Equal(t, 2, body.Sessions.Active)
	assert.Equal(t, false, body.RateLimiting["enabled"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRequestSizeLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.App.MaxRequestSize = 64
	})

	rec := ts.post(t, "/wizard/next", url.Values{fieldSessionID: {"x"}, wizard.FieldExperience: {strings.Repeat("a", 256)}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
