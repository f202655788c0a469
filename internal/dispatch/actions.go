package dispatch

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"skillwizard/internal/session"
	"skillwizard/internal/types"
	"skillwizard/internal/wizard"
)

// Action identifies a user triggered operation
type Action string

const (
	ActionSubmitResume  Action = "submit_resume"
	ActionOpenTestSetup Action = "open_test_setup"
	ActionGenerateTest  Action = "generate_test"
	ActionEvaluateTest  Action = "evaluate_test"
	ActionRetryTest     Action = "retry_test"
	ActionRecommendJobs Action = "recommend_jobs"
)

// Form field names read by the test actions
const (
	FormQuestionCount = "question_count"
	FormQuestionKind  = "question_kind"
)

// User facing texts of the remote actions
const (
	MsgNeedResumeForTest   = "Please enter your resume details first to extract skills."
	MsgNoSkillsForTest     = "No skills found in your details to generate a test. Please go back and add some skills."
	MsgInvalidCount        = "Please enter a valid number of questions."
	MsgInvalidKind         = "Please select a question type."
	MsgNoQuestions         = "No test questions to submit."
	MsgNoWeaknesses        = "No specific weaknesses identified for a retry test, or please take the initial test first."
	MsgNeedResumeForJobs   = "Please enter your resume details first to get job recommendations."
	BusySubmitResume       = "Submitting your details..."
	BusyGenerateTest       = "Generating your test..."
	BusyEvaluateTest       = "Submitting your answers and evaluating test..."
	BusyRetryTest          = "Generating a new test focusing on your weaknesses..."
	BusyRecommendJobs      = "Finding job recommendations..."
	SuccessSubmitResume    = "Details submitted successfully!"
	SuccessGenerateTest    = "Test generated successfully!"
	SuccessEvaluateTest    = "Test evaluated successfully!"
	SuccessRetryTest       = "Retry test generated successfully!"
	SuccessRecommendJobs   = "Job recommendations loaded!"
	FallbackSubmitResume   = "Failed to submit resume details."
	FallbackGenerateTest   = "Failed to generate test."
	FallbackEvaluateTest   = "Failed to evaluate test."
	FallbackRetryTest      = "Failed to generate retry test."
	FallbackRecommendJobs  = "Failed to fetch job recommendations."
	PrefixRemoteFailure    = "Error: "
	PrefixRetryTestFailure = "Error generating retry test: "
)

// SubmitResumeDetails validates every intake step and sends the profile to the
// backend. A failing step is brought back into view with its fields marked.
func (d *Dispatcher) SubmitResumeDetails(ctx context.Context, id string, form url.Values) error {
	values := formValues(form, wizard.FieldNames())
	return d.dispatch(ctx, id, ActionSubmitResume, func(s *session.Session) *remoteCall {
		s.Wizard.Merge(values)
		if verr := s.Wizard.ValidateAll(); verr != nil {
			s.Wizard.Show(verr.Step, verr.Fields)
			s.Router.Show(wizard.SectionResumeInput)
			s.Notify(session.NoticeError, verr.Message)
			d.metrics.RecordValidationFailure(ctx, verr.Step)
			return nil
		}
		s.Wizard.Invalid = nil

		profile := s.Wizard.Profile()
		return &remoteCall{
			slot:      session.SlotResume,
			busy:      BusySubmitResume,
			success:   SuccessSubmitResume,
			fallback:  FallbackSubmitResume,
			errPrefix: PrefixRemoteFailure,
			do: func(ctx context.Context) (func(*session.Session), error) {
				parsed, err := d.backend.SubmitResume(ctx, profile)
				if err != nil {
					return nil, err
				}
				return func(s *session.Session) {
					s.Resume = &parsed
					s.Router.Show(wizard.SectionParsedResume)
				}, nil
			},
		}
	})
}

// OpenTestSetup moves from the parsed profile to the test setup form
func (d *Dispatcher) OpenTestSetup(ctx context.Context, id string) error {
	_, err := d.update(ctx, id, func(s *session.Session) error {
		if !s.Resume.HasSkills() {
			s.Notify(session.NoticeError, MsgNeedResumeForTest)
			d.metrics.RecordAction(ctx, string(ActionOpenTestSetup), OutcomePrecondition, 0)
			return nil
		}
		return s.Router.Show(wizard.SectionTestGeneration)
	})
	return err
}

// GenerateTest requests a new set of questions for the profile's skills
func (d *Dispatcher) GenerateTest(ctx context.Context, id string, form url.Values) error {
	return d.dispatch(ctx, id, ActionGenerateTest, func(s *session.Session) *remoteCall {
		if !s.Resume.HasSkills() {
			s.Notify(session.NoticeError, MsgNoSkillsForTest)
			return nil
		}

		count, err := strconv.Atoi(strings.TrimSpace(form.Get(FormQuestionCount)))
		if err != nil || count <= 0 || count > d.maxQuestions {
			s.Notify(session.NoticeError, MsgInvalidCount)
			return nil
		}
		kind, err := types.ParseQuestionKind(form.Get(FormQuestionKind))
		if err != nil {
			s.Notify(session.NoticeError, MsgInvalidKind)
			return nil
		}
		s.QuestionCount = count
		s.QuestionKind = kind

		req := types.GenerateTestRequest{
			Skills:          slices.Clone(s.Resume.Skills),
			ExperienceYears: s.Resume.ExperienceYears,
			NumQuestions:    count,
			QuestionType:    kind,
		}
		return d.questionsCall(req, BusyGenerateTest, SuccessGenerateTest, FallbackGenerateTest, PrefixRemoteFailure)
	})
}

// RetryTest generates a new test targeting the weaknesses of the last evaluation,
// reusing the question kind and count of the previous test
func (d *Dispatcher) RetryTest(ctx context.Context, id string) error {
	return d.dispatch(ctx, id, ActionRetryTest, func(s *session.Session) *remoteCall {
		if len(s.LastWeaknesses) == 0 {
			s.Notify(session.NoticeInfo, MsgNoWeaknesses)
			return nil
		}

		kind := s.QuestionKind
		if kind == "" {
			kind = d.defaults.QuestionKind
		}
		count := s.QuestionCount
		if count <= 0 {
			count = d.defaults.QuestionCount
		}
		years := 0
		if s.Resume != nil {
			years = s.Resume.ExperienceYears
		}

		req := types.GenerateTestRequest{
			Skills:          slices.Clone(s.LastWeaknesses),
			ExperienceYears: years,
			NumQuestions:    count,
			QuestionType:    kind,
		}
		return d.questionsCall(req, BusyRetryTest, SuccessRetryTest, FallbackRetryTest, PrefixRetryTestFailure)
	})
}

// questionsCall builds the remote call shared by generate and retry. Both
// write the questions slot, so the later of two overlapping calls wins.
func (d *Dispatcher) questionsCall(req types.GenerateTestRequest, busy, success, fallback, prefix string) *remoteCall {
	return &remoteCall{
		slot:      session.SlotQuestions,
		busy:      busy,
		success:   success,
		fallback:  fallback,
		errPrefix: prefix,
		do: func(ctx context.Context) (func(*session.Session), error) {
			questions, err := d.backend.GenerateTest(ctx, req)
			if err != nil {
				return nil, err
			}
			return func(s *session.Session) {
				for i := range questions {
					if questions[i].Kind == "" {
						questions[i].Kind = req.QuestionType
					}
				}
				s.Questions = questions
				s.Router.Show(wizard.SectionTestTaking)
			}, nil
		},
	}
}

// EvaluateTest collects the answers for the current questions and submits them
func (d *Dispatcher) EvaluateTest(ctx context.Context, id string, form url.Values) error {
	return d.dispatch(ctx, id, ActionEvaluateTest, func(s *session.Session) *remoteCall {
		if len(s.Questions) == 0 {
			s.Notify(session.NoticeError, MsgNoQuestions)
			return nil
		}

		req := types.EvaluateTestRequest{
			Questions: slices.Clone(s.Questions),
			Answers:   CollectAnswers(s.Questions, form),
		}
		return &remoteCall{
			slot:      session.SlotResults,
			busy:      BusyEvaluateTest,
			success:   SuccessEvaluateTest,
			fallback:  FallbackEvaluateTest,
			errPrefix: PrefixRemoteFailure,
			do: func(ctx context.Context) (func(*session.Session), error) {
				results, err := d.backend.EvaluateTest(ctx, req)
				if err != nil {
					return nil, err
				}
				return func(s *session.Session) {
					s.Results = &results
					s.LastWeaknesses = slices.Clone(results.Weaknesses)
					s.Router.Show(wizard.SectionTestResults)
				}, nil
			},
		}
	})
}

// RecommendJobs fetches postings for the current profile
func (d *Dispatcher) RecommendJobs(ctx context.Context, id string) error {
	return d.dispatch(ctx, id, ActionRecommendJobs, func(s *session.Session) *remoteCall {
		if !s.Resume.HasSkills() {
			s.Notify(session.NoticeError, MsgNeedResumeForJobs)
			return nil
		}

		profile := *s.Resume
		profile.Skills = slices.Clone(s.Resume.Skills)
		return &remoteCall{
			slot:      session.SlotJobs,
			busy:      BusyRecommendJobs,
			success:   SuccessRecommendJobs,
			fallback:  FallbackRecommendJobs,
			errPrefix: PrefixRemoteFailure,
			do: func(ctx context.Context) (func(*session.Session), error) {
				jobs, err := d.backend.RecommendJobs(ctx, profile)
				if err != nil {
					return nil, err
				}
				return func(s *session.Session) {
					s.Jobs = jobs
					s.JobsLoaded = true
					s.Router.Show(wizard.SectionJobs)
				}, nil
			},
		}
	})
}

// CollectAnswers builds the answer set for questions from a posted form. Every
// index in [0, len(questions)) gets exactly one entry: the chosen option label
// or typed code, or the matching sentinel when nothing usable was posted.
func CollectAnswers(questions []types.TestQuestion, form url.Values) types.AnswerSet {
	answers := make(types.AnswerSet, len(questions))
	for i, q := range questions {
		key := strconv.Itoa(i)
		value, posted := form[AnswerField(i)]

		if q.Kind == types.KindCoding {
			if !posted || len(value) == 0 {
				answers[key] = types.NoCodeProvided
				continue
			}
			answers[key] = value[0]
			continue
		}

		if posted && len(value) > 0 && q.HasLabel(value[0]) {
			answers[key] = value[0]
		} else {
			answers[key] = types.NoAnswerProvided
		}
	}
	return answers
}

// AnswerField is the form field name of the answer input for question i
func AnswerField(i int) string {
	return "question-" + strconv.Itoa(i)
}

func formValues(form url.Values, names []string) map[string]string {
	values := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := form[name]; ok && len(v) > 0 {
			values[name] = v[0]
		}
	}
	return values
}
