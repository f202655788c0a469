package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "skillwizard/internal/errors"
	"skillwizard/internal/session"
	"skillwizard/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// MsgSessionExpired is shown when a posted session id is unknown or expired
const MsgSessionExpired = "Your session expired. Please start again."

// Backend is the assessment service the dispatcher talks to
type Backend interface {
	SubmitResume(ctx context.Context, profile types.ResumeProfile) (types.ResumeProfile, error)
	GenerateTest(ctx context.Context, req types.GenerateTestRequest) ([]types.TestQuestion, error)
	EvaluateTest(ctx context.Context, req types.EvaluateTestRequest) (types.TestResults, error)
	RecommendJobs(ctx context.Context, profile types.ResumeProfile) ([]types.JobRecommendation, error)
}

// Metrics receives action outcomes. Implementations must be safe for concurrent use.
type Metrics interface {
	RecordAction(ctx context.Context, action string, outcome string, duration time.Duration)
	RecordStaleResponse(ctx context.Context, action string)
	RecordValidationFailure(ctx context.Context, step int)
}

type noopMetrics struct{}

func (noopMetrics) RecordAction(context.Context, string, string, time.Duration) {}
func (noopMetrics) RecordStaleResponse(context.Context, string)                 {}
func (noopMetrics) RecordValidationFailure(context.Context, int)                {}

// Action outcomes reported to Metrics
const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomePrecondition = "precondition"
	OutcomeStale        = "stale"
	OutcomePanic        = "panic"
)

// Options tunes a Dispatcher
type Options struct {
	Defaults     session.Defaults
	MaxQuestions int
	Metrics      Metrics
	// PendingTimeout is how long a started action may stay unsettled before
	// its token and busy label are dropped. Zero keeps them until settled.
	PendingTimeout time.Duration
}

// Dispatcher runs the wizard's actions against a session. Remote calls are
// made without holding the session lock; a request token taken before the
// call decides whether the response may still be applied afterwards.
type Dispatcher struct {
	backend      Backend
	store        session.Store
	locker       *session.Locker
	group        singleflight.Group
	logger       *apperrors.Logger
	metrics      Metrics
	tracer       trace.Tracer
	defaults     session.Defaults
	maxQuestions int
	pendingTTL   time.Duration
}

// New creates a dispatcher
func New(backend Backend, store session.Store, logger *apperrors.Logger, opts Options) *Dispatcher {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	maxQuestions := opts.MaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = 20
	}
	defaults := opts.Defaults
	if defaults.QuestionKind == "" {
		defaults.QuestionKind = types.KindMultipleChoice
	}
	if defaults.QuestionCount <= 0 {
		defaults.QuestionCount = 5
	}
	return &Dispatcher{
		backend:      backend,
		store:        store,
		locker:       session.NewLocker(),
		logger:       logger,
		metrics:      metrics,
		tracer:       otel.Tracer("skillwizard.dispatch"),
		defaults:     defaults,
		maxQuestions: maxQuestions,
		pendingTTL:   opts.PendingTimeout,
	}
}

// remoteCall describes the backend round trip of an action after its
// preconditions passed
type remoteCall struct {
	slot      session.Slot
	busy      string
	success   string
	fallback  string
	errPrefix string
	// do performs the request and returns the mutation to apply on success
	do func(ctx context.Context) (func(s *session.Session), error)
}

// load fetches a session and maps a missing one to a user facing error
func (d *Dispatcher) load(ctx context.Context, id string) (*session.Session, error) {
	s, err := d.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperrors.NewSessionError(apperrors.ErrCodeSessionNotFound, MsgSessionExpired, err).
				WithContext("session_id", id)
		}
		return nil, apperrors.NewSessionError(apperrors.ErrCodeSessionStore, "", err).
			WithContext("session_id", id)
	}
	if d.pendingTTL > 0 && s.ExpirePending(time.Now().Add(-d.pendingTTL)) {
		d.logger.Info("Dropped unsettled actions", "session_id", id, "older_than", d.pendingTTL.String())
	}
	return s, nil
}

// update runs fn on the locked session and saves it
func (d *Dispatcher) update(ctx context.Context, id string, fn func(s *session.Session) error) (*session.Session, error) {
	unlock := d.locker.Lock(id)
	defer unlock()

	s, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := d.store.Save(ctx, s); err != nil {
		return nil, apperrors.NewSessionError(apperrors.ErrCodeSessionStore, "", err).WithContext("session_id", id)
	}
	return s, nil
}

// dispatch coalesces concurrent calls of the same action on the same session
// and runs the action detached from the caller's cancellation, so a client
// that gives up does not abort the request for a joined duplicate.
func (d *Dispatcher) dispatch(ctx context.Context, id string, action Action, prepare func(s *session.Session) *remoteCall) error {
	key := id + "|" + string(action)
	_, err, shared := d.group.Do(key, func() (any, error) {
		return nil, d.run(context.WithoutCancel(ctx), id, action, prepare)
	})
	if shared {
		d.logger.Debug("Joined in-flight action", "session_id", id, "action", string(action))
	}
	return err
}

func (d *Dispatcher) run(ctx context.Context, id string, action Action, prepare func(s *session.Session) *remoteCall) error {
	ctx, span := d.tracer.Start(ctx, "dispatch."+string(action))
	defer span.End()
	span.SetAttributes(attribute.String("wizard.action", string(action)))

	start := time.Now()
	var (
		rc    *remoteCall
		token string
	)
	_, err := d.update(ctx, id, func(s *session.Session) error {
		rc = prepare(s)
		if rc == nil {
			return nil
		}
		token = s.Begin(rc.slot)
		s.Busy = rc.busy
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if rc == nil {
		d.metrics.RecordAction(ctx, string(action), OutcomePrecondition, time.Since(start))
		d.logger.Debug("Action precondition not met", "session_id", id, "action", string(action))
		return nil
	}

	outcome, err := d.execute(ctx, id, action, rc, token)
	d.metrics.RecordAction(ctx, string(action), outcome, time.Since(start))
	span.SetAttributes(attribute.String("wizard.outcome", outcome))
	if outcome != OutcomeSuccess {
		span.SetStatus(codes.Error, outcome)
	}
	return err
}

// execute performs the remote call and always settles the session afterwards,
// clearing the busy label even when the call panics
func (d *Dispatcher) execute(ctx context.Context, id string, action Action, rc *remoteCall, token string) (outcome string, err error) {
	var (
		apply   func(s *session.Session)
		callErr error
	)
	defer func() {
		panicked := false
		if rec := recover(); rec != nil {
			panicked = true
			callErr = apperrors.NewInternalError(apperrors.ErrCodeUnexpected, "", fmt.Errorf("panic: %v", rec))
		}
		outcome, err = d.settle(ctx, id, action, rc, token, apply, callErr)
		if panicked && outcome == OutcomeFailure {
			outcome = OutcomePanic
		}
	}()

	apply, callErr = rc.do(ctx)
	return OutcomeSuccess, nil
}

// settle applies the outcome of a remote call if its token is still current
func (d *Dispatcher) settle(ctx context.Context, id string, action Action, rc *remoteCall, token string,
	apply func(s *session.Session), callErr error) (string, error) {
	outcome := OutcomeSuccess
	logger := d.logger.With("session_id", id, "action", string(action))

	_, err := d.update(ctx, id, func(s *session.Session) error {
		defer func() {
			s.Finish(rc.slot, token)
			if len(s.Pending) == 0 {
				s.Busy = ""
			}
		}()

		switch {
		case !s.IsCurrent(rc.slot, token):
			outcome = OutcomeStale
			d.metrics.RecordStaleResponse(ctx, string(action))
			logger.Debug("Discarding superseded response", "slot", string(rc.slot))
		case callErr != nil:
			outcome = OutcomeFailure
			s.Notify(session.NoticeError, rc.errPrefix+apperrors.UserMessage(callErr, rc.fallback))
			logger.LogError(callErr, "Action failed")
		default:
			if apply != nil {
				apply(s)
			}
			s.Notify(session.NoticeSuccess, rc.success)
			logger.Info("Action completed")
		}
		return nil
	})
	if err != nil {
		logger.LogError(err, "Could not settle action")
		return OutcomeFailure, err
	}
	return outcome, nil
}
