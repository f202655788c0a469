package dispatch

import (
	"context"
	"errors"
	"net/url"

	apperrors "skillwizard/internal/errors"
	"skillwizard/internal/session"
	"skillwizard/internal/wizard"
)

// View is what a page render needs: the session and its one-shot notice
type View struct {
	Session *session.Session
	Notice  *session.Notice
}

// Status is the lightweight state polled while an action is in flight
type Status struct {
	Section wizard.SectionID `json:"section"`
	Busy    string           `json:"busy,omitempty"`
	Step    int              `json:"step"`
}

// Start creates and stores a fresh session positioned on the first step
func (d *Dispatcher) Start(ctx context.Context) (*session.Session, error) {
	s := session.New(d.defaults)
	if err := d.store.Save(ctx, s); err != nil {
		return nil, apperrors.NewSessionError(apperrors.ErrCodeSessionStore, "", err)
	}
	d.logger.Debug("Session started", "session_id", s.ID)
	return s, nil
}

// Restart discards the session and starts a new one
func (d *Dispatcher) Restart(ctx context.Context, id string) (*session.Session, error) {
	if id != "" {
		unlock := d.locker.Lock(id)
		err := d.store.Delete(ctx, id)
		unlock()
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			d.logger.LogError(err, "Failed to delete session", "session_id", id)
		}
	}
	return d.Start(ctx)
}

// View loads the session for rendering and consumes its pending notice
func (d *Dispatcher) View(ctx context.Context, id string) (View, error) {
	var notice *session.Notice
	s, err := d.update(ctx, id, func(s *session.Session) error {
		notice = s.TakeNotice()
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return View{Session: s, Notice: notice}, nil
}

// Status reports the visible section and busy label without touching the session
func (d *Dispatcher) Status(ctx context.Context, id string) (Status, error) {
	s, err := d.load(ctx, id)
	if err != nil {
		return Status{}, err
	}
	return Status{Section: s.Router.Visible(), Busy: s.Busy, Step: s.Wizard.Current}, nil
}

// Advance validates the current intake step and moves to the next one
func (d *Dispatcher) Advance(ctx context.Context, id string, form url.Values) error {
	_, err := d.update(ctx, id, func(s *session.Session) error {
		err := s.Wizard.Advance(formValues(form, wizard.FieldNames()))
		var verr *wizard.ValidationError
		if errors.As(err, &verr) {
			s.Notify(session.NoticeError, verr.Message)
			d.metrics.RecordValidationFailure(ctx, verr.Step)
			d.logger.Debug("Step validation failed", "session_id", id, "step", verr.Step, "fields", verr.Fields)
			return nil
		}
		return err
	})
	return err
}

// Retreat moves back one intake step, keeping whatever was typed
func (d *Dispatcher) Retreat(ctx context.Context, id string, form url.Values) error {
	_, err := d.update(ctx, id, func(s *session.Session) error {
		s.Wizard.Retreat(formValues(form, wizard.FieldNames()))
		return nil
	})
	return err
}

// Navigate shows another section. Unknown section names are rejected.
func (d *Dispatcher) Navigate(ctx context.Context, id string, target string) error {
	section, err := wizard.ParseSectionID(target)
	if err != nil {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidRequest, "Unknown section.", err)
	}
	_, err = d.update(ctx, id, func(s *session.Session) error {
		return s.Router.Show(section)
	})
	return err
}
