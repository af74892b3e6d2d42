package campaign

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/perfcycle/perfcycle/internal/notify"
)

// AdministrationInput carries the administrator-editable fields.
type AdministrationInput struct {
	Name          string    `json:"name" validate:"required"`
	Kind          Kind      `json:"kind"`
	PeriodStart   time.Time `json:"eval_period_start_date" validate:"required"`
	PeriodEnd     time.Time `json:"eval_period_end_date" validate:"required"`
	ScheduleStart time.Time `json:"eval_schedule_start_date" validate:"required"`
	ScheduleEnd   time.Time `json:"eval_schedule_end_date" validate:"required"`
	Remarks       string    `json:"remarks"`
	EmailSubject  string    `json:"email_subject"`
	EmailContent  string    `json:"email_content"`
}

// Administrations runs the campaign-wide lifecycle. All transitions re-check
// the current status before acting, so manual admin actions and scheduler
// sweeps may overlap safely.
type Administrations struct {
	store      Store
	outbox     Outbox
	aggregator *Aggregator
	log        *zap.Logger
	now        func() time.Time

	// BaseURL prefixes the deep links embedded in notifications.
	BaseURL string
}

func NewAdministrations(store Store, outbox Outbox, aggregator *Aggregator, log *zap.Logger) *Administrations {
	return &Administrations{store: store, outbox: outbox, aggregator: aggregator, log: log, now: time.Now}
}

func (s *Administrations) Create(ctx context.Context, in AdministrationInput) (Administration, error) {
	if err := validateInput(in); err != nil {
		return Administration{}, err
	}
	kind := in.Kind
	if kind == "" {
		kind = KindEvaluation
	}
	a := Administration{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Kind:          kind,
		PeriodStart:   in.PeriodStart,
		PeriodEnd:     in.PeriodEnd,
		ScheduleStart: in.ScheduleStart,
		ScheduleEnd:   in.ScheduleEnd,
		Remarks:       in.Remarks,
		EmailSubject:  in.EmailSubject,
		EmailContent:  in.EmailContent,
		Status:        AdminDraft,
		CreatedAt:     s.now().Unix(),
		UpdatedAt:     s.now().Unix(),
	}
	if err := s.store.CreateAdministration(ctx, a); err != nil {
		return Administration{}, err
	}
	return a, nil
}

func (s *Administrations) Get(ctx context.Context, id string) (Administration, error) {
	return s.store.GetAdministration(ctx, id)
}

func (s *Administrations) List(ctx context.Context, statuses ...AdministrationStatus) ([]Administration, error) {
	return s.store.ListAdministrations(ctx, statuses...)
}

func (s *Administrations) Update(ctx context.Context, id string, in AdministrationInput) (Administration, error) {
	a, err := s.store.GetAdministration(ctx, id)
	if err != nil {
		return Administration{}, err
	}
	switch a.Status {
	case AdminDraft, AdminPending, AdminOngoing:
	default:
		return Administration{}, preconditionf("administration in status %s cannot be edited", a.Status)
	}
	if err := validateInput(in); err != nil {
		return Administration{}, err
	}
	a.Name = in.Name
	if in.Kind != "" {
		a.Kind = in.Kind
	}
	a.PeriodStart, a.PeriodEnd = in.PeriodStart, in.PeriodEnd
	a.ScheduleStart, a.ScheduleEnd = in.ScheduleStart, in.ScheduleEnd
	a.Remarks = in.Remarks
	a.EmailSubject = in.EmailSubject
	a.EmailContent = in.EmailContent
	a.UpdatedAt = s.now().Unix()
	if err := s.store.UpdateAdministration(ctx, a); err != nil {
		return Administration{}, err
	}
	return a, nil
}

// Delete removes a draft administration and everything under it. Anything
// past draft is cancelled or closed, never deleted.
func (s *Administrations) Delete(ctx context.Context, id string) error {
	a, err := s.store.GetAdministration(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != AdminDraft {
		return preconditionf("only draft administrations may be deleted")
	}
	return s.store.DeleteAdministration(ctx, id)
}

// SetResultStatus toggles an evaluee's result between for-review and ready
// during roster review.
func (s *Administrations) SetResultStatus(ctx context.Context, resultID string, status ResultStatus) (Result, error) {
	if status != ResultForReview && status != ResultReady {
		return Result{}, preconditionf("result status can only be set to %s or %s", ResultForReview, ResultReady)
	}
	r, err := s.store.GetResult(ctx, resultID)
	if err != nil {
		return Result{}, err
	}
	if r.Status != ResultForReview && r.Status != ResultReady {
		return Result{}, preconditionf("result in status %s cannot be re-reviewed", r.Status)
	}
	r.Status = status
	if err := s.store.UpdateResult(ctx, r); err != nil {
		return Result{}, err
	}
	return r, nil
}

// SetEvaluationInclusion flips a generated row between the informational
// excluded pool and the real draft roster.
func (s *Administrations) SetEvaluationInclusion(ctx context.Context, evaluationID string, include bool) (Evaluation, error) {
	e, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return Evaluation{}, err
	}
	switch {
	case include && e.Status == EvalExcluded:
		e.Status = EvalDraft
		e.ForEvaluation = true
	case !include && e.Status == EvalDraft:
		e.Status = EvalExcluded
		e.ForEvaluation = false
	default:
		return Evaluation{}, preconditionf("evaluation in status %s cannot change inclusion", e.Status)
	}
	if err := s.store.UpdateEvaluation(ctx, e); err != nil {
		return Evaluation{}, err
	}
	return e, nil
}

// DeleteResult drops one evaluee from a draft roster, children first.
func (s *Administrations) DeleteResult(ctx context.Context, resultID string) error {
	r, err := s.store.GetResult(ctx, resultID)
	if err != nil {
		return err
	}
	if r.Status != ResultForReview && r.Status != ResultReady {
		return preconditionf("result in status %s cannot be deleted", r.Status)
	}
	return s.store.DeleteResult(ctx, resultID)
}

// CheckGenerateEligibility reports whether Generate would proceed: every
// evaluee's result must have been reviewed and marked ready.
func (s *Administrations) CheckGenerateEligibility(ctx context.Context, id string) error {
	a, err := s.store.GetAdministration(ctx, id)
	if err != nil {
		return err
	}
	switch a.Status {
	case AdminDraft, AdminPending, AdminOngoing:
	default:
		return preconditionf("administration in status %s cannot generate evaluations", a.Status)
	}
	results, err := s.store.ListResultsByAdministration(ctx, id)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return preconditionf("no evaluees have been selected")
	}
	for _, r := range results {
		if r.Status != ResultReady {
			return preconditionf("all evaluees must be ready")
		}
	}
	return nil
}

// Generate opens the reviewed roster: draft evaluations become pending or
// open depending on whether the schedule has started, and every evaluation
// gets its rating slots materialized from the template's active contents.
func (s *Administrations) Generate(ctx context.Context, id string) (Administration, error) {
	a, err := s.store.GetAdministration(ctx, id)
	if err != nil {
		return Administration{}, err
	}
	if err := s.CheckGenerateEligibility(ctx, id); err != nil {
		return Administration{}, err
	}

	target := AdminOngoing
	evalTarget := EvalOpen
	if s.now().Before(a.ScheduleStart) {
		target = AdminPending
		evalTarget = EvalPending
	}

	t := true
	drafts, err := s.store.ListEvaluations(ctx, EvaluationFilter{
		AdministrationID: id,
		ForEvaluation:    &t,
		Statuses:         []EvaluationStatus{EvalDraft},
	})
	if err != nil {
		return Administration{}, err
	}
	for _, e := range drafts {
		contents, err := s.store.ListActiveContentsByTemplate(ctx, e.TemplateID)
		if err != nil {
			return Administration{}, err
		}
		for _, c := range contents {
			if err := s.store.CreateRating(ctx, Rating{
				ID:           uuid.NewString(),
				EvaluationID: e.ID,
				ContentID:    c.ID,
				Percentage:   c.Rate,
			}); err != nil {
				return Administration{}, err
			}
		}
		e.Status = evalTarget
		if err := s.store.UpdateEvaluation(ctx, e); err != nil {
			return Administration{}, err
		}
	}

	a.Status = target
	a.UpdatedAt = s.now().Unix()
	if err := s.store.UpdateAdministration(ctx, a); err != nil {
		return Administration{}, err
	}

	if target == AdminOngoing {
		if err := s.openResults(ctx, a); err != nil {
			return Administration{}, err
		}
	}
	return a, nil
}

// Cancel abandons a pending or ongoing campaign. Excluded rows carry no
// submitted data and are hard-deleted; everything else is cancelled in place.
func (s *Administrations) Cancel(ctx context.Context, id string) (Administration, error) {
	a, err := s.store.GetAdministration(ctx, id)
	if err != nil {
		return Administration{}, err
	}
	if a.Status != AdminPending && a.Status != AdminOngoing {
		return Administration{}, preconditionf("only pending or ongoing administrations may be cancelled")
	}

	evals, err := s.store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: id})
	if err != nil {
		return Administration{}, err
	}
	for _, e := range evals {
		switch e.Status {
		case EvalExcluded:
			if err := s.store.DeleteEvaluation(ctx, e.ID); err != nil {
				return Administration{}, err
			}
		case EvalDraft, EvalPending, EvalOpen, EvalOngoing:
			e.Status = EvalCancelled
			if err := s.store.UpdateEvaluation(ctx, e); err != nil {
				return Administration{}, err
			}
		}
	}

	results, err := s.store.ListResultsByAdministration(ctx, id)
	if err != nil {
		return Administration{}, err
	}
	for _, r := range results {
		if r.Status == ResultCancelled {
			continue
		}
		r.Status = ResultCancelled
		if err := s.store.UpdateResult(ctx, r); err != nil {
			return Administration{}, err
		}
	}

	a.Status = AdminCancelled
	a.UpdatedAt = s.now().Unix()
	if err := s.store.UpdateAdministration(ctx, a); err != nil {
		return Administration{}, err
	}
	return a, nil
}

// Close finalizes an ongoing campaign: unsubmitted evaluations expire,
// lingering excluded rows are dropped, every result is aggregated and the
// administration-wide banding pass runs.
func (s *Administrations) Close(ctx context.Context, id string) (Administration, error) {
	a, err := s.store.GetAdministration(ctx, id)
	if err != nil {
		return Administration{}, err
	}
	if a.Status != AdminOngoing {
		return Administration{}, preconditionf("only ongoing administrations may be closed")
	}

	evals, err := s.store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: id})
	if err != nil {
		return Administration{}, err
	}
	for _, e := range evals {
		switch e.Status {
		case EvalExcluded:
			if err := s.store.DeleteEvaluation(ctx, e.ID); err != nil {
				return Administration{}, err
			}
		case EvalDraft, EvalPending, EvalOpen, EvalOngoing, EvalForRemoval:
			e.Status = EvalExpired
			if err := s.store.UpdateEvaluation(ctx, e); err != nil {
				return Administration{}, err
			}
		}
	}

	results, err := s.store.ListResultsByAdministration(ctx, id)
	if err != nil {
		return Administration{}, err
	}
	for _, r := range results {
		if r.Status == ResultCancelled {
			continue
		}
		if _, err := s.aggregator.AggregateResult(ctx, r.ID); err != nil {
			return Administration{}, err
		}
	}
	if err := s.aggregator.BandResults(ctx, id); err != nil {
		return Administration{}, err
	}

	a.Status = AdminClosed
	a.UpdatedAt = s.now().Unix()
	if err := s.store.UpdateAdministration(ctx, a); err != nil {
		return Administration{}, err
	}
	return a, nil
}

// Reopen undoes a close: expired evaluations go back to open and results back
// to ongoing so late submissions can land.
func (s *Administrations) Reopen(ctx context.Context, id string) (Administration, error) {
	a, err := s.store.GetAdministration(ctx, id)
	if err != nil {
		return Administration{}, err
	}
	if a.Status != AdminClosed {
		return Administration{}, preconditionf("only closed administrations may be reopened")
	}

	t := true
	expired, err := s.store.ListEvaluations(ctx, EvaluationFilter{
		AdministrationID: id,
		ForEvaluation:    &t,
		Statuses:         []EvaluationStatus{EvalExpired},
	})
	if err != nil {
		return Administration{}, err
	}
	for _, e := range expired {
		e.Status = EvalOpen
		if err := s.store.UpdateEvaluation(ctx, e); err != nil {
			return Administration{}, err
		}
	}

	results, err := s.store.ListResultsByAdministration(ctx, id)
	if err != nil {
		return Administration{}, err
	}
	for _, r := range results {
		if r.Status == ResultCompleted || r.Status == ResultNoResult {
			r.Status = ResultOngoing
			if err := s.store.UpdateResult(ctx, r); err != nil {
				return Administration{}, err
			}
		}
	}

	a.Status = AdminOngoing
	a.UpdatedAt = s.now().Unix()
	if err := s.store.UpdateAdministration(ctx, a); err != nil {
		return Administration{}, err
	}
	return a, nil
}

// Publish releases a closed campaign's results to the evaluees.
func (s *Administrations) Publish(ctx context.Context, id string) (Administration, error) {
	a, err := s.store.GetAdministration(ctx, id)
	if err != nil {
		return Administration{}, err
	}
	if a.Status != AdminClosed {
		return Administration{}, preconditionf("only closed administrations may be published")
	}

	results, err := s.store.ListResultsByAdministration(ctx, id)
	if err != nil {
		return Administration{}, err
	}
	for _, r := range results {
		if r.Status != ResultCompleted {
			continue
		}
		u, err := s.store.GetUser(ctx, r.EvalueeID)
		if err != nil {
			s.log.Warn("publish notification skipped", zap.String("result_id", r.ID), zap.Error(err))
			continue
		}
		vars := s.tokenVars(a, u.FullName())
		subject := notify.Render("Your results for {{evaluation_name}} are available", vars)
		body := notify.Render("<p>Hi {{name}},</p><p>Your results for {{evaluation_name}} ({{eval_period}}) are now available at {{link}}.</p>", vars)
		if err := s.outbox.Enqueue(ctx, u.Email, subject, body); err != nil {
			s.log.Warn("enqueue publish notification failed", zap.Error(err))
		}
	}

	a.Status = AdminPublished
	a.UpdatedAt = s.now().Unix()
	if err := s.store.UpdateAdministration(ctx, a); err != nil {
		return Administration{}, err
	}
	return a, nil
}

// Advance is the scheduler entry point: pending administrations whose
// schedule window now contains the clock are opened, ongoing ones past their
// schedule end are closed. A pending administration whose whole window has
// already passed goes straight to closed. Each administration is processed
// independently.
func (s *Administrations) Advance(ctx context.Context) error {
	now := s.now()

	pending, err := s.store.ListAdministrations(ctx, AdminPending)
	if err != nil {
		return err
	}
	for _, a := range pending {
		if now.Before(a.ScheduleStart) {
			continue
		}
		if now.After(a.ScheduleEnd) {
			// The whole schedule window elapsed while pending (downtime).
			// Close directly, skipping invitations nobody can act on.
			a.Status = AdminOngoing
			a.UpdatedAt = now.Unix()
			if err := s.store.UpdateAdministration(ctx, a); err != nil {
				s.log.Error("advance to closed failed", zap.String("administration_id", a.ID), zap.Error(err))
				continue
			}
			if _, err := s.Close(ctx, a.ID); err != nil {
				s.log.Error("advance to closed failed", zap.String("administration_id", a.ID), zap.Error(err))
			}
			continue
		}
		if err := s.open(ctx, a); err != nil {
			s.log.Error("advance to ongoing failed", zap.String("administration_id", a.ID), zap.Error(err))
		}
	}

	ongoing, err := s.store.ListAdministrations(ctx, AdminOngoing)
	if err != nil {
		return err
	}
	for _, a := range ongoing {
		if !now.After(a.ScheduleEnd) {
			continue
		}
		if _, err := s.Close(ctx, a.ID); err != nil {
			s.log.Error("auto close failed", zap.String("administration_id", a.ID), zap.Error(err))
		}
	}
	return nil
}

// open moves a pending administration into its submission window.
func (s *Administrations) open(ctx context.Context, a Administration) error {
	t := true
	evals, err := s.store.ListEvaluations(ctx, EvaluationFilter{
		AdministrationID: a.ID,
		ForEvaluation:    &t,
		Statuses:         []EvaluationStatus{EvalPending},
	})
	if err != nil {
		return err
	}
	for _, e := range evals {
		e.Status = EvalOpen
		if err := s.store.UpdateEvaluation(ctx, e); err != nil {
			return err
		}
	}
	a.Status = AdminOngoing
	a.UpdatedAt = s.now().Unix()
	if err := s.store.UpdateAdministration(ctx, a); err != nil {
		return err
	}
	return s.openResults(ctx, a)
}

// openResults cascades results to ongoing and fires the bulk "evaluation
// opened" batch, one email per distinct evaluator.
func (s *Administrations) openResults(ctx context.Context, a Administration) error {
	results, err := s.store.ListResultsByAdministration(ctx, a.ID)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Status == ResultReady || r.Status == ResultForReview {
			r.Status = ResultOngoing
			if err := s.store.UpdateResult(ctx, r); err != nil {
				return err
			}
		}
	}

	t := true
	evals, err := s.store.ListEvaluations(ctx, EvaluationFilter{
		AdministrationID: a.ID,
		ForEvaluation:    &t,
		Statuses:         []EvaluationStatus{EvalOpen, EvalOngoing},
	})
	if err != nil {
		return err
	}
	notifiedUsers := map[string]bool{}
	notifiedExternals := map[string]bool{}
	for _, e := range evals {
		switch {
		case e.EvaluatorID != "" && !notifiedUsers[e.EvaluatorID]:
			notifiedUsers[e.EvaluatorID] = true
			s.inviteInternal(ctx, a, e.EvaluatorID)
		case e.ExternalEvaluatorID != "" && !notifiedExternals[e.ExternalEvaluatorID]:
			notifiedExternals[e.ExternalEvaluatorID] = true
			s.inviteExternal(ctx, a, e.ExternalEvaluatorID)
		}
	}
	return nil
}

func (s *Administrations) inviteInternal(ctx context.Context, a Administration, userID string) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		s.log.Warn("invite skipped", zap.String("user_id", userID), zap.Error(err))
		return
	}
	vars := s.tokenVars(a, u.FullName())
	s.invite(ctx, a, u.Email, vars)
}

// inviteExternal mints a fresh one-time passcode for the reviewer, stores its
// hash and mails the plain code.
func (s *Administrations) inviteExternal(ctx context.Context, a Administration, externalID string) {
	x, err := s.store.GetExternalEvaluator(ctx, externalID)
	if err != nil {
		s.log.Warn("invite skipped", zap.String("external_evaluator_id", externalID), zap.Error(err))
		return
	}
	code := newAccessCode()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		s.log.Warn("access code hash failed", zap.Error(err))
		return
	}
	x.AccessCodeHash = string(hash)
	if err := s.store.PutExternalEvaluator(ctx, x); err != nil {
		s.log.Warn("access code store failed", zap.Error(err))
		return
	}
	vars := s.tokenVars(a, x.FirstName+" "+x.LastName)
	vars["passcode"] = code
	s.invite(ctx, a, x.Email, vars)
}

func (s *Administrations) invite(ctx context.Context, a Administration, email string, vars map[string]string) {
	subject := a.EmailSubject
	if subject == "" {
		subject = "{{evaluation_name}} is now open"
	}
	body := a.EmailContent
	if body == "" {
		body = "<p>Hi {{name}},</p><p>{{evaluation_name}} covering {{eval_period}} is open for submission until {{eval_schedule_end_date}}.</p><p>{{link}}</p>"
	}
	if err := s.outbox.Enqueue(ctx, email, notify.Render(subject, vars), notify.Render(body, vars)); err != nil {
		s.log.Warn("enqueue invite failed", zap.String("recipient", email), zap.Error(err))
	}
}

func (s *Administrations) tokenVars(a Administration, name string) map[string]string {
	return map[string]string{
		"name":                   name,
		"evaluation_name":        a.Name,
		"eval_schedule_end_date": a.ScheduleEnd.Format("January 2, 2006"),
		"eval_period":            a.PeriodStart.Format("January 2, 2006") + " to " + a.PeriodEnd.Format("January 2, 2006"),
		"link":                   s.BaseURL + "/evaluation-administrations/" + a.ID,
	}
}

func validateInput(in AdministrationInput) error {
	if in.Name == "" {
		return validationf("name", "name is required")
	}
	if in.PeriodEnd.Before(in.PeriodStart) {
		return validationf("eval_period_end_date", "period end must not precede period start")
	}
	if in.ScheduleEnd.Before(in.ScheduleStart) {
		return validationf("eval_schedule_end_date", "schedule end must not precede schedule start")
	}
	return nil
}

func newAccessCode() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
