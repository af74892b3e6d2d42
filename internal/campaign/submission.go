package campaign

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// extremeAnswerThreshold is the anti-gaming bar: when at least this fraction
// of answered options sit in the scale's extreme tiers (highest and lowest
// combined), a free-text comment becomes mandatory.
const extremeAnswerThreshold = 0.75

// Actor identifies who is calling a submission operation. Exactly one of
// UserID and ExternalID is set for evaluators; Admin bypasses ownership
// checks for the removal-approval paths.
type Actor struct {
	UserID     string
	ExternalID string
	Admin      bool
}

// AnswerInput selects one answer option for one rating slot.
type AnswerInput struct {
	RatingID       string `json:"evaluation_rating_id" validate:"required"`
	AnswerOptionID string `json:"answer_option_id" validate:"required"`
}

// Submission governs a single evaluation's progress from assignment to
// submitted score, including partial answer capture.
type Submission struct {
	store      Store
	outbox     Outbox
	aggregator *Aggregator
	log        *zap.Logger
	now        func() time.Time
}

func NewSubmission(store Store, outbox Outbox, aggregator *Aggregator, log *zap.Logger) *Submission {
	return &Submission{store: store, outbox: outbox, aggregator: aggregator, log: log, now: time.Now}
}

// SubmitEvaluation applies a batch of answers and an optional comment. With
// submit=false this is a partial save (Open moves to Ongoing); with
// submit=true the evaluation must be complete and moves to Submitted.
func (s *Submission) SubmitEvaluation(ctx context.Context, actor Actor, evaluationID string, answers []AnswerInput, comment string, submit bool) (Evaluation, error) {
	e, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return Evaluation{}, err
	}
	if err := s.checkOwner(actor, e); err != nil {
		return Evaluation{}, err
	}
	if e.Status != EvalOpen && e.Status != EvalOngoing {
		return Evaluation{}, preconditionf("evaluation is not open for submission")
	}

	ratings, err := s.store.ListRatingsByEvaluation(ctx, evaluationID)
	if err != nil {
		return Evaluation{}, err
	}
	byID := make(map[string]*Rating, len(ratings))
	for i := range ratings {
		byID[ratings[i].ID] = &ratings[i]
	}

	// Stage every change in memory first so a validation failure leaves no
	// partial write behind.
	for _, in := range answers {
		r, ok := byID[in.RatingID]
		if !ok || r.EvaluationID != evaluationID {
			return Evaluation{}, validationf("answers", "rating %s does not belong to this evaluation", in.RatingID)
		}
		opt, err := s.store.GetAnswerOption(ctx, in.AnswerOptionID)
		if err != nil {
			return Evaluation{}, validationf("answers", "unknown answer option %s", in.AnswerOptionID)
		}
		r.AnswerOptionID = opt.ID
		r.Rate = opt.Rate
		r.Score = opt.Rate * r.Percentage
	}
	if comment != "" {
		e.Comments = comment
	}

	if submit {
		if err := s.validateComplete(ctx, e, ratings); err != nil {
			return Evaluation{}, err
		}
		admin, err := s.store.GetAdministration(ctx, e.AdministrationID)
		if err != nil {
			return Evaluation{}, err
		}
		s.score(&e, ratings, admin)
		now := s.now()
		e.Status = EvalSubmitted
		e.SubmittedAt = &now
		if e.SubmissionMethod == "" {
			e.SubmissionMethod = "web"
		}
	} else if e.Status == EvalOpen {
		e.Status = EvalOngoing
	}

	for i := range ratings {
		if err := s.store.UpdateRating(ctx, ratings[i]); err != nil {
			return Evaluation{}, err
		}
	}
	if err := s.store.UpdateEvaluation(ctx, e); err != nil {
		return Evaluation{}, err
	}

	if e.Status == EvalSubmitted {
		if err := s.aggregator.AggregateIfComplete(ctx, e.ResultID); err != nil {
			return Evaluation{}, err
		}
		s.notifyIfEvaluatorDone(ctx, e)
	}
	return e, nil
}

// SubmitAnswer captures a single answer without submitting.
func (s *Submission) SubmitAnswer(ctx context.Context, actor Actor, evaluationID string, in AnswerInput) (Rating, error) {
	e, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return Rating{}, err
	}
	if err := s.checkOwner(actor, e); err != nil {
		return Rating{}, err
	}
	if e.Status != EvalOpen && e.Status != EvalOngoing {
		return Rating{}, preconditionf("evaluation is not open for submission")
	}
	r, err := s.store.GetRating(ctx, in.RatingID)
	if err != nil {
		return Rating{}, err
	}
	if r.EvaluationID != evaluationID {
		return Rating{}, validationf("answers", "rating %s does not belong to this evaluation", in.RatingID)
	}
	opt, err := s.store.GetAnswerOption(ctx, in.AnswerOptionID)
	if err != nil {
		return Rating{}, validationf("answers", "unknown answer option %s", in.AnswerOptionID)
	}
	r.AnswerOptionID = opt.ID
	r.Rate = opt.Rate
	r.Score = opt.Rate * r.Percentage
	if err := s.store.UpdateRating(ctx, r); err != nil {
		return Rating{}, err
	}
	if e.Status == EvalOpen {
		e.Status = EvalOngoing
		if err := s.store.UpdateEvaluation(ctx, e); err != nil {
			return Rating{}, err
		}
	}
	return r, nil
}

// SubmitComment captures a comment without answers.
func (s *Submission) SubmitComment(ctx context.Context, actor Actor, evaluationID, comment string) (Evaluation, error) {
	e, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return Evaluation{}, err
	}
	if err := s.checkOwner(actor, e); err != nil {
		return Evaluation{}, err
	}
	if e.Status != EvalOpen && e.Status != EvalOngoing {
		return Evaluation{}, preconditionf("evaluation is not open for submission")
	}
	if comment == "" {
		return Evaluation{}, validationf("comment", "comment is required")
	}
	e.Comments = comment
	if e.Status == EvalOpen {
		e.Status = EvalOngoing
	}
	if err := s.store.UpdateEvaluation(ctx, e); err != nil {
		return Evaluation{}, err
	}
	return e, nil
}

// RequestRemoval flags the evaluator's own assignment for administrator
// action, e.g. "I never actually worked with this person".
func (s *Submission) RequestRemoval(ctx context.Context, actor Actor, evaluationID, reason string) (Evaluation, error) {
	e, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return Evaluation{}, err
	}
	if err := s.checkOwner(actor, e); err != nil {
		return Evaluation{}, err
	}
	switch e.Status {
	case EvalPending, EvalOpen, EvalOngoing:
	default:
		return Evaluation{}, preconditionf("evaluation cannot be flagged for removal in status %s", e.Status)
	}
	e.Status = EvalForRemoval
	if reason != "" {
		e.Comments = reason
	}
	if err := s.store.UpdateEvaluation(ctx, e); err != nil {
		return Evaluation{}, err
	}
	return e, nil
}

// ApproveRemoval is the administrator half of the removal branch.
func (s *Submission) ApproveRemoval(ctx context.Context, actor Actor, evaluationID string) (Evaluation, error) {
	if !actor.Admin {
		return Evaluation{}, permissionf("only administrators may approve removals")
	}
	e, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return Evaluation{}, err
	}
	if e.Status != EvalForRemoval {
		return Evaluation{}, preconditionf("evaluation is not flagged for removal")
	}
	e.Status = EvalRemoved
	if err := s.store.UpdateEvaluation(ctx, e); err != nil {
		return Evaluation{}, err
	}
	// the removed row no longer counts against completion
	if err := s.aggregator.AggregateIfComplete(ctx, e.ResultID); err != nil {
		return Evaluation{}, err
	}
	return e, nil
}

// DeclineRemoval puts the evaluation back into the open flow.
func (s *Submission) DeclineRemoval(ctx context.Context, actor Actor, evaluationID string) (Evaluation, error) {
	if !actor.Admin {
		return Evaluation{}, permissionf("only administrators may decline removals")
	}
	e, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return Evaluation{}, err
	}
	if e.Status != EvalForRemoval {
		return Evaluation{}, preconditionf("evaluation is not flagged for removal")
	}
	ratings, err := s.store.ListRatingsByEvaluation(ctx, evaluationID)
	if err != nil {
		return Evaluation{}, err
	}
	e.Status = EvalOpen
	for _, r := range ratings {
		if r.AnswerOptionID != "" {
			e.Status = EvalOngoing
			break
		}
	}
	if err := s.store.UpdateEvaluation(ctx, e); err != nil {
		return Evaluation{}, err
	}
	return e, nil
}

func (s *Submission) checkOwner(actor Actor, e Evaluation) error {
	if e.EvaluatorID != "" {
		if actor.UserID != e.EvaluatorID {
			return permissionf("evaluation is assigned to a different evaluator")
		}
		return nil
	}
	if actor.ExternalID != e.ExternalEvaluatorID || e.ExternalEvaluatorID == "" {
		return permissionf("evaluation is assigned to a different evaluator")
	}
	return nil
}

func (s *Submission) validateComplete(ctx context.Context, e Evaluation, ratings []Rating) error {
	if len(ratings) == 0 {
		return preconditionf("evaluation has no rating slots")
	}
	for _, r := range ratings {
		if r.AnswerOptionID == "" {
			return validationf("answers", "all rating slots must be answered before submitting")
		}
	}

	tmpl, err := s.store.GetTemplate(ctx, e.TemplateID)
	if err != nil {
		return err
	}
	options, err := s.store.ListAnswerOptionsByScale(ctx, tmpl.AnswerScaleID)
	if err != nil {
		return err
	}
	if len(options) == 0 {
		return nil
	}
	// options are ordered by sequence; the ends are the extreme tiers
	lowest := options[0].ID
	highest := options[len(options)-1].ID

	var high, low int
	for _, r := range ratings {
		switch r.AnswerOptionID {
		case highest:
			high++
		case lowest:
			low++
		}
	}
	n := float64(len(ratings))
	if float64(high+low)/n >= extremeAnswerThreshold && e.Comments == "" {
		return validationf("comment", "a comment is required when most answers are at the extremes of the scale")
	}
	return nil
}

// score computes the submitted scores:
//
//	raw_score      = sum(rating.score) / sum(rating.percentage)
//	weight         = days(eval window) / days(administration period) * percent_involvement
//	weighted_score = weight * raw_score
//
// Day counts are inclusive, so a single-day window counts as one day.
func (s *Submission) score(e *Evaluation, ratings []Rating, admin Administration) {
	var sumScore, sumPct float64
	for _, r := range ratings {
		sumScore += r.Score
		sumPct += r.Percentage
	}
	if sumPct > 0 {
		e.Score = round2(sumScore / sumPct)
	}
	evalDays := Window{Start: e.PeriodStart, End: e.PeriodEnd}.Days()
	periodDays := Window{Start: admin.PeriodStart, End: admin.PeriodEnd}.Days()
	e.Weight = float64(evalDays) / float64(periodDays) * e.PercentInvolvement
	e.WeightedScore = round2(e.Weight * e.Score)
}

// notifyIfEvaluatorDone fires the "evaluator completed" notification when the
// evaluator's last outstanding evaluation in the administration was just
// submitted. Best effort: failures are logged, never returned.
func (s *Submission) notifyIfEvaluatorDone(ctx context.Context, e Evaluation) {
	t := true
	remaining, err := s.store.ListEvaluations(ctx, EvaluationFilter{
		AdministrationID:    e.AdministrationID,
		EvaluatorID:         e.EvaluatorID,
		ExternalEvaluatorID: e.ExternalEvaluatorID,
		ForEvaluation:       &t,
		Statuses:            openStatuses,
	})
	if err != nil {
		s.log.Warn("completion check failed", zap.String("evaluation_id", e.ID), zap.Error(err))
		return
	}
	if len(remaining) > 0 {
		return
	}

	admin, err := s.store.GetAdministration(ctx, e.AdministrationID)
	if err != nil {
		s.log.Warn("completion notification skipped", zap.Error(err))
		return
	}
	var name, email string
	if e.EvaluatorID != "" {
		u, err := s.store.GetUser(ctx, e.EvaluatorID)
		if err != nil {
			s.log.Warn("completion notification skipped", zap.Error(err))
			return
		}
		name, email = u.FullName(), u.Email
	} else {
		x, err := s.store.GetExternalEvaluator(ctx, e.ExternalEvaluatorID)
		if err != nil {
			s.log.Warn("completion notification skipped", zap.Error(err))
			return
		}
		name, email = x.FirstName+" "+x.LastName, x.Email
	}
	subject := fmt.Sprintf("Thank you for completing %s", admin.Name)
	body := fmt.Sprintf("<p>Hi %s,</p><p>You have completed all of your evaluations for %s. Thank you!</p>", name, admin.Name)
	if err := s.outbox.Enqueue(ctx, email, subject, body); err != nil {
		s.log.Warn("enqueue completion notification failed", zap.Error(err))
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
