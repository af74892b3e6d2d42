package campaign

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newAdminFixture builds a draft administration with a generated roster for
// evaluee "eva": every evaluation reviewed into the draft pool and the result
// marked ready, one step away from Generate.
func newAdminFixture(t *testing.T) (Store, *Administrations, *recordingOutbox, Administration) {
	t.Helper()
	ctx := context.Background()
	store := NewInMemoryStore()
	seedStaffing(t, store)
	seedScale(t, store)
	for _, tpl := range []string{"tpl-pm", "tpl-peer-dev", "tpl-hr"} {
		require.NoError(t, store.PutTemplateContent(ctx, TemplateContent{
			ID: "c-" + tpl + "-1", TemplateID: tpl, Name: "Quality of Work", Rate: 60, Sequence: 1, Active: true,
		}))
		require.NoError(t, store.PutTemplateContent(ctx, TemplateContent{
			ID: "c-" + tpl + "-2", TemplateID: tpl, Name: "Communication", Rate: 40, Sequence: 2, Active: true,
		}))
	}

	log := zap.NewNop()
	outbox := &recordingOutbox{}
	agg := NewAggregator(store, log)
	svc := NewAdministrations(store, outbox, agg, log)
	svc.BaseURL = "https://perf.example.com"

	admin, err := svc.Create(ctx, AdministrationInput{
		Name:          "Q1 2025 Performance Review",
		PeriodStart:   day(2025, 1, 1),
		PeriodEnd:     day(2025, 3, 31),
		ScheduleStart: day(2025, 4, 1),
		ScheduleEnd:   day(2025, 4, 15),
	})
	require.NoError(t, err)

	gen := NewGenerator(store, log)
	results, err := gen.GenerateAssignments(ctx, admin.ID, []string{"eva"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	evals, err := store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: admin.ID})
	require.NoError(t, err)
	for _, e := range evals {
		_, err := svc.SetEvaluationInclusion(ctx, e.ID, true)
		require.NoError(t, err)
	}
	_, err = svc.SetResultStatus(ctx, results[0].ID, ResultReady)
	require.NoError(t, err)

	return store, svc, outbox, admin
}

func TestCreateAdministrationValidation(t *testing.T) {
	svc := NewAdministrations(NewInMemoryStore(), NopOutbox{}, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, AdministrationInput{
		PeriodStart: day(2025, 1, 1), PeriodEnd: day(2025, 3, 31),
		ScheduleStart: day(2025, 4, 1), ScheduleEnd: day(2025, 4, 15),
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	_, err = svc.Create(ctx, AdministrationInput{
		Name:        "backwards",
		PeriodStart: day(2025, 3, 31), PeriodEnd: day(2025, 1, 1),
		ScheduleStart: day(2025, 4, 1), ScheduleEnd: day(2025, 4, 15),
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "eval_period_end_date", ve.Field)

	a, err := svc.Create(ctx, AdministrationInput{
		Name:        "Q1 2025",
		PeriodStart: day(2025, 1, 1), PeriodEnd: day(2025, 3, 31),
		ScheduleStart: day(2025, 4, 1), ScheduleEnd: day(2025, 4, 15),
	})
	require.NoError(t, err)
	assert.Equal(t, AdminDraft, a.Status)
	assert.Equal(t, KindEvaluation, a.Kind)
}

func TestDeleteOnlyDrafts(t *testing.T) {
	_, svc, _, admin := newAdminFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, admin.ID))

	_, err := svc.Get(ctx, admin.ID)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestGenerateEligibility(t *testing.T) {
	store, svc, _, admin := newAdminFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.CheckGenerateEligibility(ctx, admin.ID))

	// a result flipped back to for-review blocks generation
	results, err := store.ListResultsByAdministration(ctx, admin.ID)
	require.NoError(t, err)
	_, err = svc.SetResultStatus(ctx, results[0].ID, ResultForReview)
	require.NoError(t, err)

	err = svc.CheckGenerateEligibility(ctx, admin.ID)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "ready")

	// no roster at all
	empty, err := svc.Create(ctx, AdministrationInput{
		Name:        "Empty",
		PeriodStart: day(2025, 1, 1), PeriodEnd: day(2025, 3, 31),
		ScheduleStart: day(2025, 4, 1), ScheduleEnd: day(2025, 4, 15),
	})
	require.NoError(t, err)
	err = svc.CheckGenerateEligibility(ctx, empty.ID)
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "no evaluees")
}

func TestGenerateBeforeScheduleGoesPending(t *testing.T) {
	store, svc, outbox, admin := newAdminFixture(t)
	ctx := context.Background()
	svc.now = func() time.Time { return day(2025, 3, 20) }

	got, err := svc.Generate(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, AdminPending, got.Status)

	evals, err := store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: admin.ID})
	require.NoError(t, err)
	for _, e := range evals {
		assert.Equal(t, EvalPending, e.Status)
		ratings, err := store.ListRatingsByEvaluation(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, ratings, 2, "one rating slot per active template content")
		// slot weights snapshot the content rates at generation time
		assert.Equal(t, 100.0, ratings[0].Percentage+ratings[1].Percentage)
		assert.Empty(t, ratings[0].AnswerOptionID)
	}

	// nothing opened yet, so no invitations
	assert.Empty(t, outbox.recipients())
}

func TestGenerateInsideScheduleOpensImmediately(t *testing.T) {
	store, svc, outbox, admin := newAdminFixture(t)
	ctx := context.Background()
	svc.now = func() time.Time { return day(2025, 4, 2) }

	got, err := svc.Generate(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, AdminOngoing, got.Status)

	evals, err := store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: admin.ID})
	require.NoError(t, err)
	for _, e := range evals {
		assert.Equal(t, EvalOpen, e.Status)
	}

	results, err := store.ListResultsByAdministration(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, ResultOngoing, results[0].Status)

	// one invitation per distinct evaluator: pm, dev2 and hr1
	recips := outbox.recipients()
	assert.ElementsMatch(t, []string{"pm@example.com", "dev2@example.com", "hr1@example.com"}, recips)
	assert.Contains(t, outbox.emails[0].Subject, "Q1 2025 Performance Review")
	assert.Contains(t, outbox.emails[0].Body, "https://perf.example.com/evaluation-administrations/"+admin.ID)
}

func TestAdvanceOpensAndCloses(t *testing.T) {
	store, svc, _, admin := newAdminFixture(t)
	ctx := context.Background()

	svc.now = func() time.Time { return day(2025, 3, 20) }
	_, err := svc.Generate(ctx, admin.ID)
	require.NoError(t, err)

	// before the window nothing moves
	require.NoError(t, svc.Advance(ctx))
	cur, err := svc.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, AdminPending, cur.Status)

	// inside the window the administration opens
	svc.now = func() time.Time { return day(2025, 4, 3) }
	require.NoError(t, svc.Advance(ctx))
	cur, err = svc.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, AdminOngoing, cur.Status)

	evals, err := store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: admin.ID, Statuses: []EvaluationStatus{EvalOpen}})
	require.NoError(t, err)
	assert.NotEmpty(t, evals)

	// past the schedule end it closes on its own
	svc.now = func() time.Time { return day(2025, 4, 16) }
	require.NoError(t, svc.Advance(ctx))
	cur, err = svc.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, AdminClosed, cur.Status)
}

func TestAdvanceClosesStrandedPending(t *testing.T) {
	store, svc, outbox, admin := newAdminFixture(t)
	ctx := context.Background()

	svc.now = func() time.Time { return day(2025, 3, 20) }
	_, err := svc.Generate(ctx, admin.ID)
	require.NoError(t, err)

	// no sweep ran for the whole schedule window; the next one closes the
	// administration without inviting anyone
	svc.now = func() time.Time { return day(2025, 4, 20) }
	require.NoError(t, svc.Advance(ctx))

	cur, err := svc.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, AdminClosed, cur.Status)
	assert.Empty(t, outbox.recipients())

	evals, err := store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: admin.ID})
	require.NoError(t, err)
	require.NotEmpty(t, evals)
	for _, e := range evals {
		assert.Equal(t, EvalExpired, e.Status)
	}

	results, err := store.ListResultsByAdministration(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultNoResult, results[0].Status)
}

func TestCloseExpiresOpenEvaluations(t *testing.T) {
	store, svc, _, admin := newAdminFixture(t)
	ctx := context.Background()
	svc.now = func() time.Time { return day(2025, 4, 2) }
	_, err := svc.Generate(ctx, admin.ID)
	require.NoError(t, err)

	// submit just the project manager's evaluation
	log := zap.NewNop()
	sub := NewSubmission(store, NopOutbox{}, NewAggregator(store, log), log)
	evals, err := store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: admin.ID, EvaluatorID: "pm"})
	require.NoError(t, err)
	require.Len(t, evals, 1)
	ratings, err := store.ListRatingsByEvaluation(ctx, evals[0].ID)
	require.NoError(t, err)
	var answers []AnswerInput
	for _, r := range ratings {
		answers = append(answers, AnswerInput{RatingID: r.ID, AnswerOptionID: "opt-Good"})
	}
	_, err = sub.SubmitEvaluation(ctx, Actor{UserID: "pm"}, evals[0].ID, answers, "", true)
	require.NoError(t, err)

	got, err := svc.Close(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, AdminClosed, got.Status)

	// unsubmitted work expired, the submitted row survived
	all, err := store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: admin.ID})
	require.NoError(t, err)
	var expired, submitted int
	for _, e := range all {
		switch e.Status {
		case EvalExpired:
			expired++
		case EvalSubmitted:
			submitted++
		}
	}
	assert.Equal(t, 2, expired)
	assert.Equal(t, 1, submitted)

	// the result completed from the submitted evaluation alone
	results, err := store.ListResultsByAdministration(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, results[0].Status)
	assert.Equal(t, 4.0, results[0].Score)

	// closing twice is rejected
	_, err = svc.Close(ctx, admin.ID)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.True(t, strings.Contains(pe.Error(), "ongoing"))
}

func TestReopenRestoresExpired(t *testing.T) {
	store, svc, _, admin := newAdminFixture(t)
	ctx := context.Background()
	svc.now = func() time.Time { return day(2025, 4, 2) }
	_, err := svc.Generate(ctx, admin.ID)
	require.NoError(t, err)
	_, err = svc.Close(ctx, admin.ID)
	require.NoError(t, err)

	got, err := svc.Reopen(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, AdminOngoing, got.Status)

	evals, err := store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: admin.ID})
	require.NoError(t, err)
	for _, e := range evals {
		assert.Equal(t, EvalOpen, e.Status)
	}
	results, err := store.ListResultsByAdministration(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, ResultOngoing, results[0].Status)
}

func TestCancelPendingAdministration(t *testing.T) {
	store, svc, _, admin := newAdminFixture(t)
	ctx := context.Background()
	svc.now = func() time.Time { return day(2025, 3, 20) }
	_, err := svc.Generate(ctx, admin.ID)
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, AdminCancelled, got.Status)

	evals, err := store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: admin.ID})
	require.NoError(t, err)
	for _, e := range evals {
		assert.Equal(t, EvalCancelled, e.Status)
	}
	results, err := store.ListResultsByAdministration(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, ResultCancelled, results[0].Status)

	// a draft cannot be cancelled, only deleted
	draft, err := svc.Create(ctx, AdministrationInput{
		Name:        "Draft",
		PeriodStart: day(2025, 1, 1), PeriodEnd: day(2025, 3, 31),
		ScheduleStart: day(2025, 4, 1), ScheduleEnd: day(2025, 4, 15),
	})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, draft.ID)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
}

func TestPublishNotifiesCompletedEvaluees(t *testing.T) {
	store, svc, outbox, admin := newAdminFixture(t)
	ctx := context.Background()
	svc.now = func() time.Time { return day(2025, 4, 2) }
	_, err := svc.Generate(ctx, admin.ID)
	require.NoError(t, err)

	// complete one evaluation so the evaluee has a score to see
	log := zap.NewNop()
	sub := NewSubmission(store, NopOutbox{}, NewAggregator(store, log), log)
	evals, err := store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: admin.ID, EvaluatorID: "pm"})
	require.NoError(t, err)
	ratings, err := store.ListRatingsByEvaluation(ctx, evals[0].ID)
	require.NoError(t, err)
	var answers []AnswerInput
	for _, r := range ratings {
		answers = append(answers, AnswerInput{RatingID: r.ID, AnswerOptionID: "opt-Satisfactory"})
	}
	_, err = sub.SubmitEvaluation(ctx, Actor{UserID: "pm"}, evals[0].ID, answers, "", true)
	require.NoError(t, err)

	_, err = svc.Close(ctx, admin.ID)
	require.NoError(t, err)

	outbox.emails = nil // drop the invitation batch
	got, err := svc.Publish(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, AdminPublished, got.Status)
	assert.Equal(t, []string{"eva@example.com"}, outbox.recipients())

	// publishing twice is rejected
	_, err = svc.Publish(ctx, admin.ID)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
}

func TestSetResultStatusGuards(t *testing.T) {
	store, svc, _, admin := newAdminFixture(t)
	ctx := context.Background()

	results, err := store.ListResultsByAdministration(ctx, admin.ID)
	require.NoError(t, err)

	_, err = svc.SetResultStatus(ctx, results[0].ID, ResultCompleted)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
}

func TestSetEvaluationInclusionGuards(t *testing.T) {
	store, svc, _, admin := newAdminFixture(t)
	ctx := context.Background()

	evals, err := store.ListEvaluations(ctx, EvaluationFilter{AdministrationID: admin.ID})
	require.NoError(t, err)
	e := evals[0] // draft after fixture review

	// excluding and re-including flips status and the inclusion flag
	excluded, err := svc.SetEvaluationInclusion(ctx, e.ID, false)
	require.NoError(t, err)
	assert.Equal(t, EvalExcluded, excluded.Status)
	assert.False(t, excluded.ForEvaluation)

	included, err := svc.SetEvaluationInclusion(ctx, e.ID, true)
	require.NoError(t, err)
	assert.Equal(t, EvalDraft, included.Status)
	assert.True(t, included.ForEvaluation)

	// including an already-included row is a no-op conflict
	_, err = svc.SetEvaluationInclusion(ctx, e.ID, true)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
}
