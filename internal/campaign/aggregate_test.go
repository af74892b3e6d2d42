package campaign

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedResultWithDetails(t *testing.T, store Store) Result {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateAdministration(ctx, Administration{
		ID: "adm-1", Name: "Q1 2025", PeriodStart: day(2025, 1, 1), PeriodEnd: day(2025, 3, 31),
		ScheduleStart: day(2025, 4, 1), ScheduleEnd: day(2025, 4, 15), Status: AdminOngoing,
	}))
	res := Result{ID: "res-1", AdministrationID: "adm-1", EvalueeID: "eva", Status: ResultOngoing}
	require.NoError(t, store.CreateResult(ctx, res))
	require.NoError(t, store.CreateResultDetail(ctx, ResultDetail{ID: "det-a", ResultID: res.ID, TemplateID: "tpl-a", Weight: 60}))
	require.NoError(t, store.CreateResultDetail(ctx, ResultDetail{ID: "det-b", ResultID: res.ID, TemplateID: "tpl-b", Weight: 40}))
	return res
}

func submittedEval(id, templateID string, weight, weighted float64) Evaluation {
	return Evaluation{
		ID: id, ResultID: "res-1", AdministrationID: "adm-1", TemplateID: templateID,
		EvaluatorID: "someone-" + id, EvalueeID: "eva",
		Status: EvalSubmitted, ForEvaluation: true,
		Weight: weight, WeightedScore: weighted,
	}
}

func TestAggregateResultTwoLevels(t *testing.T) {
	store := NewInMemoryStore()
	res := seedResultWithDetails(t, store)
	ctx := context.Background()

	// tpl-a: two submissions, weighted mean (20+12)/(5+3) = 4
	require.NoError(t, store.CreateEvaluation(ctx, submittedEval("e1", "tpl-a", 5, 20)))
	require.NoError(t, store.CreateEvaluation(ctx, submittedEval("e2", "tpl-a", 3, 12)))
	// tpl-b: one submission, 9/3 = 3
	require.NoError(t, store.CreateEvaluation(ctx, submittedEval("e3", "tpl-b", 3, 9)))

	agg := NewAggregator(store, zap.NewNop())
	got, err := agg.AggregateResult(ctx, res.ID)
	require.NoError(t, err)

	details, err := store.ListDetailsByResult(ctx, res.ID)
	require.NoError(t, err)
	byTemplate := map[string]ResultDetail{}
	for _, d := range details {
		byTemplate[d.TemplateID] = d
	}
	assert.Equal(t, 4.0, byTemplate["tpl-a"].Score)
	assert.Equal(t, 240.0, byTemplate["tpl-a"].WeightedScore) // 60 * 4
	assert.Equal(t, 3.0, byTemplate["tpl-b"].Score)
	assert.Equal(t, 120.0, byTemplate["tpl-b"].WeightedScore) // 40 * 3

	// result = (240 + 120) / (60 + 40) = 3.6
	assert.Equal(t, ResultCompleted, got.Status)
	assert.Equal(t, 3.6, got.Score)
}

func TestAggregateResultSkipsEmptyTemplates(t *testing.T) {
	store := NewInMemoryStore()
	res := seedResultWithDetails(t, store)
	ctx := context.Background()

	// only tpl-a has a submission; tpl-b must not drag the score down
	require.NoError(t, store.CreateEvaluation(ctx, submittedEval("e1", "tpl-a", 5, 20)))

	agg := NewAggregator(store, zap.NewNop())
	got, err := agg.AggregateResult(ctx, res.ID)
	require.NoError(t, err)

	assert.Equal(t, ResultCompleted, got.Status)
	assert.Equal(t, 4.0, got.Score)

	details, err := store.ListDetailsByResult(ctx, res.ID)
	require.NoError(t, err)
	for _, d := range details {
		if d.TemplateID == "tpl-b" {
			assert.Zero(t, d.Score)
			assert.Zero(t, d.WeightedScore)
		}
	}
}

func TestAggregateResultNothingSubmitted(t *testing.T) {
	store := NewInMemoryStore()
	res := seedResultWithDetails(t, store)

	agg := NewAggregator(store, zap.NewNop())
	got, err := agg.AggregateResult(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, ResultNoResult, got.Status)
	assert.Zero(t, got.Score)
}

func TestAggregateIfCompleteWaitsForOutstanding(t *testing.T) {
	store := NewInMemoryStore()
	res := seedResultWithDetails(t, store)
	ctx := context.Background()

	require.NoError(t, store.CreateEvaluation(ctx, submittedEval("e1", "tpl-a", 5, 20)))
	open := submittedEval("e2", "tpl-b", 0, 0)
	open.Status = EvalOpen
	require.NoError(t, store.CreateEvaluation(ctx, open))

	agg := NewAggregator(store, zap.NewNop())
	require.NoError(t, agg.AggregateIfComplete(ctx, res.ID))

	cur, err := store.GetResult(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, ResultOngoing, cur.Status, "an open evaluation must block the rollup")
}

func TestBandResults(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateAdministration(ctx, Administration{
		ID: "adm-1", Name: "Q1 2025", Status: AdminOngoing,
		PeriodStart: day(2025, 1, 1), PeriodEnd: day(2025, 3, 31),
		ScheduleStart: day(2025, 4, 1), ScheduleEnd: day(2025, 4, 15),
	}))
	bands := []ScoreRating{
		{ID: "band-low", Name: "Needs Improvement", MinScore: 0, MaxScore: 2.49},
		{ID: "band-mid", Name: "Meets Expectations", MinScore: 2.5, MaxScore: 3.99},
		{ID: "band-high", Name: "Exceeds Expectations", MinScore: 4, MaxScore: 5},
	}
	for _, b := range bands {
		require.NoError(t, store.PutScoreRating(ctx, b))
	}
	require.NoError(t, store.CreateResult(ctx, Result{ID: "res-1", AdministrationID: "adm-1", EvalueeID: "a", Status: ResultCompleted, Score: 4}))
	require.NoError(t, store.CreateResult(ctx, Result{ID: "res-2", AdministrationID: "adm-1", EvalueeID: "b", Status: ResultCompleted, Score: 2}))
	require.NoError(t, store.CreateResult(ctx, Result{ID: "res-3", AdministrationID: "adm-1", EvalueeID: "c", Status: ResultCancelled}))

	agg := NewAggregator(store, zap.NewNop())
	require.NoError(t, agg.BandResults(ctx, "adm-1"))

	// mean 3, stddev 1
	r1, _ := store.GetResult(ctx, "res-1")
	assert.Equal(t, 1.0, r1.ZScore)
	assert.Equal(t, "Exceeds Expectations", r1.Banding)
	assert.Equal(t, "band-high", r1.ScoreRatingID)

	r2, _ := store.GetResult(ctx, "res-2")
	assert.Equal(t, -1.0, r2.ZScore)
	assert.Equal(t, "Needs Improvement", r2.Banding)

	// cancelled results are untouched
	r3, _ := store.GetResult(ctx, "res-3")
	assert.Zero(t, r3.ZScore)
	assert.Empty(t, r3.Banding)
}

func TestBandResultsSingleResult(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateAdministration(ctx, Administration{
		ID: "adm-1", Name: "Q1 2025", Status: AdminOngoing,
		PeriodStart: day(2025, 1, 1), PeriodEnd: day(2025, 3, 31),
		ScheduleStart: day(2025, 4, 1), ScheduleEnd: day(2025, 4, 15),
	}))
	require.NoError(t, store.PutScoreRating(ctx, ScoreRating{ID: "band", Name: "Meets Expectations", MinScore: 0, MaxScore: 5}))
	require.NoError(t, store.CreateResult(ctx, Result{ID: "res-1", AdministrationID: "adm-1", EvalueeID: "a", Status: ResultCompleted, Score: 3.7}))

	agg := NewAggregator(store, zap.NewNop())
	require.NoError(t, agg.BandResults(ctx, "adm-1"))

	// zero spread: z-score stays zero instead of dividing by zero
	r, _ := store.GetResult(ctx, "res-1")
	assert.Zero(t, r.ZScore)
	assert.Equal(t, "Meets Expectations", r.Banding)
}
