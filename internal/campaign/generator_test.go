package campaign

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGeneratorFixture(t *testing.T) (Store, *Generator, Administration) {
	store := NewInMemoryStore()
	seedStaffing(t, store)
	admin := Administration{
		ID:            "adm-1",
		Name:          "Q1 2025 Performance Review",
		Kind:          KindEvaluation,
		PeriodStart:   day(2025, 1, 1),
		PeriodEnd:     day(2025, 3, 31),
		ScheduleStart: day(2025, 4, 1),
		ScheduleEnd:   day(2025, 4, 15),
		Status:        AdminDraft,
	}
	require.NoError(t, store.CreateAdministration(context.Background(), admin))
	return store, NewGenerator(store, zap.NewNop()), admin
}

func TestGenerateAssignmentsForDeveloper(t *testing.T) {
	store, gen, admin := newGeneratorFixture(t)
	ctx := context.Background()

	results, err := gen.GenerateAssignments(ctx, admin.ID, []string{"eva"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultForReview, results[0].Status)
	assert.Equal(t, "eva", results[0].EvalueeID)

	evals, err := store.ListEvaluations(ctx, EvaluationFilter{ResultID: results[0].ID})
	require.NoError(t, err)
	require.Len(t, evals, 3)

	byEvaluator := map[string]Evaluation{}
	for _, e := range evals {
		assert.Equal(t, EvalExcluded, e.Status)
		assert.False(t, e.ForEvaluation)
		byEvaluator[e.EvaluatorID] = e
	}

	// project manager evaluates through the role-pair template, with the
	// engagement window clipped to the membership and its allocation carried
	pmEval := byEvaluator["pm"]
	assert.Equal(t, "tpl-pm", pmEval.TemplateID)
	assert.Equal(t, "proj-1", pmEval.ProjectID)
	assert.Equal(t, 75.0, pmEval.PercentInvolvement)
	assert.Equal(t, day(2025, 1, 1), pmEval.PeriodStart)
	assert.Equal(t, day(2025, 2, 14), pmEval.PeriodEnd)

	peerEval := byEvaluator["dev2"]
	assert.Equal(t, "tpl-peer-dev", peerEval.TemplateID)

	// HR evaluates over the whole period at full involvement
	hrEval := byEvaluator["hr1"]
	assert.Equal(t, "tpl-hr", hrEval.TemplateID)
	assert.Equal(t, 100.0, hrEval.PercentInvolvement)
	assert.Equal(t, admin.PeriodStart, hrEval.PeriodStart)
	assert.Equal(t, admin.PeriodEnd, hrEval.PeriodEnd)

	// inactive co-member never appears
	_, hasGhost := byEvaluator["ghost"]
	assert.False(t, hasGhost)

	// one detail per distinct template, seeded with the template's rate
	details, err := store.ListDetailsByResult(ctx, results[0].ID)
	require.NoError(t, err)
	require.Len(t, details, 3)
	rates := map[string]float64{}
	for _, d := range details {
		rates[d.TemplateID] = d.Weight
	}
	assert.Equal(t, 60.0, rates["tpl-pm"])
	assert.Equal(t, 20.0, rates["tpl-peer-dev"])
	assert.Equal(t, 20.0, rates["tpl-hr"])
}

func TestGenerateAssignmentsProjectManagerGetsBoardRound(t *testing.T) {
	store, gen, admin := newGeneratorFixture(t)
	ctx := context.Background()

	results, err := gen.GenerateAssignments(ctx, admin.ID, []string{"pm"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	evals, err := store.ListEvaluations(ctx, EvaluationFilter{ResultID: results[0].ID})
	require.NoError(t, err)

	templates := map[string]bool{}
	for _, e := range evals {
		templates[e.TemplateID] = true
	}
	assert.True(t, templates["tpl-bod"], "project manager should receive a board evaluation")
	assert.True(t, templates["tpl-hr"])
	// no (project_manager, developer) template exists, so co-members add nothing
	assert.Len(t, evals, 2)
}

func TestGenerateAssignmentsHRGetsPeerRound(t *testing.T) {
	store, gen, admin := newGeneratorFixture(t)
	ctx := context.Background()

	results, err := gen.GenerateAssignments(ctx, admin.ID, []string{"hr1"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	evals, err := store.ListEvaluations(ctx, EvaluationFilter{ResultID: results[0].ID})
	require.NoError(t, err)

	evaluators := map[string]bool{}
	for _, e := range evals {
		assert.Equal(t, "tpl-peer", e.TemplateID)
		assert.NotEqual(t, "hr1", e.EvaluatorID, "nobody rates themselves")
		evaluators[e.EvaluatorID] = true
	}
	// every other active user participates in the peer round
	assert.Equal(t, map[string]bool{"eva": true, "pm": true, "dev2": true, "bod1": true}, evaluators)
}

func TestGenerateAssignmentsSkipsExistingEvaluees(t *testing.T) {
	store, gen, admin := newGeneratorFixture(t)
	ctx := context.Background()

	first, err := gen.GenerateAssignments(ctx, admin.ID, []string{"eva"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// re-running with an overlapping selection only creates the new evaluee
	second, err := gen.GenerateAssignments(ctx, admin.ID, []string{"eva", "dev2"})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "dev2", second[0].EvalueeID)

	results, err := store.ListResultsByAdministration(ctx, admin.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestGenerateAssignmentsUnknownAdministration(t *testing.T) {
	store := NewInMemoryStore()
	gen := NewGenerator(store, zap.NewNop())
	_, err := gen.GenerateAssignments(context.Background(), "missing", []string{"eva"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}
