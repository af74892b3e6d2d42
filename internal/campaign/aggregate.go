package campaign

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"
)

// Aggregator rolls submitted ratings up through the two rollup levels:
// evaluation -> result detail (per template) -> result.
type Aggregator struct {
	store Store
	log   *zap.Logger
}

func NewAggregator(store Store, log *zap.Logger) *Aggregator {
	return &Aggregator{store: store, log: log}
}

// AggregateIfComplete recomputes the result if none of its evaluations is
// still outstanding. Called after every submission and removal.
func (a *Aggregator) AggregateIfComplete(ctx context.Context, resultID string) error {
	t := true
	outstanding, err := a.store.ListEvaluations(ctx, EvaluationFilter{
		ResultID:      resultID,
		ForEvaluation: &t,
		Statuses:      openStatuses,
	})
	if err != nil {
		return err
	}
	if len(outstanding) > 0 {
		return nil
	}
	_, err = a.AggregateResult(ctx, resultID)
	return err
}

// AggregateResult recomputes both rollup levels unconditionally.
//
// Level 1, per detail: score = sum(weighted_score) / sum(weight) over the
// detail's submitted evaluations; weighted_score = detail weight * score.
// Level 2: result score = sum(detail weighted_score) / sum(detail weight),
// counting only details that had at least one submitted evaluation: a
// template nobody submitted under contributes no denominator term.
func (a *Aggregator) AggregateResult(ctx context.Context, resultID string) (Result, error) {
	result, err := a.store.GetResult(ctx, resultID)
	if err != nil {
		return Result{}, err
	}
	details, err := a.store.ListDetailsByResult(ctx, resultID)
	if err != nil {
		return Result{}, err
	}

	t := true
	var sumWeighted, sumWeight float64
	for _, d := range details {
		evals, err := a.store.ListEvaluations(ctx, EvaluationFilter{
			ResultID:      resultID,
			TemplateID:    d.TemplateID,
			ForEvaluation: &t,
			Statuses:      []EvaluationStatus{EvalSubmitted},
		})
		if err != nil {
			return Result{}, err
		}

		var sw, w float64
		for _, e := range evals {
			sw += e.WeightedScore
			w += e.Weight
		}
		if w == 0 {
			// nothing submitted under this template; leave it out entirely
			d.Score = 0
			d.WeightedScore = 0
		} else {
			d.Score = round2(sw / w)
			d.WeightedScore = round2(d.Weight * d.Score)
			sumWeighted += d.WeightedScore
			sumWeight += d.Weight
		}
		if err := a.store.UpdateResultDetail(ctx, d); err != nil {
			return Result{}, err
		}
	}

	if sumWeight == 0 {
		result.Score = 0
		result.Status = ResultNoResult
	} else {
		result.Score = round2(sumWeighted / sumWeight)
		result.Status = ResultCompleted
	}
	if err := a.store.UpdateResult(ctx, result); err != nil {
		return Result{}, err
	}
	return result, nil
}

// BandResults assigns z-scores and banding labels across an administration's
// completed results. Runs once, after the close pass has aggregated every
// result.
func (a *Aggregator) BandResults(ctx context.Context, administrationID string) error {
	results, err := a.store.ListResultsByAdministration(ctx, administrationID)
	if err != nil {
		return err
	}
	var completed []Result
	var sum float64
	for _, r := range results {
		if r.Status == ResultCompleted {
			completed = append(completed, r)
			sum += r.Score
		}
	}
	if len(completed) == 0 {
		return nil
	}

	mean := sum / float64(len(completed))
	var variance float64
	for _, r := range completed {
		variance += (r.Score - mean) * (r.Score - mean)
	}
	stddev := math.Sqrt(variance / float64(len(completed)))

	for _, r := range completed {
		if stddev > 0 {
			r.ZScore = round2((r.Score - mean) / stddev)
		} else {
			r.ZScore = 0
		}
		band, err := a.store.ScoreRatingFor(ctx, r.Score)
		if err != nil {
			var nf *NotFoundError
			if !errors.As(err, &nf) {
				return err
			}
			a.log.Warn("no score band covers result score",
				zap.String("result_id", r.ID), zap.Float64("score", r.Score))
		} else {
			r.Banding = band.Name
			r.ScoreRatingID = band.ID
		}
		if err := a.store.UpdateResult(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
