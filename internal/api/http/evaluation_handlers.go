package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/perfcycle/perfcycle/internal/campaign"
)

// ListMyEvaluationsHandler returns the caller's own assignment queue,
// optionally narrowed by status.
func ListMyEvaluationsHandler(store campaign.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorFrom(r)
		forEval := true
		f := campaign.EvaluationFilter{
			AdministrationID:    r.URL.Query().Get("evaluation_administration_id"),
			EvaluatorID:         actor.UserID,
			ExternalEvaluatorID: actor.ExternalID,
			ForEvaluation:       &forEval,
		}
		if q := r.URL.Query().Get("status"); q != "" {
			for _, s := range strings.Split(q, ",") {
				if s = strings.TrimSpace(s); s != "" {
					f.Statuses = append(f.Statuses, campaign.EvaluationStatus(s))
				}
			}
		}
		list, err := store.ListEvaluations(r.Context(), f)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GetEvaluationHandler returns one evaluation plus its rating slots.
// Only the assigned evaluator or an admin may look.
func GetEvaluationHandler(store campaign.Store) http.HandlerFunc {
	type out struct {
		campaign.Evaluation
		Ratings []campaign.Rating `json:"ratings"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := store.GetEvaluation(r.Context(), chi.URLParam(r, "evaluationID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		actor := actorFrom(r)
		owner := (actor.UserID != "" && e.EvaluatorID == actor.UserID) ||
			(actor.ExternalID != "" && e.ExternalEvaluatorID == actor.ExternalID)
		if !owner && !actor.Admin {
			writeErr(w, &campaign.PermissionError{Msg: "not your evaluation"})
			return
		}
		ratings, err := store.ListRatingsByEvaluation(r.Context(), e.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out{Evaluation: e, Ratings: ratings})
	}
}

func SaveAnswerHandler(svc *campaign.Submission) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in campaign.AnswerInput
		if err := decodeValid(r, &in); err != nil {
			writeErr(w, err)
			return
		}
		rating, err := svc.SubmitAnswer(r.Context(), actorFrom(r), chi.URLParam(r, "evaluationID"), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rating)
	}
}

func SaveCommentHandler(svc *campaign.Submission) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Comment string `json:"comment"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		e, err := svc.SubmitComment(r.Context(), actorFrom(r), chi.URLParam(r, "evaluationID"), req.Comment)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// SubmitEvaluationHandler is the final hand-in: any answers in the body
// are applied first, then the whole evaluation is validated and scored.
func SubmitEvaluationHandler(svc *campaign.Submission) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Answers []campaign.AnswerInput `json:"answers" validate:"dive"`
			Comment string                 `json:"comment"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		e, err := svc.SubmitEvaluation(r.Context(), actorFrom(r), chi.URLParam(r, "evaluationID"), req.Answers, req.Comment, true)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func RequestRemovalHandler(svc *campaign.Submission) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Comment string `json:"comment" validate:"required"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		e, err := svc.RequestRemoval(r.Context(), actorFrom(r), chi.URLParam(r, "evaluationID"), req.Comment)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// MyResultHandler lets an evaluee see their own scores once the
// administration has been published.
func MyResultHandler(store campaign.Store, admins *campaign.Administrations) http.HandlerFunc {
	type out struct {
		campaign.Result
		Details []campaign.ResultDetail `json:"details"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorFrom(r)
		adminID := chi.URLParam(r, "adminID")
		a, err := admins.Get(r.Context(), adminID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if a.Status != campaign.AdminPublished && !actor.Admin {
			writeErr(w, &campaign.PreconditionError{Msg: "results are not yet published"})
			return
		}
		res, err := store.GetResultByEvaluee(r.Context(), adminID, actor.UserID)
		if err != nil {
			writeErr(w, err)
			return
		}
		details, err := store.ListDetailsByResult(r.Context(), res.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out{Result: res, Details: details})
	}
}
