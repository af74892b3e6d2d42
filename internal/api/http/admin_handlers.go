package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/perfcycle/perfcycle/internal/campaign"
)

func ListAdministrationsHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var statuses []campaign.AdministrationStatus
		if q := r.URL.Query().Get("status"); q != "" {
			for _, s := range strings.Split(q, ",") {
				if s = strings.TrimSpace(s); s != "" {
					statuses = append(statuses, campaign.AdministrationStatus(s))
				}
			}
		}
		list, err := svc.List(r.Context(), statuses...)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CreateAdministrationHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in campaign.AdministrationInput
		if err := decodeValid(r, &in); err != nil {
			writeErr(w, err)
			return
		}
		a, err := svc.Create(r.Context(), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

func GetAdministrationHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Get(r.Context(), chi.URLParam(r, "adminID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func UpdateAdministrationHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in campaign.AdministrationInput
		if err := decodeValid(r, &in); err != nil {
			writeErr(w, err)
			return
		}
		a, err := svc.Update(r.Context(), chi.URLParam(r, "adminID"), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func DeleteAdministrationHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "adminID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AddEvalueesHandler fans assignments out for the posted evaluee ids.
// Evaluees that already have a result under the administration are
// skipped; the response carries whatever was created.
func AddEvalueesHandler(gen *campaign.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			EvalueeIDs []string `json:"evaluee_ids" validate:"required,min=1"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		results, err := gen.GenerateAssignments(r.Context(), chi.URLParam(r, "adminID"), req.EvalueeIDs)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, results)
	}
}

func GenerateStatusHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := svc.CheckGenerateEligibility(r.Context(), chi.URLParam(r, "adminID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"eligible": true})
	}
}

func GenerateHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Generate(r.Context(), chi.URLParam(r, "adminID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func CancelAdministrationHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Cancel(r.Context(), chi.URLParam(r, "adminID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func CloseAdministrationHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Close(r.Context(), chi.URLParam(r, "adminID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func ReopenAdministrationHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Reopen(r.Context(), chi.URLParam(r, "adminID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func PublishAdministrationHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Publish(r.Context(), chi.URLParam(r, "adminID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func ListResultsHandler(store campaign.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListResultsByAdministration(r.Context(), chi.URLParam(r, "adminID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GetResultHandler is the administrator's show view: one evaluee's result
// with its per-template detail rows.
func GetResultHandler(store campaign.Store) http.HandlerFunc {
	type out struct {
		campaign.Result
		Details []campaign.ResultDetail `json:"details"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := store.GetResult(r.Context(), chi.URLParam(r, "resultID"))
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

func SetResultStatusHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status campaign.ResultStatus `json:"status" validate:"required"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		res, err := svc.SetResultStatus(r.Context(), chi.URLParam(r, "resultID"), req.Status)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func DeleteResultHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteResult(r.Context(), chi.URLParam(r, "resultID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListResultEvaluationsHandler is the roster-review view: every
// evaluation row hanging off one evaluee's result, included or not.
func ListResultEvaluationsHandler(store campaign.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListEvaluations(r.Context(), campaign.EvaluationFilter{
			ResultID: chi.URLParam(r, "resultID"),
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func SetEvaluationInclusionHandler(svc *campaign.Administrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ForEvaluation *bool `json:"for_evaluation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ForEvaluation == nil {
			writeErr(w, &campaign.ValidationError{Field: "for_evaluation", Msg: "required"})
			return
		}
		e, err := svc.SetEvaluationInclusion(r.Context(), chi.URLParam(r, "evaluationID"), *req.ForEvaluation)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func ApproveRemovalHandler(svc *campaign.Submission) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := svc.ApproveRemoval(r.Context(), actorFrom(r), chi.URLParam(r, "evaluationID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func DeclineRemovalHandler(svc *campaign.Submission) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := svc.DeclineRemoval(r.Context(), actorFrom(r), chi.URLParam(r, "evaluationID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}
