package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfcycle/perfcycle/internal/campaign"
)

func TestGetResultHandler(t *testing.T) {
	ctx := context.Background()
	store := campaign.NewInMemoryStore()
	require.NoError(t, store.CreateAdministration(ctx, campaign.Administration{
		ID: "adm-1", Name: "Q1 2025 Performance Review", Status: campaign.AdminClosed,
	}))
	require.NoError(t, store.CreateResult(ctx, campaign.Result{
		ID: "res-1", AdministrationID: "adm-1", EvalueeID: "eva",
		Status: campaign.ResultCompleted, Score: 4.4,
	}))
	require.NoError(t, store.CreateResultDetail(ctx, campaign.ResultDetail{
		ID: "det-1", ResultID: "res-1", TemplateID: "tpl-pm", Weight: 60, Score: 4.4,
	}))
	require.NoError(t, store.CreateResultDetail(ctx, campaign.ResultDetail{
		ID: "det-2", ResultID: "res-1", TemplateID: "tpl-hr", Weight: 40, Score: 4.0,
	}))

	r := chi.NewRouter()
	r.Get("/admin/evaluation-results/{resultID}", GetResultHandler(store))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/evaluation-results/res-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		campaign.Result
		Details []campaign.ResultDetail `json:"details"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "res-1", got.ID)
	assert.Equal(t, 4.4, got.Score)
	require.Len(t, got.Details, 2)
	assert.Equal(t, "tpl-pm", got.Details[0].TemplateID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/evaluation-results/res-missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
