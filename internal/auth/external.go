package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	authmw "github.com/perfcycle/perfcycle/internal/auth/middleware"
	"github.com/perfcycle/perfcycle/internal/rbac"
)

// ExternalLoginHandler exchanges an evaluator id plus the access code
// from the invitation email for a short-lived token. Codes rotate on
// every invitation, so a stale email simply stops working.
func ExternalLoginHandler(a *authmw.AuthService, db *sql.DB) http.HandlerFunc {
	type in struct {
		EvaluatorID string `json:"evaluator_id"`
		AccessCode  string `json:"access_code"`
	}
	type out struct {
		AccessToken string `json:"access_token"`
		Name        string `json:"name"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req in
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.EvaluatorID == "" || req.AccessCode == "" {
			http.Error(w, "evaluator_id and access_code required", http.StatusBadRequest)
			return
		}

		var first, last, hash string
		err := db.QueryRowContext(r.Context(),
			`SELECT first_name, last_name, access_code_hash FROM external_evaluators WHERE id=$1`,
			req.EvaluatorID,
		).Scan(&first, &last, &hash)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.AccessCode)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		tok, err := a.IssueJWT(req.EvaluatorID, rbac.RoleExternal)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(out{AccessToken: tok, Name: first + " " + last})
	}
}
