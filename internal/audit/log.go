// Package audit keeps an append-only trail of administrative actions.
// Rows are never updated or deleted; the table is the history.
package audit

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	authmw "github.com/perfcycle/perfcycle/internal/auth/middleware"
)

type Entry struct {
	ID        int64
	ActorID   string
	Action    string // e.g. "POST /admin/evaluation-administrations/{id}/close"
	Path      string
	Status    int
	CreatedAt int64
}

type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Append(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (actor_id, action, path, status, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.ActorID, e.Action, e.Path, e.Status, time.Now().Unix())
	return err
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, actor_id, action, path, status, created_at
		 FROM activity_logs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Path, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records every mutating request passing through the wrapped
// routes. Reads are not logged. Recording failures are logged and swallowed;
// an audit hiccup must not fail the request itself.
func Middleware(repo *Repo, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			id := authmw.IdentityFromContext(r.Context())
			err := repo.Append(r.Context(), Entry{
				ActorID: id.Sub,
				Action:  r.Method + " " + r.URL.Path,
				Path:    r.URL.Path,
				Status:  rec.status,
			})
			if err != nil {
				log.Warn("audit append failed", zap.String("path", r.URL.Path), zap.Error(err))
			}
		})
	}
}
