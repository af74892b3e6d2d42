package notify

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Email is one queued outbound notification. Token substitution has already
// happened by the time a row lands here; the dispatcher only delivers.
type Email struct {
	ID        string
	Recipient string
	Subject   string
	Body      string
	Status    Status
	LastError string
	Retries   int
	CreatedAt int64
	SentAt    int64
}

// Queue is the outbox: transitions append, the dispatcher drains.
type Queue interface {
	Enqueue(ctx context.Context, recipient, subject, body string) error
	ListPending(ctx context.Context, limit int) ([]Email, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

type sqlQueue struct{ db *sql.DB }

func NewSQLQueue(db *sql.DB) Queue { return &sqlQueue{db: db} }

func (q *sqlQueue) Enqueue(ctx context.Context, recipient, subject, body string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO email_logs (id, recipient, subject, body, status, retries, created_at)
		 VALUES ($1,$2,$3,$4,$5,0,$6)`,
		uuid.NewString(), recipient, subject, body, StatusPending, time.Now().Unix())
	return err
}

func (q *sqlQueue) ListPending(ctx context.Context, limit int) ([]Email, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, recipient, subject, body, status, last_error, retries, created_at
		 FROM email_logs WHERE status=$1 ORDER BY created_at ASC LIMIT $2`,
		StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Email
	for rows.Next() {
		var e Email
		var lastErr sql.NullString
		if err := rows.Scan(&e.ID, &e.Recipient, &e.Subject, &e.Body, &e.Status, &lastErr, &e.Retries, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.LastError = lastErr.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *sqlQueue) MarkSent(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE email_logs SET status=$1, sent_at=$2 WHERE id=$3`,
		StatusSent, time.Now().Unix(), id)
	return err
}

func (q *sqlQueue) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE email_logs SET status=$1, last_error=$2, retries=retries+1 WHERE id=$3`,
		StatusFailed, reason, id)
	return err
}

type memoryQueue struct {
	mu     sync.Mutex
	seq    int64
	emails map[string]Email
}

// NewMemoryQueue is the test and mail-disabled-dev backing.
func NewMemoryQueue() Queue {
	return &memoryQueue{emails: map[string]Email{}}
}

func (q *memoryQueue) Enqueue(_ context.Context, recipient, subject, body string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	e := Email{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Status:    StatusPending,
		CreatedAt: q.seq, // monotonic, keeps oldest-first deterministic
	}
	q.emails[e.ID] = e
	return nil
}

func (q *memoryQueue) ListPending(_ context.Context, limit int) ([]Email, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Email
	for _, e := range q.emails {
		if e.Status == StatusPending {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *memoryQueue) MarkSent(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.emails[id]
	e.Status = StatusSent
	e.SentAt = time.Now().Unix()
	q.emails[id] = e
	return nil
}

func (q *memoryQueue) MarkFailed(_ context.Context, id, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.emails[id]
	e.Status = StatusFailed
	e.LastError = reason
	e.Retries++
	q.emails[id] = e
	return nil
}
