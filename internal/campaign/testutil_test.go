package campaign

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// recordingOutbox captures enqueued notifications for assertions.
type recordingOutbox struct {
	mu     sync.Mutex
	emails []recordedEmail
}

type recordedEmail struct {
	Recipient string
	Subject   string
	Body      string
}

func (o *recordingOutbox) Enqueue(_ context.Context, recipient, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emails = append(o.emails, recordedEmail{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

func (o *recordingOutbox) recipients() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, e := range o.emails {
		out = append(out, e.Recipient)
	}
	return out
}

// seedStaffing loads the staffing graph the generator tests run against:
// one project staffed by a developer evaluee, a project manager and a second
// developer, plus an HR user and a board member outside the project.
func seedStaffing(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	users := []User{
		{ID: "eva", FirstName: "Eva", LastName: "Reyes", Email: "eva@example.com", Active: true},
		{ID: "pm", FirstName: "Paolo", LastName: "Medina", Email: "pm@example.com", Active: true},
		{ID: "dev2", FirstName: "Dana", LastName: "Cruz", Email: "dev2@example.com", Active: true},
		{ID: "hr1", FirstName: "Hana", LastName: "Lim", Email: "hr1@example.com", Active: true, HR: true},
		{ID: "bod1", FirstName: "Bert", LastName: "Ong", Email: "bod1@example.com", Active: true, BOD: true},
		{ID: "ghost", FirstName: "Gone", LastName: "Person", Email: "ghost@example.com", Active: false},
	}
	for _, u := range users {
		require.NoError(t, store.PutUser(ctx, u))
	}

	require.NoError(t, store.PutProject(ctx, Project{ID: "proj-1", Name: "Atlas"}))
	members := []ProjectMember{
		{ID: "m-eva", ProjectID: "proj-1", UserID: "eva", Role: "developer", AllocationRate: 75,
			StartDate: day(2025, 1, 1), EndDate: day(2025, 2, 14)},
		{ID: "m-pm", ProjectID: "proj-1", UserID: "pm", Role: "project_manager", AllocationRate: 100,
			StartDate: day(2025, 1, 1), EndDate: day(2025, 3, 31)},
		{ID: "m-dev2", ProjectID: "proj-1", UserID: "dev2", Role: "developer", AllocationRate: 100,
			StartDate: day(2025, 1, 1), EndDate: day(2025, 3, 31)},
		{ID: "m-ghost", ProjectID: "proj-1", UserID: "ghost", Role: "developer", AllocationRate: 100,
			StartDate: day(2025, 1, 1), EndDate: day(2025, 3, 31)},
	}
	for _, m := range members {
		require.NoError(t, store.PutProjectMember(ctx, m))
	}

	templates := []Template{
		{ID: "tpl-pm", Name: "PM Evaluation", EvalueeRole: "developer", EvaluatorRole: "project_manager",
			Rate: 60, AnswerScaleID: "scale-1", Active: true},
		{ID: "tpl-peer-dev", Name: "Developer Peer Evaluation", EvalueeRole: "developer", EvaluatorRole: "developer",
			Rate: 20, AnswerScaleID: "scale-1", Active: true},
		{ID: "tpl-hr", Name: "HR Evaluation", EvalueeRole: "all", EvaluatorRole: RoleHR,
			Rate: 20, AnswerScaleID: "scale-1", Active: true},
		{ID: "tpl-bod", Name: "Board Evaluation", EvalueeRole: "project_manager", EvaluatorRole: RoleBOD,
			Rate: 100, AnswerScaleID: "scale-1", Active: true},
		{ID: "tpl-peer", Name: "Peer Evaluation", EvalueeRole: "all", EvaluatorRole: RolePeer,
			Rate: 100, AnswerScaleID: "scale-1", Active: true},
	}
	for _, tm := range templates {
		require.NoError(t, store.PutTemplate(ctx, tm))
	}
}

// seedScale loads a five-point answer scale, lowest tier first.
func seedScale(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	names := []string{"Poor", "Fair", "Satisfactory", "Good", "Excellent"}
	for i, name := range names {
		require.NoError(t, store.PutAnswerOption(ctx, AnswerOption{
			ID:       "opt-" + name,
			ScaleID:  "scale-1",
			Name:     name,
			Rate:     float64(i + 1),
			Sequence: i + 1,
			Active:   true,
		}))
	}
}
