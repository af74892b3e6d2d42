package campaign

import "time"

// Kind distinguishes the structurally identical campaign flavours that all
// run through the same engine.
type Kind string

const (
	KindEvaluation Kind = "evaluation"
	KindSurvey     Kind = "survey"
	KindSkillMap   Kind = "skill_map"
)

type AdministrationStatus string

const (
	AdminDraft     AdministrationStatus = "draft"
	AdminPending   AdministrationStatus = "pending"
	AdminOngoing   AdministrationStatus = "ongoing"
	AdminClosed    AdministrationStatus = "closed"
	AdminCancelled AdministrationStatus = "cancelled"
	AdminPublished AdministrationStatus = "published"
)

type ResultStatus string

const (
	ResultForReview ResultStatus = "for_review"
	ResultReady     ResultStatus = "ready"
	ResultOngoing   ResultStatus = "ongoing"
	ResultCompleted ResultStatus = "completed"
	ResultCancelled ResultStatus = "cancelled"
	ResultNoResult  ResultStatus = "no_result"
)

type EvaluationStatus string

const (
	EvalDraft      EvaluationStatus = "draft"
	EvalExcluded   EvaluationStatus = "excluded"
	EvalPending    EvaluationStatus = "pending"
	EvalOpen       EvaluationStatus = "open"
	EvalOngoing    EvaluationStatus = "ongoing"
	EvalSubmitted  EvaluationStatus = "submitted"
	EvalCancelled  EvaluationStatus = "cancelled"
	EvalExpired    EvaluationStatus = "expired"
	EvalForRemoval EvaluationStatus = "for_removal"
	EvalRemoved    EvaluationStatus = "removed"
)

// openStatuses are the non-terminal statuses that still count against an
// evaluation result's completion.
var openStatuses = []EvaluationStatus{EvalDraft, EvalPending, EvalOpen, EvalOngoing}

// Administration is one campaign instance: an evaluation period being rated,
// and a schedule window during which evaluators may submit.
type Administration struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Kind          Kind                 `json:"kind"`
	PeriodStart   time.Time            `json:"eval_period_start_date"`
	PeriodEnd     time.Time            `json:"eval_period_end_date"`
	ScheduleStart time.Time            `json:"eval_schedule_start_date"`
	ScheduleEnd   time.Time            `json:"eval_schedule_end_date"`
	Remarks       string               `json:"remarks,omitempty"`
	EmailSubject  string               `json:"email_subject,omitempty"`
	EmailContent  string               `json:"email_content,omitempty"`
	Status        AdministrationStatus `json:"status"`
	CreatedAt     int64                `json:"created_at,omitempty"`
	UpdatedAt     int64                `json:"updated_at,omitempty"`
}

// Result is the per-evaluee rollup inside one administration.
type Result struct {
	ID               string       `json:"id"`
	AdministrationID string       `json:"evaluation_administration_id"`
	EvalueeID        string       `json:"user_id"`
	Status           ResultStatus `json:"status"`
	Score            float64      `json:"score"`
	ZScore           float64      `json:"zscore"`
	Banding          string       `json:"banding,omitempty"`
	ScoreRatingID    string       `json:"score_rating_id,omitempty"`
}

// Evaluation is one evaluator's assignment against one evaluee under one
// template, optionally scoped to a project engagement.
type Evaluation struct {
	ID                  string           `json:"id"`
	ResultID            string           `json:"evaluation_result_id"`
	AdministrationID    string           `json:"evaluation_administration_id"`
	TemplateID          string           `json:"evaluation_template_id"`
	EvaluatorID         string           `json:"evaluator_id,omitempty"`
	ExternalEvaluatorID string           `json:"external_evaluator_id,omitempty"`
	EvalueeID           string           `json:"evaluee_id"`
	ProjectID           string           `json:"project_id,omitempty"`
	ProjectMemberID     string           `json:"project_member_id,omitempty"`
	PeriodStart         time.Time        `json:"eval_start_date"`
	PeriodEnd           time.Time        `json:"eval_end_date"`
	PercentInvolvement  float64          `json:"percent_involvement"`
	Status              EvaluationStatus `json:"status"`
	ForEvaluation       bool             `json:"for_evaluation"`
	Score               float64          `json:"score"`
	Weight              float64          `json:"weight"`
	WeightedScore       float64          `json:"weighted_score"`
	Comments            string           `json:"comments,omitempty"`
	SubmissionMethod    string           `json:"submission_method,omitempty"`
	SubmittedAt         *time.Time       `json:"submitted_date,omitempty"`
}

// Rating is the finest-grained score unit: one chosen answer against one
// template content for one evaluation. Percentage snapshots the content's
// weight at generation time so later template edits cannot skew history.
type Rating struct {
	ID             string  `json:"id"`
	EvaluationID   string  `json:"evaluation_id"`
	ContentID      string  `json:"evaluation_template_content_id"`
	AnswerOptionID string  `json:"answer_option_id,omitempty"`
	Rate           float64 `json:"rate"`
	Percentage     float64 `json:"percentage"`
	Score          float64 `json:"score"`
}

// ResultDetail is the per-template rollup under a result.
type ResultDetail struct {
	ID            string  `json:"id"`
	ResultID      string  `json:"evaluation_result_id"`
	TemplateID    string  `json:"evaluation_template_id"`
	Weight        float64 `json:"weight"`
	Score         float64 `json:"score"`
	WeightedScore float64 `json:"weighted_score"`
}

// Template maps an (evaluee role, evaluator role) pair to an answer scale.
// Rate is the template's weight inside the evaluee's final score.
type Template struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	DisplayName   string  `json:"display_name,omitempty"`
	EvalueeRole   string  `json:"evaluee_role"`
	EvaluatorRole string  `json:"evaluator_role"`
	Rate          float64 `json:"rate"`
	AnswerScaleID string  `json:"answer_id"`
	Active        bool    `json:"is_active"`
}

// TemplateContent is one scored dimension inside a template. Sibling rates
// are expected to sum to 100.
type TemplateContent struct {
	ID         string  `json:"id"`
	TemplateID string  `json:"evaluation_template_id"`
	Name       string  `json:"name"`
	Rate       float64 `json:"rate"`
	Sequence   int     `json:"sequence_no"`
	Active     bool    `json:"is_active"`
}

// AnswerOption is one tier of an answer scale. Sequence orders options from
// lowest to highest tier.
type AnswerOption struct {
	ID       string  `json:"id"`
	ScaleID  string  `json:"answer_id"`
	Name     string  `json:"name"`
	Rate     float64 `json:"rate"`
	Sequence int     `json:"sequence_no"`
	Active   bool    `json:"is_active"`
}

// ScoreRating is the static banding lookup consulted at close time.
type ScoreRating struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score"`
}

// User is the staffing read side the generator and submission checks need.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Active    bool   `json:"is_active"`
	HR        bool   `json:"is_hr"`
	BOD       bool   `json:"is_bod"`
}

func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// ExternalEvaluator is a reviewer outside the organisation. AccessCodeHash is
// a bcrypt hash of the one-time passcode mailed to them.
type ExternalEvaluator struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Role           string `json:"role,omitempty"`
	AccessCodeHash string `json:"-"`
}

type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// ProjectMember is one user's allocation on one project over a date range.
// AllocationRate is the percent of their time assigned to the project.
type ProjectMember struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"project_role"`
	AllocationRate float64   `json:"allocation_rate"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}
