package campaign

import "context"

// EvaluationFilter narrows evaluation listings. Nil/zero fields match
// everything.
type EvaluationFilter struct {
	AdministrationID    string
	ResultID            string
	EvaluatorID         string
	ExternalEvaluatorID string
	TemplateID          string
	ForEvaluation       *bool
	Statuses            []EvaluationStatus
}

func (f EvaluationFilter) matches(e Evaluation) bool {
	if f.AdministrationID != "" && e.AdministrationID != f.AdministrationID {
		return false
	}
	if f.ResultID != "" && e.ResultID != f.ResultID {
		return false
	}
	if f.EvaluatorID != "" && e.EvaluatorID != f.EvaluatorID {
		return false
	}
	if f.ExternalEvaluatorID != "" && e.ExternalEvaluatorID != f.ExternalEvaluatorID {
		return false
	}
	if f.TemplateID != "" && e.TemplateID != f.TemplateID {
		return false
	}
	if f.ForEvaluation != nil && e.ForEvaluation != *f.ForEvaluation {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if e.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Store is the durable record collaborator. Writes are immediately visible to
// subsequent reads within the same logical operation.
type Store interface {
	// administrations
	CreateAdministration(ctx context.Context, a Administration) error
	GetAdministration(ctx context.Context, id string) (Administration, error)
	ListAdministrations(ctx context.Context, statuses ...AdministrationStatus) ([]Administration, error)
	UpdateAdministration(ctx context.Context, a Administration) error
	DeleteAdministration(ctx context.Context, id string) error

	// results
	CreateResult(ctx context.Context, r Result) error
	GetResult(ctx context.Context, id string) (Result, error)
	GetResultByEvaluee(ctx context.Context, administrationID, evalueeID string) (Result, error)
	ListResultsByAdministration(ctx context.Context, administrationID string) ([]Result, error)
	UpdateResult(ctx context.Context, r Result) error
	DeleteResult(ctx context.Context, id string) error

	// result details
	CreateResultDetail(ctx context.Context, d ResultDetail) error
	ListDetailsByResult(ctx context.Context, resultID string) ([]ResultDetail, error)
	UpdateResultDetail(ctx context.Context, d ResultDetail) error

	// evaluations
	CreateEvaluation(ctx context.Context, e Evaluation) error
	GetEvaluation(ctx context.Context, id string) (Evaluation, error)
	ListEvaluations(ctx context.Context, f EvaluationFilter) ([]Evaluation, error)
	UpdateEvaluation(ctx context.Context, e Evaluation) error
	DeleteEvaluation(ctx context.Context, id string) error

	// ratings
	CreateRating(ctx context.Context, r Rating) error
	GetRating(ctx context.Context, id string) (Rating, error)
	ListRatingsByEvaluation(ctx context.Context, evaluationID string) ([]Rating, error)
	UpdateRating(ctx context.Context, r Rating) error
	DeleteRatingsByEvaluation(ctx context.Context, evaluationID string) error

	// templates and answer scales
	PutTemplate(ctx context.Context, t Template) error
	GetTemplate(ctx context.Context, id string) (Template, error)
	GetTemplateByRoles(ctx context.Context, evalueeRole, evaluatorRole string) (Template, error)
	ListTemplatesByEvaluatorRole(ctx context.Context, evaluatorRole string) ([]Template, error)
	PutTemplateContent(ctx context.Context, c TemplateContent) error
	ListActiveContentsByTemplate(ctx context.Context, templateID string) ([]TemplateContent, error)
	PutAnswerOption(ctx context.Context, o AnswerOption) error
	GetAnswerOption(ctx context.Context, id string) (AnswerOption, error)
	ListAnswerOptionsByScale(ctx context.Context, scaleID string) ([]AnswerOption, error)

	// score bands
	PutScoreRating(ctx context.Context, s ScoreRating) error
	ScoreRatingFor(ctx context.Context, score float64) (ScoreRating, error)

	// staffing read side
	PutUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	ListActiveUsers(ctx context.Context) ([]User, error)
	ListHRUsers(ctx context.Context) ([]User, error)
	ListBODUsers(ctx context.Context) ([]User, error)
	PutExternalEvaluator(ctx context.Context, e ExternalEvaluator) error
	GetExternalEvaluator(ctx context.Context, id string) (ExternalEvaluator, error)
	PutProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id string) (Project, error)
	PutProjectMember(ctx context.Context, m ProjectMember) error
	ListMembershipsForUser(ctx context.Context, userID string, w Window) ([]ProjectMember, error)
	ListMembersOnProject(ctx context.Context, projectID string, w Window) ([]ProjectMember, error)
}
